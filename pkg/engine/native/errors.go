package native

import "errors"

var (
	// ErrUnsupportedPlatform is returned where dynamic loading is unavailable.
	ErrUnsupportedPlatform = errors.New("native engine binding is not supported on this platform")

	// ErrMissingSymbol is returned when neither calling convention is
	// fully exported by the library.
	ErrMissingSymbol = errors.New("engine library is missing a required symbol")

	// ErrUnloaded is returned by Engine after Unload.
	ErrUnloaded = errors.New("engine library has been unloaded")
)

// Convention identifies which entry point family a library exports.
type Convention int

const (
	// ProjectAPI is the handle-first EN_xxx(ph, ...) family.
	ProjectAPI Convention = iota
	// LegacyAPI is the global-instance ENxxx(...) family.
	LegacyAPI
)

func (c Convention) String() string {
	if c == LegacyAPI {
		return "legacy"
	}
	return "project"
}
