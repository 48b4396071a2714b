package native

import (
	"fmt"
	"os"
	"strconv"
)

// EnvThreads is read by OpenMP builds of the engine when the library is
// loaded. Setting it later has no effect.
const EnvThreads = "OMP_NUM_THREADS"

// LoadOption configures Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	threads int
}

// WithThreads caps the solver's OpenMP thread count. Zero leaves the
// environment untouched.
func WithThreads(n int) LoadOption {
	return func(o *loadOptions) { o.threads = n }
}

func applyLoadOptions(opts []LoadOption) error {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}
	switch {
	case o.threads < 0:
		return fmt.Errorf("thread count must be non-negative, got %d", o.threads)
	case o.threads > 0:
		if err := os.Setenv(EnvThreads, strconv.Itoa(o.threads)); err != nil {
			return fmt.Errorf("set %s: %w", EnvThreads, err)
		}
	}
	return nil
}
