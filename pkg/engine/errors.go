package engine

import (
	"errors"
	"fmt"
)

// ErrEngineFault matches every fatal engine status.
var ErrEngineFault = errors.New("engine fault")

// EngineError records a fatal status from a named engine call.
type EngineError struct {
	Call    string // entry point, e.g. "EN_openH"
	Code    Status
	Message string // engine-provided text, may be empty
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s failed with code %d: %s", e.Call, e.Code, e.Message)
	}
	return fmt.Sprintf("%s failed with code %d", e.Call, e.Code)
}

// Is reports whether target is ErrEngineFault.
func (e *EngineError) Is(target error) bool {
	return target == ErrEngineFault
}

// CodeOf extracts the engine status from err, if err carries one.
func CodeOf(err error) (Status, bool) {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code, true
	}
	return StatusOK, false
}
