package session

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	ErrResourceNotFound = errors.New("resource not found")
	ErrClosed           = errors.New("model context is closed")
)

// Stage names one step of context construction.
type Stage string

const (
	StageCreateProject   Stage = "create_project"
	StageOpenModel       Stage = "open_model"
	StageLoadTopology    Stage = "load_topology"
	StageOpenHydraulics  Stage = "open_hydraulics"
	StageCaptureBaseline Stage = "capture_baseline"
)

// StageError reports which construction stage failed. Everything acquired
// before the stage has been released by the time it is returned.
type StageError struct {
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("open model context: %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying cause for error chain support.
func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the failed stage carried by err, if any.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
