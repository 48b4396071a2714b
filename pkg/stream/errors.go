package stream

import "errors"

var (
	// ErrProtocolCorruption marks an output whose bytes do not match its
	// declared layout.
	ErrProtocolCorruption = errors.New("stream protocol corruption")

	// ErrSinkFull is returned by a dense sink asked to write past its
	// preallocated capacity.
	ErrSinkFull = errors.New("sink capacity exhausted")

	// ErrMissingSidecar is returned by readers when a companion file of an
	// output is absent.
	ErrMissingSidecar = errors.New("stream sidecar missing")

	// ErrSinkClosed is returned by writes after Close.
	ErrSinkClosed = errors.New("sink is closed")

	// ErrShapeMismatch is returned when a step's vectors do not match the
	// sink's element counts.
	ErrShapeMismatch = errors.New("step shape does not match sink")
)
