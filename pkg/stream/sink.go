package stream

import (
	"fmt"
	"time"
)

// Sink receives one record per reported period.
//
// A sink is created per run. Finalize marks the output complete; Close
// releases files and, when Finalize did not run, leaves the output marked
// incomplete with whatever steps were written.
type Sink interface {
	WriteStep(t int64, pressure, flow []float64) error
	Finalize() error
	Close() error
	Path() string
	Steps() int
}

// Config describes the output a sink produces.
type Config struct {
	NodeIDs        []string
	LinkIDs        []string
	ReportInterval int32 // seconds
	// Capacity is the number of steps a dense sink preallocates. The
	// append-stream form records it as a hint only.
	Capacity int
	// BufferSize of record writers; 0 selects the bufio default.
	BufferSize int
	// Now overrides the creation clock.
	Now func() time.Time
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Create opens a sink of the requested form at path: the base name of an
// append-stream output, or the directory of a dense one.
func Create(format Format, path string, cfg Config) (Sink, error) {
	switch format {
	case FormatStream:
		return NewStreamSink(path, cfg)
	case FormatDense:
		return NewDenseSink(path, cfg)
	}
	return nil, fmt.Errorf("unknown output format %d", format)
}

// narrow converts src into dst as little-endian float32.
func narrow(dst []byte, src []float64) {
	for i, v := range src {
		putFloat32(dst[4*i:], float32(v))
	}
}
