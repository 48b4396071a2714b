package stream

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// DenseSink writes the dense form: three arrays preallocated to Capacity
// steps inside one directory, plus metadata.json. Writes past Capacity
// return ErrSinkFull and leave the arrays untouched; Finalize still marks
// the output complete with the steps that fit.
type DenseSink struct {
	dir      string
	nodes    int
	links    int
	capacity int
	meta     Meta

	pressure *os.File
	flow     *os.File
	times    *os.File

	pbuf   []byte
	fbuf   []byte
	tbuf   [8]byte
	steps  int
	done   bool
	closed bool
}

// NewDenseSink creates dir and preallocates its arrays.
func NewDenseSink(dir string, cfg Config) (*DenseSink, error) {
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("dense sink needs a positive capacity, got %d", cfg.Capacity)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	n, m, c := len(cfg.NodeIDs), len(cfg.LinkIDs), cfg.Capacity
	d := &DenseSink{
		dir:      dir,
		nodes:    n,
		links:    m,
		capacity: c,
		pbuf:     make([]byte, 4*n),
		fbuf:     make([]byte, 4*m),
		meta: Meta{
			Format:         FormatDense.String(),
			Version:        Version,
			RunID:          uuid.NewString(),
			CreatedAt:      cfg.now().UTC(),
			NodeCount:      n,
			LinkCount:      m,
			ReportInterval: cfg.ReportInterval,
			Capacity:       c,
			Dtype:          Dtype,
			PressureShape:  []int{c, n},
			FlowShape:      []int{c, m},
			TimesShape:     []int{c},
			NodeIDs:        cfg.NodeIDs,
			LinkIDs:        cfg.LinkIDs,
		},
	}

	var err error
	if d.pressure, err = preallocate(filepath.Join(dir, DensePressure), int64(c)*int64(n)*4); err != nil {
		return nil, err
	}
	if d.flow, err = preallocate(filepath.Join(dir, DenseFlow), int64(c)*int64(m)*4); err != nil {
		d.pressure.Close()
		return nil, err
	}
	if d.times, err = preallocate(filepath.Join(dir, DenseTimes), int64(c)*8); err != nil {
		d.pressure.Close()
		d.flow.Close()
		return nil, err
	}
	if err := writeMeta(filepath.Join(dir, DenseMeta), &d.meta); err != nil {
		d.closeFiles()
		return nil, err
	}
	return d, nil
}

func preallocate(path string, size int64) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("preallocate %s: %w", path, err)
	}
	return f, nil
}

// Path returns the output directory.
func (d *DenseSink) Path() string { return d.dir }

// Steps returns the number of steps written.
func (d *DenseSink) Steps() int { return d.steps }

// Capacity returns the preallocated step count.
func (d *DenseSink) Capacity() int { return d.capacity }

// WriteStep stores row Steps() of every array.
func (d *DenseSink) WriteStep(t int64, pressure, flow []float64) error {
	if d.closed {
		return ErrSinkClosed
	}
	if d.steps >= d.capacity {
		return fmt.Errorf("%w: %d steps", ErrSinkFull, d.capacity)
	}
	if len(pressure) != d.nodes || len(flow) != d.links {
		return fmt.Errorf("%w: got %d/%d values, want %d/%d",
			ErrShapeMismatch, len(pressure), len(flow), d.nodes, d.links)
	}

	row := int64(d.steps)
	narrow(d.pbuf, pressure)
	if _, err := d.pressure.WriteAt(d.pbuf, row*int64(len(d.pbuf))); err != nil {
		return fmt.Errorf("write pressure row %d: %w", row, err)
	}
	narrow(d.fbuf, flow)
	if _, err := d.flow.WriteAt(d.fbuf, row*int64(len(d.fbuf))); err != nil {
		return fmt.Errorf("write flow row %d: %w", row, err)
	}
	binary.LittleEndian.PutUint64(d.tbuf[:], uint64(t))
	if _, err := d.times.WriteAt(d.tbuf[:], row*8); err != nil {
		return fmt.Errorf("write time row %d: %w", row, err)
	}
	d.steps++
	return nil
}

// Finalize syncs the arrays and marks the output complete.
func (d *DenseSink) Finalize() error {
	if d.closed {
		return ErrSinkClosed
	}
	for _, f := range []*os.File{d.pressure, d.flow, d.times} {
		if err := f.Sync(); err != nil {
			return fmt.Errorf("sync %s: %w", f.Name(), err)
		}
	}
	d.meta.Completed = true
	d.meta.ActualSteps = d.steps
	if err := writeMeta(filepath.Join(d.dir, DenseMeta), &d.meta); err != nil {
		return err
	}
	d.done = true
	return nil
}

// Close releases the arrays. Without a prior Finalize the metadata is
// refreshed with the steps written so far and stays incomplete.
func (d *DenseSink) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	err := d.closeFiles()
	if !d.done {
		d.meta.ActualSteps = d.steps
		if merr := writeMeta(filepath.Join(d.dir, DenseMeta), &d.meta); merr != nil && err == nil {
			err = merr
		}
	}
	return err
}

func (d *DenseSink) closeFiles() error {
	var first error
	for _, f := range []*os.File{d.pressure, d.flow, d.times} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
