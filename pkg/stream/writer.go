package stream

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// StreamSink writes the append-stream form: "<base>.out" plus sidecars.
type StreamSink struct {
	base   string
	nodes  int
	links  int
	meta   Meta
	out    *bufferedFile
	times  *bufferedFile
	record []byte
	stamp  [8]byte
	steps  int
	done   bool
	closed bool
}

// NewStreamSink creates every file of an append-stream output at base.
// ID sidecars and the initial metadata are written immediately.
func NewStreamSink(base string, cfg Config) (*StreamSink, error) {
	base = BaseName(base)
	created := cfg.now()
	s := &StreamSink{
		base:   base,
		nodes:  len(cfg.NodeIDs),
		links:  len(cfg.LinkIDs),
		record: make([]byte, RecordSize(len(cfg.NodeIDs), len(cfg.LinkIDs))),
		meta: Meta{
			Format:         FormatStream.String(),
			Version:        Version,
			RunID:          uuid.NewString(),
			CreatedAt:      created.UTC(),
			NodeCount:      len(cfg.NodeIDs),
			LinkCount:      len(cfg.LinkIDs),
			ReportInterval: cfg.ReportInterval,
			Capacity:       cfg.Capacity,
		},
	}

	if err := os.MkdirAll(filepath.Dir(base), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	if err := writeLines(base+ExtNodes, cfg.NodeIDs); err != nil {
		return nil, fmt.Errorf("write node ids: %w", err)
	}
	if err := writeLines(base+ExtLinks, cfg.LinkIDs); err != nil {
		return nil, fmt.Errorf("write link ids: %w", err)
	}
	if err := writeMeta(base+ExtMeta, &s.meta); err != nil {
		return nil, err
	}

	s.out = newBufferedFile(base+ExtRecords, cfg.BufferSize)
	if err := s.out.Open(); err != nil {
		return nil, err
	}
	hdr, _ := Header{
		Version:        Version,
		NodeCount:      uint32(s.nodes),
		LinkCount:      uint32(s.links),
		Created:        created.Unix(),
		ReportInterval: cfg.ReportInterval,
	}.MarshalBinary()
	if _, err := s.out.Write(hdr); err != nil {
		s.out.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}

	s.times = newBufferedFile(base+ExtTimes, 0)
	if err := s.times.Open(); err != nil {
		s.out.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the record file.
func (s *StreamSink) Path() string { return s.base + ExtRecords }

// Steps returns the number of records written.
func (s *StreamSink) Steps() int { return s.steps }

// WriteStep appends one record. Values are narrowed to float32.
func (s *StreamSink) WriteStep(t int64, pressure, flow []float64) error {
	if s.closed {
		return ErrSinkClosed
	}
	if len(pressure) != s.nodes || len(flow) != s.links {
		return fmt.Errorf("%w: got %d/%d values, want %d/%d",
			ErrShapeMismatch, len(pressure), len(flow), s.nodes, s.links)
	}

	binary.LittleEndian.PutUint32(s.record[0:4], uint32(int32(t)))
	narrow(s.record[4:], pressure)
	narrow(s.record[4+4*s.nodes:], flow)
	if _, err := s.out.Write(s.record); err != nil {
		return fmt.Errorf("write record %d: %w", s.steps, err)
	}

	binary.LittleEndian.PutUint64(s.stamp[:], uint64(t))
	if _, err := s.times.Write(s.stamp[:]); err != nil {
		return fmt.Errorf("write time %d: %w", s.steps, err)
	}
	s.steps++
	return nil
}

// Finalize syncs the records and marks the output complete.
func (s *StreamSink) Finalize() error {
	if s.closed {
		return ErrSinkClosed
	}
	if err := s.out.Sync(); err != nil {
		return fmt.Errorf("sync records: %w", err)
	}
	if err := s.times.Sync(); err != nil {
		return fmt.Errorf("sync times: %w", err)
	}
	s.meta.Completed = true
	s.meta.ActualSteps = s.steps
	if err := writeMeta(s.base+ExtMeta, &s.meta); err != nil {
		return err
	}
	s.done = true
	return nil
}

// Close releases the files. Without a prior Finalize the metadata is
// refreshed with the steps written so far and stays incomplete.
func (s *StreamSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	outErr := s.out.Close()
	timesErr := s.times.Close()
	if !s.done {
		s.meta.ActualSteps = s.steps
		if err := writeMeta(s.base+ExtMeta, &s.meta); err != nil && outErr == nil {
			outErr = err
		}
	}
	if outErr != nil {
		return outErr
	}
	return timesErr
}

// Remove deletes every file of the output at base.
func Remove(base string) error {
	base = BaseName(base)
	for _, ext := range []string{ExtRecords, ExtNodes, ExtLinks, ExtTimes, ExtMeta} {
		if err := os.Remove(base + ext); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
