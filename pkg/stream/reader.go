package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"golang.org/x/exp/mmap"
)

// Frame is one decoded period.
type Frame struct {
	Time     int64
	Pressure []float32
	Flow     []float32
}

// StreamReader reads an append-stream output through a read-only mapping.
// The step count is derived from the record file size alone; metadata is
// informational.
type StreamReader struct {
	base    string
	mm      *mmap.ReaderAt
	header  Header
	recSize int
	steps   int
	nodeIDs []string
	linkIDs []string
	meta    *Meta
	buf     []byte
}

// OpenStream opens the output at base (with or without the ".out" suffix).
// Every sidecar must be present.
func OpenStream(base string) (*StreamReader, error) {
	base = BaseName(base)
	for _, ext := range []string{ExtNodes, ExtLinks, ExtTimes, ExtMeta} {
		if !FileExists(base + ext) {
			return nil, fmt.Errorf("%w: %s", ErrMissingSidecar, base+ext)
		}
	}

	mm, err := mmap.Open(base + ExtRecords)
	if err != nil {
		return nil, fmt.Errorf("map records: %w", err)
	}
	r := &StreamReader{base: base, mm: mm}
	if err := r.load(); err != nil {
		mm.Close()
		return nil, err
	}
	return r, nil
}

func (r *StreamReader) load() error {
	hdr := make([]byte, HeaderSize)
	if r.mm.Len() < HeaderSize {
		return fmt.Errorf("%w: file is %d bytes, shorter than the header", ErrProtocolCorruption, r.mm.Len())
	}
	if _, err := r.mm.ReadAt(hdr, 0); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if err := r.header.UnmarshalBinary(hdr); err != nil {
		return err
	}

	r.recSize = r.header.RecordSize()
	payload := r.mm.Len() - HeaderSize
	if payload%r.recSize != 0 {
		return fmt.Errorf("%w: payload of %d bytes is not a multiple of record size %d",
			ErrProtocolCorruption, payload, r.recSize)
	}
	r.steps = payload / r.recSize
	r.buf = make([]byte, r.recSize)

	var err error
	if r.nodeIDs, err = readSidecar(r.base + ExtNodes); err != nil {
		return err
	}
	if r.linkIDs, err = readSidecar(r.base + ExtLinks); err != nil {
		return err
	}
	if len(r.nodeIDs) != int(r.header.NodeCount) || len(r.linkIDs) != int(r.header.LinkCount) {
		return fmt.Errorf("%w: sidecars list %d/%d ids, header declares %d/%d",
			ErrProtocolCorruption, len(r.nodeIDs), len(r.linkIDs), r.header.NodeCount, r.header.LinkCount)
	}
	if r.meta, err = ReadMeta(r.base + ExtMeta); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrMissingSidecar, r.base+ExtMeta)
		}
		return err
	}
	return nil
}

func readSidecar(path string) ([]string, error) {
	lines, err := readLines(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingSidecar, path)
	}
	return lines, err
}

func (r *StreamReader) Header() Header     { return r.header }
func (r *StreamReader) Steps() int         { return r.steps }
func (r *StreamReader) NodeIDs() []string  { return r.nodeIDs }
func (r *StreamReader) LinkIDs() []string  { return r.linkIDs }
func (r *StreamReader) Meta() *Meta        { return r.meta }
func (r *StreamReader) Completed() bool    { return r.meta.Completed }
func (r *StreamReader) NodeCount() int     { return int(r.header.NodeCount) }
func (r *StreamReader) LinkCount() int     { return int(r.header.LinkCount) }
func (r *StreamReader) RecordSize() int    { return r.recSize }
func (r *StreamReader) Close() error       { return r.mm.Close() }

func (r *StreamReader) offset(step int) (int64, error) {
	if step < 0 || step >= r.steps {
		return 0, fmt.Errorf("step %d out of range [0,%d)", step, r.steps)
	}
	return int64(HeaderSize) + int64(step)*int64(r.recSize), nil
}

// Frame decodes one record.
func (r *StreamReader) Frame(step int) (Frame, error) {
	off, err := r.offset(step)
	if err != nil {
		return Frame{}, err
	}
	if _, err := r.mm.ReadAt(r.buf, off); err != nil {
		return Frame{}, fmt.Errorf("read record %d: %w", step, err)
	}
	n, m := r.NodeCount(), r.LinkCount()
	f := Frame{
		Time:     int64(int32(binary.LittleEndian.Uint32(r.buf[0:4]))),
		Pressure: make([]float32, n),
		Flow:     make([]float32, m),
	}
	decodeFloat32s(f.Pressure, r.buf[4:])
	decodeFloat32s(f.Flow, r.buf[4+4*n:])
	return f, nil
}

// Times returns the time field of every record.
func (r *StreamReader) Times() ([]int64, error) {
	out := make([]int64, r.steps)
	var b [4]byte
	for i := range out {
		off, _ := r.offset(i)
		if _, err := r.mm.ReadAt(b[:], off); err != nil {
			return nil, err
		}
		out[i] = int64(int32(binary.LittleEndian.Uint32(b[:])))
	}
	return out, nil
}

// NodeSeries returns the pressure of the node at 0-based position idx for
// every step.
func (r *StreamReader) NodeSeries(idx int) ([]float32, error) {
	if idx < 0 || idx >= r.NodeCount() {
		return nil, fmt.Errorf("node position %d out of range", idx)
	}
	return r.column(4 + 4*idx)
}

// LinkSeries returns the flow of the link at 0-based position idx for
// every step.
func (r *StreamReader) LinkSeries(idx int) ([]float32, error) {
	if idx < 0 || idx >= r.LinkCount() {
		return nil, fmt.Errorf("link position %d out of range", idx)
	}
	return r.column(4 + 4*r.NodeCount() + 4*idx)
}

func (r *StreamReader) column(within int) ([]float32, error) {
	out := make([]float32, r.steps)
	var b [4]byte
	for i := range out {
		off, _ := r.offset(i)
		if _, err := r.mm.ReadAt(b[:], off+int64(within)); err != nil {
			return nil, err
		}
		out[i] = getFloat32(b[:])
	}
	return out, nil
}

// DenseReader reads a dense output directory, trimmed to the steps that
// were actually written.
type DenseReader struct {
	dir      string
	meta     *Meta
	pressure *mmap.ReaderAt
	flow     *mmap.ReaderAt
	times    *mmap.ReaderAt
	steps    int
}

// OpenDense opens the dense output in dir.
func OpenDense(dir string) (*DenseReader, error) {
	for _, name := range []string{DenseMeta, DensePressure, DenseFlow, DenseTimes} {
		if !FileExists(filepath.Join(dir, name)) {
			return nil, fmt.Errorf("%w: %s", ErrMissingSidecar, filepath.Join(dir, name))
		}
	}
	meta, err := ReadMeta(filepath.Join(dir, DenseMeta))
	if err != nil {
		return nil, err
	}
	if meta.Dtype != Dtype {
		return nil, fmt.Errorf("%w: dtype %q", ErrProtocolCorruption, meta.Dtype)
	}
	if meta.ActualSteps < 0 || meta.ActualSteps > meta.Capacity {
		return nil, fmt.Errorf("%w: %d steps exceed capacity %d", ErrProtocolCorruption, meta.ActualSteps, meta.Capacity)
	}

	d := &DenseReader{dir: dir, meta: meta, steps: meta.ActualSteps}
	want := []struct {
		dst  **mmap.ReaderAt
		name string
		size int
	}{
		{&d.pressure, DensePressure, meta.ActualSteps * meta.NodeCount * 4},
		{&d.flow, DenseFlow, meta.ActualSteps * meta.LinkCount * 4},
		{&d.times, DenseTimes, meta.ActualSteps * 8},
	}
	for _, w := range want {
		mm, err := mmap.Open(filepath.Join(dir, w.name))
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("map %s: %w", w.name, err)
		}
		*w.dst = mm
		if mm.Len() < w.size {
			d.Close()
			return nil, fmt.Errorf("%w: %s is %d bytes, need %d", ErrProtocolCorruption, w.name, mm.Len(), w.size)
		}
	}
	return d, nil
}

func (d *DenseReader) Meta() *Meta       { return d.meta }
func (d *DenseReader) Steps() int        { return d.steps }
func (d *DenseReader) NodeIDs() []string { return d.meta.NodeIDs }
func (d *DenseReader) LinkIDs() []string { return d.meta.LinkIDs }
func (d *DenseReader) Completed() bool   { return d.meta.Completed }

// Frame decodes row step of every array.
func (d *DenseReader) Frame(step int) (Frame, error) {
	if step < 0 || step >= d.steps {
		return Frame{}, fmt.Errorf("step %d out of range [0,%d)", step, d.steps)
	}
	n, m := d.meta.NodeCount, d.meta.LinkCount
	f := Frame{Pressure: make([]float32, n), Flow: make([]float32, m)}

	buf := make([]byte, 4*max(n, m, 2))
	if _, err := d.pressure.ReadAt(buf[:4*n], int64(step)*int64(4*n)); err != nil {
		return Frame{}, err
	}
	decodeFloat32s(f.Pressure, buf)
	if _, err := d.flow.ReadAt(buf[:4*m], int64(step)*int64(4*m)); err != nil {
		return Frame{}, err
	}
	decodeFloat32s(f.Flow, buf)
	if _, err := d.times.ReadAt(buf[:8], int64(step)*8); err != nil {
		return Frame{}, err
	}
	f.Time = int64(binary.LittleEndian.Uint64(buf[:8]))
	return f, nil
}

// Times returns the time of every written step.
func (d *DenseReader) Times() ([]int64, error) {
	out := make([]int64, d.steps)
	var b [8]byte
	for i := range out {
		if _, err := d.times.ReadAt(b[:], int64(i)*8); err != nil {
			return nil, err
		}
		out[i] = int64(binary.LittleEndian.Uint64(b[:]))
	}
	return out, nil
}

// Close unmaps every array.
func (d *DenseReader) Close() error {
	var first error
	for _, mm := range []*mmap.ReaderAt{d.pressure, d.flow, d.times} {
		if mm == nil {
			continue
		}
		if err := mm.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Reader is the read side shared by both forms.
type Reader interface {
	Steps() int
	NodeIDs() []string
	LinkIDs() []string
	Completed() bool
	Frame(step int) (Frame, error)
	Times() ([]int64, error)
	Close() error
}

// Open detects the form of the output at path and opens it.
func Open(path string) (Reader, error) {
	if FileExists(filepath.Join(path, DenseMeta)) {
		return OpenDense(path)
	}
	return OpenStream(path)
}

var (
	_ Reader = (*StreamReader)(nil)
	_ Reader = (*DenseReader)(nil)
)
