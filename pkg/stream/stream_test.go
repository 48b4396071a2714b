package stream

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i+1)
	}
	return out
}

func vector(n int, seed float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = seed + float64(i)*0.25
	}
	return out
}

func TestHeader_Layout(t *testing.T) {
	buf, err := Header{Version: Version, NodeCount: 9, LinkCount: 3, Created: 1700000000, ReportInterval: 900}.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, buf, HeaderSize)
	assert.Equal(t, Magic, string(buf[:8]))
	assert.Equal(t, make([]byte, 32), buf[32:])

	var h Header
	require.NoError(t, h.UnmarshalBinary(buf))
	assert.Equal(t, uint32(9), h.NodeCount)
	assert.Equal(t, uint32(3), h.LinkCount)
	assert.Equal(t, int64(1700000000), h.Created)
	assert.Equal(t, int32(900), h.ReportInterval)
	assert.Equal(t, 4+36+12, h.RecordSize())

	buf[8] = 7
	assert.ErrorIs(t, h.UnmarshalBinary(buf), ErrProtocolCorruption)
	assert.ErrorIs(t, h.UnmarshalBinary(buf[:10]), ErrProtocolCorruption)
}

func TestStreamSink_FiveStepsNineNodesThreeLinks(t *testing.T) {
	base := filepath.Join(t.TempDir(), "run")
	sink, err := NewStreamSink(base, Config{NodeIDs: ids("N", 9), LinkIDs: ids("L", 3), ReportInterval: 3600, Capacity: 5})
	require.NoError(t, err)
	assert.Equal(t, base+".out", sink.Path())

	for i := 0; i < 5; i++ {
		require.NoError(t, sink.WriteStep(int64(i*3600), vector(9, float64(i)), vector(3, -float64(i))))
	}
	require.NoError(t, sink.Finalize())
	require.NoError(t, sink.Close())

	info, err := os.Stat(base + ".out")
	require.NoError(t, err)
	assert.Equal(t, int64(HeaderSize+5*RecordSize(9, 3)), info.Size())

	r, err := OpenStream(base + ".out")
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 5, r.Steps())
	assert.Equal(t, 9, r.NodeCount())
	assert.Equal(t, 3, r.LinkCount())
	assert.Equal(t, ids("N", 9), r.NodeIDs())
	assert.Equal(t, ids("L", 3), r.LinkIDs())
	assert.True(t, r.Completed())
	assert.Equal(t, 5, r.Meta().ActualSteps)
	assert.NotEmpty(t, r.Meta().RunID)

	times, err := r.Times()
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 3600, 7200, 10800, 14400}, times)

	f, err := r.Frame(3)
	require.NoError(t, err)
	assert.Equal(t, int64(10800), f.Time)
	assert.Equal(t, float32(3.5), f.Pressure[2])
	assert.Equal(t, float32(-2.5), f.Flow[2])

	series, err := r.NodeSeries(0)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 2, 3, 4}, series)
	flows, err := r.LinkSeries(1)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -0.75, -1.75, -2.75, -3.75}, flows)

	timesSidecar, err := os.ReadFile(base + ".times")
	require.NoError(t, err)
	assert.Len(t, timesSidecar, 5*8)
}

func TestStreamSink_PartialOutputIsReadable(t *testing.T) {
	base := filepath.Join(t.TempDir(), "partial")
	sink, err := NewStreamSink(base, Config{NodeIDs: ids("N", 2), LinkIDs: ids("L", 1), ReportInterval: 60})
	require.NoError(t, err)

	meta, err := ReadMeta(base + ExtMeta)
	require.NoError(t, err)
	assert.False(t, meta.Completed)

	require.NoError(t, sink.WriteStep(0, []float64{1, 2}, []float64{3}))
	require.NoError(t, sink.WriteStep(60, []float64{4, 5}, []float64{6}))
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())

	r, err := OpenStream(base)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 2, r.Steps())
	assert.False(t, r.Completed())
	assert.Equal(t, 2, r.Meta().ActualSteps)

	assert.ErrorIs(t, sink.WriteStep(120, []float64{1, 2}, []float64{3}), ErrSinkClosed)
}

func TestStreamSink_ShapeMismatch(t *testing.T) {
	sink, err := NewStreamSink(filepath.Join(t.TempDir(), "x"), Config{NodeIDs: ids("N", 2), LinkIDs: ids("L", 1)})
	require.NoError(t, err)
	defer sink.Close()
	assert.ErrorIs(t, sink.WriteStep(0, []float64{1}, []float64{1}), ErrShapeMismatch)
	assert.Equal(t, 0, sink.Steps())
}

func TestOpenStream_TruncatedRecordIsCorruption(t *testing.T) {
	base := filepath.Join(t.TempDir(), "cut")
	sink, err := NewStreamSink(base, Config{NodeIDs: ids("N", 9), LinkIDs: ids("L", 3)})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, sink.WriteStep(int64(i), vector(9, 1), vector(3, 1)))
	}
	require.NoError(t, sink.Finalize())
	require.NoError(t, sink.Close())

	info, err := os.Stat(base + ".out")
	require.NoError(t, err)
	require.NoError(t, os.Truncate(base+".out", info.Size()-7))

	_, err = OpenStream(base)
	assert.ErrorIs(t, err, ErrProtocolCorruption)
}

func TestOpenStream_BadMagic(t *testing.T) {
	base := filepath.Join(t.TempDir(), "magic")
	sink, err := NewStreamSink(base, Config{NodeIDs: ids("N", 1), LinkIDs: ids("L", 1)})
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	f, err := os.OpenFile(base+".out", os.O_RDWR, 0)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte("NOTMAGIC"), 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = OpenStream(base)
	assert.ErrorIs(t, err, ErrProtocolCorruption)
}

func TestOpenStream_MissingSidecar(t *testing.T) {
	for _, ext := range []string{ExtNodes, ExtLinks, ExtTimes, ExtMeta} {
		t.Run(ext, func(t *testing.T) {
			base := filepath.Join(t.TempDir(), "side")
			sink, err := NewStreamSink(base, Config{NodeIDs: ids("N", 2), LinkIDs: ids("L", 2)})
			require.NoError(t, err)
			require.NoError(t, sink.WriteStep(0, vector(2, 0), vector(2, 0)))
			require.NoError(t, sink.Finalize())
			require.NoError(t, sink.Close())

			require.NoError(t, os.Remove(base+ext))
			_, err = OpenStream(base)
			assert.ErrorIs(t, err, ErrMissingSidecar)
		})
	}
}

func TestRemove(t *testing.T) {
	base := filepath.Join(t.TempDir(), "gone")
	sink, err := NewStreamSink(base, Config{NodeIDs: ids("N", 1), LinkIDs: ids("L", 1)})
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	require.NoError(t, Remove(base+".out"))
	assert.False(t, FileExists(base+".out"))
	assert.False(t, FileExists(base+".meta.json"))
	require.NoError(t, Remove(base))
}

func TestMetadataIsWorldReadable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}
	base := filepath.Join(t.TempDir(), "perm")
	sink, err := NewStreamSink(base, Config{NodeIDs: ids("N", 1), LinkIDs: ids("L", 1)})
	require.NoError(t, err)
	require.NoError(t, sink.Finalize())
	require.NoError(t, sink.Close())

	dir := filepath.Join(t.TempDir(), "dense")
	dense, err := NewDenseSink(dir, Config{NodeIDs: ids("N", 1), LinkIDs: ids("L", 1), Capacity: 1})
	require.NoError(t, err)
	require.NoError(t, dense.Finalize())
	require.NoError(t, dense.Close())

	for _, path := range []string{base + ".meta.json", filepath.Join(dir, DenseMeta)} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o644), info.Mode().Perm(), path)
	}
}

func TestDenseSink_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dense")
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	sink, err := NewDenseSink(dir, Config{
		NodeIDs: ids("N", 4), LinkIDs: ids("L", 2), ReportInterval: 900, Capacity: 3,
		Now: func() time.Time { return fixed },
	})
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, DensePressure))
	require.NoError(t, err)
	assert.Equal(t, int64(3*4*4), info.Size())

	require.NoError(t, sink.WriteStep(0, vector(4, 10), vector(2, 1)))
	require.NoError(t, sink.WriteStep(900, vector(4, 20), vector(2, 2)))
	require.NoError(t, sink.Finalize())
	require.NoError(t, sink.Close())

	r, err := OpenDense(dir)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 2, r.Steps())
	assert.True(t, r.Completed())
	assert.Equal(t, Dtype, r.Meta().Dtype)
	assert.Equal(t, []int{3, 4}, r.Meta().PressureShape)
	assert.Equal(t, fixed, r.Meta().CreatedAt)
	assert.Equal(t, ids("N", 4), r.NodeIDs())

	f, err := r.Frame(1)
	require.NoError(t, err)
	assert.Equal(t, int64(900), f.Time)
	assert.Equal(t, []float32{20, 20.25, 20.5, 20.75}, f.Pressure)
	assert.Equal(t, []float32{2, 2.25}, f.Flow)

	times, err := r.Times()
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 900}, times)
}

func TestDenseSink_Full(t *testing.T) {
	sink, err := NewDenseSink(filepath.Join(t.TempDir(), "full"), Config{NodeIDs: ids("N", 1), LinkIDs: ids("L", 1), Capacity: 1})
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.WriteStep(0, []float64{1}, []float64{1}))
	assert.ErrorIs(t, sink.WriteStep(1, []float64{1}, []float64{1}), ErrSinkFull)
	assert.Equal(t, 1, sink.Steps())
}

func TestDenseSink_NeedsCapacity(t *testing.T) {
	_, err := NewDenseSink(filepath.Join(t.TempDir(), "zero"), Config{NodeIDs: ids("N", 1)})
	assert.Error(t, err)
}

func TestOpenDense_MissingArray(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dense")
	sink, err := NewDenseSink(dir, Config{NodeIDs: ids("N", 1), LinkIDs: ids("L", 1), Capacity: 2})
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	require.NoError(t, os.Remove(filepath.Join(dir, DenseFlow)))

	_, err = OpenDense(dir)
	assert.ErrorIs(t, err, ErrMissingSidecar)
}

func TestCreateAndOpenDetectForm(t *testing.T) {
	root := t.TempDir()
	cfg := Config{NodeIDs: ids("N", 2), LinkIDs: ids("L", 1), Capacity: 2}

	for _, format := range []Format{FormatStream, FormatDense} {
		path := filepath.Join(root, format.String())
		sink, err := Create(format, path, cfg)
		require.NoError(t, err)
		require.NoError(t, sink.WriteStep(0, []float64{1, 2}, []float64{3}))
		require.NoError(t, sink.Finalize())
		require.NoError(t, sink.Close())

		r, err := Open(sink.Path())
		require.NoError(t, err, format.String())
		assert.Equal(t, 1, r.Steps())
		f, err := r.Frame(0)
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 2}, f.Pressure)
		require.NoError(t, r.Close())
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("Dense")
	require.NoError(t, err)
	assert.Equal(t, FormatDense, f)
	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatStream, f)
	_, err = ParseFormat("parquet")
	assert.Error(t, err)
}
