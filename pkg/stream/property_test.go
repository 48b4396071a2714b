package stream

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestStreamProperties checks that whatever is written decodes back to the
// float32-narrowed values, and that the step count equals the writes.
func TestStreamProperties(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)
	root := t.TempDir()
	run := 0

	properties.Property("append-stream round trip", prop.ForAll(
		func(nodes, links, steps int, seed float64) bool {
			run++
			base := filepath.Join(root, fmt.Sprintf("run%d", run))
			sink, err := NewStreamSink(base, Config{NodeIDs: ids("N", nodes), LinkIDs: ids("L", links), ReportInterval: 60})
			if err != nil {
				return false
			}
			for s := 0; s < steps; s++ {
				if err := sink.WriteStep(int64(s*60), vector(nodes, seed+float64(s)), vector(links, -seed)); err != nil {
					return false
				}
			}
			if sink.Finalize() != nil || sink.Close() != nil {
				return false
			}

			r, err := OpenStream(base)
			if err != nil {
				return false
			}
			defer r.Close()
			if r.Steps() != steps || r.NodeCount() != nodes || r.LinkCount() != links {
				return false
			}
			for s := 0; s < steps; s++ {
				f, err := r.Frame(s)
				if err != nil || f.Time != int64(s*60) {
					return false
				}
				want := vector(nodes, seed+float64(s))
				for i, v := range f.Pressure {
					if v != float32(want[i]) {
						return false
					}
				}
				wantFlow := vector(links, -seed)
				for i, v := range f.Flow {
					if v != float32(wantFlow[i]) {
						return false
					}
				}
			}
			return true
		},
		gen.IntRange(0, 40),
		gen.IntRange(0, 20),
		gen.IntRange(0, 12),
		gen.Float64Range(-1e4, 1e4),
	))

	properties.Property("dense never exceeds capacity", prop.ForAll(
		func(capacity, writes int) bool {
			run++
			sink, err := NewDenseSink(filepath.Join(root, fmt.Sprintf("dense%d", run)),
				Config{NodeIDs: ids("N", 3), LinkIDs: ids("L", 2), Capacity: capacity})
			if err != nil {
				return false
			}
			defer sink.Close()
			for w := 0; w < writes; w++ {
				err := sink.WriteStep(int64(w), vector(3, 0), vector(2, 0))
				if (w < capacity) != (err == nil) {
					return false
				}
			}
			return sink.Steps() == min(capacity, writes)
		},
		gen.IntRange(1, 10),
		gen.IntRange(0, 15),
	))

	properties.TestingRun(t)
}
