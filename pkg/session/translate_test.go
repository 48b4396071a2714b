package session

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/dd0wney/hydroturbo/pkg/topology"
)

func TestTranslate(t *testing.T) {
	topo := topology.FromIDs([]string{"a", "b", "c"}, nil)
	var tr translator

	idx, vals, dropped := tr.translate(map[string]float64{"c": 3, "a": 1, "zz": 9}, topo.NodeIndex)
	assert.Equal(t, []int32{1, 3}, idx)
	assert.Equal(t, []float64{1, 3}, vals)
	assert.Equal(t, 1, dropped)

	idx, vals, dropped = tr.translate(nil, topo.NodeIndex)
	assert.Empty(t, idx)
	assert.Empty(t, vals)
	assert.Zero(t, dropped)
}

// TestTranslateProperties checks that translation keeps every known ID,
// drops every unknown one, and emits strictly increasing indices.
func TestTranslateProperties(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	ids := make([]string, 50)
	for i := range ids {
		ids[i] = fmt.Sprintf("J-%d", i)
	}
	topo := topology.FromIDs(ids, nil)
	var tr translator

	properties.Property("known ids kept in index order", prop.ForAll(
		func(picks []int, unknown int) bool {
			m := make(map[string]float64)
			for _, p := range picks {
				m[ids[p]] = float64(p) * 1.5
			}
			for u := 0; u < unknown; u++ {
				m[fmt.Sprintf("missing-%d", u)] = -1
			}

			idx, vals, dropped := tr.translate(m, topo.NodeIndex)
			if dropped != unknown || len(idx) != len(m)-unknown || len(vals) != len(idx) {
				return false
			}
			for i := range idx {
				if i > 0 && idx[i] <= idx[i-1] {
					return false
				}
				if vals[i] != m[ids[idx[i]-1]] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, len(ids)-1)),
		gen.IntRange(0, 5),
	))

	properties.TestingRun(t)
}
