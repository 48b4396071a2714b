package topology

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/hydroturbo/pkg/engine"
	"github.com/dd0wney/hydroturbo/pkg/engine/enginetest"
	"github.com/dd0wney/hydroturbo/pkg/logging"
)

// copyDoc places a copy of a testdata document in a temp dir so cache files
// do not land in the source tree.
func copyDoc(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestParse_OrderMatchesEngine(t *testing.T) {
	topo, err := Parse(filepath.Join("testdata", "net9.inp"), 4)
	require.NoError(t, err)

	assert.Equal(t, []string{"10", "11", "12", "13", "21", "22", "23", "2", "9"}, topo.NodeIDs())
	assert.Equal(t, []string{"10", "9", "V1"}, topo.LinkIDs())
	assert.Equal(t, 9, topo.NodeCount())
	assert.Equal(t, 3, topo.LinkCount())

	idx, ok := topo.NodeIndex("11")
	assert.True(t, ok)
	assert.Equal(t, 2, idx)
	idx, ok = topo.NodeIndex("9")
	assert.True(t, ok)
	assert.Equal(t, 9, idx)
	_, ok = topo.NodeIndex("missing")
	assert.False(t, ok)

	idx, ok = topo.LinkIndex("V1")
	assert.True(t, ok)
	assert.Equal(t, 3, idx)
}

func TestParse_Records(t *testing.T) {
	topo, err := Parse(filepath.Join("testdata", "net9.inp"), 1)
	require.NoError(t, err)

	assert.Equal(t, Node{ID: "11", Kind: Junction, Value: 710, Demand: 150}, topo.Nodes[1])
	assert.Equal(t, Node{ID: "13", Kind: Junction, Value: 695, Demand: 100}, topo.Nodes[3])
	assert.Equal(t, Node{ID: "2", Kind: Tank, Value: 850}, topo.Nodes[7])
	assert.Equal(t, Node{ID: "9", Kind: Reservoir, Value: 800}, topo.Nodes[8])

	from, to, ok := topo.LinkEnds("V1")
	require.True(t, ok)
	assert.Equal(t, "11", from)
	assert.Equal(t, "12", to)
	assert.Equal(t, "PRV", topo.Links[2].ValveType)
	assert.Equal(t, 10530.0, topo.Links[0].Length)

	p, ok := topo.Coordinates("2")
	require.True(t, ok)
	assert.Equal(t, Point{X: 50, Y: 90}, p)
	_, ok = topo.Coordinates("23")
	assert.False(t, ok)

	assert.Equal(t, []string{"9"}, topo.NodesOfKind(Reservoir))
}

func TestParse_EmptyAndMissing(t *testing.T) {
	empty := filepath.Join(t.TempDir(), "empty.inp")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	topo, err := Parse(empty, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, topo.NodeCount())

	_, err = Parse(filepath.Join(t.TempDir(), "nope.inp"), 2)
	assert.Error(t, err)
}

func TestParse_WorkerCountDoesNotChangeResult(t *testing.T) {
	one, err := Parse(filepath.Join("testdata", "net9.inp"), 1)
	require.NoError(t, err)
	many, err := Parse(filepath.Join("testdata", "net9.inp"), 8)
	require.NoError(t, err)
	assert.True(t, one.Equal(many))
}

func TestCache_RoundTripAndStaleness(t *testing.T) {
	doc := copyDoc(t, "net9.inp")
	cache := NewCache(doc)
	assert.Equal(t, doc+".cache", cache.Path())

	_, err := cache.Load()
	assert.ErrorIs(t, err, ErrCacheMiss)

	topo, err := Parse(doc, 2)
	require.NoError(t, err)
	require.NoError(t, cache.Store(topo))

	loaded, err := cache.Load()
	require.NoError(t, err)
	assert.True(t, topo.Equal(loaded))
	idx, ok := loaded.NodeIndex("12")
	assert.True(t, ok)
	assert.Equal(t, 3, idx)

	// Touching the document invalidates the entry.
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(doc, later, later))
	_, err = cache.Load()
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCache_CorruptFileIsMiss(t *testing.T) {
	doc := copyDoc(t, "net9.inp")
	cache := NewCache(doc)
	require.NoError(t, os.WriteFile(cache.Path(), []byte("not snappy"), 0o644))

	_, err := cache.Load()
	assert.ErrorIs(t, err, ErrCacheMiss)
	require.NoError(t, cache.Remove())
	require.NoError(t, cache.Remove())
}

func TestDocumentProvider_StoresThenHits(t *testing.T) {
	doc := copyDoc(t, "net9.inp")
	p := NewDocumentProvider(doc, logging.NewNopLogger())

	first, err := p.Topology()
	require.NoError(t, err)
	_, err = os.Stat(doc + ".cache")
	require.NoError(t, err)

	second, err := p.Topology()
	require.NoError(t, err)
	assert.True(t, first.Equal(second))
}

func TestEngineProvider(t *testing.T) {
	h := engine.NewHandle(enginetest.New(enginetest.Net9()))
	require.NoError(t, h.CreateProject())
	require.NoError(t, h.Open("a", "b", "c"))

	topo, err := EngineProvider{Handle: h}.Topology()
	require.NoError(t, err)
	assert.Equal(t, []string{"10", "11", "12", "13", "21", "22", "23", "9", "2"}, topo.NodeIDs())
	assert.Equal(t, []string{"10", "9", "V1"}, topo.LinkIDs())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "junction", Junction.String())
	assert.Equal(t, "valve", Valve.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
