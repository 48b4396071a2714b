package session

import (
	"cmp"
	"slices"
)

type indexed struct {
	idx int32
	val float64
}

// translator turns ID-keyed overrides into index-ordered slices. Its
// buffers grow to the largest override set seen and are then reused.
type translator struct {
	pairs []indexed
	idx   []int32
	vals  []float64
}

// translate resolves m through lookup. The returned slices alias the
// translator's buffers and are valid until the next call.
func (t *translator) translate(m map[string]float64, lookup func(string) (int, bool)) (idx []int32, vals []float64, dropped int) {
	t.pairs = t.pairs[:0]
	for id, v := range m {
		i, ok := lookup(id)
		if !ok {
			dropped++
			continue
		}
		t.pairs = append(t.pairs, indexed{idx: int32(i), val: v})
	}
	slices.SortFunc(t.pairs, func(a, b indexed) int { return cmp.Compare(a.idx, b.idx) })

	t.idx, t.vals = t.idx[:0], t.vals[:0]
	for _, p := range t.pairs {
		t.idx = append(t.idx, p.idx)
		t.vals = append(t.vals, p.val)
	}
	return t.idx, t.vals, dropped
}
