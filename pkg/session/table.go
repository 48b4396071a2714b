package session

import (
	"fmt"
	"math"
)

// PressureTable is a time-indexed pressure result: one row per recorded
// period, one column per node in engine order.
type PressureTable struct {
	Times   []int64
	NodeIDs []string
	Values  [][]float64

	pos map[string]int
}

func newPressureTable(nodeIDs []string, pos map[string]int) *PressureTable {
	return &PressureTable{NodeIDs: nodeIDs, pos: pos}
}

func (p *PressureTable) append(t int64, row []float64) {
	p.Times = append(p.Times, t)
	p.Values = append(p.Values, append([]float64(nil), row...))
}

// Len returns the number of rows.
func (p *PressureTable) Len() int { return len(p.Times) }

// Column returns the series of node id.
func (p *PressureTable) Column(id string) ([]float64, bool) {
	j, ok := p.pos[id]
	if !ok {
		return nil, false
	}
	col := make([]float64, len(p.Values))
	for i, row := range p.Values {
		col[i] = row[j]
	}
	return col, true
}

// Row returns the pressures recorded at elapsed time t.
func (p *PressureTable) Row(t int64) ([]float64, bool) {
	for i, ts := range p.Times {
		if ts == t {
			return p.Values[i], true
		}
	}
	return nil, false
}

// At returns the pressure of node id at elapsed time t.
func (p *PressureTable) At(t int64, id string) (float64, bool) {
	row, ok := p.Row(t)
	if !ok {
		return 0, false
	}
	j, ok := p.pos[id]
	if !ok {
		return 0, false
	}
	return row[j], true
}

// MaxAbsDiff returns the largest absolute element-wise difference between
// two tables of the same shape.
func (p *PressureTable) MaxAbsDiff(o *PressureTable) (float64, error) {
	if len(p.Values) != len(o.Values) {
		return 0, fmt.Errorf("row count differs: %d vs %d", len(p.Values), len(o.Values))
	}
	worst := 0.0
	for i := range p.Values {
		a, b := p.Values[i], o.Values[i]
		if len(a) != len(b) {
			return 0, fmt.Errorf("row %d width differs: %d vs %d", i, len(a), len(b))
		}
		if p.Times[i] != o.Times[i] {
			return 0, fmt.Errorf("row %d time differs: %d vs %d", i, p.Times[i], o.Times[i])
		}
		for j := range a {
			worst = math.Max(worst, math.Abs(a[j]-b[j]))
		}
	}
	return worst, nil
}
