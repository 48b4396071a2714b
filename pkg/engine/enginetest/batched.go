package enginetest

import "github.com/dd0wney/hydroturbo/pkg/engine"

// Batched is a Fake that also exports the batched accessors and a solver
// profile, like a library built with the native extension.
type Batched struct {
	*Fake
	steps int32
}

// NewBatched returns a batched fake serving net.
func NewBatched(net Network) *Batched {
	return &Batched{Fake: New(net)}
}

func (b *Batched) RunH() (int64, engine.Status) {
	t, st := b.Fake.RunH()
	if !st.IsFatal() {
		b.steps++
	}
	return t, st
}

func (b *Batched) SetNodeValues(prop engine.NodeProperty, indices []int32, values []float64) engine.Status {
	if st := b.enter("SetNodeValues"); st != engine.StatusOK {
		return st
	}
	if len(values) < len(indices) {
		return engine.StatusIllegalValue
	}
	for i, idx := range indices {
		if st := b.setNode(int(idx), prop, values[i]); st != engine.StatusOK {
			return st
		}
	}
	return engine.StatusOK
}

func (b *Batched) SetLinkValues(prop engine.LinkProperty, indices []int32, values []float64) engine.Status {
	if st := b.enter("SetLinkValues"); st != engine.StatusOK {
		return st
	}
	if len(values) < len(indices) {
		return engine.StatusIllegalValue
	}
	for i, idx := range indices {
		if st := b.setLink(int(idx), prop, values[i]); st != engine.StatusOK {
			return st
		}
	}
	return engine.StatusOK
}

func (b *Batched) GetNodeValues(prop engine.NodeProperty, indices []int32, out []float64) engine.Status {
	if st := b.enter("GetNodeValues"); st != engine.StatusOK {
		return st
	}
	if len(out) < len(indices) {
		return engine.StatusIllegalValue
	}
	for i, idx := range indices {
		v, st := b.nodeValue(int(idx), prop)
		if st != engine.StatusOK {
			return st
		}
		out[i] = v
	}
	return engine.StatusOK
}

func (b *Batched) GetLinkValues(prop engine.LinkProperty, indices []int32, out []float64) engine.Status {
	if st := b.enter("GetLinkValues"); st != engine.StatusOK {
		return st
	}
	if len(out) < len(indices) {
		return engine.StatusIllegalValue
	}
	for i, idx := range indices {
		v, st := b.linkValue(int(idx), prop)
		if st != engine.StatusOK {
			return st
		}
		out[i] = v
	}
	return engine.StatusOK
}

func (b *Batched) GetAllNodeValues(prop engine.NodeProperty, out []float64) engine.Status {
	if st := b.enter("GetAllNodeValues"); st != engine.StatusOK {
		return st
	}
	if len(out) != len(b.net.Nodes) {
		return engine.StatusIllegalValue
	}
	for i := range out {
		v, st := b.nodeValue(i+1, prop)
		if st != engine.StatusOK {
			return st
		}
		out[i] = v
	}
	return engine.StatusOK
}

func (b *Batched) GetAllLinkValues(prop engine.LinkProperty, out []float64) engine.Status {
	if st := b.enter("GetAllLinkValues"); st != engine.StatusOK {
		return st
	}
	if len(out) != len(b.net.Links) {
		return engine.StatusIllegalValue
	}
	for i := range out {
		v, st := b.linkValue(i+1, prop)
		if st != engine.StatusOK {
			return st
		}
		out[i] = v
	}
	return engine.StatusOK
}

// Profile reports a synthetic timing breakdown proportional to the number
// of solved periods.
func (b *Batched) Profile() (engine.Profile, engine.Status) {
	if st := b.enter("Profile"); st != engine.StatusOK {
		return engine.Profile{}, st
	}
	n := float64(b.steps)
	return engine.Profile{
		Total:       n * 1e-3,
		Assemble:    n * 3e-4,
		LinearSolve: n * 4e-4,
		Headloss:    n * 1e-4,
		Convergence: n * 5e-5,
		StepCount:   b.steps,
		IterCount:   b.steps * 3,
	}, engine.StatusOK
}

var (
	_ engine.Library       = (*Batched)(nil)
	_ engine.BatchAccessor = (*Batched)(nil)
	_ engine.Profiler      = (*Batched)(nil)
)
