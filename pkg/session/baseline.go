package session

import (
	"fmt"

	"github.com/dd0wney/hydroturbo/pkg/engine"
)

// baseline is the engine input state captured right after the solver was
// opened. It is never written after capture.
type baseline struct {
	demand  []float64
	status  []float64
	setting []float64
}

func captureBaseline(h *engine.Handle, nodes, links int) (baseline, error) {
	b := baseline{
		demand:  make([]float64, nodes),
		status:  make([]float64, links),
		setting: make([]float64, links),
	}
	if err := h.AllNodeValues(engine.NodeBaseDemand, b.demand); err != nil {
		return b, fmt.Errorf("read base demands: %w", err)
	}
	if err := h.AllLinkValues(engine.LinkInitStatus, b.status); err != nil {
		return b, fmt.Errorf("read initial status: %w", err)
	}
	if err := h.AllLinkValues(engine.LinkInitSetting, b.setting); err != nil {
		return b, fmt.Errorf("read initial settings: %w", err)
	}
	return b, nil
}

// restore writes the snapshot back in demand, status, setting order.
// Only setting writes skip links without an applicable parameter; every
// link has a status, so a status write is never tolerated.
func (b baseline) restore(h *engine.Handle, nodeIdx, linkIdx []int32) error {
	if err := h.SetNodeValues(engine.NodeBaseDemand, nodeIdx, b.demand); err != nil {
		return fmt.Errorf("restore base demands: %w", err)
	}
	if err := h.SetLinkValues(engine.LinkInitStatus, linkIdx, b.status); err != nil {
		return fmt.Errorf("restore initial status: %w", err)
	}
	if err := h.SetLinkValues(engine.LinkInitSetting, linkIdx, b.setting, engine.StatusInvalidParam); err != nil {
		return fmt.Errorf("restore initial settings: %w", err)
	}
	return nil
}
