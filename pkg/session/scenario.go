package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/dd0wney/hydroturbo/pkg/engine"
	"github.com/dd0wney/hydroturbo/pkg/logging"
	"github.com/dd0wney/hydroturbo/pkg/metrics"
)

// Override classes, as reported in logs and metrics.
const (
	classDemand  = "demand"
	classStatus  = "status"
	classSetting = "setting"
)

// RunScenario runs one simulation and returns node pressures for every
// hydraulic period. The solver stays open across scenarios; only its state
// is re-initialized.
//
// A fatal engine status aborts the scenario. The context remains usable and
// the next scenario starts from the baseline again.
func (c *Context) RunScenario(opts ScenarioOptions) (table *PressureTable, err error) {
	if c.closed {
		return nil, ErrClosed
	}
	logger := c.logger.With(logging.Scenario(metrics.ModeMemory))
	started := time.Now()
	defer func() {
		c.finish(metrics.ModeMemory, err, time.Since(started))
		if table != nil {
			c.metrics.RecordSteps(metrics.ModeMemory, table.Len())
		}
	}()

	if err := c.prepare(opts, logger); err != nil {
		return nil, err
	}

	limit := seconds(opts.Duration)
	table = newPressureTable(c.topo.NodeIDs(), c.nodePos)
	for {
		t, err := c.h.RunH()
		if err != nil {
			return nil, fmt.Errorf("advance hydraulics at t=%d: %w", c.lastTime(table), err)
		}
		if err := c.h.AllNodeValues(engine.NodePressure, c.pressure); err != nil {
			return nil, fmt.Errorf("read pressures at t=%d: %w", t, err)
		}
		table.append(t, c.pressure)

		if limit > 0 && t >= limit {
			break
		}
		step, err := c.h.NextH()
		if err != nil {
			return nil, fmt.Errorf("next hydraulic step after t=%d: %w", t, err)
		}
		if step <= 0 {
			break
		}
	}
	logger.Debug("scenario complete", logging.Count(table.Len()), logging.Latency(time.Since(started)))
	return table, nil
}

func (c *Context) lastTime(p *PressureTable) int64 {
	if n := len(p.Times); n > 0 {
		return p.Times[n-1]
	}
	return 0
}

// prepare resets the engine, applies overrides and initializes hydraulics.
func (c *Context) prepare(opts ScenarioOptions, logger logging.Logger) error {
	if opts.Reset == RestoreBaseline {
		if err := c.base.restore(c.h, c.nodeIdx, c.linkIdx); err != nil {
			return err
		}
		c.metrics.RecordBaselineRestore()
	}
	if err := c.applyOverrides(opts.Overrides, logger); err != nil {
		return err
	}
	if err := c.h.InitH(engine.InitNoSave); err != nil {
		return fmt.Errorf("initialize hydraulics: %w", err)
	}
	return nil
}

// applyOverrides writes demands, then status, then settings. Each class is
// one batched call when the engine supports it.
func (c *Context) applyOverrides(o Overrides, logger logging.Logger) error {
	if o.Empty() {
		return nil
	}

	idx, vals, dropped := c.xlate.translate(o.Demands, c.topo.NodeIndex)
	c.dropped(classDemand, dropped, logger)
	if err := c.h.SetNodeValues(engine.NodeBaseDemand, idx, vals); err != nil {
		return fmt.Errorf("apply demand overrides: %w", err)
	}

	idx, vals, dropped = c.xlate.translate(o.Status, c.topo.LinkIndex)
	c.dropped(classStatus, dropped, logger)
	if err := c.h.SetLinkValues(engine.LinkInitStatus, idx, vals); err != nil {
		return fmt.Errorf("apply status overrides: %w", err)
	}

	idx, vals, dropped = c.xlate.translate(o.Settings, c.topo.LinkIndex)
	c.dropped(classSetting, dropped, logger)
	if err := c.h.SetLinkValues(engine.LinkInitSetting, idx, vals, engine.StatusInvalidParam); err != nil {
		return fmt.Errorf("apply setting overrides: %w", err)
	}
	return nil
}

func (c *Context) dropped(class string, n int, logger logging.Logger) {
	if n == 0 {
		return
	}
	logger.Debug("dropped overrides for unknown ids", logging.String("class", class), logging.Count(n))
	c.metrics.RecordOverridesDropped(class, n)
}

// finish records the outcome of one scenario.
func (c *Context) finish(mode string, err error, d time.Duration) {
	c.metrics.RecordScenario(mode, err, d)
	if err == nil {
		return
	}
	var ee *engine.EngineError
	if errors.As(err, &ee) {
		c.metrics.RecordEngineError(ee.Call)
	}
	c.logger.Error("scenario failed", logging.Scenario(mode), logging.Error(err), logging.Latency(d))
}
