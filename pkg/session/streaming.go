package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/dd0wney/hydroturbo/pkg/engine"
	"github.com/dd0wney/hydroturbo/pkg/logging"
	"github.com/dd0wney/hydroturbo/pkg/metrics"
	"github.com/dd0wney/hydroturbo/pkg/stream"
)

// DefaultReportInterval applies when neither the caller nor the network
// defines a usable report or hydraulic step.
const DefaultReportInterval = 3600 * time.Second

// RunScenarioStreaming runs one simulation and writes node pressures and
// link flows at every report interval to a sink at path, returning the
// output's primary path. Memory use does not grow with the run length.
//
// The output is sized for floor(duration/interval)+1 periods. When the
// duration is not a multiple of the interval, the solver period that first
// reaches or passes the duration can fall outside that capacity; the dense
// form then omits it and is still finalized as complete. The append-stream
// form has no capacity and keeps it.
//
// If the run fails midway the output is closed without being finalized:
// the steps written so far stay readable and the metadata records the run
// as incomplete.
func (c *Context) RunScenarioStreaming(path string, opts StreamOptions) (out string, err error) {
	if c.closed {
		return "", ErrClosed
	}
	logger := c.logger.With(logging.Scenario(metrics.ModeStream), logging.Path(path))
	started := time.Now()
	var recorded int
	defer func() {
		c.finish(metrics.ModeStream, err, time.Since(started))
		c.metrics.RecordSteps(metrics.ModeStream, recorded)
	}()

	duration, interval, err := c.timing(opts)
	if err != nil {
		return "", err
	}

	if err := c.prepare(opts.ScenarioOptions, logger); err != nil {
		return "", err
	}

	sink, err := stream.Create(opts.Format, path, stream.Config{
		NodeIDs:        c.topo.NodeIDs(),
		LinkIDs:        c.topo.LinkIDs(),
		ReportInterval: int32(interval),
		Capacity:       int(duration/interval) + 1,
	})
	if err != nil {
		return "", fmt.Errorf("create output: %w", err)
	}

	recorded, err = c.streamLoop(sink, duration, interval, logger)
	if err != nil {
		if cerr := sink.Close(); cerr != nil {
			logger.Warn("close incomplete output", logging.Error(cerr))
		}
		return "", err
	}
	if err := sink.Finalize(); err != nil {
		sink.Close()
		return "", fmt.Errorf("finalize output: %w", err)
	}
	if err := sink.Close(); err != nil {
		return "", fmt.Errorf("close output: %w", err)
	}

	logger.Info("streamed scenario complete",
		logging.Count(recorded),
		logging.Int64("duration_s", duration),
		logging.Int64("interval_s", interval),
		logging.Latency(time.Since(started)),
	)
	return sink.Path(), nil
}

// timing resolves the effective duration and report interval in seconds.
func (c *Context) timing(opts StreamOptions) (duration, interval int64, err error) {
	duration = seconds(opts.Duration)
	if duration <= 0 {
		if duration, err = c.h.TimeParam(engine.TimeDuration); err != nil {
			return 0, 0, fmt.Errorf("read duration: %w", err)
		}
	}

	interval = seconds(opts.ReportInterval)
	if interval <= 0 {
		if interval, err = c.h.TimeParam(engine.TimeReportStep); err != nil {
			return 0, 0, fmt.Errorf("read report step: %w", err)
		}
	}
	if interval <= 0 {
		if interval, err = c.h.TimeParam(engine.TimeHydStep); err != nil {
			return 0, 0, fmt.Errorf("read hydraulic step: %w", err)
		}
	}
	if interval <= 0 {
		interval = seconds(DefaultReportInterval)
	}
	if duration < 0 {
		duration = 0
	}
	return duration, interval, nil
}

// streamLoop advances the solver and hands a full pressure and flow vector
// to sink whenever at least interval seconds passed since the last record.
// A full sink stops recording but not the simulation.
func (c *Context) streamLoop(sink stream.Sink, duration, interval int64, logger logging.Logger) (int, error) {
	var (
		last     = -interval
		recorded int
		full     bool
	)
	for {
		t, err := c.h.RunH()
		if err != nil {
			return recorded, fmt.Errorf("advance hydraulics after t=%d: %w", max(last, 0), err)
		}

		if !full && t-last >= interval {
			if err := c.h.AllNodeValues(engine.NodePressure, c.pressure); err != nil {
				return recorded, fmt.Errorf("read pressures at t=%d: %w", t, err)
			}
			if err := c.h.AllLinkValues(engine.LinkFlow, c.flow); err != nil {
				return recorded, fmt.Errorf("read flows at t=%d: %w", t, err)
			}
			switch err := sink.WriteStep(t, c.pressure, c.flow); {
			case err == nil:
				recorded++
				last = t
			case errors.Is(err, stream.ErrSinkFull):
				full = true
				logger.Warn("output is full, no further periods recorded",
					logging.SimTime(t), logging.Count(recorded))
			default:
				return recorded, fmt.Errorf("write period at t=%d: %w", t, err)
			}
		}

		if duration > 0 && t >= duration {
			break
		}
		step, err := c.h.NextH()
		if err != nil {
			return recorded, fmt.Errorf("next hydraulic step after t=%d: %w", t, err)
		}
		if step <= 0 {
			break
		}
	}
	return recorded, nil
}
