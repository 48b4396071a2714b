package session

import (
	"time"

	"github.com/dd0wney/hydroturbo/pkg/logging"
	"github.com/dd0wney/hydroturbo/pkg/metrics"
	"github.com/dd0wney/hydroturbo/pkg/stream"
	"github.com/dd0wney/hydroturbo/pkg/topology"
)

// ResetPolicy selects what happens to engine state before a scenario.
type ResetPolicy int

const (
	// RestoreBaseline rewrites the captured baseline before applying
	// overrides, isolating every scenario from the previous one.
	RestoreBaseline ResetPolicy = iota
	// Continue applies overrides on top of whatever the engine holds.
	// Scenarios are no longer isolated; later writes win.
	Continue
)

func (p ResetPolicy) String() string {
	if p == Continue {
		return "continue"
	}
	return "restore_baseline"
}

// Overrides are sparse per-scenario changes keyed by element ID. IDs the
// network does not contain are dropped.
type Overrides struct {
	// Demands sets junction base demands.
	Demands map[string]float64
	// Status sets initial link status (engine.LinkOpen or engine.LinkClosed).
	Status map[string]float64
	// Settings sets initial link settings (pump speed, valve setting).
	Settings map[string]float64
}

// Empty reports whether o changes nothing.
func (o Overrides) Empty() bool {
	return len(o.Demands) == 0 && len(o.Status) == 0 && len(o.Settings) == 0
}

// ScenarioOptions configures one in-memory scenario.
type ScenarioOptions struct {
	Overrides Overrides
	// Duration caps simulated time; zero runs to the engine's own end.
	Duration time.Duration
	Reset    ResetPolicy
}

// StreamOptions configures one streamed scenario.
type StreamOptions struct {
	ScenarioOptions
	// ReportInterval between recorded periods; zero selects the engine's
	// report step, then its hydraulic step, then one hour.
	ReportInterval time.Duration
	Format         stream.Format
}

// Option configures a Context at Open.
type Option func(*options)

type options struct {
	logger   logging.Logger
	metrics  *metrics.Registry
	provider topology.Provider
	tempRoot string
	perIndex bool
}

// WithLogger sets the context logger.
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records scenario metrics into r.
func WithMetrics(r *metrics.Registry) Option {
	return func(o *options) { o.metrics = r }
}

// WithTopologyProvider supplies IDs from p instead of querying the engine.
// Its counts must match the engine's.
func WithTopologyProvider(p topology.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithTempDir sets the parent directory of the context's scratch directory.
func WithTempDir(dir string) Option {
	return func(o *options) { o.tempRoot = dir }
}

// WithPerIndexAccess disables batched accessors even when the engine
// exports them.
func WithPerIndexAccess() Option {
	return func(o *options) { o.perIndex = true }
}
