package metrics

import (
	"context"
	"runtime"
	"time"
)

// Scenario modes.
const (
	ModeMemory = "memory"
	ModeStream = "stream"
)

// RecordScenario records a finished scenario with its duration
func (r *Registry) RecordScenario(mode string, err error, duration time.Duration) {
	if r == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	r.ScenariosTotal.WithLabelValues(mode, status).Inc()
	r.ScenarioDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordSteps adds n recorded periods
func (r *Registry) RecordSteps(mode string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.StepsRecordedTotal.WithLabelValues(mode).Add(float64(n))
}

// RecordBaselineRestore counts one snapshot restore
func (r *Registry) RecordBaselineRestore() {
	if r == nil {
		return
	}
	r.BaselineRestores.Inc()
}

// RecordOverridesDropped counts override entries with unknown IDs
func (r *Registry) RecordOverridesDropped(class string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.OverridesDroppedTotal.WithLabelValues(class).Add(float64(n))
}

// RecordEngineWarning counts a warning status from call
func (r *Registry) RecordEngineWarning(call string) {
	if r == nil {
		return
	}
	r.EngineWarningsTotal.WithLabelValues(call).Inc()
}

// RecordEngineError counts a fatal status from call
func (r *Registry) RecordEngineError(call string) {
	if r == nil {
		return
	}
	r.EngineErrorsTotal.WithLabelValues(call).Inc()
}

// SessionOpened and SessionClosed track live contexts
func (r *Registry) SessionOpened() {
	if r == nil {
		return
	}
	r.SessionsOpen.Inc()
}

func (r *Registry) SessionClosed() {
	if r == nil {
		return
	}
	r.SessionsOpen.Dec()
}

// RecordTopologyCache records a cache lookup result ("hit", "miss", "store_error")
func (r *Registry) RecordTopologyCache(result string) {
	if r == nil {
		return
	}
	r.TopologyCacheTotal.WithLabelValues(result).Inc()
}

// RecordTopologyParse records a full document parse
func (r *Registry) RecordTopologyParse(duration time.Duration) {
	if r == nil {
		return
	}
	r.TopologyParseDuration.Observe(duration.Seconds())
}

// UpdateSystemMetrics samples the process gauges once.
func (r *Registry) UpdateSystemMetrics(started time.Time) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	r.UptimeSeconds.Set(time.Since(started).Seconds())
	r.Goroutines.Set(float64(runtime.NumGoroutine()))
	r.HeapAllocBytes.Set(float64(m.Alloc))
	r.SysBytes.Set(float64(m.Sys))
}

// DefaultRefreshInterval is how often RefreshProcessMetrics samples.
const DefaultRefreshInterval = 10 * time.Second

// RefreshProcessMetrics samples the process gauges immediately and then
// every interval until ctx is done.
func (r *Registry) RefreshProcessMetrics(ctx context.Context, started time.Time, interval time.Duration) {
	if r == nil {
		return
	}
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		r.UpdateSystemMetrics(started)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SetSolverThreads records the requested engine thread count.
func (r *Registry) SetSolverThreads(n int) {
	if r == nil {
		return
	}
	r.SolverThreads.Set(float64(n))
}

// SetScenariosPending records how many scenarios of the batch remain.
func (r *Registry) SetScenariosPending(n int) {
	if r == nil {
		return
	}
	r.ScenariosPending.Set(float64(n))
}
