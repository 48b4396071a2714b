package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// initProcessMetrics registers gauges describing the simulator process
// while a batch runs. They are sampled, not event driven; see
// RefreshProcessMetrics.
func (r *Registry) initProcessMetrics() {
	r.UptimeSeconds = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "hydro_process_uptime_seconds",
			Help: "Seconds since the simulator started its batch",
		},
	)

	r.Goroutines = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "hydro_process_goroutines",
			Help: "Goroutines in the simulator, including metrics serving",
		},
	)

	r.HeapAllocBytes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "hydro_process_heap_alloc_bytes",
			Help: "Go heap in use; excludes memory held by the engine library",
		},
	)

	r.SysBytes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "hydro_process_sys_bytes",
			Help: "Memory the Go runtime obtained from the OS",
		},
	)

	r.SolverThreads = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "hydro_solver_threads",
			Help: "OpenMP threads requested for the engine library (0 = library default)",
		},
	)

	r.ScenariosPending = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "hydro_batch_scenarios_pending",
			Help: "Scenarios of the current batch not yet finished",
		},
	)
}
