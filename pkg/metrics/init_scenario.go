package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initScenarioMetrics() {
	r.ScenariosTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydro_scenarios_total",
			Help: "Total number of scenarios run",
		},
		[]string{"mode", "status"},
	)

	r.ScenarioDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hydro_scenario_duration_seconds",
			Help:    "Wall-clock scenario duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"mode"},
	)

	r.StepsRecordedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydro_steps_recorded_total",
			Help: "Total number of recorded hydraulic periods",
		},
		[]string{"mode"},
	)

	r.BaselineRestores = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "hydro_baseline_restores_total",
			Help: "Total number of baseline snapshot restores",
		},
	)

	r.OverridesDroppedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydro_overrides_dropped_total",
			Help: "Override entries dropped because their ID is unknown",
		},
		[]string{"class"},
	)
}
