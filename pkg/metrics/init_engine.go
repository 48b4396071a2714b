package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initEngineMetrics() {
	r.EngineWarningsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydro_engine_warnings_total",
			Help: "Engine warning statuses by entry point",
		},
		[]string{"call"},
	)

	r.EngineErrorsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydro_engine_errors_total",
			Help: "Fatal engine statuses by entry point",
		},
		[]string{"call"},
	)

	r.SessionsOpen = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "hydro_sessions_open",
			Help: "Number of open model execution contexts",
		},
	)
}
