// Package metrics holds the Prometheus collectors for scenario execution.
//
// All Record methods are safe to call on a nil *Registry, so components can
// take an optional registry without guarding every call site.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all metrics for the application
type Registry struct {
	// Scenario Metrics
	ScenariosTotal        *prometheus.CounterVec
	ScenarioDuration      *prometheus.HistogramVec
	StepsRecordedTotal    *prometheus.CounterVec
	BaselineRestores      prometheus.Counter
	OverridesDroppedTotal *prometheus.CounterVec

	// Engine Metrics
	EngineWarningsTotal *prometheus.CounterVec
	EngineErrorsTotal   *prometheus.CounterVec
	SessionsOpen        prometheus.Gauge

	// Topology Metrics
	TopologyCacheTotal    *prometheus.CounterVec
	TopologyParseDuration prometheus.Histogram

	// Process Metrics
	UptimeSeconds    prometheus.Gauge
	Goroutines       prometheus.Gauge
	HeapAllocBytes   prometheus.Gauge
	SysBytes         prometheus.Gauge
	SolverThreads    prometheus.Gauge
	ScenariosPending prometheus.Gauge

	registry *prometheus.Registry
	mu       sync.Mutex
}

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}

	r.initScenarioMetrics()
	r.initEngineMetrics()
	r.initTopologyMetrics()
	r.initProcessMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
