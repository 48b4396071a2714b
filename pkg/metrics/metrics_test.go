package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var metric dto.Metric
	if err := g.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	return metric.Gauge.GetValue()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	return metric.Counter.GetValue()
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}

	if r.ScenariosTotal == nil {
		t.Error("ScenariosTotal not initialized")
	}
	if r.TopologyCacheTotal == nil {
		t.Error("TopologyCacheTotal not initialized")
	}
	if r.EngineWarningsTotal == nil {
		t.Error("EngineWarningsTotal not initialized")
	}
	if r.registry == nil {
		t.Error("Prometheus registry not initialized")
	}
}

func TestDefaultRegistry(t *testing.T) {
	r1 := DefaultRegistry()
	r2 := DefaultRegistry()

	if r1 != r2 {
		t.Error("DefaultRegistry() should return the same instance")
	}
}

func TestRecordScenario(t *testing.T) {
	r := NewRegistry()

	r.RecordScenario(ModeMemory, nil, 10*time.Millisecond)
	r.RecordScenario(ModeMemory, nil, 20*time.Millisecond)
	r.RecordScenario(ModeStream, errors.New("boom"), 5*time.Millisecond)

	ok, err := r.ScenariosTotal.GetMetricWithLabelValues(ModeMemory, "success")
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}
	if got := counterValue(t, ok); got != 2 {
		t.Errorf("Success counter = %v, want 2", got)
	}

	failed, err := r.ScenariosTotal.GetMetricWithLabelValues(ModeStream, "error")
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}
	if got := counterValue(t, failed); got != 1 {
		t.Errorf("Error counter = %v, want 1", got)
	}
}

func TestRecordCounters(t *testing.T) {
	r := NewRegistry()

	r.RecordSteps(ModeStream, 25)
	r.RecordSteps(ModeStream, 0)
	r.RecordBaselineRestore()
	r.RecordOverridesDropped("demand", 3)
	r.RecordEngineWarning("EN_runH")
	r.RecordTopologyCache("hit")

	steps, _ := r.StepsRecordedTotal.GetMetricWithLabelValues(ModeStream)
	if got := counterValue(t, steps); got != 25 {
		t.Errorf("Steps = %v, want 25", got)
	}
	if got := counterValue(t, r.BaselineRestores); got != 1 {
		t.Errorf("Restores = %v, want 1", got)
	}
	dropped, _ := r.OverridesDroppedTotal.GetMetricWithLabelValues("demand")
	if got := counterValue(t, dropped); got != 3 {
		t.Errorf("Dropped = %v, want 3", got)
	}
	warnings, _ := r.EngineWarningsTotal.GetMetricWithLabelValues("EN_runH")
	if got := counterValue(t, warnings); got != 1 {
		t.Errorf("Warnings = %v, want 1", got)
	}
}

func TestNilRegistryIsNoop(t *testing.T) {
	var r *Registry
	r.RecordScenario(ModeMemory, nil, time.Second)
	r.RecordSteps(ModeMemory, 1)
	r.RecordBaselineRestore()
	r.RecordOverridesDropped("status", 1)
	r.RecordEngineWarning("EN_runH")
	r.RecordEngineError("EN_runH")
	r.SessionOpened()
	r.SessionClosed()
	r.RecordTopologyCache("miss")
	r.RecordTopologyParse(time.Second)
	r.UpdateSystemMetrics(time.Now())
	r.RefreshProcessMetrics(context.Background(), time.Now(), time.Millisecond)
	r.SetSolverThreads(4)
	r.SetScenariosPending(2)
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := NewRegistry()
	r.RecordScenario(ModeMemory, nil, time.Millisecond)
	r.UpdateSystemMetrics(time.Now().Add(-time.Minute))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	text := string(body)
	for _, name := range []string{"hydro_scenarios_total", "hydro_process_uptime_seconds", "hydro_process_goroutines", "hydro_solver_threads"} {
		if !strings.Contains(text, name) {
			t.Errorf("exposition missing %s", name)
		}
	}
}

func TestRefreshProcessMetrics(t *testing.T) {
	r := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	started := time.Now().Add(-time.Hour)
	go func() {
		r.RefreshProcessMetrics(ctx, started, time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for gaugeValue(t, r.Goroutines) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("process gauges were never sampled")
		}
		time.Sleep(time.Millisecond)
	}
	first := gaugeValue(t, r.UptimeSeconds)
	if first < time.Hour.Seconds() {
		t.Errorf("UptimeSeconds = %v, want at least 3600", first)
	}

	// Later ticks keep moving uptime forward while the batch runs.
	deadline = time.Now().Add(5 * time.Second)
	for gaugeValue(t, r.UptimeSeconds) == first {
		if time.Now().After(deadline) {
			t.Fatal("process gauges were not refreshed")
		}
		time.Sleep(time.Millisecond)
	}
	if gaugeValue(t, r.HeapAllocBytes) <= 0 {
		t.Error("HeapAllocBytes was not sampled")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("refresh loop did not stop after cancel")
	}
}
