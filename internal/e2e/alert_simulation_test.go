package e2e

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	jobmetrics "github.com/dropzone-hq/dropzone/internal/jobs"
	"github.com/dropzone-hq/dropzone/internal/observability"
	"github.com/dropzone-hq/dropzone/jobs"
)

// The alert rules under deploy/prometheus fire on series this process
// exports. Each test below produces one alert's condition and checks the
// series its expression queries.

func TestHighErrorRateInputsEmitted(t *testing.T) {
	metrics := observability.NewMetrics()
	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Get("/loads", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/loads", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
	}

	families := gatherAppMetrics(t, metrics)
	if !assertCounter(t, families, "dropzone_http_requests_total", map[string]string{"route": "/loads", "code": "500"}, 3) {
		t.Fatalf("expected three 500s recorded for /loads")
	}
	if !metricExists(families, "dropzone_http_request_duration_seconds") {
		t.Fatalf("expected request durations for the latency alert")
	}
}

func TestJobAlertInputsEmitted(t *testing.T) {
	obs := observability.NewMetrics()
	metrics := jobmetrics.NewMetrics(obs.Registerer())

	if err := metrics.Track(jobs.TaskLoadStatusSweep).End(errors.New("sweep failed")); err == nil {
		t.Fatal("expected the tracked error back")
	}
	if err := metrics.Track(jobs.TaskLoadStatusSweep).End(nil); err != nil {
		t.Fatalf("clean run: %v", err)
	}

	families := gatherAppMetrics(t, obs)
	if !assertCounter(t, families, "dropzone_jobs_failures_total", map[string]string{"job": jobs.TaskLoadStatusSweep}, 1) {
		t.Fatalf("expected one recorded failure for the sweep")
	}
	if !assertCounter(t, families, "dropzone_jobs_total", map[string]string{"job": jobs.TaskLoadStatusSweep, "status": "failure"}, 1) {
		t.Fatalf("expected the failed run in the run counter")
	}
	if !assertCounter(t, families, "dropzone_jobs_total", map[string]string{"job": jobs.TaskLoadStatusSweep, "status": "success"}, 1) {
		t.Fatalf("expected the clean run in the run counter")
	}
}

func gatherAppMetrics(t *testing.T, m *observability.Metrics) []*dto.MetricFamily {
	t.Helper()
	gatherer, ok := m.Registerer().(prometheus.Gatherer)
	if !ok {
		t.Fatal("metrics registry is not gatherable")
	}
	families, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	return families
}
