// Package observability collects Prometheus metrics for the application.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus registry and application metrics.
type Metrics struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
	gateDecisions    *prometheus.CounterVec
	loadTransitions  *prometheus.CounterVec
	boardActions     *prometheus.CounterVec
	manifestOutcomes *prometheus.CounterVec
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dropzone_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dropzone_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dropzone_http_requests_in_flight",
		Help: "Requests currently being served.",
	})
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dropzone_authz_gate_decisions_total",
		Help: "Access gate outcomes by decision.",
	}, []string{"decision"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dropzone_load_transitions_total",
		Help: "Load status transitions applied by the sweep.",
	}, []string{"to"})
	board := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dropzone_board_actions_total",
		Help: "Manifest board assignments and removals.",
	}, []string{"action"})
	manifests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dropzone_manifest_decisions_total",
		Help: "Manifest review outcomes.",
	}, []string{"outcome"})
	registry.MustRegister(requests, duration, inFlight, decisions, transitions, board, manifests)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		requestsInFlight: inFlight,
		gateDecisions:    decisions,
		loadTransitions:  transitions,
		boardActions:     board,
		manifestOutcomes: manifests,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.requestsInFlight.Inc()
		defer m.requestsInFlight.Dec()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveGateDecision counts one access gate evaluation.
func (m *Metrics) ObserveGateDecision(decision string) {
	if m == nil {
		return
	}
	m.gateDecisions.WithLabelValues(decision).Inc()
}

// ObserveLoadTransition counts one automatic load status change.
func (m *Metrics) ObserveLoadTransition(to string) {
	if m == nil {
		return
	}
	m.loadTransitions.WithLabelValues(to).Inc()
}

// ObserveBoardAction counts one manifest board assign or remove.
func (m *Metrics) ObserveBoardAction(action string) {
	if m == nil {
		return
	}
	m.boardActions.WithLabelValues(action).Inc()
}

// ObserveManifestDecision counts one manifest approval or decline.
func (m *Metrics) ObserveManifestDecision(outcome string) {
	if m == nil {
		return
	}
	m.manifestOutcomes.WithLabelValues(outcome).Inc()
}

// Registerer exposes the registry for registering custom metrics.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
