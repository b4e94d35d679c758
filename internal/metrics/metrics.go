// Package metrics exposes Prometheus instrumentation for the analysis
// pipeline, the model clients and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ade-signal-mcp-server/internal/domain"
)

const namespace = "ade_signal"

// Metrics holds every collector on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	analyses         *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	extracted        *prometheus.CounterVec
	adverseEvents    *prometheus.CounterVec
	failures         *prometheus.CounterVec
	modelRequests    *prometheus.CounterVec
	modelDuration    *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry, along with the process
// and Go runtime collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
		collectors.NewGoCollector(),
	)

	m := &Metrics{
		registry: registry,
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Conversation analyses by outcome.",
		}, []string{"status"}),
		analysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "End-to-end analysis latency.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		extracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extracted_terms_total",
			Help:      "Deduplicated terms extracted, by kind.",
		}, []string{"kind"}),
		adverseEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adverse_event_candidates_total",
			Help:      "Adverse event candidates by reference severity.",
		}, []string{"severity"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "component_failures_total",
			Help:      "Non-fatal pipeline component failures.",
		}, []string{"component"}),
		modelRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_requests_total",
			Help:      "Requests to external model endpoints by outcome.",
		}, []string{"model", "status"}),
		modelDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_request_duration_seconds",
			Help:      "External model request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"model"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_cache_lookups_total",
			Help:      "Prediction cache lookups by tier and result.",
		}, []string{"tier", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP API requests.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	registry.MustRegister(
		m.analyses, m.analysisDuration, m.extracted, m.adverseEvents, m.failures,
		m.modelRequests, m.modelDuration, m.cacheLookups, m.httpRequests, m.httpDuration,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveAnalysis records one completed analysis.
func (m *Metrics) ObserveAnalysis(result *domain.AnalysisResult, elapsed time.Duration) {
	if m == nil || result == nil {
		return
	}
	status := "ok"
	if result.IsDegraded() {
		status = "degraded"
	}
	m.analyses.WithLabelValues(status).Inc()
	m.analysisDuration.Observe(elapsed.Seconds())
	m.extracted.WithLabelValues("medicine").Add(float64(len(result.ExtractedMedicines)))
	m.extracted.WithLabelValues("symptom").Add(float64(len(result.ExtractedSymptoms)))
	for _, event := range result.AdverseEvents {
		m.adverseEvents.WithLabelValues(event.Severity.String()).Inc()
	}
	for _, failure := range result.Degraded {
		m.failures.WithLabelValues(failure.Component).Inc()
	}
}

// ObserveModelRequest records one call to an external model endpoint.
func (m *Metrics) ObserveModelRequest(model string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.modelRequests.WithLabelValues(model, status).Inc()
	m.modelDuration.WithLabelValues(model).Observe(elapsed.Seconds())
}

// ObserveCacheLookup records a prediction cache hit or miss for a tier.
func (m *Metrics) ObserveCacheLookup(tier string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(tier, result).Inc()
}

// ObserveHTTPRequest records one served API request.
func (m *Metrics) ObserveHTTPRequest(method, route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
