package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ade-signal-mcp-server/internal/domain"
)

func TestObserveAnalysis(t *testing.T) {
	m := New()

	result := &domain.AnalysisResult{
		ExtractedMedicines: []string{"aspirin", "ibuprofen"},
		ExtractedSymptoms:  []string{"nausea"},
		AdverseEvents: []domain.AdverseEventCandidate{
			{Medicine: "aspirin", Severity: domain.SeverityCritical},
		},
		Degraded: []domain.ComponentFailure{{Component: domain.ComponentSeverityScorer}},
	}
	m.ObserveAnalysis(result, 20*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.analyses.WithLabelValues("degraded")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.extracted.WithLabelValues("medicine")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.extracted.WithLabelValues("symptom")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.adverseEvents.WithLabelValues("Critical")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("severity_scorer")))
}

func TestObserveModelRequestAndCache(t *testing.T) {
	m := New()

	m.ObserveModelRequest("ner", nil, time.Millisecond)
	m.ObserveModelRequest("ner", errors.New("boom"), time.Millisecond)
	m.ObserveCacheLookup("memory", true)
	m.ObserveCacheLookup("memory", false)
	m.ObserveCacheLookup("memory", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.modelRequests.WithLabelValues("ner", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.modelRequests.WithLabelValues("ner", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("memory", "miss")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAnalysis(&domain.AnalysisResult{}, time.Second)
		m.ObserveModelRequest("classifier", nil, time.Second)
		m.ObserveCacheLookup("redis", true)
		m.ObserveHTTPRequest("GET", "/health", 200, time.Second)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveHTTPRequest("POST", "/api/v1/analyze", 200, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ade_signal_http_requests_total{code="200",method="POST",route="/api/v1/analyze"} 1`)
}
