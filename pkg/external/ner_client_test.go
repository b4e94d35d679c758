package external

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ade-signal-mcp-server/internal/domain"
	"github.com/ade-signal-mcp-server/internal/metrics"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func testEndpoint(url string) domain.ModelEndpointConfig {
	return domain.ModelEndpointConfig{
		BaseURL:   url,
		Timeout:   2 * time.Second,
		RateLimit: 1000,
		Burst:     10,
	}
}

func TestNewNERClient_InvalidURL(t *testing.T) {
	for _, url := range []string{"", "   ", "not a url", "localhost:8501"} {
		_, err := NewNERClient(domain.ModelEndpointConfig{BaseURL: url}, testLogger(), nil)
		assert.ErrorIs(t, err, domain.ErrInitialization, url)
	}
}

func TestNERClient_Extract_Aggregated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extract", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req nerRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "DRUG", req.EntityType)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"entities":[
			{"text":"Aspirin","label":"Medication","score":0.97,"start":7,"end":14},
			{"text":"headache","label":"Sign_symptom","score":0.91,"start":26,"end":34},
			{"text":" ","label":"DRUG","score":0.99},
			{"text":"warfarin","label":"DRUG","score":1.7}
		]}`))
	}))
	defer server.Close()

	client, err := NewNERClient(testEndpoint(server.URL), testLogger(), metrics.New())
	require.NoError(t, err)

	spans, err := client.Extract(context.Background(), "I take Aspirin and have a headache", domain.DRUG)
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, domain.EntitySpan{Text: "Aspirin", Type: domain.DRUG, Score: 0.97, Start: 7, End: 14}, spans[0])
}

func TestNERClient_Extract_BIOTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"tokens":        []string{"i", "take", "aspirin", "and", "feel", "dizzy"},
			"labels":        []string{"O", "O", "B-DRUG", "O", "O", "B-SYMPTOM"},
			"probabilities": [][]float64{{0.99}, {0.99}, {0.92}, {0.99}, {0.99}, {0.85}},
		})
	}))
	defer server.Close()

	client, err := NewNERClient(testEndpoint(server.URL), testLogger(), nil)
	require.NoError(t, err)

	text := "I take Aspirin and feel dizzy"
	drugs, err := client.Extract(context.Background(), text, domain.DRUG)
	require.NoError(t, err)
	require.Len(t, drugs, 1)
	assert.Equal(t, "aspirin", drugs[0].Text)
	assert.InDelta(t, 0.92, drugs[0].Score, 1e-9)
	assert.Equal(t, 7, drugs[0].Start)
	assert.Equal(t, 14, drugs[0].End)

	symptoms, err := client.Extract(context.Background(), text, domain.SYMPTOM)
	require.NoError(t, err)
	require.Len(t, symptoms, 1)
	assert.Equal(t, "dizzy", symptoms[0].Text)
}

func TestNERClient_Extract_MalformedTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tokens":["a","b"],"labels":["O"]}`))
	}))
	defer server.Close()

	client, err := NewNERClient(testEndpoint(server.URL), testLogger(), nil)
	require.NoError(t, err)

	_, err = client.Extract(context.Background(), "a b", domain.DRUG)
	assert.Error(t, err)
}

func TestNERClient_Extract_EmptyTextSkipsRequest(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	client, err := NewNERClient(testEndpoint(server.URL), testLogger(), nil)
	require.NoError(t, err)

	spans, err := client.Extract(context.Background(), "  ", domain.DISEASE)
	require.NoError(t, err)
	assert.Empty(t, spans)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))

	_, err = client.Extract(context.Background(), "text", domain.EntityType("GENE"))
	assert.Error(t, err)
}

func TestNERClient_CircuitBreakerOpens(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewNERClient(testEndpoint(server.URL), testLogger(), nil)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := client.Extract(ctx, "aspirin", domain.DRUG)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 500")
	}

	_, err = client.Extract(ctx, "aspirin", domain.DRUG)
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestNERClient_ExtractAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req nerRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(nerResponse{Entities: []nerEntity{{Text: "x-" + req.EntityType, Score: 0.8}}})
	}))
	defer server.Close()

	client, err := NewNERClient(testEndpoint(server.URL), testLogger(), nil)
	require.NoError(t, err)

	all, err := client.ExtractAll(context.Background(), "anything")
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "x-DISEASE", all[domain.DISEASE][0].Text)
}

func TestNERClient_Health(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, err := NewNERClient(testEndpoint(server.URL+"/"), testLogger(), nil)
	require.NoError(t, err)
	assert.NoError(t, client.Health(context.Background()))
}
