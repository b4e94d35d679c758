package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ade-signal-mcp-server/internal/config"
	"github.com/ade-signal-mcp-server/internal/domain"
	"github.com/ade-signal-mcp-server/internal/metrics"
)

func pipelineConfig(t *testing.T, classifierURL string) *domain.Config {
	t.Helper()
	csvPath := filepath.Join(t.TempDir(), "reference.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("drug_name,reaction_term,severity_class\nAspirin,Headache,Critical\n"), 0644))

	endpoint := domain.ModelEndpointConfig{BaseURL: classifierURL, Timeout: time.Second, RateLimit: 1000, Burst: 10}
	return &domain.Config{
		Pipeline: domain.PipelineConfig{
			ConfidenceThreshold:   0.7,
			DrugMatchThreshold:    0.8,
			SymptomMatchThreshold: 0.75,
			EntitySource:          "dictionary",
		},
		Reference:     domain.ReferenceConfig{Source: "csv", CSVPath: csvPath},
		ExternalModel: domain.ExternalModelConfig{Classifier: endpoint},
		Cache:         domain.CacheConfig{MaxItems: 100, DefaultTTL: time.Minute},
	}
}

func TestBuildPipeline_CSVAndDictionary(t *testing.T) {
	var calls atomic.Int32
	classifier := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"predictions":[{"label":"Critical","probabilities":{"Critical":0.9,"Needs Attention":0.1}}]}`))
	}))
	defer classifier.Close()

	logger, _ := test.NewNullLogger()
	pipeline, err := BuildPipeline(context.Background(), config.NewManagerFromConfig(pipelineConfig(t, classifier.URL)), logger, metrics.New())
	require.NoError(t, err)
	defer pipeline.Close()

	for i := 0; i < 2; i++ {
		result, err := pipeline.Analyzer.Analyze(context.Background(), "Aspirin gave me a headache")
		require.NoError(t, err)
		require.Len(t, result.AdverseEvents, 1)
		symptom := result.AdverseEvents[0].MatchedSymptoms[0]
		assert.Equal(t, domain.SeverityCritical, symptom.PredictedSeverity)
		assert.InDelta(t, 0.9, symptom.PredictionConfidence, 1e-9)
	}
	assert.Equal(t, int32(1), calls.Load(), "second analysis is served from the prediction cache")
}

func TestBuildPipeline_MissingReference(t *testing.T) {
	cfg := pipelineConfig(t, "http://localhost:1")
	cfg.Reference.CSVPath = filepath.Join(t.TempDir(), "missing.csv")

	logger, _ := test.NewNullLogger()
	_, err := BuildPipeline(context.Background(), config.NewManagerFromConfig(cfg), logger, nil)
	assert.ErrorIs(t, err, domain.ErrInitialization)
}

func TestBuildPipeline_RedisUnavailableFallsBack(t *testing.T) {
	classifier := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"predictions":[{"label":"Critical","probabilities":{"Critical":1}}]}`))
	}))
	defer classifier.Close()

	cfg := pipelineConfig(t, classifier.URL)
	cfg.Cache.RedisURL = "redis://127.0.0.1:1/0"
	cfg.Cache.PoolTimeout = 100 * time.Millisecond

	logger, hook := test.NewNullLogger()
	pipeline, err := BuildPipeline(context.Background(), config.NewManagerFromConfig(cfg), logger, nil)
	require.NoError(t, err)
	defer pipeline.Close()

	found := false
	for _, entry := range hook.AllEntries() {
		if entry.Message == "Redis prediction cache unavailable, using memory cache only" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestNewLogger(t *testing.T) {
	logger := NewLogger(domain.LoggingConfig{Level: "debug", Format: "text"})
	assert.Equal(t, "debug", logger.GetLevel().String())

	logger = NewLogger(domain.LoggingConfig{Level: "nonsense"})
	assert.Equal(t, "info", logger.GetLevel().String())
}
