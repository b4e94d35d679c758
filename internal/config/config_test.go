package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ade-signal-mcp-server/internal/domain"
)

func TestNewManager_Defaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	m, err := NewManager()
	require.NoError(t, err)

	cfg := m.GetConfig()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 20*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 0.7, m.GetPipelineConfig().ConfidenceThreshold)
	assert.Equal(t, 0.8, m.GetPipelineConfig().DrugMatchThreshold)
	assert.Equal(t, 0.75, m.GetPipelineConfig().SymptomMatchThreshold)
	assert.Equal(t, "csv", m.GetReferenceConfig().Source)
	assert.Equal(t, 10*time.Second, cfg.ExternalModel.NER.Timeout)
	assert.Equal(t, uint32(5), cfg.ExternalModel.Classifier.MaxRequests)
	assert.Equal(t, 24*time.Hour, cfg.Cache.DefaultTTL)
	assert.NoError(t, m.Validate())
}

func TestNewManager_EnvironmentOverrides(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	os.Setenv("ADE_PIPELINE_DRUG_MATCH_THRESHOLD", "0.85")
	os.Setenv("ADE_REFERENCE_SOURCE", "sqlite")
	defer os.Unsetenv("ADE_PIPELINE_DRUG_MATCH_THRESHOLD")
	defer os.Unsetenv("ADE_REFERENCE_SOURCE")

	m, err := NewManager()
	require.NoError(t, err)

	assert.Equal(t, 0.85, m.GetPipelineConfig().DrugMatchThreshold)
	assert.Equal(t, "sqlite", m.GetReferenceConfig().Source)
}

func TestValidateConfig(t *testing.T) {
	valid := func() *domain.Config {
		return &domain.Config{
			Server: domain.ServerConfig{Port: 8080},
			Pipeline: domain.PipelineConfig{
				ConfidenceThreshold:   0.7,
				DrugMatchThreshold:    0.8,
				SymptomMatchThreshold: 0.75,
				EntitySource:          "http",
			},
			Reference: domain.ReferenceConfig{Source: "csv", CSVPath: "reference.csv"},
			ExternalModel: domain.ExternalModelConfig{
				NER:        domain.ModelEndpointConfig{BaseURL: "http://ner"},
				Classifier: domain.ModelEndpointConfig{BaseURL: "http://clf"},
			},
			Logging: domain.LoggingConfig{Level: "info"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*domain.Config)
		wantErr bool
	}{
		{"valid", func(c *domain.Config) {}, false},
		{"bad port", func(c *domain.Config) { c.Server.Port = 0 }, true},
		{"zero confidence threshold keeps every span", func(c *domain.Config) { c.Pipeline.ConfidenceThreshold = 0 }, false},
		{"negative confidence threshold", func(c *domain.Config) { c.Pipeline.ConfidenceThreshold = -0.1 }, true},
		{"zero drug threshold", func(c *domain.Config) { c.Pipeline.DrugMatchThreshold = 0 }, true},
		{"drug threshold above one", func(c *domain.Config) { c.Pipeline.DrugMatchThreshold = 1.01 }, true},
		{"threshold of exactly one", func(c *domain.Config) { c.Pipeline.SymptomMatchThreshold = 1 }, false},
		{"unknown entity source", func(c *domain.Config) { c.Pipeline.EntitySource = "spacy" }, true},
		{"dictionary source without NER", func(c *domain.Config) {
			c.Pipeline.EntitySource = "dictionary"
			c.ExternalModel.NER.BaseURL = ""
		}, false},
		{"missing classifier", func(c *domain.Config) { c.ExternalModel.Classifier.BaseURL = "" }, true},
		{"unknown reference source", func(c *domain.Config) { c.Reference.Source = "parquet" }, true},
		{"postgres without host", func(c *domain.Config) { c.Reference.Source = "postgres" }, true},
		{"bad log level", func(c *domain.Config) { c.Logging.Level = "verbose" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := ValidateConfig(cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
