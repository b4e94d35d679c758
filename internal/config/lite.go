// Package config provides configuration management for the ADE signal service.
// This file contains the lightweight configuration for standalone operation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ade-signal-mcp-server/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir      string // Base directory for data files
	ReferenceCSV string // Optional: CSV imported into the reference database on start
	LexiconFile  string // Optional: YAML lexicon overriding the built-in term lists

	// Pipeline thresholds
	ConfidenceThreshold   float64
	DrugMatchThreshold    float64
	SymptomMatchThreshold float64

	// Model endpoints. An empty NER URL selects the dictionary entity source,
	// an empty classifier URL selects the reference-backed classifier.
	NERURL        string
	ClassifierURL string
	ModelTimeout  time.Duration

	// Cache settings
	CacheMaxItems int           // Maximum items in memory cache
	CacheTTL      time.Duration // Default cache TTL

	// Transport settings
	Transport string // Transport type: stdio, http
	HTTPPort  int    // HTTP port (if transport is http)

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".ade-signal")

	return &LiteConfig{
		DataDir:               dataDir,
		ConfidenceThreshold:   0.7,
		DrugMatchThreshold:    0.8,
		SymptomMatchThreshold: 0.75,
		ModelTimeout:          10 * time.Second,
		CacheMaxItems:         1000,
		CacheTTL:              24 * time.Hour,
		Transport:             "stdio",
		HTTPPort:              8080,
		LogLevel:              "info",
		LogFormat:             "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	// Data files
	if v := os.Getenv("ADE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	cfg.ReferenceCSV = os.Getenv("ADE_REFERENCE_CSV")
	cfg.LexiconFile = os.Getenv("ADE_LEXICON_FILE")

	// Thresholds
	cfg.ConfidenceThreshold = envFloat("ADE_CONFIDENCE_THRESHOLD", cfg.ConfidenceThreshold)
	cfg.DrugMatchThreshold = envFloat("ADE_DRUG_THRESHOLD", cfg.DrugMatchThreshold)
	cfg.SymptomMatchThreshold = envFloat("ADE_SYMPTOM_THRESHOLD", cfg.SymptomMatchThreshold)

	// Model endpoints
	cfg.NERURL = os.Getenv("ADE_NER_URL")
	cfg.ClassifierURL = os.Getenv("ADE_CLASSIFIER_URL")
	if v := os.Getenv("ADE_MODEL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ModelTimeout = d
		}
	}

	// Cache settings
	if v := os.Getenv("ADE_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("ADE_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	// Transport
	if v := os.Getenv("ADE_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("ADE_HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPPort = n
		}
	}

	// Logging
	if v := os.Getenv("ADE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ADE_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// envFloat parses a float environment variable, keeping fallback when unset or malformed.
func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

// Validate checks the thresholds and transport settings.
func (c *LiteConfig) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("invalid confidence threshold %v: %w", c.ConfidenceThreshold, domain.ErrInvalidThreshold)
	}
	for name, value := range map[string]float64{
		"drug match threshold":    c.DrugMatchThreshold,
		"symptom match threshold": c.SymptomMatchThreshold,
	} {
		if value <= 0 || value > 1 {
			return fmt.Errorf("invalid %s %v: %w", name, value, domain.ErrInvalidThreshold)
		}
	}
	if c.Transport != "stdio" && c.Transport != "http" {
		return fmt.Errorf("invalid transport: %s", c.Transport)
	}
	return nil
}

// PipelineConfig returns the thresholds in the shape the analyzer consumes.
func (c *LiteConfig) PipelineConfig() domain.PipelineConfig {
	source := "http"
	if c.NERURL == "" {
		source = "dictionary"
	}
	return domain.PipelineConfig{
		ConfidenceThreshold:    c.ConfidenceThreshold,
		ConfidenceThresholdSet: true,
		DrugMatchThreshold:     c.DrugMatchThreshold,
		SymptomMatchThreshold:  c.SymptomMatchThreshold,
		LexiconFile:            c.LexiconFile,
		EntitySource:           source,
		BatchConcurrency:       4,
	}
}

// ReferenceDBPath returns the path to the reference SQLite database.
func (c *LiteConfig) ReferenceDBPath() string {
	return filepath.Join(c.DataDir, "reference.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0755)
}
