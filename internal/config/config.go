package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/ade-signal-mcp-server/internal/domain"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// NewManagerFromConfig wraps an already built configuration.
func NewManagerFromConfig(config *domain.Config) *Manager {
	return &Manager{config: config}
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/ade-signal/")

	viper.SetEnvPrefix("ADE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// Config file is optional
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	config.Pipeline.ConfidenceThresholdSet = true

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.request_timeout", "20s")
	viper.SetDefault("server.rate_limit", 10.0)
	viper.SetDefault("server.rate_burst", 20)
	viper.SetDefault("server.max_body_bytes", 1<<20)

	// Pipeline defaults
	viper.SetDefault("pipeline.confidence_threshold", 0.7)
	viper.SetDefault("pipeline.drug_match_threshold", 0.8)
	viper.SetDefault("pipeline.symptom_match_threshold", 0.75)
	viper.SetDefault("pipeline.lexicon_file", "")
	viper.SetDefault("pipeline.entity_source", "http")
	viper.SetDefault("pipeline.batch_concurrency", 4)

	// Reference dataset defaults
	viper.SetDefault("reference.source", "csv")
	viper.SetDefault("reference.csv_path", "data/reference_reactions.csv")
	viper.SetDefault("reference.sqlite_path", "data/reference.db")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.database", "ade_signal")
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("database.migrations_path", "") // empty selects the embedded migrations
	viper.SetDefault("database.auto_migrate", false)

	// External model defaults
	viper.SetDefault("external_model.ner.base_url", "http://localhost:8501")
	viper.SetDefault("external_model.ner.timeout", "10s")
	viper.SetDefault("external_model.ner.rate_limit", 20.0)
	viper.SetDefault("external_model.ner.burst", 5)
	viper.SetDefault("external_model.ner.max_requests", 5)
	viper.SetDefault("external_model.ner.breaker_interval", "30s")
	viper.SetDefault("external_model.ner.breaker_timeout", "60s")

	viper.SetDefault("external_model.classifier.base_url", "http://localhost:8502")
	viper.SetDefault("external_model.classifier.timeout", "5s")
	viper.SetDefault("external_model.classifier.rate_limit", 50.0)
	viper.SetDefault("external_model.classifier.burst", 10)
	viper.SetDefault("external_model.classifier.max_requests", 5)
	viper.SetDefault("external_model.classifier.breaker_interval", "30s")
	viper.SetDefault("external_model.classifier.breaker_timeout", "60s")

	// Cache defaults
	viper.SetDefault("cache.max_items", 10000)
	viper.SetDefault("cache.default_ttl", "24h")
	viper.SetDefault("cache.redis_url", "")
	viper.SetDefault("cache.max_retries", 3)
	viper.SetDefault("cache.pool_size", 10)
	viper.SetDefault("cache.pool_timeout", "4s")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")

	// MCP defaults
	viper.SetDefault("mcp.server_name", "ade-signal-mcp-server")
	viper.SetDefault("mcp.server_version", "v0.1.0")
	viper.SetDefault("mcp.transport_type", "stdio")
	viper.SetDefault("mcp.http_port", 8090)
	viper.SetDefault("mcp.http_host", "localhost")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetPipelineConfig returns pipeline configuration
func (m *Manager) GetPipelineConfig() *domain.PipelineConfig {
	return &m.config.Pipeline
}

// GetReferenceConfig returns reference dataset configuration
func (m *Manager) GetReferenceConfig() *domain.ReferenceConfig {
	return &m.config.Reference
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	return ValidateConfig(m.config)
}

// ValidateConfig checks a configuration for values the pipeline cannot run with.
func ValidateConfig(config *domain.Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if value := config.Pipeline.ConfidenceThreshold; value < 0 || value > 1 {
		return fmt.Errorf("invalid pipeline.confidence_threshold %v: %w", value, domain.ErrInvalidThreshold)
	}
	thresholds := map[string]float64{
		"pipeline.drug_match_threshold":    config.Pipeline.DrugMatchThreshold,
		"pipeline.symptom_match_threshold": config.Pipeline.SymptomMatchThreshold,
	}
	for name, value := range thresholds {
		if value <= 0 || value > 1 {
			return fmt.Errorf("invalid %s %v: %w", name, value, domain.ErrInvalidThreshold)
		}
	}

	switch config.Pipeline.EntitySource {
	case "http":
		if config.ExternalModel.NER.BaseURL == "" {
			return fmt.Errorf("NER base URL is required when entity_source is http")
		}
	case "dictionary":
	default:
		return fmt.Errorf("invalid entity source: %s", config.Pipeline.EntitySource)
	}

	if config.ExternalModel.Classifier.BaseURL == "" {
		return fmt.Errorf("severity classifier base URL is required")
	}

	switch config.Reference.Source {
	case "csv":
		if config.Reference.CSVPath == "" {
			return fmt.Errorf("reference CSV path is required")
		}
	case "sqlite":
		if config.Reference.SQLitePath == "" {
			return fmt.Errorf("reference SQLite path is required")
		}
	case "postgres":
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	default:
		return fmt.Errorf("invalid reference source: %s", config.Reference.Source)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetDatabaseConnectionString returns a formatted database connection string
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// GetDatabaseURL returns the database configuration as a postgres:// URL, the
// form golang-migrate expects.
func (m *Manager) GetDatabaseURL() string {
	db := m.config.Database
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		db.Username, db.Password, db.Host, db.Port, db.Database, db.SSLMode)
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(viper.GetString("environment")) == "production"
}
