package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
	Reference     ReferenceConfig     `mapstructure:"reference"`
	Database      DatabaseConfig      `mapstructure:"database"`
	ExternalModel ExternalModelConfig `mapstructure:"external_model"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	MCP           MCPConfig           `mapstructure:"mcp"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"` // requests per second per client
	RateBurst      int           `mapstructure:"rate_burst"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
}

// PipelineConfig holds the extraction and matching thresholds
type PipelineConfig struct {
	ConfidenceThreshold    float64 `mapstructure:"confidence_threshold"`
	// ConfidenceThresholdSet marks ConfidenceThreshold as explicit, so that 0
	// keeps every span instead of selecting the default.
	ConfidenceThresholdSet bool    `mapstructure:"-"`
	DrugMatchThreshold     float64 `mapstructure:"drug_match_threshold"`
	SymptomMatchThreshold  float64 `mapstructure:"symptom_match_threshold"`
	LexiconFile            string  `mapstructure:"lexicon_file"`
	EntitySource           string  `mapstructure:"entity_source"` // "http", "dictionary"
	BatchConcurrency       int     `mapstructure:"batch_concurrency"`
}

// ReferenceConfig selects where the reference reaction dataset is loaded from
type ReferenceConfig struct {
	Source     string `mapstructure:"source"` // "csv", "sqlite", "postgres"
	CSVPath    string `mapstructure:"csv_path"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// ExternalModelConfig groups the model-serving endpoints
type ExternalModelConfig struct {
	NER        ModelEndpointConfig `mapstructure:"ner"`
	Classifier ModelEndpointConfig `mapstructure:"classifier"`
}

// ModelEndpointConfig represents a model-serving HTTP endpoint
type ModelEndpointConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RateLimit       float64       `mapstructure:"rate_limit"` // requests per second
	Burst           int           `mapstructure:"burst"`
	MaxRequests     uint32        `mapstructure:"max_requests"`
	BreakerInterval time.Duration `mapstructure:"breaker_interval"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

// CacheConfig represents prediction cache configuration
type CacheConfig struct {
	MaxItems    int           `mapstructure:"max_items"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	RedisURL    string        `mapstructure:"redis_url"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MCPConfig represents MCP server configuration
type MCPConfig struct {
	ServerName    string `mapstructure:"server_name"`
	ServerVersion string `mapstructure:"server_version"`
	TransportType string `mapstructure:"transport_type"` // "stdio", "http"
	HTTPPort      int    `mapstructure:"http_port"`
	HTTPHost      string `mapstructure:"http_host"`
}
