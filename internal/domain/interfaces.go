package domain

import (
	"context"
)

// EntitySource is the external named-entity recognizer. Implementations may be
// remote model servers or local dictionaries.
type EntitySource interface {
	// Extract returns every span of the requested type found in text.
	Extract(ctx context.Context, text string, entityType EntityType) ([]EntitySpan, error)
	// ExtractAll returns spans for every entity type, keyed by type.
	ExtractAll(ctx context.Context, text string) (map[EntityType][]EntitySpan, error)
}

// Prediction is the raw output of a severity classifier for one feature string.
type Prediction struct {
	Label         string             `json:"label"`
	Probabilities map[string]float64 `json:"probabilities"`
}

// SeverityClassifier is the external pretrained severity model.
type SeverityClassifier interface {
	Predict(ctx context.Context, feature string) (*Prediction, error)
}

// SeverityPrediction is a scored severity for one medicine/symptom pair.
type SeverityPrediction struct {
	Severity   Severity `json:"severity"`
	Confidence float64  `json:"confidence"`
}

// UnknownPrediction is returned whenever the classifier cannot produce a usable answer.
var UnknownPrediction = SeverityPrediction{Severity: SeverityUnknown, Confidence: 0.0}

// PredictionCache memoizes severity predictions keyed by feature string.
type PredictionCache interface {
	Get(ctx context.Context, feature string) (SeverityPrediction, bool, error)
	Set(ctx context.Context, feature string, prediction SeverityPrediction) error
}

// ReferenceStore is a persistent source of reference reaction records.
type ReferenceStore interface {
	// LoadRecords returns every reference record, grouped by drug.
	LoadRecords(ctx context.Context) ([]ReferenceRecord, error)
	// SaveRecords upserts the given records. Reaction terms are merged per drug.
	SaveRecords(ctx context.Context, records []ReferenceRecord) error
	// Count returns the number of distinct drugs stored.
	Count(ctx context.Context) (int64, error)
	// Close closes the store and releases resources.
	Close() error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetPipelineConfig() *PipelineConfig
	GetReferenceConfig() *ReferenceConfig
	Validate() error
}
