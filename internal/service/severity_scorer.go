package service

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/ade-signal-mcp-server/internal/domain"
)

// SeverityScorer asks the severity classifier about one medicine/symptom pair
// at a time. It never lets a classifier failure escape: every failure becomes
// the Unknown/0.0 prediction plus an error the caller may record.
type SeverityScorer struct {
	classifier domain.SeverityClassifier
	cache      domain.PredictionCache
	logger     *logrus.Logger
}

// NewSeverityScorer creates a scorer. cache may be nil.
func NewSeverityScorer(classifier domain.SeverityClassifier, cache domain.PredictionCache, logger *logrus.Logger) (*SeverityScorer, error) {
	if classifier == nil {
		return nil, fmt.Errorf("severity classifier is required: %w", domain.ErrInitialization)
	}
	return &SeverityScorer{
		classifier: classifier,
		cache:      cache,
		logger:     logger,
	}, nil
}

// Feature builds the classifier input for a pair: "<medicine> <symptom>".
func Feature(medicine, symptom string) string {
	return medicine + " " + symptom
}

// Score predicts the severity of a medicine/symptom pair. The returned
// prediction is always usable; a non-nil error means it is the Unknown fallback.
func (s *SeverityScorer) Score(ctx context.Context, medicine, symptom string) (domain.SeverityPrediction, error) {
	feature := Feature(medicine, symptom)

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, feature)
		if err != nil {
			s.logger.WithError(err).WithField("feature", feature).Debug("Prediction cache lookup failed")
		} else if ok {
			return cached, nil
		}
	}

	prediction, err := s.predict(ctx, feature)
	if err != nil {
		return domain.UnknownPrediction, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, feature, prediction); err != nil {
			s.logger.WithError(err).WithField("feature", feature).Debug("Failed to cache prediction")
		}
	}
	return prediction, nil
}

// predict calls the classifier, converting panics and malformed output into errors.
func (s *SeverityScorer) predict(ctx context.Context, feature string) (result domain.SeverityPrediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = domain.UnknownPrediction
			err = fmt.Errorf("severity classifier panicked: %v", r)
		}
	}()

	raw, err := s.classifier.Predict(ctx, feature)
	if err != nil {
		return domain.UnknownPrediction, fmt.Errorf("failed to predict severity: %w", err)
	}
	return interpretPrediction(raw)
}

// interpretPrediction turns raw classifier output into a severity and a
// confidence equal to the largest class probability. An empty label falls
// back to the most probable class.
func interpretPrediction(raw *domain.Prediction) (domain.SeverityPrediction, error) {
	if raw == nil || len(raw.Probabilities) == 0 {
		return domain.UnknownPrediction, domain.ErrInvalidPrediction
	}

	confidence := -1.0
	argmax := ""
	for label, p := range raw.Probabilities {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return domain.UnknownPrediction, fmt.Errorf("probability %v for %q: %w", p, label, domain.ErrInvalidPrediction)
		}
		if p > confidence || (p == confidence && label < argmax) {
			confidence = p
			argmax = label
		}
	}

	label := raw.Label
	if label == "" {
		label = argmax
	}

	return domain.SeverityPrediction{
		Severity:   domain.ParseSeverity(label),
		Confidence: confidence,
	}, nil
}
