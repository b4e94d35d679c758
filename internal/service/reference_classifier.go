package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/ade-signal-mcp-server/internal/domain"
)

// ReferenceSeverityClassifier answers severity predictions from the reference
// table itself. It stands in for the pretrained model in offline deployments:
// the predicted label is the reference severity of the best matching drug and
// the probability is the drug match score.
type ReferenceSeverityClassifier struct {
	matcher *ReferenceMatcher
}

// NewReferenceSeverityClassifier creates a classifier over matcher.
func NewReferenceSeverityClassifier(matcher *ReferenceMatcher) (*ReferenceSeverityClassifier, error) {
	if matcher == nil {
		return nil, fmt.Errorf("reference matcher is required: %w", domain.ErrInitialization)
	}
	return &ReferenceSeverityClassifier{matcher: matcher}, nil
}

// Predict implements domain.SeverityClassifier. The feature is split at every
// token boundary and the prefix with the best drug match is taken as the
// medicine.
func (c *ReferenceSeverityClassifier) Predict(ctx context.Context, feature string) (*domain.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := strings.Fields(feature)
	if len(tokens) < 2 {
		return nil, fmt.Errorf("feature %q has no symptom part: %w", feature, domain.ErrInvalidPrediction)
	}

	var best DrugMatch
	found := false
	for k := 1; k < len(tokens); k++ {
		match, ok := c.matcher.MatchDrug(strings.Join(tokens[:k], " "))
		if ok && (!found || match.Score > best.Score) {
			best = match
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("no reference drug for %q: %w", feature, domain.ErrClassifierUnavailable)
	}

	return &domain.Prediction{
		Label: best.Record.Severity.String(),
		Probabilities: map[string]float64{
			best.Record.Severity.String(): best.Score,
		},
	}, nil
}
