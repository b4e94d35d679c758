package external

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ade-signal-mcp-server/internal/domain"
	"github.com/ade-signal-mcp-server/internal/metrics"
)

// SeverityClient is a domain.SeverityClassifier backed by a model server
// exposing POST /predict {"features": [...]}.
type SeverityClient struct {
	client *modelClient
	logger *logrus.Logger
}

type predictRequest struct {
	Features []string `json:"features"`
}

type predictResponse struct {
	Predictions []domain.Prediction `json:"predictions"`
}

// NewSeverityClient creates the severity classifier adapter.
func NewSeverityClient(cfg domain.ModelEndpointConfig, logger *logrus.Logger, m *metrics.Metrics) (*SeverityClient, error) {
	client, err := newModelClient("classifier", cfg, logger, m)
	if err != nil {
		return nil, err
	}
	return &SeverityClient{client: client, logger: logger}, nil
}

// Predict implements domain.SeverityClassifier.
func (c *SeverityClient) Predict(ctx context.Context, feature string) (*domain.Prediction, error) {
	predictions, err := c.PredictBatch(ctx, []string{feature})
	if err != nil {
		return nil, err
	}
	return predictions[0], nil
}

// PredictBatch classifies several features in one request. The server must
// return exactly one prediction per feature, in order.
func (c *SeverityClient) PredictBatch(ctx context.Context, features []string) ([]*domain.Prediction, error) {
	if len(features) == 0 {
		return []*domain.Prediction{}, nil
	}

	var resp predictResponse
	if err := c.client.postJSON(ctx, "/predict", predictRequest{Features: features}, &resp); err != nil {
		return nil, fmt.Errorf("failed to predict severity: %w", err)
	}
	if len(resp.Predictions) != len(features) {
		return nil, fmt.Errorf("classifier returned %d predictions for %d features: %w",
			len(resp.Predictions), len(features), domain.ErrInvalidPrediction)
	}

	out := make([]*domain.Prediction, len(resp.Predictions))
	for i := range resp.Predictions {
		out[i] = &resp.Predictions[i]
	}

	c.logger.WithField("features", len(features)).Debug("Severity predictions received")
	return out, nil
}

// Health probes the model server.
func (c *SeverityClient) Health(ctx context.Context) error {
	return c.client.health(ctx)
}
