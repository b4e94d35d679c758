package external

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ade-signal-mcp-server/internal/domain"
	"github.com/ade-signal-mcp-server/internal/metrics"
)

// NERClient is a domain.EntitySource backed by a token-classification model
// server. The server accepts POST /extract {"text", "entity_type"} and answers
// either with aggregated entities or with raw BIO token labels.
type NERClient struct {
	client *modelClient
	logger *logrus.Logger
}

type nerRequest struct {
	Text       string `json:"text"`
	EntityType string `json:"entity_type"`
}

type nerEntity struct {
	Text  string  `json:"text"`
	Label string  `json:"label"`
	Score float64 `json:"score"`
	Start int     `json:"start"`
	End   int     `json:"end"`
}

type nerResponse struct {
	Entities      []nerEntity `json:"entities"`
	Tokens        []string    `json:"tokens"`
	Labels        []string    `json:"labels"`
	Probabilities [][]float64 `json:"probabilities"`
}

// labelAliases maps model label vocabularies onto entity types.
var labelAliases = map[string]domain.EntityType{
	"drug":             domain.DRUG,
	"chemical":         domain.DRUG,
	"medication":       domain.DRUG,
	"symptom":          domain.SYMPTOM,
	"sign_symptom":     domain.SYMPTOM,
	"disease":          domain.DISEASE,
	"disease_disorder": domain.DISEASE,
}

// NewNERClient creates the entity recognizer adapter.
func NewNERClient(cfg domain.ModelEndpointConfig, logger *logrus.Logger, m *metrics.Metrics) (*NERClient, error) {
	client, err := newModelClient("ner", cfg, logger, m)
	if err != nil {
		return nil, err
	}
	return &NERClient{client: client, logger: logger}, nil
}

// Extract implements domain.EntitySource.
func (c *NERClient) Extract(ctx context.Context, text string, entityType domain.EntityType) ([]domain.EntitySpan, error) {
	if !entityType.IsValid() {
		return nil, fmt.Errorf("unsupported entity type %q", entityType)
	}
	if strings.TrimSpace(text) == "" {
		return []domain.EntitySpan{}, nil
	}

	var resp nerResponse
	if err := c.client.postJSON(ctx, "/extract", nerRequest{Text: text, EntityType: entityType.String()}, &resp); err != nil {
		return nil, fmt.Errorf("failed to extract %s entities: %w", entityType, err)
	}

	spans, err := resp.spans(text, entityType)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"entity_type": entityType,
		"entities":    len(spans),
	}).Debug("Entities extracted")
	return spans, nil
}

// ExtractAll implements domain.EntitySource. It fails on the first type that fails.
func (c *NERClient) ExtractAll(ctx context.Context, text string) (map[domain.EntityType][]domain.EntitySpan, error) {
	out := make(map[domain.EntityType][]domain.EntitySpan, len(domain.AllEntityTypes))
	for _, entityType := range domain.AllEntityTypes {
		spans, err := c.Extract(ctx, text, entityType)
		if err != nil {
			return nil, err
		}
		out[entityType] = spans
	}
	return out, nil
}

// Health probes the model server.
func (c *NERClient) Health(ctx context.Context) error {
	return c.client.health(ctx)
}

// spans converts either response shape into spans of the requested type.
// Entities whose label names another type are dropped; an empty label is
// taken to be the requested type.
func (r *nerResponse) spans(text string, requested domain.EntityType) ([]domain.EntitySpan, error) {
	out := []domain.EntitySpan{}

	if len(r.Entities) > 0 || len(r.Tokens) == 0 {
		for _, e := range r.Entities {
			entityText := strings.TrimSpace(e.Text)
			if entityText == "" || !labelMatches(e.Label, requested) || !validScore(e.Score) {
				continue
			}
			out = append(out, domain.EntitySpan{
				Text:  entityText,
				Type:  requested,
				Score: e.Score,
				Start: e.Start,
				End:   e.End,
			})
		}
		return out, nil
	}

	if len(r.Labels) != len(r.Tokens) {
		return nil, fmt.Errorf("malformed token output: %d tokens, %d labels", len(r.Tokens), len(r.Labels))
	}

	lowered := strings.ToLower(text)
	cursor := 0
	for _, e := range decodeBIO(r.Tokens, r.Labels, r.Probabilities) {
		if !labelMatches(e.Label, requested) {
			continue
		}
		span := domain.EntitySpan{Text: e.Text, Type: requested, Score: e.Score}
		if start, end := locate(lowered, e.Text, cursor); start >= 0 {
			span.Start, span.End = start, end
			cursor = end
		}
		out = append(out, span)
	}
	return out, nil
}

func labelMatches(label string, requested domain.EntityType) bool {
	if label == "" {
		return true
	}
	key := strings.ToLower(strings.TrimSpace(label))
	if entityType, ok := labelAliases[key]; ok {
		return entityType == requested
	}
	return strings.EqualFold(key, requested.String())
}

func validScore(score float64) bool {
	return !math.IsNaN(score) && score >= 0 && score <= 1
}
