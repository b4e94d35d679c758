package service

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/ade-signal-mcp-server/internal/domain"
	"github.com/ade-signal-mcp-server/internal/reference"
)

// MockEntitySource is a mock implementation of domain.EntitySource
type MockEntitySource struct {
	mock.Mock
}

func (m *MockEntitySource) Extract(ctx context.Context, text string, entityType domain.EntityType) ([]domain.EntitySpan, error) {
	args := m.Called(ctx, text, entityType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.EntitySpan), args.Error(1)
}

func (m *MockEntitySource) ExtractAll(ctx context.Context, text string) (map[domain.EntityType][]domain.EntitySpan, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[domain.EntityType][]domain.EntitySpan), args.Error(1)
}

// MockSeverityClassifier is a mock implementation of domain.SeverityClassifier
type MockSeverityClassifier struct {
	mock.Mock
}

func (m *MockSeverityClassifier) Predict(ctx context.Context, feature string) (*domain.Prediction, error) {
	args := m.Called(ctx, feature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Prediction), args.Error(1)
}

// mapCache is an in-process PredictionCache for tests.
type mapCache struct {
	mu    sync.Mutex
	items map[string]domain.SeverityPrediction
	sets  int
}

func newMapCache() *mapCache {
	return &mapCache{items: make(map[string]domain.SeverityPrediction)}
}

func (c *mapCache) Get(_ context.Context, feature string) (domain.SeverityPrediction, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.items[feature]
	return p, ok, nil
}

func (c *mapCache) Set(_ context.Context, feature string, p domain.SeverityPrediction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[feature] = p
	c.sets++
	return nil
}

func testReferenceRecords() []domain.ReferenceRecord {
	return []domain.ReferenceRecord{
		{DrugName: "aspirin", ReactionTerms: []string{"gastrointestinal haemorrhage", "headache", "nausea"}, Severity: domain.SeverityCritical},
		{DrugName: "ibuprofen", ReactionTerms: []string{"dyspepsia", "nausea"}, Severity: domain.SeverityNeedsAttention},
		{DrugName: "lisinopril", ReactionTerms: []string{"cough", "dizziness"}, Severity: domain.SeverityNeedsAttention},
	}
}

func testTable() *reference.Table {
	table, err := reference.NewTable(testReferenceRecords())
	if err != nil {
		panic(err)
	}
	return table
}

func spanList(entityType domain.EntityType, pairs ...interface{}) []domain.EntitySpan {
	out := []domain.EntitySpan{}
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, domain.EntitySpan{
			Text:  pairs[i].(string),
			Type:  entityType,
			Score: pairs[i+1].(float64),
		})
	}
	return out
}
