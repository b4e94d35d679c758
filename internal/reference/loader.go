package reference

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ade-signal-mcp-server/internal/domain"
)

// LoadTable reads every record from a store and builds the in-memory table.
// An empty store is an initialization failure.
func LoadTable(ctx context.Context, store domain.ReferenceStore, logger *logrus.Logger) (*Table, error) {
	records, err := store.LoadRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference records: %w", err)
	}

	table, err := NewTable(records)
	if err != nil {
		return nil, err
	}

	stats := table.Stats()
	logger.WithFields(logrus.Fields{
		"drugs":          stats.Drugs,
		"reaction_terms": stats.ReactionTerms,
	}).Info("Reference table loaded")

	return table, nil
}

// ImportCSV loads a CSV file into a store and returns the number of drugs imported.
func ImportCSV(ctx context.Context, store domain.ReferenceStore, path string) (int, error) {
	records, err := LoadCSVFile(path)
	if err != nil {
		return 0, err
	}
	if err := store.SaveRecords(ctx, records); err != nil {
		return 0, fmt.Errorf("failed to save reference records: %w", err)
	}
	return len(records), nil
}
