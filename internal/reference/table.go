// Package reference loads and serves the reference adverse reaction database:
// one record per drug listing the reaction terms reported for it and the
// drug's severity class.
package reference

import (
	"fmt"
	"sort"

	"github.com/ade-signal-mcp-server/internal/domain"
	"github.com/ade-signal-mcp-server/pkg/textnorm"
)

// Table is the in-memory, read-only reference dataset. Drug names and
// reaction terms are stored in canonical form and records are ordered by drug
// name, so iteration order is deterministic.
type Table struct {
	records []domain.ReferenceRecord
	index   map[string]int
}

// Stats summarizes a reference table.
type Stats struct {
	Drugs          int                     `json:"drugs"`
	ReactionTerms  int                     `json:"reaction_terms"`
	SeverityCounts map[domain.Severity]int `json:"severity_counts"`
}

// NewTable builds a table from raw records. Records naming the same drug are
// merged: reaction terms are unioned and the most serious severity wins.
// Records without a drug name are dropped.
func NewTable(records []domain.ReferenceRecord) (*Table, error) {
	merged := make(map[string]*domain.ReferenceRecord)
	for _, record := range records {
		name := textnorm.Canonical(record.DrugName)
		if name == "" {
			continue
		}
		severity := record.Severity
		if !severity.IsValid() {
			severity = domain.ParseSeverity(string(severity))
		}

		existing, ok := merged[name]
		if !ok {
			merged[name] = &domain.ReferenceRecord{
				DrugName:      name,
				ReactionTerms: append([]string(nil), record.ReactionTerms...),
				Severity:      severity,
			}
			continue
		}
		existing.ReactionTerms = append(existing.ReactionTerms, record.ReactionTerms...)
		if severity.Rank() < existing.Severity.Rank() {
			existing.Severity = severity
		}
	}

	if len(merged) == 0 {
		return nil, fmt.Errorf("failed to build reference table: %w", domain.ErrEmptyReference)
	}

	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)

	table := &Table{
		records: make([]domain.ReferenceRecord, 0, len(names)),
		index:   make(map[string]int, len(names)),
	}
	for i, name := range names {
		record := merged[name]
		record.ReactionTerms = textnorm.UniqueSorted(record.ReactionTerms)
		table.records = append(table.records, *record)
		table.index[name] = i
	}
	return table, nil
}

// Records returns the records ordered by drug name. Callers must not modify
// the returned slice or its elements.
func (t *Table) Records() []domain.ReferenceRecord {
	return t.records
}

// Len returns the number of drugs in the table.
func (t *Table) Len() int {
	return len(t.records)
}

// Lookup returns the record for an exact (canonical) drug name.
func (t *Table) Lookup(drugName string) (domain.ReferenceRecord, bool) {
	i, ok := t.index[textnorm.Canonical(drugName)]
	if !ok {
		return domain.ReferenceRecord{}, false
	}
	return t.records[i], true
}

// Stats returns drug, reaction and severity counts.
func (t *Table) Stats() Stats {
	stats := Stats{
		Drugs:          len(t.records),
		SeverityCounts: make(map[domain.Severity]int),
	}
	for _, record := range t.records {
		stats.ReactionTerms += len(record.ReactionTerms)
		stats.SeverityCounts[record.Severity]++
	}
	return stats
}
