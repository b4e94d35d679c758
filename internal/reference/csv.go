package reference

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ade-signal-mcp-server/internal/domain"
)

// Accepted header names per column. FAERS exports use drugname / pt / outc_cod.
var (
	drugColumnNames     = []string{"drug_name", "drugname", "drug", "medicine"}
	reactionColumnNames = []string{"reaction_term", "reaction_terms", "reaction", "pt", "adverse_event"}
	severityColumnNames = []string{"severity_class", "severity", "outcome", "outc_cod"}
)

// columnLayout holds the resolved column positions of a reference CSV.
type columnLayout struct {
	drug, reaction, severity int
}

// LoadCSVFile reads reference records from a CSV or TSV file.
func LoadCSVFile(path string) ([]domain.ReferenceRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	comma := ','
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		comma = '\t'
	}
	return LoadCSV(f, comma)
}

// LoadCSV reads reference rows of drug, reaction term and severity class. A
// header row is optional; without one the columns are taken in that order.
// A reaction cell may list several terms separated by semicolons or pipes.
// Rows are grouped by drug name.
func LoadCSV(r io.Reader, comma rune) ([]domain.ReferenceRecord, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read reference CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("empty reference file")
	}

	layout, start := resolveColumns(rows[0])

	byDrug := make(map[string]*domain.ReferenceRecord)
	var order []string
	for _, row := range rows[start:] {
		drug := cell(row, layout.drug)
		if drug == "" {
			continue
		}
		key := strings.ToLower(drug)
		record, ok := byDrug[key]
		if !ok {
			record = &domain.ReferenceRecord{DrugName: drug, Severity: domain.SeverityUnknown}
			byDrug[key] = record
			order = append(order, key)
		}

		record.ReactionTerms = append(record.ReactionTerms, splitTerms(cell(row, layout.reaction))...)

		if layout.severity >= 0 {
			severity := domain.ParseSeverity(cell(row, layout.severity))
			if severity.Rank() < record.Severity.Rank() {
				record.Severity = severity
			}
		}
	}

	records := make([]domain.ReferenceRecord, 0, len(order))
	for _, key := range order {
		records = append(records, *byDrug[key])
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no reference rows found: %w", domain.ErrEmptyReference)
	}
	return records, nil
}

// resolveColumns detects a header row. It returns the column layout and the
// index of the first data row.
func resolveColumns(first []string) (columnLayout, int) {
	header := make([]string, len(first))
	for i, name := range first {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
	}

	layout := columnLayout{
		drug:     findColumn(header, drugColumnNames),
		reaction: findColumn(header, reactionColumnNames),
		severity: findColumn(header, severityColumnNames),
	}
	if layout.drug >= 0 && layout.reaction >= 0 {
		return layout, 1
	}
	return columnLayout{drug: 0, reaction: 1, severity: 2}, 0
}

func findColumn(header, names []string) int {
	for _, name := range names {
		for i, column := range header {
			if column == name {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func splitTerms(value string) []string {
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return r == ';' || r == '|'
	})
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
