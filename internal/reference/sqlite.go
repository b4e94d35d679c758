package reference

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ade-signal-mcp-server/internal/domain"
	"github.com/ade-signal-mcp-server/pkg/textnorm"
)

// SQLiteStore implements domain.ReferenceStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite reference store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL lets analyses read while an import writes
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// reactionRow is one (drug, reaction, severity) row of reference_reactions.
type reactionRow struct {
	drug     string
	reaction string
	severity string
}

func scanReactionRow(s scanner) (reactionRow, error) {
	var row reactionRow
	err := s.Scan(&row.drug, &row.reaction, &row.severity)
	return row, err
}

// groupRows folds ordered rows into one record per drug.
func groupRows(rows []reactionRow) []domain.ReferenceRecord {
	var records []domain.ReferenceRecord
	index := make(map[string]int)
	for _, row := range rows {
		i, ok := index[row.drug]
		if !ok {
			records = append(records, domain.ReferenceRecord{
				DrugName: row.drug,
				Severity: domain.SeverityUnknown,
			})
			i = len(records) - 1
			index[row.drug] = i
		}
		if row.reaction != "" {
			records[i].ReactionTerms = append(records[i].ReactionTerms, row.reaction)
		}
		if severity := domain.ParseSeverity(row.severity); severity.Rank() < records[i].Severity.Rank() {
			records[i].Severity = severity
		}
	}
	return records
}

// flattenRecords expands records into canonical rows ready for insertion.
func flattenRecords(records []domain.ReferenceRecord) []reactionRow {
	var rows []reactionRow
	for _, record := range records {
		drug := textnorm.Canonical(record.DrugName)
		if drug == "" {
			continue
		}
		severity := string(domain.ParseSeverity(string(record.Severity)))
		for _, term := range textnorm.UniqueSorted(record.ReactionTerms) {
			rows = append(rows, reactionRow{drug: drug, reaction: term, severity: severity})
		}
	}
	return rows
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS reference_reactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		drug_name TEXT NOT NULL,
		reaction_term TEXT NOT NULL,
		severity TEXT NOT NULL DEFAULT 'Unknown',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(drug_name, reaction_term)
	);

	CREATE INDEX IF NOT EXISTS idx_reference_drug_name ON reference_reactions(drug_name);
	`

	_, err := db.Exec(schema)
	return err
}

// SaveRecords upserts every (drug, reaction) pair of the given records in one transaction.
func (s *SQLiteStore) SaveRecords(ctx context.Context, records []domain.ReferenceRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO reference_reactions (drug_name, reaction_term, severity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(drug_name, reaction_term) DO UPDATE SET
			severity = excluded.severity,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, row := range flattenRecords(records) {
		if _, err := stmt.ExecContext(ctx, row.drug, row.reaction, row.severity, now, now); err != nil {
			return fmt.Errorf("failed to insert %s/%s: %w", row.drug, row.reaction, err)
		}
	}

	return tx.Commit()
}

// LoadRecords returns every stored record grouped by drug, ordered by drug name.
func (s *SQLiteStore) LoadRecords(ctx context.Context) ([]domain.ReferenceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT drug_name, reaction_term, severity
		FROM reference_reactions
		ORDER BY drug_name, reaction_term
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []reactionRow
	for rows.Next() {
		row, err := scanReactionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groupRows(result), nil
}

// Count returns the number of distinct drugs stored.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT drug_name) FROM reference_reactions").Scan(&count)
	return count, err
}

// DeleteDrug removes every reaction stored for a drug.
func (s *SQLiteStore) DeleteDrug(ctx context.Context, drugName string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM reference_reactions WHERE drug_name = ?", textnorm.Canonical(drugName))
	return err
}

// Export is the JSON snapshot format of a reference database.
type Export struct {
	Version    string                   `json:"version"`
	ExportedAt time.Time                `json:"exported_at"`
	Count      int                      `json:"count"`
	Records    []domain.ReferenceRecord `json:"records"`
}

// ExportJSON writes every stored record to writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	records, err := s.LoadRecords(ctx)
	if err != nil {
		return fmt.Errorf("failed to load records: %w", err)
	}

	export := &Export{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Count:      len(records),
		Records:    records,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// ImportJSON reads a snapshot written by ExportJSON and upserts its records.
// It returns the number of drugs imported.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (int, error) {
	var export Export
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, fmt.Errorf("failed to decode JSON: %w", err)
	}
	if err := s.SaveRecords(ctx, export.Records); err != nil {
		return 0, err
	}
	return len(export.Records), nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
