package reference

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/ade-signal-mcp-server/internal/domain"
)

// PostgresStore implements domain.ReferenceStore using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL reference store.
// It expects the schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL reference store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string, maxOpen, maxIdle int, maxLifetime time.Duration) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// SaveRecords upserts every (drug, reaction) pair of the given records in one transaction.
func (s *PostgresStore) SaveRecords(ctx context.Context, records []domain.ReferenceRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO reference_reactions (drug_name, reaction_term, severity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (drug_name, reaction_term) DO UPDATE SET
			severity = EXCLUDED.severity,
			updated_at = EXCLUDED.updated_at
	`

	now := time.Now()
	for _, row := range flattenRecords(records) {
		if _, err := tx.ExecContext(ctx, query, row.drug, row.reaction, row.severity, now, now); err != nil {
			return fmt.Errorf("failed to save reference reaction: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reference import: %w", err)
	}
	return nil
}

// LoadRecords returns every stored record grouped by drug, ordered by drug name.
func (s *PostgresStore) LoadRecords(ctx context.Context) ([]domain.ReferenceRecord, error) {
	query := `
		SELECT drug_name, reaction_term, severity
		FROM reference_reactions
		ORDER BY drug_name, reaction_term
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query reference reactions: %w", err)
	}
	defer rows.Close()

	var result []reactionRow
	for rows.Next() {
		row, err := scanReactionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reference reaction: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groupRows(result), nil
}

// Count returns the number of distinct drugs stored.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT drug_name) FROM reference_reactions").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reference drugs: %w", err)
	}
	return count, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
