package reference

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ade-signal-mcp-server/internal/domain"
)

func TestNewPostgresStore_NilDB(t *testing.T) {
	_, err := NewPostgresStore(nil)
	assert.Error(t, err)
}

func TestPostgresStore_LoadRecords_Mock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"drug_name", "reaction_term", "severity"}).
		AddRow("aspirin", "bleeding", "Critical").
		AddRow("aspirin", "nausea", "Critical").
		AddRow("lisinopril", "cough", "Needs Attention")
	mock.ExpectQuery("SELECT drug_name, reaction_term, severity FROM reference_reactions").WillReturnRows(rows)

	records, err := store.LoadRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "aspirin", records[0].DrugName)
	assert.Equal(t, []string{"bleeding", "nausea"}, records[0].ReactionTerms)
	assert.Equal(t, domain.SeverityCritical, records[0].Severity)
	assert.Equal(t, "lisinopril", records[1].DrugName)
	assert.Equal(t, domain.SeverityNeedsAttention, records[1].Severity)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadRecords_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT drug_name").WillReturnError(errors.New("connection reset"))

	_, err = store.LoadRecords(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query reference reactions")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRecords_Mock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reference_reactions").
		WithArgs("aspirin", "bleeding", "Critical", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO reference_reactions").
		WithArgs("aspirin", "nausea", "Critical", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	err = store.SaveRecords(context.Background(), []domain.ReferenceRecord{
		{DrugName: "ASPIRIN", ReactionTerms: []string{"Nausea", "Bleeding", "nausea"}, Severity: domain.SeverityCritical},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRecords_RollbackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reference_reactions").WillReturnError(errors.New("unique violation"))
	mock.ExpectRollback()

	err = store.SaveRecords(context.Background(), []domain.ReferenceRecord{
		{DrugName: "aspirin", ReactionTerms: []string{"nausea"}, Severity: domain.SeverityCritical},
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Count_Mock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT COUNT\\(DISTINCT drug_name\\) FROM reference_reactions").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// getTestDB returns a database connection for testing.
// Skip test if TEST_DATABASE_URL is not set.
func getTestDB(t *testing.T) *sql.DB {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL tests")
	}

	db, err := sql.Open("postgres", dbURL)
	require.NoError(t, err)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS reference_reactions (
			id BIGSERIAL PRIMARY KEY,
			drug_name TEXT NOT NULL,
			reaction_term TEXT NOT NULL,
			severity TEXT NOT NULL DEFAULT 'Unknown',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			CONSTRAINT reference_reactions_drug_reaction_unique UNIQUE (drug_name, reaction_term)
		)
	`)
	require.NoError(t, err)

	_, err = db.Exec("DELETE FROM reference_reactions")
	require.NoError(t, err)

	return db
}

func TestPostgresStore_RoundTrip(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.SaveRecords(ctx, sampleRecords()))

	records, err := store.LoadRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "aspirin", records[0].DrugName)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
