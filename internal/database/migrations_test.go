package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ade-signal-mcp-server/internal/domain"
	"github.com/ade-signal-mcp-server/internal/reference"
)

func TestEmbeddedMigrations(t *testing.T) {
	names, err := fs.Glob(embeddedMigrations, "migrations/*.sql")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"migrations/000001_create_reference_reactions.up.sql",
		"migrations/000001_create_reference_reactions.down.sql",
	}, names)
}

func TestNewMigrationRunner_BadURL(t *testing.T) {
	logger, _ := test.NewNullLogger()
	_, err := NewMigrationRunner("not-a-url", "", logger)
	assert.Error(t, err)
}

func TestMigrationsAgainstPostgres(t *testing.T) {
	if os.Getenv("ADE_INTEGRATION") != "1" {
		t.Skip("set ADE_INTEGRATION=1 to run container-backed tests")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	}()

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)
	databaseURL := fmt.Sprintf("postgres://testuser:testpass@%s:%d/testdb?sslmode=disable", host, port.Int())

	logger, _ := test.NewNullLogger()
	runner, err := NewMigrationRunner(databaseURL, "", logger)
	require.NoError(t, err)
	defer runner.Close()

	require.NoError(t, runner.Up(ctx))
	require.NoError(t, runner.Up(ctx), "second up is a no-op")

	version, dirty, err := runner.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)
	defer db.Close()

	store, err := reference.NewPostgresStore(db)
	require.NoError(t, err)
	require.NoError(t, store.SaveRecords(ctx, []domain.ReferenceRecord{
		{DrugName: "Lisinopril", ReactionTerms: []string{"Cough", "Angioedema"}, Severity: domain.SeverityCritical},
	}))

	records, err := store.LoadRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"angioedema", "cough"}, records[0].ReactionTerms)

	_, err = db.ExecContext(ctx, `INSERT INTO reference_reactions (drug_name, reaction_term, severity) VALUES ('x', 'y', 'Bogus')`)
	assert.Error(t, err, "severity check constraint")

	require.NoError(t, runner.Down(ctx))
	var exists bool
	require.NoError(t, db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'reference_reactions')`).Scan(&exists))
	assert.False(t, exists)
}
