// Package database runs schema migrations for the PostgreSQL reference store.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// MigrationRunner handles database migrations
type MigrationRunner struct {
	migrate *migrate.Migrate
	log     *logrus.Logger
}

// NewMigrationRunner creates a migration runner. An empty migrationsPath
// uses the migrations compiled into the binary.
func NewMigrationRunner(databaseURL, migrationsPath string, logger *logrus.Logger) (*MigrationRunner, error) {
	var (
		m   *migrate.Migrate
		err error
	)
	if migrationsPath == "" {
		source, srcErr := iofs.New(embeddedMigrations, "migrations")
		if srcErr != nil {
			return nil, fmt.Errorf("opening embedded migrations: %w", srcErr)
		}
		m, err = migrate.NewWithSourceInstance("iofs", source, databaseURL)
	} else {
		m, err = migrate.New(fmt.Sprintf("file://%s", migrationsPath), databaseURL)
	}
	if err != nil {
		return nil, fmt.Errorf("creating migration instance: %w", err)
	}

	return &MigrationRunner{
		migrate: m,
		log:     logger,
	}, nil
}

// Up runs all pending migrations
func (mr *MigrationRunner) Up(ctx context.Context) error {
	mr.log.Info("Running database migrations up")

	if err := mr.migrate.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			mr.log.Info("No pending migrations to run")
			return nil
		}
		return fmt.Errorf("running migrations up: %w", err)
	}

	mr.logVersion("Migrations completed successfully")
	return nil
}

// Down rolls back one migration
func (mr *MigrationRunner) Down(ctx context.Context) error {
	mr.log.Info("Rolling back one migration")

	if err := mr.migrate.Steps(-1); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			mr.log.Info("No migrations to roll back")
			return nil
		}
		return fmt.Errorf("rolling back migration: %w", err)
	}

	mr.logVersion("Migration rolled back successfully")
	return nil
}

func (mr *MigrationRunner) logVersion(message string) {
	version, dirty, err := mr.migrate.Version()
	if err != nil {
		if !errors.Is(err, migrate.ErrNilVersion) {
			mr.log.WithError(err).Warn("Could not get migration version")
		}
		return
	}
	mr.log.WithFields(logrus.Fields{
		"version": version,
		"dirty":   dirty,
	}).Info(message)
}

// Version returns the current migration version
func (mr *MigrationRunner) Version() (uint, bool, error) {
	return mr.migrate.Version()
}

// Close closes the migration runner
func (mr *MigrationRunner) Close() error {
	sourceErr, dbErr := mr.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("closing migration source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("closing migration database: %w", dbErr)
	}
	return nil
}
