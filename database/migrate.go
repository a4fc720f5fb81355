// Package database holds the schema migrations and applies them with goose.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

func newProvider(db *sql.DB) (*goose.Provider, error) {
	fsys, err := fs.Sub(migrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return provider, nil
}

// Migrate applies all pending migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	provider, err := newProvider(db)
	if err != nil {
		return err
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

// MigrationStatus describes one migration and whether it has been applied.
type MigrationStatus struct {
	Version int64
	Source  string
	Applied bool
}

// Status reports the state of every known migration.
func Status(ctx context.Context, db *sql.DB) ([]MigrationStatus, error) {
	provider, err := newProvider(db)
	if err != nil {
		return nil, err
	}

	results, err := provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration status: %w", err)
	}

	statuses := make([]MigrationStatus, 0, len(results))
	for _, r := range results {
		statuses = append(statuses, MigrationStatus{
			Version: r.Source.Version,
			Source:  r.Source.Path,
			Applied: r.State == goose.StateApplied,
		})
	}

	return statuses, nil
}
