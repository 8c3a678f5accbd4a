package postgres

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// NewMigrator returns a migrate instance backed by the embedded SQL files.
// databaseURL must be a postgres:// URL.
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("postgres.NewMigrator: source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres.NewMigrator: %w", err)
	}

	return m, nil
}

// MigrateUp applies all pending migrations. Being already current is not an error.
func MigrateUp(databaseURL string) error {
	return runMigration(databaseURL, "postgres.MigrateUp", (*migrate.Migrate).Up)
}

// MigrateDown reverts every applied migration.
func MigrateDown(databaseURL string) error {
	return runMigration(databaseURL, "postgres.MigrateDown", (*migrate.Migrate).Down)
}

func runMigration(databaseURL, caller string, step func(*migrate.Migrate) error) error {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return fmt.Errorf("%s: %w", caller, err)
	}
	defer m.Close()

	if err := step(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: %w", caller, err)
	}

	return nil
}
