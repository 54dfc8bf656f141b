package ledger

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var schemaFS embed.FS

// migrateSchema brings the episodes table up to date and returns the schema
// version. A database left dirty by an interrupted migration is an error.
func migrateSchema(db *sql.DB) (uint, error) {
	source, err := iofs.New(schemaFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("failed to read ledger schema: %w", err)
	}

	target, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("failed to prepare ledger database: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", target)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare ledger schema: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to migrate ledger schema: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("failed to read ledger schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("ledger schema is dirty at version %d", version)
	}

	return version, nil
}
