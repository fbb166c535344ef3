package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog/log"
)

//go:embed postgres/*.sql sqlite3/*.sql
var files embed.FS

// Migrator applies the embedded schema for one dialect.
type Migrator struct {
	migrate *migrate.Migrate
	source  source.Driver
	dialect string
}

// New builds a migrator over an open connection. dialect is "postgres" or
// "sqlite3" and selects the embedded directory.
func New(db *sql.DB, dialect string) (*Migrator, error) {
	var (
		driver database.Driver
		err    error
	)
	switch dialect {
	case "postgres":
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	case "sqlite3":
		driver, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	default:
		return nil, fmt.Errorf("unsupported migration dialect %q", dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s driver: %w", dialect, err)
	}

	src, err := iofs.New(files, dialect)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, dialect, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return &Migrator{migrate: m, source: src, dialect: dialect}, nil
}

// Up runs all pending migrations
func (m *Migrator) Up() error {
	err := m.migrate.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info().Str("dialect", m.dialect).Msg("no migrations to apply")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration up failed: %w", err)
	}

	version, dirty, err := m.migrate.Version()
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	log.Info().Str("dialect", m.dialect).Uint("version", version).Bool("dirty", dirty).Msg("migrations completed")
	return nil
}

// Down rolls back all migrations
func (m *Migrator) Down() error {
	err := m.migrate.Down()
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info().Str("dialect", m.dialect).Msg("no migrations to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration down failed: %w", err)
	}
	log.Info().Str("dialect", m.dialect).Msg("all migrations rolled back")
	return nil
}

// Version returns the current migration version
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

// Close releases the embedded source. The database driver is left open
// because closing it would close the caller's connection pool.
func (m *Migrator) Close() error {
	if err := m.source.Close(); err != nil {
		return fmt.Errorf("failed to close source: %w", err)
	}
	return nil
}
