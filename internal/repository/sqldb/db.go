package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/andresuchdata/inventariate/backend-go/internal/config"
)

// Supported database/sql driver names.
const (
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

type DB struct {
	*sqlx.DB
	sem *semaphore.Weighted
}

// Wrap adopts an existing connection, used by tests with sqlmock.
func Wrap(db *sqlx.DB) *DB {
	return &DB{DB: db, sem: semaphore.NewWeighted(10)}
}

// NewDB opens the configured backend: DATABASE_URL through pgx, host
// settings through lib/pq, and a local sqlite file when neither is set.
func NewDB(cfg *config.DatabaseConfig) (*DB, error) {
	driver, dsn, err := resolveDSN(cfg)
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		// sqlite allows a single writer
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	log.Info().Str("driver", driver).Msg("database connected")
	return Wrap(db), nil
}

func resolveDSN(cfg *config.DatabaseConfig) (driver, dsn string, err error) {
	switch {
	case cfg.Driver == DriverSQLite || (cfg.Driver == "" && cfg.URL == "" && cfg.Host == ""):
		if cfg.SQLitePath == "" {
			return "", "", fmt.Errorf("sqlite path must be provided")
		}
		return DriverSQLite, fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", cfg.SQLitePath), nil
	case cfg.URL != "" && (cfg.Driver == "" || cfg.Driver == DriverPgx):
		return DriverPgx, cfg.URL, nil
	case cfg.URL != "" && cfg.Driver == DriverPostgres:
		return DriverPostgres, cfg.URL, nil
	case cfg.Host != "" && (cfg.Driver == "" || cfg.Driver == DriverPostgres || cfg.Driver == DriverPgx):
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
		if cfg.Driver == DriverPgx {
			return DriverPgx, dsn, nil
		}
		return DriverPostgres, dsn, nil
	}
	return "", "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// Dialect reports the migration dialect: "postgres" or "sqlite3".
func (db *DB) Dialect() string {
	if db.DriverName() == DriverSQLite {
		return DriverSQLite
	}
	return DriverPostgres
}

// WithTx executes a function within a transaction
func (db *DB) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	// Acquire semaphore
	if err := db.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("could not acquire semaphore: %w", err)
	}
	defer db.sem.Release(1)

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			log.Error().Err(rbErr).Msg("could not rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}
