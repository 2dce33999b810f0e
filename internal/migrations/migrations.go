package migrations

import (
	"database/sql"
	"errors"
	"fmt"
)

// Migration represents a single database migration
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: 1,
		Name:    "Add lookup indices for call journal",
		Up: `
			CREATE INDEX IF NOT EXISTS idx_calls_method ON calls(method);
			CREATE INDEX IF NOT EXISTS idx_calls_timestamp ON calls(timestamp DESC);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_calls_method;
			DROP INDEX IF EXISTS idx_calls_timestamp;
		`,
	},
	{
		Version: 2,
		Name:    "Add composite index for per-category history",
		Up: `
			CREATE INDEX IF NOT EXISTS idx_calls_category_timestamp ON calls(category, timestamp DESC);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_calls_category_timestamp;
		`,
	},
	{
		Version: 3,
		Name:    "Add covering index for per-method stats",
		Up: `
			CREATE INDEX IF NOT EXISTS idx_calls_stats ON calls(method, category, error_kind, duration_ms, timestamp);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_calls_stats;
		`,
	},
}

// InitSchema creates all tables used by the journal
func InitSchema(db *sql.DB) error {
	schema := `
	-- RPC call journal
	CREATE TABLE IF NOT EXISTS calls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		method TEXT NOT NULL,
		category TEXT NOT NULL,
		wallet TEXT,
		args TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		error_kind TEXT,
		error_code INTEGER,
		error_message TEXT
	);

	-- Saved JMESPath result filters
	CREATE TABLE IF NOT EXISTS filters (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		expression TEXT NOT NULL UNIQUE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_filters_created_at ON filters(created_at DESC);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Run creates the schema and applies pending migrations, each in its own
// transaction.
func Run(db *sql.DB) error {
	if err := InitSchema(db); err != nil {
		return err
	}
	if _, err := db.Exec(versionTable); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	current, err := GetCurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, mig := range AllMigrations {
		if mig.Version <= current {
			continue
		}
		err := inTx(db, func(tx *sql.Tx) error {
			if _, err := tx.Exec(mig.Up); err != nil {
				return err
			}
			_, err := tx.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", mig.Version, mig.Name, err)
		}
	}
	return nil
}

// Rollback reverts applied migrations newer than target, newest first.
func Rollback(db *sql.DB, target int) error {
	current, err := GetCurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for i := len(AllMigrations) - 1; i >= 0; i-- {
		mig := AllMigrations[i]
		if mig.Version > current || mig.Version <= target {
			continue
		}
		err := inTx(db, func(tx *sql.Tx) error {
			if _, err := tx.Exec(mig.Down); err != nil {
				return err
			}
			_, err := tx.Exec("DELETE FROM schema_migrations WHERE version = ?", mig.Version)
			return err
		})
		if err != nil {
			return fmt.Errorf("rollback %d (%s): %w", mig.Version, mig.Name, err)
		}
	}
	return nil
}

const versionTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`

func inTx(db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// GetCurrentVersion returns the highest applied migration, 0 when none.
func GetCurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	return version, nil
}
