package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/wishaday/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 2

// Init initializes the SQLite database at baseDir/wishaday.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.wishaday.
func Init(baseDir string) (*sql.DB, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	// Pragmas in the connection string apply to every pooled connection.
	// _txlock=immediate makes BeginTx take the write lock up front, so a
	// transaction's reads and writes are serialized against other writers.
	dbPath := filepath.Join(baseDir, "wishaday.db")
	dsn := dbPath + "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: wishes, images, quota events
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS wishes (
		  id              TEXT PRIMARY KEY,
		  slug            TEXT NOT NULL UNIQUE,
		  title           TEXT,
		  message         TEXT NOT NULL,
		  theme           TEXT NOT NULL,
		  expires_at      INTEGER,
		  max_views       INTEGER CHECK (max_views IS NULL OR max_views > 0),
		  current_views   INTEGER NOT NULL DEFAULT 0,
		  origin_fp       TEXT NOT NULL,
		  created_at      INTEGER NOT NULL,
		  soft_deleted_at INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_wishes_soft_deleted
		ON wishes(soft_deleted_at, id)
		WHERE soft_deleted_at IS NOT NULL;

		CREATE TABLE IF NOT EXISTS wish_images (
		  id         TEXT PRIMARY KEY,
		  wish_id    TEXT NOT NULL REFERENCES wishes(id) ON DELETE CASCADE,
		  path       TEXT NOT NULL,
		  created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_wish_images_wish
		ON wish_images(wish_id, created_at);

		CREATE TABLE IF NOT EXISTS quota_events (
		  id         INTEGER PRIMARY KEY AUTOINCREMENT,
		  origin_fp  TEXT NOT NULL,
		  created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_quota_events_origin
		ON quota_events(origin_fp, created_at);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
		version = 1
	}

	// Migration 1 -> 2: expires_at and soft_deleted_at move from seconds to milliseconds
	if version < 2 {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migration 2 failed: %w", err)
		}
		_, err = tx.Exec(`
			UPDATE wishes SET
			  expires_at      = expires_at * 1000,
			  soft_deleted_at = soft_deleted_at * 1000
			WHERE expires_at IS NOT NULL OR soft_deleted_at IS NOT NULL
		`)
		if err == nil {
			_, err = tx.Exec("PRAGMA user_version = 2")
		}
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("migration 2 failed: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration 2 failed: %w", err)
		}
	}

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
