package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrUnknownFlag = errors.New("unknown status flag")
)

// Store is the sqlite-backed posting store shared by the pipeline, the
// retention sweeper and the triage surfaces.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates the database file if needed and runs migrations
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open with DSN options for SQLite pragmas
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return New(db), nil
}

// New wraps an already migrated database
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// DB exposes the underlying handle
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// stamp normalizes a time for storage so text comparisons in SQL stay ordered
func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// RunMigrations creates all necessary tables
func RunMigrations(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS postings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id TEXT NOT NULL UNIQUE,
		source TEXT NOT NULL DEFAULT 'linkedin',
		title TEXT NOT NULL,
		company TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		posted_at DATETIME NOT NULL,
		work_mode TEXT NOT NULL DEFAULT 'unknown',
		url TEXT NOT NULL DEFAULT '',
		saved BOOLEAN NOT NULL DEFAULT 0,
		saved_at DATETIME,
		applied BOOLEAN NOT NULL DEFAULT 0,
		applied_at DATETIME,
		interview BOOLEAN NOT NULL DEFAULT 0,
		interview_at DATETIME,
		rejected BOOLEAN NOT NULL DEFAULT 0,
		rejected_at DATETIME,
		hidden BOOLEAN NOT NULL DEFAULT 0,
		hidden_at DATETIME,
		cover_letter TEXT,
		ingested_at DATETIME NOT NULL,
		CHECK(work_mode IN ('onsite', 'hybrid', 'remote', 'unknown'))
	);

	CREATE TABLE IF NOT EXISTS rejected_postings (
		external_id TEXT PRIMARY KEY,
		source TEXT NOT NULL DEFAULT 'linkedin',
		title TEXT NOT NULL DEFAULT '',
		company TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL,
		rejected_at DATETIME NOT NULL
	);

	CREATE TRIGGER IF NOT EXISTS postings_ingested_at_immutable
	BEFORE UPDATE OF ingested_at ON postings
	BEGIN
		SELECT RAISE(ABORT, 'ingested_at is immutable');
	END;

	CREATE TRIGGER IF NOT EXISTS rejected_postings_disjoint
	BEFORE INSERT ON rejected_postings
	WHEN EXISTS (SELECT 1 FROM postings WHERE external_id = NEW.external_id)
	BEGIN
		SELECT RAISE(IGNORE);
	END;

	CREATE INDEX IF NOT EXISTS idx_postings_ingested_at ON postings(ingested_at);
	CREATE INDEX IF NOT EXISTS idx_postings_company ON postings(company);
	CREATE INDEX IF NOT EXISTS idx_postings_source ON postings(source);
	CREATE INDEX IF NOT EXISTS idx_rejected_postings_rejected_at ON rejected_postings(rejected_at);
	`

	_, err := db.Exec(schema)
	return err
}

// withTx runs fn in a short-lived transaction
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
