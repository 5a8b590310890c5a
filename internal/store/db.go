// Package store provides the embedded SQLite write-ahead store for records.
//
// The store is the synchronous source of truth for the application: every
// mutation completes locally before the call returns, regardless of
// connectivity. Sync bookkeeping (the sync_queue and conflicts tables) lives
// in the same database file so that pending work survives process restarts
// and mode switches.
//
// The database runs in embedded mode using SQLite with WAL for concurrency
// support.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store wraps the SQLite database connection holding all local state.
type Store struct {
	conn *sql.DB
	path string

	// writeMu serializes record mutations so that a push reading a pending
	// payload never races with a concurrent local edit to the same record.
	// A single global lock keeps the locking story simple; per-record locks
	// are not worth the bookkeeping at this scale.
	writeMu sync.Mutex
}

// Open creates a new database connection at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// If the database doesn't exist, it will be created; call InitSchema to
// create the tables.
//
// The caller MUST call Close() when done to ensure proper cleanup.
func Open(path string) (*Store, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s", path)
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	st := &Store{
		conn: conn,
		path: path,
	}

	// Enable WAL mode for concurrent reads
	if _, err := st.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := st.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := st.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return st, nil
}

// RawDB returns the underlying sql.DB connection.
// The conflict ledger shares this connection for its own table.
func (s *Store) RawDB() *sql.DB {
	return s.conn
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	// Checkpoint WAL before closing
	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}

// InitSchema creates the database schema if it doesn't exist.
//
// This creates one table per entity type plus the sync_queue and conflicts
// tables. This is idempotent - safe to call multiple times.
func (s *Store) InitSchema() error {
	return s.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (s *Store) InitSchemaContext(ctx context.Context) error {
	schema := `
	-- Entity tables: identical shape, one per record type.
	-- Typed fields live in the JSON payload; the extracted columns exist
	-- for sync bookkeeping and owner-scoped listing.
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		sync_status TEXT NOT NULL DEFAULT 'pending',
		payload TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		sync_status TEXT NOT NULL DEFAULT 'pending',
		payload TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS board_columns (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		sync_status TEXT NOT NULL DEFAULT 'pending',
		payload TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS reminders (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		sync_status TEXT NOT NULL DEFAULT 'pending',
		payload TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS chat_sessions (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		sync_status TEXT NOT NULL DEFAULT 'pending',
		payload TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS credentials (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		sync_status TEXT NOT NULL DEFAULT 'pending',
		payload TEXT NOT NULL
	);

	-- Append-only ledger of pending mutations, drained by the reconciler.
	CREATE TABLE IF NOT EXISTS sync_queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id TEXT NOT NULL,
		tbl TEXT NOT NULL,
		op TEXT NOT NULL,
		record_id TEXT NOT NULL,
		payload TEXT,
		enqueued_at TEXT NOT NULL
	);

	-- Open conflicts; at most one per record id.
	CREATE TABLE IF NOT EXISTS conflicts (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		tbl TEXT NOT NULL,
		record_id TEXT NOT NULL UNIQUE,
		conflict_type TEXT NOT NULL,
		local_snapshot TEXT NOT NULL,
		remote_snapshot TEXT NOT NULL,
		detected_at TEXT NOT NULL
	);

	-- Indexes for common queries
	CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(owner_id);
	CREATE INDEX IF NOT EXISTS idx_messages_owner ON messages(owner_id);
	CREATE INDEX IF NOT EXISTS idx_board_columns_owner ON board_columns(owner_id);
	CREATE INDEX IF NOT EXISTS idx_reminders_owner ON reminders(owner_id);
	CREATE INDEX IF NOT EXISTS idx_chat_sessions_owner ON chat_sessions(owner_id);
	CREATE INDEX IF NOT EXISTS idx_credentials_owner ON credentials(owner_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(sync_status);
	CREATE INDEX IF NOT EXISTS idx_queue_owner ON sync_queue(owner_id);
	CREATE INDEX IF NOT EXISTS idx_queue_record ON sync_queue(tbl, record_id);
	CREATE INDEX IF NOT EXISTS idx_conflicts_owner ON conflicts(owner_id);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}
