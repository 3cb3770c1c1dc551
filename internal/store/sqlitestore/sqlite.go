// Package sqlitestore is the primary Store backend: database/sql over
// modernc.org/sqlite (pure Go, no cgo). Structured fields persist as
// JSON-serialized blobs alongside indexed scalar columns for the hot-path
// lookups.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ghiac/journal/internal/store"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a sqlite-backed implementation of store.Store.
type SQLiteStore struct {
	db    *sql.DB
	debug bool
}

// New opens (creating if necessary) a sqlite database at dbPath. An empty
// dbPath uses ":memory:". debug enables the loud-failure cross-user-read
// check.
func New(dbPath string, debug bool) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlitestore: create directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open: %w", err)
	}
	// modernc.org/sqlite serializes access internally; a single connection
	// avoids SQLITE_BUSY under our advisory-locked write pattern.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, debug: debug}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: init schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	const schema = `
	PRAGMA foreign_keys = ON;

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT,
		password_hash TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		is_verified INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email) WHERE email IS NOT NULL AND email != '';

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		token_hash TEXT NOT NULL UNIQUE,
		expires_at INTEGER NOT NULL,
		revoked INTEGER NOT NULL DEFAULT 0,
		user_agent TEXT,
		ip TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_auth_sessions_user_id ON auth_sessions(user_id);

	CREATE TABLE IF NOT EXISTS preferences (
		user_id TEXT PRIMARY KEY,
		purpose_statement TEXT NOT NULL DEFAULT '',
		long_term_goals TEXT NOT NULL DEFAULT '[]',
		known_challenges TEXT NOT NULL DEFAULT '[]',
		preferred_feedback TEXT NOT NULL DEFAULT 'balanced',
		glossary TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS templates (
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		section_order TEXT NOT NULL DEFAULT '[]',
		sections TEXT NOT NULL DEFAULT '{}',
		is_active INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, name)
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_templates_one_active ON templates(user_id) WHERE is_active = 1;

	CREATE TABLE IF NOT EXISTS chat_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		conversation_type TEXT NOT NULL DEFAULT 'journaling',
		is_active INTEGER NOT NULL DEFAULT 1,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_sessions_user_id ON chat_sessions(user_id);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL,
		seq INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_messages_session_id ON chat_messages(session_id, seq);

	CREATE TABLE IF NOT EXISTS drafts (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		draft_data TEXT NOT NULL DEFAULT '{}',
		metadata TEXT NOT NULL DEFAULT '{}',
		is_finalized INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS journal_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		session_id TEXT,
		title TEXT NOT NULL,
		structured_data TEXT NOT NULL DEFAULT '{}',
		raw_text TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_journal_entries_user_id ON journal_entries(user_id);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		priority INTEGER NOT NULL,
		is_completed INTEGER NOT NULL DEFAULT 0,
		completed_at INTEGER,
		due_date INTEGER,
		source_session_id TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_user_id ON tasks(user_id, is_completed, priority);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Begin starts a new transaction.
func (s *SQLiteStore) Begin(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: begin: %w", err)
	}
	return &sqliteTx{tx: tx, debug: s.debug}, nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
