// Package db is the server's persistent store: a single sqlite file
// holding users, scores, songs, record-break events, parsed chart
// metadata and bot bookkeeping. Schema changes run as versioned
// migrations at startup.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB is a wrapper around sql.DB
type DB struct {
	*sql.DB
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "/" && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Test the connection
	if err = db.Ping(); err != nil {
		return nil, err
	}

	// A single writer keeps the per-submission transactions simple.
	db.SetMaxOpenConns(1)

	return &DB{db}, nil
}

// migration is one ordered schema step. Its statements run in a
// transaction together with the schema_version bump, so a partially
// applied migration is never recorded as done.
type migration struct {
	version    int
	statements []string
}

var migrations = []migration{
	{
		version: 1,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS users (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				external_id TEXT NOT NULL UNIQUE,
				display_name TEXT NOT NULL,
				auth_token TEXT NOT NULL UNIQUE,
				created_at TIMESTAMP NOT NULL,
				last_seen TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS scores (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL,
				chart_id TEXT NOT NULL,
				instrument INTEGER NOT NULL,
				difficulty INTEGER NOT NULL,
				score INTEGER NOT NULL,
				completion_percent REAL NOT NULL DEFAULT 0,
				stars INTEGER NOT NULL DEFAULT 0,
				is_full_combo BOOLEAN NOT NULL DEFAULT 0,
				notes_total INTEGER,
				submitted_at TIMESTAMP NOT NULL,
				UNIQUE(chart_id, instrument, difficulty, user_id),
				FOREIGN KEY (user_id) REFERENCES users(id)
			)`,
			`CREATE TABLE IF NOT EXISTS songs (
				chart_id TEXT NOT NULL UNIQUE,
				title TEXT NOT NULL DEFAULT '',
				artist TEXT NOT NULL DEFAULT '',
				album TEXT NOT NULL DEFAULT '',
				charter TEXT NOT NULL DEFAULT '',
				length_ms INTEGER NOT NULL DEFAULT 0,
				first_seen TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS pairing_codes (
				code TEXT NOT NULL UNIQUE,
				client_id TEXT NOT NULL,
				external_id TEXT,
				auth_token TEXT,
				created_at TIMESTAMP NOT NULL,
				expires_at TIMESTAMP NOT NULL,
				completed BOOLEAN NOT NULL DEFAULT 0
			)`,
			`CREATE INDEX IF NOT EXISTS idx_scores_fingerprint ON scores(chart_id, instrument, difficulty)`,
			`CREATE INDEX IF NOT EXISTS idx_scores_user ON scores(user_id)`,
			`CREATE INDEX IF NOT EXISTS idx_songs_chart ON songs(chart_id)`,
			`CREATE INDEX IF NOT EXISTS idx_pairing_code ON pairing_codes(code)`,
		},
	},
	{
		version: 2,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS record_breaks (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL,
				chart_id TEXT NOT NULL,
				instrument INTEGER NOT NULL,
				difficulty INTEGER NOT NULL,
				new_score INTEGER NOT NULL,
				previous_score INTEGER,
				previous_holder_id INTEGER,
				broken_at TIMESTAMP NOT NULL,
				FOREIGN KEY (user_id) REFERENCES users(id)
			)`,
		},
	},
	{
		version: 3,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS chart_metadata (
				chart_id TEXT NOT NULL,
				instrument INTEGER NOT NULL,
				difficulty INTEGER NOT NULL,
				total_notes INTEGER NOT NULL DEFAULT 0,
				chord_count INTEGER NOT NULL DEFAULT 0,
				tap_count INTEGER NOT NULL DEFAULT 0,
				open_note_count INTEGER NOT NULL DEFAULT 0,
				star_power_phrases INTEGER NOT NULL DEFAULT 0,
				song_length_ms INTEGER NOT NULL DEFAULT 0,
				note_density REAL NOT NULL DEFAULT 0,
				song_name TEXT NOT NULL DEFAULT '',
				artist TEXT NOT NULL DEFAULT '',
				charter TEXT NOT NULL DEFAULT '',
				genre TEXT NOT NULL DEFAULT '',
				chart_file_path TEXT NOT NULL DEFAULT '',
				parsed_at TIMESTAMP NOT NULL,
				UNIQUE(chart_id, instrument, difficulty)
			)`,
		},
	},
	{
		version: 4,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS bot_metadata (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`,
		},
	},
}

// Initialize sets up the database tables, applying every migration newer
// than the recorded schema version. Safe to run at every startup.
func (db *DB) Initialize() error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	var current sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, m := range migrations {
		if current.Valid && m.version <= int(current.Int64) {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		for _, stmt := range m.statements {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("migration %d: %w", m.version, err)
			}
		}
		if _, err := tx.Exec(`INSERT INTO schema_version (version, applied_at) VALUES (?, ?)`,
			m.version, time.Now().UTC()); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", m.version, err)
		}
	}
	return nil
}
