// Package storage persists the link graph in a SQLite database.
package storage

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	db *sql.DB
}

// Sentinel errors surfaced by store reads and writes.
var (
	ErrNotFound   = errors.New("not found")
	ErrRuleExists = errors.New("platform already has a rule")
)

// OpenDB opens or creates a SQLite database at the given path.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// createSchema creates the database schema if it doesn't exist.
func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS nodes (
			id TEXT PRIMARY KEY,
			platform TEXT NOT NULL,
			country TEXT,
			language TEXT NOT NULL,
			themes_json TEXT,
			type TEXT NOT NULL,
			status TEXT NOT NULL,
			content TEXT,
			pillar_id TEXT,
			processed_at TEXT,
			content_hash TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_nodes_platform ON nodes(platform);

		CREATE TABLE IF NOT EXISTS internal_edges (
			id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			anchor TEXT NOT NULL,
			category TEXT NOT NULL,
			paragraph INTEGER NOT NULL,
			origin TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_internal_source ON internal_edges(source_id);
		CREATE INDEX IF NOT EXISTS idx_internal_target ON internal_edges(target_id);

		CREATE TABLE IF NOT EXISTS external_edges (
			id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL,
			domain TEXT NOT NULL,
			authority INTEGER NOT NULL,
			type TEXT NOT NULL,
			status TEXT NOT NULL,
			verified_at TEXT,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_external_source ON external_edges(source_id);

		CREATE TABLE IF NOT EXISTS domains (
			domain TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			countries_json TEXT,
			topics_json TEXT,
			authority INTEGER NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			failures INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS rules (
			platform TEXT PRIMARY KEY,
			rule_json TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS scores (
			platform TEXT NOT NULL,
			node_id TEXT NOT NULL,
			score REAL NOT NULL,
			iterations INTEGER NOT NULL,
			computed_at TEXT NOT NULL,
			PRIMARY KEY (platform, node_id)
		);
	`

	_, err := db.Exec(schema)
	return err
}

// scanner abstracts sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
