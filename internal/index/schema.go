// Package index provides a SQLite-backed reference cache and a queryable copy
// of the latest scan results.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS files (
	path       TEXT PRIMARY KEY,
	checksum   TEXT NOT NULL DEFAULT '',
	scanned_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS refs (
	source   TEXT NOT NULL,
	raw      TEXT NOT NULL,
	kind     TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	rule     TEXT NOT NULL DEFAULT '',
	line     INTEGER NOT NULL DEFAULT 0,
	seq      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_refs_source ON refs(source);

CREATE TABLE IF NOT EXISTS results (
	source   TEXT NOT NULL,
	raw      TEXT NOT NULL,
	target   TEXT NOT NULL,
	kind     TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	status   TEXT NOT NULL,
	line     INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_results_target ON results(target);
CREATE INDEX IF NOT EXISTS idx_results_status ON results(status);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
