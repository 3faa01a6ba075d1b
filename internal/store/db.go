// Package store is the canonical embedded relational store: SQLite in WAL
// mode, schema migrations tracked via PRAGMA user_version, and the queries
// that back every other package in the pipeline.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// DB wraps the SQLite connection pool plus the logger handed to every query.
type DB struct {
	conn   *sql.DB
	logger *zap.Logger
}

// Open opens (creating if absent) the SQLite database at path, enables WAL
// mode and foreign keys, and runs pending migrations.
func Open(path string, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows exactly one writer; keep the pool small and serialize
	// writers through its own locking rather than Go-level pooling surprises.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := conn.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := Migrate(conn, logger); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &DB{conn: conn, logger: logger}, nil
}

// Conn exposes the underlying *sql.DB for packages that need raw queries.
func (d *DB) Conn() *sql.DB { return d.conn }

// Logger returns the logger this store was opened with.
func (d *DB) Logger() *zap.Logger { return d.logger }

// Close closes the underlying connection pool.
func (d *DB) Close() error { return d.conn.Close() }
