// Package store keeps uploaded glove submissions in SQLite. A submission
// row owns its signs, and each sign owns the raw glove frames of its trimmed
// selection; deleting a submission removes both.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store is the submission database. It implements session.Uploader and
// also serves merges, imports and exports for the submissions browser.
type Store struct {
	db   *sql.DB
	path string
}

// New opens or creates the database at dbPath and brings its schema up to
// date.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open submissions database: %w", err)
	}

	// Cascading deletes rely on foreign keys, which SQLite enables per
	// connection; keep a single one.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", dbPath, err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the connection for tests and maintenance.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}
