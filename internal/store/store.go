// Package store keeps the session journal: every command and parameter sent
// to the rover, plus the operator's settings. The journal normally lives in
// an in-memory SQLite database and is discarded on exit.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store represents a SQLite database connection holding one session.
type Store struct {
	db        *sql.DB
	path      string
	sessionID string
	startedAt time.Time
}

// New creates a new Store with the given database path.
// It opens the database connection, enables foreign keys, runs migrations
// and starts a new session.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{
		db:        db,
		path:      dbPath,
		sessionID: uuid.NewString(),
		startedAt: time.Now(),
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if _, err := db.Exec(
		`INSERT INTO sessions (id, started_at_ms) VALUES (?, ?)`,
		s.sessionID, s.startedAt.UnixMilli(),
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	return s, nil
}

// Memory creates a Store backed by an in-memory database.
func Memory() (*Store, error) {
	return New(MemoryPath)
}

// SessionID identifies the run this store was opened for.
func (s *Store) SessionID() string {
	return s.sessionID
}

// StartedAt returns when the session began.
func (s *Store) StartedAt() time.Time {
	return s.startedAt
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}
