package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind tells a motor command from a parameter update.
type Kind string

const (
	KindCommand Kind = "command"
	KindParam   Kind = "param"
)

// Entry is one journaled call to the rover.
type Entry struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	Kind      Kind          `json:"kind"`
	Name      string        `json:"name"`
	Value     int           `json:"value"`
	Status    int           `json:"status"`
	Error     string        `json:"error,omitempty"`
	Latency   time.Duration `json:"latency"`
	At        time.Time     `json:"at"`
}

// OK reports whether the rover answered 200.
func (e *Entry) OK() bool {
	return e.Error == "" && e.Status == 200
}

// CommandRepository records and lists journal entries.
type CommandRepository struct {
	db        *sql.DB
	sessionID string
}

// Commands returns the command journal for this store.
func (s *Store) Commands() *CommandRepository {
	return &CommandRepository{db: s.db, sessionID: s.sessionID}
}

// Record inserts e, filling in its ID, session and timestamp when unset.
func (r *CommandRepository) Record(e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.SessionID == "" {
		e.SessionID = r.sessionID
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO commands (id, session_id, kind, name, value, status, error, latency_ms, at_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, string(e.Kind), e.Name, e.Value, e.Status, e.Error,
		e.Latency.Milliseconds(), e.At.UnixMilli(),
	)
	return err
}

// GetByID retrieves an entry by its ID.
func (r *CommandRepository) GetByID(id string) (*Entry, error) {
	row := r.db.QueryRow(
		`SELECT id, session_id, kind, name, value, status, error, latency_ms, at_ms
		 FROM commands WHERE id = ?`,
		id,
	)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// List returns up to limit entries, newest first. A non-positive limit
// returns everything.
func (r *CommandRepository) List(limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(
		`SELECT id, session_id, kind, name, value, status, error, latency_ms, at_ms
		 FROM commands ORDER BY at_ms DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// Count returns the number of entries and how many of them failed.
func (r *CommandRepository) Count() (total, failed int, err error) {
	err = r.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN error != '' OR status != 200 THEN 1 ELSE 0 END), 0)
		 FROM commands`,
	).Scan(&total, &failed)
	return total, failed, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	e := &Entry{}
	var kind string
	var latencyMs, atMs int64
	if err := s.Scan(&e.ID, &e.SessionID, &kind, &e.Name, &e.Value, &e.Status, &e.Error, &latencyMs, &atMs); err != nil {
		return nil, err
	}
	e.Kind = Kind(kind)
	e.Latency = time.Duration(latencyMs) * time.Millisecond
	e.At = time.UnixMilli(atMs)
	return e, nil
}
