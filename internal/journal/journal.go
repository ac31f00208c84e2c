// Package journal keeps an append-only SQLite log of recorded brightness
// observations. The history document only holds the current curves; the
// journal answers "what did I set, and when".
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrClosed is returned by operations on a closed journal.
var ErrClosed = errors.New("journal: closed")

// Entry is one recorded observation.
type Entry struct {
	ID         uuid.UUID
	RecordedAt time.Time
	Light      float64
	Brightness int
	// Promoted reports whether recording this entry promoted the newest
	// history to stable.
	Promoted bool
}

// Journal is the SQLite-backed observation log.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal database at path and migrates it.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}

// Append stores e. A nil ID is replaced with a new random one and a zero
// RecordedAt with the current time; the stored values are written back to e.
func (j *Journal) Append(ctx context.Context, e *Entry) error {
	if j.db == nil {
		return ErrClosed
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO observations (id, recorded_at_ns, light, brightness, promoted)
		VALUES (?, ?, ?, ?, ?)`,
		e.ID.String(), e.RecordedAt.UnixNano(), e.Light, e.Brightness, e.Promoted,
	)
	if err != nil {
		return fmt.Errorf("insert observation: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if j.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		return nil, nil
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, recorded_at_ns, light, brightness, promoted
		FROM observations
		ORDER BY recorded_at_ns DESC, seq DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e  Entry
			id string
			ns int64
		)
		if err := rows.Scan(&id, &ns, &e.Light, &e.Brightness, &e.Promoted); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse observation id %q: %w", id, err)
		}
		e.RecordedAt = time.Unix(0, ns)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}
	return entries, nil
}

// Count returns the number of stored entries.
func (j *Journal) Count(ctx context.Context) (int, error) {
	if j.db == nil {
		return 0, ErrClosed
	}
	var n int
	if err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM observations").Scan(&n); err != nil {
		return 0, fmt.Errorf("count observations: %w", err)
	}
	return n, nil
}
