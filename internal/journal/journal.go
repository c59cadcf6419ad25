// Package journal persists renewal outcomes to a SQLite database. The
// journal is strictly observational: the pipeline works identically
// with a nil journal, and journal errors never fail a renewal.
package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one renewal attempt, successful or not.
type Entry struct {
	Path       string
	Outcome    string // "success" or "failure"
	ErrorKind  string
	Message    string
	ThisUpdate time.Time
	NextUpdate time.Time
	At         time.Time
}

// Outcome values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

const schema = `
CREATE TABLE IF NOT EXISTS renewals (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    path        TEXT NOT NULL,
    outcome     TEXT NOT NULL,
    error_kind  TEXT NOT NULL DEFAULT '',
    message     TEXT NOT NULL DEFAULT '',
    this_update INTEGER NOT NULL DEFAULT 0,
    next_update INTEGER NOT NULL DEFAULT 0,
    at          INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS renewals_path_at ON renewals (path, at DESC);
`

// Journal is a SQLite-backed store of renewal entries.
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal database at path and ensures the
// schema exists.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends one entry. A zero At is filled with the current time.
func (j *Journal) Record(e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := j.db.Exec(
		`INSERT INTO renewals (path, outcome, error_kind, message, this_update, next_update, at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Path, e.Outcome, e.ErrorKind, e.Message,
		unixOrZero(e.ThisUpdate), unixOrZero(e.NextUpdate), e.At.Unix(),
	)
	if err != nil {
		return fmt.Errorf("recording journal entry: %w", err)
	}
	return nil
}

// Recent returns the newest entries, newest first. An empty path selects
// entries for every certificate; a non-positive limit defaults to 20.
func (j *Journal) Recent(path string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT path, outcome, error_kind, message, this_update, next_update, at
              FROM renewals`
	args := []interface{}{}
	if path != "" {
		query += ` WHERE path = ?`
		args = append(args, path)
	}
	query += ` ORDER BY at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var thisUpdate, nextUpdate, at int64
		if err := rows.Scan(&e.Path, &e.Outcome, &e.ErrorKind, &e.Message, &thisUpdate, &nextUpdate, &at); err != nil {
			return nil, fmt.Errorf("scanning journal row: %w", err)
		}
		if thisUpdate != 0 {
			e.ThisUpdate = time.Unix(thisUpdate, 0)
		}
		if nextUpdate != 0 {
			e.NextUpdate = time.Unix(nextUpdate, 0)
		}
		e.At = time.Unix(at, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal rows: %w", err)
	}
	return entries, nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
