// Package history keeps a SQLite log of committed state changes.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sweeney/featurestate/internal/logic"
	"github.com/sweeney/featurestate/internal/threshold"
)

const schema = `
CREATE TABLE IF NOT EXISTS transitions (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL,
	feature     TEXT NOT NULL,
	from_state  TEXT NOT NULL,
	to_state    TEXT NOT NULL,
	sample      REAL NOT NULL,
	at          TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS transitions_feature_at ON transitions (feature, at);
`

// timeFormat has fixed width so stored times sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Record is one stored state change.
type Record struct {
	ID      string
	RunID   string
	Feature string
	From    threshold.State
	To      threshold.State
	Sample  float64
	At      time.Time
}

// Store appends transitions for one daemon run.
type Store struct {
	db    *sql.DB
	runID string
}

// NewStore opens a SQLite database, runs migrations and starts a new run.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, runID: uuid.New().String()}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunID identifies the transitions written through this Store.
func (s *Store) RunID() string {
	return s.runID
}

// Append stores a committed state change.
func (s *Store) Append(e logic.Event) (Record, error) {
	rec := Record{
		ID:      uuid.New().String(),
		RunID:   s.runID,
		Feature: e.Feature,
		From:    e.From,
		To:      e.To,
		Sample:  e.Sample,
		At:      e.Timestamp.UTC(),
	}

	_, err := s.db.Exec(
		`INSERT INTO transitions (id, run_id, feature, from_state, to_state, sample, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RunID, rec.Feature, string(rec.From), string(rec.To), rec.Sample,
		rec.At.Format(timeFormat),
	)
	if err != nil {
		return Record{}, fmt.Errorf("insert transition: %w", err)
	}
	return rec, nil
}

// Recent returns up to limit transitions, newest first. An empty feature
// matches every feature.
func (s *Store) Recent(feature string, limit int) ([]Record, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := `SELECT id, run_id, feature, from_state, to_state, sample, at
		FROM transitions`
	args := []any{}
	if feature != "" {
		query += ` WHERE feature = ?`
		args = append(args, feature)
	}
	query += ` ORDER BY at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var from, to, at string
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Feature, &from, &to, &rec.Sample, &at); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		rec.From = threshold.State(from)
		rec.To = threshold.State(to)
		rec.At, err = time.Parse(timeFormat, at)
		if err != nil {
			return nil, fmt.Errorf("parse time %q: %w", at, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Counts returns the number of stored transitions per feature, initial
// states excluded.
func (s *Store) Counts() (map[string]int, error) {
	rows, err := s.db.Query(
		`SELECT feature, COUNT(*) FROM transitions WHERE from_state != '' GROUP BY feature`)
	if err != nil {
		return nil, fmt.Errorf("count transitions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var feature string
		var n int
		if err := rows.Scan(&feature, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[feature] = n
	}
	return counts, rows.Err()
}
