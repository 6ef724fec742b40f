package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"nextup/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

// Storage persists the processed-event ledgers. One logical ledger
// exists per action type; all of them share a single table keyed by
// (action, event id), which enforces the at-most-one-record-per-id
// invariant at the schema level.
type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single connection keeps writes serialized and makes :memory:
	// databases behave (each pooled connection would otherwise get its
	// own empty database).
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS processed_events (
			action TEXT NOT NULL,
			event_id TEXT NOT NULL,
			last_modified DATETIME,
			event_end DATETIME NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (action, event_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_processed_events_end ON processed_events(event_end)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// IsProcessed reports whether the action already fired for this event
// revision: a record must exist with the same id and the same
// last-modified timestamp. A record left over from an earlier revision
// of the event does not count.
func (s *Storage) IsProcessed(action domain.ActionType, e domain.Event) (bool, error) {
	row := s.db.QueryRow(
		`SELECT last_modified FROM processed_events WHERE action = ? AND event_id = ?`,
		string(action), e.ID,
	)

	var lm sql.NullTime
	switch err := row.Scan(&lm); err {
	case nil:
	case sql.ErrNoRows:
		return false, nil
	default:
		return false, fmt.Errorf("query processed: %w", err)
	}

	rec := domain.ProcessedEvent{ID: e.ID}
	if lm.Valid {
		t := lm.Time
		rec.LastModified = &t
	}
	return rec.Matches(e), nil
}

// MarkProcessed records that the action fired for this event revision.
// An existing record for the same id (stale revision) is replaced, not
// duplicated.
func (s *Storage) MarkProcessed(action domain.ActionType, e domain.Event) error {
	_, err := s.db.Exec(
		`INSERT INTO processed_events (action, event_id, last_modified, event_end)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(action, event_id) DO UPDATE SET
			last_modified = excluded.last_modified,
			event_end = excluded.event_end`,
		string(action), e.ID, normalizeUTC(e.LastModified), e.End.UTC(),
	)
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

// ClearProcessed removes the record for one event id, re-arming the
// action for it. Used to undo a dismissal.
func (s *Storage) ClearProcessed(action domain.ActionType, eventID string) error {
	_, err := s.db.Exec(
		`DELETE FROM processed_events WHERE action = ? AND event_id = ?`,
		string(action), eventID,
	)
	if err != nil {
		return fmt.Errorf("clear processed: %w", err)
	}
	return nil
}

// Reap drops every record whose event already ended. Runs before every
// evaluation so the ledger stays bounded by the number of upcoming
// events.
func (s *Storage) Reap(now time.Time) (int64, error) {
	res, err := s.db.Exec(
		`DELETE FROM processed_events WHERE event_end < ?`,
		now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("reap processed: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ListProcessed returns all live records for one action type, for UI
// badges such as dismissal markers.
func (s *Storage) ListProcessed(action domain.ActionType) ([]domain.ProcessedEvent, error) {
	rows, err := s.db.Query(
		`SELECT event_id, last_modified, event_end FROM processed_events WHERE action = ? ORDER BY event_end`,
		string(action),
	)
	if err != nil {
		return nil, fmt.Errorf("list processed: %w", err)
	}
	defer rows.Close()

	var out []domain.ProcessedEvent
	for rows.Next() {
		var (
			rec domain.ProcessedEvent
			lm  sql.NullTime
		)
		if err := rows.Scan(&rec.ID, &lm, &rec.EventEnd); err != nil {
			return nil, fmt.Errorf("scan processed: %w", err)
		}
		if lm.Valid {
			t := lm.Time
			rec.LastModified = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func normalizeUTC(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
