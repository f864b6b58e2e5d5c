package sinks

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"intersection/server/logging"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	type TEXT NOT NULL,
	tick INTEGER NOT NULL,
	time TEXT NOT NULL,
	severity TEXT NOT NULL,
	category TEXT,
	actor TEXT,
	payload TEXT,
	extra TEXT
)`

// SQLite appends events to an events table for post-session inspection.
type SQLite struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// NewSQLite opens (or creates) the database at path and prepares the schema.
func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite sink: empty path")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create events table: %w", err)
	}
	return &SQLite{db: db, path: path}, nil
}

func (s *SQLite) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}

	payload, err := marshalOptional(event.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	var extra any
	if len(event.Extra) > 0 {
		extra = event.Extra
	}
	extraText, err := marshalOptional(extra)
	if err != nil {
		return fmt.Errorf("encode extra: %w", err)
	}

	_, err = s.db.Exec(
		"INSERT INTO events (type, tick, time, severity, category, actor, payload, extra) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		string(event.Type),
		int64(event.Tick),
		event.Time.UTC().Format(time.RFC3339Nano),
		event.Severity.String(),
		event.Category,
		entityLabel(event.Actor),
		payload,
		extraText,
	)
	return err
}

// Count reports the number of stored events of the given type; an empty type counts all.
func (s *SQLite) Count(ctx context.Context, eventType logging.EventType) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return 0, nil
	}
	var row *sql.Row
	if eventType == "" {
		row = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events")
	} else {
		row = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events WHERE type = ?", string(eventType))
	}
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *SQLite) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func marshalOptional(value any) (sql.NullString, error) {
	if value == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
