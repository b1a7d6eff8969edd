package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	type TEXT NOT NULL,
	command TEXT NOT NULL DEFAULT '',
	request_id TEXT NOT NULL DEFAULT '',
	session_id TEXT NOT NULL DEFAULT '',
	kind TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_events_request_id ON audit_events (request_id);
`

// SQLite persists audit events to a local database file.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// OpenSQLite opens (or creates) the audit database at path.
func OpenSQLite(path string, logger *slog.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init audit db: %w", err)
	}
	return &SQLite{db: db, logger: logger, now: time.Now}, nil
}

// Record inserts event. Write failures are logged, never returned.
func (s *SQLite) Record(ctx context.Context, event Event) {
	if s == nil || s.db == nil {
		return
	}
	at := event.Time
	if at.IsZero() {
		at = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events (type, command, request_id, session_id, kind, message, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.Type, event.Command, event.RequestID, event.SessionID, event.Kind, event.Message, at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil && s.logger != nil {
		s.logger.Warn("audit write failed", "type", event.Type, "error", err)
	}
}

// Events returns stored events for requestID in insertion order. An empty
// requestID returns all events.
func (s *SQLite) Events(ctx context.Context, requestID string) ([]Event, error) {
	query := `SELECT type, command, request_id, session_id, kind, message, created_at FROM audit_events`
	var args []any
	if requestID != "" {
		query += ` WHERE request_id = ?`
		args = append(args, requestID)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var created string
		if err := rows.Scan(&e.Type, &e.Command, &e.RequestID, &e.SessionID, &e.Kind, &e.Message, &created); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Time, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
