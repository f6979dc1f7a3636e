// Package sessionchange implements the append-only session-scoped change
// tracker (spec.md §4.E). It does not parse the host's transcript itself;
// an external collaborator (internal/transcript) pushes rows in.
package sessionchange

import (
	"context"
	"database/sql"
	"fmt"
)

// Change is one recorded file operation within a session.
type Change struct {
	AbsolutePath string
	Operation    string
}

// Tracker records and lists session file changes. It shares a *sql.DB
// handle with the validation store rather than opening its own file.
type Tracker struct {
	db *sql.DB
}

// New wraps an existing database handle (typically validation.Store's)
// with the session-change schema.
func New(db *sql.DB) (*Tracker, error) {
	t := &Tracker{db: db}
	if err := t.initSchema(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tracker) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS session_changes (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		session       TEXT NOT NULL,
		absolute_path TEXT NOT NULL,
		operation     TEXT NOT NULL,
		recorded_at   INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_session_changes_session
		ON session_changes(session, id);
	`
	_, err := t.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("sessionchange: init schema: %w", err)
	}
	return nil
}

// RecordChange appends a row. Duplicates are preserved; callers
// deduplicate on read per spec.md §4.E.
func (t *Tracker) RecordChange(ctx context.Context, session, absolutePath, operation string, recordedAt int64) error {
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO session_changes (session, absolute_path, operation, recorded_at)
		VALUES (?, ?, ?, ?)
	`, session, absolutePath, operation, recordedAt)
	if err != nil {
		return fmt.Errorf("sessionchange: record: %w", err)
	}
	return nil
}

// ListChanges returns every change recorded for session, in insertion
// order, duplicates preserved.
func (t *Tracker) ListChanges(ctx context.Context, session string) ([]Change, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT absolute_path, operation FROM session_changes
		WHERE session = ? ORDER BY id ASC
	`, session)
	if err != nil {
		return nil, fmt.Errorf("sessionchange: list: %w", err)
	}
	defer rows.Close()

	var out []Change
	for rows.Next() {
		var c Change
		if err := rows.Scan(&c.AbsolutePath, &c.Operation); err != nil {
			return nil, fmt.Errorf("sessionchange: scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
