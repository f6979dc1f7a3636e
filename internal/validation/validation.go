// Package validation implements the durable validation/cache store
// (spec.md §4.C): the record of "file X at hash H was validated by plugin
// P's hook K in directory D under session S with command hash C".
package validation

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one row of the validation store.
type Record struct {
	Session     string
	Plugin      string
	Hook        string
	Directory   string
	Path        string
	Hash        string
	CommandHash string
	Timestamp   int64
}

// Store is the durable validation store, backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the validation database at path, in WAL
// mode for concurrent readers alongside a single writer.
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("validation: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("validation: ping: %w", err)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS validations (
		session      TEXT NOT NULL,
		plugin       TEXT NOT NULL,
		hook         TEXT NOT NULL,
		directory    TEXT NOT NULL,
		path         TEXT NOT NULL,
		hash         TEXT NOT NULL,
		command_hash TEXT NOT NULL,
		timestamp    INTEGER NOT NULL,
		PRIMARY KEY (session, plugin, hook, directory, path)
	);

	CREATE INDEX IF NOT EXISTS idx_validations_scope
		ON validations(session, plugin, hook, directory);

	CREATE INDEX IF NOT EXISTS idx_validations_timestamp
		ON validations(timestamp);
	`
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("validation: init schema: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database handle, so collaborators such as
// internal/sessionchange can share the same connection rather than
// opening a second file.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Record upserts one row per file in manifest, all sharing session,
// plugin, hook, directory, commandHash, and a single timestamp.
func (s *Store) Record(ctx context.Context, session, plugin, hook, directory, commandHash string, manifest map[string]string, timestamp int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("validation: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO validations (session, plugin, hook, directory, path, hash, command_hash, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session, plugin, hook, directory, path) DO UPDATE SET
			hash = excluded.hash,
			command_hash = excluded.command_hash,
			timestamp = excluded.timestamp
	`)
	if err != nil {
		return fmt.Errorf("validation: prepare: %w", err)
	}
	defer stmt.Close()

	for path, hash := range manifest {
		if _, err := stmt.ExecContext(ctx, session, plugin, hook, directory, path, hash, commandHash, timestamp); err != nil {
			return fmt.Errorf("validation: upsert %s: %w", path, err)
		}
	}
	return tx.Commit()
}

// List returns the current rows for (session, plugin, hook, directory).
func (s *Store) List(ctx context.Context, session, plugin, hook, directory string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session, plugin, hook, directory, path, hash, command_hash, timestamp
		FROM validations
		WHERE session = ? AND plugin = ? AND hook = ? AND directory = ?
	`, session, plugin, hook, directory)
	if err != nil {
		return nil, fmt.Errorf("validation: list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Session, &r.Plugin, &r.Hook, &r.Directory, &r.Path, &r.Hash, &r.CommandHash, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("validation: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteStale removes rows for (session, plugin, hook, directory) whose
// path is not in currentPaths, returning the count removed. This prevents
// ghost entries for files that no longer exist from masquerading as
// validated.
func (s *Store) DeleteStale(ctx context.Context, session, plugin, hook, directory string, currentPaths []string) (int, error) {
	if len(currentPaths) == 0 {
		res, err := s.db.ExecContext(ctx, `
			DELETE FROM validations WHERE session = ? AND plugin = ? AND hook = ? AND directory = ?
		`, session, plugin, hook, directory)
		if err != nil {
			return 0, fmt.Errorf("validation: delete_stale: %w", err)
		}
		n, _ := res.RowsAffected()
		return int(n), nil
	}

	placeholders := strings.Repeat("?,", len(currentPaths))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(currentPaths)+4)
	args = append(args, session, plugin, hook, directory)
	for _, p := range currentPaths {
		args = append(args, p)
	}

	query := fmt.Sprintf(`
		DELETE FROM validations
		WHERE session = ? AND plugin = ? AND hook = ? AND directory = ?
		AND path NOT IN (%s)
	`, placeholders)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("validation: delete_stale: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// DeleteOlderThan removes every row whose timestamp is older than cutoff,
// used by the cleanup/GC component (spec.md §4.J) to age out validations
// past the configured horizon.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM validations WHERE timestamp < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("validation: delete_older_than: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// DeleteSession removes every row for session, used on session end so a
// finished session's validations don't wait for the age-based horizon
// (spec.md §3: "GC'd when older than a configurable horizon or when the
// session ends").
func (s *Store) DeleteSession(ctx context.Context, session string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM validations WHERE session = ?`, session)
	if err != nil {
		return 0, fmt.Errorf("validation: delete_session: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// LiveHashes returns the set of every content hash currently referenced by
// a validation row, used by the GC component to determine which blobs are
// still reachable (spec.md's open question on live-hash enumeration).
func (s *Store) LiveHashes(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT hash FROM validations`)
	if err != nil {
		return nil, fmt.Errorf("validation: live_hashes: %w", err)
	}
	defer rows.Close()

	live := map[string]struct{}{}
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("validation: scan hash: %w", err)
		}
		live[h] = struct{}{}
	}
	return live, rows.Err()
}
