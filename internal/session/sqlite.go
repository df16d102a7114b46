package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// SQLiteRegistry persists selections so a client that reconnects under the
// same session ID (stdio always uses one) keeps its active issue across
// server restarts.
type SQLiteRegistry struct {
	db *sql.DB
}

// NewSQLiteRegistry opens (creating if needed) the database at path and
// runs migrations.
func NewSQLiteRegistry(path string) (*SQLiteRegistry, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("session: create data dir: %w", err)
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("session: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("session: pragma %q: %w", p, err)
		}
	}

	r := &SQLiteRegistry{db: db}
	if err := r.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session: migration: %w", err)
	}
	return r, nil
}

func (r *SQLiteRegistry) migrate() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS active_issues (
			session_id  TEXT PRIMARY KEY,
			issue_name  TEXT NOT NULL,
			selected_at TEXT NOT NULL
		);
	`)
	return err
}

func (r *SQLiteRegistry) Active(ctx context.Context, sessionID string) (string, bool, error) {
	var name string
	err := r.db.QueryRowContext(ctx,
		`SELECT issue_name FROM active_issues WHERE session_id = ?`, sessionID,
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("session: lookup %q: %w", sessionID, err)
	}
	return name, true, nil
}

func (r *SQLiteRegistry) Select(ctx context.Context, sessionID, issue string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO active_issues (session_id, issue_name, selected_at)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			issue_name  = excluded.issue_name,
			selected_at = excluded.selected_at`,
		sessionID, issue, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("session: select %q for %q: %w", issue, sessionID, err)
	}
	return nil
}

func (r *SQLiteRegistry) Forget(ctx context.Context, sessionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM active_issues WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("session: forget %q: %w", sessionID, err)
	}
	return nil
}

// Prune deletes selections made before cutoff and reports how many were
// removed.
func (r *SQLiteRegistry) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM active_issues WHERE selected_at < ?`,
		cutoff.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("session: prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("session: prune: %w", err)
	}
	return n, nil
}

// Close closes the underlying database connection.
func (r *SQLiteRegistry) Close() error {
	return r.db.Close()
}
