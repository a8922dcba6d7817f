package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id           TEXT PRIMARY KEY,
	client_id    INTEGER NOT NULL,
	main_addr    TEXT NOT NULL,
	data_addr    TEXT NOT NULL DEFAULT '',
	color        TEXT NOT NULL,
	started_at   DATETIME NOT NULL,
	activated_at DATETIME,
	ended_at     DATETIME,
	end_reason   TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_sessions_open ON sessions(ended_at) WHERE ended_at IS NULL;
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, Migrate)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema without migrations.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with single connection; it also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Migrate applies the session schema.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// StartSession inserts a newly registered session.
func (s *SQLiteStore) StartSession(ctx context.Context, sess *store.Session) error {
	query := `
		INSERT INTO sessions (id, client_id, main_addr, data_addr, color, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		sess.ID, sess.ClientID, sess.MainAddr, sess.DataAddr, sess.Color, sess.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// ActivateSession stores the data address learned from the acknowledgment.
func (s *SQLiteStore) ActivateSession(ctx context.Context, id, dataAddr string, at time.Time) error {
	query := `
		UPDATE sessions SET data_addr = ?, activated_at = ?
		WHERE id = ?
	`
	return s.updateOne(ctx, "activate session", query, dataAddr, at.UTC(), id)
}

// EndSession marks the session as finished with a reason.
// Ending an already ended session keeps the first end time and reason.
func (s *SQLiteStore) EndSession(ctx context.Context, id, reason string, at time.Time) error {
	query := `
		UPDATE sessions SET ended_at = COALESCE(ended_at, ?), end_reason = CASE WHEN ended_at IS NULL THEN ? ELSE end_reason END
		WHERE id = ?
	`
	return s.updateOne(ctx, "end session", query, at.UTC(), reason, id)
}

func (s *SQLiteStore) updateOne(ctx context.Context, op, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, store.ErrNotFound)
	}
	return nil
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*store.Session, error) {
	query := `
		SELECT id, client_id, main_addr, data_addr, color, started_at, activated_at, ended_at, end_reason
		FROM sessions
		WHERE id = ?
	`
	sess, err := scanSession(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query session: %w", err)
	}
	return sess, nil
}

// ListSessions returns the most recent sessions, newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]*store.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, client_id, main_addr, data_addr, color, started_at, activated_at, ended_at, end_reason
		FROM sessions
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*store.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}

	return sessions, rows.Err()
}

// CloseOpenSessions ends every session still open.
func (s *SQLiteStore) CloseOpenSessions(ctx context.Context, reason string, at time.Time) (int64, error) {
	query := `
		UPDATE sessions SET ended_at = ?, end_reason = ?
		WHERE ended_at IS NULL
	`
	result, err := s.db.ExecContext(ctx, query, at.UTC(), reason)
	if err != nil {
		return 0, fmt.Errorf("close open sessions: %w", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*store.Session, error) {
	var (
		sess      store.Session
		activated sql.NullTime
		ended     sql.NullTime
	)
	if err := row.Scan(
		&sess.ID,
		&sess.ClientID,
		&sess.MainAddr,
		&sess.DataAddr,
		&sess.Color,
		&sess.StartedAt,
		&activated,
		&ended,
		&sess.EndReason,
	); err != nil {
		return nil, err
	}
	if activated.Valid {
		t := activated.Time
		sess.ActivatedAt = &t
	}
	if ended.Valid {
		t := ended.Time
		sess.EndedAt = &t
	}
	return &sess, nil
}
