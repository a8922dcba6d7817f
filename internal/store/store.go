package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("not found")

// Session is one registration of a canvas client, from connect until it leaves.
// Identities are reused across sessions; the session ID is not.
type Session struct {
	ID          string
	ClientID    uint8
	MainAddr    string
	DataAddr    string
	Color       string
	StartedAt   time.Time
	ActivatedAt *time.Time
	EndedAt     *time.Time
	EndReason   string
}

// Open reports whether the session has not ended yet.
func (s *Session) Open() bool {
	return s.EndedAt == nil
}

// SessionStore records the lifecycle of client sessions.
type SessionStore interface {
	// StartSession inserts a newly registered session.
	StartSession(ctx context.Context, s *Session) error
	// ActivateSession stores the data address learned from the acknowledgment.
	ActivateSession(ctx context.Context, id, dataAddr string, at time.Time) error
	// EndSession marks the session as finished with a reason.
	EndSession(ctx context.Context, id, reason string, at time.Time) error
	// GetSession retrieves a session by ID.
	GetSession(ctx context.Context, id string) (*Session, error)
	// ListSessions returns the most recent sessions, newest first.
	ListSessions(ctx context.Context, limit int) ([]*Session, error)
	// CloseOpenSessions ends every session still open, e.g. on server shutdown.
	CloseOpenSessions(ctx context.Context, reason string, at time.Time) (int64, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	SessionStore

	// Close closes the underlying database connection.
	Close() error
}
