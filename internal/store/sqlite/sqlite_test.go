package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	require.NoError(t, err, "failed to create store")
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	sess := &store.Session{
		ID:        "3b5c3c1e-8a0f-4c65-9a39-5b1f6a0a2f11",
		ClientID:  2,
		MainAddr:  "192.168.1.20:50123",
		Color:     "#ff0000",
		StartedAt: start,
	}
	require.NoError(t, s.StartSession(ctx, sess))

	got, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), got.ClientID)
	assert.True(t, got.Open())
	assert.Nil(t, got.ActivatedAt)
	assert.True(t, start.Equal(got.StartedAt))

	require.NoError(t, s.ActivateSession(ctx, sess.ID, "192.168.1.20:50124", start.Add(time.Second)))
	require.NoError(t, s.EndSession(ctx, sess.ID, "disconnect", start.Add(time.Minute)))
	// A second end keeps the first reason.
	require.NoError(t, s.EndSession(ctx, sess.ID, "idle_timeout", start.Add(time.Hour)))

	got, err = s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.20:50124", got.DataAddr)
	require.NotNil(t, got.ActivatedAt)
	require.NotNil(t, got.EndedAt)
	assert.True(t, start.Add(time.Minute).Equal(*got.EndedAt))
	assert.Equal(t, "disconnect", got.EndReason)
	assert.False(t, got.Open())
}

func TestSessionNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.EndSession(ctx, "missing", "disconnect", time.Now())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListSessionsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ids := []string{"s-a", "s-b", "s-c"}
	for i, id := range ids {
		require.NoError(t, s.StartSession(ctx, &store.Session{
			ID:        id,
			ClientID:  0, // identities are reused across sessions
			MainAddr:  "10.0.0.1:5000",
			Color:     "#000000",
			StartedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	sessions, err := s.ListSessions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "s-c", sessions[0].ID)
	assert.Equal(t, "s-b", sessions[1].ID)
}

func TestCloseOpenSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, id := range []string{"open-1", "open-2", "done"} {
		require.NoError(t, s.StartSession(ctx, &store.Session{ID: id, MainAddr: "10.0.0.1:5000", Color: "#000000", StartedAt: now}))
	}
	require.NoError(t, s.EndSession(ctx, "done", "disconnect", now))

	n, err := s.CloseOpenSessions(ctx, "shutdown", now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	done, err := s.GetSession(ctx, "done")
	require.NoError(t, err)
	assert.Equal(t, "disconnect", done.EndReason)

	open1, err := s.GetSession(ctx, "open-1")
	require.NoError(t, err)
	assert.Equal(t, "shutdown", open1.EndReason)
}
