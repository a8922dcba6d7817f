package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/config"
	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/core"
	applog "github.com/mateusz-kowalczyk-12/shared-canvas/internal/log"
	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/proto"
	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/store"
	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/store/sqlite"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testAdmin struct {
	deps Deps
	ts   *httptest.Server
}

func startTestServer(t *testing.T, sessions store.SessionStore) *testAdmin {
	t.Helper()

	observers := core.NewObservers()
	deps := Deps{
		Registry:  core.NewRegistry(observers.Broadcast),
		Queue:     core.NewQueue(0),
		Stats:     &core.Stats{},
		Observers: observers,
		Sessions:  sessions,
	}

	cfg := config.Default()
	cfg.HTTPAddr = ":0"
	server := NewServer(deps, cfg, applog.Nop())

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testAdmin{deps: deps, ts: ts}
}

func (a *testAdmin) getJSON(t *testing.T, path string, out any) int {
	t.Helper()

	resp, err := a.ts.Client().Get(a.ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func register(t *testing.T, reg *core.Registry, main string, color proto.Color, data string) core.ClientRecord {
	t.Helper()

	rec, err := reg.Register(netip.MustParseAddrPort(main), color)
	require.NoError(t, err)
	if data != "" {
		rec, err = reg.CompleteRegistration(rec.ID, netip.MustParseAddrPort(data))
		require.NoError(t, err)
	}
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	a := startTestServer(t, nil)

	resp, err := a.ts.Client().Get(a.ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListClients(t *testing.T) {
	a := startTestServer(t, nil)
	register(t, a.deps.Registry, "10.0.0.1:5000", proto.Color{255, 0, 0}, "10.0.0.1:5001")
	register(t, a.deps.Registry, "10.0.0.2:5000", proto.Color{0, 0, 255}, "")

	var clients []ClientResponse
	require.Equal(t, http.StatusOK, a.getJSON(t, "/api/clients", &clients))
	require.Len(t, clients, 2)

	assert.Equal(t, uint8(0), clients[0].ID)
	assert.Equal(t, "#ff0000", clients[0].Color)
	assert.Equal(t, "active", clients[0].State)
	assert.Equal(t, "10.0.0.1:5001", clients[0].DataAddr)

	assert.Equal(t, uint8(1), clients[1].ID)
	assert.Equal(t, "provisional", clients[1].State)
	assert.Empty(t, clients[1].DataAddr)
}

func TestGetStats(t *testing.T) {
	a := startTestServer(t, nil)
	register(t, a.deps.Registry, "10.0.0.1:5000", proto.Color{}, "10.0.0.1:5001")
	register(t, a.deps.Registry, "10.0.0.2:5000", proto.Color{}, "")
	a.deps.Stats.Received.Add(3)
	a.deps.Stats.Relayed.Add(2)
	a.deps.Stats.DroppedNoReceivers.Add(1)

	var stats StatsResponse
	require.Equal(t, http.StatusOK, a.getJSON(t, "/api/stats", &stats))

	assert.Equal(t, 2, stats.Clients)
	assert.Equal(t, 1, stats.ActiveClients)
	assert.Equal(t, uint64(3), stats.Received)
	assert.Equal(t, uint64(2), stats.Relayed)
	assert.Equal(t, uint64(1), stats.DroppedNoReceivers)
}

func TestListSessionsWithoutStore(t *testing.T) {
	a := startTestServer(t, nil)
	assert.Equal(t, http.StatusServiceUnavailable, a.getJSON(t, "/api/sessions", nil))
}

func TestListSessions(t *testing.T) {
	st, err := sqlite.NewWithSetup(":memory:", sqlite.Migrate)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, id := range []string{"first", "second", "third"} {
		require.NoError(t, st.StartSession(ctx, &store.Session{
			ID:        id,
			ClientID:  uint8(i),
			MainAddr:  "10.0.0.1:5000",
			Color:     "#000000",
			StartedAt: start.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, st.EndSession(ctx, "first", core.LeaveDisconnect, start.Add(time.Hour)))

	a := startTestServer(t, st)

	var sessions []SessionResponse
	require.Equal(t, http.StatusOK, a.getJSON(t, "/api/sessions?limit=2", &sessions))
	require.Len(t, sessions, 2)
	assert.Equal(t, "third", sessions[0].ID)
	assert.Equal(t, "second", sessions[1].ID)
	assert.Nil(t, sessions[0].EndedAt)

	require.Equal(t, http.StatusOK, a.getJSON(t, "/api/sessions", &sessions))
	require.Len(t, sessions, 3)
	assert.Equal(t, core.LeaveDisconnect, sessions[2].EndReason)
	assert.NotNil(t, sessions[2].EndedAt)

	assert.Equal(t, http.StatusBadRequest, a.getJSON(t, "/api/sessions?limit=zero", nil))
}

func TestObserveStreamsEvents(t *testing.T) {
	a := startTestServer(t, nil)
	existing := register(t, a.deps.Registry, "10.0.0.1:5000", proto.Color{255, 0, 0}, "10.0.0.1:5001")

	wsURL := strings.Replace(a.ts.URL, "http", "ws", 1) + "/ws/observe"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	var ev ObserveEvent
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Equal(t, "active", ev.Type)
	assert.Equal(t, existing.ID, ev.ID)
	assert.Equal(t, "#ff0000", ev.Color)

	require.Eventually(t, func() bool { return a.deps.Observers.Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	joined := register(t, a.deps.Registry, "10.0.0.2:5000", proto.Color{0, 255, 0}, "")
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Equal(t, "joined", ev.Type)
	assert.Equal(t, joined.ID, ev.ID)
	assert.Equal(t, joined.Session.String(), ev.Session)

	a.deps.Observers.Broadcast(&core.Event{
		Kind:   core.EventStroke,
		Client: existing,
		Points: []proto.Point{{X: 1, Y: 2}},
	})
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Equal(t, "stroke", ev.Type)
	assert.Equal(t, []proto.Point{{X: 1, Y: 2}}, ev.Points)

	a.deps.Registry.Unregister(netip.MustParseAddrPort("10.0.0.2:5000"))
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Equal(t, "left", ev.Type)
	assert.Equal(t, core.LeaveDisconnect, ev.Reason)

	conn.Close(websocket.StatusNormalClosure, "done")
	require.Eventually(t, func() bool { return a.deps.Observers.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestObserveEventsTellReusedIdentitiesApart(t *testing.T) {
	reg := core.NewRegistry(nil)
	main := netip.MustParseAddrPort("10.0.0.1:5000")

	first, err := reg.Register(main, proto.Color{})
	require.NoError(t, err)
	left, ok := reg.Unregister(main)
	require.True(t, ok)
	second, err := reg.Register(netip.MustParseAddrPort("10.0.0.2:5000"), proto.Color{})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	// The reaper and the handshake emit from different goroutines, so a late "left"
	// can follow the newcomer's "joined"; the session keeps them apart.
	joinedEv := observeEventFrom(&core.Event{Kind: core.EventClientJoined, Client: second})
	leftEv := observeEventFrom(&core.Event{Kind: core.EventClientLeft, Client: left, Reason: core.LeaveHandshakeTimeout})

	assert.Equal(t, joinedEv.ID, leftEv.ID)
	assert.NotEqual(t, joinedEv.Session, leftEv.Session)
	assert.Equal(t, first.Session.String(), leftEv.Session)

	b, err := json.Marshal(leftEv)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"session":"`+first.Session.String()+`"`)
}
