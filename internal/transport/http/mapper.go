package http

import (
	"time"

	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/core"
	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/proto"
	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/store"
)

// ClientResponse represents a registered client in API responses.
type ClientResponse struct {
	ID          uint8  `json:"id"`
	Session     string `json:"session"`
	MainAddr    string `json:"main_addr"`
	DataAddr    string `json:"data_addr,omitempty"`
	Color       string `json:"color"`
	State       string `json:"state"`
	ConnectedAt string `json:"connected_at"`
	LastSeen    string `json:"last_seen"`
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	Clients       int `json:"clients"`
	ActiveClients int `json:"active_clients"`
	QueueLength   int `json:"queue_length"`
	Observers     int `json:"observers"`
	core.StatsSnapshot
}

// SessionResponse represents a recorded session in API responses.
type SessionResponse struct {
	ID          string  `json:"id"`
	ClientID    uint8   `json:"client_id"`
	MainAddr    string  `json:"main_addr"`
	DataAddr    string  `json:"data_addr,omitempty"`
	Color       string  `json:"color"`
	StartedAt   string  `json:"started_at"`
	ActivatedAt *string `json:"activated_at,omitempty"`
	EndedAt     *string `json:"ended_at,omitempty"`
	EndReason   string  `json:"end_reason,omitempty"`
}

// ObserveEvent is streamed to /ws/observe subscribers.
// Session tells apart successive holders of the same identity.
type ObserveEvent struct {
	Type    string        `json:"type"`
	ID      uint8         `json:"id"`
	Session string        `json:"session"`
	Color   string        `json:"color"`
	Points  []proto.Point `json:"points,omitempty"`
	Reason  string        `json:"reason,omitempty"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func clientResponse(rec core.ClientRecord) ClientResponse {
	resp := ClientResponse{
		ID:          rec.ID,
		Session:     rec.Session.String(),
		MainAddr:    rec.MainAddr.String(),
		Color:       rec.Color.Hex(),
		State:       rec.State().String(),
		ConnectedAt: formatTime(rec.ConnectedAt),
		LastSeen:    formatTime(rec.LastSeen),
	}
	if rec.Active() {
		resp.DataAddr = rec.DataAddr.String()
	}
	return resp
}

func sessionResponse(s *store.Session) SessionResponse {
	return SessionResponse{
		ID:          s.ID,
		ClientID:    s.ClientID,
		MainAddr:    s.MainAddr,
		DataAddr:    s.DataAddr,
		Color:       s.Color,
		StartedAt:   formatTime(s.StartedAt),
		ActivatedAt: formatTimePtr(s.ActivatedAt),
		EndedAt:     formatTimePtr(s.EndedAt),
		EndReason:   s.EndReason,
	}
}

func observeEventFrom(ev *core.Event) ObserveEvent {
	return ObserveEvent{
		Type:    ev.Kind.String(),
		ID:      ev.Client.ID,
		Session: ev.Client.Session.String(),
		Color:   ev.Client.Color.Hex(),
		Points:  ev.Points,
		Reason:  ev.Reason,
	}
}

// snapshotEvents describes the current registry as if each client had just joined or activated.
func snapshotEvents(snap []core.ClientRecord) []ObserveEvent {
	out := make([]ObserveEvent, 0, len(snap))
	for _, rec := range snap {
		kind := core.EventClientJoined
		if rec.Active() {
			kind = core.EventClientActive
		}
		out = append(out, observeEventFrom(&core.Event{Kind: kind, Client: rec}))
	}
	return out
}
