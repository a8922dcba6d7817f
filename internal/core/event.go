package core

import "github.com/mateusz-kowalczyk-12/shared-canvas/internal/proto"

// EventKind is a notification the core emits to observers.
type EventKind int

const (
	// EventClientJoined fires when a connect request registers a client.
	EventClientJoined EventKind = iota
	// EventClientActive fires when the client's data address becomes known.
	EventClientActive
	// EventClientLeft fires when a record is removed.
	EventClientLeft
	// EventStroke fires after a batch has been relayed.
	EventStroke
)

func (k EventKind) String() string {
	switch k {
	case EventClientJoined:
		return "joined"
	case EventClientActive:
		return "active"
	case EventClientLeft:
		return "left"
	case EventStroke:
		return "stroke"
	default:
		return "unknown"
	}
}

// Reasons a client record is removed.
const (
	LeaveDisconnect       = "disconnect"
	LeaveHandshakeTimeout = "handshake_timeout"
	LeaveIdleTimeout      = "idle_timeout"
)

// Event describes something that happened to the registry or the relay.
type Event struct {
	Kind   EventKind
	Client ClientRecord
	Points []proto.Point // EventStroke only
	Reason string        // EventClientLeft only
}

// Listener receives events. It is called without any core lock held and must not block for long.
type Listener func(*Event)
