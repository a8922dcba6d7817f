package core

import (
	"net/netip"
	"time"

	"github.com/google/uuid"

	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/proto"
)

// ClientState is the handshake phase of a registered client.
type ClientState int

const (
	// StateProvisional means the connect reply was sent but the data address is unknown.
	StateProvisional ClientState = iota
	// StateActive means both addresses are known and the client receives broadcasts.
	StateActive
)

func (s ClientState) String() string {
	if s == StateActive {
		return "active"
	}
	return "provisional"
}

// ClientRecord is a canvas participant as seen by the relay.
// Records handed out by the Registry are copies.
type ClientRecord struct {
	ID          uint8
	Session     uuid.UUID
	MainAddr    netip.AddrPort
	DataAddr    netip.AddrPort // invalid until the acknowledgment arrives
	Color       proto.Color
	ConnectedAt time.Time
	ActivatedAt time.Time
	LastSeen    time.Time
}

// State reports whether the record is provisional or active.
func (c ClientRecord) State() ClientState {
	if c.DataAddr.IsValid() {
		return StateActive
	}
	return StateProvisional
}

// Active reports whether the client is eligible to receive broadcasts.
func (c ClientRecord) Active() bool {
	return c.State() == StateActive
}
