package core

import (
	"net/netip"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/proto"
)

// maxClients is the size of the identity space; identities travel as a single byte.
const maxClients = 256

// Registry holds the currently connected participants.
// All methods are safe for concurrent use. Listener callbacks run after the lock is released.
type Registry struct {
	mu     sync.RWMutex
	byID   map[uint8]*ClientRecord
	byMain map[netip.AddrPort]uint8
	now    func() time.Time
	listen Listener
}

// NewRegistry creates an empty registry. listener may be nil.
func NewRegistry(listener Listener) *Registry {
	return &Registry{
		byID:   make(map[uint8]*ClientRecord),
		byMain: make(map[netip.AddrPort]uint8),
		now:    time.Now,
		listen: listener,
	}
}

func (r *Registry) emit(ev *Event) {
	if r.listen != nil && ev != nil {
		r.listen(ev)
	}
}

// Register adds a client connecting from mainAddr and returns its identity.
// A repeated connect from an already registered main address keeps the existing identity
// and only refreshes the declared color.
func (r *Registry) Register(mainAddr netip.AddrPort, color proto.Color) (ClientRecord, error) {
	r.mu.Lock()
	if id, ok := r.byMain[mainAddr]; ok {
		rec := r.byID[id]
		rec.Color = color
		rec.LastSeen = r.now()
		out := *rec
		r.mu.Unlock()
		return out, nil
	}

	id, ok := r.freeIdentity()
	if !ok {
		r.mu.Unlock()
		return ClientRecord{}, ErrRegistryFull
	}

	now := r.now()
	rec := &ClientRecord{
		ID:          id,
		Session:     uuid.New(),
		MainAddr:    mainAddr,
		Color:       color,
		ConnectedAt: now,
		LastSeen:    now,
	}
	r.byID[id] = rec
	r.byMain[mainAddr] = id
	out := *rec
	r.mu.Unlock()

	r.emit(&Event{Kind: EventClientJoined, Client: out})
	return out, nil
}

// freeIdentity returns the smallest identity not in use. Caller holds r.mu.
func (r *Registry) freeIdentity() (uint8, bool) {
	for id := 0; id < maxClients; id++ {
		if _, used := r.byID[uint8(id)]; !used {
			return uint8(id), true
		}
	}
	return 0, false
}

// CompleteRegistration records the data address of client id.
// The acknowledgment must come from the same host as the client's main address.
// Once a client is active its data address is fixed.
func (r *Registry) CompleteRegistration(id uint8, dataAddr netip.AddrPort) (ClientRecord, error) {
	r.mu.Lock()
	rec, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		return ClientRecord{}, ErrNotFound
	}
	if rec.MainAddr.Addr().Unmap() != dataAddr.Addr().Unmap() {
		r.mu.Unlock()
		return ClientRecord{}, ErrAddrMismatch
	}

	if rec.Active() {
		// A repeated acknowledgment is fine; a different data address is not.
		out := *rec
		r.mu.Unlock()
		if out.DataAddr != dataAddr {
			return ClientRecord{}, ErrAlreadyActive
		}
		return out, nil
	}

	now := r.now()
	rec.DataAddr = dataAddr
	rec.LastSeen = now
	rec.ActivatedAt = now
	out := *rec
	r.mu.Unlock()

	r.emit(&Event{Kind: EventClientActive, Client: out})
	return out, nil
}

// Unregister removes the client whose main address is mainAddr.
// Unknown addresses are not an error.
func (r *Registry) Unregister(mainAddr netip.AddrPort) (ClientRecord, bool) {
	r.mu.Lock()
	id, ok := r.byMain[mainAddr]
	if !ok {
		r.mu.Unlock()
		return ClientRecord{}, false
	}
	out := r.removeLocked(id)
	r.mu.Unlock()

	r.emit(&Event{Kind: EventClientLeft, Client: out, Reason: LeaveDisconnect})
	return out, true
}

func (r *Registry) removeLocked(id uint8) ClientRecord {
	rec := r.byID[id]
	delete(r.byID, id)
	delete(r.byMain, rec.MainAddr)
	return *rec
}

// LookupBySourceAddress resolves the sender of a stroke batch by its main address.
func (r *Registry) LookupBySourceAddress(addr netip.AddrPort) (ClientRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byMain[addr]
	if !ok {
		return ClientRecord{}, false
	}
	return *r.byID[id], true
}

// Lookup returns the record holding identity id.
func (r *Registry) Lookup(id uint8) (ClientRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byID[id]
	if !ok {
		return ClientRecord{}, false
	}
	return *rec, true
}

// Touch refreshes the last-seen time of the client at mainAddr.
func (r *Registry) Touch(mainAddr netip.AddrPort) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byMain[mainAddr]; ok {
		r.byID[id].LastSeen = r.now()
	}
}

// AllReceivers returns the active clients other than exclude, ordered by identity.
func (r *Registry) AllReceivers(exclude uint8) []ClientRecord {
	r.mu.RLock()
	out := make([]ClientRecord, 0, len(r.byID))
	for id, rec := range r.byID {
		if id == exclude || !rec.Active() {
			continue
		}
		out = append(out, *rec)
	}
	r.mu.RUnlock()

	sortByID(out)
	return out
}

// Snapshot returns every record, ordered by identity.
func (r *Registry) Snapshot() []ClientRecord {
	r.mu.RLock()
	out := make([]ClientRecord, 0, len(r.byID))
	for _, rec := range r.byID {
		out = append(out, *rec)
	}
	r.mu.RUnlock()

	sortByID(out)
	return out
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// ReapProvisional removes clients that never acknowledged within maxAge.
func (r *Registry) ReapProvisional(maxAge time.Duration) []ClientRecord {
	return r.reap(LeaveHandshakeTimeout, func(rec *ClientRecord, now time.Time) bool {
		return !rec.Active() && now.Sub(rec.ConnectedAt) > maxAge
	})
}

// ReapIdle removes active clients that have not been heard from within maxAge.
func (r *Registry) ReapIdle(maxAge time.Duration) []ClientRecord {
	return r.reap(LeaveIdleTimeout, func(rec *ClientRecord, now time.Time) bool {
		return rec.Active() && now.Sub(rec.LastSeen) > maxAge
	})
}

func (r *Registry) reap(reason string, expired func(*ClientRecord, time.Time) bool) []ClientRecord {
	r.mu.Lock()
	now := r.now()
	var removed []ClientRecord
	for id, rec := range r.byID {
		if expired(rec, now) {
			removed = append(removed, r.removeLocked(id))
		}
	}
	r.mu.Unlock()

	sortByID(removed)
	for _, rec := range removed {
		r.emit(&Event{Kind: EventClientLeft, Client: rec, Reason: reason})
	}
	return removed
}

func sortByID(recs []ClientRecord) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
}
