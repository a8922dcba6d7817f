package core

import "sync/atomic"

// Stats counts what happened to incoming stroke batches.
type Stats struct {
	Received           atomic.Uint64
	DroppedUnknown     atomic.Uint64
	DroppedMalformed   atomic.Uint64
	DroppedRateLimited atomic.Uint64
	DroppedQueueFull   atomic.Uint64
	Relayed            atomic.Uint64
	DroppedNoReceivers atomic.Uint64
	DroppedSourceGone  atomic.Uint64
	SendErrors         atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Received           uint64 `json:"received"`
	DroppedUnknown     uint64 `json:"dropped_unknown"`
	DroppedMalformed   uint64 `json:"dropped_malformed"`
	DroppedRateLimited uint64 `json:"dropped_rate_limited"`
	DroppedQueueFull   uint64 `json:"dropped_queue_full"`
	Relayed            uint64 `json:"relayed"`
	DroppedNoReceivers uint64 `json:"dropped_no_receivers"`
	DroppedSourceGone  uint64 `json:"dropped_source_gone"`
	SendErrors         uint64 `json:"send_errors"`
}

// Snapshot loads every counter.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Received:           s.Received.Load(),
		DroppedUnknown:     s.DroppedUnknown.Load(),
		DroppedMalformed:   s.DroppedMalformed.Load(),
		DroppedRateLimited: s.DroppedRateLimited.Load(),
		DroppedQueueFull:   s.DroppedQueueFull.Load(),
		Relayed:            s.Relayed.Load(),
		DroppedNoReceivers: s.DroppedNoReceivers.Load(),
		DroppedSourceGone:  s.DroppedSourceGone.Load(),
		SendErrors:         s.SendErrors.Load(),
	}
}
