package core

import (
	"context"
	"errors"
	"net/netip"

	"github.com/rs/zerolog"

	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/proto"
)

// PacketWriter sends a datagram to a client. *net.UDPConn satisfies it.
type PacketWriter interface {
	WriteToUDPAddrPort(b []byte, addr netip.AddrPort) (int, error)
}

// Broadcaster drains the queue and sends every batch to all active clients except its source.
type Broadcaster struct {
	registry  *Registry
	queue     *Queue
	out       PacketWriter
	observers *Observers
	stats     *Stats
	log       *zerolog.Logger
}

// NewBroadcaster wires a broadcaster. observers and stats may be nil.
func NewBroadcaster(reg *Registry, q *Queue, out PacketWriter, observers *Observers, stats *Stats, logger *zerolog.Logger) *Broadcaster {
	if stats == nil {
		stats = &Stats{}
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Broadcaster{
		registry:  reg,
		queue:     q,
		out:       out,
		observers: observers,
		stats:     stats,
		log:       logger,
	}
}

// Run dispatches batches until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) error {
	for {
		batch, err := b.queue.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		b.dispatch(batch)
		b.queue.Remove()
	}
}

func (b *Broadcaster) dispatch(batch PendingBatch) {
	receivers := b.registry.AllReceivers(batch.Source)
	if len(receivers) == 0 {
		b.stats.DroppedNoReceivers.Add(1)
		b.log.Debug().Uint8("id", batch.Source).Msg("no receivers, batch dropped")
		return
	}

	// The identity may have been released, or even re-assigned, since the batch was queued.
	src, ok := b.registry.Lookup(batch.Source)
	if !ok || src.Session != batch.Session {
		b.stats.DroppedSourceGone.Add(1)
		b.log.Debug().Uint8("id", batch.Source).Msg("source left, batch dropped")
		return
	}

	payload, err := proto.EncodeDrawingData(batch.Points, src.Color)
	if err != nil {
		b.log.Error().Err(err).Uint8("id", batch.Source).Msg("encode drawing data")
		return
	}

	for _, rc := range receivers {
		if _, err := b.out.WriteToUDPAddrPort(payload, rc.DataAddr); err != nil {
			b.stats.SendErrors.Add(1)
			b.log.Warn().Err(err).Uint8("to", rc.ID).Str("addr", rc.DataAddr.String()).Msg("send drawing data")
		}
	}
	b.stats.Relayed.Add(1)

	if b.observers != nil {
		b.observers.Broadcast(&Event{Kind: EventStroke, Client: src, Points: batch.Points})
	}
}
