package udp

import (
	"context"
	"errors"
	"net/netip"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-limiter"

	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/core"
	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/proto"
)

// ingress resolves the sender of each stroke batch and queues it for fan-out.
type ingress struct {
	registry  *core.Registry
	queue     *core.Queue
	rateLimit limiter.Store // nil disables rate limiting
	stats     *core.Stats
	log       *zerolog.Logger
}

func newIngress(reg *core.Registry, q *core.Queue, rl limiter.Store, stats *core.Stats, logger *zerolog.Logger) *ingress {
	return &ingress{registry: reg, queue: q, rateLimit: rl, stats: stats, log: logger}
}

func (in *ingress) handle(ctx context.Context, from netip.AddrPort, pkt []byte) {
	in.stats.Received.Add(1)

	rec, ok := in.registry.LookupBySourceAddress(from)
	if !ok {
		in.stats.DroppedUnknown.Add(1)
		return
	}

	if in.rateLimit != nil {
		if _, _, _, allowed, err := in.rateLimit.Take(ctx, rec.Session.String()); err == nil && !allowed {
			in.stats.DroppedRateLimited.Add(1)
			in.log.Debug().Uint8("id", rec.ID).Msg("rate limited, batch dropped")
			return
		}
	}

	points, err := proto.DecodeStrokeBatch(pkt)
	if err != nil || len(points) == 0 {
		in.stats.DroppedMalformed.Add(1)
		in.log.Debug().Err(err).Uint8("id", rec.ID).Msg("ignoring stroke batch")
		return
	}

	in.registry.Touch(from)

	err = in.queue.Push(core.PendingBatch{
		Source:     rec.ID,
		Session:    rec.Session,
		Points:     points,
		ReceivedAt: time.Now(),
	})
	if errors.Is(err, core.ErrQueueFull) {
		in.stats.DroppedQueueFull.Add(1)
		in.log.Warn().Uint8("id", rec.ID).Msg("queue full, batch dropped")
	}
}
