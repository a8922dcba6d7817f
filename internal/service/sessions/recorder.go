package sessions

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/core"
	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/store"
)

// ReasonShutdown ends sessions still open when the server stops.
const ReasonShutdown = "shutdown"

// Recorder persists registry lifecycle events to the session log.
// Listen never blocks the registry: events are buffered and written by Run.
type Recorder struct {
	store  store.SessionStore
	events chan *core.Event
	log    *zerolog.Logger
	now    func() time.Time
}

// New creates a recorder with room for buffer pending events.
func New(st store.SessionStore, buffer int, logger *zerolog.Logger) *Recorder {
	if buffer <= 0 {
		buffer = 256
	}
	return &Recorder{
		store:  st,
		events: make(chan *core.Event, buffer),
		log:    logger,
		now:    time.Now,
	}
}

// Listen is a core.Listener.
func (r *Recorder) Listen(ev *core.Event) {
	if ev.Kind == core.EventStroke {
		return
	}
	select {
	case r.events <- ev:
	default:
		r.log.Warn().Stringer("kind", ev.Kind).Uint8("id", ev.Client.ID).Msg("session log backlog full, event dropped")
	}
}

// Run writes events until ctx is cancelled, then closes every open session.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-r.events:
			r.record(ctx, ev)
		case <-ctx.Done():
			r.drain()
			return nil
		}
	}
}

func (r *Recorder) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for {
		select {
		case ev := <-r.events:
			r.record(ctx, ev)
		default:
			n, err := r.store.CloseOpenSessions(ctx, ReasonShutdown, r.now())
			if err != nil {
				r.log.Warn().Err(err).Msg("close open sessions")
				return
			}
			if n > 0 {
				r.log.Info().Int64("sessions", n).Msg("closed open sessions")
			}
			return
		}
	}
}

func (r *Recorder) record(ctx context.Context, ev *core.Event) {
	c := ev.Client
	id := c.Session.String()

	var err error
	switch ev.Kind {
	case core.EventClientJoined:
		err = r.store.StartSession(ctx, &store.Session{
			ID:        id,
			ClientID:  c.ID,
			MainAddr:  c.MainAddr.String(),
			Color:     c.Color.Hex(),
			StartedAt: c.ConnectedAt,
		})
	case core.EventClientActive:
		err = r.store.ActivateSession(ctx, id, c.DataAddr.String(), c.ActivatedAt)
	case core.EventClientLeft:
		err = r.store.EndSession(ctx, id, ev.Reason, r.now())
	default:
		return
	}
	if err != nil {
		r.log.Warn().Err(err).Stringer("kind", ev.Kind).Str("session", id).Msg("session log write failed")
	}
}
