package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/core"
)

const observerBuffer = 64

// ObserveHandler upgrades HTTP connections and streams relay events to them.
type ObserveHandler struct {
	registry  *core.Registry
	observers *core.Observers
	log       *zerolog.Logger
}

// NewObserveHandler builds a new observer WebSocket handler.
func NewObserveHandler(reg *core.Registry, observers *core.Observers, logger *zerolog.Logger) stdhttp.Handler {
	return &ObserveHandler{registry: reg, observers: observers, log: logger}
}

func (h *ObserveHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if h.observers == nil {
		stdhttp.Error(w, "observers disabled", stdhttp.StatusServiceUnavailable)
		return
	}

	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	observer := core.NewObserver(uuid.NewString(), observerBuffer)
	h.observers.Add(observer)
	defer h.observers.Remove(observer)
	h.log.Debug().Str("observer_id", observer.ID).Msg("observer connected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, ev := range snapshotEvents(h.registry.Snapshot()) {
		if err := wsjson.Write(ctx, conn, ev); err != nil {
			h.log.Warn().Err(err).Str("observer_id", observer.ID).Msg("write ws snapshot")
			return
		}
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, observer)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("observer_id", observer.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// readLoop discards anything the observer sends and returns when the peer goes away.
func (h *ObserveHandler) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return err
		}
	}
}

func (h *ObserveHandler) writeLoop(ctx context.Context, conn *websocket.Conn, observer *core.Observer) error {
	for {
		select {
		case ev, ok := <-observer.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, observeEventFrom(ev)); err != nil {
				h.log.Error().Err(err).Str("observer_id", observer.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
