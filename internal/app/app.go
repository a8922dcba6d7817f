package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"net/netip"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/config"
	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/core"
	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/discovery"
	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/service/sessions"
	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/store"
	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/store/sqlite"
	transporthttp "github.com/mateusz-kowalczyk-12/shared-canvas/internal/transport/http"
	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/transport/udp"
)

// App wires together core, storage and transport layers.
type App struct {
	relay           *udp.Server
	shutdownTimeout time.Duration
	registry        *core.Registry
	log             *zerolog.Logger

	// Optional parts; nil when disabled.
	server     *stdhttp.Server
	store      store.Store
	recorder   *sessions.Recorder
	advertiser *discovery.Advertiser
}

// New constructs the application and binds the relay sockets.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	a := &App{
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             logger,
	}

	observers := core.NewObservers()
	listener := core.Listener(observers.Broadcast)

	var sessionStore store.SessionStore
	if cfg.DatabasePath != "" {
		st, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

		a.store = st
		a.recorder = sessions.New(st, 0, logger)
		sessionStore = st
		listener = core.Fanout(observers.Broadcast, a.recorder.Listen)
	}

	a.registry = core.NewRegistry(listener)
	queue := core.NewQueue(cfg.QueueCapacity)
	stats := &core.Stats{}

	a.relay = udp.NewServer(cfg, a.registry, queue, observers, stats, logger)
	if err := a.relay.Listen(); err != nil {
		a.cleanup()
		return nil, err
	}

	if cfg.HTTPAddr != "" {
		a.server = transporthttp.NewServer(transporthttp.Deps{
			Registry:  a.registry,
			Queue:     queue,
			Stats:     stats,
			Observers: observers,
			Sessions:  sessionStore,
		}, cfg, logger)
	}

	if cfg.MDNSEnabled {
		adv, err := discovery.Advertise(cfg.MDNSInstance, int(a.relay.RendezvousAddr().Port()), logger)
		if err != nil {
			// The relay works without discovery; clients can still be pointed at it directly.
			logger.Warn().Err(err).Msg("mDNS advertisement disabled")
		} else {
			a.advertiser = adv
		}
	}

	return a, nil
}

// RendezvousAddr returns the bound rendezvous address.
func (a *App) RendezvousAddr() netip.AddrPort {
	return a.relay.RendezvousAddr()
}

// Run serves the relay and the admin API until ctx is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	g, ctx := errgroup.WithContext(ctx)

	if a.recorder != nil {
		g.Go(func() error { return a.recorder.Run(ctx) })
	}

	g.Go(func() error { return a.relay.Serve(ctx) })

	if a.server != nil {
		g.Go(func() error {
			a.log.Info().Str("addr", a.server.Addr).Msg("admin http listening")
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				return fmt.Errorf("admin http: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
			defer cancel()

			a.log.Info().Msg("shutting down http server")
			return a.server.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.advertiser != nil {
		if err := a.advertiser.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to stop mDNS advertisement")
		}
		a.advertiser = nil
	}
	if a.relay != nil {
		_ = a.relay.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
		a.store = nil
	}
}
