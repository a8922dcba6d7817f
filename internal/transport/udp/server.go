package udp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-limiter"
	"github.com/sethvargo/go-limiter/memorystore"
	"golang.org/x/sync/errgroup"

	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/config"
	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/core"
	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/proto"
)

// readErrorPause throttles a read loop that keeps failing for reasons other than shutdown.
const readErrorPause = 100 * time.Millisecond

// Server owns the three relay sockets: rendezvous, data ingress and data egress.
type Server struct {
	cfg       config.Config
	registry  *core.Registry
	queue     *core.Queue
	observers *core.Observers
	stats     *core.Stats
	log       *zerolog.Logger

	rendezvous *net.UDPConn
	ingress    *net.UDPConn
	egress     *net.UDPConn

	rateLimit limiter.Store
}

// NewServer wires the relay. observers may be nil.
func NewServer(cfg config.Config, reg *core.Registry, q *core.Queue, observers *core.Observers, stats *core.Stats, logger *zerolog.Logger) *Server {
	if stats == nil {
		stats = &core.Stats{}
	}
	return &Server{
		cfg:       cfg,
		registry:  reg,
		queue:     q,
		observers: observers,
		stats:     stats,
		log:       logger,
	}
}

// Listen binds the rendezvous, ingress and egress sockets.
func (s *Server) Listen() error {
	var err error
	if s.rendezvous, err = s.bind(s.cfg.RendezvousPort); err != nil {
		return fmt.Errorf("bind rendezvous: %w", err)
	}
	if s.ingress, err = s.bind(s.cfg.IngressPort); err != nil {
		s.closeSockets()
		return fmt.Errorf("bind ingress: %w", err)
	}
	if s.egress, err = s.bind(s.cfg.EgressPort); err != nil {
		s.closeSockets()
		return fmt.Errorf("bind egress: %w", err)
	}

	if s.cfg.IngressRateLimit > 0 {
		s.rateLimit, err = memorystore.New(&memorystore.Config{
			Tokens:   uint64(s.cfg.IngressRateLimit),
			Interval: time.Second,
		})
		if err != nil {
			s.closeSockets()
			return fmt.Errorf("ingress rate limiter: %w", err)
		}
	}

	s.log.Info().
		Str("rendezvous", s.rendezvous.LocalAddr().String()).
		Str("ingress", s.ingress.LocalAddr().String()).
		Str("egress", s.egress.LocalAddr().String()).
		Msg("relay listening")
	return nil
}

func (s *Server) bind(port int) (*net.UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(s.cfg.Host, strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}
	return net.ListenUDP("udp", addr)
}

// RendezvousAddr returns the bound rendezvous address. It must not be called before Listen.
func (s *Server) RendezvousAddr() netip.AddrPort {
	return s.rendezvous.LocalAddr().(*net.UDPAddr).AddrPort()
}

// Ports returns the data channel ports announced to clients. It must not be called before Listen.
func (s *Server) Ports() proto.DataPorts {
	return proto.DataPorts{
		DrawingDataSendingPort:   s.egress.LocalAddr().(*net.UDPAddr).Port,
		DrawingDataReceivingPort: s.ingress.LocalAddr().(*net.UDPAddr).Port,
	}
}

// Serve runs the handshake service, ingress relay, broadcaster and reaper until ctx is cancelled.
// Cancelling ctx closes every socket.
func (s *Server) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	handshake := newHandshake(s.registry, s.rendezvous, s.Ports(), s.log)
	ingress := newIngress(s.registry, s.queue, s.rateLimit, s.stats, s.log)
	broadcaster := core.NewBroadcaster(s.registry, s.queue, s.egress, s.observers, s.stats, s.log)

	// close the sockets on shutdown in order to break out of the read loops
	g.Go(func() error {
		<-ctx.Done()
		s.closeSockets()
		if s.rateLimit != nil {
			_ = s.rateLimit.Close(context.Background())
		}
		return nil
	})
	g.Go(func() error {
		return s.readLoop(ctx, s.rendezvous, "rendezvous", handshake.handle)
	})
	g.Go(func() error {
		return s.readLoop(ctx, s.ingress, "ingress", ingress.handle)
	})
	g.Go(func() error {
		return broadcaster.Run(ctx)
	})
	g.Go(func() error {
		s.reap(ctx)
		return nil
	})

	return g.Wait()
}

// ListenAndServe binds the sockets and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

type datagramHandler func(ctx context.Context, from netip.AddrPort, pkt []byte)

func (s *Server) readLoop(ctx context.Context, conn *net.UDPConn, name string, handle datagramHandler) error {
	buf := make([]byte, s.cfg.MaxDatagramSize)
	for {
		n, from, err := conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			s.log.Warn().Err(err).Str("channel", name).Msg("read datagram")
			select {
			case <-time.After(readErrorPause):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		handle(ctx, netip.AddrPortFrom(from.Addr().Unmap(), from.Port()), buf[:n])
	}
}

func (s *Server) reap(ctx context.Context) {
	interval := s.cfg.HandshakeTimeout / 2
	if s.cfg.IdleTimeout > 0 && s.cfg.IdleTimeout/2 < interval {
		interval = s.cfg.IdleTimeout / 2
	}
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, rec := range s.registry.ReapProvisional(s.cfg.HandshakeTimeout) {
				s.log.Info().Uint8("id", rec.ID).Str("addr", rec.MainAddr.String()).Msg("handshake timed out, identity reclaimed")
			}
			if s.cfg.IdleTimeout > 0 {
				for _, rec := range s.registry.ReapIdle(s.cfg.IdleTimeout) {
					s.log.Info().Uint8("id", rec.ID).Str("addr", rec.MainAddr.String()).Msg("client idle, identity reclaimed")
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// Close releases every socket. Serve does this on its own when its context ends.
func (s *Server) Close() error {
	return s.closeSockets()
}

func (s *Server) closeSockets() error {
	var errs []error
	for _, c := range []*net.UDPConn{s.rendezvous, s.ingress, s.egress} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
