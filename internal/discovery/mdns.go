// Package discovery advertises the relay on the local network over mDNS.
package discovery

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/rs/zerolog"
)

// ServiceType is the DNS-SD service type of the rendezvous channel.
const ServiceType = "_sharedcanvas._udp"

// responder is the part of *mdns.Server the advertiser needs.
type responder interface {
	Shutdown() error
}

// Advertiser answers mDNS queries for the relay until closed.
type Advertiser struct {
	server responder
	log    *zerolog.Logger
}

// Advertise publishes the rendezvous port under instance, or the hostname when instance is empty.
func Advertise(instance string, port int, logger *zerolog.Logger) (*Advertiser, error) {
	service, err := newService(instance, "", port, nil)
	if err != nil {
		return nil, err
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("start mDNS server: %w", err)
	}

	logger.Info().
		Str("instance", service.Instance).
		Str("service", ServiceType).
		Int("port", port).
		Msg("advertising relay over mDNS")
	return &Advertiser{server: server, log: logger}, nil
}

func newService(instance, hostName string, port int, ips []net.IP) (*mdns.MDNSService, error) {
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("could not get hostname: %w", err)
		}
		instance = host
	}

	service, err := mdns.NewMDNSService(
		instance,
		ServiceType,
		"",
		hostName,
		port,
		ips,
		[]string{"SharedCanvas"},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}
	return service, nil
}

// Close stops answering queries.
func (a *Advertiser) Close() error {
	if err := a.server.Shutdown(); err != nil {
		return fmt.Errorf("stop mDNS server: %w", err)
	}
	a.log.Info().Str("service", ServiceType).Msg("mDNS advertisement stopped")
	return nil
}

// Found is a relay discovered on the local network.
type Found struct {
	Instance string
	Addr     net.IP
	Port     int
}

// Browse queries the local network for relays until timeout or ctx ends.
func Browse(ctx context.Context, timeout time.Duration) ([]Found, error) {
	entries := make(chan *mdns.ServiceEntry, 8)
	done := make(chan []Found, 1)
	go func() {
		var found []Found
		for e := range entries {
			if e.AddrV4 == nil || e.Port == 0 {
				continue
			}
			found = append(found, Found{Instance: e.Name, Addr: e.AddrV4, Port: e.Port})
		}
		done <- found
	}()

	if d, ok := ctx.Deadline(); ok && time.Until(d) < timeout {
		timeout = time.Until(d)
	}
	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true

	err := mdns.Query(params)
	close(entries)
	found := <-done
	if err != nil {
		return found, fmt.Errorf("mDNS query: %w", err)
	}
	return found, nil
}
