package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/netip"
	"os"
	"time"

	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/client"
	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/discovery"
	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("canvas_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "127.0.0.1:11000", "relay rendezvous address")
	discover := flag.Bool("discover", false, "find the relay over mDNS instead of using -addr")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rendezvous, err := resolve(ctx, *addr, *discover)
	if err != nil {
		return err
	}

	alice, err := client.Connect(ctx, rendezvous, proto.Color{0, 0, 0})
	if err != nil {
		return fmt.Errorf("connect alice: %w", err)
	}
	defer alice.Close()
	fmt.Printf("alice connected as %d (ports %+v)\n", alice.ID(), alice.Ports())

	bob, err := client.Connect(ctx, rendezvous, proto.Color{255, 0, 0})
	if err != nil {
		return fmt.Errorf("connect bob: %w", err)
	}
	defer bob.Close()
	fmt.Printf("bob connected as %d\n", bob.ID())

	// Give the relay a moment to process bob's acknowledgment.
	time.Sleep(100 * time.Millisecond)

	if err := alice.SendStroke([]proto.Point{{X: 0, Y: 0}, {X: 10, Y: 10}}); err != nil {
		return err
	}
	points, color, err := bob.Receive(ctx)
	if err != nil {
		return fmt.Errorf("bob receive: %w", err)
	}
	fmt.Printf("bob received %d points in %s\n", len(points), color.Hex())

	if err := alice.Disconnect(); err != nil {
		return fmt.Errorf("alice disconnect: %w", err)
	}
	if err := bob.Disconnect(); err != nil {
		return fmt.Errorf("bob disconnect: %w", err)
	}
	fmt.Println("ok")
	return nil
}

func resolve(ctx context.Context, addr string, discover bool) (netip.AddrPort, error) {
	if !discover {
		ap, err := netip.ParseAddrPort(addr)
		if err != nil {
			return netip.AddrPort{}, fmt.Errorf("parse addr: %w", err)
		}
		return ap, nil
	}

	found, err := discovery.Browse(ctx, 2*time.Second)
	if err != nil {
		return netip.AddrPort{}, err
	}
	if len(found) == 0 {
		return netip.AddrPort{}, fmt.Errorf("no relay found on the local network")
	}
	ip, ok := netip.AddrFromSlice(found[0].Addr.To4())
	if !ok {
		return netip.AddrPort{}, fmt.Errorf("bad address %v", found[0].Addr)
	}
	fmt.Printf("found %s at %s:%d\n", found[0].Instance, ip, found[0].Port)
	return netip.AddrPortFrom(ip, uint16(found[0].Port)), nil
}
