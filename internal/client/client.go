// Package client implements the participant side of the relay protocol.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"time"

	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/proto"
)

const (
	defaultTimeout  = 5 * time.Second
	connectInterval = 500 * time.Millisecond
	maxDatagram     = 65507
)

// Client is a connected canvas participant.
// The main socket carries connect, disconnect and outgoing strokes; the data socket
// acknowledges the identity and receives relayed strokes.
type Client struct {
	main   *net.UDPConn
	data   *net.UDPConn
	server netip.AddrPort
	ports  proto.DataPorts
	id     uint8
	color  proto.Color
}

// Connect performs the handshake with the relay at rendezvous.
// The connect request is repeated until a reply arrives or ctx ends.
func Connect(ctx context.Context, rendezvous netip.AddrPort, color proto.Color) (*Client, error) {
	main, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, fmt.Errorf("listen main: %w", err)
	}
	data, err := net.ListenUDP("udp", nil)
	if err != nil {
		main.Close()
		return nil, fmt.Errorf("listen data: %w", err)
	}

	c := &Client{main: main, data: data, server: rendezvous, color: color}
	if err := c.handshake(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) handshake(ctx context.Context) error {
	req, err := proto.EncodeConnectionData(proto.MessageConnect, &c.color)
	if err != nil {
		return err
	}

	buf := make([]byte, maxDatagram)
	for {
		if _, err := c.main.WriteToUDPAddrPort(req, c.server); err != nil {
			return fmt.Errorf("send connect: %w", err)
		}

		deadline := time.Now().Add(connectInterval)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		_ = c.main.SetReadDeadline(deadline)

		n, _, err := c.main.ReadFromUDPAddrPort(buf)
		if err == nil {
			var reply proto.ConnectReply
			if err := json.Unmarshal(buf[:n], &reply); err != nil {
				return fmt.Errorf("decode connect reply: %w", err)
			}
			c.ports = reply.Ports
			c.id = reply.Identity
			break
		}
		if !errors.Is(err, os.ErrDeadlineExceeded) {
			return fmt.Errorf("read connect reply: %w", err)
		}
		if ctx.Err() != nil {
			return fmt.Errorf("connect: %w", ctx.Err())
		}
	}
	_ = c.main.SetReadDeadline(time.Time{})

	if _, err := c.data.WriteToUDPAddrPort([]byte{c.id}, c.server); err != nil {
		return fmt.Errorf("send acknowledgment: %w", err)
	}
	return nil
}

// ID returns the identity assigned by the relay.
func (c *Client) ID() uint8 { return c.id }

// Ports returns the data channel ports announced by the relay.
func (c *Client) Ports() proto.DataPorts { return c.ports }

// MainAddr returns the local address of the main socket.
func (c *Client) MainAddr() netip.AddrPort {
	return c.main.LocalAddr().(*net.UDPAddr).AddrPort()
}

// SendStroke sends one stroke batch to the relay's ingress port.
func (c *Client) SendStroke(points []proto.Point) error {
	pkt, err := json.Marshal(points)
	if err != nil {
		return err
	}
	to := netip.AddrPortFrom(c.server.Addr(), uint16(c.ports.DrawingDataReceivingPort))
	if _, err := c.main.WriteToUDPAddrPort(pkt, to); err != nil {
		return fmt.Errorf("send stroke: %w", err)
	}
	return nil
}

// Receive waits for the next relayed stroke batch.
// Without a ctx deadline it waits at most five seconds.
func (c *Client) Receive(ctx context.Context) ([]proto.Point, proto.Color, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultTimeout)
	}
	_ = c.data.SetReadDeadline(deadline)

	buf := make([]byte, maxDatagram)
	n, _, err := c.data.ReadFromUDPAddrPort(buf)
	if err != nil {
		return nil, proto.Color{}, fmt.Errorf("receive: %w", err)
	}
	return proto.DecodeDrawingData(buf[:n])
}

// Disconnect tells the relay the client is leaving and closes both sockets.
func (c *Client) Disconnect() error {
	req, err := proto.EncodeConnectionData(proto.MessageDisconnect, nil)
	if err != nil {
		return err
	}
	_, sendErr := c.main.WriteToUDPAddrPort(req, c.server)
	return errors.Join(sendErr, c.Close())
}

// Close releases both sockets without notifying the relay.
func (c *Client) Close() error {
	return errors.Join(c.main.Close(), c.data.Close())
}
