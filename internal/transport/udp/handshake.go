package udp

import (
	"context"
	"encoding/json"
	"errors"
	"net/netip"

	"github.com/rs/zerolog"

	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/core"
	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/proto"
)

// handshake serves the rendezvous channel: connect, identity acknowledgment and disconnect.
type handshake struct {
	registry *core.Registry
	out      core.PacketWriter
	ports    proto.DataPorts
	log      *zerolog.Logger
}

func newHandshake(reg *core.Registry, out core.PacketWriter, ports proto.DataPorts, logger *zerolog.Logger) *handshake {
	return &handshake{registry: reg, out: out, ports: ports, log: logger}
}

func (h *handshake) handle(_ context.Context, from netip.AddrPort, pkt []byte) {
	if id, err := proto.DecodeAck(pkt); err == nil {
		h.handleAck(from, id)
		return
	}

	cd, err := proto.DecodeConnectionData(pkt)
	if err != nil {
		h.log.Debug().Err(err).Str("addr", from.String()).Msg("ignoring rendezvous datagram")
		return
	}

	switch cd.ConnectionMessage {
	case proto.MessageConnect:
		h.handleConnect(from, cd.DrawingBrushColorsJSON)
	case proto.MessageDisconnect:
		h.handleDisconnect(from)
	default:
		h.log.Debug().Str("addr", from.String()).Str("message", cd.ConnectionMessage).Msg("ignoring unknown connection message")
	}
}

func (h *handshake) handleConnect(from netip.AddrPort, colorPayload string) {
	color, err := proto.DecodeColor(colorPayload)
	if err != nil {
		h.log.Debug().Err(err).Str("addr", from.String()).Msg("ignoring connect with bad color")
		return
	}

	rec, err := h.registry.Register(from, color)
	if err != nil {
		if errors.Is(err, core.ErrRegistryFull) {
			h.log.Warn().Str("addr", from.String()).Msg("registry full, connect dropped")
			return
		}
		h.log.Error().Err(err).Str("addr", from.String()).Msg("register client")
		return
	}

	reply, err := json.Marshal(proto.ConnectReply{Ports: h.ports, Identity: rec.ID})
	if err != nil {
		h.log.Error().Err(err).Msg("encode connect reply")
		return
	}
	if _, err := h.out.WriteToUDPAddrPort(reply, from); err != nil {
		// The record stays provisional and is reclaimed by the handshake timeout.
		h.log.Warn().Err(err).Uint8("id", rec.ID).Str("addr", from.String()).Msg("send connect reply")
		return
	}

	h.log.Info().
		Uint8("id", rec.ID).
		Str("addr", from.String()).
		Str("color", color.Hex()).
		Msg("client connected")
}

func (h *handshake) handleAck(from netip.AddrPort, id uint8) {
	rec, err := h.registry.CompleteRegistration(id, from)
	if err != nil {
		h.log.Debug().Err(err).Uint8("id", id).Str("addr", from.String()).Msg("ignoring acknowledgment")
		return
	}
	h.log.Info().Uint8("id", rec.ID).Str("data_addr", from.String()).Msg("client active")
}

func (h *handshake) handleDisconnect(from netip.AddrPort) {
	rec, ok := h.registry.Unregister(from)
	if !ok {
		h.log.Debug().Str("addr", from.String()).Msg("disconnect from unknown client")
		return
	}
	h.log.Info().Uint8("id", rec.ID).Str("addr", from.String()).Msg("client disconnected")
}
