package proto

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Connection messages understood on the rendezvous channel.
const (
	MessageConnect    = "connect"
	MessageDisconnect = "disconnect"
)

// ColorLen is the number of bytes in a declared brush color (R, G, B).
const ColorLen = 3

var (
	// ErrBadColor is returned when a color payload does not decode to three bytes.
	ErrBadColor = errors.New("bad color payload")
	// ErrNotAck is returned when a datagram is not a single-byte identity echo.
	ErrNotAck = errors.New("not an identity acknowledgment")
)

// ConnectionData is sent by clients on the rendezvous channel.
type ConnectionData struct {
	ConnectionMessage      string `json:"ConnectionMessage"`
	DrawingBrushColorsJSON string `json:"DrawingBrushColorsJson"`
}

// DataPorts advertises the server's data channel ports to a connecting client.
type DataPorts struct {
	DrawingDataSendingPort   int `json:"DrawingDataSendingPort"`
	DrawingDataReceivingPort int `json:"DrawingDataReceivingPort"`
}

// ConnectReply answers a connect request with the data ports and the assigned identity.
type ConnectReply struct {
	Ports    DataPorts `json:"Item1"`
	Identity uint8     `json:"Item2"`
}

// Point is a single canvas coordinate.
type Point struct {
	X float64 `json:"X"`
	Y float64 `json:"Y"`
}

// DrawingData is relayed to receivers on the egress channel.
type DrawingData struct {
	Points                 []Point `json:"Points"`
	DrawingBrushColorsJSON string  `json:"DrawingBrushColorsJson"`
}

// Color is a declared brush color.
type Color [ColorLen]byte

// Hex renders the color as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}

// DecodeConnectionData parses a rendezvous datagram.
func DecodeConnectionData(pkt []byte) (ConnectionData, error) {
	var cd ConnectionData
	if err := json.Unmarshal(pkt, &cd); err != nil {
		return cd, fmt.Errorf("decode connection data: %w", err)
	}
	return cd, nil
}

// EncodeConnectionData builds a rendezvous request.
func EncodeConnectionData(message string, color *Color) ([]byte, error) {
	cd := ConnectionData{ConnectionMessage: message}
	if color != nil {
		payload, err := EncodeColor(*color)
		if err != nil {
			return nil, err
		}
		cd.DrawingBrushColorsJSON = payload
	}
	return json.Marshal(cd)
}

// DecodeAck extracts the identity from a single-byte acknowledgment.
func DecodeAck(pkt []byte) (uint8, error) {
	if len(pkt) != 1 {
		return 0, ErrNotAck
	}
	return pkt[0], nil
}

// DecodeColor parses the nested JSON document carried in DrawingBrushColorsJson:
// a JSON string holding the base64 of the three color bytes.
func DecodeColor(payload string) (Color, error) {
	var c Color
	var raw []byte
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return c, fmt.Errorf("%w: %v", ErrBadColor, err)
	}
	if len(raw) != ColorLen {
		return c, fmt.Errorf("%w: got %d bytes", ErrBadColor, len(raw))
	}
	copy(c[:], raw)
	return c, nil
}

// EncodeColor is the inverse of DecodeColor.
func EncodeColor(c Color) (string, error) {
	b, err := json.Marshal(c[:])
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeStrokeBatch parses an ingress datagram.
func DecodeStrokeBatch(pkt []byte) ([]Point, error) {
	var points []Point
	if err := json.Unmarshal(pkt, &points); err != nil {
		return nil, fmt.Errorf("decode stroke batch: %w", err)
	}
	return points, nil
}

// EncodeDrawingData serializes a relayed batch together with the source's color.
func EncodeDrawingData(points []Point, color Color) ([]byte, error) {
	payload, err := EncodeColor(color)
	if err != nil {
		return nil, err
	}
	if points == nil {
		points = []Point{}
	}
	return json.Marshal(DrawingData{Points: points, DrawingBrushColorsJSON: payload})
}

// DecodeDrawingData parses an egress datagram and its embedded color.
func DecodeDrawingData(pkt []byte) ([]Point, Color, error) {
	var dd DrawingData
	if err := json.Unmarshal(pkt, &dd); err != nil {
		return nil, Color{}, fmt.Errorf("decode drawing data: %w", err)
	}
	color, err := DecodeColor(dd.DrawingBrushColorsJSON)
	if err != nil {
		return nil, Color{}, err
	}
	return dd.Points, color, nil
}
