// Package transport defines the wire packets exchanged on the live channel
// and the contract every concrete transport (WebSocket, long-polling)
// implements.
package transport

import (
	"context"
	"encoding/json"
	"errors"
)

// PacketType identifies the kind of a live channel packet.
type PacketType string

const (
	// PacketConnect is sent by the client with its auth payload and answered
	// by the server with the assigned socket ID.
	PacketConnect PacketType = "connect"
	// PacketConnectError is the server's rejection of a handshake.
	PacketConnectError PacketType = "connect_error"
	// PacketDisconnect is a server-initiated close.
	PacketDisconnect PacketType = "disconnect"
	// PacketEvent carries a named application event in either direction.
	PacketEvent PacketType = "event"
)

// Packet is the JSON envelope for everything sent on the live channel.
type Packet struct {
	Type  PacketType      `json:"type"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Auth is the handshake payload presented by the client.
type Auth struct {
	Token string `json:"token"`
}

// Handshake is the server's answer to a successful connect.
type Handshake struct {
	SID string `json:"sid"`
}

// ConnectError is the server's answer to a rejected connect.
type ConnectError struct {
	Message string `json:"message"`
}

// ErrClosed is returned by Conn operations after Close.
var ErrClosed = errors.New("transport closed")

// Conn is an open, not yet handshaken, live channel connection.
// Send may be called concurrently with Receive but not with itself.
type Conn interface {
	Send(ctx context.Context, p Packet) error
	Receive(ctx context.Context) (Packet, error)
	Close() error
}

// Transport opens connections to an endpoint.
type Transport interface {
	Name() string
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// NewEvent builds an event packet with data marshaled as JSON.
func NewEvent(event string, data any) (Packet, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Packet{}, err
	}
	return Packet{Type: PacketEvent, Event: event, Data: raw}, nil
}
