// Package websocket implements the live channel transport over a WebSocket.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tinywideclouds/go-orderstatus-client/internal/transport"
)

const (
	// Name identifies this transport in logs and configuration.
	Name = "websocket"

	writeWait      = 10 * time.Second
	maxMessageSize = 512 * 1024
)

// Transport dials the live channel as a WebSocket.
type Transport struct {
	dialer *websocket.Dialer
	header http.Header
	logger zerolog.Logger
}

var _ transport.Transport = (*Transport)(nil)

// New creates a WebSocket transport. origin, when set, is sent as the Origin
// header so the server can apply its CORS policy.
func New(origin string, logger zerolog.Logger) *Transport {
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	return &Transport{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 20 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
		header: header,
		logger: logger.With().Str("component", "WebSocketTransport").Logger(),
	}
}

func (t *Transport) Name() string { return Name }

// Dial opens a WebSocket to endpoint. http and https endpoints are upgraded to
// ws and wss.
func (t *Transport) Dial(ctx context.Context, endpoint string) (transport.Conn, error) {
	wsURL := toWebSocketURL(endpoint)
	ws, resp, err := t.dialer.DialContext(ctx, wsURL, t.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial %s failed with status %d: %w", wsURL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial %s failed: %w", wsURL, err)
	}
	ws.SetReadLimit(maxMessageSize)
	t.logger.Debug().Str("url", wsURL).Msg("WebSocket connected.")
	return &Conn{ws: ws}, nil
}

func toWebSocketURL(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return "wss://" + strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		return "ws://" + strings.TrimPrefix(endpoint, "http://")
	default:
		return endpoint
	}
}

// Conn is a live channel connection over a WebSocket. Packets are sent as
// JSON text frames.
type Conn struct {
	ws *websocket.Conn

	writeMu   sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var _ transport.Conn = (*Conn)(nil)

func (c *Conn) Send(ctx context.Context, p transport.Packet) error {
	if c.closed.Load() {
		return transport.ErrClosed
	}
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteJSON(p); err != nil {
		return c.mapErr(err)
	}
	return nil
}

// Receive blocks for the next packet. Cancelling ctx closes the connection,
// since a WebSocket cannot resume after an interrupted read.
func (c *Conn) Receive(ctx context.Context) (transport.Packet, error) {
	if c.closed.Load() {
		return transport.Packet{}, transport.ErrClosed
	}
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	var p transport.Packet
	if err := c.ws.ReadJSON(&p); err != nil {
		if ctx.Err() != nil {
			return transport.Packet{}, ctx.Err()
		}
		return transport.Packet{}, c.mapErr(err)
	}
	return p, nil
}

// Close sends a close frame and releases the socket. Safe to call more than
// once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

func (c *Conn) mapErr(err error) error {
	if c.closed.Load() {
		return transport.ErrClosed
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %v", io.EOF, err)
	}
	return err
}
