// Package polling implements the live channel transport over HTTP
// long-polling, used when a WebSocket cannot be established.
//
// A session is opened with POST {endpoint}/polling, which answers
// {"session": "<id>"}. Packets are sent with POST {endpoint}/polling/<id> and
// received with GET {endpoint}/polling/<id>, which blocks until the server
// has packets (200 with a JSON array) or the poll times out (204). 410 Gone
// means the server ended the session. DELETE closes it.
package polling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tinywideclouds/go-orderstatus-client/internal/transport"
)

// Name identifies this transport in logs and configuration.
const Name = "polling"

const defaultPollTimeout = 30 * time.Second

type session struct {
	ID string `json:"session"`
}

// Transport opens long-polling sessions.
type Transport struct {
	client *http.Client
	origin string
	logger zerolog.Logger
}

var _ transport.Transport = (*Transport)(nil)

// New creates a polling transport. A nil client uses one whose timeout
// leaves room for a full long-poll.
func New(client *http.Client, origin string, logger zerolog.Logger) *Transport {
	if client == nil {
		client = &http.Client{Timeout: defaultPollTimeout + 10*time.Second}
	}
	return &Transport{
		client: client,
		origin: origin,
		logger: logger.With().Str("component", "PollingTransport").Logger(),
	}
}

func (t *Transport) Name() string { return Name }

// Dial opens a session. ws and wss endpoints are mapped to http and https.
func (t *Transport) Dial(ctx context.Context, endpoint string) (transport.Conn, error) {
	base := strings.TrimSuffix(toHTTPURL(endpoint), "/") + "/polling"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build session request: %w", err)
	}
	t.setHeaders(req)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polling session request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("polling session rejected with status %d", resp.StatusCode)
	}
	var s session
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil || s.ID == "" {
		return nil, fmt.Errorf("polling session response carried no session id")
	}

	t.logger.Debug().Str("session", s.ID).Msg("Polling session opened.")
	return &Conn{
		transport: t,
		url:       base + "/" + url.PathEscape(s.ID),
		closed:    make(chan struct{}),
	}, nil
}

func (t *Transport) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if t.origin != "" {
		req.Header.Set("Origin", t.origin)
	}
}

func toHTTPURL(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "wss://"):
		return "https://" + strings.TrimPrefix(endpoint, "wss://")
	case strings.HasPrefix(endpoint, "ws://"):
		return "http://" + strings.TrimPrefix(endpoint, "ws://")
	default:
		return endpoint
	}
}

// Conn is one long-polling session.
type Conn struct {
	transport *Transport
	url       string

	// pending holds packets from the last poll not yet returned by Receive.
	pending []transport.Packet

	closeOnce sync.Once
	closed    chan struct{}
}

var _ transport.Conn = (*Conn)(nil)

func (c *Conn) Send(ctx context.Context, p transport.Packet) error {
	if c.isClosed() {
		return transport.ErrClosed
	}
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal packet: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build send request: %w", err)
	}
	c.transport.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.transport.client.Do(req)
	if err != nil {
		return c.mapErr(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusGone:
		return fmt.Errorf("%w: session ended", io.EOF)
	case resp.StatusCode >= 300:
		return fmt.Errorf("polling send failed with status %d", resp.StatusCode)
	}
	return nil
}

// Receive returns the next packet, polling the server until one arrives.
// Receive must not be called concurrently with itself.
func (c *Conn) Receive(ctx context.Context) (transport.Packet, error) {
	for len(c.pending) == 0 {
		if c.isClosed() {
			return transport.Packet{}, transport.ErrClosed
		}
		packets, err := c.poll(ctx)
		if err != nil {
			return transport.Packet{}, err
		}
		c.pending = packets
	}
	p := c.pending[0]
	c.pending = c.pending[1:]
	return p, nil
}

func (c *Conn) poll(ctx context.Context) ([]transport.Packet, error) {
	// Close aborts an in-flight poll.
	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.closed:
			cancel()
		case <-pollCtx.Done():
		}
	}()

	req, err := http.NewRequestWithContext(pollCtx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build poll request: %w", err)
	}
	c.transport.setHeaders(req)

	resp, err := c.transport.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, c.mapErr(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var packets []transport.Packet
		if err := json.NewDecoder(resp.Body).Decode(&packets); err != nil {
			return nil, fmt.Errorf("failed to decode poll response: %w", err)
		}
		return packets, nil
	case http.StatusNoContent:
		return nil, nil
	case http.StatusGone, http.StatusNotFound:
		return nil, fmt.Errorf("%w: session ended", io.EOF)
	default:
		return nil, fmt.Errorf("poll failed with status %d", resp.StatusCode)
	}
}

// Close ends the session on the server. Safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodDelete, c.url, nil)
		if reqErr != nil {
			err = reqErr
			return
		}
		c.transport.setHeaders(req)
		resp, doErr := c.transport.client.Do(req)
		if doErr != nil {
			c.transport.logger.Debug().Err(doErr).Msg("Failed to end polling session.")
			return
		}
		_ = resp.Body.Close()
	})
	return err
}

func (c *Conn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *Conn) mapErr(err error) error {
	if c.isClosed() {
		return transport.ErrClosed
	}
	return err
}
