// Package fakes provides in-memory test doubles for the live channel and the
// notification platform, shared by the package tests.
package fakes

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tinywideclouds/go-orderstatus-client/internal/transport"
	"github.com/tinywideclouds/go-orderstatus-client/pkg/orderstatus"
)

// --- Credentials ---

// Credentials is a fixed CredentialStore. An empty token means none is stored.
type Credentials struct {
	TokenValue string
	Err        error
}

func (c *Credentials) Token(_ context.Context) (string, error) {
	if c.Err != nil {
		return "", c.Err
	}
	if c.TokenValue == "" {
		return "", orderstatus.ErrNoCredential
	}
	return c.TokenValue, nil
}

// --- Clock ---

// Clock wraps a clockwork fake clock. Every timer is advanced past at once, so
// reconnects happen immediately, and the requested delays are recorded.
type Clock struct {
	once   sync.Once
	fake   *clockwork.FakeClock
	mu     sync.Mutex
	delays []time.Duration
}

func (c *Clock) After(d time.Duration) <-chan time.Time {
	c.once.Do(func() { c.fake = clockwork.NewFakeClock() })
	c.mu.Lock()
	c.delays = append(c.delays, d)
	c.mu.Unlock()
	ch := c.fake.After(d)
	c.fake.Advance(d)
	return ch
}

// Delays returns every delay requested so far.
func (c *Clock) Delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.delays...)
}

// --- Transport ---

// Conn is the client end of an in-memory live channel connection. Tests play
// the server by calling Push, Drop and Sent.
type Conn struct {
	incoming chan transport.Packet
	closed   chan struct{}
	dropped  chan struct{}

	mu        sync.Mutex
	sent      []transport.Packet
	sendErr   error
	closeOnce sync.Once
	dropOnce  sync.Once
}

func NewConn() *Conn {
	return &Conn{
		incoming: make(chan transport.Packet, 64),
		closed:   make(chan struct{}),
		dropped:  make(chan struct{}),
	}
}

// NewAcceptingConn returns a Conn whose handshake will succeed with sid.
func NewAcceptingConn(sid string) *Conn {
	c := NewConn()
	data, _ := json.Marshal(transport.Handshake{SID: sid})
	c.Push(transport.Packet{Type: transport.PacketConnect, Data: data})
	return c
}

// NewRejectingConn returns a Conn whose handshake will be rejected.
func NewRejectingConn(message string) *Conn {
	c := NewConn()
	data, _ := json.Marshal(transport.ConnectError{Message: message})
	c.Push(transport.Packet{Type: transport.PacketConnectError, Data: data})
	return c
}

// Push queues a packet from the server.
func (c *Conn) Push(p transport.Packet) {
	c.incoming <- p
}

// PushEvent queues a server event.
func (c *Conn) PushEvent(event string, data any) {
	p, _ := transport.NewEvent(event, data)
	c.Push(p)
}

// Drop simulates network loss.
func (c *Conn) Drop() {
	c.dropOnce.Do(func() { close(c.dropped) })
}

// FailSends makes every later Send return err without recording the packet.
func (c *Conn) FailSends(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

// Sent returns every packet the client sent.
func (c *Conn) Sent() []transport.Packet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]transport.Packet(nil), c.sent...)
}

// SentEvents returns the client's event packets, excluding the handshake.
func (c *Conn) SentEvents() []transport.Packet {
	var events []transport.Packet
	for _, p := range c.Sent() {
		if p.Type == transport.PacketEvent {
			events = append(events, p)
		}
	}
	return events
}

// IsClosed reports whether the client closed the connection.
func (c *Conn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *Conn) Send(_ context.Context, p transport.Packet) error {
	if c.IsClosed() {
		return transport.ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, p)
	return nil
}

func (c *Conn) Receive(ctx context.Context) (transport.Packet, error) {
	// Packets already queued win over a drop so scripted handshakes complete.
	select {
	case p := <-c.incoming:
		return p, nil
	default:
	}
	select {
	case p := <-c.incoming:
		return p, nil
	case <-c.dropped:
		return transport.Packet{}, io.EOF
	case <-c.closed:
		return transport.Packet{}, transport.ErrClosed
	case <-ctx.Done():
		return transport.Packet{}, ctx.Err()
	}
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// DialResult is one scripted outcome of Transport.Dial.
type DialResult struct {
	Conn *Conn
	Err  error
}

// Transport hands out scripted connections in order. Once the script is
// exhausted the last result repeats.
type Transport struct {
	NameValue string

	mu      sync.Mutex
	results []DialResult
	dials   []string
}

func NewTransport(name string, results ...DialResult) *Transport {
	return &Transport{NameValue: name, results: results}
}

func (t *Transport) Name() string { return t.NameValue }

func (t *Transport) Dial(ctx context.Context, endpoint string) (transport.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dials = append(t.dials, endpoint)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(t.results) == 0 {
		return nil, io.ErrUnexpectedEOF
	}
	r := t.results[0]
	if len(t.results) > 1 {
		t.results = t.results[1:]
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Conn, nil
}

// Dials returns how many times Dial was called.
func (t *Transport) Dials() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.dials)
}

// --- Windows ---

// Window is an in-memory application window.
type Window struct {
	IDValue      string
	URLValue     string
	NotFocusable bool

	mu        sync.Mutex
	navigated []string
	focused   int
}

func (w *Window) ID() string      { return w.IDValue }
func (w *Window) Focusable() bool { return !w.NotFocusable }

func (w *Window) URL() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.URLValue
}

func (w *Window) Navigate(_ context.Context, url string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.navigated = append(w.navigated, url)
	return nil
}

func (w *Window) Focus(_ context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.focused++
	return nil
}

// Navigations returns every URL the window was navigated to.
func (w *Window) Navigations() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.navigated...)
}

// FocusCount returns how often the window was focused.
func (w *Window) FocusCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.focused
}

// Windows lists a fixed set of windows and cannot open new ones.
type Windows struct {
	List []*Window

	mu                  sync.Mutex
	includeUncontrolled []bool
}

func (w *Windows) MatchAll(_ context.Context, includeUncontrolled bool) ([]orderstatus.WindowClient, error) {
	w.mu.Lock()
	w.includeUncontrolled = append(w.includeUncontrolled, includeUncontrolled)
	w.mu.Unlock()
	clients := make([]orderstatus.WindowClient, 0, len(w.List))
	for _, win := range w.List {
		clients = append(clients, win)
	}
	return clients, nil
}

// MatchAllCalls returns the includeUncontrolled flag of every MatchAll call.
func (w *Windows) MatchAllCalls() []bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]bool(nil), w.includeUncontrolled...)
}

// OpeningWindows is Windows that can also open new windows.
type OpeningWindows struct {
	Windows

	mu     sync.Mutex
	opened []string
}

func (w *OpeningWindows) OpenWindow(_ context.Context, url string) (orderstatus.WindowClient, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.opened = append(w.opened, url)
	return &Window{IDValue: "opened", URLValue: url}, nil
}

// Opened returns the URLs of every window opened.
func (w *OpeningWindows) Opened() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.opened...)
}
