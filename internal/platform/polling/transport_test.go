package polling_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-orderstatus-client/internal/platform/polling"
	"github.com/tinywideclouds/go-orderstatus-client/internal/transport"
)

// pollServer is a minimal long-polling endpoint with a single session.
type pollServer struct {
	mu       sync.Mutex
	outbox   []transport.Packet
	received []transport.Packet
	ended    bool
	deleted  bool
	origin   string
}

func (s *pollServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /live/polling", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.origin = r.Header.Get("Origin")
		s.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"session": "s-1"})
	})
	mux.HandleFunc("POST /live/polling/s-1", func(w http.ResponseWriter, r *http.Request) {
		var p transport.Packet
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.received = append(s.received, p)
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /live/polling/s-1", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		switch {
		case s.ended:
			w.WriteHeader(http.StatusGone)
		case len(s.outbox) == 0:
			w.WriteHeader(http.StatusNoContent)
		default:
			_ = json.NewEncoder(w).Encode(s.outbox)
			s.outbox = nil
		}
	})
	mux.HandleFunc("DELETE /live/polling/s-1", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.deleted = true
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func (s *pollServer) queue(packets ...transport.Packet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox = append(s.outbox, packets...)
}

func (s *pollServer) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
}

func (s *pollServer) snapshot() (received []transport.Packet, deleted bool, origin string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]transport.Packet(nil), s.received...), s.deleted, s.origin
}

func TestTransport_Session(t *testing.T) {
	// Arrange
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	server := &pollServer{}
	srv := httptest.NewServer(server.handler())
	t.Cleanup(srv.Close)

	tr := polling.New(srv.Client(), "https://railbite.example", zerolog.Nop())
	assert.Equal(t, "polling", tr.Name())

	// Act: ws endpoints map onto http
	conn, err := tr.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/live")
	require.NoError(t, err)

	auth, _ := json.Marshal(transport.Auth{Token: "abc"})
	require.NoError(t, conn.Send(ctx, transport.Packet{Type: transport.PacketConnect, Data: auth}))

	sid, _ := json.Marshal(transport.Handshake{SID: "sock-p"})
	update, err := transport.NewEvent("orderStatusUpdated", "ORD-42")
	require.NoError(t, err)
	server.queue(transport.Packet{Type: transport.PacketConnect, Data: sid}, update)

	// Assert: packets from one poll are returned one at a time
	first, err := conn.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, transport.PacketConnect, first.Type)
	second, err := conn.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "orderStatusUpdated", second.Event)

	received, _, origin := server.snapshot()
	require.Len(t, received, 1)
	assert.Equal(t, transport.PacketConnect, received[0].Type)
	assert.Equal(t, "https://railbite.example", origin)

	// A session ended by the server reads as end of stream.
	server.end()
	_, err = conn.Receive(ctx)
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	_, deleted, _ := server.snapshot()
	assert.True(t, deleted)

	_, err = conn.Receive(ctx)
	assert.ErrorIs(t, err, transport.ErrClosed)
	assert.ErrorIs(t, conn.Send(ctx, update), transport.ErrClosed)
}

func TestTransport_ReceiveHonoursContext(t *testing.T) {
	server := &pollServer{}
	srv := httptest.NewServer(server.handler())
	t.Cleanup(srv.Close)

	conn, err := polling.New(srv.Client(), "", zerolog.Nop()).Dial(context.Background(), srv.URL+"/live")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// The server never has packets; Receive keeps polling until ctx ends.
	_, err = conn.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTransport_DialRejected(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	_, err := polling.New(srv.Client(), "", zerolog.Nop()).Dial(context.Background(), srv.URL+"/live")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
