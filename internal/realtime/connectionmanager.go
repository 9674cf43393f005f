// Package realtime provides the client side of the live order-status channel:
// connection lifecycle, reconnection and order-room subscriptions.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/tinywideclouds/go-orderstatus-client/internal/transport"
	"github.com/tinywideclouds/go-orderstatus-client/pkg/orderstatus"
)

const defaultHandshakeTimeout = 20 * time.Second

var (
	// ErrHandshakeRejected is returned when the server answers connect with
	// connect_error.
	ErrHandshakeRejected = errors.New("handshake rejected")
	// ErrNoTransport is returned when every transport failed to dial.
	ErrNoTransport = errors.New("no transport available")
)

// Config configures a Manager.
type Config struct {
	// Endpoint is the live channel URL.
	Endpoint string
	// Policy controls automatic reconnection. The zero value selects
	// DefaultReconnectPolicy.
	Policy ReconnectPolicy
	// HandshakeTimeout bounds the wait for the server's connect answer.
	HandshakeTimeout time.Duration
	// Clock schedules reconnection delays. Defaults to the real clock.
	Clock Clock
}

// Manager owns one live channel connection for the lifetime of its owner.
// It is the only writer of its ConnectionState.
type Manager struct {
	cfg        Config
	transports []transport.Transport
	logger     zerolog.Logger
	instanceID string

	mu    sync.RWMutex
	state orderstatus.ConnectionState
	conn  transport.Conn

	sendMu sync.Mutex
	subs   subscribers

	closed    atomic.Bool
	closeOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// Open mounts a Manager. It reads the stored credential and, when one is
// present, starts connecting in the background using the transports in
// preference order. Without a credential the Manager stays Disconnected and
// never dials.
func Open(
	ctx context.Context,
	cfg Config,
	creds orderstatus.CredentialStore,
	transports []transport.Transport,
	logger zerolog.Logger,
) (*Manager, error) {
	if creds == nil {
		return nil, fmt.Errorf("credential store cannot be nil")
	}
	if len(transports) == 0 {
		return nil, fmt.Errorf("at least one transport is required")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	cfg.Policy = cfg.Policy.withDefaults()
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	instanceID := uuid.NewString()
	m := &Manager{
		cfg:        cfg,
		transports: transports,
		logger:     logger.With().Str("component", "ConnectionManager").Str("instance", instanceID).Logger(),
		instanceID: instanceID,
		state:      orderstatus.ConnectionState{Status: orderstatus.StatusDisconnected},
		done:       make(chan struct{}),
	}

	token, err := creds.Token(ctx)
	if err != nil || token == "" {
		if err != nil && !errors.Is(err, orderstatus.ErrNoCredential) {
			m.logger.Warn().Err(err).Msg("Failed to read stored credential.")
		}
		m.logger.Info().Msg("No credential stored; live channel disabled.")
		m.cancel = func() {}
		close(m.done)
		return m, nil
	}

	if info, ok := inspectCredential(token); ok {
		ev := m.logger.Debug().Str("subject", info.Subject)
		if !info.ExpiresAt.IsZero() {
			ev = ev.Time("expires_at", info.ExpiresAt)
			if info.ExpiresAt.Before(time.Now()) {
				m.logger.Warn().Time("expires_at", info.ExpiresAt).Msg("Stored credential has expired; handshake may be rejected.")
			}
		}
		ev.Msg("Using stored credential.")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.run(runCtx, token)

	return m, nil
}

// State returns a snapshot of the connection state.
func (m *Manager) State() orderstatus.ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Done is closed once the Manager stops connecting, either because it was
// closed, it never had a credential, or it gave up reconnecting.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Subscribe registers fn for events of kind. Handlers run on the Manager's
// goroutine in the order events arrive and must not call Close.
func (m *Manager) Subscribe(kind EventKind, fn func(Event)) *Subscription {
	return m.subs.add(kind, fn)
}

// Close unmounts the Manager: it stops any reconnection, closes the socket,
// resets the state to Disconnected and stops delivering events. It is safe
// to call more than once.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		m.cancel()

		m.mu.Lock()
		conn := m.conn
		m.conn = nil
		m.mu.Unlock()
		if conn != nil {
			err = conn.Close()
		}

		<-m.done

		m.mu.Lock()
		m.state = orderstatus.ConnectionState{Status: orderstatus.StatusDisconnected}
		m.mu.Unlock()
		m.subs.clear()

		m.logger.Info().Msg("Live channel closed.")
	})
	return err
}

// run owns the connection until ctx is cancelled or reconnection gives up.
func (m *Manager) run(ctx context.Context, token string) {
	defer close(m.done)

	attempts := 0
	for {
		m.setState(orderstatus.StatusConnecting, "")

		conn, sid, err := m.connect(ctx, token)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.logger.Warn().Err(err).Int("attempt", attempts).Msg("Live channel connect failed.")
			m.setState(orderstatus.StatusDisconnected, "")
			m.emit(Event{Kind: EventConnectError, State: m.State(), Message: err.Error()})
		} else {
			attempts = 0
			m.mu.Lock()
			m.conn = conn
			m.mu.Unlock()

			m.logger.Info().Str("sid", sid).Msg("Live channel connected.")
			m.setState(orderstatus.StatusConnected, sid)
			m.emit(Event{Kind: EventConnect, State: m.State()})

			reason := m.readLoop(ctx, conn)

			m.mu.Lock()
			if m.conn == conn {
				m.conn = nil
			}
			m.mu.Unlock()
			if err := conn.Close(); err != nil && !errors.Is(err, transport.ErrClosed) {
				m.logger.Debug().Err(err).Msg("error closing connection")
			}

			if ctx.Err() != nil {
				return
			}
			m.logger.Info().Str("reason", reason).Msg("Live channel disconnected.")
			m.setState(orderstatus.StatusDisconnected, "")
			m.emit(Event{Kind: EventDisconnect, State: m.State(), Reason: reason})

			if reason == ReasonServerDisconnect {
				return
			}
		}

		attempts++
		if attempts > m.cfg.Policy.MaxAttempts {
			m.logger.Warn().Int("max_attempts", m.cfg.Policy.MaxAttempts).Msg("Giving up reconnecting.")
			m.emit(Event{Kind: EventReconnectFailed, State: m.State()})
			return
		}

		delay := m.cfg.Policy.Delay.Next(attempts)
		m.logger.Debug().Int("attempt", attempts).Dur("delay", delay).Msg("Scheduling reconnect.")
		select {
		case <-ctx.Done():
			return
		case <-m.cfg.Clock.After(delay):
		}
	}
}

// connect dials the first available transport and performs the handshake.
func (m *Manager) connect(ctx context.Context, token string) (transport.Conn, string, error) {
	conn, err := m.dial(ctx)
	if err != nil {
		return nil, "", err
	}

	sid, err := m.handshake(ctx, conn, token)
	if err != nil {
		_ = conn.Close()
		return nil, "", err
	}
	return conn, sid, nil
}

func (m *Manager) dial(ctx context.Context) (transport.Conn, error) {
	var errs []error
	for _, t := range m.transports {
		conn, err := t.Dial(ctx, m.cfg.Endpoint)
		if err == nil {
			m.logger.Debug().Str("transport", t.Name()).Msg("Transport dialed.")
			return conn, nil
		}
		m.logger.Debug().Err(err).Str("transport", t.Name()).Msg("Transport unavailable, trying next.")
		errs = append(errs, fmt.Errorf("%s: %w", t.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrNoTransport, errors.Join(errs...))
}

func (m *Manager) handshake(ctx context.Context, conn transport.Conn, token string) (string, error) {
	auth, err := json.Marshal(transport.Auth{Token: token})
	if err != nil {
		return "", fmt.Errorf("failed to marshal auth payload: %w", err)
	}

	hsCtx, cancel := context.WithTimeout(ctx, m.cfg.HandshakeTimeout)
	defer cancel()

	if err := conn.Send(hsCtx, transport.Packet{Type: transport.PacketConnect, Data: auth}); err != nil {
		return "", fmt.Errorf("failed to send connect packet: %w", err)
	}

	p, err := conn.Receive(hsCtx)
	if err != nil {
		return "", fmt.Errorf("failed to receive handshake: %w", err)
	}

	switch p.Type {
	case transport.PacketConnect:
		var hs transport.Handshake
		if err := json.Unmarshal(p.Data, &hs); err != nil || hs.SID == "" {
			return "", fmt.Errorf("handshake carried no socket id")
		}
		return hs.SID, nil
	case transport.PacketConnectError:
		var ce transport.ConnectError
		_ = json.Unmarshal(p.Data, &ce)
		return "", fmt.Errorf("%w: %s", ErrHandshakeRejected, ce.Message)
	default:
		return "", fmt.Errorf("unexpected %q packet during handshake", p.Type)
	}
}

// readLoop forwards server events until the connection ends and returns the
// disconnect reason.
func (m *Manager) readLoop(ctx context.Context, conn transport.Conn) string {
	for {
		p, err := conn.Receive(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return ReasonClientDisconnect
			case errors.Is(err, io.EOF), errors.Is(err, transport.ErrClosed):
				return ReasonTransportClose
			default:
				m.logger.Debug().Err(err).Msg("Live channel read failed.")
				return ReasonTransportError
			}
		}

		switch p.Type {
		case transport.PacketDisconnect:
			return ReasonServerDisconnect
		case transport.PacketEvent:
			if p.Event == "" {
				continue
			}
			m.emit(Event{Kind: EventKind(p.Event), State: m.State(), Data: p.Data})
		default:
			m.logger.Debug().Str("type", string(p.Type)).Msg("Ignoring unexpected packet.")
		}
	}
}

// setState commits a transition and publishes it. Ignored after Close.
func (m *Manager) setState(status orderstatus.ConnectionStatus, sid string) {
	if m.closed.Load() {
		return
	}
	if status != orderstatus.StatusConnected {
		sid = ""
	}
	next := orderstatus.ConnectionState{Status: status, SocketID: sid}

	m.mu.Lock()
	changed := m.state != next
	m.state = next
	m.mu.Unlock()

	if changed {
		m.emit(Event{Kind: EventStateChange, State: next})
	}
}

func (m *Manager) emit(ev Event) {
	for _, fn := range m.subs.snapshot(ev.Kind) {
		if m.closed.Load() {
			return
		}
		fn(ev)
	}
}
