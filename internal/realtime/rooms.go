package realtime

import (
	"context"

	"github.com/tinywideclouds/go-orderstatus-client/internal/transport"
)

// Room commands understood by the backend.
const (
	CommandJoinOrder  = "joinOrder"
	CommandLeaveOrder = "leaveOrder"
)

// JoinOrder asks the server to deliver status events for orderID to this
// connection. It is fire-and-forget: while not connected the command is
// dropped, not queued, and callers must join again after reconnecting. It
// reports whether the command was written to the socket.
func (m *Manager) JoinOrder(ctx context.Context, orderID string) bool {
	return m.sendRoomCommand(ctx, CommandJoinOrder, orderID)
}

// LeaveOrder asks the server to stop delivering events for orderID. Same
// delivery rules as JoinOrder.
func (m *Manager) LeaveOrder(ctx context.Context, orderID string) bool {
	return m.sendRoomCommand(ctx, CommandLeaveOrder, orderID)
}

func (m *Manager) sendRoomCommand(ctx context.Context, command, orderID string) bool {
	log := m.logger.With().Str("command", command).Str("order", orderID).Logger()
	if orderID == "" {
		log.Debug().Msg("Skipping room command without order id.")
		return false
	}

	m.mu.RLock()
	conn := m.conn
	connected := m.state.IsConnected()
	m.mu.RUnlock()
	if !connected || conn == nil {
		log.Debug().Msg("Not connected; room command dropped.")
		return false
	}

	p, err := transport.NewEvent(command, orderID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build room command.")
		return false
	}

	m.sendMu.Lock()
	err = conn.Send(ctx, p)
	m.sendMu.Unlock()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to send room command.")
		return false
	}
	log.Debug().Msg("Room command sent.")
	return true
}
