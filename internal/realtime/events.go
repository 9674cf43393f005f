package realtime

import (
	"encoding/json"
	"sync"

	"github.com/tinywideclouds/go-orderstatus-client/pkg/orderstatus"
)

// EventKind names an event a Manager publishes. Lifecycle kinds are listed
// below; any other kind is a server event forwarded by name.
type EventKind string

const (
	EventConnect         EventKind = "connect"
	EventDisconnect      EventKind = "disconnect"
	EventConnectError    EventKind = "connect_error"
	EventReconnectFailed EventKind = "reconnect_failed"
	EventStateChange     EventKind = "state"
)

// Disconnect reasons reported with EventDisconnect.
const (
	ReasonServerDisconnect = "io server disconnect"
	ReasonClientDisconnect = "io client disconnect"
	ReasonTransportClose   = "transport close"
	ReasonTransportError   = "transport error"
)

// Event is delivered to subscribers.
type Event struct {
	Kind  EventKind
	State orderstatus.ConnectionState
	// Reason is set on EventDisconnect.
	Reason string
	// Message is set on EventConnectError.
	Message string
	// Data is the raw payload of a server event.
	Data json.RawMessage
}

// Subscription is a cancellable registration returned by Subscribe.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Cancel deregisters the handler. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

type subscribers struct {
	mu       sync.Mutex
	nextID   uint64
	handlers map[EventKind]map[uint64]func(Event)
}

func (s *subscribers) add(kind EventKind, fn func(Event)) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handlers == nil {
		s.handlers = make(map[EventKind]map[uint64]func(Event))
	}
	if s.handlers[kind] == nil {
		s.handlers[kind] = make(map[uint64]func(Event))
	}
	id := s.nextID
	s.nextID++
	s.handlers[kind][id] = fn

	return &Subscription{cancel: func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.handlers[kind], id)
	}}
}

// snapshot copies the handlers for kind so they can run without the lock.
func (s *subscribers) snapshot(kind EventKind) []func(Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fns := make([]func(Event), 0, len(s.handlers[kind]))
	for _, fn := range s.handlers[kind] {
		fns = append(fns, fn)
	}
	return fns
}

func (s *subscribers) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = nil
}
