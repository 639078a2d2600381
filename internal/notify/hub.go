// Package notify implements an in-process fan-out hub for per-account
// events, the same buffered-channel-per-subscriber broadcast shape as the
// reference feeds package's PriceUpdate/Tick subscriber lists, plus an
// optional Telegram sink that mirrors the reference bot's notification
// style onto a single chat.
package notify

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// EventType identifies the kind of account event being reported.
type EventType string

const (
	// AccountUpdate fires whenever an order fill changes an account's
	// balance, margin, or positions.
	AccountUpdate EventType = "account_update"
	// PositionClosed labels an event about a position whose quantity
	// reached zero. Nothing in this module publishes it: the matching
	// engine reports every fill, closing fills included, as AccountUpdate.
	PositionClosed EventType = "position_closed"
)

// Event is one notification delivered to a subscriber.
type Event struct {
	Type      EventType
	AccountID uint
	Message   string
}

// Sink receives every event the hub publishes, regardless of account.
// Telegram is the only sink today; tests can supply a fake one.
type Sink interface {
	Send(Event)
}

// Hub fans out events to per-account subscriber channels and to any
// registered sinks. The zero value is not usable; use NewHub.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[uint][]chan Event
	sinks       []Sink
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[uint][]chan Event),
	}
}

// AddSink registers a Sink that receives every event published through the
// hub, in addition to any channel subscribers for that event's account.
func (h *Hub) AddSink(sink Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sinks = append(h.sinks, sink)
}

// Subscribe returns a buffered channel that receives events for accountID.
// The channel is never closed by the hub; callers that stop listening
// should simply stop reading from it.
func (h *Hub) Subscribe(accountID uint) chan Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, 64)
	h.subscribers[accountID] = append(h.subscribers[accountID], ch)
	return ch
}

// Notify publishes event to accountID's subscribers and to every registered
// sink. A full subscriber channel drops the event rather than blocking the
// matching engine.
func (h *Hub) Notify(accountID uint, event Event) {
	h.mu.RLock()
	subs := h.subscribers[accountID]
	sinks := h.sinks
	h.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
			log.Warn().Uint("account_id", accountID).Msg("notify: subscriber channel full, dropping event")
		}
	}

	for _, sink := range sinks {
		sink.Send(event)
	}
}
