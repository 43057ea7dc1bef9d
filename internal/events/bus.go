package events

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Handler processes a single event
type Handler func(Event)

// subscription pairs a handler with its registration token
type subscription struct {
	id      int
	handler Handler
}

// Bus is an in-process publish/subscribe registry keyed by event type.
//
// Handlers for a type run in registration order, sequentially, on the
// publisher's goroutine. Gating components rely on this: the circuit
// breaker must have observed a loss before any later handler reacts to
// it. A panicking handler is recovered and logged; remaining handlers
// still run and Emit never fails because of a handler.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]subscription
	nextID   int
	logger   zerolog.Logger
}

// NewBus creates an empty event bus
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType][]subscription),
		logger:   logger.With().Str("component", "EventBus").Logger(),
	}
}

// Subscribe registers a handler for an event type and returns a token
// that can be passed to Unsubscribe.
func (b *Bus) Subscribe(eventType EventType, handler Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.handlers[eventType] = append(b.handlers[eventType], subscription{
		id:      b.nextID,
		handler: handler,
	})
	return b.nextID
}

// Unsubscribe removes a previously registered handler. Unknown tokens
// are ignored.
func (b *Bus) Unsubscribe(eventType EventType, token int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[eventType]
	for i, s := range subs {
		if s.id == token {
			b.handlers[eventType] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// HandlerCount returns the number of handlers registered for a type
func (b *Bus) HandlerCount(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}

// Emit dispatches an event to all handlers for its type, in
// registration order. Safe for concurrent use.
func (b *Bus) Emit(event Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.handlers[event.Type()]))
	copy(subs, b.handlers[event.Type()])
	b.mu.RUnlock()

	for _, s := range subs {
		b.dispatch(s, event)
	}
}

// dispatch invokes one handler with panic isolation
func (b *Bus) dispatch(s subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("event_type", string(event.Type())).
				Int("handler_id", s.id).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Event handler panicked")
		}
	}()
	s.handler(event)
}
