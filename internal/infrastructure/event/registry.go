package event

import (
	"sync"

	"github.com/erp/ledger/internal/domain/shared"
)

// subscription binds a handler to the event types it receives. An empty type
// set receives every event.
type subscription struct {
	handler shared.EventHandler
	types   map[string]struct{}
}

func (s subscription) matches(eventType string) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[eventType]
	return ok
}

// HandlerRegistry keeps handler subscriptions in registration order, which
// is the order handlers run in
type HandlerRegistry struct {
	mu   sync.RWMutex
	subs []subscription
}

// NewHandlerRegistry creates a new handler registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{}
}

// Register adds a handler for specific event types.
// If no event types are provided, the handler receives all events.
// Registering the same handler again widens its existing subscription.
func (r *HandlerRegistry) Register(handler shared.EventHandler, eventTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.subs {
		if r.subs[i].handler != handler {
			continue
		}
		if len(eventTypes) == 0 || len(r.subs[i].types) == 0 {
			r.subs[i].types = nil
			return
		}
		for _, t := range eventTypes {
			r.subs[i].types[t] = struct{}{}
		}
		return
	}

	sub := subscription{handler: handler}
	if len(eventTypes) > 0 {
		sub.types = make(map[string]struct{}, len(eventTypes))
		for _, t := range eventTypes {
			sub.types[t] = struct{}{}
		}
	}
	r.subs = append(r.subs, sub)
}

// Unregister removes a handler from all event types
func (r *HandlerRegistry) Unregister(handler shared.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.subs[:0]
	for _, s := range r.subs {
		if s.handler != handler {
			kept = append(kept, s)
		}
	}
	r.subs = kept
}

// GetHandlers returns the handlers receiving eventType, in registration order
func (r *HandlerRegistry) GetHandlers(eventType string) []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]shared.EventHandler, 0, len(r.subs))
	for _, s := range r.subs {
		if s.matches(eventType) {
			result = append(result, s.handler)
		}
	}
	return result
}

// Len returns the number of registered handlers
func (r *HandlerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
