package shared

import (
	"context"
	"time"
)

// EventHandler handles domain events
type EventHandler interface {
	// Handle processes a domain event. A returned error is propagated to the
	// publisher and aborts the publishing unit of work.
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes returns the event types this handler is interested in
	// An empty slice means the handler receives all events
	EventTypes() []string
}

// EventPublisher publishes domain events
type EventPublisher interface {
	// Publish publishes one or more domain events
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventSubscriber subscribes to domain events
type EventSubscriber interface {
	// Subscribe registers a handler for specific event types
	// If no event types are provided, the handler's own EventTypes are used
	Subscribe(handler EventHandler, eventTypes ...string)
	// Unsubscribe removes a handler from the subscription list
	Unsubscribe(handler EventHandler)
}

// EventBus combines publisher and subscriber capabilities
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// ProcessedEventStore remembers which event IDs a handler already processed,
// so redelivered events can be skipped.
type ProcessedEventStore interface {
	// MarkProcessed marks an event as processed with a TTL.
	// Returns true if the event was newly marked, false if it was already processed.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	// Forget removes the mark so the event can be processed again
	Forget(ctx context.Context, eventID string) error
	// Close releases resources held by the store
	Close() error
}
