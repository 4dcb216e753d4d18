package event

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"go.uber.org/zap"
)

// DedupeConfig controls event-id deduplication
type DedupeConfig struct {
	Enabled bool
	// TTL is how long a processed event id is remembered
	TTL time.Duration
}

// DefaultDedupeConfig returns the deduplication defaults
func DefaultDedupeConfig() DedupeConfig {
	return DedupeConfig{Enabled: true, TTL: 24 * time.Hour}
}

// DedupeMetrics tracks deduplication statistics
type DedupeMetrics struct {
	EventsProcessed atomic.Int64
	EventsDuplicate atomic.Int64
	EventsFailed    atomic.Int64
}

// Stats returns a snapshot of the current metrics
func (m *DedupeMetrics) Stats() DedupeStats {
	return DedupeStats{
		EventsProcessed: m.EventsProcessed.Load(),
		EventsDuplicate: m.EventsDuplicate.Load(),
		EventsFailed:    m.EventsFailed.Load(),
	}
}

// DedupeStats is a snapshot of deduplication metrics
type DedupeStats struct {
	EventsProcessed int64 `json:"events_processed"`
	EventsDuplicate int64 `json:"events_duplicate"`
	EventsFailed    int64 `json:"events_failed"`
}

// IdempotentHandler wraps an EventHandler so a redelivered event id is
// handled at most once while its mark lives.
type IdempotentHandler struct {
	handler shared.EventHandler
	store   shared.ProcessedEventStore
	config  DedupeConfig
	logger  *zap.Logger
	metrics *DedupeMetrics
}

// IdempotentHandlerOption is a functional option for IdempotentHandler
type IdempotentHandlerOption func(*IdempotentHandler)

// WithDedupeConfig sets the deduplication configuration
func WithDedupeConfig(config DedupeConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.config = config
	}
}

// WithDedupeMetrics shares a metrics collector between handlers
func WithDedupeMetrics(metrics *DedupeMetrics) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.metrics = metrics
	}
}

// NewIdempotentHandler creates a new idempotent handler wrapper
func NewIdempotentHandler(
	handler shared.EventHandler,
	store shared.ProcessedEventStore,
	logger *zap.Logger,
	opts ...IdempotentHandlerOption,
) *IdempotentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &IdempotentHandler{
		handler: handler,
		store:   store,
		config:  DefaultDedupeConfig(),
		logger:  logger,
		metrics: &DedupeMetrics{},
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// EventTypes returns the event types this handler is interested in
func (h *IdempotentHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

// Handle processes the event unless its id was already processed. A failed
// run forgets the mark so the event can be redelivered after the rollback.
func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if !h.config.Enabled || h.store == nil {
		return h.handler.Handle(ctx, event)
	}

	eventID := event.EventID().String()

	isNew, err := h.store.MarkProcessed(ctx, eventID, h.config.TTL)
	if err != nil {
		// Handlers re-derive their state, so running twice is safe
		h.logger.Warn("failed to check processed event, processing anyway",
			zap.String("event_id", eventID),
			zap.String("event_type", event.EventType()),
			zap.Error(err),
		)
	} else if !isNew {
		h.metrics.EventsDuplicate.Add(1)
		h.logger.Debug("duplicate event detected, skipping",
			zap.String("event_id", eventID),
			zap.String("event_type", event.EventType()),
		)
		return nil
	}

	if err := h.handler.Handle(ctx, event); err != nil {
		h.metrics.EventsFailed.Add(1)
		if ferr := h.store.Forget(ctx, eventID); ferr != nil {
			h.logger.Warn("failed to forget processed event",
				zap.String("event_id", eventID),
				zap.Error(ferr),
			)
		}
		return err
	}

	h.metrics.EventsProcessed.Add(1)
	return nil
}

// Metrics returns the metrics for this handler
func (h *IdempotentHandler) Metrics() *DedupeMetrics {
	return h.metrics
}

// Unwrap returns the underlying handler
func (h *IdempotentHandler) Unwrap() shared.EventHandler {
	return h.handler
}

// Ensure IdempotentHandler implements EventHandler
var _ shared.EventHandler = (*IdempotentHandler)(nil)
