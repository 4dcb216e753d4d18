// Package audit records who triggered every domain event.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// Entry is one row of the audit trail
type Entry struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	ActorID        uuid.UUID
	Action         string
	AggregateType  string
	AggregateID    uuid.UUID
	EventID        uuid.UUID
	IdempotencyKey string
	RequestID      string
	Payload        json.RawMessage
	OccurredAt     time.Time
}

// NewEntry builds an entry for event performed by the operation's actor
func NewEntry(op shared.OpContext, event shared.DomainEvent) (*Entry, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return &Entry{
		ID:             uuid.New(),
		TenantID:       event.TenantID(),
		ActorID:        op.ActorID,
		Action:         event.EventType(),
		AggregateType:  event.AggregateType(),
		AggregateID:    event.AggregateID(),
		EventID:        event.EventID(),
		IdempotencyKey: op.IdempotencyKey,
		RequestID:      op.RequestID,
		Payload:        payload,
		OccurredAt:     event.OccurredAt(),
	}, nil
}

// Filter narrows audit queries
type Filter struct {
	shared.Filter
	AggregateID *uuid.UUID
	Action      string
}

// Repository persists audit entries
type Repository interface {
	Append(ctx context.Context, e *Entry) error
	List(ctx context.Context, tenantID uuid.UUID, filter Filter) ([]*Entry, int64, error)
}
