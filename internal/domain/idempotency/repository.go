package idempotency

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists idempotency records
type Store interface {
	// Reserve inserts rec if no record exists for its tenant and key. It
	// reports whether this call inserted the record.
	Reserve(ctx context.Context, rec *Record) (bool, error)
	// Find returns the record or a not-found error
	Find(ctx context.Context, tenantID uuid.UUID, key string) (*Record, error)
	// Complete stores the descriptor of a reserved key
	Complete(ctx context.Context, tenantID uuid.UUID, key string, d Descriptor) error
	// Release deletes an in-flight reservation so the key can be reused
	Release(ctx context.Context, tenantID uuid.UUID, key string) error
	// PurgeBefore deletes records created before cutoff
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
