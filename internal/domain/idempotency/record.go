// Package idempotency holds the records that let financial mutations be
// retried safely under the same idempotency key.
package idempotency

import (
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// MaxKeyLength bounds caller-supplied keys
const MaxKeyLength = 255

// State is the progress of the request that reserved a key
type State string

const (
	StateInFlight  State = "in_flight"
	StateCompleted State = "completed"
)

// Descriptor is the minimal result kept for replays. It never holds the
// request or response body.
type Descriptor struct {
	Status       int       `json:"status"`
	ResourceType string    `json:"resource_type"`
	ResourceID   uuid.UUID `json:"resource_id"`
}

// Record is a reserved or completed idempotency key of one tenant
type Record struct {
	TenantID    uuid.UUID
	Key         string
	Operation   string
	PayloadHash string
	UserID      uuid.UUID
	State       State
	Descriptor  *Descriptor
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// NormalizeKey trims and validates a caller-supplied key. An empty result
// means the request carries no key.
func NormalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if len(key) > MaxKeyLength {
		return "", shared.NewValidationError("idempotency key cannot exceed %d characters", MaxKeyLength)
	}
	return key, nil
}

// NewReservation builds the in-flight record written before the mutation runs
func NewReservation(tenantID, userID uuid.UUID, key, operation, payloadHash string) *Record {
	return &Record{
		TenantID:    tenantID,
		Key:         key,
		Operation:   operation,
		PayloadHash: payloadHash,
		UserID:      userID,
		State:       StateInFlight,
		CreatedAt:   time.Now(),
	}
}

// IsCompleted reports whether a descriptor has been stored
func (r *Record) IsCompleted() bool {
	return r.State == StateCompleted && r.Descriptor != nil
}

// CheckPayload rejects a key reused with a different payload. The comparison
// is exact on the hex digest of the normalized payload.
func (r *Record) CheckPayload(payloadHash string) error {
	if r.PayloadHash != payloadHash {
		return shared.NewConflictError("idempotency key %q was already used with a different request", r.Key)
	}
	return nil
}
