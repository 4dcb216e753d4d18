package acl

import (
	"context"

	"github.com/google/uuid"
)

// CustomerDirectory resolves customer ids for the finance context. It is
// implemented in the infrastructure layer.
type CustomerDirectory interface {
	// GetCustomerReference returns a not-found error for unknown customers
	GetCustomerReference(ctx context.Context, tenantID, customerID uuid.UUID) (CustomerReference, error)
	// Register stores or replaces the local copy of a customer
	Register(ctx context.Context, tenantID uuid.UUID, ref CustomerReference) error
}

// CustomerReferenceCache keeps recently resolved references in memory
type CustomerReferenceCache interface {
	Get(ctx context.Context, tenantID, customerID uuid.UUID) (CustomerReference, bool)
	Set(ctx context.Context, tenantID uuid.UUID, ref CustomerReference)
	Invalidate(ctx context.Context, tenantID, customerID uuid.UUID)
}
