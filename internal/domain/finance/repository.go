package finance

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	shared.Filter
	CustomerID *uuid.UUID
	Status     *InvoiceStatus
	IssuedFrom *time.Time
	IssuedTo   *time.Time
}

// InvoiceStatusSummary aggregates invoices of one status
type InvoiceStatusSummary struct {
	Status      InvoiceStatus
	Count       int64
	TotalAmount decimal.Decimal
	BalanceDue  decimal.Decimal
}

// InvoiceRepository persists invoices with their items
type InvoiceRepository interface {
	// FindByID loads the invoice and its items
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)
	// FindByIdempotencyKey returns the invoice created with key, or a not-found error
	FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*Invoice, error)
	List(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter) ([]*Invoice, int64, error)
	// ListOpenByCustomer returns posted and partially paid invoices with a
	// positive balance in currency, items not loaded
	ListOpenByCustomer(ctx context.Context, tenantID, customerID uuid.UUID, currency valueobject.Currency) ([]*Invoice, error)
	Statistics(ctx context.Context, tenantID uuid.UUID) ([]InvoiceStatusSummary, error)
	Create(ctx context.Context, inv *Invoice) error
	// Update persists header changes guarded by the version
	Update(ctx context.Context, inv *Invoice) error
}

// PaymentRepository persists payments
type PaymentRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Payment, error)
	FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*Payment, error)
	Create(ctx context.Context, p *Payment) error
	Update(ctx context.Context, p *Payment) error
	// SumUnallocated totals the unallocated amounts of a customer's payments
	SumUnallocated(ctx context.Context, tenantID, customerID uuid.UUID) (decimal.Decimal, error)
}

// AllocationRepository persists payment allocations
type AllocationRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*PaymentAllocation, error)
	ListByPayment(ctx context.Context, tenantID, paymentID uuid.UUID) ([]*PaymentAllocation, error)
	ListByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]*PaymentAllocation, error)
	Create(ctx context.Context, a *PaymentAllocation) error
	Update(ctx context.Context, a *PaymentAllocation) error
}

// ReceivableFilter defines filtering options for receivable queries
type ReceivableFilter struct {
	shared.Filter
	CustomerID      *uuid.UUID
	Status          *ReceivableStatus
	OutstandingOnly bool
}

// ReceivableRepository persists the AR projection
type ReceivableRepository interface {
	FindByInvoice(ctx context.Context, tenantID, customerID, invoiceID uuid.UUID) (*Receivable, error)
	List(ctx context.Context, tenantID uuid.UUID, filter ReceivableFilter) ([]*Receivable, int64, error)
	// ListOutstanding returns every open or partial row of the tenant; a nil
	// tenant lists all tenants
	ListOutstanding(ctx context.Context, tenantID uuid.UUID) ([]*Receivable, error)
	// Save inserts a new row or updates an existing one guarded by the version
	Save(ctx context.Context, r *Receivable) error
}
