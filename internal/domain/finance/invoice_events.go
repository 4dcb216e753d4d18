package finance

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type constants for invoice lifecycle events
const (
	EventTypeDocumentPosted        = "DocumentPosted"
	EventTypeDocumentPaid          = "DocumentPaid"
	EventTypeDocumentPartiallyPaid = "DocumentPartiallyPaid"
	EventTypeDocumentCancelled     = "DocumentCancelled"
)

// DocumentPostedEvent is raised when an invoice is posted to the ledger
type DocumentPostedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string          `json:"invoice_number"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Currency      string          `json:"currency"`
	DueDate       time.Time       `json:"due_date"`
	TransactionID uuid.UUID       `json:"transaction_id"`
}

// NewDocumentPostedEvent creates a DocumentPostedEvent
func NewDocumentPostedEvent(inv *Invoice) *DocumentPostedEvent {
	e := &DocumentPostedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentPosted, AggregateTypeInvoice, inv.ID, inv.TenantID),
		InvoiceNumber:   inv.InvoiceNumber,
		CustomerID:      inv.CustomerID,
		TotalAmount:     inv.TotalAmount,
		Currency:        inv.Currency.String(),
		DueDate:         inv.DueDate,
	}
	if inv.TransactionID != nil {
		e.TransactionID = *inv.TransactionID
	}
	return e
}

// DocumentPaidEvent is raised when an invoice's balance reaches zero
type DocumentPaidEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string          `json:"invoice_number"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaidAt        time.Time       `json:"paid_at"`
}

// NewDocumentPaidEvent creates a DocumentPaidEvent
func NewDocumentPaidEvent(inv *Invoice) *DocumentPaidEvent {
	e := &DocumentPaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentPaid, AggregateTypeInvoice, inv.ID, inv.TenantID),
		InvoiceNumber:   inv.InvoiceNumber,
		CustomerID:      inv.CustomerID,
		TotalAmount:     inv.TotalAmount,
	}
	if inv.PaidAt != nil {
		e.PaidAt = *inv.PaidAt
	}
	return e
}

// DocumentPartiallyPaidEvent is raised when an allocation or a refund changes
// the balance without settling the invoice. Change is negative for payments
// and positive for refunds.
type DocumentPartiallyPaidEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string          `json:"invoice_number"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	Change        decimal.Decimal `json:"change"`
	BalanceDue    decimal.Decimal `json:"balance_due"`
}

// NewDocumentPartiallyPaidEvent creates a DocumentPartiallyPaidEvent
func NewDocumentPartiallyPaidEvent(inv *Invoice, change decimal.Decimal) *DocumentPartiallyPaidEvent {
	return &DocumentPartiallyPaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentPartiallyPaid, AggregateTypeInvoice, inv.ID, inv.TenantID),
		InvoiceNumber:   inv.InvoiceNumber,
		CustomerID:      inv.CustomerID,
		Change:          change,
		BalanceDue:      inv.BalanceDue,
	}
}

// DocumentCancelledEvent is raised when an invoice is cancelled
type DocumentCancelledEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber  string        `json:"invoice_number"`
	CustomerID     uuid.UUID     `json:"customer_id"`
	PreviousStatus InvoiceStatus `json:"previous_status"`
	Reason         string        `json:"reason"`
	TransactionID  *uuid.UUID    `json:"transaction_id,omitempty"`
}

// NewDocumentCancelledEvent creates a DocumentCancelledEvent
func NewDocumentCancelledEvent(inv *Invoice, previous InvoiceStatus) *DocumentCancelledEvent {
	return &DocumentCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentCancelled, AggregateTypeInvoice, inv.ID, inv.TenantID),
		InvoiceNumber:   inv.InvoiceNumber,
		CustomerID:      inv.CustomerID,
		PreviousStatus:  previous,
		Reason:          inv.CancelReason,
		TransactionID:   inv.TransactionID,
	}
}
