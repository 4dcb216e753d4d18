package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
// The per-tenant unique indexes on number and idempotency key live in the
// SQL migrations.
type InvoiceModel struct {
	TenantModel
	InvoiceNumber  string                `gorm:"type:varchar(50);not null;index"`
	CustomerID     uuid.UUID             `gorm:"type:uuid;not null;index"`
	Currency       string                `gorm:"type:varchar(3);not null"`
	ExchangeRate   decimal.Decimal       `gorm:"type:decimal(18,6);not null;default:1"`
	IssueDate      time.Time             `gorm:"type:date;not null;index"`
	DueDate        time.Time             `gorm:"type:date;not null"`
	Subtotal       decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	DiscountTotal  decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	TaxTotal       decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	TotalAmount    decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	BalanceDue     decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	Status         finance.InvoiceStatus `gorm:"type:varchar(20);not null;index"`
	IdempotencyKey string                `gorm:"type:varchar(255);index"`
	Notes          string                `gorm:"type:text"`
	TransactionID  *uuid.UUID            `gorm:"type:uuid"`
	CreatedBy      uuid.UUID             `gorm:"type:uuid;not null"`
	SentAt         *time.Time
	PostedAt       *time.Time
	PaidAt         *time.Time
	CancelledAt    *time.Time
	CancelReason   string             `gorm:"type:varchar(500)"`
	Items          []InvoiceItemModel `gorm:"foreignKey:InvoiceID;references:ID"`
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *finance.Invoice {
	inv := &finance.Invoice{
		TenantAggregateRoot: m.ToDomainTenantAggregateRoot(),
		InvoiceNumber:       m.InvoiceNumber,
		CustomerID:          m.CustomerID,
		Currency:            valueobject.Currency(m.Currency),
		ExchangeRate:        m.ExchangeRate,
		IssueDate:           m.IssueDate,
		DueDate:             m.DueDate,
		Subtotal:            m.Subtotal,
		DiscountTotal:       m.DiscountTotal,
		TaxTotal:            m.TaxTotal,
		TotalAmount:         m.TotalAmount,
		BalanceDue:          m.BalanceDue,
		Status:              m.Status,
		IdempotencyKey:      m.IdempotencyKey,
		Notes:               m.Notes,
		TransactionID:       m.TransactionID,
		CreatedBy:           m.CreatedBy,
		SentAt:              m.SentAt,
		PostedAt:            m.PostedAt,
		PaidAt:              m.PaidAt,
		CancelledAt:         m.CancelledAt,
		CancelReason:        m.CancelReason,
	}
	if len(m.Items) > 0 {
		inv.Items = make([]finance.InvoiceItem, len(m.Items))
		for i := range m.Items {
			inv.Items[i] = m.Items[i].ToDomain()
		}
	}
	return inv
}

// FromDomain populates the header model from a domain Invoice. Items are
// converted separately.
func (m *InvoiceModel) FromDomain(inv *finance.Invoice) {
	m.FromDomainTenantAggregateRoot(inv.TenantAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.CustomerID = inv.CustomerID
	m.Currency = inv.Currency.String()
	m.ExchangeRate = inv.ExchangeRate
	m.IssueDate = inv.IssueDate
	m.DueDate = inv.DueDate
	m.Subtotal = inv.Subtotal
	m.DiscountTotal = inv.DiscountTotal
	m.TaxTotal = inv.TaxTotal
	m.TotalAmount = inv.TotalAmount
	m.BalanceDue = inv.BalanceDue
	m.Status = inv.Status
	m.IdempotencyKey = inv.IdempotencyKey
	m.Notes = inv.Notes
	m.TransactionID = inv.TransactionID
	m.CreatedBy = inv.CreatedBy
	m.SentAt = inv.SentAt
	m.PostedAt = inv.PostedAt
	m.PaidAt = inv.PaidAt
	m.CancelledAt = inv.CancelledAt
	m.CancelReason = inv.CancelReason
}

// InvoiceModelFromDomain creates a header model from a domain Invoice
func InvoiceModelFromDomain(inv *finance.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// InvoiceItemModel is the persistence model for an invoice line
type InvoiceItemModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primary_key"`
	TenantID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	LineNo          int             `gorm:"not null"`
	Description     string          `gorm:"type:varchar(500);not null"`
	Quantity        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	DiscountAmount  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	DiscountPercent decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0"`
	TaxRate         decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Discount        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Tax             decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Total           decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// ToDomain converts the persistence model to a domain InvoiceItem
func (m *InvoiceItemModel) ToDomain() finance.InvoiceItem {
	return finance.InvoiceItem{
		ID:              m.ID,
		InvoiceID:       m.InvoiceID,
		LineNo:          m.LineNo,
		Description:     m.Description,
		Quantity:        m.Quantity,
		UnitPrice:       m.UnitPrice,
		DiscountAmount:  m.DiscountAmount,
		DiscountPercent: m.DiscountPercent,
		TaxRate:         m.TaxRate,
		Subtotal:        m.Subtotal,
		Discount:        m.Discount,
		Tax:             m.Tax,
		Total:           m.Total,
	}
}

// InvoiceItemModelsFromDomain converts the items of inv
func InvoiceItemModelsFromDomain(inv *finance.Invoice) []InvoiceItemModel {
	out := make([]InvoiceItemModel, len(inv.Items))
	for i, it := range inv.Items {
		out[i] = InvoiceItemModel{
			ID:              it.ID,
			TenantID:        inv.TenantID,
			InvoiceID:       inv.ID,
			LineNo:          it.LineNo,
			Description:     it.Description,
			Quantity:        it.Quantity,
			UnitPrice:       it.UnitPrice,
			DiscountAmount:  it.DiscountAmount,
			DiscountPercent: it.DiscountPercent,
			TaxRate:         it.TaxRate,
			Subtotal:        it.Subtotal,
			Discount:        it.Discount,
			Tax:             it.Tax,
			Total:           it.Total,
		}
	}
	return out
}

// PaymentModel is the persistence model for the Payment aggregate root
type PaymentModel struct {
	TenantModel
	PaymentNumber   string                `gorm:"type:varchar(50);not null;index"`
	CustomerID      uuid.UUID             `gorm:"type:uuid;not null;index"`
	Amount          decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	AllocatedAmount decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0"`
	Method          finance.PaymentMethod `gorm:"type:varchar(20);not null"`
	Currency        string                `gorm:"type:varchar(3);not null"`
	ExchangeRate    decimal.Decimal       `gorm:"type:decimal(18,6);not null;default:1"`
	PaymentDate     time.Time             `gorm:"type:date;not null"`
	Reference       string                `gorm:"type:varchar(100)"`
	Notes           string                `gorm:"type:text"`
	Status          finance.PaymentStatus `gorm:"type:varchar(30);not null;index"`
	IdempotencyKey  string                `gorm:"type:varchar(255);index"`
	TransactionID   *uuid.UUID            `gorm:"type:uuid"`
	RecordedBy      uuid.UUID             `gorm:"type:uuid;not null"`
}

// ToDomain converts the persistence model to a domain Payment
func (m *PaymentModel) ToDomain() *finance.Payment {
	return &finance.Payment{
		TenantAggregateRoot: m.ToDomainTenantAggregateRoot(),
		PaymentNumber:       m.PaymentNumber,
		CustomerID:          m.CustomerID,
		Amount:              m.Amount,
		AllocatedAmount:     m.AllocatedAmount,
		Method:              m.Method,
		Currency:            valueobject.Currency(m.Currency),
		ExchangeRate:        m.ExchangeRate,
		PaymentDate:         m.PaymentDate,
		Reference:           m.Reference,
		Notes:               m.Notes,
		Status:              m.Status,
		IdempotencyKey:      m.IdempotencyKey,
		TransactionID:       m.TransactionID,
		RecordedBy:          m.RecordedBy,
	}
}

// FromDomain populates the persistence model from a domain Payment
func (m *PaymentModel) FromDomain(p *finance.Payment) {
	m.FromDomainTenantAggregateRoot(p.TenantAggregateRoot)
	m.PaymentNumber = p.PaymentNumber
	m.CustomerID = p.CustomerID
	m.Amount = p.Amount
	m.AllocatedAmount = p.AllocatedAmount
	m.Method = p.Method
	m.Currency = p.Currency.String()
	m.ExchangeRate = p.ExchangeRate
	m.PaymentDate = p.PaymentDate
	m.Reference = p.Reference
	m.Notes = p.Notes
	m.Status = p.Status
	m.IdempotencyKey = p.IdempotencyKey
	m.TransactionID = p.TransactionID
	m.RecordedBy = p.RecordedBy
}

// PaymentAllocationModel is the persistence model for an allocation of a
// payment to an invoice
type PaymentAllocationModel struct {
	TenantModel
	PaymentID      uuid.UUID                `gorm:"type:uuid;not null;index"`
	InvoiceID      uuid.UUID                `gorm:"type:uuid;not null;index"`
	Amount         decimal.Decimal          `gorm:"type:decimal(18,4);not null"`
	RefundedAmount decimal.Decimal          `gorm:"type:decimal(18,4);not null;default:0"`
	AllocationDate time.Time                `gorm:"type:date;not null"`
	Notes          string                   `gorm:"type:varchar(500)"`
	Status         finance.AllocationStatus `gorm:"type:varchar(30);not null"`
	RefundReason   string                   `gorm:"type:varchar(500)"`
	CreatedBy      uuid.UUID                `gorm:"type:uuid;not null"`
}

// ToDomain converts the persistence model to a domain PaymentAllocation
func (m *PaymentAllocationModel) ToDomain() *finance.PaymentAllocation {
	return &finance.PaymentAllocation{
		TenantAggregateRoot: m.ToDomainTenantAggregateRoot(),
		PaymentID:           m.PaymentID,
		InvoiceID:           m.InvoiceID,
		Amount:              m.Amount,
		RefundedAmount:      m.RefundedAmount,
		AllocationDate:      m.AllocationDate,
		Notes:               m.Notes,
		Status:              m.Status,
		RefundReason:        m.RefundReason,
		CreatedBy:           m.CreatedBy,
	}
}

// FromDomain populates the persistence model from a domain PaymentAllocation
func (m *PaymentAllocationModel) FromDomain(a *finance.PaymentAllocation) {
	m.FromDomainTenantAggregateRoot(a.TenantAggregateRoot)
	m.PaymentID = a.PaymentID
	m.InvoiceID = a.InvoiceID
	m.Amount = a.Amount
	m.RefundedAmount = a.RefundedAmount
	m.AllocationDate = a.AllocationDate
	m.Notes = a.Notes
	m.Status = a.Status
	m.RefundReason = a.RefundReason
	m.CreatedBy = a.CreatedBy
}

// ReceivableModel is the persistence model for the accounts-receivable projection
type ReceivableModel struct {
	TenantModel
	CustomerID     uuid.UUID                                `gorm:"type:uuid;not null;uniqueIndex:idx_receivable_invoice,priority:1"`
	InvoiceID      uuid.UUID                                `gorm:"type:uuid;not null;uniqueIndex:idx_receivable_invoice,priority:2"`
	InvoiceNumber  string                                   `gorm:"type:varchar(50);not null"`
	Currency       string                                   `gorm:"type:varchar(3);not null"`
	OriginalAmount decimal.Decimal                          `gorm:"type:decimal(18,4);not null"`
	AmountDue      decimal.Decimal                          `gorm:"type:decimal(18,4);not null"`
	DueDate        time.Time                                `gorm:"type:date;not null"`
	AgingBucket    finance.AgingBucket                      `gorm:"type:varchar(10);not null"`
	Status         finance.ReceivableStatus                 `gorm:"type:varchar(20);not null;index"`
	Metadata       JSONColumn[[]finance.ReceivableLogEntry] `gorm:"type:jsonb"`
}

// ToDomain converts the persistence model to a domain Receivable
func (m *ReceivableModel) ToDomain() *finance.Receivable {
	return &finance.Receivable{
		TenantAggregateRoot: m.ToDomainTenantAggregateRoot(),
		CustomerID:          m.CustomerID,
		InvoiceID:           m.InvoiceID,
		InvoiceNumber:       m.InvoiceNumber,
		Currency:            valueobject.Currency(m.Currency),
		OriginalAmount:      m.OriginalAmount,
		AmountDue:           m.AmountDue,
		DueDate:             m.DueDate,
		AgingBucket:         m.AgingBucket,
		Status:              m.Status,
		Metadata:            m.Metadata.V,
	}
}

// FromDomain populates the persistence model from a domain Receivable
func (m *ReceivableModel) FromDomain(r *finance.Receivable) {
	m.FromDomainTenantAggregateRoot(r.TenantAggregateRoot)
	m.CustomerID = r.CustomerID
	m.InvoiceID = r.InvoiceID
	m.InvoiceNumber = r.InvoiceNumber
	m.Currency = r.Currency.String()
	m.OriginalAmount = r.OriginalAmount
	m.AmountDue = r.AmountDue
	m.DueDate = r.DueDate
	m.AgingBucket = r.AgingBucket
	m.Status = r.Status
	m.Metadata = NewJSONColumn(r.Metadata)
}
