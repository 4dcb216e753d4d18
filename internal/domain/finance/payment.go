package finance

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypePayment is the aggregate type of payments
const AggregateTypePayment = "Payment"

// PaymentMethod is how the customer paid
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCheck        PaymentMethod = "check"
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodOther        PaymentMethod = "other"
)

// IsValid checks if the payment method is valid
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodCheck,
		PaymentMethodCreditCard, PaymentMethodOther:
		return true
	}
	return false
}

// PaymentStatus tracks how much of a payment has been allocated
type PaymentStatus string

const (
	PaymentStatusUnallocated        PaymentStatus = "unallocated"
	PaymentStatusPartiallyAllocated PaymentStatus = "partially_allocated"
	PaymentStatusAllocated          PaymentStatus = "allocated"
)

// Payment is cash received from a customer. The net amount of its
// allocations never exceeds Amount.
type Payment struct {
	shared.TenantAggregateRoot
	PaymentNumber   string
	CustomerID      uuid.UUID
	Amount          decimal.Decimal
	AllocatedAmount decimal.Decimal
	Method          PaymentMethod
	Currency        valueobject.Currency
	ExchangeRate    decimal.Decimal
	PaymentDate     time.Time
	Reference       string
	Notes           string
	Status          PaymentStatus
	IdempotencyKey  string
	TransactionID   *uuid.UUID
	RecordedBy      uuid.UUID
}

// NewPaymentInput carries the fields of a new payment
type NewPaymentInput struct {
	TenantID       uuid.UUID
	CustomerID     uuid.UUID
	Amount         decimal.Decimal
	Method         PaymentMethod
	Currency       valueobject.Currency
	ExchangeRate   decimal.Decimal
	PaymentDate    time.Time
	Reference      string
	Notes          string
	IdempotencyKey string
	RecordedBy     uuid.UUID
}

// NewPayment records an unallocated payment
func NewPayment(in NewPaymentInput) (*Payment, error) {
	if in.CustomerID == uuid.Nil {
		return nil, shared.NewValidationError("customer is required")
	}
	currency := in.Currency
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	amount := currency.Round(in.Amount)
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("payment amount must be positive")
	}
	if !in.Method.IsValid() {
		return nil, shared.NewValidationError("invalid payment method %q", in.Method)
	}
	rate := in.ExchangeRate
	if rate.IsZero() {
		rate = decimal.NewFromInt(1)
	}
	if !rate.IsPositive() {
		return nil, shared.NewValidationError("exchange rate must be positive")
	}
	date := in.PaymentDate
	if date.IsZero() {
		date = time.Now()
	}
	date = truncateDate(date)

	p := &Payment{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(in.TenantID),
		CustomerID:          in.CustomerID,
		Amount:              amount,
		AllocatedAmount:     decimal.Zero,
		Method:              in.Method,
		Currency:            currency,
		ExchangeRate:        rate,
		PaymentDate:         date,
		Reference:           strings.TrimSpace(in.Reference),
		Notes:               strings.TrimSpace(in.Notes),
		Status:              PaymentStatusUnallocated,
		IdempotencyKey:      strings.TrimSpace(in.IdempotencyKey),
		RecordedBy:          in.RecordedBy,
	}
	p.PaymentNumber = fmt.Sprintf("PAY-%s-%s", date.Format("20060102"), strings.ToUpper(p.ID.String()[:8]))
	return p, nil
}

// Unallocated returns the amount still available for allocation
func (p *Payment) Unallocated() decimal.Decimal {
	return p.Amount.Sub(p.AllocatedAmount)
}

// SetTransaction links the ledger posting of the cash receipt
func (p *Payment) SetTransaction(id uuid.UUID) {
	p.TransactionID = &id
	p.Touch()
}

func (p *Payment) reserve(amount decimal.Decimal) error {
	if amount.GreaterThan(p.Unallocated()) {
		return shared.NewOverAllocationError("amount %s exceeds unallocated %s of payment %s",
			amount, p.Unallocated(), p.PaymentNumber)
	}
	p.AllocatedAmount = p.AllocatedAmount.Add(amount)
	p.refreshStatus()
	return nil
}

func (p *Payment) release(amount decimal.Decimal) error {
	if amount.GreaterThan(p.AllocatedAmount) {
		return shared.NewOverAllocationError("cannot release %s from payment %s with %s allocated",
			amount, p.PaymentNumber, p.AllocatedAmount)
	}
	p.AllocatedAmount = p.AllocatedAmount.Sub(amount)
	p.refreshStatus()
	return nil
}

func (p *Payment) refreshStatus() {
	switch {
	case p.AllocatedAmount.IsZero():
		p.Status = PaymentStatusUnallocated
	case p.AllocatedAmount.Equal(p.Amount):
		p.Status = PaymentStatusAllocated
	default:
		p.Status = PaymentStatusPartiallyAllocated
	}
	p.Touch()
}

// AllocationStatus tracks refunds against an allocation
type AllocationStatus string

const (
	AllocationStatusActive            AllocationStatus = "active"
	AllocationStatusPartiallyRefunded AllocationStatus = "partially_refunded"
	AllocationStatusRefunded          AllocationStatus = "refunded"
)

// PaymentAllocation applies part of a payment to one invoice
type PaymentAllocation struct {
	shared.TenantAggregateRoot
	PaymentID      uuid.UUID
	InvoiceID      uuid.UUID
	Amount         decimal.Decimal
	RefundedAmount decimal.Decimal
	AllocationDate time.Time
	Notes          string
	Status         AllocationStatus
	RefundReason   string
	CreatedBy      uuid.UUID
}

// NetAmount returns the allocated amount not yet refunded
func (a *PaymentAllocation) NetAmount() decimal.Decimal {
	return a.Amount.Sub(a.RefundedAmount)
}

func (a *PaymentAllocation) refund(amount decimal.Decimal, reason string) error {
	if !amount.IsPositive() {
		return shared.NewValidationError("refund amount must be positive")
	}
	if amount.GreaterThan(a.NetAmount()) {
		return shared.NewOverAllocationError("refund %s exceeds unrefunded amount %s", amount, a.NetAmount())
	}
	a.RefundedAmount = a.RefundedAmount.Add(amount)
	a.RefundReason = strings.TrimSpace(reason)
	if a.NetAmount().IsZero() {
		a.Status = AllocationStatusRefunded
	} else {
		a.Status = AllocationStatusPartiallyRefunded
	}
	a.Touch()
	return nil
}

// AllocateInput describes a single allocation request
type AllocateInput struct {
	Amount    decimal.Decimal
	Date      time.Time
	Notes     string
	CreatedBy uuid.UUID
}

// Allocate applies amount of payment to invoice. The invoice balance, the
// payment's allocated amount and the new allocation change together or not at
// all.
func Allocate(payment *Payment, invoice *Invoice, in AllocateInput) (*PaymentAllocation, error) {
	if payment.TenantID != invoice.TenantID {
		return nil, shared.NewNotFoundError("invoice")
	}
	if !in.Amount.IsPositive() {
		return nil, shared.NewValidationError("allocation amount must be positive")
	}
	if !invoice.Status.AcceptsPayment() {
		return nil, shared.NewInvalidStateError("invoice %s is %s and cannot receive payments", invoice.InvoiceNumber, invoice.Status)
	}
	if payment.CustomerID != invoice.CustomerID {
		return nil, shared.NewValidationError("payment %s and invoice %s belong to different customers",
			payment.PaymentNumber, invoice.InvoiceNumber)
	}
	if payment.Currency != invoice.Currency {
		return nil, shared.NewValidationError("payment currency %s does not match invoice currency %s",
			payment.Currency, invoice.Currency)
	}
	amount := invoice.Currency.Round(in.Amount)
	if amount.GreaterThan(payment.Unallocated()) {
		return nil, shared.NewOverAllocationError("amount %s exceeds unallocated %s of payment %s",
			amount, payment.Unallocated(), payment.PaymentNumber)
	}
	if amount.GreaterThan(invoice.BalanceDue) {
		return nil, shared.NewOverAllocationError("amount %s exceeds balance due %s of invoice %s",
			amount, invoice.BalanceDue, invoice.InvoiceNumber)
	}

	if err := invoice.ApplyPayment(amount); err != nil {
		return nil, err
	}
	if err := payment.reserve(amount); err != nil {
		return nil, err
	}

	date := in.Date
	if date.IsZero() {
		date = time.Now()
	}
	return &PaymentAllocation{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(payment.TenantID),
		PaymentID:           payment.ID,
		InvoiceID:           invoice.ID,
		Amount:              amount,
		RefundedAmount:      decimal.Zero,
		AllocationDate:      truncateDate(date),
		Notes:               strings.TrimSpace(in.Notes),
		Status:              AllocationStatusActive,
		CreatedBy:           in.CreatedBy,
	}, nil
}

// RefundAllocation reverses amount of an allocation: the invoice balance is
// restored and the payment regains the amount as unallocated. No cash moves.
func RefundAllocation(alloc *PaymentAllocation, payment *Payment, invoice *Invoice, amount decimal.Decimal, reason string) error {
	if alloc.PaymentID != payment.ID || alloc.InvoiceID != invoice.ID {
		return shared.NewValidationError("allocation does not link this payment and invoice")
	}
	amount = invoice.Currency.Round(amount)
	if err := alloc.refund(amount, reason); err != nil {
		return err
	}
	if err := invoice.RestorePayment(amount); err != nil {
		return err
	}
	return payment.release(amount)
}
