package finance

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeInvoice is the aggregate type of invoices
const AggregateTypeInvoice = "Invoice"

// DefaultPaymentTermsDays is used to derive a due date when none is given
const DefaultPaymentTermsDays = 30

// InvoiceStatus represents the lifecycle state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "draft"
	InvoiceStatusSent          InvoiceStatus = "sent"
	InvoiceStatusPosted        InvoiceStatus = "posted"
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusCancelled     InvoiceStatus = "cancelled"
)

// IsValid checks if the status is valid
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPosted,
		InvoiceStatusPartiallyPaid, InvoiceStatusPaid, InvoiceStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of the status
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no further transition is possible
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusCancelled
}

// AcceptsPayment returns true if payments can be allocated to the invoice
func (s InvoiceStatus) AcceptsPayment() bool {
	return s == InvoiceStatusPosted || s == InvoiceStatusPartiallyPaid
}

// InvoiceItemInput describes one requested invoice line
type InvoiceItemInput struct {
	Description     string
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	DiscountAmount  decimal.Decimal
	DiscountPercent decimal.Decimal
	TaxRate         decimal.Decimal
}

// InvoiceItem is a priced invoice line. Computed amounts are rounded to the
// invoice currency.
type InvoiceItem struct {
	ID              uuid.UUID
	InvoiceID       uuid.UUID
	LineNo          int
	Description     string
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	DiscountAmount  decimal.Decimal
	DiscountPercent decimal.Decimal
	TaxRate         decimal.Decimal
	Subtotal        decimal.Decimal
	Discount        decimal.Decimal
	Tax             decimal.Decimal
	Total           decimal.Decimal
}

func newInvoiceItem(invoiceID uuid.UUID, lineNo int, in InvoiceItemInput, currency valueobject.Currency) (InvoiceItem, error) {
	hundred := decimal.NewFromInt(100)
	desc := strings.TrimSpace(in.Description)
	switch {
	case desc == "":
		return InvoiceItem{}, shared.NewValidationError("item %d: description is required", lineNo)
	case !in.Quantity.IsPositive():
		return InvoiceItem{}, shared.NewValidationError("item %d: quantity must be positive", lineNo)
	case in.UnitPrice.IsNegative():
		return InvoiceItem{}, shared.NewValidationError("item %d: unit price cannot be negative", lineNo)
	case in.DiscountAmount.IsNegative():
		return InvoiceItem{}, shared.NewValidationError("item %d: discount cannot be negative", lineNo)
	case in.DiscountPercent.IsNegative() || in.DiscountPercent.GreaterThan(hundred):
		return InvoiceItem{}, shared.NewValidationError("item %d: discount percent must be between 0 and 100", lineNo)
	case in.TaxRate.IsNegative() || in.TaxRate.GreaterThan(hundred):
		return InvoiceItem{}, shared.NewValidationError("item %d: tax rate must be between 0 and 100", lineNo)
	case in.DiscountAmount.IsPositive() && in.DiscountPercent.IsPositive():
		return InvoiceItem{}, shared.NewValidationError("item %d: give either a discount amount or a discount percent", lineNo)
	}

	item := InvoiceItem{
		ID:              uuid.New(),
		InvoiceID:       invoiceID,
		LineNo:          lineNo,
		Description:     desc,
		Quantity:        in.Quantity,
		UnitPrice:       in.UnitPrice,
		DiscountAmount:  in.DiscountAmount,
		DiscountPercent: in.DiscountPercent,
		TaxRate:         in.TaxRate,
	}
	item.Subtotal = currency.Round(in.Quantity.Mul(in.UnitPrice))
	item.Discount = currency.Round(in.DiscountAmount)
	if in.DiscountPercent.IsPositive() {
		item.Discount = currency.Round(valueobject.Percent(item.Subtotal, in.DiscountPercent))
	}
	if item.Discount.GreaterThan(item.Subtotal) {
		return InvoiceItem{}, shared.NewValidationError("item %d: discount %s exceeds line amount %s", lineNo, item.Discount, item.Subtotal)
	}
	item.Tax = currency.Round(valueobject.Percent(item.Subtotal.Sub(item.Discount), in.TaxRate))
	item.Total = item.Subtotal.Sub(item.Discount).Add(item.Tax)
	return item, nil
}

// Invoice is a customer invoice aggregate root. BalanceDue stays within
// [0, TotalAmount] and the status never returns to draft.
type Invoice struct {
	shared.TenantAggregateRoot
	InvoiceNumber  string
	CustomerID     uuid.UUID
	Currency       valueobject.Currency
	ExchangeRate   decimal.Decimal
	IssueDate      time.Time
	DueDate        time.Time
	Items          []InvoiceItem
	Subtotal       decimal.Decimal
	DiscountTotal  decimal.Decimal
	TaxTotal       decimal.Decimal
	TotalAmount    decimal.Decimal
	BalanceDue     decimal.Decimal
	Status         InvoiceStatus
	IdempotencyKey string
	Notes          string
	TransactionID  *uuid.UUID
	CreatedBy      uuid.UUID
	SentAt         *time.Time
	PostedAt       *time.Time
	PaidAt         *time.Time
	CancelledAt    *time.Time
	CancelReason   string
}

// NewInvoiceInput carries the fields of a new invoice
type NewInvoiceInput struct {
	TenantID         uuid.UUID
	CustomerID       uuid.UUID
	Currency         valueobject.Currency
	ExchangeRate     decimal.Decimal
	IssueDate        time.Time
	DueDate          *time.Time
	PaymentTermsDays int
	Items            []InvoiceItemInput
	Notes            string
	IdempotencyKey   string
	CreatedBy        uuid.UUID
}

// NewInvoice creates a draft invoice and computes its totals. A zero total is
// accepted here and rejected only when posting.
func NewInvoice(in NewInvoiceInput) (*Invoice, error) {
	if in.CustomerID == uuid.Nil {
		return nil, shared.NewValidationError("customer is required")
	}
	if len(in.Items) == 0 {
		return nil, shared.NewValidationError("an invoice needs at least one item")
	}
	currency := in.Currency
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	rate := in.ExchangeRate
	if rate.IsZero() {
		rate = decimal.NewFromInt(1)
	}
	if !rate.IsPositive() {
		return nil, shared.NewValidationError("exchange rate must be positive")
	}
	issue := in.IssueDate
	if issue.IsZero() {
		issue = time.Now()
	}
	issue = truncateDate(issue)

	var due time.Time
	if in.DueDate != nil {
		due = truncateDate(*in.DueDate)
	} else {
		terms := in.PaymentTermsDays
		if terms <= 0 {
			terms = DefaultPaymentTermsDays
		}
		due = issue.AddDate(0, 0, terms)
	}
	if due.Before(issue) {
		return nil, shared.NewValidationError("due date cannot be before issue date")
	}

	inv := &Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(in.TenantID),
		CustomerID:          in.CustomerID,
		Currency:            currency,
		ExchangeRate:        rate,
		IssueDate:           issue,
		DueDate:             due,
		Status:              InvoiceStatusDraft,
		IdempotencyKey:      strings.TrimSpace(in.IdempotencyKey),
		Notes:               strings.TrimSpace(in.Notes),
		CreatedBy:           in.CreatedBy,
	}
	inv.InvoiceNumber = fmt.Sprintf("INV-%s-%s", issue.Format("20060102"), strings.ToUpper(inv.ID.String()[:8]))

	for i, itemIn := range in.Items {
		item, err := newInvoiceItem(inv.ID, i+1, itemIn, currency)
		if err != nil {
			return nil, err
		}
		inv.Items = append(inv.Items, item)
	}
	inv.recalculate()
	return inv, nil
}

// recalculate derives header totals from the items:
// total = Σ(quantity × unit price) − discounts + taxes.
func (inv *Invoice) recalculate() {
	inv.Subtotal, inv.DiscountTotal, inv.TaxTotal = decimal.Zero, decimal.Zero, decimal.Zero
	for _, item := range inv.Items {
		inv.Subtotal = inv.Subtotal.Add(item.Subtotal)
		inv.DiscountTotal = inv.DiscountTotal.Add(item.Discount)
		inv.TaxTotal = inv.TaxTotal.Add(item.Tax)
	}
	inv.TotalAmount = inv.Subtotal.Sub(inv.DiscountTotal).Add(inv.TaxTotal)
	inv.BalanceDue = inv.TotalAmount
}

// PaidAmount returns the amount settled by allocations
func (inv *Invoice) PaidAmount() decimal.Decimal {
	if inv.Status == InvoiceStatusCancelled {
		return decimal.Zero
	}
	return inv.TotalAmount.Sub(inv.BalanceDue)
}

// HasPayments reports whether any amount has been allocated
func (inv *Invoice) HasPayments() bool {
	return inv.BalanceDue.LessThan(inv.TotalAmount)
}

// IsOverdue reports whether the invoice is unpaid past its due date
func (inv *Invoice) IsOverdue(asOf time.Time) bool {
	if !inv.Status.AcceptsPayment() {
		return false
	}
	return truncateDate(asOf).After(inv.DueDate)
}

// Send marks a draft invoice as sent to the customer
func (inv *Invoice) Send() error {
	if inv.Status != InvoiceStatusDraft {
		return shared.NewInvalidStateError("cannot send invoice in %s status", inv.Status)
	}
	now := time.Now()
	inv.Status = InvoiceStatusSent
	inv.SentAt = &now
	inv.UpdatedAt = now
	return nil
}

// CanPost checks whether the invoice may be posted on today
func (inv *Invoice) CanPost(today time.Time) error {
	if inv.Status != InvoiceStatusSent {
		return shared.NewInvalidStateError("only sent invoices can be posted, invoice is %s", inv.Status)
	}
	if !inv.TotalAmount.IsPositive() {
		return shared.NewInvalidStateError("cannot post invoice %s with zero total", inv.InvoiceNumber)
	}
	if inv.IssueDate.After(truncateDate(today)) {
		return shared.NewInvalidStateError("cannot post invoice %s dated in the future (%s)",
			inv.InvoiceNumber, inv.IssueDate.Format("2006-01-02"))
	}
	return nil
}

// Post records the ledger transaction backing the invoice and opens its
// balance.
func (inv *Invoice) Post(transactionID uuid.UUID, today time.Time) error {
	if err := inv.CanPost(today); err != nil {
		return err
	}
	now := time.Now()
	inv.Status = InvoiceStatusPosted
	inv.TransactionID = &transactionID
	inv.BalanceDue = inv.TotalAmount
	inv.PostedAt = &now
	inv.UpdatedAt = now

	inv.AddDomainEvent(NewDocumentPostedEvent(inv))
	return nil
}

// CanCancel checks whether the invoice may be cancelled. Any allocated
// payment blocks cancellation.
func (inv *Invoice) CanCancel() error {
	switch inv.Status {
	case InvoiceStatusDraft, InvoiceStatusSent:
		return nil
	case InvoiceStatusPosted:
		if inv.HasPayments() {
			return shared.NewInvalidStateError("invoice %s has allocated payments", inv.InvoiceNumber)
		}
		return nil
	default:
		return shared.NewInvalidStateError("cannot cancel invoice in %s status", inv.Status)
	}
}

// Cancel cancels the invoice. The caller voids the ledger transaction of a
// posted invoice in the same unit of work.
func (inv *Invoice) Cancel(reason string) error {
	if err := inv.CanCancel(); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) > 500 {
		return shared.NewValidationError("cancel reason cannot exceed 500 characters")
	}

	previous := inv.Status
	now := time.Now()
	inv.Status = InvoiceStatusCancelled
	inv.BalanceDue = decimal.Zero
	inv.CancelledAt = &now
	inv.CancelReason = reason
	inv.UpdatedAt = now

	inv.AddDomainEvent(NewDocumentCancelledEvent(inv, previous))
	return nil
}

// WasPosted reports whether the invoice has a ledger transaction
func (inv *Invoice) WasPosted() bool {
	return inv.TransactionID != nil
}

// ApplyPayment reduces the balance due by amount
func (inv *Invoice) ApplyPayment(amount decimal.Decimal) error {
	if !inv.Status.AcceptsPayment() {
		return shared.NewInvalidStateError("cannot apply payment to invoice in %s status", inv.Status)
	}
	if !amount.IsPositive() {
		return shared.NewValidationError("payment amount must be positive")
	}
	if amount.GreaterThan(inv.BalanceDue) {
		return shared.NewOverAllocationError("amount %s exceeds balance due %s of invoice %s",
			amount, inv.BalanceDue, inv.InvoiceNumber)
	}

	now := time.Now()
	inv.BalanceDue = inv.BalanceDue.Sub(amount)
	inv.UpdatedAt = now
	if inv.BalanceDue.IsZero() {
		inv.Status = InvoiceStatusPaid
		inv.PaidAt = &now
		inv.AddDomainEvent(NewDocumentPaidEvent(inv))
		return nil
	}
	inv.Status = InvoiceStatusPartiallyPaid
	inv.AddDomainEvent(NewDocumentPartiallyPaidEvent(inv, amount.Neg()))
	return nil
}

// RestorePayment raises the balance due by a refunded amount. A fully
// restored invoice returns to posted.
func (inv *Invoice) RestorePayment(amount decimal.Decimal) error {
	if inv.Status != InvoiceStatusPartiallyPaid && inv.Status != InvoiceStatusPaid {
		return shared.NewInvalidStateError("cannot restore payment on invoice in %s status", inv.Status)
	}
	if !amount.IsPositive() {
		return shared.NewValidationError("refund amount must be positive")
	}
	restored := inv.BalanceDue.Add(amount)
	if restored.GreaterThan(inv.TotalAmount) {
		return shared.NewOverAllocationError("refund of %s would raise balance due above total %s", amount, inv.TotalAmount)
	}

	inv.BalanceDue = restored
	inv.PaidAt = nil
	inv.UpdatedAt = time.Now()
	if restored.Equal(inv.TotalAmount) {
		inv.Status = InvoiceStatusPosted
	} else {
		inv.Status = InvoiceStatusPartiallyPaid
	}
	inv.AddDomainEvent(NewDocumentPartiallyPaidEvent(inv, amount))
	return nil
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
