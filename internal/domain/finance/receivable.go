package finance

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AgingBucket groups receivables by days past due
type AgingBucket string

const (
	AgingCurrent AgingBucket = "current"
	Aging1To30   AgingBucket = "1-30"
	Aging31To60  AgingBucket = "31-60"
	Aging61To90  AgingBucket = "61-90"
	AgingOver90  AgingBucket = "90+"
)

// AllAgingBuckets lists the buckets in ascending age
func AllAgingBuckets() []AgingBucket {
	return []AgingBucket{AgingCurrent, Aging1To30, Aging31To60, Aging61To90, AgingOver90}
}

// AgingBucketFor returns the bucket of a receivable due on dueDate, as seen
// on asOf. Not yet due counts as current.
func AgingBucketFor(dueDate, asOf time.Time) AgingBucket {
	days := int(truncateDate(asOf).Sub(truncateDate(dueDate)).Hours() / 24)
	switch {
	case days <= 0:
		return AgingCurrent
	case days <= 30:
		return Aging1To30
	case days <= 60:
		return Aging31To60
	case days <= 90:
		return Aging61To90
	default:
		return AgingOver90
	}
}

// ReceivableStatus is the state of an AR projection row
type ReceivableStatus string

const (
	ReceivableStatusOpen      ReceivableStatus = "open"
	ReceivableStatusPartial   ReceivableStatus = "partial"
	ReceivableStatusPaid      ReceivableStatus = "paid"
	ReceivableStatusCancelled ReceivableStatus = "cancelled"
)

// IsOutstanding reports whether money is still owed
func (s ReceivableStatus) IsOutstanding() bool {
	return s == ReceivableStatusOpen || s == ReceivableStatusPartial
}

// receivableStatusOf maps an invoice status onto the projection. Invoices
// that were never posted have no receivable.
func receivableStatusOf(s InvoiceStatus) (ReceivableStatus, bool) {
	switch s {
	case InvoiceStatusPosted:
		return ReceivableStatusOpen, true
	case InvoiceStatusPartiallyPaid:
		return ReceivableStatusPartial, true
	case InvoiceStatusPaid:
		return ReceivableStatusPaid, true
	case InvoiceStatusCancelled:
		return ReceivableStatusCancelled, true
	}
	return "", false
}

// ReceivableLogEntry records one state transition of a receivable
type ReceivableLogEntry struct {
	At        time.Time        `json:"at"`
	Event     string           `json:"event"`
	From      ReceivableStatus `json:"from,omitempty"`
	To        ReceivableStatus `json:"to"`
	AmountDue decimal.Decimal  `json:"amount_due"`
	Note      string           `json:"note,omitempty"`
}

// Receivable is the accounts-receivable projection of one invoice. It is a
// derived read model and never feeds the double-entry ledger.
type Receivable struct {
	shared.TenantAggregateRoot
	CustomerID     uuid.UUID
	InvoiceID      uuid.UUID
	InvoiceNumber  string
	Currency       valueobject.Currency
	OriginalAmount decimal.Decimal
	AmountDue      decimal.Decimal
	DueDate        time.Time
	AgingBucket    AgingBucket
	Status         ReceivableStatus
	Metadata       []ReceivableLogEntry
}

// ProjectReceivable derives the receivable of inv as of asOf. existing may be
// nil. It returns the row to store and whether anything changed; an unchanged
// row must not be written again. A cancelled invoice with no existing row
// yields (nil, false).
func ProjectReceivable(existing *Receivable, inv *Invoice, event, note string, asOf time.Time) (*Receivable, bool) {
	status, ok := receivableStatusOf(inv.Status)
	if !ok {
		return existing, false
	}
	// An invoice cancelled before posting never had a receivable.
	if existing == nil && status == ReceivableStatusCancelled {
		return nil, false
	}

	amountDue := inv.BalanceDue
	if status == ReceivableStatusCancelled {
		amountDue = decimal.Zero
	}
	bucket := AgingCurrent
	if status.IsOutstanding() {
		bucket = AgingBucketFor(inv.DueDate, asOf)
	}

	r := existing
	if r == nil {
		r = &Receivable{
			TenantAggregateRoot: shared.NewTenantAggregateRoot(inv.TenantID),
			CustomerID:          inv.CustomerID,
			InvoiceID:           inv.ID,
		}
	}

	transition := existing == nil || r.Status != status || !r.AmountDue.Equal(amountDue)
	changed := transition ||
		r.AgingBucket != bucket ||
		!r.OriginalAmount.Equal(inv.TotalAmount) ||
		!r.DueDate.Equal(inv.DueDate) ||
		r.InvoiceNumber != inv.InvoiceNumber
	if !changed {
		return r, false
	}

	if transition {
		r.Metadata = append(r.Metadata, ReceivableLogEntry{
			At:        asOf,
			Event:     event,
			From:      r.Status,
			To:        status,
			AmountDue: amountDue,
			Note:      note,
		})
	}
	r.InvoiceNumber = inv.InvoiceNumber
	r.Currency = inv.Currency
	r.OriginalAmount = inv.TotalAmount
	r.AmountDue = amountDue
	r.DueDate = inv.DueDate
	r.AgingBucket = bucket
	r.Status = status
	r.UpdatedAt = asOf
	return r, true
}

// RefreshAging recomputes the bucket as of asOf and reports a change
func (r *Receivable) RefreshAging(asOf time.Time) bool {
	bucket := AgingCurrent
	if r.Status.IsOutstanding() {
		bucket = AgingBucketFor(r.DueDate, asOf)
	}
	if bucket == r.AgingBucket {
		return false
	}
	r.AgingBucket = bucket
	r.UpdatedAt = asOf
	return true
}

// AgingSummary totals outstanding receivables per bucket
type AgingSummary struct {
	AsOf    time.Time
	Buckets map[AgingBucket]decimal.Decimal
	Counts  map[AgingBucket]int
	Total   decimal.Decimal
}

// SummarizeAging groups outstanding rows by bucket, recomputed from their due
// dates as of asOf rather than trusting the stored bucket.
func SummarizeAging(rows []*Receivable, asOf time.Time) AgingSummary {
	s := AgingSummary{
		AsOf:    asOf,
		Buckets: make(map[AgingBucket]decimal.Decimal, 5),
		Counts:  make(map[AgingBucket]int, 5),
		Total:   decimal.Zero,
	}
	for _, b := range AllAgingBuckets() {
		s.Buckets[b] = decimal.Zero
	}
	for _, r := range rows {
		if !r.Status.IsOutstanding() {
			continue
		}
		b := AgingBucketFor(r.DueDate, asOf)
		s.Buckets[b] = s.Buckets[b].Add(r.AmountDue)
		s.Counts[b]++
		s.Total = s.Total.Add(r.AmountDue)
	}
	return s
}
