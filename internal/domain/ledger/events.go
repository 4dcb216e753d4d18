package ledger

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type constants for journal entries
const (
	EventTypeTransactionPosted = "TransactionPosted"
	EventTypeTransactionVoided = "TransactionVoided"
)

// TransactionPostedEvent is raised when a journal entry is posted
type TransactionPostedEvent struct {
	shared.BaseDomainEvent
	EntryNumber string          `json:"entry_number"`
	Date        time.Time       `json:"date"`
	PeriodID    uuid.UUID       `json:"period_id"`
	Currency    string          `json:"currency"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	SourceType  string          `json:"source_type,omitempty"`
	SourceID    *uuid.UUID      `json:"source_id,omitempty"`
}

// NewTransactionPostedEvent creates a TransactionPostedEvent
func NewTransactionPostedEvent(t *Transaction) *TransactionPostedEvent {
	e := &TransactionPostedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTransactionPosted, AggregateTypeJournalEntry, t.ID, t.TenantID),
		EntryNumber:     t.EntryNumber,
		Date:            t.Date,
		Currency:        t.Currency.String(),
		TotalDebit:      t.TotalDebit,
		TotalCredit:     t.TotalCredit,
	}
	if t.PeriodID != nil {
		e.PeriodID = *t.PeriodID
	}
	if t.Source != nil {
		e.SourceType = t.Source.Type
		id := t.Source.ID
		e.SourceID = &id
	}
	return e
}

// TransactionVoidedEvent is raised when a posted journal entry is voided
type TransactionVoidedEvent struct {
	shared.BaseDomainEvent
	EntryNumber string          `json:"entry_number"`
	Reason      string          `json:"reason"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	VoidedBy    uuid.UUID       `json:"voided_by"`
}

// NewTransactionVoidedEvent creates a TransactionVoidedEvent
func NewTransactionVoidedEvent(t *Transaction) *TransactionVoidedEvent {
	e := &TransactionVoidedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTransactionVoided, AggregateTypeJournalEntry, t.ID, t.TenantID),
		EntryNumber:     t.EntryNumber,
		Reason:          t.VoidReason,
		TotalDebit:      t.TotalDebit,
	}
	if t.VoidedBy != nil {
		e.VoidedBy = *t.VoidedBy
	}
	return e
}
