package ledger

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

// AggregateTypeJournalEntry is the aggregate type of transactions
const AggregateTypeJournalEntry = "JournalEntry"

// DefaultBalanceEpsilon is the tolerance applied when comparing raw debit and
// credit sums.
var DefaultBalanceEpsilon = decimal.RequireFromString("0.005")

// TransactionStatus is the lifecycle state of a journal entry
type TransactionStatus string

const (
	TransactionStatusDraft  TransactionStatus = "draft"
	TransactionStatusPosted TransactionStatus = "posted"
	TransactionStatusVoided TransactionStatus = "voided"
)

// IsValid checks if the status is valid
func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionStatusDraft, TransactionStatusPosted, TransactionStatusVoided:
		return true
	}
	return false
}

// LineInput is the caller's description of one journal line
type LineInput struct {
	AccountID   uuid.UUID
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
	Tags        map[string]string
}

// JournalLine is one immutable side of a journal entry
type JournalLine struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	LineNo        int
	AccountID     uuid.UUID
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	Description   string
	Tags          map[string]string
}

// Side returns the populated side of the line
func (l JournalLine) Side() Side {
	if l.Debit.IsPositive() {
		return SideDebit
	}
	return SideCredit
}

// Amount returns the populated amount of the line
func (l JournalLine) Amount() decimal.Decimal {
	if l.Debit.IsPositive() {
		return l.Debit
	}
	return l.Credit
}

// SourceRef links a transaction to the document that produced it
type SourceRef struct {
	Type string
	ID   uuid.UUID
}

// Transaction is a journal entry header with its lines
type Transaction struct {
	shared.TenantAggregateRoot
	EntryNumber  string
	Date         time.Time
	PostingDate  *time.Time
	PeriodID     *uuid.UUID
	Currency     valueobject.Currency
	ExchangeRate decimal.Decimal
	Description  string
	Source       *SourceRef
	TotalDebit   decimal.Decimal
	TotalCredit  decimal.Decimal
	Status       TransactionStatus
	CreatedBy    uuid.UUID
	PostedBy     *uuid.UUID
	PostedAt     *time.Time
	VoidedBy     *uuid.UUID
	VoidedAt     *time.Time
	VoidReason   string
	Lines        []JournalLine
}

// NewDraftTransaction validates the lines and builds a draft journal entry.
// Line amounts are rounded to the currency's minor unit.
func NewDraftTransaction(
	tenantID, createdBy uuid.UUID,
	date time.Time,
	currency valueobject.Currency,
	exchangeRate decimal.Decimal,
	description string,
	lines []LineInput,
) (*Transaction, error) {
	if date.IsZero() {
		return nil, shared.NewValidationError("transaction date is required")
	}
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	if exchangeRate.IsZero() {
		exchangeRate = decimal.NewFromInt(1)
	}
	if !exchangeRate.IsPositive() {
		return nil, shared.NewValidationError("exchange rate must be positive")
	}
	if len(lines) < 2 {
		return nil, shared.NewValidationError("a journal entry needs at least two lines, got %d", len(lines))
	}

	t := &Transaction{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Date:                TruncateDate(date),
		Currency:            currency,
		ExchangeRate:        exchangeRate,
		Description:         strings.TrimSpace(description),
		Status:              TransactionStatusDraft,
		CreatedBy:           createdBy,
		Lines:               make([]JournalLine, 0, len(lines)),
	}
	t.EntryNumber = fmt.Sprintf("JE-%s-%s", t.Date.Format("20060102"), strings.ToUpper(t.ID.String()[:8]))

	for i, in := range lines {
		if in.AccountID == uuid.Nil {
			return nil, shared.NewValidationError("line %d: account is required", i+1)
		}
		if in.Debit.IsNegative() || in.Credit.IsNegative() {
			return nil, shared.NewValidationError("line %d: amounts cannot be negative", i+1)
		}
		hasDebit := in.Debit.IsPositive()
		hasCredit := in.Credit.IsPositive()
		if hasDebit == hasCredit {
			return nil, shared.NewValidationError("line %d: exactly one of debit or credit must be positive", i+1)
		}
		t.TotalDebit = t.TotalDebit.Add(in.Debit)
		t.TotalCredit = t.TotalCredit.Add(in.Credit)

		line := JournalLine{
			ID:            uuid.New(),
			TransactionID: t.ID,
			LineNo:        i + 1,
			AccountID:     in.AccountID,
			Debit:         currency.Round(in.Debit),
			Credit:        currency.Round(in.Credit),
			Description:   strings.TrimSpace(in.Description),
			Tags:          in.Tags,
		}
		if !line.Amount().IsPositive() {
			return nil, shared.NewValidationError("line %d: amount rounds to zero in %s", i+1, currency)
		}
		t.Lines = append(t.Lines, line)
	}

	return t, nil
}

// CheckBalance compares the raw sums within epsilon, then requires the
// rounded lines to balance exactly. On success the totals are the sums of
// the rounded lines.
func (t *Transaction) CheckBalance(epsilon decimal.Decimal) error {
	if diff := t.TotalDebit.Sub(t.TotalCredit).Abs(); diff.GreaterThan(epsilon) {
		return shared.NewUnbalancedEntryError("debits %s and credits %s differ by %s",
			t.TotalDebit.String(), t.TotalCredit.String(), diff.String())
	}

	debit, credit := decimal.Zero, decimal.Zero
	for _, l := range t.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	if !debit.Equal(credit) {
		return shared.NewUnbalancedEntryError("debits %s and credits %s differ after rounding to %s",
			debit.String(), credit.String(), t.Currency)
	}
	t.TotalDebit = debit
	t.TotalCredit = credit
	return nil
}

// AccountIDs returns the distinct accounts referenced by the lines
func (t *Transaction) AccountIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(t.Lines))
	ids := make([]uuid.UUID, 0, len(t.Lines))
	for _, l := range t.Lines {
		if _, ok := seen[l.AccountID]; ok {
			continue
		}
		seen[l.AccountID] = struct{}{}
		ids = append(ids, l.AccountID)
	}
	return ids
}

// ValidateAccounts checks that every line's account is present, belongs to
// the transaction's tenant, is active and uses the transaction currency.
func (t *Transaction) ValidateAccounts(accounts map[uuid.UUID]*Account) error {
	for _, l := range t.Lines {
		acc, ok := accounts[l.AccountID]
		if !ok || acc.TenantID != t.TenantID {
			return shared.NewNotFoundError(fmt.Sprintf("account %s", l.AccountID))
		}
		if !acc.IsActive {
			return shared.NewValidationError("account %s is inactive", acc.Code)
		}
		if acc.Currency != t.Currency {
			return shared.NewValidationError("account %s is kept in %s, entry is in %s", acc.Code, acc.Currency, t.Currency)
		}
	}
	return nil
}

// BalanceDeltas returns the signed balance change per account caused by
// posting this transaction, following each account's normal side.
func (t *Transaction) BalanceDeltas(accounts map[uuid.UUID]*Account) map[uuid.UUID]decimal.Decimal {
	deltas := make(map[uuid.UUID]decimal.Decimal, len(accounts))
	for _, l := range t.Lines {
		acc := accounts[l.AccountID]
		deltas[l.AccountID] = deltas[l.AccountID].Add(acc.SignedDelta(l.Side(), l.Amount()))
	}
	return deltas
}

// Post moves a draft into posted state within periodID
func (t *Transaction) Post(periodID, postedBy uuid.UUID, epsilon decimal.Decimal) error {
	if t.Status != TransactionStatusDraft {
		return shared.NewInvalidStateError("cannot post journal entry in %s status", t.Status)
	}
	if err := t.CheckBalance(epsilon); err != nil {
		return err
	}

	now := time.Now()
	t.Status = TransactionStatusPosted
	t.PeriodID = &periodID
	t.PostingDate = &now
	t.PostedAt = &now
	t.PostedBy = &postedBy
	t.UpdatedAt = now

	t.AddDomainEvent(NewTransactionPostedEvent(t))
	return nil
}

// Void marks a posted transaction as voided. Lines are never rewritten; the
// caller reverses the balance deltas.
func (t *Transaction) Void(voidedBy uuid.UUID, reason string) error {
	if t.Status != TransactionStatusPosted {
		return shared.NewInvalidStateError("cannot void journal entry in %s status", t.Status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return shared.NewValidationError("void reason is required")
	}
	if utf8.RuneCountInString(reason) > 500 {
		return shared.NewValidationError("void reason cannot exceed 500 characters")
	}

	now := time.Now()
	t.Status = TransactionStatusVoided
	t.VoidedAt = &now
	t.VoidedBy = &voidedBy
	t.VoidReason = reason
	t.UpdatedAt = now

	t.AddDomainEvent(NewTransactionVoidedEvent(t))
	return nil
}

// EnsureDiscardable reports whether the transaction can be deleted
func (t *Transaction) EnsureDiscardable() error {
	if t.Status != TransactionStatusDraft {
		return shared.NewInvalidStateError("only draft journal entries can be discarded, entry is %s", t.Status)
	}
	return nil
}

// TruncateDate drops the clock part, keeping the calendar date in UTC
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
