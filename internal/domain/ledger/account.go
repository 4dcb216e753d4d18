package ledger

import (
	"strings"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType classifies a chart-of-accounts node
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeIncome    AccountType = "income"
	AccountTypeExpense   AccountType = "expense"
)

// IsValid checks if the account type is valid
func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeIncome, AccountTypeExpense:
		return true
	}
	return false
}

// NormalSide returns the side on which increases of this account type are recorded
func (t AccountType) NormalSide() Side {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return SideDebit
	default:
		return SideCredit
	}
}

// Side is a debit or a credit
type Side string

const (
	SideDebit  Side = "debit"
	SideCredit Side = "credit"
)

// IsValid checks if the side is valid
func (s Side) IsValid() bool {
	return s == SideDebit || s == SideCredit
}

// Account is a chart-of-accounts node. Its balance is only ever changed by
// the posting engine through an atomic increment in the store.
type Account struct {
	shared.TenantAggregateRoot
	Code       string
	Name       string
	Type       AccountType
	NormalSide Side
	Balance    decimal.Decimal
	Currency   valueobject.Currency
	IsActive   bool
}

// NewAccount creates an active account with a zero balance. An empty normal
// side defaults to the type's natural side.
func NewAccount(tenantID uuid.UUID, code, name string, accountType AccountType, normalSide Side, currency valueobject.Currency) (*Account, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, shared.NewValidationError("account code cannot be empty")
	}
	if len(code) > 32 {
		return nil, shared.NewValidationError("account code cannot exceed 32 characters")
	}
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewValidationError("account name cannot be empty")
	}
	if !accountType.IsValid() {
		return nil, shared.NewValidationError("invalid account type %q", accountType)
	}
	if normalSide == "" {
		normalSide = accountType.NormalSide()
	}
	if !normalSide.IsValid() {
		return nil, shared.NewValidationError("invalid normal side %q", normalSide)
	}
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}

	return &Account{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Code:                code,
		Name:                strings.TrimSpace(name),
		Type:                accountType,
		NormalSide:          normalSide,
		Balance:             decimal.Zero,
		Currency:            currency,
		IsActive:            true,
	}, nil
}

// SignedDelta returns the balance change caused by posting amount on side:
// positive when side matches the normal side, negative otherwise.
func (a *Account) SignedDelta(side Side, amount decimal.Decimal) decimal.Decimal {
	if side == a.NormalSide {
		return amount
	}
	return amount.Neg()
}

// Deactivate stops the account from receiving new postings
func (a *Account) Deactivate() error {
	if !a.IsActive {
		return shared.NewInvalidStateError("account %s is already inactive", a.Code)
	}
	a.IsActive = false
	a.Touch()
	return nil
}
