package ledger

import (
	"context"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountRepository persists chart-of-accounts nodes
type AccountRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Account, error)
	FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*Account, error)
	FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*Account, error)
	List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]*Account, int64, error)
	Create(ctx context.Context, account *Account) error
	// Update persists descriptive fields and the active flag. It never writes the balance.
	Update(ctx context.Context, account *Account) error
	// ApplyBalanceDelta atomically adds delta to the stored balance
	ApplyBalanceDelta(ctx context.Context, tenantID, accountID uuid.UUID, delta decimal.Decimal) error
	// SumPostedLines totals the debit and credit lines of posted entries for the account
	SumPostedLines(ctx context.Context, tenantID, accountID uuid.UUID) (debit, credit decimal.Decimal, err error)
}

// TransactionRepository persists journal entries with their lines
type TransactionRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Transaction, error)
	List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]*Transaction, int64, error)
	// Create inserts the header and every line
	Create(ctx context.Context, t *Transaction) error
	// Update persists header state changes guarded by the version
	Update(ctx context.Context, t *Transaction) error
	// Delete removes a draft and its lines
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// PeriodRepository persists fiscal years and accounting periods
type PeriodRepository interface {
	CreateFiscalYear(ctx context.Context, year *FiscalYear) error
	UpdateFiscalYear(ctx context.Context, year *FiscalYear) error
	FindFiscalYear(ctx context.Context, tenantID, id uuid.UUID) (*FiscalYear, error)
	ListFiscalYears(ctx context.Context, tenantID uuid.UUID) ([]*FiscalYear, error)
	CreatePeriod(ctx context.Context, period *AccountingPeriod) error
	UpdatePeriod(ctx context.Context, period *AccountingPeriod) error
	FindPeriod(ctx context.Context, tenantID, id uuid.UUID) (*AccountingPeriod, error)
	// ListPeriods returns periods ordered by start date; a nil fiscalYearID lists all
	ListPeriods(ctx context.Context, tenantID uuid.UUID, fiscalYearID *uuid.UUID) ([]*AccountingPeriod, error)
}
