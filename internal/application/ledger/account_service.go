package ledger

import (
	"context"
	"errors"

	"github.com/erp/ledger/internal/application/unitofwork"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateAccountInput describes a new chart-of-accounts node
type CreateAccountInput struct {
	Code       string             `json:"code"`
	Name       string             `json:"name"`
	Type       ledger.AccountType `json:"type"`
	NormalSide ledger.Side        `json:"normal_side"`
	Currency   string             `json:"currency"`
}

// AccountBalance reports an account's stored balance with the posted line
// totals behind it
type AccountBalance struct {
	AccountID   uuid.UUID       `json:"account_id"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	NormalSide  ledger.Side     `json:"normal_side"`
	Currency    string          `json:"currency"`
	Balance     decimal.Decimal `json:"balance"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
}

// AccountService manages the chart of accounts
type AccountService struct {
	scope  unitofwork.Scope
	logger *zap.Logger
}

// NewAccountService creates a new AccountService
func NewAccountService(scope unitofwork.Scope, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{scope: scope, logger: logger}
}

// CreateAccount adds an account with a zero balance
func (s *AccountService) CreateAccount(ctx context.Context, op shared.OpContext, in CreateAccountInput) (*ledger.Account, error) {
	if err := shared.Authorize(op, shared.PermAccountManage); err != nil {
		return nil, err
	}
	currency, err := valueobject.ParseCurrency(in.Currency)
	if err != nil {
		return nil, err
	}
	account, err := ledger.NewAccount(op.TenantID, in.Code, in.Name, in.Type, in.NormalSide, currency)
	if err != nil {
		return nil, err
	}

	err = s.scope.Execute(ctx, func(ctx context.Context, repos unitofwork.Repositories) error {
		_, err := repos.Accounts().FindByCode(ctx, op.TenantID, account.Code)
		switch {
		case err == nil:
			return shared.NewConflictError("account code %s already exists", account.Code)
		case !errors.Is(err, shared.ErrNotFound):
			return err
		}
		return repos.Accounts().Create(ctx, account)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("account created",
		zap.String("tenant_id", op.TenantID.String()),
		zap.String("account_id", account.ID.String()),
		zap.String("code", account.Code),
		zap.String("type", string(account.Type)),
	)
	return account, nil
}

// GetAccount returns one account
func (s *AccountService) GetAccount(ctx context.Context, op shared.OpContext, id uuid.UUID) (*ledger.Account, error) {
	if err := shared.Authorize(op, shared.PermAccountRead); err != nil {
		return nil, err
	}
	var account *ledger.Account
	err := s.scope.Execute(ctx, func(ctx context.Context, repos unitofwork.Repositories) error {
		var err error
		account, err = repos.Accounts().FindByID(ctx, op.TenantID, id)
		return err
	})
	return account, err
}

// ListAccounts returns a page of accounts ordered by code
func (s *AccountService) ListAccounts(ctx context.Context, op shared.OpContext, filter shared.Filter) (shared.Paginated[*ledger.Account], error) {
	if err := shared.Authorize(op, shared.PermAccountRead); err != nil {
		return shared.Paginated[*ledger.Account]{}, err
	}
	var (
		items []*ledger.Account
		total int64
	)
	err := s.scope.Execute(ctx, func(ctx context.Context, repos unitofwork.Repositories) error {
		var err error
		items, total, err = repos.Accounts().List(ctx, op.TenantID, filter)
		return err
	})
	if err != nil {
		return shared.Paginated[*ledger.Account]{}, err
	}
	return shared.NewPaginated(items, total, filter.Page, filter.Limit()), nil
}

// DeactivateAccount stops an account from receiving postings
func (s *AccountService) DeactivateAccount(ctx context.Context, op shared.OpContext, id uuid.UUID) (*ledger.Account, error) {
	if err := shared.Authorize(op, shared.PermAccountManage); err != nil {
		return nil, err
	}
	var account *ledger.Account
	err := s.scope.Execute(ctx, func(ctx context.Context, repos unitofwork.Repositories) error {
		a, err := repos.Accounts().FindByID(ctx, op.TenantID, id)
		if err != nil {
			return err
		}
		if err := a.Deactivate(); err != nil {
			return err
		}
		account = a
		return repos.Accounts().Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("account deactivated",
		zap.String("tenant_id", op.TenantID.String()),
		zap.String("account_id", id.String()),
	)
	return account, nil
}

// GetAccountBalance returns the stored balance with posted debit and credit totals
func (s *AccountService) GetAccountBalance(ctx context.Context, op shared.OpContext, id uuid.UUID) (*AccountBalance, error) {
	if err := shared.Authorize(op, shared.PermAccountRead); err != nil {
		return nil, err
	}
	var result *AccountBalance
	err := s.scope.Execute(ctx, func(ctx context.Context, repos unitofwork.Repositories) error {
		a, err := repos.Accounts().FindByID(ctx, op.TenantID, id)
		if err != nil {
			return err
		}
		debit, credit, err := repos.Accounts().SumPostedLines(ctx, op.TenantID, id)
		if err != nil {
			return err
		}
		result = &AccountBalance{
			AccountID:   a.ID,
			Code:        a.Code,
			Name:        a.Name,
			NormalSide:  a.NormalSide,
			Currency:    a.Currency.String(),
			Balance:     a.Balance,
			TotalDebit:  debit,
			TotalCredit: credit,
		}
		return nil
	})
	return result, err
}
