package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormAccountRepository implements ledger.AccountRepository using GORM
type GormAccountRepository struct {
	db      *gorm.DB
	mapping *StorageMapping
}

// NewGormAccountRepository creates a new GormAccountRepository
func NewGormAccountRepository(db *gorm.DB, mapping *StorageMapping) *GormAccountRepository {
	if mapping == nil {
		mapping = DefaultStorageMapping()
	}
	return &GormAccountRepository{db: db, mapping: mapping}
}

// FindByID finds an account by ID within a tenant
func (r *GormAccountRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Account, error) {
	var model models.AccountModel
	if err := conn(ctx, r.db).Where("tenant_id = ? AND id = ?", tenantID, id).First(&model).Error; err != nil {
		return nil, notFound("account", err)
	}
	return model.ToDomain(), nil
}

// FindByIDs loads every listed account of the tenant. Missing ids are
// simply absent from the result.
func (r *GormAccountRepository) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*ledger.Account, error) {
	if len(ids) == 0 {
		return []*ledger.Account{}, nil
	}
	var rows []models.AccountModel
	if err := conn(ctx, r.db).Where("tenant_id = ? AND id IN ?", tenantID, ids).Find(&rows).Error; err != nil {
		return nil, TranslateError("find accounts", err)
	}
	out := make([]*ledger.Account, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// FindByCode finds an account by code within a tenant
func (r *GormAccountRepository) FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*ledger.Account, error) {
	var model models.AccountModel
	if err := conn(ctx, r.db).Where("tenant_id = ? AND code = ?", tenantID, code).First(&model).Error; err != nil {
		return nil, notFound("account", err)
	}
	return model.ToDomain(), nil
}

// List returns a page of the tenant's accounts ordered by code. Supported
// filters: "account_type", "active" and "search" (code or name prefix).
func (r *GormAccountRepository) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]*ledger.Account, int64, error) {
	query := conn(ctx, r.db).Model(&models.AccountModel{}).Where("tenant_id = ?", tenantID)

	if t, ok := filter.Filters["account_type"].(string); ok && t != "" {
		query = query.Where("type = ?", t)
	}
	if active, ok := filter.Filters["active"].(bool); ok {
		query = query.Where("is_active = ?", active)
	}
	if search, ok := filter.Filters["search"].(string); ok && strings.TrimSpace(search) != "" {
		like := strings.TrimSpace(search) + "%"
		query = query.Where("code LIKE ? OR name LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, TranslateError("count accounts", err)
	}

	var rows []models.AccountModel
	if err := query.Order("code " + ValidateSortOrder(filter.OrderDir, "asc")).
		Offset(filter.Offset()).Limit(filter.Limit()).
		Find(&rows).Error; err != nil {
		return nil, 0, TranslateError("list accounts", err)
	}

	out := make([]*ledger.Account, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, total, nil
}

// Create inserts a new account
func (r *GormAccountRepository) Create(ctx context.Context, account *ledger.Account) error {
	model := models.AccountModelFromDomain(account)
	if err := conn(ctx, r.db).Create(model).Error; err != nil {
		if IsUniqueViolation(err) {
			return shared.NewConflictError("account code %q already exists", account.Code)
		}
		return TranslateError("create account", err)
	}
	return nil
}

// Update persists the descriptive fields and the active flag, guarded by the
// version. The balance column is never written here.
func (r *GormAccountRepository) Update(ctx context.Context, account *ledger.Account) error {
	model := models.AccountModelFromDomain(account)
	model.Version = account.Version + 1

	result := conn(ctx, r.db).Model(&models.AccountModel{}).
		Where("tenant_id = ? AND id = ? AND version = ?", account.TenantID, account.ID, account.Version).
		Updates(map[string]any{
			"name":       model.Name,
			"is_active":  model.IsActive,
			"version":    model.Version,
			"updated_at": model.UpdatedAt,
		})
	if result.Error != nil {
		return TranslateError("update account", result.Error)
	}
	if result.RowsAffected == 0 {
		return concurrencyConflict("account")
	}
	account.Version = model.Version
	return nil
}

// ApplyBalanceDelta adds delta to the stored balance in a single UPDATE, so
// concurrent postings never lose an increment.
func (r *GormAccountRepository) ApplyBalanceDelta(ctx context.Context, tenantID, accountID uuid.UUID, delta decimal.Decimal) error {
	result := conn(ctx, r.db).Model(&models.AccountModel{}).
		Where("tenant_id = ? AND id = ?", tenantID, accountID).
		UpdateColumn("balance", gorm.Expr("balance + ?", delta))
	if result.Error != nil {
		return TranslateError("apply balance delta", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("account")
	}
	return nil
}

// SumPostedLines totals the account's lines that belong to posted entries
func (r *GormAccountRepository) SumPostedLines(ctx context.Context, tenantID, accountID uuid.UUID) (decimal.Decimal, decimal.Decimal, error) {
	lines := r.mapping.Table(EntityJournalLine)
	entries := r.mapping.Table(EntityJournalEntry)

	var sums struct {
		Debit  decimal.Decimal
		Credit decimal.Decimal
	}
	err := conn(ctx, r.db).Table(lines+" AS l").
		Select("COALESCE(SUM(l.debit), 0) AS debit, COALESCE(SUM(l.credit), 0) AS credit").
		Joins(fmt.Sprintf("JOIN %s AS e ON e.id = l.transaction_id", entries)).
		Where("l.tenant_id = ? AND l.account_id = ? AND e.status = ?", tenantID, accountID, ledger.TransactionStatusPosted).
		Scan(&sums).Error
	if err != nil {
		return decimal.Zero, decimal.Zero, TranslateError("sum posted lines", err)
	}
	// SQLite sums decimals as floats
	return sums.Debit.Round(4), sums.Credit.Round(4), nil
}

// Ensure GormAccountRepository implements ledger.AccountRepository
var _ ledger.AccountRepository = (*GormAccountRepository)(nil)
