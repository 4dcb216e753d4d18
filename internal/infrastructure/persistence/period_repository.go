package persistence

import (
	"context"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPeriodRepository implements ledger.PeriodRepository using GORM
type GormPeriodRepository struct {
	db *gorm.DB
}

// NewGormPeriodRepository creates a new GormPeriodRepository
func NewGormPeriodRepository(db *gorm.DB) *GormPeriodRepository {
	return &GormPeriodRepository{db: db}
}

// CreateFiscalYear inserts a fiscal year
func (r *GormPeriodRepository) CreateFiscalYear(ctx context.Context, year *ledger.FiscalYear) error {
	model := &models.FiscalYearModel{}
	model.FromDomain(year)
	if err := conn(ctx, r.db).Create(model).Error; err != nil {
		return TranslateError("create fiscal year", err)
	}
	return nil
}

// UpdateFiscalYear persists the fiscal year guarded by the version
func (r *GormPeriodRepository) UpdateFiscalYear(ctx context.Context, year *ledger.FiscalYear) error {
	model := &models.FiscalYearModel{}
	model.FromDomain(year)
	model.Version = year.Version + 1

	result := conn(ctx, r.db).Model(model).
		Where("tenant_id = ? AND version = ?", year.TenantID, year.Version).
		Select("*").Omit("id", "tenant_id", "created_at").
		Updates(model)
	if result.Error != nil {
		return TranslateError("update fiscal year", result.Error)
	}
	if result.RowsAffected == 0 {
		return concurrencyConflict("fiscal year")
	}
	year.Version = model.Version
	return nil
}

// FindFiscalYear finds a fiscal year by ID within a tenant
func (r *GormPeriodRepository) FindFiscalYear(ctx context.Context, tenantID, id uuid.UUID) (*ledger.FiscalYear, error) {
	var model models.FiscalYearModel
	if err := conn(ctx, r.db).Where("tenant_id = ? AND id = ?", tenantID, id).First(&model).Error; err != nil {
		return nil, notFound("fiscal year", err)
	}
	return model.ToDomain(), nil
}

// ListFiscalYears returns the tenant's fiscal years, latest first
func (r *GormPeriodRepository) ListFiscalYears(ctx context.Context, tenantID uuid.UUID) ([]*ledger.FiscalYear, error) {
	var rows []models.FiscalYearModel
	if err := conn(ctx, r.db).Where("tenant_id = ?", tenantID).Order("start_date DESC").Find(&rows).Error; err != nil {
		return nil, TranslateError("list fiscal years", err)
	}
	out := make([]*ledger.FiscalYear, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// CreatePeriod inserts an accounting period
func (r *GormPeriodRepository) CreatePeriod(ctx context.Context, period *ledger.AccountingPeriod) error {
	model := &models.AccountingPeriodModel{}
	model.FromDomain(period)
	if err := conn(ctx, r.db).Create(model).Error; err != nil {
		return TranslateError("create accounting period", err)
	}
	return nil
}

// UpdatePeriod persists the period guarded by the version
func (r *GormPeriodRepository) UpdatePeriod(ctx context.Context, period *ledger.AccountingPeriod) error {
	model := &models.AccountingPeriodModel{}
	model.FromDomain(period)
	model.Version = period.Version + 1

	result := conn(ctx, r.db).Model(model).
		Where("tenant_id = ? AND version = ?", period.TenantID, period.Version).
		Select("*").Omit("id", "tenant_id", "created_at").
		Updates(model)
	if result.Error != nil {
		return TranslateError("update accounting period", result.Error)
	}
	if result.RowsAffected == 0 {
		return concurrencyConflict("accounting period")
	}
	period.Version = model.Version
	return nil
}

// FindPeriod finds an accounting period by ID within a tenant
func (r *GormPeriodRepository) FindPeriod(ctx context.Context, tenantID, id uuid.UUID) (*ledger.AccountingPeriod, error) {
	var model models.AccountingPeriodModel
	if err := conn(ctx, r.db).Where("tenant_id = ? AND id = ?", tenantID, id).First(&model).Error; err != nil {
		return nil, notFound("accounting period", err)
	}
	return model.ToDomain(), nil
}

// ListPeriods returns periods ordered by start date, optionally limited to
// one fiscal year
func (r *GormPeriodRepository) ListPeriods(ctx context.Context, tenantID uuid.UUID, fiscalYearID *uuid.UUID) ([]*ledger.AccountingPeriod, error) {
	query := conn(ctx, r.db).Where("tenant_id = ?", tenantID)
	if fiscalYearID != nil {
		query = query.Where("fiscal_year_id = ?", *fiscalYearID)
	}
	var rows []models.AccountingPeriodModel
	if err := query.Order("start_date ASC").Find(&rows).Error; err != nil {
		return nil, TranslateError("list accounting periods", err)
	}
	out := make([]*ledger.AccountingPeriod, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// Ensure GormPeriodRepository implements ledger.PeriodRepository
var _ ledger.PeriodRepository = (*GormPeriodRepository)(nil)
