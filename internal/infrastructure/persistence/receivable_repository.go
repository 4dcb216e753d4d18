package persistence

import (
	"context"

	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var outstandingReceivableStatuses = []finance.ReceivableStatus{
	finance.ReceivableStatusOpen,
	finance.ReceivableStatusPartial,
}

// GormReceivableRepository implements finance.ReceivableRepository using GORM
type GormReceivableRepository struct {
	db *gorm.DB
}

// NewGormReceivableRepository creates a new GormReceivableRepository
func NewGormReceivableRepository(db *gorm.DB) *GormReceivableRepository {
	return &GormReceivableRepository{db: db}
}

// FindByInvoice returns the row of the customer's invoice
func (r *GormReceivableRepository) FindByInvoice(ctx context.Context, tenantID, customerID, invoiceID uuid.UUID) (*finance.Receivable, error) {
	var model models.ReceivableModel
	err := conn(ctx, r.db).
		Where("tenant_id = ? AND customer_id = ? AND invoice_id = ?", tenantID, customerID, invoiceID).
		First(&model).Error
	if err != nil {
		return nil, notFound("receivable", err)
	}
	return model.ToDomain(), nil
}

// List returns a page of rows ordered by due date
func (r *GormReceivableRepository) List(ctx context.Context, tenantID uuid.UUID, filter finance.ReceivableFilter) ([]*finance.Receivable, int64, error) {
	query := conn(ctx, r.db).Model(&models.ReceivableModel{}).Where("tenant_id = ?", tenantID)
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.OutstandingOnly {
		query = query.Where("status IN ?", outstandingReceivableStatuses)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, TranslateError("count receivables", err)
	}

	dir := ValidateSortOrder(filter.OrderDir, "asc")
	var rows []models.ReceivableModel
	if err := query.Order("due_date " + dir).Order("invoice_number " + dir).
		Offset(filter.Offset()).Limit(filter.Limit()).
		Find(&rows).Error; err != nil {
		return nil, 0, TranslateError("list receivables", err)
	}

	out := make([]*finance.Receivable, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, total, nil
}

// ListOutstanding returns every open or partial row. uuid.Nil lists all tenants.
func (r *GormReceivableRepository) ListOutstanding(ctx context.Context, tenantID uuid.UUID) ([]*finance.Receivable, error) {
	query := conn(ctx, r.db).Where("status IN ?", outstandingReceivableStatuses)
	if tenantID != uuid.Nil {
		query = query.Where("tenant_id = ?", tenantID)
	}
	var rows []models.ReceivableModel
	if err := query.Order("due_date ASC").Find(&rows).Error; err != nil {
		return nil, TranslateError("list outstanding receivables", err)
	}
	out := make([]*finance.Receivable, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// Save updates the row guarded by its version, or inserts it when no row
// exists yet
func (r *GormReceivableRepository) Save(ctx context.Context, rec *finance.Receivable) error {
	db := conn(ctx, r.db)
	model := &models.ReceivableModel{}
	model.FromDomain(rec)
	model.Version = rec.Version + 1

	result := db.Model(model).
		Where("tenant_id = ? AND version = ?", rec.TenantID, rec.Version).
		Select("*").Omit("id", "tenant_id", "created_at").
		Updates(model)
	if result.Error != nil {
		return TranslateError("update receivable", result.Error)
	}
	if result.RowsAffected == 1 {
		rec.Version = model.Version
		return nil
	}

	var exists int64
	if err := db.Model(&models.ReceivableModel{}).
		Where("tenant_id = ? AND id = ?", rec.TenantID, rec.ID).
		Count(&exists).Error; err != nil {
		return TranslateError("check receivable", err)
	}
	if exists > 0 {
		return concurrencyConflict("receivable")
	}

	model.Version = rec.Version
	if err := db.Create(model).Error; err != nil {
		return TranslateError("create receivable", err)
	}
	return nil
}

// Ensure GormReceivableRepository implements finance.ReceivableRepository
var _ finance.ReceivableRepository = (*GormReceivableRepository)(nil)
