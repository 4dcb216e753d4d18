package persistence

import (
	"context"
	"strings"

	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormInvoiceRepository implements finance.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

func preloadItems(db *gorm.DB) *gorm.DB {
	return db.Order("line_no ASC")
}

// FindByID loads the invoice and its items
func (r *GormInvoiceRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*finance.Invoice, error) {
	var model models.InvoiceModel
	err := conn(ctx, r.db).Preload("Items", preloadItems).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error
	if err != nil {
		return nil, notFound("invoice", err)
	}
	return model.ToDomain(), nil
}

// FindByIdempotencyKey returns the invoice created under key
func (r *GormInvoiceRepository) FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*finance.Invoice, error) {
	if strings.TrimSpace(key) == "" {
		return nil, shared.NewNotFoundError("invoice")
	}
	var model models.InvoiceModel
	err := conn(ctx, r.db).Preload("Items", preloadItems).
		Where("tenant_id = ? AND idempotency_key = ?", tenantID, key).
		First(&model).Error
	if err != nil {
		return nil, notFound("invoice", err)
	}
	return model.ToDomain(), nil
}

// List returns a page of invoice headers, newest issue date first
func (r *GormInvoiceRepository) List(ctx context.Context, tenantID uuid.UUID, filter finance.InvoiceFilter) ([]*finance.Invoice, int64, error) {
	query := conn(ctx, r.db).Model(&models.InvoiceModel{}).Where("tenant_id = ?", tenantID)

	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.IssuedFrom != nil {
		query = query.Where("issue_date >= ?", *filter.IssuedFrom)
	}
	if filter.IssuedTo != nil {
		query = query.Where("issue_date <= ?", *filter.IssuedTo)
	}
	if search, ok := filter.Filters["search"].(string); ok && strings.TrimSpace(search) != "" {
		query = query.Where("invoice_number LIKE ?", strings.TrimSpace(search)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, TranslateError("count invoices", err)
	}

	dir := ValidateSortOrder(filter.OrderDir, "desc")
	var rows []models.InvoiceModel
	if err := query.Order("issue_date " + dir).Order("invoice_number " + dir).
		Offset(filter.Offset()).Limit(filter.Limit()).
		Find(&rows).Error; err != nil {
		return nil, 0, TranslateError("list invoices", err)
	}

	out := make([]*finance.Invoice, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, total, nil
}

// ListOpenByCustomer returns the customer's posted and partially paid
// invoices in currency that still carry a balance, oldest due first
func (r *GormInvoiceRepository) ListOpenByCustomer(ctx context.Context, tenantID, customerID uuid.UUID, currency valueobject.Currency) ([]*finance.Invoice, error) {
	var rows []models.InvoiceModel
	err := conn(ctx, r.db).
		Where("tenant_id = ? AND customer_id = ? AND currency = ?", tenantID, customerID, currency.String()).
		Where("status IN ?", []finance.InvoiceStatus{finance.InvoiceStatusPosted, finance.InvoiceStatusPartiallyPaid}).
		Where("balance_due > 0").
		Order("due_date ASC").Order("issue_date ASC").Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, TranslateError("list open invoices", err)
	}
	out := make([]*finance.Invoice, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// Statistics aggregates the tenant's invoices per status
func (r *GormInvoiceRepository) Statistics(ctx context.Context, tenantID uuid.UUID) ([]finance.InvoiceStatusSummary, error) {
	var rows []struct {
		Status      finance.InvoiceStatus
		Count       int64
		TotalAmount decimal.Decimal
		BalanceDue  decimal.Decimal
	}
	err := conn(ctx, r.db).Model(&models.InvoiceModel{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS total_amount, COALESCE(SUM(balance_due), 0) AS balance_due").
		Where("tenant_id = ?", tenantID).
		Group("status").Order("status").
		Scan(&rows).Error
	if err != nil {
		return nil, TranslateError("invoice statistics", err)
	}
	out := make([]finance.InvoiceStatusSummary, len(rows))
	for i, row := range rows {
		out[i] = finance.InvoiceStatusSummary{
			Status:      row.Status,
			Count:       row.Count,
			TotalAmount: row.TotalAmount.Round(4),
			BalanceDue:  row.BalanceDue.Round(4),
		}
	}
	return out, nil
}

// Create inserts the invoice header and its items
func (r *GormInvoiceRepository) Create(ctx context.Context, inv *finance.Invoice) error {
	db := conn(ctx, r.db)
	header := models.InvoiceModelFromDomain(inv)
	if err := db.Omit("Items").Create(header).Error; err != nil {
		// A keyed duplicate stays retryable so the guard can replay it.
		if IsUniqueViolation(err) && inv.IdempotencyKey == "" {
			return shared.NewConflictError("invoice number %q already exists", inv.InvoiceNumber)
		}
		return TranslateError("create invoice", err)
	}
	items := models.InvoiceItemModelsFromDomain(inv)
	if len(items) == 0 {
		return nil
	}
	if err := db.Create(&items).Error; err != nil {
		return TranslateError("create invoice items", err)
	}
	return nil
}

// Update persists header changes guarded by the version. Items are fixed at
// creation.
func (r *GormInvoiceRepository) Update(ctx context.Context, inv *finance.Invoice) error {
	header := models.InvoiceModelFromDomain(inv)
	header.Version = inv.Version + 1

	result := conn(ctx, r.db).Model(header).
		Where("tenant_id = ? AND version = ?", inv.TenantID, inv.Version).
		Select("*").Omit("id", "tenant_id", "created_at", "Items").
		Updates(header)
	if result.Error != nil {
		return TranslateError("update invoice", result.Error)
	}
	if result.RowsAffected == 0 {
		return concurrencyConflict("invoice")
	}
	inv.Version = header.Version
	return nil
}

// Ensure GormInvoiceRepository implements finance.InvoiceRepository
var _ finance.InvoiceRepository = (*GormInvoiceRepository)(nil)
