package persistence

import (
	"context"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormTransactionRepository implements ledger.TransactionRepository using GORM.
// Headers and lines live in the journal entry and journal line tables.
type GormTransactionRepository struct {
	db *gorm.DB
}

// NewGormTransactionRepository creates a new GormTransactionRepository
func NewGormTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

// FindByID loads a transaction with its lines in line order
func (r *GormTransactionRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Transaction, error) {
	var model models.JournalEntryModel
	err := conn(ctx, r.db).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") }).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error
	if err != nil {
		return nil, notFound("transaction", err)
	}
	return model.ToDomain(), nil
}

// List returns a page of headers, newest entry date first. Lines are not
// loaded. Supported filters: "status", "source_type", "source_id",
// "date_from" and "date_to".
func (r *GormTransactionRepository) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]*ledger.Transaction, int64, error) {
	query := conn(ctx, r.db).Model(&models.JournalEntryModel{}).Where("tenant_id = ?", tenantID)

	if status, ok := filter.Filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", status)
	}
	if st, ok := filter.Filters["source_type"].(string); ok && st != "" {
		query = query.Where("source_type = ?", st)
	}
	if sid, ok := filter.Filters["source_id"].(uuid.UUID); ok && sid != uuid.Nil {
		query = query.Where("source_id = ?", sid)
	}
	if from, ok := filter.Filters["date_from"]; ok {
		query = query.Where("entry_date >= ?", from)
	}
	if to, ok := filter.Filters["date_to"]; ok {
		query = query.Where("entry_date <= ?", to)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, TranslateError("count transactions", err)
	}

	dir := ValidateSortOrder(filter.OrderDir, "desc")
	var rows []models.JournalEntryModel
	if err := query.Order("entry_date " + dir).Order("entry_number " + dir).
		Offset(filter.Offset()).Limit(filter.Limit()).
		Find(&rows).Error; err != nil {
		return nil, 0, TranslateError("list transactions", err)
	}

	out := make([]*ledger.Transaction, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, total, nil
}

// Create inserts the header and every line
func (r *GormTransactionRepository) Create(ctx context.Context, t *ledger.Transaction) error {
	db := conn(ctx, r.db)
	header := models.JournalEntryModelFromDomain(t)
	if err := db.Omit("Lines").Create(header).Error; err != nil {
		return TranslateError("create transaction", err)
	}
	lines := models.JournalLineModelsFromDomain(t)
	if len(lines) == 0 {
		return nil
	}
	if err := db.Create(&lines).Error; err != nil {
		return TranslateError("create journal lines", err)
	}
	return nil
}

// Update persists header state guarded by the version. Lines are immutable
// and never rewritten.
func (r *GormTransactionRepository) Update(ctx context.Context, t *ledger.Transaction) error {
	header := models.JournalEntryModelFromDomain(t)
	header.Version = t.Version + 1

	result := conn(ctx, r.db).Model(header).
		Where("tenant_id = ? AND version = ?", t.TenantID, t.Version).
		Select("*").Omit("id", "tenant_id", "created_at", "Lines").
		Updates(header)
	if result.Error != nil {
		return TranslateError("update transaction", result.Error)
	}
	if result.RowsAffected == 0 {
		return concurrencyConflict("transaction")
	}
	t.Version = header.Version
	return nil
}

// Delete removes a draft transaction and its lines. Posted and voided
// entries are never deleted.
func (r *GormTransactionRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	db := conn(ctx, r.db)
	result := db.Where("tenant_id = ? AND id = ? AND status = ?", tenantID, id, ledger.TransactionStatusDraft).
		Delete(&models.JournalEntryModel{})
	if result.Error != nil {
		return TranslateError("delete transaction", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("draft transaction")
	}
	if err := db.Where("tenant_id = ? AND transaction_id = ?", tenantID, id).
		Delete(&models.JournalLineModel{}).Error; err != nil {
		return TranslateError("delete journal lines", err)
	}
	return nil
}

// Ensure GormTransactionRepository implements ledger.TransactionRepository
var _ ledger.TransactionRepository = (*GormTransactionRepository)(nil)
