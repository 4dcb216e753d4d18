package persistence

import (
	"context"

	"github.com/erp/ledger/internal/domain/audit"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormAuditRepository implements audit.Repository using GORM
type GormAuditRepository struct {
	db *gorm.DB
}

// NewGormAuditRepository creates a new GormAuditRepository
func NewGormAuditRepository(db *gorm.DB) *GormAuditRepository {
	return &GormAuditRepository{db: db}
}

// Append inserts the entry. A redelivered event keeps its first entry.
func (r *GormAuditRepository) Append(ctx context.Context, e *audit.Entry) error {
	model := models.AuditEntryModelFromDomain(e)
	err := conn(ctx, r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(model).Error
	if err != nil {
		return TranslateError("append audit entry", err)
	}
	return nil
}

// List returns a page of the tenant's entries, newest first
func (r *GormAuditRepository) List(ctx context.Context, tenantID uuid.UUID, filter audit.Filter) ([]*audit.Entry, int64, error) {
	query := conn(ctx, r.db).Model(&models.AuditEntryModel{}).Where("tenant_id = ?", tenantID)
	if filter.AggregateID != nil {
		query = query.Where("aggregate_id = ?", *filter.AggregateID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, TranslateError("count audit entries", err)
	}

	var rows []models.AuditEntryModel
	if err := query.Order("occurred_at " + ValidateSortOrder(filter.OrderDir, "desc")).
		Offset(filter.Offset()).Limit(filter.Limit()).
		Find(&rows).Error; err != nil {
		return nil, 0, TranslateError("list audit entries", err)
	}

	out := make([]*audit.Entry, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, total, nil
}

// Ensure GormAuditRepository implements audit.Repository
var _ audit.Repository = (*GormAuditRepository)(nil)
