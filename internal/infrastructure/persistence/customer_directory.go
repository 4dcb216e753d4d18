package persistence

import (
	"context"
	"fmt"

	"github.com/erp/ledger/internal/domain/finance/acl"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCustomerDirectory implements acl.CustomerDirectory over the local
// customer reference table, with an optional read-through cache.
type GormCustomerDirectory struct {
	db    *gorm.DB
	cache acl.CustomerReferenceCache
}

// NewGormCustomerDirectory creates a new GormCustomerDirectory. cache may be nil.
func NewGormCustomerDirectory(db *gorm.DB, cache acl.CustomerReferenceCache) *GormCustomerDirectory {
	return &GormCustomerDirectory{db: db, cache: cache}
}

// GetCustomerReference returns the customer's reference or a not-found error
func (d *GormCustomerDirectory) GetCustomerReference(ctx context.Context, tenantID, customerID uuid.UUID) (acl.CustomerReference, error) {
	if d.cache != nil {
		if ref, ok := d.cache.Get(ctx, tenantID, customerID); ok {
			return ref, nil
		}
	}

	var model models.CustomerRefModel
	err := conn(ctx, d.db).
		Where("tenant_id = ? AND customer_id = ?", tenantID, customerID).
		First(&model).Error
	if err != nil {
		return acl.CustomerReference{}, notFound("customer", err)
	}
	ref, err := model.ToDomain()
	if err != nil {
		return acl.CustomerReference{}, fmt.Errorf("corrupt customer reference %s: %w", customerID, err)
	}

	if d.cache != nil {
		d.cache.Set(ctx, tenantID, ref)
	}
	return ref, nil
}

// Register stores or replaces the customer's reference
func (d *GormCustomerDirectory) Register(ctx context.Context, tenantID uuid.UUID, ref acl.CustomerReference) error {
	model := models.CustomerRefModelFromDomain(tenantID, ref)
	err := conn(ctx, d.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "customer_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"code", "name", "currency", "credit_limit", "is_active", "updated_at"}),
	}).Create(model).Error
	if err != nil {
		return TranslateError("register customer", err)
	}
	if d.cache != nil {
		d.cache.Invalidate(ctx, tenantID, ref.ID())
	}
	return nil
}

// Ensure GormCustomerDirectory implements acl.CustomerDirectory
var _ acl.CustomerDirectory = (*GormCustomerDirectory)(nil)
