package persistence

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/idempotency"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormIdempotencyStore implements idempotency.Store using GORM.
// Built on the root handle it commits each reservation on its own; built on
// a transaction it joins that unit of work.
type GormIdempotencyStore struct {
	db *gorm.DB
}

// NewGormIdempotencyStore creates a new GormIdempotencyStore
func NewGormIdempotencyStore(db *gorm.DB) *GormIdempotencyStore {
	return &GormIdempotencyStore{db: db}
}

// Reserve inserts the record unless the tenant already holds the key
func (s *GormIdempotencyStore) Reserve(ctx context.Context, rec *idempotency.Record) (bool, error) {
	model := models.IdempotencyRecordModelFromDomain(rec)
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(model)
	if result.Error != nil {
		return false, TranslateError("reserve idempotency key", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// Find returns the record of the tenant's key
func (s *GormIdempotencyStore) Find(ctx context.Context, tenantID uuid.UUID, key string) (*idempotency.Record, error) {
	var model models.IdempotencyRecordModel
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND idempotency_key = ?", tenantID, key).
		First(&model).Error
	if err != nil {
		return nil, notFound("idempotency record", err)
	}
	return model.ToDomain(), nil
}

// Complete stores the descriptor of an in-flight key
func (s *GormIdempotencyStore) Complete(ctx context.Context, tenantID uuid.UUID, key string, d idempotency.Descriptor) error {
	now := time.Now()
	result := conn(ctx, s.db).Model(&models.IdempotencyRecordModel{}).
		Where("tenant_id = ? AND idempotency_key = ? AND state = ?", tenantID, key, idempotency.StateInFlight).
		Updates(map[string]any{
			"state":         idempotency.StateCompleted,
			"response_code": d.Status,
			"resource_type": d.ResourceType,
			"resource_id":   d.ResourceID,
			"completed_at":  now,
		})
	if result.Error != nil {
		return TranslateError("complete idempotency key", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewConflictError("idempotency key %q is not reserved", key)
	}
	return nil
}

// Release deletes an in-flight reservation. Completed records are kept.
func (s *GormIdempotencyStore) Release(ctx context.Context, tenantID uuid.UUID, key string) error {
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND idempotency_key = ? AND state = ?", tenantID, key, idempotency.StateInFlight).
		Delete(&models.IdempotencyRecordModel{}).Error
	if err != nil {
		return TranslateError("release idempotency key", err)
	}
	return nil
}

// PurgeBefore deletes records created before cutoff
func (s *GormIdempotencyStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.IdempotencyRecordModel{})
	if result.Error != nil {
		return 0, TranslateError("purge idempotency records", result.Error)
	}
	return result.RowsAffected, nil
}

// Ensure GormIdempotencyStore implements idempotency.Store
var _ idempotency.Store = (*GormIdempotencyStore)(nil)
