package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/idempotency"
	"github.com/google/uuid"
)

// IdempotencyRecordModel is the persistence model for a reserved idempotency
// key. The composite primary key makes reservation an insert-if-absent.
type IdempotencyRecordModel struct {
	TenantID     uuid.UUID         `gorm:"type:uuid;primaryKey"`
	Key          string            `gorm:"column:idempotency_key;type:varchar(255);primaryKey"`
	Operation    string            `gorm:"type:varchar(100);not null"`
	PayloadHash  string            `gorm:"type:char(64);not null"`
	UserID       uuid.UUID         `gorm:"type:uuid"`
	State        idempotency.State `gorm:"type:varchar(20);not null"`
	ResponseCode int               `gorm:"not null;default:0"`
	ResourceType string            `gorm:"type:varchar(50)"`
	ResourceID   *uuid.UUID        `gorm:"type:uuid"`
	CreatedAt    time.Time         `gorm:"not null;index"`
	CompletedAt  *time.Time
}

// ToDomain converts the persistence model to a domain Record
func (m *IdempotencyRecordModel) ToDomain() *idempotency.Record {
	r := &idempotency.Record{
		TenantID:    m.TenantID,
		Key:         m.Key,
		Operation:   m.Operation,
		PayloadHash: m.PayloadHash,
		UserID:      m.UserID,
		State:       m.State,
		CreatedAt:   m.CreatedAt,
		CompletedAt: m.CompletedAt,
	}
	if m.State == idempotency.StateCompleted && m.ResourceID != nil {
		r.Descriptor = &idempotency.Descriptor{
			Status:       m.ResponseCode,
			ResourceType: m.ResourceType,
			ResourceID:   *m.ResourceID,
		}
	}
	return r
}

// IdempotencyRecordModelFromDomain creates a persistence model from a domain Record
func IdempotencyRecordModelFromDomain(r *idempotency.Record) *IdempotencyRecordModel {
	m := &IdempotencyRecordModel{
		TenantID:    r.TenantID,
		Key:         r.Key,
		Operation:   r.Operation,
		PayloadHash: r.PayloadHash,
		UserID:      r.UserID,
		State:       r.State,
		CreatedAt:   r.CreatedAt,
		CompletedAt: r.CompletedAt,
	}
	if r.Descriptor != nil {
		id := r.Descriptor.ResourceID
		m.ResponseCode = r.Descriptor.Status
		m.ResourceType = r.Descriptor.ResourceType
		m.ResourceID = &id
	}
	return m
}
