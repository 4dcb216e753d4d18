package models

import (
	"encoding/json"
	"time"

	"github.com/erp/ledger/internal/domain/audit"
	"github.com/google/uuid"
)

// AuditEntryModel is the persistence model for an audit trail row
type AuditEntryModel struct {
	ID             uuid.UUID                   `gorm:"type:uuid;primary_key"`
	TenantID       uuid.UUID                   `gorm:"type:uuid;not null;index:idx_audit_tenant_aggregate,priority:1"`
	ActorID        uuid.UUID                   `gorm:"type:uuid"`
	Action         string                      `gorm:"type:varchar(100);not null;index"`
	AggregateType  string                      `gorm:"type:varchar(50);not null"`
	AggregateID    uuid.UUID                   `gorm:"type:uuid;not null;index:idx_audit_tenant_aggregate,priority:2"`
	EventID        uuid.UUID                   `gorm:"type:uuid;not null;uniqueIndex"`
	IdempotencyKey string                      `gorm:"type:varchar(255)"`
	RequestID      string                      `gorm:"type:varchar(100)"`
	Payload        JSONColumn[json.RawMessage] `gorm:"type:jsonb"`
	OccurredAt     time.Time                   `gorm:"not null;index"`
}

// ToDomain converts the persistence model to a domain Entry
func (m *AuditEntryModel) ToDomain() *audit.Entry {
	return &audit.Entry{
		ID:             m.ID,
		TenantID:       m.TenantID,
		ActorID:        m.ActorID,
		Action:         m.Action,
		AggregateType:  m.AggregateType,
		AggregateID:    m.AggregateID,
		EventID:        m.EventID,
		IdempotencyKey: m.IdempotencyKey,
		RequestID:      m.RequestID,
		Payload:        m.Payload.V,
		OccurredAt:     m.OccurredAt,
	}
}

// AuditEntryModelFromDomain creates a persistence model from a domain Entry
func AuditEntryModelFromDomain(e *audit.Entry) *AuditEntryModel {
	return &AuditEntryModel{
		ID:             e.ID,
		TenantID:       e.TenantID,
		ActorID:        e.ActorID,
		Action:         e.Action,
		AggregateType:  e.AggregateType,
		AggregateID:    e.AggregateID,
		EventID:        e.EventID,
		IdempotencyKey: e.IdempotencyKey,
		RequestID:      e.RequestID,
		Payload:        NewJSONColumn(e.Payload),
		OccurredAt:     e.OccurredAt,
	}
}
