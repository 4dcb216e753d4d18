package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// TenantModel provides the persistence fields shared by every tenant-scoped
// aggregate. Version backs optimistic locking.
type TenantModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Version   int       `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// FromDomainTenantAggregateRoot populates TenantModel from a domain TenantAggregateRoot
func (m *TenantModel) FromDomainTenantAggregateRoot(a shared.TenantAggregateRoot) {
	m.ID = a.ID
	m.TenantID = a.TenantID
	m.Version = a.Version
	m.CreatedAt = a.CreatedAt
	m.UpdatedAt = a.UpdatedAt
}

// ToDomainTenantAggregateRoot converts TenantModel to a domain TenantAggregateRoot
func (m *TenantModel) ToDomainTenantAggregateRoot() shared.TenantAggregateRoot {
	return shared.TenantAggregateRoot{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		TenantID: m.TenantID,
		Version:  m.Version,
	}
}
