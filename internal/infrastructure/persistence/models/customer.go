package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/finance/acl"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerRefModel is the local copy of a customer known to the finance context
type CustomerRefModel struct {
	TenantID    uuid.UUID        `gorm:"type:uuid;primaryKey"`
	CustomerID  uuid.UUID        `gorm:"type:uuid;primaryKey"`
	Code        string           `gorm:"type:varchar(50)"`
	Name        string           `gorm:"type:varchar(200);not null"`
	Currency    string           `gorm:"type:varchar(3)"`
	CreditLimit *decimal.Decimal `gorm:"type:decimal(18,4)"`
	IsActive    bool             `gorm:"not null"`
	UpdatedAt   time.Time        `gorm:"not null"`
}

// ToDomain converts the persistence model to an acl.CustomerReference
func (m *CustomerRefModel) ToDomain() (acl.CustomerReference, error) {
	return acl.NewCustomerReference(m.CustomerID, m.Code, m.Name, valueobject.Currency(m.Currency), m.CreditLimit, m.IsActive)
}

// CustomerRefModelFromDomain creates a persistence model from a reference
func CustomerRefModelFromDomain(tenantID uuid.UUID, ref acl.CustomerReference) *CustomerRefModel {
	return &CustomerRefModel{
		TenantID:    tenantID,
		CustomerID:  ref.ID(),
		Code:        ref.Code(),
		Name:        ref.Name(),
		Currency:    ref.Currency().String(),
		CreditLimit: ref.CreditLimit(),
		IsActive:    ref.IsActive(),
		UpdatedAt:   time.Now(),
	}
}
