package persistence

import (
	"context"
	"strings"

	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormPaymentRepository implements finance.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindByID finds a payment by ID within a tenant
func (r *GormPaymentRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*finance.Payment, error) {
	var model models.PaymentModel
	if err := conn(ctx, r.db).Where("tenant_id = ? AND id = ?", tenantID, id).First(&model).Error; err != nil {
		return nil, notFound("payment", err)
	}
	return model.ToDomain(), nil
}

// FindByIdempotencyKey returns the payment recorded under key
func (r *GormPaymentRepository) FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*finance.Payment, error) {
	if strings.TrimSpace(key) == "" {
		return nil, shared.NewNotFoundError("payment")
	}
	var model models.PaymentModel
	if err := conn(ctx, r.db).Where("tenant_id = ? AND idempotency_key = ?", tenantID, key).First(&model).Error; err != nil {
		return nil, notFound("payment", err)
	}
	return model.ToDomain(), nil
}

// Create inserts a payment
func (r *GormPaymentRepository) Create(ctx context.Context, p *finance.Payment) error {
	model := &models.PaymentModel{}
	model.FromDomain(p)
	if err := conn(ctx, r.db).Create(model).Error; err != nil {
		if IsUniqueViolation(err) && p.IdempotencyKey == "" {
			return shared.NewConflictError("payment number %q already exists", p.PaymentNumber)
		}
		return TranslateError("create payment", err)
	}
	return nil
}

// Update persists the payment guarded by the version
func (r *GormPaymentRepository) Update(ctx context.Context, p *finance.Payment) error {
	model := &models.PaymentModel{}
	model.FromDomain(p)
	model.Version = p.Version + 1

	result := conn(ctx, r.db).Model(model).
		Where("tenant_id = ? AND version = ?", p.TenantID, p.Version).
		Select("*").Omit("id", "tenant_id", "created_at").
		Updates(model)
	if result.Error != nil {
		return TranslateError("update payment", result.Error)
	}
	if result.RowsAffected == 0 {
		return concurrencyConflict("payment")
	}
	p.Version = model.Version
	return nil
}

// SumUnallocated totals amount minus allocated amount over the customer's payments
func (r *GormPaymentRepository) SumUnallocated(ctx context.Context, tenantID, customerID uuid.UUID) (decimal.Decimal, error) {
	var sum struct {
		Unallocated decimal.Decimal
	}
	err := conn(ctx, r.db).Model(&models.PaymentModel{}).
		Select("COALESCE(SUM(amount - allocated_amount), 0) AS unallocated").
		Where("tenant_id = ? AND customer_id = ?", tenantID, customerID).
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, TranslateError("sum unallocated payments", err)
	}
	return sum.Unallocated.Round(4), nil
}

// Ensure GormPaymentRepository implements finance.PaymentRepository
var _ finance.PaymentRepository = (*GormPaymentRepository)(nil)

// GormAllocationRepository implements finance.AllocationRepository using GORM
type GormAllocationRepository struct {
	db *gorm.DB
}

// NewGormAllocationRepository creates a new GormAllocationRepository
func NewGormAllocationRepository(db *gorm.DB) *GormAllocationRepository {
	return &GormAllocationRepository{db: db}
}

// FindByID finds an allocation by ID within a tenant
func (r *GormAllocationRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*finance.PaymentAllocation, error) {
	var model models.PaymentAllocationModel
	if err := conn(ctx, r.db).Where("tenant_id = ? AND id = ?", tenantID, id).First(&model).Error; err != nil {
		return nil, notFound("allocation", err)
	}
	return model.ToDomain(), nil
}

// ListByPayment returns the payment's allocations in creation order
func (r *GormAllocationRepository) ListByPayment(ctx context.Context, tenantID, paymentID uuid.UUID) ([]*finance.PaymentAllocation, error) {
	return r.list(ctx, "list allocations by payment", "tenant_id = ? AND payment_id = ?", tenantID, paymentID)
}

// ListByInvoice returns the invoice's allocations in creation order
func (r *GormAllocationRepository) ListByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]*finance.PaymentAllocation, error) {
	return r.list(ctx, "list allocations by invoice", "tenant_id = ? AND invoice_id = ?", tenantID, invoiceID)
}

func (r *GormAllocationRepository) list(ctx context.Context, op, where string, args ...any) ([]*finance.PaymentAllocation, error) {
	var rows []models.PaymentAllocationModel
	if err := conn(ctx, r.db).Where(where, args...).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, TranslateError(op, err)
	}
	out := make([]*finance.PaymentAllocation, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// Create inserts an allocation
func (r *GormAllocationRepository) Create(ctx context.Context, a *finance.PaymentAllocation) error {
	model := &models.PaymentAllocationModel{}
	model.FromDomain(a)
	if err := conn(ctx, r.db).Create(model).Error; err != nil {
		return TranslateError("create allocation", err)
	}
	return nil
}

// Update persists the allocation guarded by the version
func (r *GormAllocationRepository) Update(ctx context.Context, a *finance.PaymentAllocation) error {
	model := &models.PaymentAllocationModel{}
	model.FromDomain(a)
	model.Version = a.Version + 1

	result := conn(ctx, r.db).Model(model).
		Where("tenant_id = ? AND version = ?", a.TenantID, a.Version).
		Select("*").Omit("id", "tenant_id", "created_at").
		Updates(model)
	if result.Error != nil {
		return TranslateError("update allocation", result.Error)
	}
	if result.RowsAffected == 0 {
		return concurrencyConflict("allocation")
	}
	a.Version = model.Version
	return nil
}

// Ensure GormAllocationRepository implements finance.AllocationRepository
var _ finance.AllocationRepository = (*GormAllocationRepository)(nil)
