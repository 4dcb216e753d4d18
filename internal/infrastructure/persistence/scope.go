package persistence

import (
	"context"

	"github.com/erp/ledger/internal/application/unitofwork"
	"github.com/erp/ledger/internal/domain/audit"
	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/idempotency"
	"github.com/erp/ledger/internal/domain/ledger"
	"gorm.io/gorm"
)

type txKey struct{}

func contextWithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func txFromContext(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	return tx, ok
}

// conn returns the transaction carried by ctx, or db when there is none.
// Repositories built on the root handle still join an enclosing unit of work.
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := txFromContext(ctx); ok {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

// GormScope implements unitofwork.Scope using GORM transactions.
type GormScope struct {
	db      *gorm.DB
	mapping *StorageMapping
}

// NewGormScope creates a new GormScope
func NewGormScope(db *gorm.DB, mapping *StorageMapping) *GormScope {
	if mapping == nil {
		mapping = DefaultStorageMapping()
	}
	return &GormScope{db: db, mapping: mapping}
}

// Execute runs fn within a database transaction. A ctx that already carries
// a transaction gets a savepoint instead, so a failing nested unit rolls back
// alone.
func (s *GormScope) Execute(ctx context.Context, fn func(ctx context.Context, repos unitofwork.Repositories) error) error {
	parent, nested := txFromContext(ctx)
	if !nested {
		parent = s.db
	}
	return parent.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := contextWithTx(ctx, tx)
		return fn(txCtx, &gormRepositories{tx: tx, mapping: s.mapping})
	})
}

// gormRepositories provides access to all repositories within a transaction.
type gormRepositories struct {
	tx      *gorm.DB
	mapping *StorageMapping
}

func (r *gormRepositories) Accounts() ledger.AccountRepository {
	return NewGormAccountRepository(r.tx, r.mapping)
}

func (r *gormRepositories) Transactions() ledger.TransactionRepository {
	return NewGormTransactionRepository(r.tx)
}

func (r *gormRepositories) Periods() ledger.PeriodRepository {
	return NewGormPeriodRepository(r.tx)
}

func (r *gormRepositories) Invoices() finance.InvoiceRepository {
	return NewGormInvoiceRepository(r.tx)
}

func (r *gormRepositories) Payments() finance.PaymentRepository {
	return NewGormPaymentRepository(r.tx)
}

func (r *gormRepositories) Allocations() finance.AllocationRepository {
	return NewGormAllocationRepository(r.tx)
}

func (r *gormRepositories) Receivables() finance.ReceivableRepository {
	return NewGormReceivableRepository(r.tx)
}

func (r *gormRepositories) Idempotency() idempotency.Store {
	return NewGormIdempotencyStore(r.tx)
}

func (r *gormRepositories) Audit() audit.Repository {
	return NewGormAuditRepository(r.tx)
}

// Ensure GormScope implements unitofwork.Scope
var _ unitofwork.Scope = (*GormScope)(nil)

// Ensure gormRepositories implements unitofwork.Repositories
var _ unitofwork.Repositories = (*gormRepositories)(nil)
