// Package unitofwork defines the transactional boundary every public ledger
// operation runs in.
package unitofwork

import (
	"context"

	"github.com/erp/ledger/internal/domain/audit"
	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/idempotency"
	"github.com/erp/ledger/internal/domain/ledger"
)

// Scope runs a function as one atomic unit of work.
type Scope interface {
	// Execute runs fn inside a database transaction. The transaction is
	// committed when fn returns nil and rolled back otherwise. When ctx
	// already carries a transaction, fn runs in a savepoint of it, so a
	// failing nested unit can be discarded without aborting the outer one.
	Execute(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// Repositories gives access to every repository bound to the current
// transaction.
type Repositories interface {
	Accounts() ledger.AccountRepository
	Transactions() ledger.TransactionRepository
	Periods() ledger.PeriodRepository
	Invoices() finance.InvoiceRepository
	Payments() finance.PaymentRepository
	Allocations() finance.AllocationRepository
	Receivables() finance.ReceivableRepository
	Idempotency() idempotency.Store
	Audit() audit.Repository
}
