package finance

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/application/unitofwork"
	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReceivableService reads the accounts receivable projection
type ReceivableService struct {
	scope  unitofwork.Scope
	clock  Clock
	logger *zap.Logger
}

// NewReceivableService creates a new ReceivableService
func NewReceivableService(scope unitofwork.Scope, clock Clock, logger *zap.Logger) *ReceivableService {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReceivableService{scope: scope, clock: clock, logger: logger}
}

// AgingSummary totals the tenant's outstanding receivables per aging bucket.
// A zero asOf means now.
func (s *ReceivableService) AgingSummary(ctx context.Context, op shared.OpContext, asOf time.Time) (*finance.AgingSummary, error) {
	if err := shared.Authorize(op, shared.PermReceivableRead); err != nil {
		return nil, err
	}
	if asOf.IsZero() {
		asOf = s.clock()
	}
	var rows []*finance.Receivable
	err := s.scope.Execute(ctx, func(ctx context.Context, repos unitofwork.Repositories) error {
		var err error
		rows, err = repos.Receivables().ListOutstanding(ctx, op.TenantID)
		return err
	})
	if err != nil {
		return nil, err
	}
	summary := finance.SummarizeAging(rows, asOf)
	return &summary, nil
}

// ListReceivables returns a page of receivables, optionally of one customer
func (s *ReceivableService) ListReceivables(ctx context.Context, op shared.OpContext, filter finance.ReceivableFilter) (shared.Paginated[*finance.Receivable], error) {
	if err := shared.Authorize(op, shared.PermReceivableRead); err != nil {
		return shared.Paginated[*finance.Receivable]{}, err
	}
	var (
		rows  []*finance.Receivable
		total int64
	)
	err := s.scope.Execute(ctx, func(ctx context.Context, repos unitofwork.Repositories) error {
		var err error
		rows, total, err = repos.Receivables().List(ctx, op.TenantID, filter)
		return err
	})
	if err != nil {
		return shared.Paginated[*finance.Receivable]{}, err
	}
	return shared.NewPaginated(rows, total, filter.Page, filter.Limit()), nil
}

// RefreshAging rewrites the stored aging bucket of outstanding rows whose
// bucket moved since they were last written. A nil tenant refreshes every
// tenant; it is meant for the admin CLI and scheduled jobs.
func (s *ReceivableService) RefreshAging(ctx context.Context, tenantID uuid.UUID) (int, error) {
	asOf := s.clock()
	var updated int
	err := s.scope.Execute(ctx, func(ctx context.Context, repos unitofwork.Repositories) error {
		rows, err := repos.Receivables().ListOutstanding(ctx, tenantID)
		if err != nil {
			return err
		}
		for _, r := range rows {
			if !r.RefreshAging(asOf) {
				continue
			}
			if err := repos.Receivables().Save(ctx, r); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("receivable aging refreshed",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("updated", updated),
		zap.Time("as_of", asOf),
	)
	return updated, nil
}
