package audit

import (
	"context"

	"github.com/erp/ledger/internal/application/unitofwork"
	"github.com/erp/ledger/internal/domain/audit"
	"github.com/erp/ledger/internal/domain/shared"
)

// Service reads the audit trail
type Service struct {
	scope unitofwork.Scope
}

// NewService creates a new audit Service
func NewService(scope unitofwork.Scope) *Service {
	return &Service{scope: scope}
}

// ListEntries returns a page of the tenant's audit entries, newest first
func (s *Service) ListEntries(ctx context.Context, op shared.OpContext, filter audit.Filter) (shared.Paginated[*audit.Entry], error) {
	if err := shared.Authorize(op, shared.PermAuditRead); err != nil {
		return shared.Paginated[*audit.Entry]{}, err
	}
	var (
		items []*audit.Entry
		total int64
	)
	err := s.scope.Execute(ctx, func(ctx context.Context, repos unitofwork.Repositories) error {
		var err error
		items, total, err = repos.Audit().List(ctx, op.TenantID, filter)
		return err
	})
	if err != nil {
		return shared.Paginated[*audit.Entry]{}, err
	}
	return shared.NewPaginated(items, total, filter.Page, filter.Limit()), nil
}
