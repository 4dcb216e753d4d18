package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/erp/ledger/internal/application/unitofwork"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PeriodGatekeeper decides which accounting period a posting date falls in
type PeriodGatekeeper struct {
	logger *zap.Logger
}

// NewPeriodGatekeeper creates a gatekeeper
func NewPeriodGatekeeper(logger *zap.Logger) *PeriodGatekeeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeriodGatekeeper{logger: logger}
}

// Resolve returns the open period of an open fiscal year containing date.
// Overlapping matches resolve to the earliest start and are logged, since
// period creation is supposed to prevent them.
func (g *PeriodGatekeeper) Resolve(ctx context.Context, repo ledger.PeriodRepository, tenantID uuid.UUID, date time.Time) (*ledger.AccountingPeriod, error) {
	periods, err := repo.ListPeriods(ctx, tenantID, nil)
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	years, err := repo.ListFiscalYears(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list fiscal years: %w", err)
	}
	byID := make(map[uuid.UUID]*ledger.FiscalYear, len(years))
	for _, y := range years {
		byID[y.ID] = y
	}

	res, err := ledger.ResolveOpenPeriod(periods, byID, date)
	if err != nil {
		return nil, err
	}
	if len(res.Overlapping) > 0 {
		ids := make([]string, 0, len(res.Overlapping))
		for _, p := range res.Overlapping {
			ids = append(ids, p.ID.String())
		}
		g.logger.Warn("overlapping open accounting periods",
			zap.String("tenant_id", tenantID.String()),
			zap.String("date", ledger.TruncateDate(date).Format("2006-01-02")),
			zap.Strings("period_ids", ids),
			zap.String("chosen_period_id", res.Period.ID.String()),
		)
	}
	return res.Period, nil
}

// EnsureOpen checks that a stored period and its fiscal year still accept
// postings.
func (g *PeriodGatekeeper) EnsureOpen(ctx context.Context, repo ledger.PeriodRepository, tenantID, periodID uuid.UUID) error {
	period, err := repo.FindPeriod(ctx, tenantID, periodID)
	if err != nil {
		return err
	}
	if period.Closed {
		return shared.NewNoOpenPeriodError("accounting period %s is closed", period.Name)
	}
	year, err := repo.FindFiscalYear(ctx, tenantID, period.FiscalYearID)
	if err != nil {
		return err
	}
	if !year.IsOpen() {
		return shared.NewNoOpenPeriodError("fiscal year %s is closed", year.Name)
	}
	return nil
}

// CreateFiscalYearInput describes a new fiscal year
type CreateFiscalYearInput struct {
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	// SkipPeriods leaves the year without monthly periods
	SkipPeriods bool `json:"skip_periods"`
}

// FiscalYearView is a fiscal year with its periods
type FiscalYearView struct {
	Year    *ledger.FiscalYear
	Periods []*ledger.AccountingPeriod
}

// PeriodService manages fiscal years and accounting periods
type PeriodService struct {
	scope      unitofwork.Scope
	gatekeeper *PeriodGatekeeper
	logger     *zap.Logger
}

// NewPeriodService creates a new PeriodService
func NewPeriodService(scope unitofwork.Scope, gatekeeper *PeriodGatekeeper, logger *zap.Logger) *PeriodService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeriodService{scope: scope, gatekeeper: gatekeeper, logger: logger}
}

// ResolveOpenPeriod returns the open period containing date
func (s *PeriodService) ResolveOpenPeriod(ctx context.Context, op shared.OpContext, date time.Time) (*ledger.AccountingPeriod, error) {
	if err := shared.Authorize(op, shared.PermPeriodRead); err != nil {
		return nil, err
	}
	var period *ledger.AccountingPeriod
	err := s.scope.Execute(ctx, func(ctx context.Context, repos unitofwork.Repositories) error {
		var err error
		period, err = s.gatekeeper.Resolve(ctx, repos.Periods(), op.TenantID, date)
		return err
	})
	return period, err
}

// CreateFiscalYear creates a fiscal year and, unless skipped, one period per
// calendar month. Periods overlapping existing ones are rejected.
func (s *PeriodService) CreateFiscalYear(ctx context.Context, op shared.OpContext, in CreateFiscalYearInput) (*FiscalYearView, error) {
	if err := shared.Authorize(op, shared.PermPeriodManage); err != nil {
		return nil, err
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "period", "create_fiscal_year")
	defer span.End()

	year, err := ledger.NewFiscalYear(op.TenantID, in.Name, in.StartDate, in.EndDate)
	if err != nil {
		return nil, err
	}
	view := &FiscalYearView{Year: year}
	if !in.SkipPeriods {
		view.Periods = year.GenerateMonthlyPeriods()
	}

	err = s.scope.Execute(ctx, func(ctx context.Context, repos unitofwork.Repositories) error {
		existing, err := repos.Periods().ListPeriods(ctx, op.TenantID, nil)
		if err != nil {
			return fmt.Errorf("list periods: %w", err)
		}
		for _, p := range view.Periods {
			if err := ledger.EnsureNoOverlap(existing, p); err != nil {
				return err
			}
		}
		years, err := repos.Periods().ListFiscalYears(ctx, op.TenantID)
		if err != nil {
			return fmt.Errorf("list fiscal years: %w", err)
		}
		for _, y := range years {
			if strings.EqualFold(y.Name, year.Name) {
				return shared.NewConflictError("fiscal year %s already exists", year.Name)
			}
		}

		if err := repos.Periods().CreateFiscalYear(ctx, year); err != nil {
			return err
		}
		for _, p := range view.Periods {
			if err := repos.Periods().CreatePeriod(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("fiscal year created",
		zap.String("tenant_id", op.TenantID.String()),
		zap.String("fiscal_year_id", year.ID.String()),
		zap.String("name", year.Name),
		zap.Int("periods", len(view.Periods)),
	)
	return view, nil
}

// ClosePeriod closes a period for postings
func (s *PeriodService) ClosePeriod(ctx context.Context, op shared.OpContext, periodID uuid.UUID) (*ledger.AccountingPeriod, error) {
	return s.changePeriod(ctx, op, periodID, "closed", func(ctx context.Context, repos unitofwork.Repositories, p *ledger.AccountingPeriod) error {
		return p.Close(op.ActorID)
	})
}

// ReopenPeriod reopens a closed period of an open fiscal year
func (s *PeriodService) ReopenPeriod(ctx context.Context, op shared.OpContext, periodID uuid.UUID) (*ledger.AccountingPeriod, error) {
	return s.changePeriod(ctx, op, periodID, "reopened", func(ctx context.Context, repos unitofwork.Repositories, p *ledger.AccountingPeriod) error {
		year, err := repos.Periods().FindFiscalYear(ctx, op.TenantID, p.FiscalYearID)
		if err != nil {
			return err
		}
		return p.Reopen(year)
	})
}

func (s *PeriodService) changePeriod(
	ctx context.Context,
	op shared.OpContext,
	periodID uuid.UUID,
	action string,
	change func(ctx context.Context, repos unitofwork.Repositories, p *ledger.AccountingPeriod) error,
) (*ledger.AccountingPeriod, error) {
	if err := shared.Authorize(op, shared.PermPeriodManage); err != nil {
		return nil, err
	}
	var period *ledger.AccountingPeriod
	err := s.scope.Execute(ctx, func(ctx context.Context, repos unitofwork.Repositories) error {
		p, err := repos.Periods().FindPeriod(ctx, op.TenantID, periodID)
		if err != nil {
			return err
		}
		if err := change(ctx, repos, p); err != nil {
			return err
		}
		if err := repos.Periods().UpdatePeriod(ctx, p); err != nil {
			return err
		}
		period = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("accounting period "+action,
		zap.String("tenant_id", op.TenantID.String()),
		zap.String("period_id", period.ID.String()),
		zap.String("name", period.Name),
		zap.String("actor_id", op.ActorID.String()),
	)
	return period, nil
}

// CloseFiscalYear closes the year and every period in it
func (s *PeriodService) CloseFiscalYear(ctx context.Context, op shared.OpContext, yearID uuid.UUID) (*FiscalYearView, error) {
	if err := shared.Authorize(op, shared.PermPeriodManage); err != nil {
		return nil, err
	}
	view := &FiscalYearView{}
	err := s.scope.Execute(ctx, func(ctx context.Context, repos unitofwork.Repositories) error {
		year, err := repos.Periods().FindFiscalYear(ctx, op.TenantID, yearID)
		if err != nil {
			return err
		}
		if err := year.Close(op.ActorID); err != nil {
			return err
		}
		periods, err := repos.Periods().ListPeriods(ctx, op.TenantID, &year.ID)
		if err != nil {
			return fmt.Errorf("list periods: %w", err)
		}
		for _, p := range periods {
			if p.Closed {
				continue
			}
			if err := p.Close(op.ActorID); err != nil {
				return err
			}
			if err := repos.Periods().UpdatePeriod(ctx, p); err != nil {
				return err
			}
		}
		if err := repos.Periods().UpdateFiscalYear(ctx, year); err != nil {
			return err
		}
		view.Year, view.Periods = year, periods
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("fiscal year closed",
		zap.String("tenant_id", op.TenantID.String()),
		zap.String("fiscal_year_id", yearID.String()),
		zap.Int("periods", len(view.Periods)),
	)
	return view, nil
}

// ListFiscalYears returns the tenant's fiscal years
func (s *PeriodService) ListFiscalYears(ctx context.Context, op shared.OpContext) ([]*ledger.FiscalYear, error) {
	if err := shared.Authorize(op, shared.PermPeriodRead); err != nil {
		return nil, err
	}
	var years []*ledger.FiscalYear
	err := s.scope.Execute(ctx, func(ctx context.Context, repos unitofwork.Repositories) error {
		var err error
		years, err = repos.Periods().ListFiscalYears(ctx, op.TenantID)
		return err
	})
	return years, err
}

// ListPeriods returns periods ordered by start date, optionally of one year
func (s *PeriodService) ListPeriods(ctx context.Context, op shared.OpContext, fiscalYearID *uuid.UUID) ([]*ledger.AccountingPeriod, error) {
	if err := shared.Authorize(op, shared.PermPeriodRead); err != nil {
		return nil, err
	}
	var periods []*ledger.AccountingPeriod
	err := s.scope.Execute(ctx, func(ctx context.Context, repos unitofwork.Repositories) error {
		var err error
		periods, err = repos.Periods().ListPeriods(ctx, op.TenantID, fiscalYearID)
		return err
	})
	return periods, err
}
