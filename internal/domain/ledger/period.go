package ledger

import (
	"sort"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// FiscalYearStatus is the state of a fiscal year
type FiscalYearStatus string

const (
	FiscalYearStatusOpen   FiscalYearStatus = "open"
	FiscalYearStatusClosed FiscalYearStatus = "closed"
)

// FiscalYear is a tenant's accounting year
type FiscalYear struct {
	shared.TenantAggregateRoot
	Name      string
	StartDate time.Time
	EndDate   time.Time
	Status    FiscalYearStatus
	ClosedAt  *time.Time
	ClosedBy  *uuid.UUID
}

// NewFiscalYear creates an open fiscal year covering [start, end]
func NewFiscalYear(tenantID uuid.UUID, name string, start, end time.Time) (*FiscalYear, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewValidationError("fiscal year name cannot be empty")
	}
	start, end = TruncateDate(start), TruncateDate(end)
	if !end.After(start) {
		return nil, shared.NewValidationError("fiscal year must end after it starts")
	}
	if end.After(start.AddDate(1, 1, 0)) {
		return nil, shared.NewValidationError("fiscal year cannot span more than 13 months")
	}
	return &FiscalYear{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
		StartDate:           start,
		EndDate:             end,
		Status:              FiscalYearStatusOpen,
	}, nil
}

// IsOpen reports whether the year accepts postings
func (y *FiscalYear) IsOpen() bool {
	return y.Status == FiscalYearStatusOpen
}

// Close closes the year. Periods are closed by the caller.
func (y *FiscalYear) Close(closedBy uuid.UUID) error {
	if !y.IsOpen() {
		return shared.NewInvalidStateError("fiscal year %s is already closed", y.Name)
	}
	now := time.Now()
	y.Status = FiscalYearStatusClosed
	y.ClosedAt = &now
	y.ClosedBy = &closedBy
	y.UpdatedAt = now
	return nil
}

// GenerateMonthlyPeriods splits the year into calendar-month periods, the
// first and last possibly partial.
func (y *FiscalYear) GenerateMonthlyPeriods() []*AccountingPeriod {
	var periods []*AccountingPeriod
	start := y.StartDate
	for !start.After(y.EndDate) {
		monthEnd := time.Date(start.Year(), start.Month()+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
		end := monthEnd
		if end.After(y.EndDate) {
			end = y.EndDate
		}
		periods = append(periods, &AccountingPeriod{
			TenantAggregateRoot: shared.NewTenantAggregateRoot(y.TenantID),
			FiscalYearID:        y.ID,
			Name:                start.Format("2006-01"),
			StartDate:           start,
			EndDate:             end,
		})
		start = end.AddDate(0, 0, 1)
	}
	return periods
}

// AccountingPeriod is a date range inside a fiscal year that gates postings
type AccountingPeriod struct {
	shared.TenantAggregateRoot
	FiscalYearID uuid.UUID
	Name         string
	StartDate    time.Time
	EndDate      time.Time
	Closed       bool
	ClosedAt     *time.Time
	ClosedBy     *uuid.UUID
}

// Contains reports whether date falls in the period, both ends inclusive
func (p *AccountingPeriod) Contains(date time.Time) bool {
	d := TruncateDate(date)
	return !d.Before(p.StartDate) && !d.After(p.EndDate)
}

// Overlaps reports whether two periods share at least one day
func (p *AccountingPeriod) Overlaps(other *AccountingPeriod) bool {
	return !p.EndDate.Before(other.StartDate) && !other.EndDate.Before(p.StartDate)
}

// Close closes the period for postings
func (p *AccountingPeriod) Close(closedBy uuid.UUID) error {
	if p.Closed {
		return shared.NewInvalidStateError("period %s is already closed", p.Name)
	}
	now := time.Now()
	p.Closed = true
	p.ClosedAt = &now
	p.ClosedBy = &closedBy
	p.UpdatedAt = now
	return nil
}

// Reopen reopens a closed period. The fiscal year must still be open.
func (p *AccountingPeriod) Reopen(year *FiscalYear) error {
	if !p.Closed {
		return shared.NewInvalidStateError("period %s is not closed", p.Name)
	}
	if year == nil || !year.IsOpen() {
		return shared.NewInvalidStateError("cannot reopen period %s of a closed fiscal year", p.Name)
	}
	p.Closed = false
	p.ClosedAt = nil
	p.ClosedBy = nil
	p.UpdatedAt = time.Now()
	return nil
}

// PeriodResolution is the outcome of ResolveOpenPeriod
type PeriodResolution struct {
	Period *AccountingPeriod
	// Overlapping lists every open period that matched when more than one
	// did. A non-empty value is a data integrity problem.
	Overlapping []*AccountingPeriod
}

// ResolveOpenPeriod picks the open period of an open fiscal year that
// contains date. When several match, the earliest start date wins and the
// matches are reported in Overlapping.
func ResolveOpenPeriod(periods []*AccountingPeriod, years map[uuid.UUID]*FiscalYear, date time.Time) (PeriodResolution, error) {
	var matches []*AccountingPeriod
	for _, p := range periods {
		if p.Closed || !p.Contains(date) {
			continue
		}
		year, ok := years[p.FiscalYearID]
		if !ok || !year.IsOpen() {
			continue
		}
		matches = append(matches, p)
	}

	if len(matches) == 0 {
		return PeriodResolution{}, shared.NewNoOpenPeriodError("no open accounting period for %s", TruncateDate(date).Format("2006-01-02"))
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].StartDate.Equal(matches[j].StartDate) {
			return matches[i].ID.String() < matches[j].ID.String()
		}
		return matches[i].StartDate.Before(matches[j].StartDate)
	})

	res := PeriodResolution{Period: matches[0]}
	if len(matches) > 1 {
		res.Overlapping = matches
	}
	return res, nil
}

// EnsureNoOverlap rejects candidate if it overlaps any existing period
func EnsureNoOverlap(existing []*AccountingPeriod, candidate *AccountingPeriod) error {
	for _, p := range existing {
		if p.ID != candidate.ID && p.Overlaps(candidate) {
			return shared.NewValidationError("period %s overlaps existing period %s", candidate.Name, p.Name)
		}
	}
	return nil
}
