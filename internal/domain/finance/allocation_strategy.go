package finance

import (
	"sort"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationStrategyType names an automatic allocation strategy
type AllocationStrategyType string

const (
	AllocationStrategyFIFO   AllocationStrategyType = "fifo"   // oldest due date first
	AllocationStrategyManual AllocationStrategyType = "manual" // caller-chosen targets in order
)

// ParseAllocationStrategyType parses a strategy name, defaulting to FIFO
func ParseAllocationStrategyType(s string) (AllocationStrategyType, error) {
	switch t := AllocationStrategyType(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return AllocationStrategyFIFO, nil
	case AllocationStrategyFIFO, AllocationStrategyManual:
		return t, nil
	default:
		return "", shared.NewValidationError("unknown allocation strategy %q", s)
	}
}

// AllocationTarget is an open invoice considered for allocation
type AllocationTarget struct {
	ID                uuid.UUID
	Number            string
	OutstandingAmount decimal.Decimal
	DueDate           time.Time
	IssueDate         time.Time
	CreatedAt         time.Time
}

// TargetFromInvoice builds an allocation target from an open invoice
func TargetFromInvoice(inv *Invoice) AllocationTarget {
	return AllocationTarget{
		ID:                inv.ID,
		Number:            inv.InvoiceNumber,
		OutstandingAmount: inv.BalanceDue,
		DueDate:           inv.DueDate,
		IssueDate:         inv.IssueDate,
		CreatedAt:         inv.CreatedAt,
	}
}

// AllocationResult is one planned allocation
type AllocationResult struct {
	TargetID     uuid.UUID
	TargetNumber string
	Amount       decimal.Decimal
}

// AllocationPlan is the outcome of running a strategy
type AllocationPlan struct {
	Allocations          []AllocationResult
	TotalAllocated       decimal.Decimal
	RemainingAmount      decimal.Decimal
	FullyAllocated       bool
	TargetsFullyPaid     []uuid.UUID
	TargetsPartiallyPaid []uuid.UUID
}

func newAllocationPlan(amount decimal.Decimal) *AllocationPlan {
	return &AllocationPlan{
		Allocations:          make([]AllocationResult, 0),
		TotalAllocated:       decimal.Zero,
		RemainingAmount:      amount,
		TargetsFullyPaid:     make([]uuid.UUID, 0),
		TargetsPartiallyPaid: make([]uuid.UUID, 0),
	}
}

func (p *AllocationPlan) add(target AllocationTarget, amount decimal.Decimal) {
	p.Allocations = append(p.Allocations, AllocationResult{
		TargetID:     target.ID,
		TargetNumber: target.Number,
		Amount:       amount,
	})
	p.TotalAllocated = p.TotalAllocated.Add(amount)
	p.RemainingAmount = p.RemainingAmount.Sub(amount)
	p.FullyAllocated = p.RemainingAmount.IsZero()
	if amount.GreaterThanOrEqual(target.OutstandingAmount) {
		p.TargetsFullyPaid = append(p.TargetsFullyPaid, target.ID)
	} else {
		p.TargetsPartiallyPaid = append(p.TargetsPartiallyPaid, target.ID)
	}
}

// AllocationStrategy decides how a payment amount is spread over open invoices
type AllocationStrategy interface {
	StrategyType() AllocationStrategyType
	// Plan computes the allocations without changing any aggregate
	Plan(amount decimal.Decimal, targets []AllocationTarget) (*AllocationPlan, error)
}

// FIFOAllocationStrategy pays the oldest due invoices first. Ties on due
// date fall back to issue date, then creation time, then id.
type FIFOAllocationStrategy struct{}

// NewFIFOAllocationStrategy creates a FIFO strategy
func NewFIFOAllocationStrategy() *FIFOAllocationStrategy {
	return &FIFOAllocationStrategy{}
}

// StrategyType returns AllocationStrategyFIFO
func (s *FIFOAllocationStrategy) StrategyType() AllocationStrategyType {
	return AllocationStrategyFIFO
}

// Plan allocates amount in FIFO order until it is exhausted or no target has
// an outstanding balance. A remainder stays unallocated.
func (s *FIFOAllocationStrategy) Plan(amount decimal.Decimal, targets []AllocationTarget) (*AllocationPlan, error) {
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("allocation amount must be positive")
	}
	plan := newAllocationPlan(amount)

	sorted := make([]AllocationTarget, len(targets))
	copy(sorted, targets)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		if !a.IssueDate.Equal(b.IssueDate) {
			return a.IssueDate.Before(b.IssueDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})

	for _, target := range sorted {
		if plan.RemainingAmount.IsZero() {
			break
		}
		if !target.OutstandingAmount.IsPositive() {
			continue
		}
		plan.add(target, decimal.Min(plan.RemainingAmount, target.OutstandingAmount))
	}
	return plan, nil
}

// ManualAllocationRequest asks for an allocation to a specific invoice. A
// zero amount takes as much as possible.
type ManualAllocationRequest struct {
	TargetID uuid.UUID
	Amount   decimal.Decimal
}

// ManualAllocationStrategy allocates to caller-chosen invoices in the given
// order. Unlike FIFO it rejects requests it cannot honour instead of capping
// them.
type ManualAllocationStrategy struct {
	requests []ManualAllocationRequest
}

// NewManualAllocationStrategy creates a manual strategy
func NewManualAllocationStrategy(requests []ManualAllocationRequest) *ManualAllocationStrategy {
	return &ManualAllocationStrategy{requests: requests}
}

// StrategyType returns AllocationStrategyManual
func (s *ManualAllocationStrategy) StrategyType() AllocationStrategyType {
	return AllocationStrategyManual
}

// Requests returns the configured requests
func (s *ManualAllocationStrategy) Requests() []ManualAllocationRequest {
	return s.requests
}

// Plan validates every request against the open targets and the amount
func (s *ManualAllocationStrategy) Plan(amount decimal.Decimal, targets []AllocationTarget) (*AllocationPlan, error) {
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("allocation amount must be positive")
	}
	if len(s.requests) == 0 {
		return nil, shared.NewValidationError("manual allocation needs at least one target")
	}
	plan := newAllocationPlan(amount)

	open := make(map[uuid.UUID]*AllocationTarget, len(targets))
	for i := range targets {
		open[targets[i].ID] = &targets[i]
	}

	for _, req := range s.requests {
		target, ok := open[req.TargetID]
		if !ok {
			return nil, shared.NewNotFoundError("open invoice " + req.TargetID.String())
		}
		if req.Amount.IsNegative() {
			return nil, shared.NewValidationError("allocation amount cannot be negative")
		}
		if !target.OutstandingAmount.IsPositive() || plan.RemainingAmount.IsZero() {
			if req.Amount.IsZero() {
				continue
			}
		}

		alloc := req.Amount
		if alloc.IsZero() {
			alloc = decimal.Min(plan.RemainingAmount, target.OutstandingAmount)
		}
		if alloc.GreaterThan(plan.RemainingAmount) {
			return nil, shared.NewOverAllocationError("requested %s exceeds the %s left on the payment", alloc, plan.RemainingAmount)
		}
		if alloc.GreaterThan(target.OutstandingAmount) {
			return nil, shared.NewOverAllocationError("requested %s exceeds balance due %s of invoice %s",
				alloc, target.OutstandingAmount, target.Number)
		}

		plan.add(*target, alloc)
		target.OutstandingAmount = target.OutstandingAmount.Sub(alloc)
	}
	return plan, nil
}

// NewAllocationStrategy returns the strategy for t. Manual strategies need
// their requests.
func NewAllocationStrategy(t AllocationStrategyType, manual []ManualAllocationRequest) (AllocationStrategy, error) {
	switch t {
	case AllocationStrategyFIFO, "":
		return NewFIFOAllocationStrategy(), nil
	case AllocationStrategyManual:
		return NewManualAllocationStrategy(manual), nil
	default:
		return nil, shared.NewValidationError("unknown allocation strategy %q", t)
	}
}
