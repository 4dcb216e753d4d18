package finance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/ledger/internal/application/idempotency"
	appledger "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/application/unitofwork"
	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/finance/acl"
	idem "github.com/erp/ledger/internal/domain/idempotency"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Operation names used as idempotency scopes
const (
	OperationRecordPayment       = "payment.record"
	OperationAllocatePayment     = "payment.allocate"
	OperationAutoAllocatePayment = "payment.auto_allocate"
	OperationRefundAllocation    = "allocation.refund"
)

// Resource types used in idempotency descriptors
const (
	ResourceTypePayment    = "payment"
	ResourceTypeAllocation = "payment_allocation"
)

// SourceTypePayment marks journal entries produced by payments
const SourceTypePayment = "payment"

// RecordPaymentInput describes a received payment
type RecordPaymentInput struct {
	CustomerID   uuid.UUID             `json:"customer_id"`
	Amount       decimal.Decimal       `json:"amount"`
	Method       finance.PaymentMethod `json:"method"`
	Currency     string                `json:"currency"`
	ExchangeRate decimal.Decimal       `json:"exchange_rate"`
	PaymentDate  time.Time             `json:"payment_date"`
	Reference    string                `json:"reference"`
	Notes        string                `json:"notes"`
}

// AllocatePaymentInput applies part of a payment to one invoice
type AllocatePaymentInput struct {
	InvoiceID uuid.UUID       `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
	Date      time.Time       `json:"date"`
	Notes     string          `json:"notes"`
}

// AutoAllocateInput selects the allocation strategy. Targets are only used by
// the manual strategy.
type AutoAllocateInput struct {
	Strategy string                            `json:"strategy"`
	Targets  []finance.ManualAllocationRequest `json:"targets,omitempty"`
}

// AutoAllocationResult is the outcome of an automatic allocation
type AutoAllocationResult struct {
	Payment     *finance.Payment
	Strategy    finance.AllocationStrategyType
	Allocations []*finance.PaymentAllocation
	Allocated   decimal.Decimal
	Remaining   decimal.Decimal
}

// RefundAllocationInput reverses part of an allocation
type RefundAllocationInput struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

// PaymentView is a payment with its allocations
type PaymentView struct {
	Payment     *finance.Payment
	Allocations []*finance.PaymentAllocation
}

// CustomerBalance summarizes what a customer owes and holds unallocated
type CustomerBalance struct {
	CustomerID        uuid.UUID       `json:"customer_id"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
	OpenInvoices      int             `json:"open_invoices"`
	OverdueAmount     decimal.Decimal `json:"overdue_amount"`
	UnallocatedAmount decimal.Decimal `json:"unallocated_amount"`
	NetBalance        decimal.Decimal `json:"net_balance"`
}

// PaymentService records payments and allocates them to invoices
type PaymentService struct {
	scope     unitofwork.Scope
	guard     *idempotency.Guard
	posting   *appledger.PostingService
	customers acl.CustomerDirectory
	publisher shared.EventPublisher
	cfg       Config
	clock     Clock
	logger    *zap.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	scope unitofwork.Scope,
	guard *idempotency.Guard,
	posting *appledger.PostingService,
	customers acl.CustomerDirectory,
	publisher shared.EventPublisher,
	cfg Config,
	clock Clock,
	logger *zap.Logger,
) *PaymentService {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		scope:     scope,
		guard:     guard,
		posting:   posting,
		customers: customers,
		publisher: publisher,
		cfg:       cfg,
		clock:     clock,
		logger:    logger,
	}
}

// RecordPayment records an unallocated payment. When payment posting is
// enabled it also posts Dr cash / Cr receivable in the base currency.
func (s *PaymentService) RecordPayment(ctx context.Context, op shared.OpContext, in RecordPaymentInput) (*idempotency.Result[*finance.Payment], error) {
	if err := shared.Authorize(op, shared.PermPaymentRecord); err != nil {
		return nil, err
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "record",
		telemetry.WithAttribute(telemetry.SpanAttrCustomerID, in.CustomerID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrAmount, in.Amount.String()),
	)
	defer span.End()

	customer, err := resolveCustomer(ctx, s.customers, s.cfg.RequireRegisteredCustomers, op.TenantID, in.CustomerID)
	if err != nil {
		return nil, err
	}
	var requested valueobject.Currency
	if strings.TrimSpace(in.Currency) != "" {
		if requested, err = valueobject.ParseCurrency(in.Currency); err != nil {
			return nil, err
		}
	}
	currency, err := customer.DocumentCurrency(requested)
	if err != nil {
		return nil, err
	}
	rate, err := s.cfg.documentRate(currency, in.ExchangeRate)
	if err != nil {
		return nil, err
	}

	var existed bool
	res, err := idempotency.Run(ctx, s.guard,
		idempotency.Request{Op: op, Operation: OperationRecordPayment, Payload: in},
		func(ctx context.Context, repos unitofwork.Repositories) (*finance.Payment, idem.Descriptor, error) {
			if op.IdempotencyKey != "" {
				prior, err := repos.Payments().FindByIdempotencyKey(ctx, op.TenantID, op.IdempotencyKey)
				if err == nil {
					existed = true
					return prior, paymentDescriptor(201, prior.ID), nil
				}
				if !errors.Is(err, shared.ErrNotFound) {
					return nil, idem.Descriptor{}, err
				}
			}

			p, err := finance.NewPayment(finance.NewPaymentInput{
				TenantID:       op.TenantID,
				CustomerID:     customer.ID(),
				Amount:         in.Amount,
				Method:         in.Method,
				Currency:       currency,
				ExchangeRate:   rate,
				PaymentDate:    in.PaymentDate,
				Reference:      in.Reference,
				Notes:          in.Notes,
				IdempotencyKey: op.IdempotencyKey,
				RecordedBy:     op.ActorID,
			})
			if err != nil {
				return nil, idem.Descriptor{}, err
			}
			if s.cfg.PostPayments {
				if err := s.postPayment(ctx, repos, op, p); err != nil {
					return nil, idem.Descriptor{}, err
				}
			}
			if err := repos.Payments().Create(ctx, p); err != nil {
				return nil, idem.Descriptor{}, err
			}
			return p, paymentDescriptor(201, p.ID), nil
		},
		s.paymentLoader(op),
	)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if existed {
		res.Idempotent = true
	}

	s.logger.Info("payment recorded",
		zap.String("tenant_id", op.TenantID.String()),
		zap.String("payment_id", res.Data.ID.String()),
		zap.String("payment_number", res.Data.PaymentNumber),
		zap.String("customer_id", res.Data.CustomerID.String()),
		zap.String("amount", res.Data.Amount.String()),
		zap.String("method", string(res.Data.Method)),
		zap.Bool("idempotent", res.Idempotent),
	)
	return res, nil
}

// postPayment books the cash receipt in the base currency, converting the
// payment amount at its exchange rate. The rate is kept on the entry.
func (s *PaymentService) postPayment(ctx context.Context, repos unitofwork.Repositories, op shared.OpContext, p *finance.Payment) error {
	cash, err := accountByCode(ctx, repos, op.TenantID, s.cfg.Accounts.CashAccount(p.Method), "cash")
	if err != nil {
		return err
	}
	receivable, err := accountByCode(ctx, repos, op.TenantID, s.cfg.Accounts.Receivable, "receivable")
	if err != nil {
		return err
	}
	base := s.cfg.baseCurrency()
	amount := base.Convert(p.Amount, p.ExchangeRate)
	tx, err := s.posting.Post(ctx, repos, op, appledger.JournalEntryInput{
		Date:         p.PaymentDate,
		Currency:     base.String(),
		ExchangeRate: p.ExchangeRate,
		Description:  "Payment " + p.PaymentNumber,
		Reference:    &ledger.SourceRef{Type: SourceTypePayment, ID: p.ID},
		Lines: []ledger.LineInput{
			{AccountID: cash.ID, Debit: amount, Description: p.PaymentNumber},
			{AccountID: receivable.ID, Credit: amount, Description: p.PaymentNumber},
		},
	})
	if err != nil {
		return err
	}
	p.SetTransaction(tx.ID)
	return nil
}

// AllocatePayment applies part of a payment to one invoice
func (s *PaymentService) AllocatePayment(ctx context.Context, op shared.OpContext, paymentID uuid.UUID, in AllocatePaymentInput) (*idempotency.Result[*finance.PaymentAllocation], error) {
	if err := shared.Authorize(op, shared.PermPaymentAllocate); err != nil {
		return nil, err
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "allocate",
		telemetry.WithAttribute(telemetry.SpanAttrPaymentID, paymentID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrAmount, in.Amount.String()),
	)
	defer span.End()

	payload := map[string]any{"payment_id": paymentID, "input": in}
	res, err := idempotency.Run(ctx, s.guard,
		idempotency.Request{Op: op, Operation: OperationAllocatePayment, Payload: payload},
		func(ctx context.Context, repos unitofwork.Repositories) (*finance.PaymentAllocation, idem.Descriptor, error) {
			payment, err := repos.Payments().FindByID(ctx, op.TenantID, paymentID)
			if err != nil {
				return nil, idem.Descriptor{}, err
			}
			invoice, err := repos.Invoices().FindByID(ctx, op.TenantID, in.InvoiceID)
			if err != nil {
				return nil, idem.Descriptor{}, err
			}
			alloc, err := s.allocate(ctx, repos, op, payment, invoice, in.Amount, in.Date, in.Notes)
			if err != nil {
				return nil, idem.Descriptor{}, err
			}
			if err := repos.Payments().Update(ctx, payment); err != nil {
				return nil, idem.Descriptor{}, err
			}
			return alloc, allocationDescriptor(201, alloc.ID), nil
		},
		s.allocationLoader(op),
	)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("payment allocated",
		zap.String("tenant_id", op.TenantID.String()),
		zap.String("payment_id", paymentID.String()),
		zap.String("invoice_id", res.Data.InvoiceID.String()),
		zap.String("amount", res.Data.Amount.String()),
		zap.Bool("idempotent", res.Idempotent),
	)
	return res, nil
}

// allocate applies amount and persists the allocation and the invoice. The
// caller persists the payment once all allocations are applied.
func (s *PaymentService) allocate(
	ctx context.Context,
	repos unitofwork.Repositories,
	op shared.OpContext,
	payment *finance.Payment,
	invoice *finance.Invoice,
	amount decimal.Decimal,
	date time.Time,
	notes string,
) (*finance.PaymentAllocation, error) {
	if date.IsZero() {
		date = s.clock()
	}
	alloc, err := finance.Allocate(payment, invoice, finance.AllocateInput{
		Amount:    amount,
		Date:      date,
		Notes:     notes,
		CreatedBy: op.ActorID,
	})
	if err != nil {
		return nil, err
	}
	if err := repos.Allocations().Create(ctx, alloc); err != nil {
		return nil, err
	}
	if err := repos.Invoices().Update(ctx, invoice); err != nil {
		return nil, err
	}
	if err := publishEvents(ctx, s.publisher, invoice); err != nil {
		return nil, err
	}
	return alloc, nil
}

// AutoAllocatePayment spreads the unallocated part of a payment over the
// customer's open invoices. Whatever is left stays unallocated.
func (s *PaymentService) AutoAllocatePayment(ctx context.Context, op shared.OpContext, paymentID uuid.UUID, in AutoAllocateInput) (*idempotency.Result[*AutoAllocationResult], error) {
	if err := shared.Authorize(op, shared.PermPaymentAllocate); err != nil {
		return nil, err
	}
	strategyType, err := finance.ParseAllocationStrategyType(in.Strategy)
	if err != nil {
		return nil, err
	}
	strategy, err := finance.NewAllocationStrategy(strategyType, in.Targets)
	if err != nil {
		return nil, err
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "auto_allocate",
		telemetry.WithAttribute(telemetry.SpanAttrPaymentID, paymentID.String()),
		telemetry.WithAttribute("strategy", string(strategyType)),
	)
	defer span.End()

	payload := map[string]any{"payment_id": paymentID, "input": in}
	res, err := idempotency.Run(ctx, s.guard,
		idempotency.Request{Op: op, Operation: OperationAutoAllocatePayment, Payload: payload},
		func(ctx context.Context, repos unitofwork.Repositories) (*AutoAllocationResult, idem.Descriptor, error) {
			payment, err := repos.Payments().FindByID(ctx, op.TenantID, paymentID)
			if err != nil {
				return nil, idem.Descriptor{}, err
			}
			result := &AutoAllocationResult{
				Payment:   payment,
				Strategy:  strategyType,
				Allocated: decimal.Zero,
				Remaining: payment.Unallocated(),
			}
			if !payment.Unallocated().IsPositive() {
				return result, paymentDescriptor(200, payment.ID), nil
			}

			open, err := repos.Invoices().ListOpenByCustomer(ctx, op.TenantID, payment.CustomerID, payment.Currency)
			if err != nil {
				return nil, idem.Descriptor{}, fmt.Errorf("list open invoices: %w", err)
			}
			invoices := make(map[uuid.UUID]*finance.Invoice, len(open))
			targets := make([]finance.AllocationTarget, 0, len(open))
			for _, inv := range open {
				invoices[inv.ID] = inv
				targets = append(targets, finance.TargetFromInvoice(inv))
			}

			plan, err := strategy.Plan(payment.Unallocated(), targets)
			if err != nil {
				return nil, idem.Descriptor{}, err
			}
			for _, a := range plan.Allocations {
				alloc, err := s.allocate(ctx, repos, op, payment, invoices[a.TargetID], a.Amount, time.Time{}, "auto allocation ("+string(strategyType)+")")
				if err != nil {
					return nil, idem.Descriptor{}, err
				}
				result.Allocations = append(result.Allocations, alloc)
				result.Allocated = result.Allocated.Add(alloc.Amount)
			}
			if len(result.Allocations) > 0 {
				if err := repos.Payments().Update(ctx, payment); err != nil {
					return nil, idem.Descriptor{}, err
				}
			}
			result.Remaining = payment.Unallocated()
			return result, paymentDescriptor(200, payment.ID), nil
		},
		func(ctx context.Context, id uuid.UUID) (*AutoAllocationResult, error) {
			view, err := s.loadPaymentView(ctx, op.TenantID, id)
			if err != nil {
				return nil, err
			}
			return &AutoAllocationResult{
				Payment:     view.Payment,
				Strategy:    strategyType,
				Allocations: view.Allocations,
				Allocated:   view.Payment.AllocatedAmount,
				Remaining:   view.Payment.Unallocated(),
			}, nil
		},
	)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("payment auto-allocated",
		zap.String("tenant_id", op.TenantID.String()),
		zap.String("payment_id", paymentID.String()),
		zap.String("strategy", string(strategyType)),
		zap.Int("allocations", len(res.Data.Allocations)),
		zap.String("allocated", res.Data.Allocated.String()),
		zap.String("remaining", res.Data.Remaining.String()),
		zap.Bool("idempotent", res.Idempotent),
	)
	return res, nil
}

// RefundAllocation reverses part of an allocation. The invoice balance is
// restored and the payment regains the amount; no cash is moved.
func (s *PaymentService) RefundAllocation(ctx context.Context, op shared.OpContext, allocationID uuid.UUID, in RefundAllocationInput) (*idempotency.Result[*finance.PaymentAllocation], error) {
	if err := shared.Authorize(op, shared.PermPaymentRefund); err != nil {
		return nil, err
	}
	payload := map[string]any{"allocation_id": allocationID, "input": in}
	res, err := idempotency.Run(ctx, s.guard,
		idempotency.Request{Op: op, Operation: OperationRefundAllocation, Payload: payload},
		func(ctx context.Context, repos unitofwork.Repositories) (*finance.PaymentAllocation, idem.Descriptor, error) {
			alloc, err := repos.Allocations().FindByID(ctx, op.TenantID, allocationID)
			if err != nil {
				return nil, idem.Descriptor{}, err
			}
			payment, err := repos.Payments().FindByID(ctx, op.TenantID, alloc.PaymentID)
			if err != nil {
				return nil, idem.Descriptor{}, err
			}
			invoice, err := repos.Invoices().FindByID(ctx, op.TenantID, alloc.InvoiceID)
			if err != nil {
				return nil, idem.Descriptor{}, err
			}
			if err := finance.RefundAllocation(alloc, payment, invoice, in.Amount, in.Reason); err != nil {
				return nil, idem.Descriptor{}, err
			}
			if err := repos.Allocations().Update(ctx, alloc); err != nil {
				return nil, idem.Descriptor{}, err
			}
			if err := repos.Invoices().Update(ctx, invoice); err != nil {
				return nil, idem.Descriptor{}, err
			}
			if err := repos.Payments().Update(ctx, payment); err != nil {
				return nil, idem.Descriptor{}, err
			}
			if err := publishEvents(ctx, s.publisher, invoice); err != nil {
				return nil, idem.Descriptor{}, err
			}
			return alloc, allocationDescriptor(200, alloc.ID), nil
		},
		s.allocationLoader(op),
	)
	if err != nil {
		return nil, err
	}

	s.logger.Info("allocation refunded",
		zap.String("tenant_id", op.TenantID.String()),
		zap.String("allocation_id", allocationID.String()),
		zap.String("amount", in.Amount.String()),
		zap.String("net_amount", res.Data.NetAmount().String()),
		zap.Bool("idempotent", res.Idempotent),
	)
	return res, nil
}

// GetPayment returns a payment with its allocations
func (s *PaymentService) GetPayment(ctx context.Context, op shared.OpContext, id uuid.UUID) (*PaymentView, error) {
	if err := shared.Authorize(op, shared.PermPaymentRead); err != nil {
		return nil, err
	}
	return s.loadPaymentView(ctx, op.TenantID, id)
}

// ListAllocations returns the allocations of a payment
func (s *PaymentService) ListAllocations(ctx context.Context, op shared.OpContext, paymentID uuid.UUID) ([]*finance.PaymentAllocation, error) {
	view, err := s.GetPayment(ctx, op, paymentID)
	if err != nil {
		return nil, err
	}
	return view.Allocations, nil
}

// CustomerBalanceSummary reports outstanding receivables and unallocated cash
func (s *PaymentService) CustomerBalanceSummary(ctx context.Context, op shared.OpContext, customerID uuid.UUID) (*CustomerBalance, error) {
	if err := shared.Authorize(op, shared.PermReceivableRead); err != nil {
		return nil, err
	}
	asOf := s.clock()
	summary := &CustomerBalance{CustomerID: customerID}
	err := s.scope.Execute(ctx, func(ctx context.Context, repos unitofwork.Repositories) error {
		filter := finance.ReceivableFilter{
			Filter:          shared.Filter{Page: 1, PageSize: 100},
			CustomerID:      &customerID,
			OutstandingOnly: true,
		}
		for {
			rows, total, err := repos.Receivables().List(ctx, op.TenantID, filter)
			if err != nil {
				return err
			}
			for _, r := range rows {
				summary.OutstandingAmount = summary.OutstandingAmount.Add(r.AmountDue)
				summary.OpenInvoices++
				if finance.AgingBucketFor(r.DueDate, asOf) != finance.AgingCurrent {
					summary.OverdueAmount = summary.OverdueAmount.Add(r.AmountDue)
				}
			}
			if int64(filter.Page*filter.Limit()) >= total || len(rows) == 0 {
				break
			}
			filter.Page++
		}

		unallocated, err := repos.Payments().SumUnallocated(ctx, op.TenantID, customerID)
		if err != nil {
			return err
		}
		summary.UnallocatedAmount = unallocated
		return nil
	})
	if err != nil {
		return nil, err
	}
	summary.NetBalance = summary.OutstandingAmount.Sub(summary.UnallocatedAmount)
	return summary, nil
}

func (s *PaymentService) loadPaymentView(ctx context.Context, tenantID, id uuid.UUID) (*PaymentView, error) {
	view := &PaymentView{}
	err := s.scope.Execute(ctx, func(ctx context.Context, repos unitofwork.Repositories) error {
		p, err := repos.Payments().FindByID(ctx, tenantID, id)
		if err != nil {
			return err
		}
		allocs, err := repos.Allocations().ListByPayment(ctx, tenantID, id)
		if err != nil {
			return err
		}
		view.Payment, view.Allocations = p, allocs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *PaymentService) paymentLoader(op shared.OpContext) func(ctx context.Context, id uuid.UUID) (*finance.Payment, error) {
	return func(ctx context.Context, id uuid.UUID) (*finance.Payment, error) {
		view, err := s.loadPaymentView(ctx, op.TenantID, id)
		if err != nil {
			return nil, err
		}
		return view.Payment, nil
	}
}

func (s *PaymentService) allocationLoader(op shared.OpContext) func(ctx context.Context, id uuid.UUID) (*finance.PaymentAllocation, error) {
	return func(ctx context.Context, id uuid.UUID) (*finance.PaymentAllocation, error) {
		var alloc *finance.PaymentAllocation
		err := s.scope.Execute(ctx, func(ctx context.Context, repos unitofwork.Repositories) error {
			var err error
			alloc, err = repos.Allocations().FindByID(ctx, op.TenantID, id)
			return err
		})
		return alloc, err
	}
}

func paymentDescriptor(status int, id uuid.UUID) idem.Descriptor {
	return idem.Descriptor{Status: status, ResourceType: ResourceTypePayment, ResourceID: id}
}

func allocationDescriptor(status int, id uuid.UUID) idem.Descriptor {
	return idem.Descriptor{Status: status, ResourceType: ResourceTypeAllocation, ResourceID: id}
}
