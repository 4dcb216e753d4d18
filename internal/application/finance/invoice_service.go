package finance

import (
	"context"
	"errors"
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
	OperationCreateInvoice = "invoice.create"
	OperationSendInvoice   = "invoice.send"
	OperationPostInvoice   = "invoice.post"
	OperationCancelInvoice = "invoice.cancel"
)

// ResourceTypeInvoice names invoices in idempotency descriptors
const ResourceTypeInvoice = "invoice"

// SourceTypeInvoice marks journal entries produced by invoices
const SourceTypeInvoice = "invoice"

// maxVoidReasonRunes matches the width of journal_entries.void_reason
const maxVoidReasonRunes = 500

// CreateInvoiceInput describes a new invoice
type CreateInvoiceInput struct {
	CustomerID       uuid.UUID                  `json:"customer_id"`
	Currency         string                     `json:"currency"`
	ExchangeRate     decimal.Decimal            `json:"exchange_rate"`
	IssueDate        time.Time                  `json:"issue_date"`
	DueDate          *time.Time                 `json:"due_date,omitempty"`
	PaymentTermsDays int                        `json:"payment_terms_days"`
	Items            []finance.InvoiceItemInput `json:"items"`
	Notes            string                     `json:"notes"`
}

// InvoiceService runs the invoice lifecycle
type InvoiceService struct {
	scope     unitofwork.Scope
	guard     *idempotency.Guard
	posting   *appledger.PostingService
	customers acl.CustomerDirectory
	publisher shared.EventPublisher
	cfg       Config
	clock     Clock
	logger    *zap.Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	scope unitofwork.Scope,
	guard *idempotency.Guard,
	posting *appledger.PostingService,
	customers acl.CustomerDirectory,
	publisher shared.EventPublisher,
	cfg Config,
	clock Clock,
	logger *zap.Logger,
) *InvoiceService {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceService{
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

// CreateInvoice creates a draft invoice. With an idempotency key, a prior
// invoice created under that key is returned unchanged.
func (s *InvoiceService) CreateInvoice(ctx context.Context, op shared.OpContext, in CreateInvoiceInput) (*idempotency.Result[*finance.Invoice], error) {
	if err := shared.Authorize(op, shared.PermInvoiceCreate); err != nil {
		return nil, err
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "create",
		telemetry.WithAttribute(telemetry.SpanAttrCustomerID, in.CustomerID.String()))
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
	terms := in.PaymentTermsDays
	if terms <= 0 {
		terms = s.cfg.PaymentTermsDays
	}

	var existed bool
	res, err := idempotency.Run(ctx, s.guard,
		idempotency.Request{Op: op, Operation: OperationCreateInvoice, Payload: in},
		func(ctx context.Context, repos unitofwork.Repositories) (*finance.Invoice, idem.Descriptor, error) {
			if op.IdempotencyKey != "" {
				prior, err := repos.Invoices().FindByIdempotencyKey(ctx, op.TenantID, op.IdempotencyKey)
				if err == nil {
					existed = true
					return prior, invoiceDescriptor(201, prior), nil
				}
				if !errors.Is(err, shared.ErrNotFound) {
					return nil, idem.Descriptor{}, err
				}
			}

			inv, err := finance.NewInvoice(finance.NewInvoiceInput{
				TenantID:         op.TenantID,
				CustomerID:       customer.ID(),
				Currency:         currency,
				ExchangeRate:     rate,
				IssueDate:        in.IssueDate,
				DueDate:          in.DueDate,
				PaymentTermsDays: terms,
				Items:            in.Items,
				Notes:            in.Notes,
				IdempotencyKey:   op.IdempotencyKey,
				CreatedBy:        op.ActorID,
			})
			if err != nil {
				return nil, idem.Descriptor{}, err
			}
			if err := repos.Invoices().Create(ctx, inv); err != nil {
				return nil, idem.Descriptor{}, err
			}
			return inv, invoiceDescriptor(201, inv), nil
		},
		s.loader(op),
	)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if existed {
		res.Idempotent = true
	}

	s.logger.Info("invoice created",
		zap.String("tenant_id", op.TenantID.String()),
		zap.String("invoice_id", res.Data.ID.String()),
		zap.String("invoice_number", res.Data.InvoiceNumber),
		zap.String("customer_id", res.Data.CustomerID.String()),
		zap.String("total", res.Data.TotalAmount.String()),
		zap.Bool("idempotent", res.Idempotent),
	)
	return res, nil
}

// SendInvoice moves a draft invoice to sent
func (s *InvoiceService) SendInvoice(ctx context.Context, op shared.OpContext, id uuid.UUID) (*idempotency.Result[*finance.Invoice], error) {
	if err := shared.Authorize(op, shared.PermInvoiceSend); err != nil {
		return nil, err
	}
	return s.transition(ctx, op, OperationSendInvoice, id, map[string]any{"id": id},
		func(ctx context.Context, repos unitofwork.Repositories, inv *finance.Invoice) error {
			return inv.Send()
		})
}

// PostInvoice posts a sent invoice to the ledger: Dr receivable, Cr revenue
// (net of tax when a tax payable account is configured), Cr tax payable.
func (s *InvoiceService) PostInvoice(ctx context.Context, op shared.OpContext, id uuid.UUID) (*idempotency.Result[*finance.Invoice], error) {
	if err := shared.Authorize(op, shared.PermInvoicePost); err != nil {
		return nil, err
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "post")
	defer span.End()

	res, err := s.transition(ctx, op, OperationPostInvoice, id, map[string]any{"id": id},
		func(ctx context.Context, repos unitofwork.Repositories, inv *finance.Invoice) error {
			today := s.clock()
			if err := inv.CanPost(today); err != nil {
				return err
			}
			lines, err := s.invoiceLines(ctx, repos, op.TenantID, inv)
			if err != nil {
				return err
			}
			tx, err := s.posting.Post(ctx, repos, op, appledger.JournalEntryInput{
				Date:         inv.IssueDate,
				Currency:     s.cfg.baseCurrency().String(),
				ExchangeRate: inv.ExchangeRate,
				Description:  "Invoice " + inv.InvoiceNumber,
				Reference:    &ledger.SourceRef{Type: SourceTypeInvoice, ID: inv.ID},
				Lines:        lines,
			})
			if err != nil {
				return err
			}
			return inv.Post(tx.ID, today)
		})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return res, nil
}

func (s *InvoiceService) invoiceLines(ctx context.Context, repos unitofwork.Repositories, tenantID uuid.UUID, inv *finance.Invoice) ([]ledger.LineInput, error) {
	receivable, err := accountByCode(ctx, repos, tenantID, s.cfg.Accounts.Receivable, "receivable")
	if err != nil {
		return nil, err
	}
	revenue, err := accountByCode(ctx, repos, tenantID, s.cfg.Accounts.Revenue, "revenue")
	if err != nil {
		return nil, err
	}

	// Tax is converted on its own and revenue takes the remainder, so the
	// converted lines balance exactly.
	base := s.cfg.baseCurrency()
	total := base.Convert(inv.TotalAmount, inv.ExchangeRate)
	memo := inv.InvoiceNumber
	lines := []ledger.LineInput{
		{AccountID: receivable.ID, Debit: total, Description: memo},
	}
	if s.cfg.Accounts.TaxPayable == "" || !inv.TaxTotal.IsPositive() {
		return append(lines, ledger.LineInput{AccountID: revenue.ID, Credit: total, Description: memo}), nil
	}

	tax, err := accountByCode(ctx, repos, tenantID, s.cfg.Accounts.TaxPayable, "tax payable")
	if err != nil {
		return nil, err
	}
	taxAmount := base.Convert(inv.TaxTotal, inv.ExchangeRate)
	lines = append(lines, ledger.LineInput{AccountID: tax.ID, Credit: taxAmount, Description: memo + " tax"})
	if net := total.Sub(taxAmount); net.IsPositive() {
		lines = append(lines, ledger.LineInput{AccountID: revenue.ID, Credit: net, Description: memo})
	}
	return lines, nil
}

// CancelInvoice cancels an invoice with nothing paid. A posted invoice's
// ledger transaction is voided in the same unit of work.
func (s *InvoiceService) CancelInvoice(ctx context.Context, op shared.OpContext, id uuid.UUID, reason string) (*idempotency.Result[*finance.Invoice], error) {
	if err := shared.Authorize(op, shared.PermInvoiceCancel); err != nil {
		return nil, err
	}
	return s.transition(ctx, op, OperationCancelInvoice, id, map[string]any{"id": id, "reason": reason},
		func(ctx context.Context, repos unitofwork.Repositories, inv *finance.Invoice) error {
			if err := inv.Cancel(reason); err != nil {
				return err
			}
			if !inv.WasPosted() {
				return nil
			}
			voidReason := "invoice " + inv.InvoiceNumber + " cancelled"
			if r := strings.TrimSpace(reason); r != "" {
				voidReason += ": " + r
			}
			if r := []rune(voidReason); len(r) > maxVoidReasonRunes {
				voidReason = string(r[:maxVoidReasonRunes])
			}
			_, err := s.posting.Void(ctx, repos, op, *inv.TransactionID, voidReason)
			return err
		})
}

// transition loads an invoice, applies change, persists it and publishes its
// events, all under the idempotency guard.
func (s *InvoiceService) transition(
	ctx context.Context,
	op shared.OpContext,
	operation string,
	id uuid.UUID,
	payload any,
	change func(ctx context.Context, repos unitofwork.Repositories, inv *finance.Invoice) error,
) (*idempotency.Result[*finance.Invoice], error) {
	res, err := idempotency.Run(ctx, s.guard,
		idempotency.Request{Op: op, Operation: operation, Payload: payload},
		func(ctx context.Context, repos unitofwork.Repositories) (*finance.Invoice, idem.Descriptor, error) {
			inv, err := repos.Invoices().FindByID(ctx, op.TenantID, id)
			if err != nil {
				return nil, idem.Descriptor{}, err
			}
			if err := change(ctx, repos, inv); err != nil {
				return nil, idem.Descriptor{}, err
			}
			if err := repos.Invoices().Update(ctx, inv); err != nil {
				return nil, idem.Descriptor{}, err
			}
			if err := publishEvents(ctx, s.publisher, inv); err != nil {
				return nil, idem.Descriptor{}, err
			}
			return inv, invoiceDescriptor(200, inv), nil
		},
		s.loader(op),
	)
	if err != nil {
		return nil, err
	}

	s.logger.Info("invoice "+strings.TrimPrefix(operation, "invoice."),
		zap.String("tenant_id", op.TenantID.String()),
		zap.String("invoice_id", res.Data.ID.String()),
		zap.String("invoice_number", res.Data.InvoiceNumber),
		zap.String("status", res.Data.Status.String()),
		zap.Bool("idempotent", res.Idempotent),
	)
	return res, nil
}

// GetInvoice returns an invoice with its items
func (s *InvoiceService) GetInvoice(ctx context.Context, op shared.OpContext, id uuid.UUID) (*finance.Invoice, error) {
	if err := shared.Authorize(op, shared.PermInvoiceRead); err != nil {
		return nil, err
	}
	var inv *finance.Invoice
	err := s.scope.Execute(ctx, func(ctx context.Context, repos unitofwork.Repositories) error {
		var err error
		inv, err = repos.Invoices().FindByID(ctx, op.TenantID, id)
		return err
	})
	return inv, err
}

// ListInvoices returns a page of invoices
func (s *InvoiceService) ListInvoices(ctx context.Context, op shared.OpContext, filter finance.InvoiceFilter) (shared.Paginated[*finance.Invoice], error) {
	if err := shared.Authorize(op, shared.PermInvoiceRead); err != nil {
		return shared.Paginated[*finance.Invoice]{}, err
	}
	var (
		items []*finance.Invoice
		total int64
	)
	err := s.scope.Execute(ctx, func(ctx context.Context, repos unitofwork.Repositories) error {
		var err error
		items, total, err = repos.Invoices().List(ctx, op.TenantID, filter)
		return err
	})
	if err != nil {
		return shared.Paginated[*finance.Invoice]{}, err
	}
	return shared.NewPaginated(items, total, filter.Page, filter.Limit()), nil
}

// InvoiceStatistics returns count and amounts per status
func (s *InvoiceService) InvoiceStatistics(ctx context.Context, op shared.OpContext) ([]finance.InvoiceStatusSummary, error) {
	if err := shared.Authorize(op, shared.PermInvoiceRead); err != nil {
		return nil, err
	}
	var stats []finance.InvoiceStatusSummary
	err := s.scope.Execute(ctx, func(ctx context.Context, repos unitofwork.Repositories) error {
		var err error
		stats, err = repos.Invoices().Statistics(ctx, op.TenantID)
		return err
	})
	return stats, err
}

// loader reloads a replayed invoice. The caller was authorized for the
// mutation, which covers reading its result.
func (s *InvoiceService) loader(op shared.OpContext) func(ctx context.Context, id uuid.UUID) (*finance.Invoice, error) {
	return func(ctx context.Context, id uuid.UUID) (*finance.Invoice, error) {
		var inv *finance.Invoice
		err := s.scope.Execute(ctx, func(ctx context.Context, repos unitofwork.Repositories) error {
			var err error
			inv, err = repos.Invoices().FindByID(ctx, op.TenantID, id)
			return err
		})
		return inv, err
	}
}

func invoiceDescriptor(status int, inv *finance.Invoice) idem.Descriptor {
	return idem.Descriptor{Status: status, ResourceType: ResourceTypeInvoice, ResourceID: inv.ID}
}
