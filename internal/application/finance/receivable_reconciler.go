package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/application/unitofwork"
	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/shared"
	"go.uber.org/zap"
)

// ReceivableReconciler keeps the accounts receivable projection in step with
// invoice lifecycle events. Every event re-reads the invoice and re-derives
// the row, so redelivery is harmless.
type ReceivableReconciler struct {
	scope  unitofwork.Scope
	clock  Clock
	logger *zap.Logger
}

// NewReceivableReconciler creates a new reconciler
func NewReceivableReconciler(scope unitofwork.Scope, clock Clock, logger *zap.Logger) *ReceivableReconciler {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReceivableReconciler{scope: scope, clock: clock, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *ReceivableReconciler) EventTypes() []string {
	return []string{
		finance.EventTypeDocumentPosted,
		finance.EventTypeDocumentPaid,
		finance.EventTypeDocumentPartiallyPaid,
		finance.EventTypeDocumentCancelled,
	}
}

// Handle reconciles the receivable of the event's invoice. Failures on
// cancellation are logged and dropped so the cancellation itself commits;
// every other failure aborts the publishing unit of work.
func (h *ReceivableReconciler) Handle(ctx context.Context, event shared.DomainEvent) error {
	var note string
	switch e := event.(type) {
	case *finance.DocumentPostedEvent, *finance.DocumentPaidEvent, *finance.DocumentPartiallyPaidEvent:
	case *finance.DocumentCancelledEvent:
		note = e.Reason
	default:
		h.logger.Error("unexpected event type",
			zap.Strings("expected", h.EventTypes()),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}

	err := h.reconcile(ctx, event, note)
	if err == nil {
		return nil
	}
	if event.EventType() == finance.EventTypeDocumentCancelled {
		h.logger.Warn("receivable reconciliation failed for cancelled invoice, continuing",
			zap.String("tenant_id", event.TenantID().String()),
			zap.String("invoice_id", event.AggregateID().String()),
			zap.String("event_id", event.EventID().String()),
			zap.Error(err),
		)
		return nil
	}
	h.logger.Error("receivable reconciliation failed",
		zap.String("tenant_id", event.TenantID().String()),
		zap.String("invoice_id", event.AggregateID().String()),
		zap.String("event_type", event.EventType()),
		zap.Error(err),
	)
	return err
}

// reconcile runs in a nested unit of work, a savepoint of the publisher's
// transaction, so a failure can be discarded on its own.
func (h *ReceivableReconciler) reconcile(ctx context.Context, event shared.DomainEvent, note string) error {
	tenantID, invoiceID := event.TenantID(), event.AggregateID()
	return h.scope.Execute(ctx, func(ctx context.Context, repos unitofwork.Repositories) error {
		inv, err := repos.Invoices().FindByID(ctx, tenantID, invoiceID)
		if err != nil {
			return fmt.Errorf("load invoice %s: %w", invoiceID, err)
		}
		existing, err := repos.Receivables().FindByInvoice(ctx, tenantID, inv.CustomerID, inv.ID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("load receivable: %w", err)
		}
		if err != nil {
			existing = nil
		}

		row, changed := finance.ProjectReceivable(existing, inv, event.EventType(), note, h.clock())
		if !changed {
			h.logger.Debug("receivable unchanged",
				zap.String("invoice_id", invoiceID.String()),
				zap.String("event_type", event.EventType()),
			)
			return nil
		}
		if err := repos.Receivables().Save(ctx, row); err != nil {
			return fmt.Errorf("save receivable: %w", err)
		}

		h.logger.Info("receivable reconciled",
			zap.String("tenant_id", tenantID.String()),
			zap.String("invoice_id", invoiceID.String()),
			zap.String("invoice_number", row.InvoiceNumber),
			zap.String("event_type", event.EventType()),
			zap.String("status", string(row.Status)),
			zap.String("amount_due", row.AmountDue.String()),
			zap.String("aging_bucket", string(row.AgingBucket)),
		)
		return nil
	})
}

// Ensure ReceivableReconciler implements shared.EventHandler
var _ shared.EventHandler = (*ReceivableReconciler)(nil)
