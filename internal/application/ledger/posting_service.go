// Package ledger holds the posting engine and the period gatekeeper.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/erp/ledger/internal/application/idempotency"
	"github.com/erp/ledger/internal/application/unitofwork"
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
	OperationPostJournalEntry = "journal_entry.post"
	OperationVoidJournalEntry = "journal_entry.void"
	OperationPostDraft        = "journal_entry.post_draft"
)

// ResourceTypeJournalEntry names journal entries in idempotency descriptors
const ResourceTypeJournalEntry = "journal_entry"

// PostingConfig holds the posting engine settings
type PostingConfig struct {
	// Epsilon is the tolerated difference between raw debit and credit sums
	Epsilon decimal.Decimal
}

// MetricsRecorder counts ledger activity
type MetricsRecorder interface {
	JournalEntry(action string, lines int)
}

type noopRecorder struct{}

func (noopRecorder) JournalEntry(string, int) {}

// JournalEntryInput describes a journal entry to post or save as draft
type JournalEntryInput struct {
	Date         time.Time          `json:"date"`
	Currency     string             `json:"currency"`
	ExchangeRate decimal.Decimal    `json:"exchange_rate"`
	Description  string             `json:"description"`
	Reference    *ledger.SourceRef  `json:"reference,omitempty"`
	Lines        []ledger.LineInput `json:"lines"`
}

// PostingService is the ledger posting engine. It is the only writer of
// account balances.
type PostingService struct {
	scope      unitofwork.Scope
	guard      *idempotency.Guard
	gatekeeper *PeriodGatekeeper
	publisher  shared.EventPublisher
	cfg        PostingConfig
	logger     *zap.Logger
	metrics    MetricsRecorder
}

// PostingOption configures a PostingService
type PostingOption func(*PostingService)

// WithPostingMetrics sets the metrics recorder
func WithPostingMetrics(m MetricsRecorder) PostingOption {
	return func(s *PostingService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewPostingService creates a new PostingService
func NewPostingService(
	scope unitofwork.Scope,
	guard *idempotency.Guard,
	gatekeeper *PeriodGatekeeper,
	publisher shared.EventPublisher,
	cfg PostingConfig,
	logger *zap.Logger,
	opts ...PostingOption,
) *PostingService {
	if cfg.Epsilon.IsZero() {
		cfg.Epsilon = ledger.DefaultBalanceEpsilon
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &PostingService{
		scope:      scope,
		guard:      guard,
		gatekeeper: gatekeeper,
		publisher:  publisher,
		cfg:        cfg,
		logger:     logger,
		metrics:    noopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PostJournalEntry validates, posts and applies a balanced journal entry
func (s *PostingService) PostJournalEntry(ctx context.Context, op shared.OpContext, in JournalEntryInput) (*idempotency.Result[*ledger.Transaction], error) {
	if err := shared.Authorize(op, shared.PermJournalPost); err != nil {
		return nil, err
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "journal_entry", "post")
	defer span.End()

	res, err := idempotency.Run(ctx, s.guard,
		idempotency.Request{Op: op, Operation: OperationPostJournalEntry, Payload: in},
		func(ctx context.Context, repos unitofwork.Repositories) (*ledger.Transaction, idem.Descriptor, error) {
			tx, err := s.Post(ctx, repos, op, in)
			if err != nil {
				return nil, idem.Descriptor{}, err
			}
			return tx, journalDescriptor(201, tx), nil
		},
		s.loader(op),
	)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return res, nil
}

// Post runs the posting engine inside the caller's unit of work
func (s *PostingService) Post(ctx context.Context, repos unitofwork.Repositories, op shared.OpContext, in JournalEntryInput) (*ledger.Transaction, error) {
	currency, err := valueobject.ParseCurrency(in.Currency)
	if err != nil {
		return nil, err
	}
	tx, err := ledger.NewDraftTransaction(op.TenantID, op.ActorID, in.Date, currency, in.ExchangeRate, in.Description, in.Lines)
	if err != nil {
		return nil, err
	}
	tx.Source = in.Reference

	if err := s.postDraft(ctx, repos, op, tx, true); err != nil {
		return nil, err
	}
	return tx, nil
}

// postDraft validates accounts and balance, resolves the period, then
// persists the posted entry and its balance deltas.
func (s *PostingService) postDraft(ctx context.Context, repos unitofwork.Repositories, op shared.OpContext, tx *ledger.Transaction, insert bool) error {
	accounts, err := s.loadAccounts(ctx, repos, op.TenantID, tx)
	if err != nil {
		return err
	}
	if err := tx.ValidateAccounts(accounts); err != nil {
		return err
	}
	if err := tx.CheckBalance(s.cfg.Epsilon); err != nil {
		return err
	}

	period, err := s.gatekeeper.Resolve(ctx, repos.Periods(), op.TenantID, tx.Date)
	if err != nil {
		return err
	}
	if err := tx.Post(period.ID, op.ActorID, s.cfg.Epsilon); err != nil {
		return err
	}

	if insert {
		err = repos.Transactions().Create(ctx, tx)
	} else {
		err = repos.Transactions().Update(ctx, tx)
	}
	if err != nil {
		return err
	}
	if err := s.applyDeltas(ctx, repos, op.TenantID, tx.BalanceDeltas(accounts), false); err != nil {
		return err
	}
	if err := s.publish(ctx, tx); err != nil {
		return err
	}

	s.metrics.JournalEntry("posted", len(tx.Lines))
	s.logger.Info("journal entry posted",
		zap.String("tenant_id", op.TenantID.String()),
		zap.String("transaction_id", tx.ID.String()),
		zap.String("entry_number", tx.EntryNumber),
		zap.String("period_id", period.ID.String()),
		zap.String("total", tx.TotalDebit.String()),
		zap.String("currency", tx.Currency.String()),
	)
	return nil
}

// VoidJournalEntry voids a posted entry and reverses its balance deltas
func (s *PostingService) VoidJournalEntry(ctx context.Context, op shared.OpContext, id uuid.UUID, reason string) (*idempotency.Result[*ledger.Transaction], error) {
	if err := shared.Authorize(op, shared.PermJournalVoid); err != nil {
		return nil, err
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "journal_entry", "void")
	defer span.End()

	payload := map[string]any{"id": id, "reason": reason}
	res, err := idempotency.Run(ctx, s.guard,
		idempotency.Request{Op: op, Operation: OperationVoidJournalEntry, Payload: payload},
		func(ctx context.Context, repos unitofwork.Repositories) (*ledger.Transaction, idem.Descriptor, error) {
			tx, err := s.Void(ctx, repos, op, id, reason)
			if err != nil {
				return nil, idem.Descriptor{}, err
			}
			return tx, journalDescriptor(200, tx), nil
		},
		s.loader(op),
	)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return res, nil
}

// Void voids a posted entry inside the caller's unit of work. The entry's
// period must still be open.
func (s *PostingService) Void(ctx context.Context, repos unitofwork.Repositories, op shared.OpContext, id uuid.UUID, reason string) (*ledger.Transaction, error) {
	tx, err := repos.Transactions().FindByID(ctx, op.TenantID, id)
	if err != nil {
		return nil, err
	}
	if tx.Status != ledger.TransactionStatusPosted {
		return nil, shared.NewInvalidStateError("cannot void journal entry in %s status", tx.Status)
	}
	if tx.PeriodID != nil {
		if err := s.gatekeeper.EnsureOpen(ctx, repos.Periods(), op.TenantID, *tx.PeriodID); err != nil {
			return nil, err
		}
	}

	accounts, err := s.loadAccounts(ctx, repos, op.TenantID, tx)
	if err != nil {
		return nil, err
	}
	if err := tx.Void(op.ActorID, reason); err != nil {
		return nil, err
	}
	if err := repos.Transactions().Update(ctx, tx); err != nil {
		return nil, err
	}
	if err := s.applyDeltas(ctx, repos, op.TenantID, tx.BalanceDeltas(accounts), true); err != nil {
		return nil, err
	}
	if err := s.publish(ctx, tx); err != nil {
		return nil, err
	}

	s.metrics.JournalEntry("voided", len(tx.Lines))
	s.logger.Info("journal entry voided",
		zap.String("tenant_id", op.TenantID.String()),
		zap.String("transaction_id", tx.ID.String()),
		zap.String("entry_number", tx.EntryNumber),
		zap.String("reason", tx.VoidReason),
	)
	return tx, nil
}

// CreateDraft saves an unposted journal entry. Balance, accounts and period
// are checked when the draft is posted.
func (s *PostingService) CreateDraft(ctx context.Context, op shared.OpContext, in JournalEntryInput) (*ledger.Transaction, error) {
	if err := shared.Authorize(op, shared.PermJournalPost); err != nil {
		return nil, err
	}
	currency, err := valueobject.ParseCurrency(in.Currency)
	if err != nil {
		return nil, err
	}
	tx, err := ledger.NewDraftTransaction(op.TenantID, op.ActorID, in.Date, currency, in.ExchangeRate, in.Description, in.Lines)
	if err != nil {
		return nil, err
	}
	tx.Source = in.Reference

	err = s.scope.Execute(ctx, func(ctx context.Context, repos unitofwork.Repositories) error {
		return repos.Transactions().Create(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.JournalEntry("drafted", len(tx.Lines))
	return tx, nil
}

// PostDraft posts a saved draft
func (s *PostingService) PostDraft(ctx context.Context, op shared.OpContext, id uuid.UUID) (*idempotency.Result[*ledger.Transaction], error) {
	if err := shared.Authorize(op, shared.PermJournalPost); err != nil {
		return nil, err
	}
	return idempotency.Run(ctx, s.guard,
		idempotency.Request{Op: op, Operation: OperationPostDraft, Payload: map[string]any{"id": id}},
		func(ctx context.Context, repos unitofwork.Repositories) (*ledger.Transaction, idem.Descriptor, error) {
			tx, err := repos.Transactions().FindByID(ctx, op.TenantID, id)
			if err != nil {
				return nil, idem.Descriptor{}, err
			}
			if err := s.postDraft(ctx, repos, op, tx, false); err != nil {
				return nil, idem.Descriptor{}, err
			}
			return tx, journalDescriptor(200, tx), nil
		},
		s.loader(op),
	)
}

// DiscardDraft deletes a draft entry
func (s *PostingService) DiscardDraft(ctx context.Context, op shared.OpContext, id uuid.UUID) error {
	if err := shared.Authorize(op, shared.PermJournalPost); err != nil {
		return err
	}
	return s.scope.Execute(ctx, func(ctx context.Context, repos unitofwork.Repositories) error {
		tx, err := repos.Transactions().FindByID(ctx, op.TenantID, id)
		if err != nil {
			return err
		}
		if err := tx.EnsureDiscardable(); err != nil {
			return err
		}
		return repos.Transactions().Delete(ctx, op.TenantID, id)
	})
}

// GetTransaction returns a journal entry with its lines
func (s *PostingService) GetTransaction(ctx context.Context, op shared.OpContext, id uuid.UUID) (*ledger.Transaction, error) {
	if err := shared.Authorize(op, shared.PermJournalRead); err != nil {
		return nil, err
	}
	var tx *ledger.Transaction
	err := s.scope.Execute(ctx, func(ctx context.Context, repos unitofwork.Repositories) error {
		var err error
		tx, err = repos.Transactions().FindByID(ctx, op.TenantID, id)
		return err
	})
	return tx, err
}

// ListTransactions returns a page of journal entries
func (s *PostingService) ListTransactions(ctx context.Context, op shared.OpContext, filter shared.Filter) (shared.Paginated[*ledger.Transaction], error) {
	if err := shared.Authorize(op, shared.PermJournalRead); err != nil {
		return shared.Paginated[*ledger.Transaction]{}, err
	}
	var (
		items []*ledger.Transaction
		total int64
	)
	err := s.scope.Execute(ctx, func(ctx context.Context, repos unitofwork.Repositories) error {
		var err error
		items, total, err = repos.Transactions().List(ctx, op.TenantID, filter)
		return err
	})
	if err != nil {
		return shared.Paginated[*ledger.Transaction]{}, err
	}
	return shared.NewPaginated(items, total, filter.Page, filter.Limit()), nil
}

func (s *PostingService) loadAccounts(ctx context.Context, repos unitofwork.Repositories, tenantID uuid.UUID, tx *ledger.Transaction) (map[uuid.UUID]*ledger.Account, error) {
	list, err := repos.Accounts().FindByIDs(ctx, tenantID, tx.AccountIDs())
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	accounts := make(map[uuid.UUID]*ledger.Account, len(list))
	for _, a := range list {
		accounts[a.ID] = a
	}
	return accounts, nil
}

// applyDeltas writes one atomic increment per account. Accounts are updated
// in id order so concurrent postings lock rows in the same order.
func (s *PostingService) applyDeltas(ctx context.Context, repos unitofwork.Repositories, tenantID uuid.UUID, deltas map[uuid.UUID]decimal.Decimal, negate bool) error {
	ids := make([]uuid.UUID, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	for _, id := range ids {
		delta := deltas[id]
		if negate {
			delta = delta.Neg()
		}
		if delta.IsZero() {
			continue
		}
		if err := repos.Accounts().ApplyBalanceDelta(ctx, tenantID, id, delta); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostingService) publish(ctx context.Context, tx *ledger.Transaction) error {
	events := tx.GetDomainEvents()
	tx.ClearDomainEvents()
	if s.publisher == nil || len(events) == 0 {
		return nil
	}
	return s.publisher.Publish(ctx, events...)
}

// loader reloads a replayed journal entry
func (s *PostingService) loader(op shared.OpContext) func(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	return func(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
		var tx *ledger.Transaction
		err := s.scope.Execute(ctx, func(ctx context.Context, repos unitofwork.Repositories) error {
			var err error
			tx, err = repos.Transactions().FindByID(ctx, op.TenantID, id)
			return err
		})
		return tx, err
	}
}

func journalDescriptor(status int, tx *ledger.Transaction) idem.Descriptor {
	return idem.Descriptor{Status: status, ResourceType: ResourceTypeJournalEntry, ResourceID: tx.ID}
}
