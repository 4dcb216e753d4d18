package persistence

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/erp/ledger/internal/application/unitofwork"
	"github.com/erp/ledger/internal/domain/audit"
	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/finance/acl"
	"github.com/erp/ledger/internal/domain/idempotency"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NamingStrategy: DefaultStorageMapping(),
		TranslateError: true,
	})
	require.NoError(t, err)

	// every connection to :memory: opens a fresh database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, AutoMigrate(db))
	return db
}

func newTestAccount(t *testing.T, db *gorm.DB, tenantID uuid.UUID, code string, typ ledger.AccountType) *ledger.Account {
	account, err := ledger.NewAccount(tenantID, code, "Account "+code, typ, "", valueobject.DefaultCurrency)
	require.NoError(t, err)
	require.NoError(t, NewGormAccountRepository(db, nil).Create(context.Background(), account))
	return account
}

func newTestInvoice(t *testing.T, tenantID, customerID uuid.UUID, issue time.Time, key string) *finance.Invoice {
	inv, err := finance.NewInvoice(finance.NewInvoiceInput{
		TenantID:   tenantID,
		CustomerID: customerID,
		IssueDate:  issue,
		Items: []finance.InvoiceItemInput{
			{Description: "Consulting", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(50)},
			{Description: "Support", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(20)},
		},
		IdempotencyKey: key,
	})
	require.NoError(t, err)
	return inv
}

func TestGormAccountRepository_Lifecycle(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormAccountRepository(db, nil)
	ctx := context.Background()
	tenantID := uuid.New()

	cash := newTestAccount(t, db, tenantID, "1000", ledger.AccountTypeAsset)
	newTestAccount(t, db, tenantID, "4000", ledger.AccountTypeIncome)
	newTestAccount(t, db, uuid.New(), "1000", ledger.AccountTypeAsset)

	t.Run("finds by id and code", func(t *testing.T) {
		found, err := repo.FindByID(ctx, tenantID, cash.ID)
		require.NoError(t, err)
		assert.Equal(t, "1000", found.Code)
		assert.Equal(t, ledger.SideDebit, found.NormalSide)
		assert.True(t, found.IsActive)

		byCode, err := repo.FindByCode(ctx, tenantID, "4000")
		require.NoError(t, err)
		assert.Equal(t, ledger.AccountTypeIncome, byCode.Type)
	})

	t.Run("other tenant is invisible", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New(), cash.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("lists ordered by code with type filter", func(t *testing.T) {
		filter := shared.DefaultFilter()
		filter.OrderDir = "asc"
		all, total, err := repo.List(ctx, tenantID, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Equal(t, "1000", all[0].Code)
		assert.Equal(t, "4000", all[1].Code)

		filter.Filters = map[string]any{"account_type": "income"}
		income, total, err := repo.List(ctx, tenantID, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, "4000", income[0].Code)
	})

	t.Run("update bumps version and rejects stale copies", func(t *testing.T) {
		stale, err := repo.FindByID(ctx, tenantID, cash.ID)
		require.NoError(t, err)

		require.NoError(t, cash.Deactivate())
		require.NoError(t, repo.Update(ctx, cash))
		assert.Equal(t, 2, cash.Version)

		found, err := repo.FindByID(ctx, tenantID, cash.ID)
		require.NoError(t, err)
		assert.False(t, found.IsActive)

		stale.Name = "Renamed"
		assert.ErrorIs(t, repo.Update(ctx, stale), shared.ErrConcurrencyConflict)
	})

	t.Run("balance deltas accumulate", func(t *testing.T) {
		require.NoError(t, repo.ApplyBalanceDelta(ctx, tenantID, cash.ID, decimal.RequireFromString("100.25")))
		require.NoError(t, repo.ApplyBalanceDelta(ctx, tenantID, cash.ID, decimal.RequireFromString("-40.05")))

		found, err := repo.FindByID(ctx, tenantID, cash.ID)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("60.2").Equal(found.Balance.Round(4)), found.Balance.String())
	})
}

func TestGormTransactionRepository_Lifecycle(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormTransactionRepository(db)
	accounts := NewGormAccountRepository(db, nil)
	ctx := context.Background()
	tenantID := uuid.New()

	cash := newTestAccount(t, db, tenantID, "1000", ledger.AccountTypeAsset)
	revenue := newTestAccount(t, db, tenantID, "4000", ledger.AccountTypeIncome)

	txn, err := ledger.NewDraftTransaction(tenantID, uuid.New(), time.Now(), "", decimal.Zero, "Cash sale",
		[]ledger.LineInput{
			{AccountID: cash.ID, Debit: decimal.NewFromInt(75), Tags: map[string]string{"channel": "pos"}},
			{AccountID: revenue.ID, Credit: decimal.NewFromInt(75)},
		})
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, txn))

	t.Run("loads lines in order with tags", func(t *testing.T) {
		found, err := repo.FindByID(ctx, tenantID, txn.ID)
		require.NoError(t, err)
		require.Len(t, found.Lines, 2)
		assert.Equal(t, 1, found.Lines[0].LineNo)
		assert.Equal(t, "pos", found.Lines[0].Tags["channel"])
		assert.True(t, decimal.NewFromInt(75).Equal(found.TotalDebit))
		assert.Equal(t, ledger.TransactionStatusDraft, found.Status)
	})

	t.Run("draft lines do not count as posted", func(t *testing.T) {
		debit, credit, err := accounts.SumPostedLines(ctx, tenantID, cash.ID)
		require.NoError(t, err)
		assert.True(t, debit.IsZero())
		assert.True(t, credit.IsZero())
	})

	t.Run("posting persists header state", func(t *testing.T) {
		require.NoError(t, txn.Post(uuid.New(), uuid.New(), decimal.RequireFromString("0.0001")))
		require.NoError(t, repo.Update(ctx, txn))
		assert.Equal(t, 2, txn.Version)

		debit, _, err := accounts.SumPostedLines(ctx, tenantID, cash.ID)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(75).Equal(debit), debit.String())

		filter := shared.DefaultFilter()
		filter.Filters = map[string]any{"status": "posted"}
		rows, total, err := repo.List(ctx, tenantID, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Empty(t, rows[0].Lines)
	})

	t.Run("posted entries cannot be deleted", func(t *testing.T) {
		err := repo.Delete(ctx, tenantID, txn.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormScope_SavepointRollsBackNestedUnitOnly(t *testing.T) {
	db := setupLedgerTestDB(t)
	scope := NewGormScope(db, nil)
	ctx := context.Background()
	tenantID := uuid.New()

	outer, err := ledger.NewAccount(tenantID, "1000", "Cash", ledger.AccountTypeAsset, "", "")
	require.NoError(t, err)
	inner, err := ledger.NewAccount(tenantID, "2000", "Payables", ledger.AccountTypeLiability, "", "")
	require.NoError(t, err)

	err = scope.Execute(ctx, func(ctx context.Context, repos unitofwork.Repositories) error {
		if err := repos.Accounts().Create(ctx, outer); err != nil {
			return err
		}
		nestedErr := scope.Execute(ctx, func(ctx context.Context, repos unitofwork.Repositories) error {
			if err := repos.Accounts().Create(ctx, inner); err != nil {
				return err
			}
			return assert.AnError
		})
		assert.ErrorIs(t, nestedErr, assert.AnError)
		return nil
	})
	require.NoError(t, err)

	repo := NewGormAccountRepository(db, nil)
	_, err = repo.FindByID(ctx, tenantID, outer.ID)
	assert.NoError(t, err)
	_, err = repo.FindByID(ctx, tenantID, inner.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormScope_RollsBackOnError(t *testing.T) {
	db := setupLedgerTestDB(t)
	scope := NewGormScope(db, nil)
	ctx := context.Background()
	tenantID := uuid.New()

	account, err := ledger.NewAccount(tenantID, "1000", "Cash", ledger.AccountTypeAsset, "", "")
	require.NoError(t, err)

	err = scope.Execute(ctx, func(ctx context.Context, repos unitofwork.Repositories) error {
		require.NoError(t, repos.Accounts().Create(ctx, account))
		return shared.NewValidationError("boom")
	})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = NewGormAccountRepository(db, nil).FindByID(ctx, tenantID, account.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormInvoiceRepository_Lifecycle(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()
	customerID := uuid.New()
	today := time.Now()

	first := newTestInvoice(t, tenantID, customerID, today.AddDate(0, 0, -10), "key-1")
	second := newTestInvoice(t, tenantID, customerID, today.AddDate(0, 0, -5), "")
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	t.Run("loads items and totals", func(t *testing.T) {
		found, err := repo.FindByID(ctx, tenantID, first.ID)
		require.NoError(t, err)
		require.Len(t, found.Items, 2)
		assert.Equal(t, "Consulting", found.Items[0].Description)
		assert.True(t, decimal.NewFromInt(120).Equal(found.TotalAmount), found.TotalAmount.String())
		assert.Equal(t, finance.InvoiceStatusDraft, found.Status)
	})

	t.Run("finds by idempotency key", func(t *testing.T) {
		found, err := repo.FindByIdempotencyKey(ctx, tenantID, "key-1")
		require.NoError(t, err)
		assert.Equal(t, first.ID, found.ID)

		_, err = repo.FindByIdempotencyKey(ctx, tenantID, "")
		assert.ErrorIs(t, err, shared.ErrNotFound)
		_, err = repo.FindByIdempotencyKey(ctx, uuid.New(), "key-1")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("open invoices are posted with a balance, oldest due first", func(t *testing.T) {
		require.NoError(t, second.Send())
		require.NoError(t, second.Post(uuid.New(), today))
		require.NoError(t, repo.Update(ctx, second))
		require.NoError(t, first.Send())
		require.NoError(t, first.Post(uuid.New(), today))
		require.NoError(t, repo.Update(ctx, first))

		open, err := repo.ListOpenByCustomer(ctx, tenantID, customerID, valueobject.DefaultCurrency)
		require.NoError(t, err)
		require.Len(t, open, 2)
		assert.Equal(t, first.ID, open[0].ID)
		assert.True(t, decimal.NewFromInt(120).Equal(open[0].BalanceDue))

		other, err := repo.ListOpenByCustomer(ctx, tenantID, customerID, "EUR")
		require.NoError(t, err)
		assert.Empty(t, other)
	})

	t.Run("statistics group by status", func(t *testing.T) {
		draft := newTestInvoice(t, tenantID, customerID, today, "")
		require.NoError(t, repo.Create(ctx, draft))

		stats, err := repo.Statistics(ctx, tenantID)
		require.NoError(t, err)
		byStatus := map[finance.InvoiceStatus]finance.InvoiceStatusSummary{}
		for _, s := range stats {
			byStatus[s.Status] = s
		}
		assert.Equal(t, int64(2), byStatus[finance.InvoiceStatusPosted].Count)
		assert.True(t, decimal.NewFromInt(240).Equal(byStatus[finance.InvoiceStatusPosted].BalanceDue))
		assert.Equal(t, int64(1), byStatus[finance.InvoiceStatusDraft].Count)
	})

	t.Run("list filters by status", func(t *testing.T) {
		status := finance.InvoiceStatusPosted
		rows, total, err := repo.List(ctx, tenantID, finance.InvoiceFilter{Filter: shared.DefaultFilter(), Status: &status})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Equal(t, second.ID, rows[0].ID)
	})

	t.Run("stale update conflicts", func(t *testing.T) {
		stale, err := repo.FindByID(ctx, tenantID, first.ID)
		require.NoError(t, err)
		require.NoError(t, first.ApplyPayment(decimal.NewFromInt(20)))
		require.NoError(t, repo.Update(ctx, first))

		require.NoError(t, stale.ApplyPayment(decimal.NewFromInt(20)))
		assert.ErrorIs(t, repo.Update(ctx, stale), shared.ErrConcurrencyConflict)
	})
}

func TestGormReceivableRepository_Save(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormReceivableRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()
	customerID := uuid.New()
	now := time.Now()

	inv := newTestInvoice(t, tenantID, customerID, now, "")
	require.NoError(t, inv.Send())
	require.NoError(t, inv.Post(uuid.New(), now))

	row, changed := finance.ProjectReceivable(nil, inv, "posted", "", now)
	require.True(t, changed)

	t.Run("first save inserts", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, row))
		assert.Equal(t, 1, row.Version)

		found, err := repo.FindByInvoice(ctx, tenantID, customerID, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, finance.ReceivableStatusOpen, found.Status)
		assert.True(t, decimal.NewFromInt(120).Equal(found.AmountDue))
		require.Len(t, found.Metadata, 1)
		assert.Equal(t, "posted", found.Metadata[0].Event)
	})

	t.Run("next save updates and guards the version", func(t *testing.T) {
		stale, err := repo.FindByInvoice(ctx, tenantID, customerID, inv.ID)
		require.NoError(t, err)

		require.NoError(t, inv.ApplyPayment(decimal.NewFromInt(20)))
		row, changed = finance.ProjectReceivable(row, inv, "partially_paid", "", now)
		require.True(t, changed)
		require.NoError(t, repo.Save(ctx, row))
		assert.Equal(t, 2, row.Version)

		found, err := repo.FindByInvoice(ctx, tenantID, customerID, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, finance.ReceivableStatusPartial, found.Status)
		assert.Len(t, found.Metadata, 2)

		stale.AmountDue = decimal.Zero
		assert.ErrorIs(t, repo.Save(ctx, stale), shared.ErrConcurrencyConflict)
	})

	t.Run("outstanding listing spans tenants on nil", func(t *testing.T) {
		otherInv := newTestInvoice(t, uuid.New(), uuid.New(), now, "")
		require.NoError(t, otherInv.Send())
		require.NoError(t, otherInv.Post(uuid.New(), now))
		other, _ := finance.ProjectReceivable(nil, otherInv, "posted", "", now)
		require.NoError(t, repo.Save(ctx, other))

		mine, err := repo.ListOutstanding(ctx, tenantID)
		require.NoError(t, err)
		assert.Len(t, mine, 1)

		all, err := repo.ListOutstanding(ctx, uuid.Nil)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		page, total, err := repo.List(ctx, tenantID, finance.ReceivableFilter{Filter: shared.DefaultFilter(), OutstandingOnly: true})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, inv.ID, page[0].InvoiceID)
	})
}

func TestGormPaymentRepository_SumUnallocated(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormPaymentRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()
	customerID := uuid.New()

	for _, amount := range []int64{100, 50} {
		p, err := finance.NewPayment(finance.NewPaymentInput{
			TenantID:       tenantID,
			CustomerID:     customerID,
			Amount:         decimal.NewFromInt(amount),
			Method:         finance.PaymentMethodBankTransfer,
			IdempotencyKey: "pay-" + decimal.NewFromInt(amount).String(),
		})
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, p))
	}

	sum, err := repo.SumUnallocated(ctx, tenantID, customerID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(150).Equal(sum), sum.String())

	found, err := repo.FindByIdempotencyKey(ctx, tenantID, "pay-50")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(50).Equal(found.Amount))
	assert.Equal(t, finance.PaymentStatusUnallocated, found.Status)
}

func TestGormIdempotencyStore(t *testing.T) {
	db := setupLedgerTestDB(t)
	store := NewGormIdempotencyStore(db)
	ctx := context.Background()
	tenantID := uuid.New()

	rec := idempotency.NewReservation(tenantID, uuid.New(), "k-1", "create_invoice", "abc")

	t.Run("reserve is insert-if-absent", func(t *testing.T) {
		ok, err := store.Reserve(ctx, rec)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.Reserve(ctx, idempotency.NewReservation(tenantID, uuid.New(), "k-1", "create_invoice", "def"))
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = store.Reserve(ctx, idempotency.NewReservation(uuid.New(), uuid.New(), "k-1", "create_invoice", "abc"))
		require.NoError(t, err)
		assert.True(t, ok, "keys are scoped per tenant")
	})

	t.Run("complete stores the descriptor once", func(t *testing.T) {
		found, err := store.Find(ctx, tenantID, "k-1")
		require.NoError(t, err)
		assert.Equal(t, idempotency.StateInFlight, found.State)
		assert.Nil(t, found.Descriptor)

		d := idempotency.Descriptor{Status: 201, ResourceType: "invoice", ResourceID: uuid.New()}
		require.NoError(t, store.Complete(ctx, tenantID, "k-1", d))

		found, err = store.Find(ctx, tenantID, "k-1")
		require.NoError(t, err)
		require.True(t, found.IsCompleted())
		assert.Equal(t, d, *found.Descriptor)
		assert.Equal(t, "abc", found.PayloadHash)

		assert.ErrorIs(t, store.Complete(ctx, tenantID, "k-1", d), shared.ErrConflict)
	})

	t.Run("release drops only in-flight keys", func(t *testing.T) {
		require.NoError(t, store.Release(ctx, tenantID, "k-1"))
		_, err := store.Find(ctx, tenantID, "k-1")
		assert.NoError(t, err)

		_, err = store.Reserve(ctx, idempotency.NewReservation(tenantID, uuid.New(), "k-2", "record_payment", "x"))
		require.NoError(t, err)
		require.NoError(t, store.Release(ctx, tenantID, "k-2"))
		_, err = store.Find(ctx, tenantID, "k-2")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("purge removes old records", func(t *testing.T) {
		old := idempotency.NewReservation(tenantID, uuid.New(), "old", "create_invoice", "x")
		old.CreatedAt = time.Now().Add(-72 * time.Hour)
		_, err := store.Reserve(ctx, old)
		require.NoError(t, err)

		n, err := store.PurgeBefore(ctx, time.Now().Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		_, err = store.Find(ctx, tenantID, "old")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormAuditRepository(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormAuditRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()
	aggregateID := uuid.New()

	entry := &audit.Entry{
		ID:            uuid.New(),
		TenantID:      tenantID,
		ActorID:       uuid.New(),
		Action:        "InvoicePosted",
		AggregateType: "Invoice",
		AggregateID:   aggregateID,
		EventID:       uuid.New(),
		Payload:       json.RawMessage(`{"total":"120"}`),
		OccurredAt:    time.Now(),
	}
	require.NoError(t, repo.Append(ctx, entry))

	redelivered := *entry
	redelivered.ID = uuid.New()
	require.NoError(t, repo.Append(ctx, &redelivered))

	rows, total, err := repo.List(ctx, tenantID, audit.Filter{Filter: shared.DefaultFilter(), AggregateID: &aggregateID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, entry.ID, rows[0].ID)
	assert.JSONEq(t, `{"total":"120"}`, string(rows[0].Payload))

	_, total, err = repo.List(ctx, uuid.New(), audit.Filter{Filter: shared.DefaultFilter()})
	require.NoError(t, err)
	assert.Zero(t, total)
}

type refKey struct{ tenantID, customerID uuid.UUID }

type recordingRefCache struct {
	refs        map[refKey]acl.CustomerReference
	invalidated []uuid.UUID
}

func (c *recordingRefCache) Get(_ context.Context, tenantID, customerID uuid.UUID) (acl.CustomerReference, bool) {
	ref, ok := c.refs[refKey{tenantID, customerID}]
	return ref, ok
}

func (c *recordingRefCache) Set(_ context.Context, tenantID uuid.UUID, ref acl.CustomerReference) {
	c.refs[refKey{tenantID, ref.ID()}] = ref
}

func (c *recordingRefCache) Invalidate(_ context.Context, tenantID, customerID uuid.UUID) {
	delete(c.refs, refKey{tenantID, customerID})
	c.invalidated = append(c.invalidated, customerID)
}

func TestGormCustomerDirectory(t *testing.T) {
	db := setupLedgerTestDB(t)
	cache := &recordingRefCache{refs: map[refKey]acl.CustomerReference{}}
	dir := NewGormCustomerDirectory(db, cache)
	ctx := context.Background()
	tenantID := uuid.New()
	customerID := uuid.New()

	_, err := dir.GetCustomerReference(ctx, tenantID, customerID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	limit := decimal.NewFromInt(5000)
	ref, err := acl.NewCustomerReference(customerID, "C-001", "Acme", "EUR", &limit, true)
	require.NoError(t, err)
	require.NoError(t, dir.Register(ctx, tenantID, ref))

	got, err := dir.GetCustomerReference(ctx, tenantID, customerID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Name())
	assert.Equal(t, valueobject.Currency("EUR"), got.Currency())
	require.NotNil(t, got.CreditLimit())
	assert.True(t, limit.Equal(*got.CreditLimit()))
	assert.Contains(t, cache.refs, refKey{tenantID, customerID})

	inactive, err := acl.NewCustomerReference(customerID, "C-001", "Acme GmbH", "EUR", nil, false)
	require.NoError(t, err)
	require.NoError(t, dir.Register(ctx, tenantID, inactive))
	assert.Equal(t, []uuid.UUID{customerID, customerID}, cache.invalidated)

	got, err = dir.GetCustomerReference(ctx, tenantID, customerID)
	require.NoError(t, err)
	assert.Equal(t, "Acme GmbH", got.Name())
	assert.False(t, got.IsActive())
	assert.Nil(t, got.CreditLimit())

	_, err = dir.GetCustomerReference(ctx, uuid.New(), customerID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
