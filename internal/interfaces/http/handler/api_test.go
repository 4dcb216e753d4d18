package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appaudit "github.com/erp/ledger/internal/application/audit"
	appfinance "github.com/erp/ledger/internal/application/finance"
	"github.com/erp/ledger/internal/application/idempotency"
	appledger "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/infrastructure/event"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/erp/ledger/internal/interfaces/http/handler"
	"github.com/erp/ledger/internal/interfaces/http/middleware"
	"github.com/erp/ledger/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

var testToday = time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)

type envelope[T any] struct {
	Success    bool           `json:"success"`
	Data       T              `json:"data"`
	Error      *dto.ErrorInfo `json:"error"`
	Idempotent bool           `json:"idempotent"`
}

type apiHarness struct {
	t        *testing.T
	engine   *gin.Engine
	tenantID uuid.UUID
	userID   uuid.UUID
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NamingStrategy: persistence.DefaultStorageMapping(),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, persistence.AutoMigrate(db))

	logger := zap.NewNop()
	clock := func() time.Time { return testToday }
	scope := persistence.NewGormScope(db, persistence.DefaultStorageMapping())
	guard := idempotency.NewGuard(scope, persistence.NewGormIdempotencyStore(db), idempotency.DefaultConfig(), logger)
	customers := persistence.NewGormCustomerDirectory(db, nil)

	bus := event.NewInMemoryEventBus(logger)
	reconciler := appfinance.NewReceivableReconciler(scope, clock, logger)
	bus.Subscribe(reconciler, reconciler.EventTypes()...)
	bus.Subscribe(appaudit.NewTrailHandler(scope, logger))

	gatekeeper := appledger.NewPeriodGatekeeper(logger)
	posting := appledger.NewPostingService(scope, guard, gatekeeper, bus, appledger.PostingConfig{}, logger)
	cfg := appfinance.DefaultConfig()
	payments := appfinance.NewPaymentService(scope, guard, posting, customers, bus, cfg, clock, logger)

	handlers := router.Handlers{
		Accounts: handler.NewAccountHandler(appledger.NewAccountService(scope, logger), logger),
		Journal:  handler.NewJournalHandler(posting, logger),
		Periods:  handler.NewPeriodHandler(appledger.NewPeriodService(scope, gatekeeper, logger), logger),
		Invoices: handler.NewInvoiceHandler(
			appfinance.NewInvoiceService(scope, guard, posting, customers, bus, cfg, clock, logger), logger),
		Payments: handler.NewPaymentHandler(payments, logger),
		Receivables: handler.NewReceivableHandler(
			appfinance.NewReceivableService(scope, clock, logger),
			payments,
			appfinance.NewCustomerService(customers, logger),
			logger,
		),
		Audit: handler.NewAuditHandler(appaudit.NewService(scope), logger),
	}

	engine := gin.New()
	r := router.NewRouter(engine, router.WithMiddleware(
		middleware.RequestID(),
		middleware.Authenticate(middleware.AuthConfig{AllowDevHeaders: true, Logger: logger}),
	))
	handlers.RegisterAll(r).Setup()

	return &apiHarness{t: t, engine: engine, tenantID: uuid.New(), userID: uuid.New()}
}

type requestOption func(*http.Request)

func withKey(key string) requestOption {
	return func(r *http.Request) { r.Header.Set("Idempotency-Key", key) }
}

func withPermissions(perms string) requestOption {
	return func(r *http.Request) { r.Header.Set("X-Permissions", perms) }
}

func (h *apiHarness) do(method, path string, body any, opts ...requestOption) *httptest.ResponseRecorder {
	h.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Tenant-ID", h.tenantID.String())
	req.Header.Set("X-User-ID", h.userID.String())
	for _, opt := range opts {
		opt(req)
	}
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func (h *apiHarness) createAccount(code, name, typ string) handler.AccountResponse {
	h.t.Helper()
	w := h.do(http.MethodPost, "/accounts", map[string]any{"code": code, "name": name, "type": typ})
	require.Equal(h.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[handler.AccountResponse](h.t, w).Data
}

func (h *apiHarness) openFiscalYear() handler.FiscalYearResponse {
	h.t.Helper()
	w := h.do(http.MethodPost, "/fiscal-years", map[string]any{
		"name":       "FY2026",
		"start_date": "2026-01-01",
		"end_date":   "2026-12-31",
	})
	require.Equal(h.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[handler.FiscalYearResponse](h.t, w).Data
}

func entryBody(debitAccount, creditAccount uuid.UUID, debit, credit string) map[string]any {
	return map[string]any{
		"date":        "2026-03-10",
		"description": "Owner contribution",
		"lines": []map[string]any{
			{"account_id": debitAccount, "debit": debit, "credit": "0"},
			{"account_id": creditAccount, "debit": "0", "credit": credit},
		},
	}
}

func TestAPI_JournalEntryPosting(t *testing.T) {
	h := newAPIHarness(t)
	year := h.openFiscalYear()
	assert.Len(t, year.Periods, 12)

	cash := h.createAccount("1010", "Cash", "asset")
	equity := h.createAccount("3000", "Owner equity", "equity")
	assert.Equal(t, "debit", cash.NormalSide)
	assert.Equal(t, "credit", equity.NormalSide)

	t.Run("posts a balanced entry", func(t *testing.T) {
		w := h.do(http.MethodPost, "/journal-entries", entryBody(cash.ID, equity.ID, "500", "500"), withKey("je-1"))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		env := decode[handler.TransactionResponse](t, w)
		assert.False(t, env.Idempotent)
		assert.Equal(t, "posted", env.Data.Status)
		assert.True(t, env.Data.TotalDebit.Equal(decimal.NewFromInt(500)))
		assert.Len(t, env.Data.Lines, 2)
		require.NotNil(t, env.Data.PeriodID)

		replay := h.do(http.MethodPost, "/journal-entries", entryBody(cash.ID, equity.ID, "500", "500"), withKey("je-1"))
		require.Equal(t, http.StatusOK, replay.Code, replay.Body.String())
		again := decode[handler.TransactionResponse](t, replay)
		assert.True(t, again.Idempotent)
		assert.Equal(t, env.Data.ID, again.Data.ID)

		w = h.do(http.MethodGet, "/accounts/"+cash.ID.String()+"/balance", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		balance := decode[appledger.AccountBalance](t, w).Data
		assert.True(t, balance.Balance.Equal(decimal.NewFromInt(500)), balance.Balance.String())
	})

	t.Run("rejects key reuse with another payload", func(t *testing.T) {
		w := h.do(http.MethodPost, "/journal-entries", entryBody(cash.ID, equity.ID, "75", "75"), withKey("je-1"))
		assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
		assert.Equal(t, dto.ErrCodeConflict, decode[any](t, w).Error.Code)
	})

	t.Run("rejects an unbalanced entry", func(t *testing.T) {
		w := h.do(http.MethodPost, "/journal-entries", entryBody(cash.ID, equity.ID, "100", "90"))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
		assert.Equal(t, dto.ErrCodeUnbalancedEntry, decode[any](t, w).Error.Code)
	})

	t.Run("rejects postings outside any period", func(t *testing.T) {
		body := entryBody(cash.ID, equity.ID, "10", "10")
		body["date"] = "2025-06-01"
		w := h.do(http.MethodPost, "/journal-entries", body)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
		assert.Equal(t, dto.ErrCodeNoOpenPeriod, decode[any](t, w).Error.Code)
	})

	t.Run("validates the request body", func(t *testing.T) {
		w := h.do(http.MethodPost, "/journal-entries", map[string]any{"date": "2026-03-10", "lines": []any{}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decode[any](t, w)
		assert.Equal(t, dto.ErrCodeValidation, env.Error.Code)
		assert.NotEmpty(t, env.Error.Details)

		w = h.do(http.MethodPost, "/journal-entries", `{"date":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidJSON, decode[any](t, w).Error.Code)
	})

	t.Run("voids an entry and reverses balances", func(t *testing.T) {
		w := h.do(http.MethodPost, "/journal-entries", entryBody(cash.ID, equity.ID, "40", "40"))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		entry := decode[handler.TransactionResponse](t, w).Data

		w = h.do(http.MethodPost, "/journal-entries/"+entry.ID.String()+"/void", map[string]any{"reason": "duplicate"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		voided := decode[handler.TransactionResponse](t, w).Data
		assert.Equal(t, "voided", voided.Status)
		assert.Equal(t, "duplicate", voided.VoidReason)

		w = h.do(http.MethodGet, "/accounts/"+cash.ID.String(), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, decode[handler.AccountResponse](t, w).Data.Balance.Equal(decimal.NewFromInt(500)))
	})

	t.Run("drafts do not touch balances until posted", func(t *testing.T) {
		w := h.do(http.MethodPost, "/journal-entries/drafts", entryBody(cash.ID, equity.ID, "25", "25"))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		draft := decode[handler.TransactionResponse](t, w).Data
		assert.Equal(t, "draft", draft.Status)

		w = h.do(http.MethodGet, "/accounts/"+cash.ID.String(), nil)
		assert.True(t, decode[handler.AccountResponse](t, w).Data.Balance.Equal(decimal.NewFromInt(500)))

		w = h.do(http.MethodPost, "/journal-entries/"+draft.ID.String()+"/post", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "posted", decode[handler.TransactionResponse](t, w).Data.Status)

		w = h.do(http.MethodGet, "/accounts/"+cash.ID.String(), nil)
		assert.True(t, decode[handler.AccountResponse](t, w).Data.Balance.Equal(decimal.NewFromInt(525)))

		w = h.do(http.MethodPost, "/journal-entries/drafts", entryBody(cash.ID, equity.ID, "5", "5"))
		require.Equal(t, http.StatusCreated, w.Code)
		discard := decode[handler.TransactionResponse](t, w).Data
		w = h.do(http.MethodDelete, "/journal-entries/"+discard.ID.String(), nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
		w = h.do(http.MethodGet, "/journal-entries/"+discard.ID.String(), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("lists entries by status", func(t *testing.T) {
		w := h.do(http.MethodGet, "/journal-entries?status=voided", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		env := decode[[]handler.TransactionResponse](t, w)
		require.Len(t, env.Data, 1)
		assert.Equal(t, "voided", env.Data[0].Status)
	})

	t.Run("closed periods reject postings", func(t *testing.T) {
		var march handler.PeriodResponse
		for _, p := range year.Periods {
			if p.StartDate.Month() == time.March {
				march = p
			}
		}
		require.NotEqual(t, uuid.Nil, march.ID)

		w := h.do(http.MethodPost, "/periods/"+march.ID.String()+"/close", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.True(t, decode[handler.PeriodResponse](t, w).Data.Closed)

		w = h.do(http.MethodPost, "/journal-entries", entryBody(cash.ID, equity.ID, "10", "10"))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

		w = h.do(http.MethodPost, "/periods/"+march.ID.String()+"/reopen", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		w = h.do(http.MethodPost, "/journal-entries", entryBody(cash.ID, equity.ID, "10", "10"))
		assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	})
}

func TestAPI_InvoiceToCashFlow(t *testing.T) {
	h := newAPIHarness(t)
	h.openFiscalYear()
	receivable := h.createAccount("1200", "Accounts receivable", "asset")
	h.createAccount("4000", "Revenue", "income")
	customerID := uuid.New()

	w := h.do(http.MethodPut, "/customers/"+customerID.String(), map[string]any{"code": "C-001", "name": "Acme"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	customer := decode[handler.CustomerResponse](t, w).Data
	assert.Equal(t, "Acme", customer.Name)
	assert.True(t, customer.Active)

	invoiceBody := map[string]any{
		"customer_id": customerID,
		"issue_date":  "2026-03-01",
		"items": []map[string]any{
			{"description": "Consulting", "quantity": "2", "unit_price": "50"},
			{"description": "Support", "quantity": "1", "unit_price": "20"},
		},
	}
	w = h.do(http.MethodPost, "/invoices", invoiceBody, withKey("inv-1"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	invoice := decode[handler.InvoiceResponse](t, w).Data
	assert.Equal(t, "draft", invoice.Status)
	assert.True(t, invoice.TotalAmount.Equal(decimal.NewFromInt(120)))

	w = h.do(http.MethodPost, "/invoices", invoiceBody, withKey("inv-1"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, invoice.ID, decode[handler.InvoiceResponse](t, w).Data.ID)

	id := invoice.ID.String()
	w = h.do(http.MethodPost, "/invoices/"+id+"/post", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "draft invoices cannot be posted")

	w = h.do(http.MethodPost, "/invoices/"+id+"/send", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "sent", decode[handler.InvoiceResponse](t, w).Data.Status)

	w = h.do(http.MethodPost, "/invoices/"+id+"/post", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	posted := decode[handler.InvoiceResponse](t, w).Data
	assert.Equal(t, "posted", posted.Status)
	assert.True(t, posted.BalanceDue.Equal(decimal.NewFromInt(120)))

	w = h.do(http.MethodGet, "/accounts/"+receivable.ID.String(), nil)
	assert.True(t, decode[handler.AccountResponse](t, w).Data.Balance.Equal(decimal.NewFromInt(120)))

	w = h.do(http.MethodGet, "/receivables?outstanding=true", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rows := decode[[]handler.ReceivableResponse](t, w).Data
	require.Len(t, rows, 1)
	assert.Equal(t, "open", rows[0].Status)
	assert.True(t, rows[0].AmountDue.Equal(decimal.NewFromInt(120)))

	w = h.do(http.MethodPost, "/payments", map[string]any{
		"customer_id":  customerID,
		"amount":       "50",
		"method":       "bank_transfer",
		"payment_date": "2026-03-18",
	}, withKey("pay-1"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	payment := decode[handler.PaymentResponse](t, w).Data
	assert.True(t, payment.Unallocated.Equal(decimal.NewFromInt(50)))

	w = h.do(http.MethodPost, "/payments/"+payment.ID.String()+"/allocations", map[string]any{
		"invoice_id": invoice.ID,
		"amount":     "80",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	assert.Equal(t, dto.ErrCodeOverAllocation, decode[any](t, w).Error.Code)

	w = h.do(http.MethodPost, "/payments/"+payment.ID.String()+"/allocations", map[string]any{
		"invoice_id": invoice.ID,
		"amount":     "50",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	alloc := decode[handler.AllocationResponse](t, w).Data
	assert.True(t, alloc.NetAmount.Equal(decimal.NewFromInt(50)))

	w = h.do(http.MethodGet, "/invoices/"+id, nil)
	afterPay := decode[handler.InvoiceResponse](t, w).Data
	assert.Equal(t, "partially_paid", afterPay.Status)
	assert.True(t, afterPay.BalanceDue.Equal(decimal.NewFromInt(70)))

	w = h.do(http.MethodGet, "/receivables/aging?as_of=2026-04-15", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	aging := decode[handler.AgingSummaryResponse](t, w).Data
	assert.True(t, aging.Total.Equal(decimal.NewFromInt(70)), aging.Total.String())
	require.Len(t, aging.Buckets, 5)
	for _, b := range aging.Buckets {
		if b.Bucket == "1-30" {
			assert.True(t, b.Amount.Equal(decimal.NewFromInt(70)))
			assert.Equal(t, 1, b.Count)
		} else {
			assert.True(t, b.Amount.IsZero(), b.Bucket)
		}
	}

	w = h.do(http.MethodGet, "/customers/"+customerID.String()+"/balance", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	balance := decode[appfinance.CustomerBalance](t, w).Data
	assert.True(t, balance.OutstandingAmount.Equal(decimal.NewFromInt(70)))
	assert.True(t, balance.UnallocatedAmount.IsZero())

	w = h.do(http.MethodPost, "/invoices/"+id+"/cancel", map[string]any{"reason": "oops"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "paid invoices cannot be cancelled")

	w = h.do(http.MethodGet, "/audit-entries", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	entries := decode[[]handler.AuditEntryResponse](t, w).Data
	assert.NotEmpty(t, entries)
	for _, e := range entries {
		assert.Equal(t, h.userID, e.ActorID)
	}
}

func TestAPI_PermissionsAndNotFound(t *testing.T) {
	h := newAPIHarness(t)

	w := h.do(http.MethodPost, "/accounts", map[string]any{"code": "1000", "name": "Cash", "type": "asset"},
		withPermissions("account:read"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, dto.ErrCodeForbidden, decode[any](t, w).Error.Code)

	w = h.do(http.MethodGet, "/accounts", nil, withPermissions("account:read"))
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(http.MethodGet, "/accounts/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(http.MethodGet, "/accounts/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	h.createAccount("1000", "Cash", "asset")
	w = h.do(http.MethodPost, "/accounts", map[string]any{"code": "1000", "name": "Cash again", "type": "asset"})
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	other := *h
	other.tenantID = uuid.New()
	w = other.do(http.MethodGet, "/accounts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]handler.AccountResponse](t, w).Data)
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestSystemHandler_Health(t *testing.T) {
	tests := []struct {
		name   string
		pinger handler.Pinger
		status int
		want   string
	}{
		{name: "healthy", pinger: fakePinger{}, status: http.StatusOK, want: "ok"},
		{name: "database down", pinger: fakePinger{err: errors.New("connection refused")}, status: http.StatusServiceUnavailable, want: "degraded"},
		{name: "no database", pinger: nil, status: http.StatusOK, want: "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewSystemHandler("ledger", "test", tt.pinger, zap.NewNop())
			engine := gin.New()
			engine.GET("/health", h.Health)

			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.status, w.Code)
			resp := decode[handler.HealthResponse](t, w).Data
			assert.Equal(t, tt.want, resp.Status)
			assert.Equal(t, "test", resp.Version)
		})
	}
}
