package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_IdempotencyOutcome(t *testing.T) {
	m := NewMetrics()

	m.IdempotencyOutcome("invoice.create", "executed")
	m.IdempotencyOutcome("invoice.create", "replayed")
	m.IdempotencyOutcome("invoice.create", "replayed")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.idempotencyOutcomes.WithLabelValues("invoice.create", "executed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.idempotencyOutcomes.WithLabelValues("invoice.create", "replayed")))
}

func TestMetrics_JournalEntry(t *testing.T) {
	m := NewMetrics()

	m.JournalEntry("posted", 2)
	m.JournalEntry("posted", 3)
	m.JournalEntry("voided", 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.journalEntries.WithLabelValues("posted")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.journalLines.WithLabelValues("posted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.journalEntries.WithLabelValues("voided")))
}

func TestMetrics_DedupeStats(t *testing.T) {
	m := NewMetrics()
	processed := int64(4)
	require.NoError(t, m.RegisterDedupeStats(func() (int64, int64, int64) { return processed, 2, 1 }))

	expected := `
# HELP ledger_events_duplicate_total Redelivered events skipped by id
# TYPE ledger_events_duplicate_total counter
ledger_events_duplicate_total 2
# HELP ledger_events_processed_total Events handled for the first time
# TYPE ledger_events_processed_total counter
ledger_events_processed_total 4
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"ledger_events_processed_total", "ledger_events_duplicate_total"))

	assert.Error(t, m.RegisterDedupeStats(func() (int64, int64, int64) { return 0, 0, 0 }),
		"registering twice must fail")
}

func TestMetrics_GinMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(m.GinMiddleware())
	router.GET("/api/v1/invoices/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/invoices/abc", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/v1/invoices/:id", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "unmatched", "404")))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ledger_http_requests_total")
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
