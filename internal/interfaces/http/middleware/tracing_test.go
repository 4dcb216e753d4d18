package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prevTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t.Cleanup(func() {
		_ = tp.Shutdown(t.Context())
		otel.SetTracerProvider(prevTP)
	})
	return sr
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracing_Disabled(t *testing.T) {
	sr := setupTestTracer(t)

	router := gin.New()
	router.Use(Tracing(TracingConfig{ServiceName: "test", Enabled: false}))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sr.Ended())
}

func TestTracing_SpanNameUsesRoute(t *testing.T) {
	sr := setupTestTracer(t)

	router := gin.New()
	router.Use(Tracing(DefaultTracingConfig()))
	router.GET("/api/v1/accounts/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/accounts/42", nil))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Contains(t, spans[0].Name(), "/api/v1/accounts/:id")
}

func TestOpAttributes(t *testing.T) {
	sr := setupTestTracer(t)
	tenantID, actorID := uuid.New(), uuid.New()

	router := gin.New()
	router.Use(Tracing(DefaultTracingConfig()), RequestID())
	router.Use(func(c *gin.Context) {
		op := shared.NewTenantOpContext(tenantID, actorID)
		op.IdempotencyKey = "key-1"
		c.Set(OpContextKey, op)
		c.Next()
	})
	router.Use(OpAttributes())
	router.POST("/api/v1/journal-entries", func(c *gin.Context) { c.Status(http.StatusCreated) })

	req := httptest.NewRequest(http.MethodPost, "/api/v1/journal-entries", nil)
	req.Header.Set(HeaderRequestID, "req-abc")
	router.ServeHTTP(httptest.NewRecorder(), req)

	spans := sr.Ended()
	require.Len(t, spans, 1)

	v, ok := spanAttr(spans[0], "tenant_id")
	require.True(t, ok)
	assert.Equal(t, tenantID.String(), v.AsString())
	v, ok = spanAttr(spans[0], "actor_id")
	require.True(t, ok)
	assert.Equal(t, actorID.String(), v.AsString())
	v, ok = spanAttr(spans[0], "request_id")
	require.True(t, ok)
	assert.Equal(t, "req-abc", v.AsString())
	v, ok = spanAttr(spans[0], "idempotency_key")
	require.True(t, ok)
	assert.Equal(t, "key-1", v.AsString())
}

func TestSpanErrorMarker(t *testing.T) {
	tests := []struct {
		status  int
		isError bool
		message string
	}{
		{http.StatusOK, false, ""},
		{http.StatusBadRequest, true, "Client Error"},
		{http.StatusUnauthorized, true, "Unauthorized"},
		{http.StatusForbidden, true, "Forbidden"},
		{http.StatusNotFound, true, "Not Found"},
		{http.StatusConflict, true, "Conflict"},
		{http.StatusUnprocessableEntity, true, "Business Rule Violation"},
		{http.StatusInternalServerError, true, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			sr := setupTestTracer(t)

			router := gin.New()
			router.Use(Tracing(DefaultTracingConfig()), SpanErrorMarker())
			router.GET("/x", func(c *gin.Context) { c.Status(tt.status) })

			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

			spans := sr.Ended()
			require.Len(t, spans, 1)
			if tt.isError {
				assert.Equal(t, codes.Error, spans[0].Status().Code)
				// otelgin sets its own status for server errors after the marker runs
				if tt.status < http.StatusInternalServerError {
					assert.Equal(t, tt.message, spans[0].Status().Description)
				}
			} else {
				assert.NotEqual(t, codes.Error, spans[0].Status().Code)
			}
		})
	}
}

func TestSpanErrorMarker_WithoutSpan(t *testing.T) {
	router := gin.New()
	router.Use(SpanErrorMarker())
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
