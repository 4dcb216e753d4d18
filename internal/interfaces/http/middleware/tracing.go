package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds configuration for the tracing middleware
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// DefaultTracingConfig returns default tracing configuration
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "ledger-api",
		Enabled:     true,
	}
}

// Tracing wraps otelgin. Span names follow "METHOD route", e.g.
// "POST /api/v1/journal-entries". The request id is attached once the span
// exists.
func Tracing(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	base := otelgin.Middleware(cfg.ServiceName)
	return func(c *gin.Context) {
		base(c)
	}
}

// OpAttributes copies the operation context onto the current span. Place it
// after Authenticate.
func OpAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			span.SetAttributes(attribute.String("request_id", GetRequestID(c)))
			if op, ok := GetOpContext(c); ok {
				span.SetAttributes(
					attribute.String("tenant_id", op.TenantID.String()),
					attribute.String("actor_id", op.ActorID.String()),
				)
				if op.IdempotencyKey != "" {
					span.SetAttributes(attribute.String("idempotency_key", op.IdempotencyKey))
				}
			}
		}
		c.Next()
	}
}

// SpanErrorMarker marks the span as failed for 4xx and 5xx responses. Place
// it after Tracing.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}
		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}

		message := "Client Error"
		switch {
		case status >= http.StatusInternalServerError:
			message = "Internal Server Error"
		case status == http.StatusUnauthorized:
			message = "Unauthorized"
		case status == http.StatusForbidden:
			message = "Forbidden"
		case status == http.StatusNotFound:
			message = "Not Found"
		case status == http.StatusConflict:
			message = "Conflict"
		case status == http.StatusUnprocessableEntity:
			message = "Business Rule Violation"
		}
		span.SetStatus(codes.Error, message)
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
}
