package logger

import (
	"context"
	"testing"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func contextWithSpan(ctx context.Context) (context.Context, trace.SpanContext) {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10},
		SpanID:     trace.SpanID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(ctx, sc), sc
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	log := zap.NewExample()
	ctx := WithContext(context.Background(), log)
	assert.Same(t, log, FromContext(ctx))
}

func TestWithRequestID(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	ctx, enriched := WithRequestID(context.Background(), zap.New(core), "req-42")
	enriched.Info("hello")

	assert.Equal(t, "req-42", GetRequestID(ctx))
	assert.Equal(t, "", GetRequestID(context.Background()))
	require.Len(t, recorded.All(), 1)
	assert.Equal(t, "req-42", recorded.All()[0].ContextMap()["request_id"])
}

func TestTraceIDs(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
	assert.Empty(t, GetSpanID(context.Background()))

	ctx, sc := contextWithSpan(context.Background())
	assert.Equal(t, sc.TraceID().String(), GetTraceID(ctx))
	assert.Equal(t, sc.SpanID().String(), GetSpanID(ctx))
}

func TestOpFields(t *testing.T) {
	tenantID, actorID := uuid.New(), uuid.New()
	op := shared.NewTenantOpContext(tenantID, actorID).WithIdempotencyKey("key-1")

	fields := OpFields(op)
	require.Len(t, fields, 3)
	assert.Equal(t, tenantID.String(), fields[0].String)
	assert.Equal(t, actorID.String(), fields[1].String)
	assert.Equal(t, "key-1", fields[2].String)

	assert.Empty(t, OpFields(shared.OpContext{}))
}

func TestContextLogger_EnrichesFields(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	tenantID := uuid.New()

	ctx := WithContext(context.Background(), zap.New(core))
	ctx, _ = WithRequestID(ctx, FromContext(ctx), "req-1")
	ctx, sc := contextWithSpan(ctx)
	ctx = shared.ContextWithOp(ctx, shared.NewTenantOpContext(tenantID, uuid.New()))

	L(ctx).Warn("overlapping periods", zap.Int("count", 2))

	require.Len(t, recorded.All(), 1)
	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, sc.TraceID().String(), fields["trace_id"])
	assert.Equal(t, tenantID.String(), fields["tenant_id"])
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, int64(2), fields["count"])
}

func TestContextLogger_Levels(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	cl := WithLogger(context.Background(), zap.New(core)).With(zap.String("component", "guard"))

	cl.Debug("d")
	cl.Info("i")
	cl.Warn("w")
	cl.Error("e")

	entries := recorded.All()
	require.Len(t, entries, 4)
	for _, e := range entries {
		assert.Equal(t, "guard", e.ContextMap()["component"])
	}
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
}

func TestContextLogger_NilLogger(t *testing.T) {
	cl := WithLogger(context.Background(), nil)
	assert.NotPanics(t, func() {
		cl.Info("ignored")
		cl.With(zap.String("k", "v")).Warn("ignored")
	})
	assert.NotNil(t, cl.Zap())
}
