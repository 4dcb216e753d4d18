package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func sqlFn(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestGormLogger_LogMode(t *testing.T) {
	gl := NewGormLogger(zap.NewNop(), gormlogger.Info, WithSlowThreshold(time.Second))

	changed, ok := gl.LogMode(gormlogger.Warn).(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Warn, changed.logLevel)
	assert.Equal(t, gormlogger.Info, gl.logLevel)
	assert.Equal(t, time.Second, changed.slowThreshold)
}

func TestGormLogger_Messages(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.New(core), gormlogger.Warn)

	gl.Info(context.Background(), "hidden %d", 1)
	gl.Warn(context.Background(), "pool low: %d", 2)
	gl.Error(context.Background(), "broken: %s", "x")

	entries := recorded.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "pool low: 2", entries[0].Message)
	assert.Equal(t, "broken: x", entries[1].Message)
}

func TestGormLogger_Trace(t *testing.T) {
	ctx := context.Background()

	t.Run("error with tenant and request", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.New(core), gormlogger.Warn)

		tenantID := uuid.New()
		tctx, _ := WithRequestID(ctx, zap.NewNop(), "req-3")
		tctx = shared.ContextWithOp(tctx, shared.NewTenantOpContext(tenantID, uuid.New()))

		gl.Trace(tctx, time.Now(), sqlFn("UPDATE accounts", 0), errors.New("deadlock"))

		require.Len(t, recorded.All(), 1)
		entry := recorded.All()[0]
		assert.Equal(t, "SQL Error", entry.Message)
		assert.Equal(t, tenantID.String(), entry.ContextMap()["tenant_id"])
		assert.Equal(t, "req-3", entry.ContextMap()["request_id"])
	})

	t.Run("record not found is ignored", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.New(core), gormlogger.Info)

		gl.Trace(ctx, time.Now(), sqlFn("SELECT", 0), gormlogger.ErrRecordNotFound)
		assert.Empty(t, recorded.All())
	})

	t.Run("slow query", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.New(core), gormlogger.Warn, WithSlowThreshold(10*time.Millisecond))

		gl.Trace(ctx, time.Now().Add(-time.Second), sqlFn("SELECT", 1), nil)

		require.Len(t, recorded.All(), 1)
		assert.Contains(t, recorded.All()[0].Message, "SLOW SQL")
	})

	t.Run("info logs every query at debug", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.New(core), gormlogger.Info)

		gl.Trace(ctx, time.Now(), sqlFn("SELECT 1", 1), nil)

		require.Len(t, recorded.All(), 1)
		assert.Equal(t, zapcore.DebugLevel, recorded.All()[0].Level)
	})

	t.Run("silent logs nothing", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.New(core), gormlogger.Silent)

		gl.Trace(ctx, time.Now(), sqlFn("SELECT 1", 1), errors.New("x"))
		assert.Empty(t, recorded.All())
	})
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("ERROR"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("warn"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("unknown"))
}
