package telemetry

import (
	"context"
	"runtime/pprof"
	"testing"

	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestProfilerFromConfig(t *testing.T) {
	cfg := ProfilerFromConfig(config.ProfilingConfig{
		Enabled:          true,
		ServerAddress:    "http://pyroscope:4040",
		ApplicationName:  "ledger",
		BlockProfileRate: 5,
		SpanProfiles:     true,
	})
	assert.Equal(t, ProfilerConfig{
		Enabled:          true,
		ServerAddress:    "http://pyroscope:4040",
		ApplicationName:  "ledger",
		BlockProfileRate: 5,
	}, cfg)
}

func TestNewProfiler(t *testing.T) {
	t.Run("disabled is a no-op", func(t *testing.T) {
		p, err := NewProfiler(ProfilerConfig{}, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.False(t, p.IsEnabled())
		assert.NoError(t, p.Stop())
		assert.NoError(t, p.Stop())
	})

	t.Run("enabled requires an address", func(t *testing.T) {
		_, err := NewProfiler(ProfilerConfig{Enabled: true, ApplicationName: "ledger"}, zaptest.NewLogger(t))
		assert.ErrorContains(t, err, "server address")
	})

	t.Run("enabled requires an application name", func(t *testing.T) {
		_, err := NewProfiler(ProfilerConfig{Enabled: true, ServerAddress: "http://pyroscope:4040"}, zaptest.NewLogger(t))
		assert.ErrorContains(t, err, "application name")
	})
}

func TestProfileTypes(t *testing.T) {
	base := (&Profiler{}).profileTypes()
	assert.Len(t, base, 6)

	contention := (&Profiler{config: ProfilerConfig{MutexProfileFraction: 5, BlockProfileRate: 5}}).profileTypes()
	assert.Len(t, contention, 10)
}

func TestWithProfilingLabels(t *testing.T) {
	var route, tenant string
	var hasMethod bool
	WithProfilingLabels(context.Background(), map[string]string{
		ProfilingLabelRoute:    "/api/v1/invoices/:id",
		ProfilingLabelTenantID: "t-1",
		ProfilingLabelMethod:   "",
	}, func(ctx context.Context) {
		route, _ = pprof.Label(ctx, ProfilingLabelRoute)
		tenant, _ = pprof.Label(ctx, ProfilingLabelTenantID)
		_, hasMethod = pprof.Label(ctx, ProfilingLabelMethod)
	})

	assert.Equal(t, "/api/v1/invoices/:id", route)
	assert.Equal(t, "t-1", tenant)
	assert.False(t, hasMethod, "empty values are dropped")

	called := false
	WithProfilingLabels(context.Background(), nil, func(context.Context) { called = true })
	assert.True(t, called)
}
