package telemetry

import (
	"context"
	"testing"

	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.TelemetryConfig{
		Enabled:           true,
		CollectorEndpoint: "otel:4317",
		SamplingRatio:     0.25,
		ServiceName:       "ledger",
		Insecure:          true,
	}, "1.2.3")

	assert.Equal(t, Config{
		Enabled:           true,
		CollectorEndpoint: "otel:4317",
		SamplingRatio:     0.25,
		ServiceName:       "ledger",
		ServiceVersion:    "1.2.3",
		Insecure:          true,
	}, cfg)
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	ctx := context.Background()

	tp, err := NewTracerProvider(ctx, Config{Enabled: false, ServiceName: "ledger"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.Shutdown(ctx))
}

func TestNewTracerProvider_Enabled(t *testing.T) {
	if testing.Short() {
		t.Skip("needs an OTLP collector")
	}
	ctx := context.Background()

	tp, err := NewTracerProvider(ctx, Config{
		Enabled:           true,
		CollectorEndpoint: "localhost:14317",
		SamplingRatio:     1.0,
		ServiceName:       "ledger-test",
		Insecure:          true,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, tp.IsEnabled())

	_, span := tp.Tracer("test").Start(ctx, "probe")
	span.End()
	_ = tp.Shutdown(ctx)
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased")
}
