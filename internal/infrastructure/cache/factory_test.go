package cache

import (
	"context"
	"testing"

	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// unreachableRedis points at a port nothing listens on
var unreachableRedis = config.RedisConfig{Host: "127.0.0.1", Port: 1}

func TestProcessedEventStoreFactory_Memory(t *testing.T) {
	f := NewProcessedEventStoreFactory(config.EventConfig{DedupeBackend: "memory"}, unreachableRedis)

	store, err := f.CreateStore(context.Background())
	require.NoError(t, err)
	defer store.Close()

	assert.IsType(t, &InMemoryProcessedEventStore{}, store)
}

func TestProcessedEventStoreFactory_UnknownBackend(t *testing.T) {
	f := NewProcessedEventStoreFactory(config.EventConfig{DedupeBackend: "kafka"}, unreachableRedis)

	_, err := f.CreateStore(context.Background())
	assert.ErrorContains(t, err, "unknown event dedupe backend")
}

func TestProcessedEventStoreFactory_RedisFallback(t *testing.T) {
	f := NewProcessedEventStoreFactory(config.EventConfig{DedupeBackend: "redis"}, unreachableRedis,
		WithLogger(zap.NewNop()))

	store, err := f.CreateStore(context.Background())
	require.NoError(t, err)
	defer store.Close()

	assert.IsType(t, &InMemoryProcessedEventStore{}, store)
}

func TestProcessedEventStoreFactory_RedisRequired(t *testing.T) {
	f := NewProcessedEventStoreFactory(config.EventConfig{DedupeBackend: "redis"}, unreachableRedis,
		WithInMemoryFallback(false))

	_, err := f.CreateStore(context.Background())
	assert.ErrorContains(t, err, "redis required")
}
