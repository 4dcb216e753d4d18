package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/config"
	"go.uber.org/zap"
)

// ProcessedEventStoreFactory creates the event dedupe store selected by
// configuration
type ProcessedEventStoreFactory struct {
	eventConfig           config.EventConfig
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// ProcessedEventStoreFactoryOption is a functional option for configuring the factory
type ProcessedEventStoreFactoryOption func(*ProcessedEventStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) ProcessedEventStoreFactoryOption {
	return func(f *ProcessedEventStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to
// the in-memory store. Default is true.
func WithInMemoryFallback(allow bool) ProcessedEventStoreFactoryOption {
	return func(f *ProcessedEventStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewProcessedEventStoreFactory creates a new factory
func NewProcessedEventStoreFactory(eventCfg config.EventConfig, redisCfg config.RedisConfig, opts ...ProcessedEventStoreFactoryOption) *ProcessedEventStoreFactory {
	f := &ProcessedEventStoreFactory{
		eventConfig:           eventCfg,
		redisConfig:           redisCfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateStore returns the configured store. The "redis" backend falls back
// to memory when Redis is unreachable and fallback is allowed.
func (f *ProcessedEventStoreFactory) CreateStore(ctx context.Context) (shared.ProcessedEventStore, error) {
	switch strings.ToLower(f.eventConfig.DedupeBackend) {
	case "", "memory":
		f.logger.Info("using in-memory processed event store")
		return NewInMemoryProcessedEventStore(0), nil
	case "redis":
	default:
		return nil, fmt.Errorf("unknown event dedupe backend %q", f.eventConfig.DedupeBackend)
	}

	store, err := NewRedisProcessedEventStore(ctx, f.redisConfig)
	if err == nil {
		f.logger.Info("using Redis processed event store", zap.String("addr", f.redisConfig.Addr()))
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for event dedupe but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory processed event store",
		zap.Error(err),
	)
	return NewInMemoryProcessedEventStore(0), nil
}
