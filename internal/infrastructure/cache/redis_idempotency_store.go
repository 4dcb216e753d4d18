package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

const defaultProcessedEventPrefix = "ledger:event:processed:"

// RedisProcessedEventStore implements shared.ProcessedEventStore on Redis so
// every instance sees the same marks.
type RedisProcessedEventStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisProcessedEventStore connects to Redis and verifies the connection
func NewRedisProcessedEventStore(ctx context.Context, cfg config.RedisConfig) (*RedisProcessedEventStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisProcessedEventStoreWithClient(client, ""), nil
}

// NewRedisProcessedEventStoreWithClient creates a store with an existing client
func NewRedisProcessedEventStoreWithClient(client redis.UniversalClient, keyPrefix string) *RedisProcessedEventStore {
	if keyPrefix == "" {
		keyPrefix = defaultProcessedEventPrefix
	}
	return &RedisProcessedEventStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// MarkProcessed sets the mark with SETNX, so exactly one caller wins
func (s *RedisProcessedEventStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+eventID, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark event as processed: %w", err)
	}
	return ok, nil
}

// Forget deletes the mark
func (s *RedisProcessedEventStore) Forget(ctx context.Context, eventID string) error {
	if err := s.client.Del(ctx, s.keyPrefix+eventID).Err(); err != nil {
		return fmt.Errorf("failed to forget processed event: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisProcessedEventStore) Close() error {
	return s.client.Close()
}

var _ shared.ProcessedEventStore = (*RedisProcessedEventStore)(nil)
