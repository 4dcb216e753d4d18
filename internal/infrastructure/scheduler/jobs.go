package scheduler

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Job names
const (
	JobIdempotencyPurge = "idempotency_purge"
	JobAgingRefresh     = "receivable_aging_refresh"
)

// Purger deletes expired idempotency records
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// AgingRefresher rewrites stale receivable aging buckets. uuid.Nil covers
// every tenant.
type AgingRefresher interface {
	RefreshAging(ctx context.Context, tenantID uuid.UUID) (int, error)
}

// IdempotencyPurge returns the body of the idempotency janitor
func IdempotencyPurge(p Purger, logger *zap.Logger) JobFunc {
	return func(ctx context.Context) error {
		n, err := p.Purge(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info("purged expired idempotency records", zap.Int64("count", n))
		}
		return nil
	}
}

// AgingRefresh returns the body of the receivable aging refresh
func AgingRefresh(r AgingRefresher) JobFunc {
	return func(ctx context.Context) error {
		_, err := r.RefreshAging(ctx, uuid.Nil)
		return err
	}
}
