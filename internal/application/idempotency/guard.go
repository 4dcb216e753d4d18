// Package idempotency makes financial mutations safe to retry. A request
// carrying an idempotency key is reserved before it runs, completed in the
// same unit of work as its mutation and replayed on repeats.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/application/unitofwork"
	"github.com/erp/ledger/internal/domain/idempotency"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Outcome labels reported to the metrics recorder
const (
	OutcomeExecuted = "executed"
	OutcomeReplayed = "replayed"
	OutcomeConflict = "conflict"
	OutcomeFailed   = "failed"
)

// Config holds the guard timings
type Config struct {
	// PollInterval is how often a request waiting on an in-flight key re-reads it
	PollInterval time.Duration
	// WaitTimeout bounds how long a request waits on an in-flight key
	WaitTimeout time.Duration
	// Retention is the age after which records are purged
	Retention time.Duration
}

// DefaultConfig returns the guard defaults
func DefaultConfig() Config {
	return Config{
		PollInterval: 50 * time.Millisecond,
		WaitTimeout:  5 * time.Second,
		Retention:    24 * time.Hour,
	}
}

// Request describes one guarded call
type Request struct {
	Op        shared.OpContext
	Operation string
	Payload   any
}

// Outcome is the result of a guarded call. Replayed is set when the
// descriptor comes from an earlier request with the same key.
type Outcome struct {
	Descriptor idempotency.Descriptor
	Replayed   bool
}

// Work is the mutation run inside the unit of work. It returns the
// descriptor of the resource it produced.
type Work func(ctx context.Context, repos unitofwork.Repositories) (idempotency.Descriptor, error)

// MetricsRecorder receives one outcome per guarded call
type MetricsRecorder interface {
	IdempotencyOutcome(operation, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) IdempotencyOutcome(string, string) {}

// Guard runs mutations under idempotency keys
type Guard struct {
	scope    unitofwork.Scope
	store    idempotency.Store
	cfg      Config
	logger   *zap.Logger
	recorder MetricsRecorder
}

// Option configures a Guard
type Option func(*Guard)

// WithMetricsRecorder sets the metrics recorder
func WithMetricsRecorder(r MetricsRecorder) Option {
	return func(g *Guard) {
		if r != nil {
			g.recorder = r
		}
	}
}

// NewGuard creates a guard. store must not be bound to a transaction: the
// reservation is committed before the mutation starts.
func NewGuard(scope unitofwork.Scope, store idempotency.Store, cfg Config, logger *zap.Logger, opts ...Option) *Guard {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = def.WaitTimeout
	}
	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Guard{
		scope:    scope,
		store:    store,
		cfg:      cfg,
		logger:   logger,
		recorder: noopRecorder{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Execute runs work once per idempotency key. Without a key the work runs
// once in its own unit of work and is never replayed.
func (g *Guard) Execute(ctx context.Context, req Request, work Work) (Outcome, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "idempotency", "execute",
		telemetry.WithAttribute(telemetry.SpanAttrOperation, req.Operation))
	defer span.End()

	key, err := idempotency.NormalizeKey(req.Op.IdempotencyKey)
	if err != nil {
		return Outcome{}, err
	}

	if key == "" {
		d, err := g.execute(ctx, req.Op, "", work)
		g.record(req.Operation, err, false)
		if err != nil {
			telemetry.RecordError(span, err)
			return Outcome{}, err
		}
		return Outcome{Descriptor: d}, nil
	}

	hash, err := idempotency.Fingerprint(req.Operation, req.Payload)
	if err != nil {
		return Outcome{}, shared.NewValidationError("request payload cannot be fingerprinted: %v", err)
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrIdempotencyKey, key)

	out, err := g.run(ctx, req, key, hash, work)
	if err != nil && shared.IsRetryable(err) {
		// The key makes a second attempt safe.
		g.logger.Warn("retrying idempotent request after retryable storage failure",
			zap.String("operation", req.Operation),
			zap.String("tenant_id", req.Op.TenantID.String()),
			zap.String("idempotency_key", key),
			zap.Error(err),
		)
		out, err = g.run(ctx, req, key, hash, work)
	}

	g.record(req.Operation, err, out.Replayed)
	if err != nil {
		telemetry.RecordError(span, err)
		return Outcome{}, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrReplayed, out.Replayed)
	return out, nil
}

func (g *Guard) run(ctx context.Context, req Request, key, hash string, work Work) (Outcome, error) {
	tenantID := req.Op.TenantID
	deadline := time.Now().Add(g.cfg.WaitTimeout)

	for {
		rec := idempotency.NewReservation(tenantID, req.Op.ActorID, key, req.Operation, hash)
		inserted, err := g.store.Reserve(ctx, rec)
		if err != nil {
			return Outcome{}, fmt.Errorf("reserve idempotency key: %w", err)
		}
		if inserted {
			d, err := g.execute(ctx, req.Op, key, work)
			if err != nil {
				return Outcome{}, err
			}
			return Outcome{Descriptor: d}, nil
		}

		existing, err := g.store.Find(ctx, tenantID, key)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			// Released between our reserve and find; try again.
			continue
		case err != nil:
			return Outcome{}, fmt.Errorf("load idempotency record: %w", err)
		}

		if err := existing.CheckPayload(hash); err != nil {
			return Outcome{}, err
		}
		if existing.IsCompleted() {
			g.logger.Debug("replaying idempotent request",
				zap.String("operation", req.Operation),
				zap.String("idempotency_key", key),
				zap.String("resource_id", existing.Descriptor.ResourceID.String()),
			)
			return Outcome{Descriptor: *existing.Descriptor, Replayed: true}, nil
		}

		if !time.Now().Before(deadline) {
			return Outcome{}, shared.NewConflictError("request with this key is still in progress")
		}
		timer := time.NewTimer(g.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Outcome{}, ctx.Err()
		case <-timer.C:
		}
	}
}

// execute runs work and, when key is set, stores the descriptor in the same
// unit of work. A failed run releases the reservation.
func (g *Guard) execute(ctx context.Context, op shared.OpContext, key string, work Work) (idempotency.Descriptor, error) {
	var d idempotency.Descriptor
	err := g.scope.Execute(shared.ContextWithOp(ctx, op), func(ctx context.Context, repos unitofwork.Repositories) error {
		var err error
		d, err = work(ctx, repos)
		if err != nil {
			return err
		}
		if key == "" {
			return nil
		}
		return repos.Idempotency().Complete(ctx, op.TenantID, key, d)
	})
	if err == nil {
		return d, nil
	}

	if key != "" {
		if rerr := g.store.Release(context.WithoutCancel(ctx), op.TenantID, key); rerr != nil {
			g.logger.Error("failed to release idempotency reservation",
				zap.String("tenant_id", op.TenantID.String()),
				zap.String("idempotency_key", key),
				zap.Error(rerr),
			)
		}
	}
	return idempotency.Descriptor{}, err
}

func (g *Guard) record(operation string, err error, replayed bool) {
	switch {
	case err == nil && replayed:
		g.recorder.IdempotencyOutcome(operation, OutcomeReplayed)
	case err == nil:
		g.recorder.IdempotencyOutcome(operation, OutcomeExecuted)
	case errors.Is(err, shared.ErrConflict):
		g.recorder.IdempotencyOutcome(operation, OutcomeConflict)
	default:
		g.recorder.IdempotencyOutcome(operation, OutcomeFailed)
	}
}

// Purge deletes records older than the retention window
func (g *Guard) Purge(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-g.cfg.Retention)
	n, err := g.store.PurgeBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge idempotency records: %w", err)
	}
	return n, nil
}
