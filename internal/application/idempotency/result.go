package idempotency

import (
	"context"

	"github.com/erp/ledger/internal/application/unitofwork"
	"github.com/erp/ledger/internal/domain/idempotency"
	"github.com/google/uuid"
)

// Result wraps the resource returned by a guarded operation. Idempotent is
// true when the resource was produced by an earlier request with the same key.
type Result[T any] struct {
	Data       T
	Idempotent bool
}

// Run executes produce under the guard. On a replay the resource named by the
// stored descriptor is loaded with load instead.
func Run[T any](
	ctx context.Context,
	g *Guard,
	req Request,
	produce func(ctx context.Context, repos unitofwork.Repositories) (T, idempotency.Descriptor, error),
	load func(ctx context.Context, id uuid.UUID) (T, error),
) (*Result[T], error) {
	var produced T
	out, err := g.Execute(ctx, req, func(ctx context.Context, repos unitofwork.Repositories) (idempotency.Descriptor, error) {
		v, d, err := produce(ctx, repos)
		if err != nil {
			return idempotency.Descriptor{}, err
		}
		produced = v
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	if !out.Replayed {
		return &Result[T]{Data: produced}, nil
	}

	v, err := load(ctx, out.Descriptor.ResourceID)
	if err != nil {
		return nil, err
	}
	return &Result[T]{Data: v, Idempotent: true}, nil
}
