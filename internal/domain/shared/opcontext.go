package shared

import (
	"context"

	"github.com/google/uuid"
)

// OpContext carries the tenant and actor of a single operation. Every
// application operation receives it explicitly; nothing is read from ambient
// state.
type OpContext struct {
	TenantID       uuid.UUID
	ActorID        uuid.UUID
	Scope          AuthScope
	Permissions    []Permission
	IdempotencyKey string
	RequestID      string
}

// NewTenantOpContext builds an OpContext for an actor confined to tenantID
func NewTenantOpContext(tenantID, actorID uuid.UUID, perms ...Permission) OpContext {
	return OpContext{
		TenantID:    tenantID,
		ActorID:     actorID,
		Scope:       TenantScope{TenantID: tenantID},
		Permissions: perms,
	}
}

// WithIdempotencyKey returns a copy carrying key
func (o OpContext) WithIdempotencyKey(key string) OpContext {
	o.IdempotencyKey = key
	return o
}

// HasPermission reports whether any granted permission satisfies perm
func (o OpContext) HasPermission(perm Permission) bool {
	for _, p := range o.Permissions {
		if p.Grants(perm) {
			return true
		}
	}
	return false
}

// Authorize checks that the operation's scope covers its tenant and that the
// actor holds perm.
func Authorize(op OpContext, perm Permission) error {
	if op.TenantID == uuid.Nil {
		return NewValidationError("tenant id is required")
	}
	if op.Scope == nil {
		return NewForbiddenError("no authorization scope")
	}
	if !op.Scope.Covers(op.TenantID) {
		return NewForbiddenError("scope %s does not cover tenant %s", op.Scope, op.TenantID)
	}
	if !op.HasPermission(perm) {
		return NewForbiddenError("missing permission %s", perm)
	}
	return nil
}

type opContextKey struct{}

// ContextWithOp attaches op to ctx so that event handlers running inside the
// operation can attribute their writes.
func ContextWithOp(ctx context.Context, op OpContext) context.Context {
	return context.WithValue(ctx, opContextKey{}, op)
}

// OpFromContext returns the operation attached by ContextWithOp
func OpFromContext(ctx context.Context) (OpContext, bool) {
	op, ok := ctx.Value(opContextKey{}).(OpContext)
	return op, ok
}
