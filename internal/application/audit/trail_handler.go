// Package audit records every domain event with the actor that caused it.
package audit

import (
	"context"
	"fmt"

	"github.com/erp/ledger/internal/application/unitofwork"
	"github.com/erp/ledger/internal/domain/audit"
	"github.com/erp/ledger/internal/domain/shared"
	"go.uber.org/zap"
)

// TrailHandler appends an audit entry for every published event, inside the
// publishing unit of work.
type TrailHandler struct {
	scope  unitofwork.Scope
	logger *zap.Logger
}

// NewTrailHandler creates a new TrailHandler
func NewTrailHandler(scope unitofwork.Scope, logger *zap.Logger) *TrailHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrailHandler{scope: scope, logger: logger}
}

// EventTypes returns nil: the trail receives every event
func (h *TrailHandler) EventTypes() []string {
	return nil
}

// Handle writes the audit entry. The actor comes from the operation carried
// by ctx; events published outside an operation are attributed to nobody.
func (h *TrailHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	op, ok := shared.OpFromContext(ctx)
	if !ok {
		h.logger.Warn("event published without operation context",
			zap.String("event_type", event.EventType()),
			zap.String("event_id", event.EventID().String()),
		)
	}
	entry, err := audit.NewEntry(op, event)
	if err != nil {
		return fmt.Errorf("build audit entry: %w", err)
	}
	return h.scope.Execute(ctx, func(ctx context.Context, repos unitofwork.Repositories) error {
		return repos.Audit().Append(ctx, entry)
	})
}

// Ensure TrailHandler implements shared.EventHandler
var _ shared.EventHandler = (*TrailHandler)(nil)
