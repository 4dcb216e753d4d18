package handler

import (
	"encoding/json"
	"time"

	appaudit "github.com/erp/ledger/internal/application/audit"
	"github.com/erp/ledger/internal/domain/audit"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuditHandler serves the audit trail
type AuditHandler struct {
	BaseHandler
	audit *appaudit.Service
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(service *appaudit.Service, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{BaseHandler: newBaseHandler(logger), audit: service}
}

// ListAuditEntriesQuery filters audit entries
type ListAuditEntriesQuery struct {
	dto.ListRequest
	AggregateID string `form:"aggregate_id" binding:"omitempty,uuid"`
	Action      string `form:"action" binding:"omitempty,max=100"`
}

// AuditEntryResponse is one audit trail entry
type AuditEntryResponse struct {
	ID             uuid.UUID       `json:"id"`
	ActorID        uuid.UUID       `json:"actor_id"`
	Action         string          `json:"action"`
	AggregateType  string          `json:"aggregate_type"`
	AggregateID    uuid.UUID       `json:"aggregate_id"`
	EventID        uuid.UUID       `json:"event_id"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	RequestID      string          `json:"request_id,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// ListAuditEntries handles GET /audit-entries
func (h *AuditHandler) ListAuditEntries(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	var q ListAuditEntriesQuery
	if !h.bindQuery(c, &q) {
		return
	}

	filter := audit.Filter{Filter: listFilter(q.ListRequest, "desc"), Action: q.Action}
	filter.AggregateID, _ = optionalUUID(q.AggregateID)

	page, err := h.audit.ListEntries(c.Request.Context(), op, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	items := make([]AuditEntryResponse, len(page.Items))
	for i, e := range page.Items {
		items[i] = AuditEntryResponse{
			ID:             e.ID,
			ActorID:        e.ActorID,
			Action:         e.Action,
			AggregateType:  e.AggregateType,
			AggregateID:    e.AggregateID,
			EventID:        e.EventID,
			IdempotencyKey: e.IdempotencyKey,
			RequestID:      e.RequestID,
			Payload:        e.Payload,
			OccurredAt:     e.OccurredAt,
		}
	}
	h.SuccessWithMeta(c, items, page.Total, page.Page, page.PageSize)
}
