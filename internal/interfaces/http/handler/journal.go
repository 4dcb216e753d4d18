package handler

import (
	"net/http"

	appledger "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JournalHandler serves journal entries. Posting, voiding and draft posting
// are idempotent per Idempotency-Key.
type JournalHandler struct {
	BaseHandler
	posting *appledger.PostingService
}

// NewJournalHandler creates a new JournalHandler
func NewJournalHandler(posting *appledger.PostingService, logger *zap.Logger) *JournalHandler {
	return &JournalHandler{BaseHandler: newBaseHandler(logger), posting: posting}
}

// PostJournalEntry handles POST /journal-entries
func (h *JournalHandler) PostJournalEntry(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	var req JournalEntryRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.posting.PostJournalEntry(c.Request.Context(), op, req.toInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Guarded(c, http.StatusCreated, toTransactionResponse(result.Data), result.Idempotent)
}

// CreateDraft handles POST /journal-entries/drafts
func (h *JournalHandler) CreateDraft(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	var req JournalEntryRequest
	if !h.bindJSON(c, &req) {
		return
	}

	tx, err := h.posting.CreateDraft(c.Request.Context(), op, req.toInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toTransactionResponse(tx))
}

// PostDraft handles POST /journal-entries/:id/post
func (h *JournalHandler) PostDraft(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	result, err := h.posting.PostDraft(c.Request.Context(), op, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Guarded(c, http.StatusOK, toTransactionResponse(result.Data), result.Idempotent)
}

// DiscardDraft handles DELETE /journal-entries/:id
func (h *JournalHandler) DiscardDraft(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	if err := h.posting.DiscardDraft(c.Request.Context(), op, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// VoidJournalEntry handles POST /journal-entries/:id/void
func (h *JournalHandler) VoidJournalEntry(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req VoidRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.posting.VoidJournalEntry(c.Request.Context(), op, id, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Guarded(c, http.StatusOK, toTransactionResponse(result.Data), result.Idempotent)
}

// GetJournalEntry handles GET /journal-entries/:id
func (h *JournalHandler) GetJournalEntry(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	tx, err := h.posting.GetTransaction(c.Request.Context(), op, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toTransactionResponse(tx))
}

// ListJournalEntries handles GET /journal-entries
func (h *JournalHandler) ListJournalEntries(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	var q ListJournalEntriesQuery
	if !h.bindQuery(c, &q) {
		return
	}

	filter := listFilter(q.ListRequest, "desc")
	if q.Status != "" {
		filter.Filters["status"] = q.Status
	}
	if q.SourceType != "" {
		filter.Filters["source_type"] = q.SourceType
	}
	if q.SourceID != "" {
		filter.Filters["source_id"] = uuid.MustParse(q.SourceID)
	}
	if q.DateFrom != "" {
		d, _ := dto.ParseDate(q.DateFrom)
		filter.Filters["date_from"] = d.Time
	}
	if q.DateTo != "" {
		d, _ := dto.ParseDate(q.DateTo)
		filter.Filters["date_to"] = d.Time
	}

	page, err := h.posting.ListTransactions(c.Request.Context(), op, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	items := make([]TransactionResponse, len(page.Items))
	for i, t := range page.Items {
		items[i] = toTransactionResponse(t)
	}
	h.SuccessWithMeta(c, items, page.Total, page.Page, page.PageSize)
}
