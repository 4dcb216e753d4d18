package handler

import (
	"net/http"

	appfinance "github.com/erp/ledger/internal/application/finance"
	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// InvoiceHandler serves the invoice lifecycle
type InvoiceHandler struct {
	BaseHandler
	invoices *appfinance.InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoices *appfinance.InvoiceService, logger *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{BaseHandler: newBaseHandler(logger), invoices: invoices}
}

// CreateInvoice handles POST /invoices
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	var req CreateInvoiceRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.invoices.CreateInvoice(c.Request.Context(), op, req.toInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Guarded(c, http.StatusCreated, toInvoiceResponse(result.Data), result.Idempotent)
}

// SendInvoice handles POST /invoices/:id/send
func (h *InvoiceHandler) SendInvoice(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	result, err := h.invoices.SendInvoice(c.Request.Context(), op, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Guarded(c, http.StatusOK, toInvoiceResponse(result.Data), result.Idempotent)
}

// PostInvoice handles POST /invoices/:id/post
func (h *InvoiceHandler) PostInvoice(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	result, err := h.invoices.PostInvoice(c.Request.Context(), op, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Guarded(c, http.StatusOK, toInvoiceResponse(result.Data), result.Idempotent)
}

// CancelInvoice handles POST /invoices/:id/cancel
func (h *InvoiceHandler) CancelInvoice(c *gin.Context) {
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

	result, err := h.invoices.CancelInvoice(c.Request.Context(), op, id, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Guarded(c, http.StatusOK, toInvoiceResponse(result.Data), result.Idempotent)
}

// GetInvoice handles GET /invoices/:id
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	inv, err := h.invoices.GetInvoice(c.Request.Context(), op, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toInvoiceResponse(inv))
}

// ListInvoices handles GET /invoices
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	var q ListInvoicesQuery
	if !h.bindQuery(c, &q) {
		return
	}

	filter := finance.InvoiceFilter{Filter: listFilter(q.ListRequest, "desc")}
	filter.CustomerID, _ = optionalUUID(q.CustomerID)
	if q.Status != "" {
		status := finance.InvoiceStatus(q.Status)
		filter.Status = &status
	}
	if q.IssuedFrom != "" {
		d, _ := dto.ParseDate(q.IssuedFrom)
		filter.IssuedFrom = d.DatePtr()
	}
	if q.IssuedTo != "" {
		d, _ := dto.ParseDate(q.IssuedTo)
		filter.IssuedTo = d.DatePtr()
	}

	page, err := h.invoices.ListInvoices(c.Request.Context(), op, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	items := make([]InvoiceResponse, len(page.Items))
	for i, inv := range page.Items {
		items[i] = toInvoiceResponse(inv)
	}
	h.SuccessWithMeta(c, items, page.Total, page.Page, page.PageSize)
}

// InvoiceStatistics handles GET /invoices/statistics
func (h *InvoiceHandler) InvoiceStatistics(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}

	stats, err := h.invoices.InvoiceStatistics(c.Request.Context(), op)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	items := make([]InvoiceStatisticsResponse, len(stats))
	for i, s := range stats {
		items[i] = InvoiceStatisticsResponse{
			Status:      string(s.Status),
			Count:       s.Count,
			TotalAmount: s.TotalAmount,
			BalanceDue:  s.BalanceDue,
		}
	}
	h.Success(c, items)
}
