package handler

import (
	"time"

	appfinance "github.com/erp/ledger/internal/application/finance"
	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ReceivableHandler serves receivables, aging and customer balances
type ReceivableHandler struct {
	BaseHandler
	receivables *appfinance.ReceivableService
	payments    *appfinance.PaymentService
	customers   *appfinance.CustomerService
}

// NewReceivableHandler creates a new ReceivableHandler
func NewReceivableHandler(
	receivables *appfinance.ReceivableService,
	payments *appfinance.PaymentService,
	customers *appfinance.CustomerService,
	logger *zap.Logger,
) *ReceivableHandler {
	return &ReceivableHandler{
		BaseHandler: newBaseHandler(logger),
		receivables: receivables,
		payments:    payments,
		customers:   customers,
	}
}

// ListReceivables handles GET /receivables
func (h *ReceivableHandler) ListReceivables(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	var q ListReceivablesQuery
	if !h.bindQuery(c, &q) {
		return
	}

	filter := finance.ReceivableFilter{
		Filter:          listFilter(q.ListRequest, "asc"),
		OutstandingOnly: q.Outstanding,
	}
	filter.CustomerID, _ = optionalUUID(q.CustomerID)
	if q.Status != "" {
		status := finance.ReceivableStatus(q.Status)
		filter.Status = &status
	}

	page, err := h.receivables.ListReceivables(c.Request.Context(), op, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	items := make([]ReceivableResponse, len(page.Items))
	for i, r := range page.Items {
		items[i] = toReceivableResponse(r)
	}
	h.SuccessWithMeta(c, items, page.Total, page.Page, page.PageSize)
}

// AgingSummary handles GET /receivables/aging?as_of=YYYY-MM-DD
func (h *ReceivableHandler) AgingSummary(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	var asOf time.Time
	if raw := c.Query("as_of"); raw != "" {
		d, err := dto.ParseDate(raw)
		if err != nil {
			h.BadRequest(c, "as_of must be a date (YYYY-MM-DD)")
			return
		}
		asOf = d.Time
	}

	summary, err := h.receivables.AgingSummary(c.Request.Context(), op, asOf)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toAgingSummaryResponse(summary))
}

// CustomerBalance handles GET /customers/:id/balance
func (h *ReceivableHandler) CustomerBalance(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	balance, err := h.payments.CustomerBalanceSummary(c.Request.Context(), op, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, balance)
}

// RegisterCustomer handles PUT /customers/:id
func (h *ReceivableHandler) RegisterCustomer(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req RegisterCustomerRequest
	if !h.bindJSON(c, &req) {
		return
	}

	ref, err := h.customers.RegisterCustomer(c.Request.Context(), op, id, req.toInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toCustomerResponse(ref))
}

// GetCustomer handles GET /customers/:id
func (h *ReceivableHandler) GetCustomer(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	ref, err := h.customers.GetCustomer(c.Request.Context(), op, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toCustomerResponse(ref))
}
