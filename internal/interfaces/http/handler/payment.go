package handler

import (
	"net/http"

	appfinance "github.com/erp/ledger/internal/application/finance"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PaymentHandler serves payments and their allocations
type PaymentHandler struct {
	BaseHandler
	payments *appfinance.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments *appfinance.PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{BaseHandler: newBaseHandler(logger), payments: payments}
}

// RecordPayment handles POST /payments
func (h *PaymentHandler) RecordPayment(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	var req RecordPaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.payments.RecordPayment(c.Request.Context(), op, req.toInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Guarded(c, http.StatusCreated, toPaymentResponse(result.Data), result.Idempotent)
}

// GetPayment handles GET /payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	view, err := h.payments.GetPayment(c.Request.Context(), op, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, PaymentDetailResponse{
		PaymentResponse: toPaymentResponse(view.Payment),
		Allocations:     toAllocationResponses(view.Allocations),
	})
}

// ListAllocations handles GET /payments/:id/allocations
func (h *PaymentHandler) ListAllocations(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	allocs, err := h.payments.ListAllocations(c.Request.Context(), op, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toAllocationResponses(allocs))
}

// AllocatePayment handles POST /payments/:id/allocations
func (h *PaymentHandler) AllocatePayment(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req AllocatePaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.payments.AllocatePayment(c.Request.Context(), op, id, appfinance.AllocatePaymentInput{
		InvoiceID: req.InvoiceID,
		Amount:    req.Amount,
		Date:      req.Date.Time,
		Notes:     req.Notes,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Guarded(c, http.StatusCreated, toAllocationResponse(result.Data), result.Idempotent)
}

// AutoAllocatePayment handles POST /payments/:id/auto-allocate. The body is
// optional; without one the oldest due invoices are paid first.
func (h *PaymentHandler) AutoAllocatePayment(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req AutoAllocateRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}

	result, err := h.payments.AutoAllocatePayment(c.Request.Context(), op, id, req.toInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Guarded(c, http.StatusOK, toAutoAllocationResponse(result.Data), result.Idempotent)
}

// RefundAllocation handles POST /allocations/:id/refund
func (h *PaymentHandler) RefundAllocation(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req RefundAllocationRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.payments.RefundAllocation(c.Request.Context(), op, id, appfinance.RefundAllocationInput{
		Amount: req.Amount,
		Reason: req.Reason,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Guarded(c, http.StatusOK, toAllocationResponse(result.Data), result.Idempotent)
}
