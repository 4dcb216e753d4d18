package handler

import (
	appledger "github.com/erp/ledger/internal/application/ledger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PeriodHandler serves fiscal years and accounting periods
type PeriodHandler struct {
	BaseHandler
	periods *appledger.PeriodService
}

// NewPeriodHandler creates a new PeriodHandler
func NewPeriodHandler(periods *appledger.PeriodService, logger *zap.Logger) *PeriodHandler {
	return &PeriodHandler{BaseHandler: newBaseHandler(logger), periods: periods}
}

// CreateFiscalYear handles POST /fiscal-years. Monthly periods are created
// with the year unless skip_periods is set.
func (h *PeriodHandler) CreateFiscalYear(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	var req CreateFiscalYearRequest
	if !h.bindJSON(c, &req) {
		return
	}

	view, err := h.periods.CreateFiscalYear(c.Request.Context(), op, appledger.CreateFiscalYearInput{
		Name:        req.Name,
		StartDate:   req.StartDate.Time,
		EndDate:     req.EndDate.Time,
		SkipPeriods: req.SkipPeriods,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toFiscalYearResponse(view.Year, view.Periods))
}

// ListFiscalYears handles GET /fiscal-years
func (h *PeriodHandler) ListFiscalYears(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}

	years, err := h.periods.ListFiscalYears(c.Request.Context(), op)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	items := make([]FiscalYearResponse, len(years))
	for i, y := range years {
		items[i] = toFiscalYearResponse(y, nil)
	}
	h.Success(c, items)
}

// CloseFiscalYear handles POST /fiscal-years/:id/close
func (h *PeriodHandler) CloseFiscalYear(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	view, err := h.periods.CloseFiscalYear(c.Request.Context(), op, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toFiscalYearResponse(view.Year, view.Periods))
}

// ListPeriods handles GET /periods, optionally limited by ?fiscal_year_id=
func (h *PeriodHandler) ListPeriods(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	yearID, err := optionalUUID(c.Query("fiscal_year_id"))
	if err != nil {
		h.BadRequest(c, "fiscal_year_id must be a UUID")
		return
	}

	periods, err := h.periods.ListPeriods(c.Request.Context(), op, yearID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toPeriodResponses(periods))
}

// ClosePeriod handles POST /periods/:id/close
func (h *PeriodHandler) ClosePeriod(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	period, err := h.periods.ClosePeriod(c.Request.Context(), op, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toPeriodResponse(period))
}

// ReopenPeriod handles POST /periods/:id/reopen
func (h *PeriodHandler) ReopenPeriod(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	period, err := h.periods.ReopenPeriod(c.Request.Context(), op, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toPeriodResponse(period))
}
