package handler

import (
	appledger "github.com/erp/ledger/internal/application/ledger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AccountHandler serves the chart of accounts
type AccountHandler struct {
	BaseHandler
	accounts *appledger.AccountService
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(accounts *appledger.AccountService, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{BaseHandler: newBaseHandler(logger), accounts: accounts}
}

// CreateAccount handles POST /accounts
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	var req CreateAccountRequest
	if !h.bindJSON(c, &req) {
		return
	}

	account, err := h.accounts.CreateAccount(c.Request.Context(), op, req.toInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toAccountResponse(account))
}

// ListAccounts handles GET /accounts
func (h *AccountHandler) ListAccounts(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	var q ListAccountsQuery
	if !h.bindQuery(c, &q) {
		return
	}
	active, err := optionalBool(q.Active)
	if err != nil {
		h.BadRequest(c, "active must be true or false")
		return
	}

	filter := listFilter(q.ListRequest, "asc")
	if q.Type != "" {
		filter.Filters["account_type"] = q.Type
	}
	if active != nil {
		filter.Filters["active"] = *active
	}
	if q.Search != "" {
		filter.Filters["search"] = q.Search
	}

	page, err := h.accounts.ListAccounts(c.Request.Context(), op, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	items := make([]AccountResponse, len(page.Items))
	for i, a := range page.Items {
		items[i] = toAccountResponse(a)
	}
	h.SuccessWithMeta(c, items, page.Total, page.Page, page.PageSize)
}

// GetAccount handles GET /accounts/:id
func (h *AccountHandler) GetAccount(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	account, err := h.accounts.GetAccount(c.Request.Context(), op, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toAccountResponse(account))
}

// GetAccountBalance handles GET /accounts/:id/balance
func (h *AccountHandler) GetAccountBalance(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	balance, err := h.accounts.GetAccountBalance(c.Request.Context(), op, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, balance)
}

// DeactivateAccount handles POST /accounts/:id/deactivate
func (h *AccountHandler) DeactivateAccount(c *gin.Context) {
	op, ok := h.opContext(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	account, err := h.accounts.DeactivateAccount(c.Request.Context(), op, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toAccountResponse(account))
}
