// Package handler exposes the ledger services over HTTP.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/erp/ledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct {
	logger *zap.Logger
}

func newBaseHandler(log *zap.Logger) BaseHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return BaseHandler{logger: log}
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Guarded sends the result of an idempotency guarded write. A replay answers
// 200 with idempotent=true; a first execution answers status.
func (h *BaseHandler) Guarded(c *gin.Context, status int, data any, replayed bool) {
	if replayed {
		status = http.StatusOK
	}
	c.JSON(status, dto.NewIdempotentResponse(data, replayed))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// Unauthorized sends a 401 unauthorized response
func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, message)
}

// HandleError converts service errors to HTTP responses. Domain errors keep
// their message; anything else is logged and reported as an internal error.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		status := dto.GetHTTPStatus(code)
		if status >= http.StatusInternalServerError {
			h.logInternal(c, err)
			h.Error(c, status, dto.ErrCodeInternal, "An unexpected error occurred")
			return
		}
		h.Error(c, status, code, domainErr.Message)
		return
	}

	h.logInternal(c, err)
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
}

func (h *BaseHandler) logInternal(c *gin.Context, err error) {
	logger.WithLogger(c.Request.Context(), h.logger).Error("Request failed",
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("method", c.Request.Method),
		zap.String("route", c.FullPath()),
		zap.Error(err),
	)
}

// opContext returns the authenticated operation context or answers 401
func (h *BaseHandler) opContext(c *gin.Context) (shared.OpContext, bool) {
	op, ok := middleware.GetOpContext(c)
	if !ok {
		h.Unauthorized(c, "Authentication required")
		return shared.OpContext{}, false
	}
	return op, true
}

// pathID parses a uuid path parameter or answers 400
func (h *BaseHandler) pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, "Invalid "+name+": must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON binds the body and answers validation failures
func (h *BaseHandler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// bindOptionalJSON binds the body when one was sent
func (h *BaseHandler) bindOptionalJSON(c *gin.Context, req any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return h.bindJSON(c, req)
}

// bindQuery binds query parameters and answers validation failures
func (h *BaseHandler) bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// listFilter converts paging parameters into a domain filter
func listFilter(req dto.ListRequest, defaultOrder string) shared.Filter {
	req.Normalize()
	filter := shared.DefaultFilter()
	filter.Page = req.Page
	filter.PageSize = req.PageSize
	filter.OrderDir = defaultOrder
	if req.OrderDir != "" {
		filter.OrderDir = req.OrderDir
	}
	return filter
}

// optionalUUID parses an optional uuid query value
func optionalUUID(raw string) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// optionalBool parses an optional boolean query value
func optionalBool(raw string) (*bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
