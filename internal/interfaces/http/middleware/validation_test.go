package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type paymentRequest struct {
	CustomerID string          `json:"customer_id" binding:"required,uuid"`
	Amount     decimal.Decimal `json:"amount" binding:"gt=0"`
	Method     string          `json:"method" binding:"required,oneof=cash bank_transfer card"`
}

func newValidationRouter() *gin.Engine {
	SetupValidator()
	router := gin.New()
	router.Use(RequestID())
	router.POST("/payments", func(c *gin.Context) {
		var req paymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.NewSuccessResponse(req.Amount.String()))
	})
	return router
}

func TestSetupValidator(t *testing.T) {
	SetupValidator()
	v, ok := binding.Validator.Engine().(*validator.Validate)
	assert.True(t, ok)
	assert.NotNil(t, v)
}

func TestHandleValidationError(t *testing.T) {
	router := newValidationRouter()

	t.Run("reports json field names", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/payments",
			strings.NewReader(`{"customer_id":"nope","amount":"0","method":"cheque"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(HeaderRequestID, "req-v")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.Equal(t, "req-v", resp.Error.RequestID)

		fields := map[string]string{}
		for _, d := range resp.Error.Details {
			fields[d.Field] = d.Message
		}
		assert.Equal(t, "Invalid UUID format", fields["customer_id"])
		assert.Equal(t, "Must be greater than 0", fields["amount"])
		assert.Equal(t, "Must be one of: cash bank_transfer card", fields["method"])
	})

	t.Run("accepts valid decimal amount", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/payments",
			strings.NewReader(`{"customer_id":"6f1c1c9e-9d4e-4a6c-8f53-0b0d7f6b2a11","amount":"12.50","method":"cash"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(`{"amount":`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, dto.ErrCodeInvalidJSON, resp.Error.Code)
	})
}

func TestValidationMessage(t *testing.T) {
	type sample struct {
		Name  string   `validate:"min=3"`
		Lines []string `validate:"min=2"`
	}
	v := validator.New()
	err := v.Struct(sample{Name: "ab", Lines: []string{"x"}})
	require.Error(t, err)

	msgs := map[string]string{}
	for _, fe := range err.(validator.ValidationErrors) {
		msgs[fe.Field()] = validationMessage(fe)
	}
	assert.Equal(t, "Must be at least 3 characters", msgs["Name"])
	assert.Equal(t, "Must contain at least 2 items", msgs["Lines"])
}
