package dto

import (
	"net/http"

	"github.com/erp/ledger/internal/domain/shared"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Input error codes
const (
	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON  = "ERR_INVALID_JSON"
	ErrCodeBodyTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Authentication error codes
const (
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Ledger rule error codes
const (
	ErrCodeUnbalancedEntry = "ERR_UNBALANCED_ENTRY"
	ErrCodeNoOpenPeriod    = "ERR_NO_OPEN_PERIOD"
	ErrCodeInvalidState    = "ERR_INVALID_STATE"
	ErrCodeOverAllocation  = "ERR_OVER_ALLOCATION"
)

// Rate limiting error codes
const (
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// 400 Bad Request
	ErrCodeValidation:  http.StatusBadRequest,
	ErrCodeBadRequest:  http.StatusBadRequest,
	ErrCodeInvalidJSON: http.StatusBadRequest,

	ErrCodeBodyTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// 422 Unprocessable Entity
	ErrCodeUnbalancedEntry: http.StatusUnprocessableEntity,
	ErrCodeNoOpenPeriod:    http.StatusUnprocessableEntity,
	ErrCodeInvalidState:    http.StatusUnprocessableEntity,
	ErrCodeOverAllocation:  http.StatusUnprocessableEntity,

	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// domainCodeMapping maps domain error codes to API error codes
var domainCodeMapping = map[string]string{
	shared.CodeValidation:          ErrCodeValidation,
	shared.CodeUnbalancedEntry:     ErrCodeUnbalancedEntry,
	shared.CodeNoOpenPeriod:        ErrCodeNoOpenPeriod,
	shared.CodeInvalidState:        ErrCodeInvalidState,
	shared.CodeOverAllocation:      ErrCodeOverAllocation,
	shared.CodeConflict:            ErrCodeConflict,
	shared.CodeNotFound:            ErrCodeNotFound,
	shared.CodeForbidden:           ErrCodeForbidden,
	shared.CodeUnauthorized:        ErrCodeUnauthorized,
	shared.CodeConcurrencyConflict: ErrCodeConcurrencyConflict,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Unknown codes become ERR_INTERNAL so they never leak.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := domainCodeMapping[code]; ok {
		return apiCode
	}
	if _, ok := ErrorCodeHTTPStatus[code]; ok {
		return code
	}
	return ErrCodeInternal
}
