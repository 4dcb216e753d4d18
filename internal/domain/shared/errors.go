package shared

import (
	"errors"
	"fmt"
)

// Error codes of the ledger error taxonomy
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeUnbalancedEntry     = "UNBALANCED_ENTRY"
	CodeNoOpenPeriod        = "NO_OPEN_PERIOD"
	CodeInvalidState        = "INVALID_STATE"
	CodeOverAllocation      = "OVER_ALLOCATION"
	CodeConflict            = "CONFLICT"
	CodeNotFound            = "NOT_FOUND"
	CodeForbidden           = "FORBIDDEN"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError carrying the same code, so that
// errors.Is(err, shared.ErrNotFound) matches any not-found error.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Sentinel errors, one per code. Use errors.Is against these.
var (
	ErrValidation          = NewDomainError(CodeValidation, "Invalid input provided")
	ErrUnbalancedEntry     = NewDomainError(CodeUnbalancedEntry, "Debits and credits do not balance")
	ErrNoOpenPeriod        = NewDomainError(CodeNoOpenPeriod, "No open accounting period for date")
	ErrInvalidState        = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrOverAllocation      = NewDomainError(CodeOverAllocation, "Amount exceeds available balance")
	ErrConflict            = NewDomainError(CodeConflict, "Request conflicts with a previous request")
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrForbidden           = NewDomainError(CodeForbidden, "Access to this resource is forbidden")
	ErrUnauthorized        = NewDomainError(CodeUnauthorized, "Not authorized to perform this action")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
)

// NewValidationError creates a ValidationError
func NewValidationError(format string, args ...any) *DomainError {
	return NewDomainError(CodeValidation, fmt.Sprintf(format, args...))
}

// NewUnbalancedEntryError creates an UnbalancedEntryError
func NewUnbalancedEntryError(format string, args ...any) *DomainError {
	return NewDomainError(CodeUnbalancedEntry, fmt.Sprintf(format, args...))
}

// NewNoOpenPeriodError creates a NoOpenPeriodError
func NewNoOpenPeriodError(format string, args ...any) *DomainError {
	return NewDomainError(CodeNoOpenPeriod, fmt.Sprintf(format, args...))
}

// NewInvalidStateError creates an InvalidStateError
func NewInvalidStateError(format string, args ...any) *DomainError {
	return NewDomainError(CodeInvalidState, fmt.Sprintf(format, args...))
}

// NewOverAllocationError creates an OverAllocationError
func NewOverAllocationError(format string, args ...any) *DomainError {
	return NewDomainError(CodeOverAllocation, fmt.Sprintf(format, args...))
}

// NewConflictError creates a ConflictError
func NewConflictError(format string, args ...any) *DomainError {
	return NewDomainError(CodeConflict, fmt.Sprintf(format, args...))
}

// NewNotFoundError creates a NotFoundError for the named resource
func NewNotFoundError(resource string) *DomainError {
	return NewDomainError(CodeNotFound, resource+" not found")
}

// NewForbiddenError creates a ForbiddenError
func NewForbiddenError(format string, args ...any) *DomainError {
	return NewDomainError(CodeForbidden, fmt.Sprintf(format, args...))
}

// ErrorCode returns the code of the first DomainError in err's chain, or "".
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// StorageError wraps a failure of the backing store. Retryable marks failures
// that may succeed on a second attempt (serialization failures, deadlocks,
// unique violations caused by a concurrent writer).
type StorageError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err carries a retryable StorageError or an
// optimistic lock conflict.
func IsRetryable(err error) bool {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return errors.Is(err, ErrConcurrencyConflict)
}
