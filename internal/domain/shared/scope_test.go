package shared

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPermission_Grants(t *testing.T) {
	tests := []struct {
		granted  Permission
		required Permission
		expected bool
	}{
		{PermissionWildcard, PermJournalPost, true},
		{PermJournalPost, PermJournalPost, true},
		{"journal:*", PermJournalVoid, true},
		{"invoice:*", PermJournalVoid, false},
		{PermJournalRead, PermJournalPost, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.granted)+"->"+string(tt.required), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.granted.Grants(tt.required))
		})
	}
}

func TestAuthorize(t *testing.T) {
	tenantA := uuid.New()
	tenantB := uuid.New()

	t.Run("tenant scope covering its tenant", func(t *testing.T) {
		op := NewTenantOpContext(tenantA, uuid.New(), PermInvoiceCreate)
		assert.NoError(t, Authorize(op, PermInvoiceCreate))
	})

	t.Run("tenant scope on another tenant", func(t *testing.T) {
		op := NewTenantOpContext(tenantA, uuid.New(), PermissionWildcard)
		op.TenantID = tenantB
		err := Authorize(op, PermInvoiceCreate)
		assert.True(t, errors.Is(err, ErrForbidden))
	})

	t.Run("system scope reaches any tenant", func(t *testing.T) {
		op := OpContext{TenantID: tenantB, Scope: SystemScope{}, Permissions: []Permission{PermissionWildcard}}
		assert.NoError(t, Authorize(op, PermJournalVoid))
	})

	t.Run("missing permission", func(t *testing.T) {
		op := NewTenantOpContext(tenantA, uuid.New(), PermInvoiceRead)
		err := Authorize(op, PermInvoicePost)
		assert.Equal(t, CodeForbidden, ErrorCode(err))
	})

	t.Run("missing tenant", func(t *testing.T) {
		op := OpContext{Scope: SystemScope{}, Permissions: []Permission{PermissionWildcard}}
		assert.True(t, errors.Is(Authorize(op, PermInvoiceRead), ErrValidation))
	})
}

func TestDomainError_Is(t *testing.T) {
	err := NewNotFoundError("invoice")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, "invoice not found", err.Error())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&StorageError{Op: "insert", Retryable: true, Err: errors.New("deadlock")}))
	assert.False(t, IsRetryable(&StorageError{Op: "insert", Err: errors.New("boom")}))
	assert.True(t, IsRetryable(ErrConcurrencyConflict))
	assert.False(t, IsRetryable(ErrValidation))
}
