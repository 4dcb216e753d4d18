package shared

import (
	"strings"

	"github.com/google/uuid"
)

// AuthScope is the authorization scope of an actor. It is a closed union of
// SystemScope and TenantScope.
type AuthScope interface {
	isAuthScope()
	// Covers reports whether the scope reaches tenantID
	Covers(tenantID uuid.UUID) bool
	String() string
}

// SystemScope grants cross-tenant reach to platform operators
type SystemScope struct{}

func (SystemScope) isAuthScope() {}

// Covers always returns true for the system scope
func (SystemScope) Covers(uuid.UUID) bool { return true }

func (SystemScope) String() string { return "system" }

// TenantScope restricts an actor to a single tenant
type TenantScope struct {
	TenantID uuid.UUID
}

func (TenantScope) isAuthScope() {}

// Covers reports whether tenantID is the scope's tenant
func (s TenantScope) Covers(tenantID uuid.UUID) bool {
	return s.TenantID != uuid.Nil && s.TenantID == tenantID
}

func (s TenantScope) String() string { return "tenant:" + s.TenantID.String() }

// Permission is a "resource:action" capability
type Permission string

// Permissions checked by the ledger operations
const (
	PermAccountRead     Permission = "account:read"
	PermAccountManage   Permission = "account:manage"
	PermJournalRead     Permission = "journal:read"
	PermJournalPost     Permission = "journal:post"
	PermJournalVoid     Permission = "journal:void"
	PermPeriodRead      Permission = "period:read"
	PermPeriodManage    Permission = "period:manage"
	PermInvoiceRead     Permission = "invoice:read"
	PermInvoiceCreate   Permission = "invoice:create"
	PermInvoiceSend     Permission = "invoice:send"
	PermInvoicePost     Permission = "invoice:post"
	PermInvoiceCancel   Permission = "invoice:cancel"
	PermPaymentRead     Permission = "payment:read"
	PermPaymentRecord   Permission = "payment:record"
	PermPaymentAllocate Permission = "payment:allocate"
	PermPaymentRefund   Permission = "payment:refund"
	PermReceivableRead  Permission = "receivable:read"
	PermAuditRead       Permission = "audit:read"
	PermCustomerManage  Permission = "customer:manage"
)

// PermissionWildcard grants every permission
const PermissionWildcard Permission = "*"

// Grants reports whether a granted permission satisfies the required one.
// "*" grants everything and "invoice:*" grants every invoice action.
func (p Permission) Grants(required Permission) bool {
	if p == PermissionWildcard || p == required {
		return true
	}
	resource, action, ok := strings.Cut(string(p), ":")
	if !ok || action != "*" {
		return false
	}
	return strings.HasPrefix(string(required), resource+":")
}
