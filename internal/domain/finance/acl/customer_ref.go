package acl

import (
	"strings"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerReference is the local, denormalized view of a customer
type CustomerReference struct {
	id          uuid.UUID
	code        string
	name        string
	currency    valueobject.Currency
	creditLimit *decimal.Decimal
	active      bool
}

// NewCustomerReference creates a CustomerReference. An empty currency means
// the customer may be billed in any currency.
func NewCustomerReference(id uuid.UUID, code, name string, currency valueobject.Currency, creditLimit *decimal.Decimal, active bool) (CustomerReference, error) {
	if id == uuid.Nil {
		return CustomerReference{}, shared.NewValidationError("customer id cannot be empty")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return CustomerReference{}, shared.NewValidationError("customer name cannot be empty")
	}
	if currency != "" {
		c, err := valueobject.ParseCurrency(currency.String())
		if err != nil {
			return CustomerReference{}, shared.NewValidationError("invalid customer currency %q", currency)
		}
		currency = c
	}
	if creditLimit != nil && creditLimit.IsNegative() {
		return CustomerReference{}, shared.NewValidationError("credit limit cannot be negative")
	}
	return CustomerReference{
		id:          id,
		code:        strings.TrimSpace(code),
		name:        name,
		currency:    currency,
		creditLimit: creditLimit,
		active:      active,
	}, nil
}

// UnregisteredCustomer is the reference used for ids the directory does not
// know when unknown customers are tolerated.
func UnregisteredCustomer(id uuid.UUID) CustomerReference {
	return CustomerReference{id: id, name: id.String(), active: true}
}

// ID returns the customer id
func (r CustomerReference) ID() uuid.UUID { return r.id }

// Code returns the customer code
func (r CustomerReference) Code() string { return r.code }

// Name returns the customer name
func (r CustomerReference) Name() string { return r.name }

// Currency returns the billing currency, empty when unrestricted
func (r CustomerReference) Currency() valueobject.Currency { return r.currency }

// CreditLimit returns the credit limit, nil when none is set
func (r CustomerReference) CreditLimit() *decimal.Decimal { return r.creditLimit }

// IsActive reports whether new documents may be issued to the customer
func (r CustomerReference) IsActive() bool { return r.active }

// DisplayName returns "code - name", or the name when there is no code
func (r CustomerReference) DisplayName() string {
	if r.code != "" {
		return r.code + " - " + r.name
	}
	return r.name
}

// DocumentCurrency returns the currency a new document should use: the
// requested one, or the customer's billing currency when none was requested.
// A request that contradicts the billing currency is rejected.
func (r CustomerReference) DocumentCurrency(requested valueobject.Currency) (valueobject.Currency, error) {
	if !r.active {
		return "", shared.NewValidationError("customer %s is inactive", r.DisplayName())
	}
	switch {
	case requested == "" && r.currency != "":
		return r.currency, nil
	case requested == "":
		return valueobject.DefaultCurrency, nil
	case r.currency != "" && requested != r.currency:
		return "", shared.NewValidationError("customer %s is billed in %s, not %s", r.DisplayName(), r.currency, requested)
	default:
		return requested, nil
	}
}
