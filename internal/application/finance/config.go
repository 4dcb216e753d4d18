// Package finance runs the invoice lifecycle, payment allocation and the
// accounts receivable projection on top of the ledger posting engine.
package finance

import (
	"time"

	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// AccountCodes maps document postings to chart-of-accounts codes
type AccountCodes struct {
	Receivable string
	Revenue    string
	// TaxPayable, when set, receives the tax part of posted invoices
	TaxPayable string
	// Cash maps payment methods to the account debited when a payment is posted
	Cash map[finance.PaymentMethod]string
}

// CashAccount returns the cash account code for method
func (c AccountCodes) CashAccount(method finance.PaymentMethod) string {
	if code, ok := c.Cash[method]; ok && code != "" {
		return code
	}
	return c.Cash[finance.PaymentMethodCash]
}

// Config holds the finance application settings
type Config struct {
	Accounts AccountCodes
	// BaseCurrency is the currency the chart of accounts is kept in. Documents
	// in other currencies post their amounts converted at the document rate.
	BaseCurrency valueobject.Currency
	// PostPayments posts Dr cash / Cr receivable when a payment is recorded
	PostPayments bool
	// PaymentTermsDays is the default gap between issue and due date
	PaymentTermsDays int
	// RequireRegisteredCustomers rejects documents for customers unknown to the directory
	RequireRegisteredCustomers bool
}

// DefaultConfig returns the default account mapping
func DefaultConfig() Config {
	return Config{
		BaseCurrency: valueobject.DefaultCurrency,
		Accounts: AccountCodes{
			Receivable: "1200",
			Revenue:    "4000",
			Cash: map[finance.PaymentMethod]string{
				finance.PaymentMethodCash:         "1010",
				finance.PaymentMethodBankTransfer: "1020",
				finance.PaymentMethodCheck:        "1030",
				finance.PaymentMethodCreditCard:   "1040",
				finance.PaymentMethodOther:        "1010",
			},
		},
		PaymentTermsDays: finance.DefaultPaymentTermsDays,
	}
}

func (c Config) baseCurrency() valueobject.Currency {
	if c.BaseCurrency == "" {
		return valueobject.DefaultCurrency
	}
	return c.BaseCurrency
}

// documentRate checks a document's exchange rate against the base currency.
// Base-currency documents always carry a rate of 1.
func (c Config) documentRate(currency valueobject.Currency, rate decimal.Decimal) (decimal.Decimal, error) {
	one := decimal.NewFromInt(1)
	if rate.IsZero() {
		rate = one
	}
	if !rate.IsPositive() {
		return decimal.Zero, shared.NewValidationError("exchange rate must be positive")
	}
	if currency == c.baseCurrency() && !rate.Equal(one) {
		return decimal.Zero, shared.NewValidationError("exchange rate must be 1 for %s documents", currency)
	}
	return rate, nil
}

// Clock returns the current time. Tests inject a fixed one.
type Clock func() time.Time
