package valueobject

import (
	"strings"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Currency is an ISO 4217 currency code
type Currency string

// DefaultCurrency is used when a document omits its currency
const DefaultCurrency Currency = "USD"

// ParseCurrency validates and normalizes an ISO 4217 code. An empty code
// yields DefaultCurrency.
func ParseCurrency(code string) (Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return DefaultCurrency, nil
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", shared.NewValidationError("invalid currency code %q", code)
	}
	return Currency(unit.String()), nil
}

// MinorUnits returns the number of decimal digits of the currency's minor
// unit (2 for USD, 0 for JPY, 3 for KWD).
func (c Currency) MinorUnits() int32 {
	unit, err := currency.ParseISO(string(c))
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale)
}

// Round rounds an amount half away from zero to the currency's minor unit
func (c Currency) Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(c.MinorUnits())
}

// Convert translates a document amount into c at rate (units of c per unit
// of the document currency) and rounds it to c's minor unit.
func (c Currency) Convert(amount, rate decimal.Decimal) decimal.Decimal {
	return c.Round(amount.Mul(rate))
}

// String returns the currency code
func (c Currency) String() string {
	return string(c)
}

// Percent returns pct% of amount, unrounded
func Percent(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(decimal.NewFromInt(100))
}
