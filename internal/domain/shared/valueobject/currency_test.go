package valueobject

import (
	"errors"
	"testing"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCurrency(t *testing.T) {
	c, err := ParseCurrency(" usd ")
	require.NoError(t, err)
	assert.Equal(t, Currency("USD"), c)

	c, err = ParseCurrency("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCurrency, c)

	_, err = ParseCurrency("XXXX")
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestCurrency_Round(t *testing.T) {
	tests := []struct {
		currency Currency
		amount   string
		expected string
	}{
		{"USD", "10.005", "10.01"},
		{"USD", "250", "250"},
		{"JPY", "100.5", "101"},
		{"EUR", "0.125", "0.13"},
	}

	for _, tt := range tests {
		t.Run(string(tt.currency)+"_"+tt.amount, func(t *testing.T) {
			got := tt.currency.Round(decimal.RequireFromString(tt.amount))
			assert.True(t, decimal.RequireFromString(tt.expected).Equal(got), "got %s", got)
		})
	}
}

func TestCurrency_MinorUnits(t *testing.T) {
	assert.Equal(t, int32(2), Currency("USD").MinorUnits())
	assert.Equal(t, int32(0), Currency("JPY").MinorUnits())
}

func TestPercent(t *testing.T) {
	got := Percent(decimal.NewFromInt(200), decimal.NewFromInt(10))
	assert.True(t, decimal.NewFromInt(20).Equal(got))
}

func TestCurrency_Convert(t *testing.T) {
	got := Currency("USD").Convert(decimal.RequireFromString("55.55"), decimal.RequireFromString("1.2"))
	assert.True(t, decimal.RequireFromString("66.66").Equal(got), "got %s", got)

	got = Currency("JPY").Convert(decimal.RequireFromString("10.01"), decimal.RequireFromString("150.25"))
	assert.True(t, decimal.NewFromInt(1504).Equal(got), "got %s", got)
}
