package idempotency

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type itemPayload struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type invoicePayload struct {
	CustomerID uuid.UUID     `json:"customer_id"`
	Items      []itemPayload `json:"items"`
	Notes      string        `json:"notes"`
	Token      string        `json:"token,omitempty"`
	Timestamp  string        `json:"timestamp,omitempty"`
}

func TestNormalizePayload_SortsAndStrips(t *testing.T) {
	payload := map[string]any{
		"b":        1,
		"a":        map[string]any{"password": "hunter2", "z": true, "y": []any{map[string]any{"cvv": "123", "n": 1.50}}},
		"Nonce":    "abc",
		"currency": "USD",
	}

	normalized, err := NormalizePayload("invoice.create", payload)
	require.NoError(t, err)
	assert.Equal(t,
		`{"operation":"invoice.create","payload":{"a":{"y":[{"n":1.5}],"z":true},"b":1,"currency":"USD"}}`,
		string(normalized))
	assert.NotContains(t, string(normalized), "hunter2")
}

func TestNormalizePayload_CanonicalValues(t *testing.T) {
	tests := []struct {
		name string
		a, b any
	}{
		{"decimal strings", map[string]any{"amount": "100.00"}, map[string]any{"amount": "100"}},
		{"decimal numbers", map[string]any{"rate": 1.10}, map[string]any{"rate": json.Number("1.1000")}},
		{"negative decimals", map[string]any{"delta": "-5.50"}, map[string]any{"delta": "-5.5"}},
		{"time zones", map[string]any{"paid_on": "2026-03-01T12:00:00+02:00"}, map[string]any{"paid_on": "2026-03-01T10:00:00Z"}},
		{"time values", map[string]any{"at": time.Date(2026, 3, 1, 7, 0, 0, 0, time.FixedZone("EST", -5*3600))},
			map[string]any{"at": time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NormalizePayload("payment.record", tt.a)
			require.NoError(t, err)
			b, err := NormalizePayload("payment.record", tt.b)
			require.NoError(t, err)
			assert.Equal(t, string(a), string(b))
		})
	}

	t.Run("codes keep leading zeros", func(t *testing.T) {
		a, err := NormalizePayload("account.create", map[string]any{"code": "0012"})
		require.NoError(t, err)
		b, err := NormalizePayload("account.create", map[string]any{"code": "12"})
		require.NoError(t, err)
		assert.NotEqual(t, string(a), string(b))
	})

	t.Run("plain text is untouched", func(t *testing.T) {
		normalized, err := NormalizePayload("invoice.create", map[string]any{"notes": "Total 100.00 due"})
		require.NoError(t, err)
		assert.Contains(t, string(normalized), `"Total 100.00 due"`)
	})
}

func TestFingerprint(t *testing.T) {
	customer := uuid.New()
	base := invoicePayload{
		CustomerID: customer,
		Items:      []itemPayload{{Description: "Consulting", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("100.00")}},
		Notes:      "March",
	}

	h1, err := Fingerprint("invoice.create", base)
	require.NoError(t, err)
	assert.Len(t, h1, 64)

	t.Run("volatile and sensitive fields do not change the hash", func(t *testing.T) {
		retry := base
		retry.Token = "secret-token"
		retry.Timestamp = "2026-03-01T10:00:00Z"
		retry.Items = []itemPayload{{Description: "Consulting", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(100)}}
		h2, err := Fingerprint("invoice.create", retry)
		require.NoError(t, err)
		assert.Equal(t, h1, h2)
	})

	t.Run("different payload", func(t *testing.T) {
		changed := base
		changed.Notes = "April"
		h2, err := Fingerprint("invoice.create", changed)
		require.NoError(t, err)
		assert.NotEqual(t, h1, h2)
	})

	t.Run("different operation", func(t *testing.T) {
		h2, err := Fingerprint("payment.record", base)
		require.NoError(t, err)
		assert.NotEqual(t, h1, h2)
	})
}

func TestRecord_CheckPayload(t *testing.T) {
	rec := NewReservation(uuid.New(), uuid.New(), "key-1", "invoice.create", "abc")
	assert.Equal(t, StateInFlight, rec.State)
	assert.False(t, rec.IsCompleted())
	assert.NoError(t, rec.CheckPayload("abc"))
	assert.True(t, errors.Is(rec.CheckPayload("abd"), shared.ErrConflict))
}

func TestNormalizeKey(t *testing.T) {
	key, err := NormalizeKey("  abc ")
	require.NoError(t, err)
	assert.Equal(t, "abc", key)

	_, err = NormalizeKey(string(make([]byte, MaxKeyLength+1)))
	assert.True(t, errors.Is(err, shared.ErrValidation))
}
