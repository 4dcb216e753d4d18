package idempotency

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// strippedFields are removed at any depth before hashing: credentials never
// reach storage and volatile values do not defeat replays.
var strippedFields = map[string]struct{}{
	"password":      {},
	"secret":        {},
	"token":         {},
	"access_token":  {},
	"refresh_token": {},
	"authorization": {},
	"api_key":       {},
	"card_number":   {},
	"cvv":           {},
	"timestamp":     {},
	"request_id":    {},
	"nonce":         {},
	"created_at":    {},
	"updated_at":    {},
	"sent_at":       {},
}

// decimalString matches plain decimal literals without leading zeros, so
// codes such as "0012" are left alone.
var decimalString = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?$`)

// NormalizePayload returns the canonical JSON form of payload for operation:
// object keys sorted, stripped fields removed, decimals written without
// trailing zeros and RFC 3339 timestamps converted to UTC.
func NormalizePayload(operation string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}
	// encoding/json writes map keys in sorted order
	return json.Marshal(map[string]any{
		"operation": operation,
		"payload":   strip(tree),
	})
}

func strip(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if _, drop := strippedFields[strings.ToLower(k)]; drop {
				continue
			}
			out[k] = strip(val)
		}
		return out
	case []any:
		for i := range t {
			t[i] = strip(t[i])
		}
		return t
	case json.Number:
		if d, err := decimal.NewFromString(t.String()); err == nil {
			return json.Number(d.String())
		}
		return t
	case string:
		return canonicalString(t)
	default:
		return v
	}
}

func canonicalString(s string) string {
	if decimalString.MatchString(s) {
		if d, err := decimal.NewFromString(s); err == nil {
			return d.String()
		}
	}
	if strings.Contains(s, "T") {
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return ts.UTC().Format(time.RFC3339Nano)
		}
	}
	return s
}

// Hash returns the hex sha256 digest of a normalized payload
func Hash(normalized []byte) string {
	sum := sha256.Sum256(normalized)
	return hex.EncodeToString(sum[:])
}

// Fingerprint normalizes and hashes payload in one step
func Fingerprint(operation string, payload any) (string, error) {
	normalized, err := NormalizePayload(operation, payload)
	if err != nil {
		return "", err
	}
	return Hash(normalized), nil
}
