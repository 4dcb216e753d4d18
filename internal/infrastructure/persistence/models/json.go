package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONColumn stores V as a JSON document. Postgres maps it to jsonb; SQLite
// keeps the text.
type JSONColumn[V any] struct {
	V V
}

// NewJSONColumn wraps v
func NewJSONColumn[V any](v V) JSONColumn[V] {
	return JSONColumn[V]{V: v}
}

// Value implements driver.Valuer
func (c JSONColumn[V]) Value() (driver.Value, error) {
	b, err := json.Marshal(c.V)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (c *JSONColumn[V]) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		var zero V
		c.V = zero
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("json column: unsupported source type %T", src)
	}
	if len(data) == 0 {
		var zero V
		c.V = zero
		return nil
	}
	return json.Unmarshal(data, &c.V)
}
