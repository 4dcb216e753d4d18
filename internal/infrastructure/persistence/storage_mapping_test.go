package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStorageMapping(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		m := DefaultStorageMapping()
		assert.Equal(t, "accounts", m.Table(EntityAccount))
		assert.Equal(t, "accounts_receivable", m.Table(EntityReceivable))
		assert.Empty(t, m.Schema())
		assert.Len(t, m.Tables(), len(defaultTables))
	})

	t.Run("schema qualifies every table", func(t *testing.T) {
		m, err := NewStorageMapping("finance", nil)
		require.NoError(t, err)
		assert.Equal(t, "finance.journal_entries", m.Table(EntityJournalEntry))
		for _, table := range m.Tables() {
			assert.Contains(t, table, "finance.")
		}
	})

	t.Run("overrides replace one table", func(t *testing.T) {
		m, err := NewStorageMapping("", map[string]string{"Receivable": " ar_ledger "})
		require.NoError(t, err)
		assert.Equal(t, "ar_ledger", m.Table(EntityReceivable))
		assert.Equal(t, "invoices", m.Table(EntityInvoice))
	})

	tests := []struct {
		name      string
		schema    string
		overrides map[string]string
		errPart   string
	}{
		{"unknown entity", "", map[string]string{"warehouse": "w"}, "unknown entity"},
		{"bad table identifier", "", map[string]string{"account": "accounts; DROP"}, "not a valid identifier"},
		{"uppercase table", "", map[string]string{"account": "Accounts"}, "not a valid identifier"},
		{"bad schema", "my-schema", nil, "storage.schema"},
		{"two entities share a table", "", map[string]string{"invoice": "payments"}, "both map to table"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStorageMapping(tt.schema, tt.overrides)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}
}

func TestStorageMapping_TableName(t *testing.T) {
	m, err := NewStorageMapping("ledger", map[string]string{"audit_entry": "audit_log"})
	require.NoError(t, err)

	assert.Equal(t, "ledger.audit_log", m.TableName("AuditEntryModel"))
	assert.Equal(t, "ledger.invoice_items", m.TableName("InvoiceItemModel"))
	assert.Equal(t, "widgets", m.TableName("Widget"))
}

func TestStorageMapping_UnknownEntityPanics(t *testing.T) {
	assert.Panics(t, func() {
		DefaultStorageMapping().Table(Entity("warehouse"))
	})
}
