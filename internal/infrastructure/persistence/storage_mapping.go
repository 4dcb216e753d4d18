package persistence

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gorm.io/gorm/schema"
)

// Entity is the logical name of a persisted type
type Entity string

const (
	EntityAccount           Entity = "account"
	EntityJournalEntry      Entity = "journal_entry"
	EntityJournalLine       Entity = "journal_line"
	EntityFiscalYear        Entity = "fiscal_year"
	EntityAccountingPeriod  Entity = "accounting_period"
	EntityInvoice           Entity = "invoice"
	EntityInvoiceItem       Entity = "invoice_item"
	EntityPayment           Entity = "payment"
	EntityPaymentAllocation Entity = "payment_allocation"
	EntityReceivable        Entity = "receivable"
	EntityIdempotencyRecord Entity = "idempotency_record"
	EntityAuditEntry        Entity = "audit_entry"
	EntityCustomerRef       Entity = "customer_ref"
)

var defaultTables = map[Entity]string{
	EntityAccount:           "accounts",
	EntityJournalEntry:      "journal_entries",
	EntityJournalLine:       "journal_lines",
	EntityFiscalYear:        "fiscal_years",
	EntityAccountingPeriod:  "accounting_periods",
	EntityInvoice:           "invoices",
	EntityInvoiceItem:       "invoice_items",
	EntityPayment:           "payments",
	EntityPaymentAllocation: "payment_allocations",
	EntityReceivable:        "accounts_receivable",
	EntityIdempotencyRecord: "idempotency_records",
	EntityAuditEntry:        "audit_entries",
	EntityCustomerRef:       "customer_refs",
}

// modelEntities binds GORM model struct names to entities
var modelEntities = map[string]Entity{
	"AccountModel":           EntityAccount,
	"JournalEntryModel":      EntityJournalEntry,
	"JournalLineModel":       EntityJournalLine,
	"FiscalYearModel":        EntityFiscalYear,
	"AccountingPeriodModel":  EntityAccountingPeriod,
	"InvoiceModel":           EntityInvoice,
	"InvoiceItemModel":       EntityInvoiceItem,
	"PaymentModel":           EntityPayment,
	"PaymentAllocationModel": EntityPaymentAllocation,
	"ReceivableModel":        EntityReceivable,
	"IdempotencyRecordModel": EntityIdempotencyRecord,
	"AuditEntryModel":        EntityAuditEntry,
	"CustomerRefModel":       EntityCustomerRef,
}

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// StorageMapping resolves entities to physical tables. It is built and
// validated once at startup and plugged into GORM as the naming strategy, so
// models carry no table names of their own.
type StorageMapping struct {
	schema.NamingStrategy
	schemaName string
	tables     map[Entity]string
}

// NewStorageMapping builds the mapping from an optional schema and per-entity
// table overrides. Unknown entities, malformed identifiers and two entities
// sharing a table are rejected.
func NewStorageMapping(schemaName string, overrides map[string]string) (*StorageMapping, error) {
	schemaName = strings.TrimSpace(schemaName)
	if schemaName != "" && !identifierPattern.MatchString(schemaName) {
		return nil, fmt.Errorf("storage.schema %q is not a valid identifier", schemaName)
	}

	tables := make(map[Entity]string, len(defaultTables))
	for e, t := range defaultTables {
		tables[e] = t
	}
	for name, table := range overrides {
		e := Entity(strings.ToLower(strings.TrimSpace(name)))
		if _, ok := defaultTables[e]; !ok {
			return nil, fmt.Errorf("storage.tables: unknown entity %q", name)
		}
		table = strings.TrimSpace(table)
		if !identifierPattern.MatchString(table) {
			return nil, fmt.Errorf("storage.tables.%s: %q is not a valid identifier", e, table)
		}
		tables[e] = table
	}

	owners := make(map[string]Entity, len(tables))
	for _, e := range sortedEntities(tables) {
		if other, dup := owners[tables[e]]; dup {
			return nil, fmt.Errorf("storage.tables: %s and %s both map to table %q", other, e, tables[e])
		}
		owners[tables[e]] = e
	}

	return &StorageMapping{schemaName: schemaName, tables: tables}, nil
}

// DefaultStorageMapping returns the mapping without schema or overrides
func DefaultStorageMapping() *StorageMapping {
	m, _ := NewStorageMapping("", nil)
	return m
}

// Table returns the qualified table name of e
func (m *StorageMapping) Table(e Entity) string {
	t, ok := m.tables[e]
	if !ok {
		panic(fmt.Sprintf("storage mapping: unknown entity %q", e))
	}
	if m.schemaName == "" {
		return t
	}
	return m.schemaName + "." + t
}

// Schema returns the schema prefix, empty when tables live in the default schema
func (m *StorageMapping) Schema() string {
	return m.schemaName
}

// Tables returns entity -> qualified table for every entity
func (m *StorageMapping) Tables() map[Entity]string {
	out := make(map[Entity]string, len(m.tables))
	for e := range m.tables {
		out[e] = m.Table(e)
	}
	return out
}

// TableName implements schema.Namer. Model structs are resolved through the
// mapping; anything else falls back to GORM's default naming.
func (m *StorageMapping) TableName(str string) string {
	if e, ok := modelEntities[str]; ok {
		return m.Table(e)
	}
	return m.NamingStrategy.TableName(str)
}

func sortedEntities(tables map[Entity]string) []Entity {
	out := make([]Entity, 0, len(tables))
	for e := range tables {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var _ schema.Namer = (*StorageMapping)(nil)
