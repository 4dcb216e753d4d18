// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Models carry no TableName methods: table names come from the storage
// mapping installed as the GORM naming strategy.
//
// Structure:
//   - base.go: TenantModel shared by every aggregate
//   - json.go: generic JSON column type
//   - ledger.go: accounts, journal entries and lines, fiscal years and periods
//   - finance.go: invoices, payments, allocations and the receivable projection
//   - idempotency.go, audit.go, customer.go: support tables
package models
