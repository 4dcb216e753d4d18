package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountModel is the persistence model for a chart-of-accounts node.
// The (tenant_id, code) unique index is declared in the SQL migrations.
type AccountModel struct {
	TenantModel
	Code       string             `gorm:"type:varchar(50);not null;index"`
	Name       string             `gorm:"type:varchar(200);not null"`
	Type       ledger.AccountType `gorm:"type:varchar(20);not null"`
	NormalSide ledger.Side        `gorm:"type:varchar(10);not null"`
	Balance    decimal.Decimal    `gorm:"type:decimal(18,4);not null;default:0"`
	Currency   string             `gorm:"type:varchar(3);not null"`
	IsActive   bool               `gorm:"not null"`
}

// ToDomain converts the persistence model to a domain Account
func (m *AccountModel) ToDomain() *ledger.Account {
	return &ledger.Account{
		TenantAggregateRoot: m.ToDomainTenantAggregateRoot(),
		Code:                m.Code,
		Name:                m.Name,
		Type:                m.Type,
		NormalSide:          m.NormalSide,
		Balance:             m.Balance,
		Currency:            valueobject.Currency(m.Currency),
		IsActive:            m.IsActive,
	}
}

// FromDomain populates the persistence model from a domain Account
func (m *AccountModel) FromDomain(a *ledger.Account) {
	m.FromDomainTenantAggregateRoot(a.TenantAggregateRoot)
	m.Code = a.Code
	m.Name = a.Name
	m.Type = a.Type
	m.NormalSide = a.NormalSide
	m.Balance = a.Balance
	m.Currency = a.Currency.String()
	m.IsActive = a.IsActive
}

// AccountModelFromDomain creates a new persistence model from a domain Account
func AccountModelFromDomain(a *ledger.Account) *AccountModel {
	m := &AccountModel{}
	m.FromDomain(a)
	return m
}

// JournalEntryModel is the persistence model for a ledger transaction header
type JournalEntryModel struct {
	TenantModel
	EntryNumber  string                   `gorm:"type:varchar(50);not null;index"`
	EntryDate    time.Time                `gorm:"type:date;not null;index"`
	PostingDate  *time.Time               `gorm:"type:date"`
	PeriodID     *uuid.UUID               `gorm:"type:uuid;index"`
	Currency     string                   `gorm:"type:varchar(3);not null"`
	ExchangeRate decimal.Decimal          `gorm:"type:decimal(18,6);not null;default:1"`
	Description  string                   `gorm:"type:varchar(500)"`
	SourceType   string                   `gorm:"type:varchar(50);index:idx_journal_entry_source,priority:1"`
	SourceID     *uuid.UUID               `gorm:"type:uuid;index:idx_journal_entry_source,priority:2"`
	TotalDebit   decimal.Decimal          `gorm:"type:decimal(18,4);not null"`
	TotalCredit  decimal.Decimal          `gorm:"type:decimal(18,4);not null"`
	Status       ledger.TransactionStatus `gorm:"type:varchar(20);not null;index"`
	CreatedBy    uuid.UUID                `gorm:"type:uuid;not null"`
	PostedBy     *uuid.UUID               `gorm:"type:uuid"`
	PostedAt     *time.Time
	VoidedBy     *uuid.UUID `gorm:"type:uuid"`
	VoidedAt     *time.Time
	VoidReason   string             `gorm:"type:varchar(500)"`
	Lines        []JournalLineModel `gorm:"foreignKey:TransactionID;references:ID"`
}

// ToDomain converts the persistence model to a domain Transaction
func (m *JournalEntryModel) ToDomain() *ledger.Transaction {
	t := &ledger.Transaction{
		TenantAggregateRoot: m.ToDomainTenantAggregateRoot(),
		EntryNumber:         m.EntryNumber,
		Date:                m.EntryDate,
		PostingDate:         m.PostingDate,
		PeriodID:            m.PeriodID,
		Currency:            valueobject.Currency(m.Currency),
		ExchangeRate:        m.ExchangeRate,
		Description:         m.Description,
		TotalDebit:          m.TotalDebit,
		TotalCredit:         m.TotalCredit,
		Status:              m.Status,
		CreatedBy:           m.CreatedBy,
		PostedBy:            m.PostedBy,
		PostedAt:            m.PostedAt,
		VoidedBy:            m.VoidedBy,
		VoidedAt:            m.VoidedAt,
		VoidReason:          m.VoidReason,
	}
	if m.SourceType != "" && m.SourceID != nil {
		t.Source = &ledger.SourceRef{Type: m.SourceType, ID: *m.SourceID}
	}
	if len(m.Lines) > 0 {
		t.Lines = make([]ledger.JournalLine, len(m.Lines))
		for i := range m.Lines {
			t.Lines[i] = m.Lines[i].ToDomain()
		}
	}
	return t
}

// FromDomain populates the header model from a domain Transaction. Lines are
// converted separately so header updates never rewrite them.
func (m *JournalEntryModel) FromDomain(t *ledger.Transaction) {
	m.FromDomainTenantAggregateRoot(t.TenantAggregateRoot)
	m.EntryNumber = t.EntryNumber
	m.EntryDate = t.Date
	m.PostingDate = t.PostingDate
	m.PeriodID = t.PeriodID
	m.Currency = t.Currency.String()
	m.ExchangeRate = t.ExchangeRate
	m.Description = t.Description
	m.SourceType = ""
	m.SourceID = nil
	if t.Source != nil {
		id := t.Source.ID
		m.SourceType = t.Source.Type
		m.SourceID = &id
	}
	m.TotalDebit = t.TotalDebit
	m.TotalCredit = t.TotalCredit
	m.Status = t.Status
	m.CreatedBy = t.CreatedBy
	m.PostedBy = t.PostedBy
	m.PostedAt = t.PostedAt
	m.VoidedBy = t.VoidedBy
	m.VoidedAt = t.VoidedAt
	m.VoidReason = t.VoidReason
}

// JournalEntryModelFromDomain creates a header model from a domain Transaction
func JournalEntryModelFromDomain(t *ledger.Transaction) *JournalEntryModel {
	m := &JournalEntryModel{}
	m.FromDomain(t)
	return m
}

// JournalLineModel is the persistence model for an immutable journal line
type JournalLineModel struct {
	ID            uuid.UUID                     `gorm:"type:uuid;primary_key"`
	TenantID      uuid.UUID                     `gorm:"type:uuid;not null;index"`
	TransactionID uuid.UUID                     `gorm:"type:uuid;not null;index"`
	LineNo        int                           `gorm:"not null"`
	AccountID     uuid.UUID                     `gorm:"type:uuid;not null;index"`
	Debit         decimal.Decimal               `gorm:"type:decimal(18,4);not null;default:0"`
	Credit        decimal.Decimal               `gorm:"type:decimal(18,4);not null;default:0"`
	Description   string                        `gorm:"type:varchar(500)"`
	Tags          JSONColumn[map[string]string] `gorm:"type:jsonb"`
	CreatedAt     time.Time                     `gorm:"not null"`
}

// ToDomain converts the persistence model to a domain JournalLine
func (m *JournalLineModel) ToDomain() ledger.JournalLine {
	return ledger.JournalLine{
		ID:            m.ID,
		TransactionID: m.TransactionID,
		LineNo:        m.LineNo,
		AccountID:     m.AccountID,
		Debit:         m.Debit,
		Credit:        m.Credit,
		Description:   m.Description,
		Tags:          m.Tags.V,
	}
}

// JournalLineModelsFromDomain converts the lines of t
func JournalLineModelsFromDomain(t *ledger.Transaction) []JournalLineModel {
	out := make([]JournalLineModel, len(t.Lines))
	for i, l := range t.Lines {
		out[i] = JournalLineModel{
			ID:            l.ID,
			TenantID:      t.TenantID,
			TransactionID: t.ID,
			LineNo:        l.LineNo,
			AccountID:     l.AccountID,
			Debit:         l.Debit,
			Credit:        l.Credit,
			Description:   l.Description,
			Tags:          NewJSONColumn(l.Tags),
			CreatedAt:     t.CreatedAt,
		}
	}
	return out
}

// FiscalYearModel is the persistence model for a fiscal year
type FiscalYearModel struct {
	TenantModel
	Name      string                  `gorm:"type:varchar(100);not null"`
	StartDate time.Time               `gorm:"type:date;not null"`
	EndDate   time.Time               `gorm:"type:date;not null"`
	Status    ledger.FiscalYearStatus `gorm:"type:varchar(20);not null"`
	ClosedAt  *time.Time
	ClosedBy  *uuid.UUID `gorm:"type:uuid"`
}

// ToDomain converts the persistence model to a domain FiscalYear
func (m *FiscalYearModel) ToDomain() *ledger.FiscalYear {
	return &ledger.FiscalYear{
		TenantAggregateRoot: m.ToDomainTenantAggregateRoot(),
		Name:                m.Name,
		StartDate:           m.StartDate,
		EndDate:             m.EndDate,
		Status:              m.Status,
		ClosedAt:            m.ClosedAt,
		ClosedBy:            m.ClosedBy,
	}
}

// FromDomain populates the persistence model from a domain FiscalYear
func (m *FiscalYearModel) FromDomain(y *ledger.FiscalYear) {
	m.FromDomainTenantAggregateRoot(y.TenantAggregateRoot)
	m.Name = y.Name
	m.StartDate = y.StartDate
	m.EndDate = y.EndDate
	m.Status = y.Status
	m.ClosedAt = y.ClosedAt
	m.ClosedBy = y.ClosedBy
}

// AccountingPeriodModel is the persistence model for an accounting period
type AccountingPeriodModel struct {
	TenantModel
	FiscalYearID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name         string    `gorm:"type:varchar(100);not null"`
	StartDate    time.Time `gorm:"type:date;not null;index"`
	EndDate      time.Time `gorm:"type:date;not null"`
	Closed       bool      `gorm:"not null;default:false"`
	ClosedAt     *time.Time
	ClosedBy     *uuid.UUID `gorm:"type:uuid"`
}

// ToDomain converts the persistence model to a domain AccountingPeriod
func (m *AccountingPeriodModel) ToDomain() *ledger.AccountingPeriod {
	return &ledger.AccountingPeriod{
		TenantAggregateRoot: m.ToDomainTenantAggregateRoot(),
		FiscalYearID:        m.FiscalYearID,
		Name:                m.Name,
		StartDate:           m.StartDate,
		EndDate:             m.EndDate,
		Closed:              m.Closed,
		ClosedAt:            m.ClosedAt,
		ClosedBy:            m.ClosedBy,
	}
}

// FromDomain populates the persistence model from a domain AccountingPeriod
func (m *AccountingPeriodModel) FromDomain(p *ledger.AccountingPeriod) {
	m.FromDomainTenantAggregateRoot(p.TenantAggregateRoot)
	m.FiscalYearID = p.FiscalYearID
	m.Name = p.Name
	m.StartDate = p.StartDate
	m.EndDate = p.EndDate
	m.Closed = p.Closed
	m.ClosedAt = p.ClosedAt
	m.ClosedBy = p.ClosedBy
}
