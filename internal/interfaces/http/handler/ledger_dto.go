package handler

import (
	"time"

	appledger "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ===================== Requests =====================

// CreateAccountRequest adds an account to the chart of accounts
type CreateAccountRequest struct {
	Code       string `json:"code" binding:"required,max=32"`
	Name       string `json:"name" binding:"required,max=200"`
	Type       string `json:"type" binding:"required,oneof=asset liability equity income expense"`
	NormalSide string `json:"normal_side" binding:"omitempty,oneof=debit credit"`
	Currency   string `json:"currency" binding:"omitempty,len=3"`
}

func (r CreateAccountRequest) toInput() appledger.CreateAccountInput {
	return appledger.CreateAccountInput{
		Code:       r.Code,
		Name:       r.Name,
		Type:       ledger.AccountType(r.Type),
		NormalSide: ledger.Side(r.NormalSide),
		Currency:   r.Currency,
	}
}

// ListAccountsQuery filters the chart of accounts
type ListAccountsQuery struct {
	dto.ListRequest
	Type   string `form:"type" binding:"omitempty,oneof=asset liability equity income expense"`
	Active string `form:"active"`
	Search string `form:"search" binding:"omitempty,max=100"`
}

// SourceRefRequest names the document a journal entry came from
type SourceRefRequest struct {
	Type string    `json:"type" binding:"required,max=50"`
	ID   uuid.UUID `json:"id" binding:"required"`
}

// JournalLineRequest is one debit or credit line
type JournalLineRequest struct {
	AccountID   uuid.UUID         `json:"account_id" binding:"required"`
	Debit       decimal.Decimal   `json:"debit" binding:"gte=0"`
	Credit      decimal.Decimal   `json:"credit" binding:"gte=0"`
	Description string            `json:"description" binding:"max=500"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// JournalEntryRequest posts a journal entry or saves a draft
type JournalEntryRequest struct {
	Date         dto.Date             `json:"date"`
	Currency     string               `json:"currency" binding:"omitempty,len=3"`
	ExchangeRate decimal.Decimal      `json:"exchange_rate" binding:"gte=0"`
	Description  string               `json:"description" binding:"max=500"`
	Reference    *SourceRefRequest    `json:"reference,omitempty"`
	Lines        []JournalLineRequest `json:"lines" binding:"required,min=2,dive"`
}

func (r JournalEntryRequest) toInput() appledger.JournalEntryInput {
	in := appledger.JournalEntryInput{
		Date:         r.Date.Time,
		Currency:     r.Currency,
		ExchangeRate: r.ExchangeRate,
		Description:  r.Description,
		Lines:        make([]ledger.LineInput, len(r.Lines)),
	}
	if r.Reference != nil {
		in.Reference = &ledger.SourceRef{Type: r.Reference.Type, ID: r.Reference.ID}
	}
	for i, l := range r.Lines {
		in.Lines[i] = ledger.LineInput{
			AccountID:   l.AccountID,
			Debit:       l.Debit,
			Credit:      l.Credit,
			Description: l.Description,
			Tags:        l.Tags,
		}
	}
	return in
}

// ListJournalEntriesQuery filters journal entries
type ListJournalEntriesQuery struct {
	dto.ListRequest
	Status     string `form:"status" binding:"omitempty,oneof=draft posted voided"`
	SourceType string `form:"source_type" binding:"omitempty,max=50"`
	SourceID   string `form:"source_id" binding:"omitempty,uuid"`
	DateFrom   string `form:"date_from" binding:"omitempty,datetime=2006-01-02"`
	DateTo     string `form:"date_to" binding:"omitempty,datetime=2006-01-02"`
}

// VoidRequest carries the reason of a void or cancellation
type VoidRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// CreateFiscalYearRequest opens a fiscal year
type CreateFiscalYearRequest struct {
	Name        string   `json:"name" binding:"required,max=100"`
	StartDate   dto.Date `json:"start_date"`
	EndDate     dto.Date `json:"end_date"`
	SkipPeriods bool     `json:"skip_periods"`
}

// ===================== Responses =====================

// AccountResponse is an account of the chart of accounts
type AccountResponse struct {
	ID         uuid.UUID       `json:"id"`
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	NormalSide string          `json:"normal_side"`
	Currency   string          `json:"currency"`
	Balance    decimal.Decimal `json:"balance"`
	IsActive   bool            `json:"is_active"`
	Version    int             `json:"version"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func toAccountResponse(a *ledger.Account) AccountResponse {
	return AccountResponse{
		ID:         a.ID,
		Code:       a.Code,
		Name:       a.Name,
		Type:       string(a.Type),
		NormalSide: string(a.NormalSide),
		Currency:   a.Currency.String(),
		Balance:    a.Balance,
		IsActive:   a.IsActive,
		Version:    a.Version,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

// JournalLineResponse is one line of a journal entry
type JournalLineResponse struct {
	LineNo      int               `json:"line_no"`
	AccountID   uuid.UUID         `json:"account_id"`
	Debit       decimal.Decimal   `json:"debit"`
	Credit      decimal.Decimal   `json:"credit"`
	Description string            `json:"description,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// SourceRefResponse names the document behind an entry
type SourceRefResponse struct {
	Type string    `json:"type"`
	ID   uuid.UUID `json:"id"`
}

// TransactionResponse is a journal entry
type TransactionResponse struct {
	ID           uuid.UUID             `json:"id"`
	EntryNumber  string                `json:"entry_number"`
	Date         dto.Date              `json:"date"`
	PostingDate  *time.Time            `json:"posting_date,omitempty"`
	PeriodID     *uuid.UUID            `json:"period_id,omitempty"`
	Currency     string                `json:"currency"`
	ExchangeRate decimal.Decimal       `json:"exchange_rate"`
	Description  string                `json:"description,omitempty"`
	Source       *SourceRefResponse    `json:"source,omitempty"`
	TotalDebit   decimal.Decimal       `json:"total_debit"`
	TotalCredit  decimal.Decimal       `json:"total_credit"`
	Status       string                `json:"status"`
	CreatedBy    uuid.UUID             `json:"created_by"`
	PostedBy     *uuid.UUID            `json:"posted_by,omitempty"`
	PostedAt     *time.Time            `json:"posted_at,omitempty"`
	VoidedBy     *uuid.UUID            `json:"voided_by,omitempty"`
	VoidedAt     *time.Time            `json:"voided_at,omitempty"`
	VoidReason   string                `json:"void_reason,omitempty"`
	Version      int                   `json:"version"`
	Lines        []JournalLineResponse `json:"lines,omitempty"`
}

func toTransactionResponse(t *ledger.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:           t.ID,
		EntryNumber:  t.EntryNumber,
		Date:         dto.NewDate(t.Date),
		PostingDate:  t.PostingDate,
		PeriodID:     t.PeriodID,
		Currency:     t.Currency.String(),
		ExchangeRate: t.ExchangeRate,
		Description:  t.Description,
		TotalDebit:   t.TotalDebit,
		TotalCredit:  t.TotalCredit,
		Status:       string(t.Status),
		CreatedBy:    t.CreatedBy,
		PostedBy:     t.PostedBy,
		PostedAt:     t.PostedAt,
		VoidedBy:     t.VoidedBy,
		VoidedAt:     t.VoidedAt,
		VoidReason:   t.VoidReason,
		Version:      t.Version,
	}
	if t.Source != nil {
		resp.Source = &SourceRefResponse{Type: t.Source.Type, ID: t.Source.ID}
	}
	if len(t.Lines) > 0 {
		resp.Lines = make([]JournalLineResponse, len(t.Lines))
		for i, l := range t.Lines {
			resp.Lines[i] = JournalLineResponse{
				LineNo:      l.LineNo,
				AccountID:   l.AccountID,
				Debit:       l.Debit,
				Credit:      l.Credit,
				Description: l.Description,
				Tags:        l.Tags,
			}
		}
	}
	return resp
}

// FiscalYearResponse is a fiscal year
type FiscalYearResponse struct {
	ID        uuid.UUID        `json:"id"`
	Name      string           `json:"name"`
	StartDate dto.Date         `json:"start_date"`
	EndDate   dto.Date         `json:"end_date"`
	Status    string           `json:"status"`
	ClosedAt  *time.Time       `json:"closed_at,omitempty"`
	ClosedBy  *uuid.UUID       `json:"closed_by,omitempty"`
	Periods   []PeriodResponse `json:"periods,omitempty"`
}

func toFiscalYearResponse(y *ledger.FiscalYear, periods []*ledger.AccountingPeriod) FiscalYearResponse {
	resp := FiscalYearResponse{
		ID:        y.ID,
		Name:      y.Name,
		StartDate: dto.NewDate(y.StartDate),
		EndDate:   dto.NewDate(y.EndDate),
		Status:    string(y.Status),
		ClosedAt:  y.ClosedAt,
		ClosedBy:  y.ClosedBy,
	}
	if len(periods) > 0 {
		resp.Periods = toPeriodResponses(periods)
	}
	return resp
}

// PeriodResponse is an accounting period
type PeriodResponse struct {
	ID           uuid.UUID  `json:"id"`
	FiscalYearID uuid.UUID  `json:"fiscal_year_id"`
	Name         string     `json:"name"`
	StartDate    dto.Date   `json:"start_date"`
	EndDate      dto.Date   `json:"end_date"`
	Closed       bool       `json:"closed"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
	ClosedBy     *uuid.UUID `json:"closed_by,omitempty"`
	Version      int        `json:"version"`
}

func toPeriodResponse(p *ledger.AccountingPeriod) PeriodResponse {
	return PeriodResponse{
		ID:           p.ID,
		FiscalYearID: p.FiscalYearID,
		Name:         p.Name,
		StartDate:    dto.NewDate(p.StartDate),
		EndDate:      dto.NewDate(p.EndDate),
		Closed:       p.Closed,
		ClosedAt:     p.ClosedAt,
		ClosedBy:     p.ClosedBy,
		Version:      p.Version,
	}
}

func toPeriodResponses(periods []*ledger.AccountingPeriod) []PeriodResponse {
	out := make([]PeriodResponse, len(periods))
	for i, p := range periods {
		out[i] = toPeriodResponse(p)
	}
	return out
}
