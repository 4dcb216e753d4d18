package handler

import (
	"time"

	appfinance "github.com/erp/ledger/internal/application/finance"
	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/finance/acl"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ===================== Requests =====================

// InvoiceItemRequest is one invoice line
type InvoiceItemRequest struct {
	Description     string          `json:"description" binding:"required,max=500"`
	Quantity        decimal.Decimal `json:"quantity" binding:"gt=0"`
	UnitPrice       decimal.Decimal `json:"unit_price" binding:"gte=0"`
	DiscountAmount  decimal.Decimal `json:"discount_amount" binding:"gte=0"`
	DiscountPercent decimal.Decimal `json:"discount_percent" binding:"gte=0,lte=100"`
	TaxRate         decimal.Decimal `json:"tax_rate" binding:"gte=0"`
}

// CreateInvoiceRequest creates a draft invoice
type CreateInvoiceRequest struct {
	CustomerID       uuid.UUID            `json:"customer_id" binding:"required"`
	Currency         string               `json:"currency" binding:"omitempty,len=3"`
	ExchangeRate     decimal.Decimal      `json:"exchange_rate" binding:"gte=0"`
	IssueDate        dto.Date             `json:"issue_date"`
	DueDate          *dto.Date            `json:"due_date,omitempty"`
	PaymentTermsDays int                  `json:"payment_terms_days" binding:"gte=0,lte=3650"`
	Items            []InvoiceItemRequest `json:"items" binding:"required,dive"`
	Notes            string               `json:"notes" binding:"max=2000"`
}

func (r CreateInvoiceRequest) toInput() appfinance.CreateInvoiceInput {
	in := appfinance.CreateInvoiceInput{
		CustomerID:       r.CustomerID,
		Currency:         r.Currency,
		ExchangeRate:     r.ExchangeRate,
		IssueDate:        r.IssueDate.Time,
		PaymentTermsDays: r.PaymentTermsDays,
		Items:            make([]finance.InvoiceItemInput, len(r.Items)),
		Notes:            r.Notes,
	}
	if r.DueDate != nil {
		in.DueDate = r.DueDate.DatePtr()
	}
	for i, item := range r.Items {
		in.Items[i] = finance.InvoiceItemInput{
			Description:     item.Description,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			DiscountAmount:  item.DiscountAmount,
			DiscountPercent: item.DiscountPercent,
			TaxRate:         item.TaxRate,
		}
	}
	return in
}

// ListInvoicesQuery filters invoices
type ListInvoicesQuery struct {
	dto.ListRequest
	CustomerID string `form:"customer_id" binding:"omitempty,uuid"`
	Status     string `form:"status" binding:"omitempty,oneof=draft sent posted partially_paid paid cancelled"`
	IssuedFrom string `form:"issued_from" binding:"omitempty,datetime=2006-01-02"`
	IssuedTo   string `form:"issued_to" binding:"omitempty,datetime=2006-01-02"`
}

// RecordPaymentRequest records a received payment
type RecordPaymentRequest struct {
	CustomerID   uuid.UUID       `json:"customer_id" binding:"required"`
	Amount       decimal.Decimal `json:"amount" binding:"gt=0"`
	Method       string          `json:"method" binding:"required,oneof=cash bank_transfer check credit_card other"`
	Currency     string          `json:"currency" binding:"omitempty,len=3"`
	ExchangeRate decimal.Decimal `json:"exchange_rate" binding:"gte=0"`
	PaymentDate  dto.Date        `json:"payment_date"`
	Reference    string          `json:"reference" binding:"max=100"`
	Notes        string          `json:"notes" binding:"max=2000"`
}

func (r RecordPaymentRequest) toInput() appfinance.RecordPaymentInput {
	return appfinance.RecordPaymentInput{
		CustomerID:   r.CustomerID,
		Amount:       r.Amount,
		Method:       finance.PaymentMethod(r.Method),
		Currency:     r.Currency,
		ExchangeRate: r.ExchangeRate,
		PaymentDate:  r.PaymentDate.Time,
		Reference:    r.Reference,
		Notes:        r.Notes,
	}
}

// AllocatePaymentRequest applies part of a payment to one invoice
type AllocatePaymentRequest struct {
	InvoiceID uuid.UUID       `json:"invoice_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"gt=0"`
	Date      dto.Date        `json:"date"`
	Notes     string          `json:"notes" binding:"max=2000"`
}

// AllocationTargetRequest is one explicit target of a manual allocation
type AllocationTargetRequest struct {
	InvoiceID uuid.UUID       `json:"invoice_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"gt=0"`
}

// AutoAllocateRequest allocates a payment by strategy
type AutoAllocateRequest struct {
	Strategy string                    `json:"strategy" binding:"omitempty,oneof=fifo manual"`
	Targets  []AllocationTargetRequest `json:"targets,omitempty" binding:"omitempty,dive"`
}

func (r AutoAllocateRequest) toInput() appfinance.AutoAllocateInput {
	in := appfinance.AutoAllocateInput{Strategy: r.Strategy}
	for _, t := range r.Targets {
		in.Targets = append(in.Targets, finance.ManualAllocationRequest{TargetID: t.InvoiceID, Amount: t.Amount})
	}
	return in
}

// RefundAllocationRequest reverses part of an allocation
type RefundAllocationRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"gt=0"`
	Reason string          `json:"reason" binding:"required,max=500"`
}

// ListReceivablesQuery filters receivable rows
type ListReceivablesQuery struct {
	dto.ListRequest
	CustomerID  string `form:"customer_id" binding:"omitempty,uuid"`
	Status      string `form:"status" binding:"omitempty,oneof=open partial paid cancelled"`
	Outstanding bool   `form:"outstanding"`
}

// RegisterCustomerRequest stores the billing copy of a customer
type RegisterCustomerRequest struct {
	Code        string           `json:"code" binding:"required,max=50"`
	Name        string           `json:"name" binding:"required,max=200"`
	Currency    string           `json:"currency" binding:"omitempty,len=3"`
	CreditLimit *decimal.Decimal `json:"credit_limit,omitempty"`
	Active      *bool            `json:"active,omitempty"`
}

func (r RegisterCustomerRequest) toInput() appfinance.RegisterCustomerInput {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return appfinance.RegisterCustomerInput{
		Code:        r.Code,
		Name:        r.Name,
		Currency:    r.Currency,
		CreditLimit: r.CreditLimit,
		Active:      active,
	}
}

// ===================== Responses =====================

// InvoiceItemResponse is one invoice line with its computed amounts
type InvoiceItemResponse struct {
	LineNo          int             `json:"line_no"`
	Description     string          `json:"description"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Discount        decimal.Decimal `json:"discount"`
	Tax             decimal.Decimal `json:"tax"`
	Total           decimal.Decimal `json:"total"`
}

// InvoiceResponse is an invoice
type InvoiceResponse struct {
	ID            uuid.UUID             `json:"id"`
	InvoiceNumber string                `json:"invoice_number"`
	CustomerID    uuid.UUID             `json:"customer_id"`
	Currency      string                `json:"currency"`
	ExchangeRate  decimal.Decimal       `json:"exchange_rate"`
	IssueDate     dto.Date              `json:"issue_date"`
	DueDate       dto.Date              `json:"due_date"`
	Subtotal      decimal.Decimal       `json:"subtotal"`
	DiscountTotal decimal.Decimal       `json:"discount_total"`
	TaxTotal      decimal.Decimal       `json:"tax_total"`
	TotalAmount   decimal.Decimal       `json:"total_amount"`
	BalanceDue    decimal.Decimal       `json:"balance_due"`
	Status        string                `json:"status"`
	Notes         string                `json:"notes,omitempty"`
	TransactionID *uuid.UUID            `json:"transaction_id,omitempty"`
	CreatedBy     uuid.UUID             `json:"created_by"`
	SentAt        *time.Time            `json:"sent_at,omitempty"`
	PostedAt      *time.Time            `json:"posted_at,omitempty"`
	PaidAt        *time.Time            `json:"paid_at,omitempty"`
	CancelledAt   *time.Time            `json:"cancelled_at,omitempty"`
	CancelReason  string                `json:"cancel_reason,omitempty"`
	Version       int                   `json:"version"`
	CreatedAt     time.Time             `json:"created_at"`
	Items         []InvoiceItemResponse `json:"items,omitempty"`
}

func toInvoiceResponse(inv *finance.Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		CustomerID:    inv.CustomerID,
		Currency:      inv.Currency.String(),
		ExchangeRate:  inv.ExchangeRate,
		IssueDate:     dto.NewDate(inv.IssueDate),
		DueDate:       dto.NewDate(inv.DueDate),
		Subtotal:      inv.Subtotal,
		DiscountTotal: inv.DiscountTotal,
		TaxTotal:      inv.TaxTotal,
		TotalAmount:   inv.TotalAmount,
		BalanceDue:    inv.BalanceDue,
		Status:        string(inv.Status),
		Notes:         inv.Notes,
		TransactionID: inv.TransactionID,
		CreatedBy:     inv.CreatedBy,
		SentAt:        inv.SentAt,
		PostedAt:      inv.PostedAt,
		PaidAt:        inv.PaidAt,
		CancelledAt:   inv.CancelledAt,
		CancelReason:  inv.CancelReason,
		Version:       inv.Version,
		CreatedAt:     inv.CreatedAt,
	}
	for _, item := range inv.Items {
		resp.Items = append(resp.Items, InvoiceItemResponse{
			LineNo:          item.LineNo,
			Description:     item.Description,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			DiscountAmount:  item.DiscountAmount,
			DiscountPercent: item.DiscountPercent,
			TaxRate:         item.TaxRate,
			Subtotal:        item.Subtotal,
			Discount:        item.Discount,
			Tax:             item.Tax,
			Total:           item.Total,
		})
	}
	return resp
}

// InvoiceStatisticsResponse aggregates invoices of one status
type InvoiceStatisticsResponse struct {
	Status      string          `json:"status"`
	Count       int64           `json:"count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	BalanceDue  decimal.Decimal `json:"balance_due"`
}

// PaymentResponse is a recorded payment
type PaymentResponse struct {
	ID              uuid.UUID       `json:"id"`
	PaymentNumber   string          `json:"payment_number"`
	CustomerID      uuid.UUID       `json:"customer_id"`
	Amount          decimal.Decimal `json:"amount"`
	AllocatedAmount decimal.Decimal `json:"allocated_amount"`
	Unallocated     decimal.Decimal `json:"unallocated_amount"`
	Method          string          `json:"method"`
	Currency        string          `json:"currency"`
	ExchangeRate    decimal.Decimal `json:"exchange_rate"`
	PaymentDate     dto.Date        `json:"payment_date"`
	Reference       string          `json:"reference,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	Status          string          `json:"status"`
	TransactionID   *uuid.UUID      `json:"transaction_id,omitempty"`
	RecordedBy      uuid.UUID       `json:"recorded_by"`
	Version         int             `json:"version"`
	CreatedAt       time.Time       `json:"created_at"`
}

func toPaymentResponse(p *finance.Payment) PaymentResponse {
	return PaymentResponse{
		ID:              p.ID,
		PaymentNumber:   p.PaymentNumber,
		CustomerID:      p.CustomerID,
		Amount:          p.Amount,
		AllocatedAmount: p.AllocatedAmount,
		Unallocated:     p.Unallocated(),
		Method:          string(p.Method),
		Currency:        p.Currency.String(),
		ExchangeRate:    p.ExchangeRate,
		PaymentDate:     dto.NewDate(p.PaymentDate),
		Reference:       p.Reference,
		Notes:           p.Notes,
		Status:          string(p.Status),
		TransactionID:   p.TransactionID,
		RecordedBy:      p.RecordedBy,
		Version:         p.Version,
		CreatedAt:       p.CreatedAt,
	}
}

// AllocationResponse is the application of a payment to an invoice
type AllocationResponse struct {
	ID             uuid.UUID       `json:"id"`
	PaymentID      uuid.UUID       `json:"payment_id"`
	InvoiceID      uuid.UUID       `json:"invoice_id"`
	Amount         decimal.Decimal `json:"amount"`
	RefundedAmount decimal.Decimal `json:"refunded_amount"`
	NetAmount      decimal.Decimal `json:"net_amount"`
	AllocationDate dto.Date        `json:"allocation_date"`
	Notes          string          `json:"notes,omitempty"`
	Status         string          `json:"status"`
	RefundReason   string          `json:"refund_reason,omitempty"`
	CreatedBy      uuid.UUID       `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
}

func toAllocationResponse(a *finance.PaymentAllocation) AllocationResponse {
	return AllocationResponse{
		ID:             a.ID,
		PaymentID:      a.PaymentID,
		InvoiceID:      a.InvoiceID,
		Amount:         a.Amount,
		RefundedAmount: a.RefundedAmount,
		NetAmount:      a.NetAmount(),
		AllocationDate: dto.NewDate(a.AllocationDate),
		Notes:          a.Notes,
		Status:         string(a.Status),
		RefundReason:   a.RefundReason,
		CreatedBy:      a.CreatedBy,
		CreatedAt:      a.CreatedAt,
	}
}

func toAllocationResponses(allocs []*finance.PaymentAllocation) []AllocationResponse {
	out := make([]AllocationResponse, len(allocs))
	for i, a := range allocs {
		out[i] = toAllocationResponse(a)
	}
	return out
}

// PaymentDetailResponse is a payment with its allocations
type PaymentDetailResponse struct {
	PaymentResponse
	Allocations []AllocationResponse `json:"allocations"`
}

// AutoAllocationResponse reports an automatic allocation
type AutoAllocationResponse struct {
	Payment     PaymentResponse      `json:"payment"`
	Strategy    string               `json:"strategy"`
	Allocations []AllocationResponse `json:"allocations"`
	Allocated   decimal.Decimal      `json:"allocated"`
	Remaining   decimal.Decimal      `json:"remaining"`
}

func toAutoAllocationResponse(r *appfinance.AutoAllocationResult) AutoAllocationResponse {
	return AutoAllocationResponse{
		Payment:     toPaymentResponse(r.Payment),
		Strategy:    string(r.Strategy),
		Allocations: toAllocationResponses(r.Allocations),
		Allocated:   r.Allocated,
		Remaining:   r.Remaining,
	}
}

// ReceivableResponse is a customer's receivable row for one invoice
type ReceivableResponse struct {
	ID             uuid.UUID                    `json:"id"`
	CustomerID     uuid.UUID                    `json:"customer_id"`
	InvoiceID      uuid.UUID                    `json:"invoice_id"`
	InvoiceNumber  string                       `json:"invoice_number"`
	Currency       string                       `json:"currency"`
	OriginalAmount decimal.Decimal              `json:"original_amount"`
	AmountDue      decimal.Decimal              `json:"amount_due"`
	DueDate        dto.Date                     `json:"due_date"`
	AgingBucket    string                       `json:"aging_bucket"`
	Status         string                       `json:"status"`
	History        []finance.ReceivableLogEntry `json:"history,omitempty"`
	UpdatedAt      time.Time                    `json:"updated_at"`
}

func toReceivableResponse(r *finance.Receivable) ReceivableResponse {
	return ReceivableResponse{
		ID:             r.ID,
		CustomerID:     r.CustomerID,
		InvoiceID:      r.InvoiceID,
		InvoiceNumber:  r.InvoiceNumber,
		Currency:       r.Currency.String(),
		OriginalAmount: r.OriginalAmount,
		AmountDue:      r.AmountDue,
		DueDate:        dto.NewDate(r.DueDate),
		AgingBucket:    string(r.AgingBucket),
		Status:         string(r.Status),
		History:        r.Metadata,
		UpdatedAt:      r.UpdatedAt,
	}
}

// AgingBucketResponse is one aging bucket
type AgingBucketResponse struct {
	Bucket string          `json:"bucket"`
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
}

// AgingSummaryResponse is the receivable aging report
type AgingSummaryResponse struct {
	AsOf    dto.Date              `json:"as_of"`
	Buckets []AgingBucketResponse `json:"buckets"`
	Total   decimal.Decimal       `json:"total"`
}

func toAgingSummaryResponse(s *finance.AgingSummary) AgingSummaryResponse {
	resp := AgingSummaryResponse{AsOf: dto.NewDate(s.AsOf), Total: s.Total}
	for _, b := range finance.AllAgingBuckets() {
		amount, ok := s.Buckets[b]
		if !ok {
			amount = decimal.Zero
		}
		resp.Buckets = append(resp.Buckets, AgingBucketResponse{
			Bucket: string(b),
			Amount: amount,
			Count:  s.Counts[b],
		})
	}
	return resp
}

// CustomerResponse is the billing copy of a customer
type CustomerResponse struct {
	ID          uuid.UUID        `json:"id"`
	Code        string           `json:"code"`
	Name        string           `json:"name"`
	Currency    string           `json:"currency"`
	CreditLimit *decimal.Decimal `json:"credit_limit,omitempty"`
	Active      bool             `json:"active"`
}

func toCustomerResponse(ref acl.CustomerReference) CustomerResponse {
	return CustomerResponse{
		ID:          ref.ID(),
		Code:        ref.Code(),
		Name:        ref.Name(),
		Currency:    ref.Currency().String(),
		CreditLimit: ref.CreditLimit(),
		Active:      ref.IsActive(),
	}
}
