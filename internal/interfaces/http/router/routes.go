package router

import (
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/interfaces/http/handler"
)

// Handlers are the HTTP handlers of the ledger API
type Handlers struct {
	Accounts    *handler.AccountHandler
	Journal     *handler.JournalHandler
	Periods     *handler.PeriodHandler
	Invoices    *handler.InvoiceHandler
	Payments    *handler.PaymentHandler
	Receivables *handler.ReceivableHandler
	Audit       *handler.AuditHandler
}

// Groups returns the route groups of the ledger API
func (h Handlers) Groups() []*DomainGroup {
	accounts := NewDomainGroup("accounts", "/accounts").
		GET("", shared.PermAccountRead, h.Accounts.ListAccounts).
		POST("", shared.PermAccountManage, h.Accounts.CreateAccount).
		GET("/:id", shared.PermAccountRead, h.Accounts.GetAccount).
		GET("/:id/balance", shared.PermAccountRead, h.Accounts.GetAccountBalance).
		POST("/:id/deactivate", shared.PermAccountManage, h.Accounts.DeactivateAccount)

	journal := NewDomainGroup("journal", "/journal-entries").
		GET("", shared.PermJournalRead, h.Journal.ListJournalEntries).
		POST("", shared.PermJournalPost, h.Journal.PostJournalEntry).
		POST("/drafts", shared.PermJournalPost, h.Journal.CreateDraft).
		GET("/:id", shared.PermJournalRead, h.Journal.GetJournalEntry).
		POST("/:id/post", shared.PermJournalPost, h.Journal.PostDraft).
		POST("/:id/void", shared.PermJournalVoid, h.Journal.VoidJournalEntry).
		DELETE("/:id", shared.PermJournalPost, h.Journal.DiscardDraft)

	fiscalYears := NewDomainGroup("fiscal-years", "/fiscal-years").
		GET("", shared.PermPeriodRead, h.Periods.ListFiscalYears).
		POST("", shared.PermPeriodManage, h.Periods.CreateFiscalYear).
		POST("/:id/close", shared.PermPeriodManage, h.Periods.CloseFiscalYear)

	periods := NewDomainGroup("periods", "/periods").
		GET("", shared.PermPeriodRead, h.Periods.ListPeriods).
		POST("/:id/close", shared.PermPeriodManage, h.Periods.ClosePeriod).
		POST("/:id/reopen", shared.PermPeriodManage, h.Periods.ReopenPeriod)

	invoices := NewDomainGroup("invoices", "/invoices").
		GET("", shared.PermInvoiceRead, h.Invoices.ListInvoices).
		POST("", shared.PermInvoiceCreate, h.Invoices.CreateInvoice).
		GET("/statistics", shared.PermInvoiceRead, h.Invoices.InvoiceStatistics).
		GET("/:id", shared.PermInvoiceRead, h.Invoices.GetInvoice).
		POST("/:id/send", shared.PermInvoiceSend, h.Invoices.SendInvoice).
		POST("/:id/post", shared.PermInvoicePost, h.Invoices.PostInvoice).
		POST("/:id/cancel", shared.PermInvoiceCancel, h.Invoices.CancelInvoice)

	payments := NewDomainGroup("payments", "/payments").
		POST("", shared.PermPaymentRecord, h.Payments.RecordPayment).
		GET("/:id", shared.PermPaymentRead, h.Payments.GetPayment).
		GET("/:id/allocations", shared.PermPaymentRead, h.Payments.ListAllocations).
		POST("/:id/allocations", shared.PermPaymentAllocate, h.Payments.AllocatePayment).
		POST("/:id/auto-allocate", shared.PermPaymentAllocate, h.Payments.AutoAllocatePayment)

	allocations := NewDomainGroup("allocations", "/allocations").
		POST("/:id/refund", shared.PermPaymentRefund, h.Payments.RefundAllocation)

	receivables := NewDomainGroup("receivables", "/receivables").
		GET("", shared.PermReceivableRead, h.Receivables.ListReceivables).
		GET("/aging", shared.PermReceivableRead, h.Receivables.AgingSummary)

	customers := NewDomainGroup("customers", "/customers").
		GET("/:id", shared.PermInvoiceRead, h.Receivables.GetCustomer).
		PUT("/:id", shared.PermCustomerManage, h.Receivables.RegisterCustomer).
		GET("/:id/balance", shared.PermReceivableRead, h.Receivables.CustomerBalance)

	auditEntries := NewDomainGroup("audit", "/audit-entries").
		GET("", shared.PermAuditRead, h.Audit.ListAuditEntries)

	return []*DomainGroup{
		accounts, journal, fiscalYears, periods, invoices,
		payments, allocations, receivables, customers, auditEntries,
	}
}

// RegisterAll registers every ledger group with r
func (h Handlers) RegisterAll(r *Router) *Router {
	for _, g := range h.Groups() {
		r.Register(g)
	}
	return r
}
