// Package acl is the finance context's view of the customer directory, which
// is owned by another system.
//
// Invoices and payments only carry a customer id. Before a document is
// created the application layer resolves that id through a CustomerDirectory
// and checks the returned CustomerReference: an inactive customer, or a
// document currency that differs from the customer's billing currency, is a
// validation error. Credit limits travel with the reference but enforcing
// them is left to the caller.
//
// References are replicated locally (see the customer_refs table) and cached
// in process, so the ledger keeps working when the owning system is down.
package acl
