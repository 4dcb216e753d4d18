package finance

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/ledger/internal/application/unitofwork"
	"github.com/erp/ledger/internal/domain/finance/acl"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// publishEvents drains the pending events of each aggregate and hands them to
// the publisher. Handlers run synchronously; an error aborts the unit of work.
func publishEvents(ctx context.Context, publisher shared.EventPublisher, aggregates ...shared.AggregateRoot) error {
	var events []shared.DomainEvent
	for _, agg := range aggregates {
		events = append(events, agg.GetDomainEvents()...)
		agg.ClearDomainEvents()
	}
	if publisher == nil || len(events) == 0 {
		return nil
	}
	return publisher.Publish(ctx, events...)
}

// resolveCustomer looks the customer up in the directory. Unknown customers
// are accepted as unregistered unless registration is required.
func resolveCustomer(ctx context.Context, dir acl.CustomerDirectory, requireRegistered bool, tenantID, customerID uuid.UUID) (acl.CustomerReference, error) {
	if customerID == uuid.Nil {
		return acl.CustomerReference{}, shared.NewValidationError("customer is required")
	}
	if dir == nil {
		return acl.UnregisteredCustomer(customerID), nil
	}
	ref, err := dir.GetCustomerReference(ctx, tenantID, customerID)
	switch {
	case err == nil:
		return ref, nil
	case errors.Is(err, shared.ErrNotFound) && !requireRegistered:
		return acl.UnregisteredCustomer(customerID), nil
	case errors.Is(err, shared.ErrNotFound):
		return acl.CustomerReference{}, shared.NewValidationError("customer %s is not registered", customerID)
	default:
		return acl.CustomerReference{}, fmt.Errorf("lookup customer: %w", err)
	}
}

// accountByCode loads a posting account by its configured code
func accountByCode(ctx context.Context, repos unitofwork.Repositories, tenantID uuid.UUID, code, purpose string) (*ledger.Account, error) {
	if code == "" {
		return nil, shared.NewValidationError("no %s account configured", purpose)
	}
	account, err := repos.Accounts().FindByCode(ctx, tenantID, code)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, shared.NewValidationError("%s account %s does not exist", purpose, code)
	}
	return account, err
}
