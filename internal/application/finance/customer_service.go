package finance

import (
	"context"

	"github.com/erp/ledger/internal/domain/finance/acl"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RegisterCustomerInput is the local copy of a customer kept for billing
type RegisterCustomerInput struct {
	Code        string           `json:"code"`
	Name        string           `json:"name"`
	Currency    string           `json:"currency"`
	CreditLimit *decimal.Decimal `json:"credit_limit,omitempty"`
	Active      bool             `json:"active"`
}

// CustomerService maintains the customer directory the finance documents
// resolve against
type CustomerService struct {
	directory acl.CustomerDirectory
	logger    *zap.Logger
}

// NewCustomerService creates a new CustomerService
func NewCustomerService(directory acl.CustomerDirectory, logger *zap.Logger) *CustomerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustomerService{directory: directory, logger: logger}
}

// RegisterCustomer stores or replaces the customer's reference
func (s *CustomerService) RegisterCustomer(ctx context.Context, op shared.OpContext, customerID uuid.UUID, in RegisterCustomerInput) (acl.CustomerReference, error) {
	if err := shared.Authorize(op, shared.PermCustomerManage); err != nil {
		return acl.CustomerReference{}, err
	}
	var currency valueobject.Currency
	if in.Currency != "" {
		c, err := valueobject.ParseCurrency(in.Currency)
		if err != nil {
			return acl.CustomerReference{}, err
		}
		currency = c
	}
	ref, err := acl.NewCustomerReference(customerID, in.Code, in.Name, currency, in.CreditLimit, in.Active)
	if err != nil {
		return acl.CustomerReference{}, err
	}
	if err := s.directory.Register(ctx, op.TenantID, ref); err != nil {
		return acl.CustomerReference{}, err
	}
	s.logger.Info("customer registered",
		zap.String("tenant_id", op.TenantID.String()),
		zap.String("customer_id", customerID.String()),
		zap.String("code", ref.Code()),
		zap.Bool("active", ref.IsActive()),
	)
	return ref, nil
}

// GetCustomer returns the customer's reference
func (s *CustomerService) GetCustomer(ctx context.Context, op shared.OpContext, customerID uuid.UUID) (acl.CustomerReference, error) {
	if err := shared.Authorize(op, shared.PermInvoiceRead); err != nil {
		return acl.CustomerReference{}, err
	}
	return s.directory.GetCustomerReference(ctx, op.TenantID, customerID)
}
