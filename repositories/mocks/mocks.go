// Package mocks provides testify mocks of the repository interfaces.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/butekinselcuk/sepettakip/internal/policy"
	"github.com/butekinselcuk/sepettakip/models"
	"github.com/butekinselcuk/sepettakip/repositories"
)

// PolicyRepository is a mock implementation of repositories.PolicyRepository
type PolicyRepository struct {
	mock.Mock
}

func (m *PolicyRepository) Create(ctx context.Context, p *models.BusinessPolicy) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *PolicyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.BusinessPolicy, error) {
	args := m.Called(ctx, id)
	if p := args.Get(0); p != nil {
		return p.(*models.BusinessPolicy), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *PolicyRepository) GetActiveByBusinessID(ctx context.Context, businessID uuid.UUID) (*models.BusinessPolicy, error) {
	args := m.Called(ctx, businessID)
	if p := args.Get(0); p != nil {
		return p.(*models.BusinessPolicy), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *PolicyRepository) ListByBusinessID(ctx context.Context, businessID uuid.UUID) ([]*models.BusinessPolicy, error) {
	args := m.Called(ctx, businessID)
	if p := args.Get(0); p != nil {
		return p.([]*models.BusinessPolicy), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *PolicyRepository) Update(ctx context.Context, p *models.BusinessPolicy) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *PolicyRepository) DeactivateAll(ctx context.Context, businessID uuid.UUID) error {
	args := m.Called(ctx, businessID)
	return args.Error(0)
}

func (m *PolicyRepository) SetActive(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *PolicyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// OrderRepository is a mock implementation of repositories.OrderRepository
type OrderRepository struct {
	mock.Mock
}

func (m *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, id)
	if o := args.Get(0); o != nil {
		return o.(*models.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *OrderRepository) UpdateStatusIfCurrent(ctx context.Context, id uuid.UUID, expected, next policy.OrderStatus) (bool, error) {
	args := m.Called(ctx, id, expected, next)
	return args.Bool(0), args.Error(1)
}

// CancellationRequestRepository is a mock implementation of repositories.CancellationRequestRepository
type CancellationRequestRepository struct {
	mock.Mock
}

func (m *CancellationRequestRepository) Create(ctx context.Context, req *models.CancellationRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *CancellationRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.CancellationRequest, error) {
	args := m.Called(ctx, id)
	if r := args.Get(0); r != nil {
		return r.(*models.CancellationRequest), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *CancellationRequestRepository) ListByBusiness(ctx context.Context, businessID uuid.UUID, status *policy.DecisionStatus, opts repositories.ListOptions) ([]*models.CancellationRequest, error) {
	args := m.Called(ctx, businessID, status, opts)
	if r := args.Get(0); r != nil {
		return r.([]*models.CancellationRequest), args.Error(1)
	}
	return nil, args.Error(1)
}

// RefundRequestRepository is a mock implementation of repositories.RefundRequestRepository
type RefundRequestRepository struct {
	mock.Mock
}

func (m *RefundRequestRepository) Create(ctx context.Context, req *models.RefundRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *RefundRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.RefundRequest, error) {
	args := m.Called(ctx, id)
	if r := args.Get(0); r != nil {
		return r.(*models.RefundRequest), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RefundRequestRepository) ListByBusiness(ctx context.Context, businessID uuid.UUID, status *policy.DecisionStatus, opts repositories.ListOptions) ([]*models.RefundRequest, error) {
	args := m.Called(ctx, businessID, status, opts)
	if r := args.Get(0); r != nil {
		return r.([]*models.RefundRequest), args.Error(1)
	}
	return nil, args.Error(1)
}

// TransactionManager runs fn inline. Calls are recorded so tests can assert on them;
// an error configured with On("InTransaction") is returned without running fn.
type TransactionManager struct {
	mock.Mock
}

func (m *TransactionManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	args := m.Called(ctx)
	if tx := args.Get(0); tx != nil {
		return tx.(repositories.Transaction), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(ctx, &Transaction{ctx: ctx})
}

// Transaction is a no-op repositories.Transaction
type Transaction struct {
	ctx context.Context
}

func (t *Transaction) Commit() error            { return nil }
func (t *Transaction) Rollback() error          { return nil }
func (t *Transaction) Context() context.Context { return t.ctx }
