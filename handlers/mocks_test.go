package handlers

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/butekinselcuk/sepettakip/internal/history"
	engine "github.com/butekinselcuk/sepettakip/internal/policy"
	"github.com/butekinselcuk/sepettakip/models"
	"github.com/butekinselcuk/sepettakip/repositories"
	"github.com/butekinselcuk/sepettakip/services/audit"
	"github.com/butekinselcuk/sepettakip/services/policy"
	"github.com/butekinselcuk/sepettakip/services/requests"
)

// MockPolicyService is a mock implementation of PolicyService
type MockPolicyService struct {
	mock.Mock
}

func (m *MockPolicyService) Get(ctx context.Context, principal *models.Principal, id uuid.UUID) (*models.BusinessPolicy, error) {
	args := m.Called(ctx, principal, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BusinessPolicy), args.Error(1)
}

func (m *MockPolicyService) List(ctx context.Context, principal *models.Principal, businessID *uuid.UUID) ([]*models.BusinessPolicy, error) {
	args := m.Called(ctx, principal, businessID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BusinessPolicy), args.Error(1)
}

func (m *MockPolicyService) Create(ctx context.Context, principal *models.Principal, in policy.Input, actor audit.Actor) (*models.BusinessPolicy, error) {
	args := m.Called(ctx, principal, in, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BusinessPolicy), args.Error(1)
}

func (m *MockPolicyService) Update(ctx context.Context, principal *models.Principal, id uuid.UUID, in policy.Input, actor audit.Actor) (*models.BusinessPolicy, error) {
	args := m.Called(ctx, principal, id, in, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BusinessPolicy), args.Error(1)
}

func (m *MockPolicyService) Activate(ctx context.Context, principal *models.Principal, id uuid.UUID, actor audit.Actor) (*models.BusinessPolicy, error) {
	args := m.Called(ctx, principal, id, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BusinessPolicy), args.Error(1)
}

func (m *MockPolicyService) Delete(ctx context.Context, principal *models.Principal, id uuid.UUID, actor audit.Actor) error {
	args := m.Called(ctx, principal, id, actor)
	return args.Error(0)
}

func (m *MockPolicyService) Preview(ctx context.Context, principal *models.Principal, req policy.PreviewRequest) (engine.Decision, error) {
	args := m.Called(ctx, principal, req)
	return args.Get(0).(engine.Decision), args.Error(1)
}

// MockRequestService is a mock implementation of RequestService
type MockRequestService struct {
	mock.Mock
}

func (m *MockRequestService) RequestCancellation(ctx context.Context, principal *models.Principal, orderID uuid.UUID, in requests.CancellationInput, actor audit.Actor) (*requests.CancellationResult, error) {
	args := m.Called(ctx, principal, orderID, in, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*requests.CancellationResult), args.Error(1)
}

func (m *MockRequestService) RequestRefund(ctx context.Context, principal *models.Principal, orderID uuid.UUID, in requests.RefundInput, actor audit.Actor) (*requests.RefundResult, error) {
	args := m.Called(ctx, principal, orderID, in, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*requests.RefundResult), args.Error(1)
}

func (m *MockRequestService) GetCancellation(ctx context.Context, principal *models.Principal, id uuid.UUID) (*models.CancellationRequest, error) {
	args := m.Called(ctx, principal, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CancellationRequest), args.Error(1)
}

func (m *MockRequestService) GetRefund(ctx context.Context, principal *models.Principal, id uuid.UUID) (*models.RefundRequest, error) {
	args := m.Called(ctx, principal, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RefundRequest), args.Error(1)
}

func (m *MockRequestService) ListCancellations(ctx context.Context, principal *models.Principal, businessID *uuid.UUID, status *engine.DecisionStatus, opts repositories.ListOptions) ([]*models.CancellationRequest, error) {
	args := m.Called(ctx, principal, businessID, status, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CancellationRequest), args.Error(1)
}

func (m *MockRequestService) ListRefunds(ctx context.Context, principal *models.Principal, businessID *uuid.UUID, status *engine.DecisionStatus, opts repositories.ListOptions) ([]*models.RefundRequest, error) {
	args := m.Called(ctx, principal, businessID, status, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RefundRequest), args.Error(1)
}

// MockAuditReader is a mock implementation of AuditReader
type MockAuditReader struct {
	mock.Mock
}

func (m *MockAuditReader) Recent(n int) []history.Entry {
	args := m.Called(n)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]history.Entry)
}

func (m *MockAuditReader) RecentForBusiness(businessID uuid.UUID, n int) []history.Entry {
	args := m.Called(businessID, n)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]history.Entry)
}

func (m *MockAuditReader) ListByBusiness(ctx context.Context, businessID uuid.UUID, opts repositories.ListOptions) ([]*models.AuditLog, error) {
	args := m.Called(ctx, businessID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AuditLog), args.Error(1)
}

func (m *MockAuditReader) GetStats() audit.Stats {
	args := m.Called()
	return args.Get(0).(audit.Stats)
}
