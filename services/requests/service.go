// Package requests files cancellation and refund requests against orders:
// it loads the order and the business's active policy, runs the evaluator,
// applies approved cancellations and persists every decision.
package requests

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/butekinselcuk/sepettakip/internal/money"
	engine "github.com/butekinselcuk/sepettakip/internal/policy"
	"github.com/butekinselcuk/sepettakip/models"
	"github.com/butekinselcuk/sepettakip/repositories"
	"github.com/butekinselcuk/sepettakip/services"
	"github.com/butekinselcuk/sepettakip/services/audit"
	"github.com/butekinselcuk/sepettakip/services/ratelimit"
)

// errStale signals that the order changed between evaluation and apply
var errStale = errors.New("order status changed during apply")

// PolicyLoader returns the active policy of a business, or nil when none is usable
type PolicyLoader interface {
	ActivePolicy(ctx context.Context, businessID uuid.UUID) (*engine.Policy, error)
}

// Auditor records request decisions
type Auditor interface {
	LogCancellationDecision(req *models.CancellationRequest, d engine.Decision, actor audit.Actor) error
	LogRefundDecision(req *models.RefundRequest, d engine.Decision, actor audit.Actor) error
	LogOrderCancelled(order *models.Order, from engine.OrderStatus, actor audit.Actor) error
}

// Limiter enforces per-customer request quotas
type Limiter interface {
	CheckLimit(ctx context.Context, req ratelimit.LimitRequest) (*ratelimit.LimitResult, error)
}

// CancellationInput is the body of a cancellation request
type CancellationInput struct {
	Reason string `json:"reason" validate:"max=500"`
}

// RefundInput is the body of a refund request
type RefundInput struct {
	Reason          string       `json:"reason" validate:"required,max=500"`
	RequestedAmount money.Amount `json:"requested_amount" validate:"gte=0"`
	ItemIDs         []uuid.UUID  `json:"item_ids" validate:"omitempty,dive,required"`
}

// CancellationResult is the outcome of a cancellation request
type CancellationResult struct {
	Request     *models.CancellationRequest `json:"request"`
	Decision    engine.Decision             `json:"decision"`
	OrderStatus engine.OrderStatus          `json:"order_status"`
	Applied     bool                        `json:"applied"`
}

// RefundResult is the outcome of a refund request
type RefundResult struct {
	Request  *models.RefundRequest `json:"request"`
	Decision engine.Decision       `json:"decision"`
}

// RequestService handles cancellation and refund requests
type RequestService struct {
	policies    PolicyLoader
	evaluator   *engine.Evaluator
	orderRepo   repositories.OrderRepository
	cancelRepo  repositories.CancellationRequestRepository
	refundRepo  repositories.RefundRequestRepository
	txMgr       repositories.TransactionManager
	auditor     Auditor
	limiter     Limiter
	maxAttempts int
	logger      *zap.Logger
}

// NewRequestService creates a new RequestService instance
func NewRequestService(
	policies PolicyLoader,
	evaluator *engine.Evaluator,
	repos *repositories.Repositories,
	txMgr repositories.TransactionManager,
	auditor Auditor,
	limiter Limiter,
	maxAttempts int,
	logger *zap.Logger,
) *RequestService {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RequestService{
		policies:    policies,
		evaluator:   evaluator,
		orderRepo:   repos.Orders,
		cancelRepo:  repos.CancellationRequests,
		refundRepo:  repos.RefundRequests,
		txMgr:       txMgr,
		auditor:     auditor,
		limiter:     limiter,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// RequestCancellation evaluates a cancellation of orderID and applies it when approved.
//
// An approved cancellation is written only if the order still has the status
// it was evaluated against. When that write loses a race the order is reloaded
// and evaluated again, up to maxAttempts times; after that ErrConcurrentUpdate
// is returned and nothing is persisted.
func (s *RequestService) RequestCancellation(ctx context.Context, principal *models.Principal, orderID uuid.UUID, in CancellationInput, actor audit.Actor) (*CancellationResult, error) {
	if err := s.checkLimit(ctx, principal, ratelimit.KindCancellation); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		order, err := s.loadOrder(ctx, principal, orderID)
		if err != nil {
			return nil, err
		}
		if order.Status == engine.OrderStatusCancelled {
			return nil, services.ErrAlreadyCancelled
		}

		p, err := s.policies.ActivePolicy(ctx, order.BusinessID)
		if err != nil {
			return nil, err
		}

		snapshot := order.Snapshot()
		d := s.evaluator.EvaluateCancellation(snapshot, p, in.Reason)
		req := models.NewCancellationRequest(order, in.Reason, d)
		req.SetRequester(principal.UserID)
		next, apply := engine.ApplyCancellation(snapshot, d)

		err = services.WithTransaction(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) error {
			if err := s.checkLimit(ctx, principal, ratelimit.KindCancellation); err != nil {
				return err
			}
			if apply {
				ok, err := s.orderRepo.UpdateStatusIfCurrent(ctx, order.ID, order.Status, next)
				if err != nil {
					return services.ErrDatabaseError.Wrap(err)
				}
				if !ok {
					return errStale
				}
			}
			if err := s.cancelRepo.Create(ctx, req); err != nil {
				return services.ErrDatabaseError.Wrap(err)
			}
			return nil
		})
		if errors.Is(err, errStale) {
			s.logger.Warn("order changed during cancellation, re-evaluating",
				zap.String("order_id", order.ID.String()),
				zap.String("evaluated_status", string(order.Status)),
				zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, err
		}

		result := &CancellationResult{Request: req, Decision: d, OrderStatus: order.Status, Applied: apply}
		s.logger.Info("cancellation decided",
			zap.String("order_id", order.ID.String()),
			zap.String("business_id", order.BusinessID.String()),
			zap.String("status", string(d.Status)),
			zap.String("rule", string(d.Rule)),
			zap.Bool("applied", apply))

		if err := s.auditor.LogCancellationDecision(req, d, actor); err != nil {
			s.logger.Warn("failed to audit cancellation decision", zap.String("request_id", req.ID.String()), zap.Error(err))
		}
		if apply {
			if err := s.auditor.LogOrderCancelled(order, order.Status, actor); err != nil {
				s.logger.Warn("failed to audit order cancellation", zap.String("order_id", order.ID.String()), zap.Error(err))
			}
			result.OrderStatus = next
		}
		return result, nil
	}

	s.logger.Error("cancellation gave up after concurrent updates",
		zap.String("order_id", orderID.String()),
		zap.Int("attempts", s.maxAttempts))
	return nil, services.ErrConcurrentUpdate.Wrap(nil).WithDetail("attempts", s.maxAttempts)
}

// RequestRefund evaluates a refund of orderID and records the decision.
// The order itself is never modified.
func (s *RequestService) RequestRefund(ctx context.Context, principal *models.Principal, orderID uuid.UUID, in RefundInput, actor audit.Actor) (*RefundResult, error) {
	if in.RequestedAmount < 0 {
		return nil, services.ErrInvalidInput.Wrap(money.ErrNegative).WithDetail("field", "requested_amount")
	}
	if err := s.checkLimit(ctx, principal, ratelimit.KindRefund); err != nil {
		return nil, err
	}

	order, err := s.loadOrder(ctx, principal, orderID)
	if err != nil {
		return nil, err
	}

	p, err := s.policies.ActivePolicy(ctx, order.BusinessID)
	if err != nil {
		return nil, err
	}

	d := s.evaluator.EvaluateRefund(order.Snapshot(), p, in.Reason, in.RequestedAmount, in.ItemIDs)
	req := models.NewRefundRequest(order, in.Reason, in.RequestedAmount, in.ItemIDs, d)
	req.SetRequester(principal.UserID)

	err = services.WithTransaction(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) error {
		if err := s.checkLimit(ctx, principal, ratelimit.KindRefund); err != nil {
			return err
		}
		if err := s.refundRepo.Create(ctx, req); err != nil {
			return services.ErrDatabaseError.Wrap(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("refund decided",
		zap.String("order_id", order.ID.String()),
		zap.String("business_id", order.BusinessID.String()),
		zap.String("status", string(d.Status)),
		zap.String("rule", string(d.Rule)))

	if err := s.auditor.LogRefundDecision(req, d, actor); err != nil {
		s.logger.Warn("failed to audit refund decision", zap.String("request_id", req.ID.String()), zap.Error(err))
	}
	return &RefundResult{Request: req, Decision: d}, nil
}

// checkLimit applies the quota of kind to customers. Staff requests are not limited.
// Requests check once before any work and again inside the write transaction,
// where the limiter holds a per-requester lock until commit.
func (s *RequestService) checkLimit(ctx context.Context, principal *models.Principal, kind ratelimit.Kind) error {
	if principal == nil {
		return services.ErrUnauthorized
	}
	if s.limiter == nil || principal.Role != models.RoleCustomer {
		return nil
	}
	result, err := s.limiter.CheckLimit(ctx, ratelimit.LimitRequest{Kind: kind, UserID: principal.UserID})
	if err != nil {
		return services.ErrDatabaseError.Wrap(err)
	}
	if !result.Allowed {
		return services.ErrRateLimited.Wrap(nil).
			WithDetail("kind", string(kind)).
			WithDetail("limit", result.Limit).
			WithDetail("window", string(result.Window)).
			WithDetail("reset_at", result.ResetAt)
	}
	return nil
}

// GetCancellation returns one cancellation request the principal may see
func (s *RequestService) GetCancellation(ctx context.Context, principal *models.Principal, id uuid.UUID) (*models.CancellationRequest, error) {
	req, err := s.cancelRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err)
	}
	if !canSeeRequest(principal, req.BusinessID, req.RequestedBy) {
		return nil, services.ErrForbidden
	}
	return req, nil
}

// GetRefund returns one refund request the principal may see
func (s *RequestService) GetRefund(ctx context.Context, principal *models.Principal, id uuid.UUID) (*models.RefundRequest, error) {
	req, err := s.refundRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err)
	}
	if !canSeeRequest(principal, req.BusinessID, req.RequestedBy) {
		return nil, services.ErrForbidden
	}
	return req, nil
}

// ListCancellations lists cancellation requests of a business, optionally by decision status
func (s *RequestService) ListCancellations(ctx context.Context, principal *models.Principal, businessID *uuid.UUID, status *engine.DecisionStatus, opts repositories.ListOptions) ([]*models.CancellationRequest, error) {
	target, err := listScope(principal, businessID, status)
	if err != nil {
		return nil, err
	}
	reqs, err := s.cancelRepo.ListByBusiness(ctx, target, status, opts)
	if err != nil {
		return nil, services.ErrDatabaseError.Wrap(err)
	}
	if reqs == nil {
		reqs = []*models.CancellationRequest{}
	}
	return reqs, nil
}

// ListRefunds lists refund requests of a business, optionally by decision status
func (s *RequestService) ListRefunds(ctx context.Context, principal *models.Principal, businessID *uuid.UUID, status *engine.DecisionStatus, opts repositories.ListOptions) ([]*models.RefundRequest, error) {
	target, err := listScope(principal, businessID, status)
	if err != nil {
		return nil, err
	}
	reqs, err := s.refundRepo.ListByBusiness(ctx, target, status, opts)
	if err != nil {
		return nil, services.ErrDatabaseError.Wrap(err)
	}
	if reqs == nil {
		reqs = []*models.RefundRequest{}
	}
	return reqs, nil
}

// loadOrder fetches the order and checks the principal may file requests against it
func (s *RequestService) loadOrder(ctx context.Context, principal *models.Principal, orderID uuid.UUID) (*models.Order, error) {
	if principal == nil {
		return nil, services.ErrUnauthorized
	}
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrOrderNotFound
		}
		return nil, services.ErrDatabaseError.Wrap(err)
	}
	if !principal.CanAccessOrder(order) {
		if principal.Role == models.RoleBusiness {
			return nil, services.ErrBusinessMismatch
		}
		return nil, services.ErrForbidden
	}
	return order, nil
}

func notFoundOr(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return services.ErrRequestNotFound
	}
	return services.ErrDatabaseError.Wrap(err)
}

func canSeeRequest(principal *models.Principal, businessID uuid.UUID, requestedBy *uuid.UUID) bool {
	if principal == nil {
		return false
	}
	if principal.Role == models.RoleCustomer {
		return requestedBy != nil && *requestedBy == principal.UserID
	}
	return principal.CanAccessBusiness(businessID)
}

// listScope picks the business a listing covers. Only admins and business users list.
func listScope(principal *models.Principal, businessID *uuid.UUID, status *engine.DecisionStatus) (uuid.UUID, error) {
	if status != nil && !status.Valid() {
		return uuid.Nil, services.ErrInvalidInput.Wrap(errors.New("unknown status")).WithDetail("status", string(*status))
	}
	if principal == nil || !principal.CanManagePolicies() {
		return uuid.Nil, services.ErrForbidden
	}
	if principal.IsAdmin() {
		if businessID == nil {
			return uuid.Nil, services.ErrInvalidInput.Wrap(errors.New("business_id is required")).WithDetail("field", "business_id")
		}
		return *businessID, nil
	}
	if businessID != nil && *businessID != *principal.BusinessID {
		return uuid.Nil, services.ErrBusinessMismatch
	}
	return *principal.BusinessID, nil
}
