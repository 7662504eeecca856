package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/butekinselcuk/sepettakip/internal/money"
	engine "github.com/butekinselcuk/sepettakip/internal/policy"
	"github.com/butekinselcuk/sepettakip/models"
	"github.com/butekinselcuk/sepettakip/repositories"
	"github.com/butekinselcuk/sepettakip/services"
	"github.com/butekinselcuk/sepettakip/services/audit"
)

// Auditor records policy lifecycle events
type Auditor interface {
	LogPolicyChange(p *models.BusinessPolicy, action models.AuditAction, actor audit.Actor) error
	LogPolicyRejected(p *models.BusinessPolicy, reason error) error
}

// Input is the editable content of a policy.
// BusinessID is required for admins and must match the caller's business otherwise.
type Input struct {
	BusinessID          *uuid.UUID      `json:"business_id,omitempty"`
	AutoApproveTimeline *int            `json:"auto_approve_timeline,omitempty" validate:"omitempty,min=0"`
	TimeLimit           *int            `json:"time_limit,omitempty" validate:"omitempty,min=0"`
	CancellationFees    json.RawMessage `json:"cancellation_fees,omitempty"`
	OrderStatusRules    json.RawMessage `json:"order_status_rules,omitempty"`
	ProductRules        json.RawMessage `json:"product_rules,omitempty"`
}

func (in Input) document(businessID uuid.UUID) engine.Document {
	return engine.Document{
		BusinessID:          businessID,
		AutoApproveTimeline: in.AutoApproveTimeline,
		TimeLimit:           in.TimeLimit,
		CancellationFees:    in.CancellationFees,
		OrderStatusRules:    in.OrderStatusRules,
		ProductRules:        in.ProductRules,
	}
}

// PreviewKind selects which evaluator a preview runs
type PreviewKind string

const (
	PreviewCancellation PreviewKind = "cancellation"
	PreviewRefund       PreviewKind = "refund"
)

// PreviewRequest evaluates a candidate policy against a stored order without persisting anything
type PreviewRequest struct {
	Policy          Input        `json:"policy"`
	OrderID         uuid.UUID    `json:"order_id" validate:"required"`
	Kind            PreviewKind  `json:"kind" validate:"required,oneof=cancellation refund"`
	Reason          string       `json:"reason"`
	RequestedAmount money.Amount `json:"requested_amount"`
	ItemIDs         []uuid.UUID  `json:"item_ids"`
}

// PolicyService handles policy loading and management
type PolicyService struct {
	policyRepo repositories.PolicyRepository
	orderRepo  repositories.OrderRepository
	txMgr      repositories.TransactionManager
	evaluator  *engine.Evaluator
	auditor    Auditor
	logger     *zap.Logger
}

// NewPolicyService creates a new PolicyService instance
func NewPolicyService(
	policyRepo repositories.PolicyRepository,
	orderRepo repositories.OrderRepository,
	txMgr repositories.TransactionManager,
	evaluator *engine.Evaluator,
	auditor Auditor,
	logger *zap.Logger,
) *PolicyService {
	return &PolicyService{
		policyRepo: policyRepo,
		orderRepo:  orderRepo,
		txMgr:      txMgr,
		evaluator:  evaluator,
		auditor:    auditor,
		logger:     logger,
	}
}

// ActivePolicy loads and decodes the active policy of a business.
// A missing or malformed policy yields (nil, nil); evaluators treat that as
// "no policy configured". Only storage failures are returned.
func (s *PolicyService) ActivePolicy(ctx context.Context, businessID uuid.UUID) (*engine.Policy, error) {
	row, err := s.policyRepo.GetActiveByBusinessID(ctx, businessID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil
		}
		return nil, services.ErrDatabaseError.Wrap(err)
	}

	p, err := engine.Decode(row.Document())
	if err != nil {
		s.logger.Error("active policy is malformed, treating as absent",
			zap.String("policy_id", row.ID.String()),
			zap.String("business_id", businessID.String()),
			zap.Error(err))
		if auditErr := s.auditor.LogPolicyRejected(row, err); auditErr != nil {
			s.logger.Warn("failed to audit rejected policy", zap.Error(auditErr))
		}
		return nil, nil
	}

	return p, nil
}

// Get returns one policy the principal may see
func (s *PolicyService) Get(ctx context.Context, principal *models.Principal, id uuid.UUID) (*models.BusinessPolicy, error) {
	row, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(principal, row.BusinessID); err != nil {
		return nil, err
	}
	return row, nil
}

// List returns every policy of a business, newest first
func (s *PolicyService) List(ctx context.Context, principal *models.Principal, businessID *uuid.UUID) ([]*models.BusinessPolicy, error) {
	target, err := resolveBusiness(principal, businessID)
	if err != nil {
		return nil, err
	}

	rows, err := s.policyRepo.ListByBusinessID(ctx, target)
	if err != nil {
		return nil, services.ErrDatabaseError.Wrap(err)
	}
	if rows == nil {
		rows = []*models.BusinessPolicy{}
	}
	return rows, nil
}

// Create validates and stores a new, inactive policy
func (s *PolicyService) Create(ctx context.Context, principal *models.Principal, in Input, actor audit.Actor) (*models.BusinessPolicy, error) {
	businessID, err := resolveBusiness(principal, in.BusinessID)
	if err != nil {
		return nil, err
	}

	doc, err := canonical(in.document(businessID))
	if err != nil {
		return nil, err
	}

	row := models.NewBusinessPolicy(doc)
	if err := s.policyRepo.Create(ctx, row); err != nil {
		return nil, services.ErrDatabaseError.Wrap(err)
	}

	s.logger.Info("policy created",
		zap.String("policy_id", row.ID.String()),
		zap.String("business_id", businessID.String()))
	s.audit(row, models.AuditActionPolicyCreated, actor)

	return row, nil
}

// Update validates and replaces the rules of an existing policy
func (s *PolicyService) Update(ctx context.Context, principal *models.Principal, id uuid.UUID, in Input, actor audit.Actor) (*models.BusinessPolicy, error) {
	row, err := s.Get(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if in.BusinessID != nil && *in.BusinessID != row.BusinessID {
		return nil, services.ErrBusinessMismatch
	}

	doc, err := canonical(in.document(row.BusinessID))
	if err != nil {
		return nil, err
	}

	row.ApplyDocument(doc)
	if err := s.policyRepo.Update(ctx, row); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrPolicyNotFound
		}
		return nil, services.ErrDatabaseError.Wrap(err)
	}

	s.logger.Info("policy updated", zap.String("policy_id", row.ID.String()))
	s.audit(row, models.AuditActionPolicyUpdated, actor)

	return row, nil
}

// Activate makes id the only active policy of its business
func (s *PolicyService) Activate(ctx context.Context, principal *models.Principal, id uuid.UUID, actor audit.Actor) (*models.BusinessPolicy, error) {
	row, err := services.WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) (*models.BusinessPolicy, error) {
		row, err := s.Get(ctx, principal, id)
		if err != nil {
			return nil, err
		}

		// stored rows are re-validated before they can drive evaluations
		if _, err := engine.Decode(row.Document()); err != nil {
			return nil, services.ErrInvalidPolicyConfig.Wrap(err).WithDetail("error", err.Error())
		}

		if err := s.policyRepo.DeactivateAll(ctx, row.BusinessID); err != nil {
			return nil, services.ErrDatabaseError.Wrap(err)
		}
		if err := s.policyRepo.SetActive(ctx, row.ID); err != nil {
			switch {
			case errors.Is(err, repositories.ErrActivePolicyExists):
				return nil, services.ErrActivePolicy.Wrap(err)
			case errors.Is(err, repositories.ErrNotFound):
				return nil, services.ErrPolicyNotFound
			}
			return nil, services.ErrDatabaseError.Wrap(err)
		}

		row.IsActive = true
		return row, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("policy activated",
		zap.String("policy_id", row.ID.String()),
		zap.String("business_id", row.BusinessID.String()))
	s.audit(row, models.AuditActionPolicyActivated, actor)

	return row, nil
}

// Delete removes a policy. Deleting the active policy leaves the business without one.
func (s *PolicyService) Delete(ctx context.Context, principal *models.Principal, id uuid.UUID, actor audit.Actor) error {
	row, err := s.Get(ctx, principal, id)
	if err != nil {
		return err
	}

	if err := s.policyRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return services.ErrPolicyNotFound
		}
		return services.ErrDatabaseError.Wrap(err)
	}

	s.logger.Info("policy deleted", zap.String("policy_id", id.String()))
	s.audit(row, models.AuditActionPolicyDeleted, actor)
	return nil
}

// Preview evaluates a candidate policy against a stored order. Nothing is written.
func (s *PolicyService) Preview(ctx context.Context, principal *models.Principal, req PreviewRequest) (engine.Decision, error) {
	order, err := s.orderRepo.GetByID(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return engine.Decision{}, services.ErrOrderNotFound
		}
		return engine.Decision{}, services.ErrDatabaseError.Wrap(err)
	}
	if err := authorize(principal, order.BusinessID); err != nil {
		return engine.Decision{}, err
	}

	doc := req.Policy.document(order.BusinessID)
	doc.IsActive = true
	candidate, err := engine.Decode(doc)
	if err != nil {
		return engine.Decision{}, services.ErrInvalidPolicyConfig.Wrap(err).WithDetail("error", err.Error())
	}

	switch req.Kind {
	case PreviewCancellation:
		return s.evaluator.EvaluateCancellation(order.Snapshot(), candidate, req.Reason), nil
	case PreviewRefund:
		return s.evaluator.EvaluateRefund(order.Snapshot(), candidate, req.Reason, req.RequestedAmount, req.ItemIDs), nil
	}
	return engine.Decision{}, services.ErrInvalidInput.Wrap(fmt.Errorf("unknown preview kind %q", req.Kind))
}

func (s *PolicyService) load(ctx context.Context, id uuid.UUID) (*models.BusinessPolicy, error) {
	row, err := s.policyRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrPolicyNotFound
		}
		return nil, services.ErrDatabaseError.Wrap(err)
	}
	return row, nil
}

func (s *PolicyService) audit(row *models.BusinessPolicy, action models.AuditAction, actor audit.Actor) {
	if err := s.auditor.LogPolicyChange(row, action, actor); err != nil {
		s.logger.Warn("failed to audit policy change",
			zap.String("policy_id", row.ID.String()),
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

// canonical validates doc and returns it re-encoded, so stored rule sets are normalized
func canonical(doc engine.Document) (engine.Document, error) {
	p, err := engine.Decode(doc)
	if err != nil {
		return engine.Document{}, services.ErrInvalidPolicyConfig.Wrap(err).WithDetail("error", err.Error())
	}
	out, err := engine.Encode(p)
	if err != nil {
		return engine.Document{}, services.WrapInternal("failed to encode policy", err)
	}
	return out, nil
}

// authorize checks the principal may manage policies of businessID
func authorize(principal *models.Principal, businessID uuid.UUID) error {
	if principal == nil || !principal.CanManagePolicies() {
		return services.ErrForbidden
	}
	if !principal.CanAccessBusiness(businessID) {
		return services.ErrBusinessMismatch
	}
	return nil
}

// resolveBusiness picks the business a write targets
func resolveBusiness(principal *models.Principal, requested *uuid.UUID) (uuid.UUID, error) {
	if principal == nil || !principal.CanManagePolicies() {
		return uuid.Nil, services.ErrForbidden
	}
	if principal.IsAdmin() {
		if requested == nil || *requested == uuid.Nil {
			return uuid.Nil, services.ErrInvalidInput.Wrap(errors.New("business_id is required")).WithDetail("field", "business_id")
		}
		return *requested, nil
	}
	if requested != nil && *requested != *principal.BusinessID {
		return uuid.Nil, services.ErrBusinessMismatch
	}
	return *principal.BusinessID, nil
}
