package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	engine "github.com/butekinselcuk/sepettakip/internal/policy"
	"github.com/butekinselcuk/sepettakip/middleware"
	"github.com/butekinselcuk/sepettakip/models"
	"github.com/butekinselcuk/sepettakip/services/audit"
	"github.com/butekinselcuk/sepettakip/services/policy"
	"github.com/butekinselcuk/sepettakip/utils"
)

// PolicyService defines the interface for policy operations
type PolicyService interface {
	Get(ctx context.Context, principal *models.Principal, id uuid.UUID) (*models.BusinessPolicy, error)
	List(ctx context.Context, principal *models.Principal, businessID *uuid.UUID) ([]*models.BusinessPolicy, error)
	Create(ctx context.Context, principal *models.Principal, in policy.Input, actor audit.Actor) (*models.BusinessPolicy, error)
	Update(ctx context.Context, principal *models.Principal, id uuid.UUID, in policy.Input, actor audit.Actor) (*models.BusinessPolicy, error)
	Activate(ctx context.Context, principal *models.Principal, id uuid.UUID, actor audit.Actor) (*models.BusinessPolicy, error)
	Delete(ctx context.Context, principal *models.Principal, id uuid.UUID, actor audit.Actor) error
	Preview(ctx context.Context, principal *models.Principal, req policy.PreviewRequest) (engine.Decision, error)
}

// PolicyHandler handles policy-related HTTP requests
type PolicyHandler struct {
	service PolicyService
	logger  *zap.Logger
}

// NewPolicyHandler creates a new PolicyHandler
func NewPolicyHandler(service PolicyService, logger *zap.Logger) *PolicyHandler {
	return &PolicyHandler{
		service: service,
		logger:  logger,
	}
}

// HandleListPolicies handles GET /api/v1/policies
func (h *PolicyHandler) HandleListPolicies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	businessID, err := utils.ParseOptionalUUID(r.URL.Query().Get("business_id"), "business_id")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	policies, err := h.service.List(ctx, middleware.GetPrincipalFromContext(ctx), businessID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, policies)
}

// HandleGetPolicy handles GET /api/v1/policies/{id}
func (h *PolicyHandler) HandleGetPolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	p, err := h.service.Get(ctx, middleware.GetPrincipalFromContext(ctx), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, p)
}

// HandleCreatePolicy handles POST /api/v1/policies
func (h *PolicyHandler) HandleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in policy.Input
	if err := utils.DecodeJSON(r, &in); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	p, err := h.service.Create(ctx, middleware.GetPrincipalFromContext(ctx), in, middleware.ActorFromRequest(r))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("policy created",
		zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
		zap.String("policy_id", p.ID.String()))
	_ = utils.WriteCreated(w, p)
}

// HandleUpdatePolicy handles PUT /api/v1/policies/{id}
func (h *PolicyHandler) HandleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var in policy.Input
	if err := utils.DecodeJSON(r, &in); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	p, err := h.service.Update(ctx, middleware.GetPrincipalFromContext(ctx), id, in, middleware.ActorFromRequest(r))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, p)
}

// HandleActivatePolicy handles POST /api/v1/policies/{id}/activate
func (h *PolicyHandler) HandleActivatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	p, err := h.service.Activate(ctx, middleware.GetPrincipalFromContext(ctx), id, middleware.ActorFromRequest(r))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, p)
}

// HandleDeletePolicy handles DELETE /api/v1/policies/{id}
func (h *PolicyHandler) HandleDeletePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, middleware.GetPrincipalFromContext(ctx), id, middleware.ActorFromRequest(r)); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	utils.WriteNoContent(w)
}

// HandlePreviewPolicy handles POST /api/v1/policies/preview
func (h *PolicyHandler) HandlePreviewPolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req policy.PreviewRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	decision, err := h.service.Preview(ctx, middleware.GetPrincipalFromContext(ctx), req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, decision)
}

func (h *PolicyHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := utils.ParseUUID(chi.URLParam(r, "id"), "id")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return uuid.Nil, false
	}
	return id, true
}
