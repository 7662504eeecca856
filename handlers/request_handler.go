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
	"github.com/butekinselcuk/sepettakip/repositories"
	"github.com/butekinselcuk/sepettakip/services/audit"
	"github.com/butekinselcuk/sepettakip/services/requests"
	"github.com/butekinselcuk/sepettakip/utils"
)

// RequestService defines the request operations used by RequestHandler
type RequestService interface {
	RequestCancellation(ctx context.Context, principal *models.Principal, orderID uuid.UUID, in requests.CancellationInput, actor audit.Actor) (*requests.CancellationResult, error)
	RequestRefund(ctx context.Context, principal *models.Principal, orderID uuid.UUID, in requests.RefundInput, actor audit.Actor) (*requests.RefundResult, error)
	GetCancellation(ctx context.Context, principal *models.Principal, id uuid.UUID) (*models.CancellationRequest, error)
	GetRefund(ctx context.Context, principal *models.Principal, id uuid.UUID) (*models.RefundRequest, error)
	ListCancellations(ctx context.Context, principal *models.Principal, businessID *uuid.UUID, status *engine.DecisionStatus, opts repositories.ListOptions) ([]*models.CancellationRequest, error)
	ListRefunds(ctx context.Context, principal *models.Principal, businessID *uuid.UUID, status *engine.DecisionStatus, opts repositories.ListOptions) ([]*models.RefundRequest, error)
}

// RequestHandler handles cancellation and refund requests
type RequestHandler struct {
	service RequestService
	logger  *zap.Logger
}

// NewRequestHandler creates a new RequestHandler
func NewRequestHandler(service RequestService, logger *zap.Logger) *RequestHandler {
	return &RequestHandler{
		service: service,
		logger:  logger,
	}
}

// HandleRequestCancellation handles POST /api/v1/orders/{id}/cancellation
func (h *RequestHandler) HandleRequestCancellation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var in requests.CancellationInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.service.RequestCancellation(ctx, middleware.GetPrincipalFromContext(ctx), orderID, in, middleware.ActorFromRequest(r))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Debug("cancellation request handled",
		zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
		zap.String("order_id", orderID.String()),
		zap.String("status", string(result.Decision.Status)))
	_ = utils.WriteCreated(w, result)
}

// HandleRequestRefund handles POST /api/v1/orders/{id}/refund
func (h *RequestHandler) HandleRequestRefund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var in requests.RefundInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.service.RequestRefund(ctx, middleware.GetPrincipalFromContext(ctx), orderID, in, middleware.ActorFromRequest(r))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Debug("refund request handled",
		zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
		zap.String("order_id", orderID.String()),
		zap.String("status", string(result.Decision.Status)))
	_ = utils.WriteCreated(w, result)
}

// HandleGetCancellation handles GET /api/v1/cancellations/{id}
func (h *RequestHandler) HandleGetCancellation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	req, err := h.service.GetCancellation(r.Context(), middleware.GetPrincipalFromContext(r.Context()), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, req)
}

// HandleGetRefund handles GET /api/v1/refunds/{id}
func (h *RequestHandler) HandleGetRefund(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	req, err := h.service.GetRefund(r.Context(), middleware.GetPrincipalFromContext(r.Context()), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, req)
}

// HandleListCancellations handles GET /api/v1/cancellations
func (h *RequestHandler) HandleListCancellations(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	reqs, err := h.service.ListCancellations(r.Context(), middleware.GetPrincipalFromContext(r.Context()), q.businessID, q.status, q.opts)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, reqs)
}

// HandleListRefunds handles GET /api/v1/refunds
func (h *RequestHandler) HandleListRefunds(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	reqs, err := h.service.ListRefunds(r.Context(), middleware.GetPrincipalFromContext(r.Context()), q.businessID, q.status, q.opts)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, reqs)
}

func (h *RequestHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := utils.ParseUUID(chi.URLParam(r, "id"), "id")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return uuid.Nil, false
	}
	return id, true
}

type listQuery struct {
	businessID *uuid.UUID
	status     *engine.DecisionStatus
	opts       repositories.ListOptions
}

// parseListQuery reads business_id, status, limit and offset
func parseListQuery(r *http.Request) (listQuery, error) {
	var q listQuery
	var err error

	if q.businessID, err = utils.ParseOptionalUUID(r.URL.Query().Get("business_id"), "business_id"); err != nil {
		return q, err
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := engine.DecisionStatus(raw)
		q.status = &status
	}
	if q.opts.Limit, err = utils.QueryInt(r, "limit", 0); err != nil {
		return q, err
	}
	if q.opts.Offset, err = utils.QueryInt(r, "offset", 0); err != nil {
		return q, err
	}
	return q, nil
}
