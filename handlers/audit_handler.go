package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/butekinselcuk/sepettakip/internal/history"
	"github.com/butekinselcuk/sepettakip/middleware"
	"github.com/butekinselcuk/sepettakip/models"
	"github.com/butekinselcuk/sepettakip/repositories"
	"github.com/butekinselcuk/sepettakip/services/audit"
	"github.com/butekinselcuk/sepettakip/utils"
)

// defaultRecentLimit is used when GET /audit/recent has no limit
const defaultRecentLimit = 50

// AuditReader defines the read side of the audit service
type AuditReader interface {
	Recent(n int) []history.Entry
	RecentForBusiness(businessID uuid.UUID, n int) []history.Entry
	ListByBusiness(ctx context.Context, businessID uuid.UUID, opts repositories.ListOptions) ([]*models.AuditLog, error)
	GetStats() audit.Stats
}

// RecentResponse is the body of GET /api/v1/audit/recent
type RecentResponse struct {
	Entries []history.Entry `json:"entries"`
	Stats   audit.Stats     `json:"stats"`
}

// AuditHandler serves recent decisions and persisted audit logs
type AuditHandler struct {
	audit  AuditReader
	logger *zap.Logger
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(audit AuditReader, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		audit:  audit,
		logger: logger,
	}
}

// HandleRecent handles GET /api/v1/audit/recent (admin only)
func (h *AuditHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	limit, err := utils.QueryInt(r, "limit", defaultRecentLimit)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	businessID, err := utils.ParseOptionalUUID(r.URL.Query().Get("business_id"), "business_id")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	var entries []history.Entry
	if businessID != nil {
		entries = h.audit.RecentForBusiness(*businessID, limit)
	} else {
		entries = h.audit.Recent(limit)
	}
	if entries == nil {
		entries = []history.Entry{}
	}

	_ = utils.WriteOK(w, RecentResponse{Entries: entries, Stats: h.audit.GetStats()})
}

// HandleListLogs handles GET /api/v1/audit/logs.
// Business users see their own business; admins pass business_id.
func (h *AuditHandler) HandleListLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := middleware.GetPrincipalFromContext(ctx)
	if principal == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	q, err := parseListQuery(r)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	var businessID uuid.UUID
	switch {
	case principal.IsAdmin():
		if q.businessID == nil {
			_ = utils.WriteBadRequest(w, "business_id is required", nil)
			return
		}
		businessID = *q.businessID
	case principal.CanManagePolicies():
		businessID = *principal.BusinessID
		if q.businessID != nil && *q.businessID != businessID {
			_ = utils.WriteForbidden(w, "resource belongs to another business")
			return
		}
	default:
		_ = utils.WriteForbidden(w, "")
		return
	}

	logs, err := h.audit.ListByBusiness(ctx, businessID, q.opts)
	if err != nil {
		h.logger.Error("failed to list audit logs",
			zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
			zap.String("business_id", businessID.String()),
			zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to retrieve audit logs")
		return
	}
	if logs == nil {
		logs = []*models.AuditLog{}
	}
	_ = utils.WriteOK(w, logs)
}
