package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/butekinselcuk/sepettakip/internal/history"
	engine "github.com/butekinselcuk/sepettakip/internal/policy"
	"github.com/butekinselcuk/sepettakip/models"
	"github.com/butekinselcuk/sepettakip/repositories"
	"github.com/butekinselcuk/sepettakip/services/audit"
)

func TestHandleRecent(t *testing.T) {
	logger := zap.NewNop()
	admin := &models.Principal{UserID: uuid.New(), Role: models.RoleAdmin}
	stats := audit.Stats{BufferSize: 100, WorkerCount: 2, Started: true, History: history.Stats{Size: 1, MaxSize: 500, Total: 1}}

	t.Run("default limit", func(t *testing.T) {
		reader := new(MockAuditReader)
		handler := NewAuditHandler(reader, logger)

		entries := []history.Entry{{
			Kind:       history.KindCancellation,
			OrderID:    uuid.New(),
			BusinessID: uuid.New(),
			Decision:   engine.Decision{Status: engine.StatusRejected, Rule: engine.RuleStatusRule, AutoProcessed: true},
		}}
		reader.On("Recent", defaultRecentLimit).Return(entries)
		reader.On("GetStats").Return(stats)

		w := httptest.NewRecorder()
		handler.HandleRecent(w, newRequest(t, http.MethodGet, "/api/v1/audit/recent", "", admin, nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var got RecentResponse
		decodeData(t, w, &got)
		assert.Len(t, got.Entries, 1)
		assert.Equal(t, engine.StatusRejected, got.Entries[0].Decision.Status)
		assert.Equal(t, 500, got.Stats.History.MaxSize)
		reader.AssertExpectations(t)
	})

	t.Run("business filter", func(t *testing.T) {
		reader := new(MockAuditReader)
		handler := NewAuditHandler(reader, logger)
		businessID := uuid.New()

		reader.On("RecentForBusiness", businessID, 5).Return(nil)
		reader.On("GetStats").Return(stats)

		w := httptest.NewRecorder()
		handler.HandleRecent(w, newRequest(t, http.MethodGet, "/api/v1/audit/recent?limit=5&business_id="+businessID.String(), "", admin, nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var got RecentResponse
		decodeData(t, w, &got)
		assert.NotNil(t, got.Entries)
		assert.Empty(t, got.Entries)
		reader.AssertNotCalled(t, "Recent", mock.Anything)
	})

	t.Run("bad limit", func(t *testing.T) {
		reader := new(MockAuditReader)
		handler := NewAuditHandler(reader, logger)

		w := httptest.NewRecorder()
		handler.HandleRecent(w, newRequest(t, http.MethodGet, "/api/v1/audit/recent?limit=many", "", admin, nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleListLogs(t *testing.T) {
	logger := zap.NewNop()
	businessID := uuid.New()

	t.Run("business user sees own logs", func(t *testing.T) {
		reader := new(MockAuditReader)
		handler := NewAuditHandler(reader, logger)
		principal := businessPrincipal(businessID)

		logs := []*models.AuditLog{models.NewAuditLog(businessID, models.AuditActionPolicyCreated, "policy")}
		reader.On("ListByBusiness", mock.Anything, businessID, repositories.ListOptions{Limit: 10}).Return(logs, nil)

		w := httptest.NewRecorder()
		handler.HandleListLogs(w, newRequest(t, http.MethodGet, "/api/v1/audit/logs?limit=10", "", principal, nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var got []models.AuditLog
		decodeData(t, w, &got)
		assert.Len(t, got, 1)
		assert.Equal(t, models.AuditActionPolicyCreated, got[0].Action)
	})

	t.Run("business user other business", func(t *testing.T) {
		reader := new(MockAuditReader)
		handler := NewAuditHandler(reader, logger)

		w := httptest.NewRecorder()
		handler.HandleListLogs(w, newRequest(t, http.MethodGet, "/api/v1/audit/logs?business_id="+uuid.NewString(), "", businessPrincipal(businessID), nil))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("admin requires business_id", func(t *testing.T) {
		reader := new(MockAuditReader)
		handler := NewAuditHandler(reader, logger)
		admin := &models.Principal{UserID: uuid.New(), Role: models.RoleAdmin}

		w := httptest.NewRecorder()
		handler.HandleListLogs(w, newRequest(t, http.MethodGet, "/api/v1/audit/logs", "", admin, nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("admin with business_id", func(t *testing.T) {
		reader := new(MockAuditReader)
		handler := NewAuditHandler(reader, logger)
		admin := &models.Principal{UserID: uuid.New(), Role: models.RoleAdmin}

		reader.On("ListByBusiness", mock.Anything, businessID, repositories.ListOptions{}).Return(nil, nil)

		w := httptest.NewRecorder()
		handler.HandleListLogs(w, newRequest(t, http.MethodGet, "/api/v1/audit/logs?business_id="+businessID.String(), "", admin, nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"data":[]}`, w.Body.String())
	})

	t.Run("customer forbidden", func(t *testing.T) {
		reader := new(MockAuditReader)
		handler := NewAuditHandler(reader, logger)

		w := httptest.NewRecorder()
		handler.HandleListLogs(w, newRequest(t, http.MethodGet, "/api/v1/audit/logs", "", customerPrincipal(), nil))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		reader := new(MockAuditReader)
		handler := NewAuditHandler(reader, logger)

		w := httptest.NewRecorder()
		handler.HandleListLogs(w, newRequest(t, http.MethodGet, "/api/v1/audit/logs", "", nil, nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("repository error", func(t *testing.T) {
		reader := new(MockAuditReader)
		handler := NewAuditHandler(reader, logger)

		reader.On("ListByBusiness", mock.Anything, businessID, repositories.ListOptions{}).Return(nil, errors.New("db down"))

		w := httptest.NewRecorder()
		handler.HandleListLogs(w, newRequest(t, http.MethodGet, "/api/v1/audit/logs", "", businessPrincipal(businessID), nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "db down")
	})
}
