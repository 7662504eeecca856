package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/butekinselcuk/sepettakip/internal/money"
	engine "github.com/butekinselcuk/sepettakip/internal/policy"
	"github.com/butekinselcuk/sepettakip/models"
	"github.com/butekinselcuk/sepettakip/repositories"
	"github.com/butekinselcuk/sepettakip/services"
	"github.com/butekinselcuk/sepettakip/services/requests"
)

func customerPrincipal() *models.Principal {
	return &models.Principal{UserID: uuid.New(), Role: models.RoleCustomer}
}

func TestHandleRequestCancellation(t *testing.T) {
	logger := zap.NewNop()
	orderID := uuid.New()
	params := map[string]string{"id": orderID.String()}
	target := "/api/v1/orders/" + orderID.String() + "/cancellation"

	t.Run("auto approved", func(t *testing.T) {
		svc := new(MockRequestService)
		handler := NewRequestHandler(svc, logger)
		principal := customerPrincipal()

		decision := engine.Decision{
			AutoProcessed: true,
			Status:        engine.StatusAutoApproved,
			Rule:          engine.RuleAutoApproveWindow,
			Message:       "within auto-approve window",
			EvaluatedAt:   time.Now().UTC(),
		}
		order := &models.Order{ID: orderID, BusinessID: uuid.New(), Status: engine.OrderStatusConfirmed}
		result := &requests.CancellationResult{
			Request:     models.NewCancellationRequest(order, "changed my mind", decision),
			Decision:    decision,
			OrderStatus: engine.OrderStatusCancelled,
			Applied:     true,
		}
		svc.On("RequestCancellation", mock.Anything, principal, orderID,
			requests.CancellationInput{Reason: "changed my mind"}, mock.Anything).Return(result, nil)

		w := httptest.NewRecorder()
		handler.HandleRequestCancellation(w, newRequest(t, http.MethodPost, target, `{"reason":"changed my mind"}`, principal, params))

		assert.Equal(t, http.StatusCreated, w.Code)
		var got map[string]interface{}
		decodeData(t, w, &got)
		assert.Equal(t, true, got["applied"])
		assert.Equal(t, "CANCELLED", got["order_status"])
		assert.Equal(t, "AUTO_APPROVED", got["decision"].(map[string]interface{})["status"])
		svc.AssertExpectations(t)
	})

	t.Run("already cancelled", func(t *testing.T) {
		svc := new(MockRequestService)
		handler := NewRequestHandler(svc, logger)
		principal := customerPrincipal()

		svc.On("RequestCancellation", mock.Anything, principal, orderID, mock.Anything, mock.Anything).
			Return(nil, services.ErrAlreadyCancelled)

		w := httptest.NewRecorder()
		handler.HandleRequestCancellation(w, newRequest(t, http.MethodPost, target, `{}`, principal, params))

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("order not found", func(t *testing.T) {
		svc := new(MockRequestService)
		handler := NewRequestHandler(svc, logger)
		principal := customerPrincipal()

		svc.On("RequestCancellation", mock.Anything, principal, orderID, mock.Anything, mock.Anything).
			Return(nil, services.ErrOrderNotFound)

		w := httptest.NewRecorder()
		handler.HandleRequestCancellation(w, newRequest(t, http.MethodPost, target, `{"reason":""}`, principal, params))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid order id", func(t *testing.T) {
		svc := new(MockRequestService)
		handler := NewRequestHandler(svc, logger)

		w := httptest.NewRecorder()
		handler.HandleRequestCancellation(w, newRequest(t, http.MethodPost, "/api/v1/orders/x/cancellation", `{}`, customerPrincipal(), map[string]string{"id": "x"}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		svc := new(MockRequestService)
		handler := NewRequestHandler(svc, logger)

		w := httptest.NewRecorder()
		handler.HandleRequestCancellation(w, newRequest(t, http.MethodPost, target, `{"reason":`, customerPrincipal(), params))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "RequestCancellation", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestHandleRequestRefund(t *testing.T) {
	logger := zap.NewNop()
	orderID := uuid.New()
	params := map[string]string{"id": orderID.String()}
	target := "/api/v1/orders/" + orderID.String() + "/refund"

	t.Run("fast path", func(t *testing.T) {
		svc := new(MockRequestService)
		handler := NewRequestHandler(svc, logger)
		principal := customerPrincipal()

		amount := money.MustParse("25.00")
		decision := engine.Decision{
			AutoProcessed:  true,
			Status:         engine.StatusAutoApproved,
			ApprovedAmount: &amount,
			Rule:           engine.RuleReasonFastPath,
			EvaluatedAt:    time.Now().UTC(),
		}
		order := &models.Order{ID: orderID, BusinessID: uuid.New()}
		result := &requests.RefundResult{
			Request:  models.NewRefundRequest(order, engine.ReasonDamagedProduct, amount, nil, decision),
			Decision: decision,
		}
		svc.On("RequestRefund", mock.Anything, principal, orderID, mock.MatchedBy(func(in requests.RefundInput) bool {
			return in.Reason == engine.ReasonDamagedProduct && in.RequestedAmount == amount
		}), mock.Anything).Return(result, nil)

		w := httptest.NewRecorder()
		handler.HandleRequestRefund(w, newRequest(t, http.MethodPost, target, `{"reason":"DAMAGED_PRODUCT","requested_amount":"25.00"}`, principal, params))

		assert.Equal(t, http.StatusCreated, w.Code)
		var got map[string]interface{}
		decodeData(t, w, &got)
		d := got["decision"].(map[string]interface{})
		assert.Equal(t, "REASON_FAST_PATH", d["rule"])
		assert.Equal(t, float64(25), d["approvedAmount"])
		svc.AssertExpectations(t)
	})

	t.Run("missing reason", func(t *testing.T) {
		svc := new(MockRequestService)
		handler := NewRequestHandler(svc, logger)

		w := httptest.NewRecorder()
		handler.HandleRequestRefund(w, newRequest(t, http.MethodPost, target, `{"requested_amount":10}`, customerPrincipal(), params))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decodeError(t, w).Details, "reason")
	})

	t.Run("invalid amount", func(t *testing.T) {
		svc := new(MockRequestService)
		handler := NewRequestHandler(svc, logger)

		w := httptest.NewRecorder()
		handler.HandleRequestRefund(w, newRequest(t, http.MethodPost, target, `{"reason":"OTHER","requested_amount":"ten"}`, customerPrincipal(), params))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("forbidden", func(t *testing.T) {
		svc := new(MockRequestService)
		handler := NewRequestHandler(svc, logger)
		principal := customerPrincipal()

		svc.On("RequestRefund", mock.Anything, principal, orderID, mock.Anything, mock.Anything).Return(nil, services.ErrForbidden)

		w := httptest.NewRecorder()
		handler.HandleRequestRefund(w, newRequest(t, http.MethodPost, target, `{"reason":"OTHER","requested_amount":5}`, principal, params))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestHandleGetRequests(t *testing.T) {
	logger := zap.NewNop()
	principal := customerPrincipal()

	t.Run("cancellation", func(t *testing.T) {
		svc := new(MockRequestService)
		handler := NewRequestHandler(svc, logger)
		req := &models.CancellationRequest{ID: uuid.New(), Status: engine.StatusPending, Rule: engine.RuleFeeWindow}

		svc.On("GetCancellation", mock.Anything, principal, req.ID).Return(req, nil)

		w := httptest.NewRecorder()
		handler.HandleGetCancellation(w, newRequest(t, http.MethodGet, "/api/v1/cancellations/"+req.ID.String(), "", principal, map[string]string{"id": req.ID.String()}))

		assert.Equal(t, http.StatusOK, w.Code)
		var got models.CancellationRequest
		decodeData(t, w, &got)
		assert.Equal(t, req.ID, got.ID)
		assert.Equal(t, engine.StatusPending, got.Status)
	})

	t.Run("refund not found", func(t *testing.T) {
		svc := new(MockRequestService)
		handler := NewRequestHandler(svc, logger)
		id := uuid.New()

		svc.On("GetRefund", mock.Anything, principal, id).Return(nil, services.ErrRequestNotFound)

		w := httptest.NewRecorder()
		handler.HandleGetRefund(w, newRequest(t, http.MethodGet, "/api/v1/refunds/"+id.String(), "", principal, map[string]string{"id": id.String()}))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandleListRequests(t *testing.T) {
	logger := zap.NewNop()
	businessID := uuid.New()
	principal := businessPrincipal(businessID)

	t.Run("cancellations with filters", func(t *testing.T) {
		svc := new(MockRequestService)
		handler := NewRequestHandler(svc, logger)

		pending := engine.StatusPending
		svc.On("ListCancellations", mock.Anything, principal, &businessID, &pending,
			repositories.ListOptions{Limit: 20, Offset: 40}).
			Return([]*models.CancellationRequest{{ID: uuid.New()}}, nil)

		target := "/api/v1/cancellations?status=PENDING&limit=20&offset=40&business_id=" + businessID.String()
		w := httptest.NewRecorder()
		handler.HandleListCancellations(w, newRequest(t, http.MethodGet, target, "", principal, nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var got []models.CancellationRequest
		decodeData(t, w, &got)
		assert.Len(t, got, 1)
		svc.AssertExpectations(t)
	})

	t.Run("refunds without filters", func(t *testing.T) {
		svc := new(MockRequestService)
		handler := NewRequestHandler(svc, logger)

		svc.On("ListRefunds", mock.Anything, principal, (*uuid.UUID)(nil), (*engine.DecisionStatus)(nil),
			repositories.ListOptions{}).Return([]*models.RefundRequest{}, nil)

		w := httptest.NewRecorder()
		handler.HandleListRefunds(w, newRequest(t, http.MethodGet, "/api/v1/refunds", "", principal, nil))

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("unknown status", func(t *testing.T) {
		svc := new(MockRequestService)
		handler := NewRequestHandler(svc, logger)

		status := engine.DecisionStatus("MAYBE")
		svc.On("ListRefunds", mock.Anything, principal, (*uuid.UUID)(nil), &status, repositories.ListOptions{}).
			Return(nil, services.ErrInvalidInput)

		w := httptest.NewRecorder()
		handler.HandleListRefunds(w, newRequest(t, http.MethodGet, "/api/v1/refunds?status=MAYBE", "", principal, nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("negative limit", func(t *testing.T) {
		svc := new(MockRequestService)
		handler := NewRequestHandler(svc, logger)

		w := httptest.NewRecorder()
		handler.HandleListCancellations(w, newRequest(t, http.MethodGet, "/api/v1/cancellations?limit=-5", "", principal, nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "limit must be a non-negative integer", decodeError(t, w).Message)
	})
}
