package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/butekinselcuk/sepettakip/internal/money"
	"github.com/butekinselcuk/sepettakip/internal/policy"
)

// CancellationRequest is the persisted record of one cancellation request and its decision
type CancellationRequest struct {
	ID            uuid.UUID             `json:"id" db:"id"`
	OrderID       uuid.UUID             `json:"order_id" db:"order_id"`
	BusinessID    uuid.UUID             `json:"business_id" db:"business_id"`
	RequestedBy   *uuid.UUID            `json:"requested_by,omitempty" db:"requested_by"`
	Reason        string                `json:"reason" db:"reason"`
	OrderStatus   policy.OrderStatus    `json:"order_status" db:"order_status"` // status the decision was computed against
	Status        policy.DecisionStatus `json:"status" db:"status"`
	AutoProcessed bool                  `json:"auto_processed" db:"auto_processed"`
	Fee           *money.Amount         `json:"fee,omitempty" db:"fee"`
	Message       string                `json:"message" db:"message"`
	Rule          policy.Rule           `json:"rule" db:"rule"`
	CreatedAt     time.Time             `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the CancellationRequest model
func (CancellationRequest) TableName() string {
	return "cancellation_requests"
}

// NewCancellationRequest records decision d for a cancellation of order
func NewCancellationRequest(order *Order, reason string, d policy.Decision) *CancellationRequest {
	return &CancellationRequest{
		ID:            uuid.New(),
		OrderID:       order.ID,
		BusinessID:    order.BusinessID,
		Reason:        reason,
		OrderStatus:   order.Status,
		Status:        d.Status,
		AutoProcessed: d.AutoProcessed,
		Fee:           d.Fee,
		Message:       d.Message,
		Rule:          d.Rule,
		CreatedAt:     d.EvaluatedAt,
	}
}

// SetRequester sets the user who filed the request
func (r *CancellationRequest) SetRequester(userID uuid.UUID) {
	r.RequestedBy = &userID
}

// RefundRequest is the persisted record of one refund request and its decision
type RefundRequest struct {
	ID              uuid.UUID             `json:"id" db:"id"`
	OrderID         uuid.UUID             `json:"order_id" db:"order_id"`
	BusinessID      uuid.UUID             `json:"business_id" db:"business_id"`
	RequestedBy     *uuid.UUID            `json:"requested_by,omitempty" db:"requested_by"`
	Reason          string                `json:"reason" db:"reason"`
	RequestedAmount money.Amount          `json:"requested_amount" db:"requested_amount"`
	ApprovedAmount  *money.Amount         `json:"approved_amount,omitempty" db:"approved_amount"`
	ItemIDs         []uuid.UUID           `json:"item_ids" db:"item_ids"`
	Status          policy.DecisionStatus `json:"status" db:"status"`
	AutoProcessed   bool                  `json:"auto_processed" db:"auto_processed"`
	Message         string                `json:"message" db:"message"`
	Rule            policy.Rule           `json:"rule" db:"rule"`
	CreatedAt       time.Time             `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the RefundRequest model
func (RefundRequest) TableName() string {
	return "refund_requests"
}

// NewRefundRequest records decision d for a refund of order
func NewRefundRequest(order *Order, reason string, requested money.Amount, itemIDs []uuid.UUID, d policy.Decision) *RefundRequest {
	ids := make([]uuid.UUID, len(itemIDs))
	copy(ids, itemIDs)
	return &RefundRequest{
		ID:              uuid.New(),
		OrderID:         order.ID,
		BusinessID:      order.BusinessID,
		Reason:          reason,
		RequestedAmount: requested,
		ApprovedAmount:  d.ApprovedAmount,
		ItemIDs:         ids,
		Status:          d.Status,
		AutoProcessed:   d.AutoProcessed,
		Message:         d.Message,
		Rule:            d.Rule,
		CreatedAt:       d.EvaluatedAt,
	}
}

// SetRequester sets the user who filed the request
func (r *RefundRequest) SetRequester(userID uuid.UUID) {
	r.RequestedBy = &userID
}
