package policy

import (
	"time"

	"github.com/google/uuid"

	"github.com/butekinselcuk/sepettakip/internal/money"
)

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusPreparing  OrderStatus = "PREPARING"
	OrderStatusReady      OrderStatus = "READY"
	OrderStatusPickedUp   OrderStatus = "PICKED_UP"
	OrderStatusInTransit  OrderStatus = "IN_TRANSIT"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	OrderStatusRefunded   OrderStatus = "REFUNDED"
)

var knownStatuses = map[OrderStatus]struct{}{
	OrderStatusPending:    {},
	OrderStatusConfirmed:  {},
	OrderStatusProcessing: {},
	OrderStatusPreparing:  {},
	OrderStatusReady:      {},
	OrderStatusPickedUp:   {},
	OrderStatusInTransit:  {},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
	OrderStatusRefunded:   {},
}

// Valid reports whether s is a known order status
func (s OrderStatus) Valid() bool {
	_, ok := knownStatuses[s]
	return ok
}

// CategoryID identifies a product category
type CategoryID string

// Refund reasons that qualify for the low-amount fast path
const (
	ReasonDamagedProduct = "DAMAGED_PRODUCT"
	ReasonMissingItems   = "MISSING_ITEMS"
	ReasonWrongProduct   = "WRONG_PRODUCT"
)

// FeeWindow is one bracket of the elapsed-time cancellation fee schedule.
// A nil MaxMinutes makes the window open-ended.
type FeeWindow struct {
	MinMinutes    int           `json:"minMinutes"`
	MaxMinutes    *int          `json:"maxMinutes"`
	FeePercentage money.Percent `json:"feePercentage"`
	Description   string        `json:"description"`
}

// contains reports whether the elapsed minutes fall inside the window
func (w FeeWindow) contains(minutes int) bool {
	if minutes < w.MinMinutes {
		return false
	}
	return w.MaxMinutes == nil || minutes <= *w.MaxMinutes
}

// StatusRule configures cancellation for orders in a given status
type StatusRule struct {
	AllowCancellation         bool           `json:"allowCancellation"`
	CancellationFeePercentage *money.Percent `json:"cancellationFeePercentage"`
}

// ProductRule configures refundability for a product category
type ProductRule struct {
	Refundable      bool `json:"refundable"`
	RefundTimeLimit *int `json:"refundTimeLimit,omitempty"`
}

// Policy is the typed, validated form of a business's cancellation and refund policy.
//
// AutoApproveTimeline is read as minutes by the cancellation evaluator and as
// days by the refund evaluator.
type Policy struct {
	ID                  uuid.UUID                  `json:"id"`
	BusinessID          uuid.UUID                  `json:"businessId"`
	IsActive            bool                       `json:"isActive"`
	AutoApproveTimeline *int                       `json:"autoApproveTimeline,omitempty"`
	TimeLimit           *int                       `json:"timeLimit,omitempty"`
	CancellationFees    []FeeWindow                `json:"cancellationFees"`
	OrderStatusRules    map[OrderStatus]StatusRule `json:"orderStatusRules"`
	ProductRules        map[CategoryID]ProductRule `json:"productRules,omitempty"`
}

// OrderItem is a line of an order snapshot
type OrderItem struct {
	ID         uuid.UUID    `json:"id"`
	CategoryID CategoryID   `json:"categoryId"`
	UnitPrice  money.Amount `json:"unitPrice"`
	Quantity   int          `json:"quantity"`
}

// OrderSnapshot is the read-only view of an order used for one evaluation
type OrderSnapshot struct {
	ID                uuid.UUID    `json:"id"`
	BusinessID        uuid.UUID    `json:"businessId"`
	Status            OrderStatus  `json:"status"`
	CreatedAt         time.Time    `json:"createdAt"`
	ActualDeliveredAt *time.Time   `json:"actualDeliveredAt,omitempty"`
	TotalPrice        money.Amount `json:"totalPrice"`
	Items             []OrderItem  `json:"items"`
}

// item returns the order line with the given id
func (o *OrderSnapshot) item(id uuid.UUID) (OrderItem, bool) {
	for _, it := range o.Items {
		if it.ID == id {
			return it, true
		}
	}
	return OrderItem{}, false
}

// CancellationRequest asks for an order to be cancelled
type CancellationRequest struct {
	OrderID uuid.UUID `json:"orderId"`
	Reason  string    `json:"reason"`
}

// RefundRequest asks for part or all of an order to be refunded
type RefundRequest struct {
	OrderID         uuid.UUID    `json:"orderId"`
	Reason          string       `json:"reason"`
	RequestedAmount money.Amount `json:"requestedAmount"`
	ItemIDs         []uuid.UUID  `json:"itemIds"`
}

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface
type ClockFunc func() time.Time

// Now returns f()
func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock returns wall-clock time in UTC
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })

// FixedClock returns a clock frozen at t
func FixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}
