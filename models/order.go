package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/butekinselcuk/sepettakip/internal/money"
	"github.com/butekinselcuk/sepettakip/internal/policy"
)

// Order represents a delivery order
type Order struct {
	ID                uuid.UUID          `json:"id" db:"id"`
	BusinessID        uuid.UUID          `json:"business_id" db:"business_id"`
	CustomerID        *uuid.UUID         `json:"customer_id,omitempty" db:"customer_id"`
	Status            policy.OrderStatus `json:"status" db:"status"`
	TotalPrice        money.Amount       `json:"total_price" db:"total_price"`
	CreatedAt         time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at" db:"updated_at"`
	ActualDeliveredAt *time.Time         `json:"actual_delivered_at,omitempty" db:"actual_delivered_at"`
	Items             []OrderItem        `json:"items"`
}

// OrderItem represents a line of an order
type OrderItem struct {
	ID         uuid.UUID         `json:"id" db:"id"`
	OrderID    uuid.UUID         `json:"order_id" db:"order_id"`
	ProductID  uuid.UUID         `json:"product_id" db:"product_id"`
	CategoryID policy.CategoryID `json:"category_id" db:"category_id"`
	UnitPrice  money.Amount      `json:"unit_price" db:"unit_price"`
	Quantity   int               `json:"quantity" db:"quantity"`
}

// TableName returns the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// TableName returns the table name for the OrderItem model
func (OrderItem) TableName() string {
	return "order_items"
}

// Snapshot returns the read-only view of the order used for one evaluation
func (o *Order) Snapshot() *policy.OrderSnapshot {
	snap := &policy.OrderSnapshot{
		ID:         o.ID,
		BusinessID: o.BusinessID,
		Status:     o.Status,
		CreatedAt:  o.CreatedAt,
		TotalPrice: o.TotalPrice,
		Items:      make([]policy.OrderItem, 0, len(o.Items)),
	}
	if o.ActualDeliveredAt != nil {
		delivered := *o.ActualDeliveredAt
		snap.ActualDeliveredAt = &delivered
	}
	for _, it := range o.Items {
		snap.Items = append(snap.Items, policy.OrderItem{
			ID:         it.ID,
			CategoryID: it.CategoryID,
			UnitPrice:  it.UnitPrice,
			Quantity:   it.Quantity,
		})
	}
	return snap
}
