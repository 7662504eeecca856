package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/butekinselcuk/sepettakip/internal/policy"
)

// BusinessPolicy is the stored row of a business's cancellation and refund policy.
// The three rule sets are JSONB columns decoded by policy.Decode.
type BusinessPolicy struct {
	ID                  uuid.UUID       `json:"id" db:"id"`
	BusinessID          uuid.UUID       `json:"business_id" db:"business_id"`
	IsActive            bool            `json:"is_active" db:"is_active"`
	AutoApproveTimeline *int            `json:"auto_approve_timeline,omitempty" db:"auto_approve_timeline"`
	TimeLimit           *int            `json:"time_limit,omitempty" db:"time_limit"`
	CancellationFees    json.RawMessage `json:"cancellation_fees" db:"cancellation_fees"`
	OrderStatusRules    json.RawMessage `json:"order_status_rules" db:"order_status_rules"`
	ProductRules        json.RawMessage `json:"product_rules,omitempty" db:"product_rules"` // NULL when absent
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the BusinessPolicy model
func (BusinessPolicy) TableName() string {
	return "business_policies"
}

// NewBusinessPolicy creates a new inactive BusinessPolicy from its stored form
func NewBusinessPolicy(doc policy.Document) *BusinessPolicy {
	now := time.Now().UTC()
	id := doc.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &BusinessPolicy{
		ID:                  id,
		BusinessID:          doc.BusinessID,
		IsActive:            false,
		AutoApproveTimeline: doc.AutoApproveTimeline,
		TimeLimit:           doc.TimeLimit,
		CancellationFees:    doc.CancellationFees,
		OrderStatusRules:    doc.OrderStatusRules,
		ProductRules:        doc.ProductRules,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Document returns the row in the form policy.Decode accepts
func (p *BusinessPolicy) Document() policy.Document {
	return policy.Document{
		ID:                  p.ID,
		BusinessID:          p.BusinessID,
		IsActive:            p.IsActive,
		AutoApproveTimeline: p.AutoApproveTimeline,
		TimeLimit:           p.TimeLimit,
		CancellationFees:    p.CancellationFees,
		OrderStatusRules:    p.OrderStatusRules,
		ProductRules:        p.ProductRules,
	}
}

// ApplyDocument replaces the rule content of p with doc, keeping identity and activation
func (p *BusinessPolicy) ApplyDocument(doc policy.Document) {
	p.AutoApproveTimeline = doc.AutoApproveTimeline
	p.TimeLimit = doc.TimeLimit
	p.CancellationFees = doc.CancellationFees
	p.OrderStatusRules = doc.OrderStatusRules
	p.ProductRules = doc.ProductRules
	p.UpdatedAt = time.Now().UTC()
}
