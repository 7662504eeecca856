package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	AuditActionCancellationRequested AuditAction = "cancellation_requested"
	AuditActionRefundRequested       AuditAction = "refund_requested"
	AuditActionOrderCancelled        AuditAction = "order_cancelled"
	AuditActionPolicyCreated         AuditAction = "policy_created"
	AuditActionPolicyUpdated         AuditAction = "policy_updated"
	AuditActionPolicyActivated       AuditAction = "policy_activated"
	AuditActionPolicyDeleted         AuditAction = "policy_deleted"
	AuditActionPolicyRejected        AuditAction = "policy_rejected" // stored policy failed validation at load time
)

// AuditLog represents an audit trail entry
type AuditLog struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	BusinessID   uuid.UUID       `json:"business_id" db:"business_id"`
	ActorID      *uuid.UUID      `json:"actor_id,omitempty" db:"actor_id"`
	Action       AuditAction     `json:"action" db:"action"`
	ResourceType string          `json:"resource_type" db:"resource_type"` // order, policy, cancellation_request, refund_request
	ResourceID   *uuid.UUID      `json:"resource_id,omitempty" db:"resource_id"`
	Outcome      *string         `json:"outcome,omitempty" db:"outcome"` // decision status when the action is an evaluation
	Rule         *string         `json:"rule,omitempty" db:"rule"`
	Details      json.RawMessage `json:"details" db:"details"` // JSONB for flexible metadata
	IPAddress    string          `json:"ip_address" db:"ip_address"`
	UserAgent    string          `json:"user_agent" db:"user_agent"`
	RequestID    string          `json:"request_id" db:"request_id"`
	Timestamp    time.Time       `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}

// NewAuditLog creates a new AuditLog instance
func NewAuditLog(businessID uuid.UUID, action AuditAction, resourceType string) *AuditLog {
	return &AuditLog{
		ID:           uuid.New(),
		BusinessID:   businessID,
		Action:       action,
		ResourceType: resourceType,
		Timestamp:    time.Now().UTC(),
	}
}

// WithActor sets the acting user ID
func (a *AuditLog) WithActor(actorID *uuid.UUID) *AuditLog {
	if actorID != nil {
		id := *actorID
		a.ActorID = &id
	}
	return a
}

// WithResource sets the resource ID
func (a *AuditLog) WithResource(resourceID uuid.UUID) *AuditLog {
	a.ResourceID = &resourceID
	return a
}

// WithDecision sets the decision outcome and the rule that produced it
func (a *AuditLog) WithDecision(status, rule string) *AuditLog {
	a.Outcome = &status
	a.Rule = &rule
	return a
}

// WithDetails sets the details
func (a *AuditLog) WithDetails(details interface{}) *AuditLog {
	if data, err := json.Marshal(details); err == nil {
		a.Details = data
	}
	return a
}

// WithRequest sets request metadata
func (a *AuditLog) WithRequest(requestID, ipAddress, userAgent string) *AuditLog {
	a.RequestID = requestID
	a.IPAddress = ipAddress
	a.UserAgent = userAgent
	return a
}
