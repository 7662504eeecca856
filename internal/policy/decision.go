package policy

import (
	"time"

	"github.com/butekinselcuk/sepettakip/internal/money"
)

// DecisionStatus is the outcome of an evaluation
type DecisionStatus string

const (
	StatusAutoApproved DecisionStatus = "AUTO_APPROVED"
	StatusRejected     DecisionStatus = "REJECTED"
	StatusPending      DecisionStatus = "PENDING"
)

// Valid reports whether s is a known decision status
func (s DecisionStatus) Valid() bool {
	switch s {
	case StatusAutoApproved, StatusRejected, StatusPending:
		return true
	}
	return false
}

// Rule names the branch of the evaluator that produced a decision
type Rule string

const (
	RuleOrderNotFound     Rule = "ORDER_NOT_FOUND"
	RuleNoPolicy          Rule = "NO_POLICY"
	RuleInvalidRequest    Rule = "INVALID_REQUEST"
	RuleAutoApproveWindow Rule = "AUTO_APPROVE_WINDOW"
	RuleStatusRule        Rule = "STATUS_RULE"
	RuleFeeWindow         Rule = "FEE_WINDOW"
	RuleTimeLimit         Rule = "TIME_LIMIT"
	RuleProductRule       Rule = "PRODUCT_RULE"
	RuleReasonFastPath    Rule = "REASON_FAST_PATH"
	RuleNoMatch           Rule = "NO_MATCH"
	RuleEvaluationError   Rule = "EVALUATION_ERROR"
)

// Decision is the immutable result of evaluating one request.
// Fee is set for cancellations, ApprovedAmount for auto-approved refunds.
type Decision struct {
	AutoProcessed  bool           `json:"autoProcessed"`
	Status         DecisionStatus `json:"status"`
	Fee            *money.Amount  `json:"fee,omitempty"`
	ApprovedAmount *money.Amount  `json:"approvedAmount,omitempty"`
	Message        string         `json:"message"`
	Rule           Rule           `json:"rule"`
	EvaluatedAt    time.Time      `json:"evaluatedAt"`
}

// IsApproved reports whether the request was approved without review
func (d Decision) IsApproved() bool {
	return d.Status == StatusAutoApproved && d.AutoProcessed
}

// IsPending reports whether the request needs manual review
func (d Decision) IsPending() bool {
	return d.Status == StatusPending
}

// approved, rejected and pending are the only constructors, which keeps
// Status and AutoProcessed consistent.

func approved(rule Rule, msg string, at time.Time) Decision {
	return Decision{AutoProcessed: true, Status: StatusAutoApproved, Rule: rule, Message: msg, EvaluatedAt: at}
}

func rejected(rule Rule, msg string, at time.Time) Decision {
	return Decision{AutoProcessed: true, Status: StatusRejected, Rule: rule, Message: msg, EvaluatedAt: at}
}

func pending(rule Rule, msg string, at time.Time) Decision {
	return Decision{AutoProcessed: false, Status: StatusPending, Rule: rule, Message: msg, EvaluatedAt: at}
}

func (d Decision) withFee(fee money.Amount) Decision {
	d.Fee = &fee
	return d
}

func (d Decision) withApprovedAmount(amount money.Amount) Decision {
	d.ApprovedAmount = &amount
	return d
}

// evaluationFailed is returned when evaluation panics. It never approves.
func evaluationFailed(at time.Time) Decision {
	return pending(RuleEvaluationError, "policy evaluation error", at)
}
