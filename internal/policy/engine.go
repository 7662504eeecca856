package policy

import (
	"time"

	"github.com/butekinselcuk/sepettakip/internal/money"
)

// DefaultRefundAutoApproveCeiling is the largest refund the reason fast path approves
var DefaultRefundAutoApproveCeiling = money.MustParse("100")

// Evaluator evaluates cancellation and refund requests.
// It is immutable after construction and safe for concurrent use.
type Evaluator struct {
	clock         Clock
	refundCeiling money.Amount
}

// Option configures an Evaluator
type Option func(*Evaluator)

// WithClock sets the time source used to compute elapsed minutes and days
func WithClock(c Clock) Option {
	return func(e *Evaluator) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithRefundAutoApproveCeiling overrides DefaultRefundAutoApproveCeiling
func WithRefundAutoApproveCeiling(ceiling money.Amount) Option {
	return func(e *Evaluator) {
		e.refundCeiling = ceiling
	}
}

// NewEvaluator creates an Evaluator
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		clock:         SystemClock,
		refundCeiling: DefaultRefundAutoApproveCeiling,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// usable reports whether p can drive an evaluation
func usable(p *Policy) bool {
	return p != nil && p.IsActive
}

// elapsedMinutes is floor((now - since) / 1m), clamped at zero
func elapsedMinutes(since, now time.Time) int {
	d := now.Sub(since)
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}

// elapsedDays is floor((now - since) / 24h), clamped at zero
func elapsedDays(since, now time.Time) int {
	d := now.Sub(since)
	if d < 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}
