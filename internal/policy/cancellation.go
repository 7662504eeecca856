package policy

import (
	"fmt"
	"time"

	"github.com/butekinselcuk/sepettakip/internal/money"
)

// EvaluateCancellation decides a cancellation request for order under p.
//
// Precedence: auto-approve window, then the rule for the order's status, then
// the elapsed-time fee schedule. The auto-approve window is checked before
// the status rule, so it also approves orders whose status disallows
// cancellation. Any non-zero fee sends the request to manual review.
//
// The reason is not part of the decision; callers persist it with the request.
func (e *Evaluator) EvaluateCancellation(order *OrderSnapshot, p *Policy, reason string) (decision Decision) {
	now := e.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			decision = evaluationFailed(now)
		}
	}()

	return e.evaluateCancellation(order, p, now)
}

func (e *Evaluator) evaluateCancellation(order *OrderSnapshot, p *Policy, now time.Time) Decision {
	if order == nil {
		return pending(RuleOrderNotFound, "order not found", now)
	}
	if !usable(p) {
		return pending(RuleNoPolicy, "no policy configured", now)
	}

	minutes := elapsedMinutes(order.CreatedAt, now)

	if p.AutoApproveTimeline != nil && minutes <= *p.AutoApproveTimeline {
		msg := fmt.Sprintf("cancellation requested %d minutes after order creation, within the %d minute auto-approve window",
			minutes, *p.AutoApproveTimeline)
		return approved(RuleAutoApproveWindow, msg, now).withFee(money.Zero)
	}

	if rule, ok := p.OrderStatusRules[order.Status]; ok {
		if !rule.AllowCancellation {
			msg := fmt.Sprintf("cancellation is not allowed for orders in status %s", order.Status)
			return rejected(RuleStatusRule, msg, now)
		}
		if pct := rule.CancellationFeePercentage; pct != nil && *pct > 0 {
			fee := money.AmountFor(order.TotalPrice, *pct)
			msg := fmt.Sprintf("orders in status %s carry a %s%% cancellation fee (%s); manual review required",
				order.Status, *pct, fee)
			return pending(RuleStatusRule, msg, now).withFee(fee)
		}
	}

	for _, w := range p.CancellationFees {
		if !w.contains(minutes) {
			continue
		}
		if w.FeePercentage > 0 {
			fee := money.AmountFor(order.TotalPrice, w.FeePercentage)
			msg := fmt.Sprintf("cancellation after %d minutes falls in fee window %q (%s%%, %s); manual review required",
				minutes, w.Description, w.FeePercentage, fee)
			return pending(RuleFeeWindow, msg, now).withFee(fee)
		}
		msg := fmt.Sprintf("cancellation after %d minutes falls in free window %q", minutes, w.Description)
		return approved(RuleFeeWindow, msg, now).withFee(money.Zero)
	}

	return pending(RuleNoMatch, "no cancellation rule matched; manual review required", now)
}
