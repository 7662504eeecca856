package policy

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/butekinselcuk/sepettakip/internal/money"
)

// fastPathReasons qualify for automatic approval of small refunds
var fastPathReasons = map[string]struct{}{
	ReasonDamagedProduct: {},
	ReasonMissingItems:   {},
	ReasonWrongProduct:   {},
}

// EvaluateRefund decides a refund request for order under p.
//
// Checks run in order: order-level time limit, per-item product rules
// (one non-refundable item rejects the whole request), then the reason fast
// path for amounts up to the evaluator's ceiling. Everything else is PENDING.
//
// Being inside the auto-approve timeline (in days) is noted in the message
// but does not approve the refund on its own.
func (e *Evaluator) EvaluateRefund(order *OrderSnapshot, p *Policy, reason string, requested money.Amount, itemIDs []uuid.UUID) (decision Decision) {
	now := e.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			decision = evaluationFailed(now)
		}
	}()

	return e.evaluateRefund(order, p, reason, requested, itemIDs, now)
}

func (e *Evaluator) evaluateRefund(order *OrderSnapshot, p *Policy, reason string, requested money.Amount, itemIDs []uuid.UUID, now time.Time) Decision {
	if order == nil {
		return pending(RuleOrderNotFound, "order not found", now)
	}
	if requested < 0 {
		return pending(RuleInvalidRequest, "requested amount must not be negative", now)
	}
	if !usable(p) {
		return pending(RuleNoPolicy, "no policy configured", now)
	}

	var notes []string
	delivered := order.ActualDeliveredAt != nil
	days := 0
	if delivered {
		days = elapsedDays(*order.ActualDeliveredAt, now)
	}

	if delivered && p.TimeLimit != nil {
		if days > *p.TimeLimit {
			msg := fmt.Sprintf("refund requested %d days after delivery, exceeding the %d day limit", days, *p.TimeLimit)
			return rejected(RuleTimeLimit, msg, now)
		}
		if p.AutoApproveTimeline != nil && days <= *p.AutoApproveTimeline {
			notes = append(notes, fmt.Sprintf("requested %d days after delivery, within the %d day auto-approve window",
				days, *p.AutoApproveTimeline))
		}
	}

	if len(itemIDs) > 0 && p.ProductRules != nil {
		for _, id := range itemIDs {
			item, ok := order.item(id)
			if !ok {
				return rejected(RuleProductRule, fmt.Sprintf("item %s is not part of order %s", id, order.ID), now)
			}
			rule, ok := p.ProductRules[item.CategoryID]
			if !ok {
				msg := fmt.Sprintf("no refund rule for category %s (item %s)", item.CategoryID, id)
				return rejected(RuleProductRule, msg, now)
			}
			if delivered && rule.RefundTimeLimit != nil && days > *rule.RefundTimeLimit {
				msg := fmt.Sprintf("category %s allows refunds for %d days, %d days have passed since delivery (item %s)",
					item.CategoryID, *rule.RefundTimeLimit, days, id)
				return rejected(RuleProductRule, msg, now)
			}
			if !rule.Refundable {
				msg := fmt.Sprintf("category %s is not refundable (item %s)", item.CategoryID, id)
				return rejected(RuleProductRule, msg, now)
			}
		}
	}

	if _, ok := fastPathReasons[reason]; ok && requested <= e.refundCeiling {
		notes = append(notes, fmt.Sprintf("%s refund of %s is within the %s auto-approve limit", reason, requested, e.refundCeiling))
		return approved(RuleReasonFastPath, strings.Join(notes, "; "), now).withApprovedAmount(requested)
	}

	notes = append(notes, "manual review required")
	return pending(RuleNoMatch, strings.Join(notes, "; "), now)
}
