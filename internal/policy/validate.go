package policy

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/multierr"
)

// ErrMalformedPolicy is returned when a stored or submitted policy fails decoding or validation
var ErrMalformedPolicy = errors.New("malformed policy")

// Validate checks the structural rules of p and reports every problem found.
//
// Fee windows must be ascending by MinMinutes and must not overlap; two
// windows may share a boundary minute, in which case the earlier one wins.
// Only the last window may be open-ended.
func Validate(p *Policy) error {
	if p == nil {
		return fmt.Errorf("%w: policy is nil", ErrMalformedPolicy)
	}
	if errs := validate(p); errs != nil {
		return fmt.Errorf("%w: %w", ErrMalformedPolicy, errs)
	}
	return nil
}

func validate(p *Policy) error {
	var errs error

	if p.AutoApproveTimeline != nil && *p.AutoApproveTimeline < 0 {
		errs = multierr.Append(errs, fmt.Errorf("autoApproveTimeline must not be negative, got %d", *p.AutoApproveTimeline))
	}
	if p.TimeLimit != nil && *p.TimeLimit < 0 {
		errs = multierr.Append(errs, fmt.Errorf("timeLimit must not be negative, got %d", *p.TimeLimit))
	}

	errs = multierr.Append(errs, validateFeeWindows(p.CancellationFees))

	statuses := make([]OrderStatus, 0, len(p.OrderStatusRules))
	for status := range p.OrderStatusRules {
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })
	for _, status := range statuses {
		if !status.Valid() {
			errs = multierr.Append(errs, fmt.Errorf("orderStatusRules: unknown order status %q", status))
			continue
		}
		rule := p.OrderStatusRules[status]
		if pct := rule.CancellationFeePercentage; pct != nil && !pct.Valid() {
			errs = multierr.Append(errs, fmt.Errorf("orderStatusRules[%s].cancellationFeePercentage %s out of range [0,100]", status, *pct))
		}
	}

	categories := make([]CategoryID, 0, len(p.ProductRules))
	for category := range p.ProductRules {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })
	for _, category := range categories {
		if category == "" {
			errs = multierr.Append(errs, errors.New("productRules: empty category id"))
			continue
		}
		if limit := p.ProductRules[category].RefundTimeLimit; limit != nil && *limit < 0 {
			errs = multierr.Append(errs, fmt.Errorf("productRules[%s].refundTimeLimit must not be negative, got %d", category, *limit))
		}
	}

	return errs
}

func validateFeeWindows(windows []FeeWindow) error {
	var errs error
	for i, w := range windows {
		if w.MinMinutes < 0 {
			errs = multierr.Append(errs, fmt.Errorf("cancellationFees[%d].minMinutes must not be negative", i))
		}
		if w.MaxMinutes != nil && *w.MaxMinutes < w.MinMinutes {
			errs = multierr.Append(errs, fmt.Errorf("cancellationFees[%d].maxMinutes %d is below minMinutes %d", i, *w.MaxMinutes, w.MinMinutes))
		}
		if w.MaxMinutes == nil && i != len(windows)-1 {
			errs = multierr.Append(errs, fmt.Errorf("cancellationFees[%d] is open-ended but is not the last window", i))
		}
		if !w.FeePercentage.Valid() {
			errs = multierr.Append(errs, fmt.Errorf("cancellationFees[%d].feePercentage %s out of range [0,100]", i, w.FeePercentage))
		}
		if i == 0 {
			continue
		}
		prev := windows[i-1]
		switch {
		case w.MinMinutes < prev.MinMinutes:
			errs = multierr.Append(errs, fmt.Errorf("cancellationFees[%d] is not in ascending order", i))
		case prev.MaxMinutes != nil && w.MinMinutes < *prev.MaxMinutes:
			errs = multierr.Append(errs, fmt.Errorf("cancellationFees[%d] overlaps cancellationFees[%d]", i, i-1))
		}
	}
	return errs
}
