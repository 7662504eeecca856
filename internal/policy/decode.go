package policy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/butekinselcuk/sepettakip/internal/money"
)

// Document is the stored form of a policy: scalar columns plus the three rule
// sets as raw JSON.
type Document struct {
	ID                  uuid.UUID
	BusinessID          uuid.UUID
	IsActive            bool
	AutoApproveTimeline *int
	TimeLimit           *int
	CancellationFees    json.RawMessage
	OrderStatusRules    json.RawMessage
	ProductRules        json.RawMessage
}

// Decode strictly decodes doc into a Policy and validates it.
// Every failure wraps ErrMalformedPolicy.
func Decode(doc Document) (*Policy, error) {
	p := &Policy{
		ID:                  doc.ID,
		BusinessID:          doc.BusinessID,
		IsActive:            doc.IsActive,
		AutoApproveTimeline: doc.AutoApproveTimeline,
		TimeLimit:           doc.TimeLimit,
	}

	var fees []feeWindowJSON
	if err := decodeRuleSet(doc.CancellationFees, &fees); err != nil {
		return nil, fmt.Errorf("%w: cancellationFees: %v", ErrMalformedPolicy, err)
	}
	var statusRules map[OrderStatus]statusRuleJSON
	if err := decodeRuleSet(doc.OrderStatusRules, &statusRules); err != nil {
		return nil, fmt.Errorf("%w: orderStatusRules: %v", ErrMalformedPolicy, err)
	}
	var productRules map[CategoryID]productRuleJSON
	if err := decodeRuleSet(doc.ProductRules, &productRules); err != nil {
		return nil, fmt.Errorf("%w: productRules: %v", ErrMalformedPolicy, err)
	}

	var errs error
	if fees != nil {
		p.CancellationFees = make([]FeeWindow, 0, len(fees))
	}
	for i, w := range fees {
		fw, err := w.window(i)
		errs = multierr.Append(errs, err)
		p.CancellationFees = append(p.CancellationFees, fw)
	}
	if statusRules != nil {
		p.OrderStatusRules = make(map[OrderStatus]StatusRule, len(statusRules))
	}
	for _, status := range sortedKeys(statusRules) {
		rule, err := statusRules[status].rule(status)
		errs = multierr.Append(errs, err)
		p.OrderStatusRules[status] = rule
	}
	if productRules != nil {
		p.ProductRules = make(map[CategoryID]ProductRule, len(productRules))
	}
	for _, category := range sortedKeys(productRules) {
		rule, err := productRules[category].rule(category)
		errs = multierr.Append(errs, err)
		p.ProductRules[category] = rule
	}

	errs = multierr.Append(errs, validate(p))
	if errs != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPolicy, errs)
	}
	return p, nil
}

// Encode converts p into its stored form
func Encode(p *Policy) (Document, error) {
	doc := Document{
		ID:                  p.ID,
		BusinessID:          p.BusinessID,
		IsActive:            p.IsActive,
		AutoApproveTimeline: p.AutoApproveTimeline,
		TimeLimit:           p.TimeLimit,
	}

	var err error
	fees := p.CancellationFees
	if fees == nil {
		fees = []FeeWindow{}
	}
	if doc.CancellationFees, err = json.Marshal(fees); err != nil {
		return Document{}, fmt.Errorf("failed to encode cancellation fees: %w", err)
	}
	statusRules := p.OrderStatusRules
	if statusRules == nil {
		statusRules = map[OrderStatus]StatusRule{}
	}
	if doc.OrderStatusRules, err = json.Marshal(statusRules); err != nil {
		return Document{}, fmt.Errorf("failed to encode order status rules: %w", err)
	}
	if p.ProductRules != nil {
		if doc.ProductRules, err = json.Marshal(p.ProductRules); err != nil {
			return Document{}, fmt.Errorf("failed to encode product rules: %w", err)
		}
	}
	return doc, nil
}

// decodeRuleSet decodes one JSON rule set. An empty or null blob leaves dst untouched.
func decodeRuleSet(raw json.RawMessage, dst interface{}) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected trailing data")
	}
	return nil
}

// Stored rule sets are decoded through these wire forms so that a missing
// required field is reported instead of turning into a zero value.

type feeWindowJSON struct {
	MinMinutes    *int           `json:"minMinutes"`
	MaxMinutes    *int           `json:"maxMinutes"`
	FeePercentage *money.Percent `json:"feePercentage"`
	Description   string         `json:"description"`
}

func (w feeWindowJSON) window(i int) (FeeWindow, error) {
	fw := FeeWindow{MaxMinutes: w.MaxMinutes, Description: w.Description}
	var errs error
	if w.MinMinutes == nil {
		errs = multierr.Append(errs, fmt.Errorf("cancellationFees[%d].minMinutes is required", i))
	} else {
		fw.MinMinutes = *w.MinMinutes
	}
	if w.FeePercentage == nil {
		errs = multierr.Append(errs, fmt.Errorf("cancellationFees[%d].feePercentage is required", i))
	} else {
		fw.FeePercentage = *w.FeePercentage
	}
	return fw, errs
}

type statusRuleJSON struct {
	AllowCancellation         *bool          `json:"allowCancellation"`
	CancellationFeePercentage *money.Percent `json:"cancellationFeePercentage"`
}

func (r statusRuleJSON) rule(status OrderStatus) (StatusRule, error) {
	if r.AllowCancellation == nil {
		return StatusRule{}, fmt.Errorf("orderStatusRules[%s].allowCancellation is required", status)
	}
	return StatusRule{
		AllowCancellation:         *r.AllowCancellation,
		CancellationFeePercentage: r.CancellationFeePercentage,
	}, nil
}

type productRuleJSON struct {
	Refundable      *bool `json:"refundable"`
	RefundTimeLimit *int  `json:"refundTimeLimit"`
}

func (r productRuleJSON) rule(category CategoryID) (ProductRule, error) {
	if r.Refundable == nil {
		return ProductRule{}, fmt.Errorf("productRules[%s].refundable is required", category)
	}
	return ProductRule{Refundable: *r.Refundable, RefundTimeLimit: r.RefundTimeLimit}, nil
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
