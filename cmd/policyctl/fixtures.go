package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/butekinselcuk/sepettakip/internal/money"
	"github.com/butekinselcuk/sepettakip/internal/policy"
)

// policyFile is the YAML form of a policy. Rule sets keep the field names of
// the stored JSON documents.
type policyFile struct {
	ID                  string      `yaml:"id"`
	BusinessID          string      `yaml:"businessId"`
	IsActive            *bool       `yaml:"isActive"`
	AutoApproveTimeline *int        `yaml:"autoApproveTimeline"`
	TimeLimit           *int        `yaml:"timeLimit"`
	CancellationFees    interface{} `yaml:"cancellationFees"`
	OrderStatusRules    interface{} `yaml:"orderStatusRules"`
	ProductRules        interface{} `yaml:"productRules"`
}

// orderFile is the YAML form of an order
type orderFile struct {
	ID          string `yaml:"id"`
	BusinessID  string `yaml:"businessId"`
	Status      string `yaml:"status"`
	CreatedAt   string `yaml:"createdAt"`
	DeliveredAt string `yaml:"deliveredAt"`
	TotalPrice  string `yaml:"totalPrice"`
	Items       []struct {
		ID         string `yaml:"id"`
		CategoryID string `yaml:"categoryId"`
		UnitPrice  string `yaml:"unitPrice"`
		Quantity   int    `yaml:"quantity"`
	} `yaml:"items"`
}

// loadPolicy reads a YAML policy and runs it through the same decoder and
// validator the service uses. A policy without isActive is treated as active.
func loadPolicy(path string) (*policy.Policy, error) {
	var f policyFile
	if err := readYAML(path, &f); err != nil {
		return nil, err
	}

	doc := policy.Document{
		IsActive:            f.IsActive == nil || *f.IsActive,
		AutoApproveTimeline: f.AutoApproveTimeline,
		TimeLimit:           f.TimeLimit,
	}
	var err error
	if doc.ID, err = optionalUUID(f.ID); err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}
	if doc.BusinessID, err = optionalUUID(f.BusinessID); err != nil {
		return nil, fmt.Errorf("businessId: %w", err)
	}
	if doc.CancellationFees, err = ruleSet(f.CancellationFees); err != nil {
		return nil, fmt.Errorf("cancellationFees: %w", err)
	}
	if doc.OrderStatusRules, err = ruleSet(f.OrderStatusRules); err != nil {
		return nil, fmt.Errorf("orderStatusRules: %w", err)
	}
	if doc.ProductRules, err = ruleSet(f.ProductRules); err != nil {
		return nil, fmt.Errorf("productRules: %w", err)
	}

	return policy.Decode(doc)
}

// loadOrder reads a YAML order snapshot. Items without an id get a fresh one.
func loadOrder(path string) (*policy.OrderSnapshot, error) {
	var f orderFile
	if err := readYAML(path, &f); err != nil {
		return nil, err
	}

	order := &policy.OrderSnapshot{Status: policy.OrderStatus(f.Status)}
	if !order.Status.Valid() {
		return nil, fmt.Errorf("status: unknown order status %q", f.Status)
	}

	var err error
	if order.ID, err = optionalUUID(f.ID); err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}
	if order.BusinessID, err = optionalUUID(f.BusinessID); err != nil {
		return nil, fmt.Errorf("businessId: %w", err)
	}
	if order.CreatedAt, err = time.Parse(time.RFC3339, f.CreatedAt); err != nil {
		return nil, fmt.Errorf("createdAt: %w", err)
	}
	if f.DeliveredAt != "" {
		delivered, err := time.Parse(time.RFC3339, f.DeliveredAt)
		if err != nil {
			return nil, fmt.Errorf("deliveredAt: %w", err)
		}
		order.ActualDeliveredAt = &delivered
	}
	if order.TotalPrice, err = money.Parse(f.TotalPrice); err != nil {
		return nil, fmt.Errorf("totalPrice: %w", err)
	}

	for i, it := range f.Items {
		item := policy.OrderItem{CategoryID: policy.CategoryID(it.CategoryID), Quantity: it.Quantity}
		if item.ID, err = optionalUUID(it.ID); err != nil {
			return nil, fmt.Errorf("items[%d].id: %w", i, err)
		}
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		if item.UnitPrice, err = money.Parse(it.UnitPrice); err != nil {
			return nil, fmt.Errorf("items[%d].unitPrice: %w", i, err)
		}
		order.Items = append(order.Items, item)
	}
	return order, nil
}

func readYAML(path string, dst interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// ruleSet re-encodes a decoded YAML rule set as JSON; absent sets stay nil
func ruleSet(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func optionalUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(s)
}
