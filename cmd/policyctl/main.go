package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/butekinselcuk/sepettakip/internal/money"
	"github.com/butekinselcuk/sepettakip/internal/policy"
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}

	switch args[1] {
	case "lint":
		return handleLint(args[2:], stdout, stderr)
	case "evaluate":
		return handleEvaluate(args[2:], stdout, stderr)
	default:
		usage(stderr)
		return 2
	}
}

func handleLint(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("lint", flag.ContinueOnError)
	fs.SetOutput(stderr)
	policyPath := fs.String("policy", "", "policy YAML file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *policyPath == "" {
		fmt.Fprintln(stderr, "lint requires -policy")
		fs.Usage()
		return 2
	}

	p, err := loadPolicy(*policyPath)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	fmt.Fprintf(stdout, "ok fee_windows=%d status_rules=%d product_rules=%d\n",
		len(p.CancellationFees), len(p.OrderStatusRules), len(p.ProductRules))
	return 0
}

func handleEvaluate(args []string, stdout io.Writer, stderr io.Writer) int {
	if len(args) == 0 || (args[0] != "cancellation" && args[0] != "refund") {
		fmt.Fprintln(stderr, "evaluate requires cancellation or refund")
		usage(stderr)
		return 2
	}
	kind := args[0]

	fs := flag.NewFlagSet("evaluate "+kind, flag.ContinueOnError)
	fs.SetOutput(stderr)
	policyPath := fs.String("policy", "", "policy YAML file (omit to evaluate without a policy)")
	orderPath := fs.String("order", "", "order YAML file")
	reason := fs.String("reason", "", "request reason")
	amount := fs.String("amount", "0", "requested refund amount")
	items := fs.String("items", "", "comma-separated order item ids to refund")
	now := fs.String("now", "", "evaluation time, RFC3339 (default: current time)")
	ceiling := fs.String("ceiling", policy.DefaultRefundAutoApproveCeiling.String(), "refund fast path ceiling")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	if *orderPath == "" {
		fmt.Fprintln(stderr, "evaluate requires -order")
		fs.Usage()
		return 2
	}

	opts, err := evaluatorOptions(*now, *ceiling)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 2
	}

	order, err := loadOrder(*orderPath)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	var p *policy.Policy
	if *policyPath != "" {
		if p, err = loadPolicy(*policyPath); err != nil {
			fmt.Fprintln(stderr, err.Error())
			return 1
		}
	}

	evaluator := policy.NewEvaluator(opts...)
	var decision policy.Decision
	switch kind {
	case "cancellation":
		decision = evaluator.EvaluateCancellation(order, p, *reason)
	case "refund":
		requested, err := money.Parse(*amount)
		if err != nil {
			fmt.Fprintf(stderr, "amount: %v\n", err)
			return 2
		}
		itemIDs, err := parseItems(*items)
		if err != nil {
			fmt.Fprintf(stderr, "items: %v\n", err)
			return 2
		}
		decision = evaluator.EvaluateRefund(order, p, *reason, requested, itemIDs)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(decision); err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	return 0
}

func evaluatorOptions(now, ceiling string) ([]policy.Option, error) {
	var opts []policy.Option
	if now != "" {
		t, err := time.Parse(time.RFC3339, now)
		if err != nil {
			return nil, fmt.Errorf("now: %w", err)
		}
		opts = append(opts, policy.WithClock(policy.FixedClock(t)))
	}
	c, err := money.Parse(ceiling)
	if err != nil {
		return nil, fmt.Errorf("ceiling: %w", err)
	}
	return append(opts, policy.WithRefundAutoApproveCeiling(c)), nil
}

func parseItems(s string) ([]uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]uuid.UUID, 0, len(parts))
	for _, part := range parts {
		id, err := uuid.Parse(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func usage(w io.Writer) {
	fmt.Fprint(w, `policyctl evaluates cancellation and refund policies offline

Usage:
  policyctl lint -policy policy.yaml
  policyctl evaluate cancellation -policy policy.yaml -order order.yaml [-reason r] [-now RFC3339]
  policyctl evaluate refund -policy policy.yaml -order order.yaml -reason r -amount 12.50 [-items id,id] [-now RFC3339] [-ceiling 100]
`)
}
