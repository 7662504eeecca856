package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/butekinselcuk/sepettakip/internal/policy"
)

const (
	foodItem   = "5d1f0b8e-0c55-4a8f-9a2b-3c4d5e6f7a81"
	drinksItem = "9e2a1c7d-6b5f-4e3d-8c2b-1a0f9e8d7c62"
)

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(append([]string{"policyctl"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func decodeDecision(t *testing.T, out string) map[string]interface{} {
	t.Helper()
	var decision map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &decision))
	return decision
}

func TestRunUsage(t *testing.T) {
	code, _, stderr := runCLI()
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Usage:")

	code, _, _ = runCLI("explode")
	assert.Equal(t, 2, code)
}

func TestLint(t *testing.T) {
	t.Run("valid policy", func(t *testing.T) {
		code, stdout, stderr := runCLI("lint", "-policy", "testdata/policy.yaml")
		require.Equal(t, 0, code, stderr)
		assert.Equal(t, "ok fee_windows=2 status_rules=2 product_rules=2\n", stdout)
	})

	t.Run("malformed policy", func(t *testing.T) {
		code, _, stderr := runCLI("lint", "-policy", "testdata/malformed.yaml")
		assert.Equal(t, 1, code)
		assert.Contains(t, stderr, "malformed policy")
	})

	t.Run("missing flag", func(t *testing.T) {
		code, _, stderr := runCLI("lint")
		assert.Equal(t, 2, code)
		assert.Contains(t, stderr, "lint requires -policy")
	})

	t.Run("missing file", func(t *testing.T) {
		code, _, _ := runCLI("lint", "-policy", "testdata/nope.yaml")
		assert.Equal(t, 1, code)
	})
}

func TestEvaluateCancellation(t *testing.T) {
	tests := []struct {
		name   string
		now    string
		status string
		rule   string
		fee    float64
	}{
		{"inside auto-approve window", "2026-03-10T11:20:00Z", "AUTO_APPROVED", "AUTO_APPROVE_WINDOW", 0},
		{"free fee window", "2026-03-10T11:40:00Z", "AUTO_APPROVED", "FEE_WINDOW", 0},
		{"late fee window", "2026-03-10T12:00:00Z", "PENDING", "FEE_WINDOW", 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := runCLI("evaluate", "cancellation",
				"-policy", "testdata/policy.yaml",
				"-order", "testdata/order_confirmed.yaml",
				"-reason", "changed my mind",
				"-now", tt.now)
			require.Equal(t, 0, code, stderr)

			decision := decodeDecision(t, stdout)
			assert.Equal(t, tt.status, decision["status"])
			assert.Equal(t, tt.rule, decision["rule"])
			assert.Equal(t, tt.fee, decision["fee"])
		})
	}
}

func TestEvaluateCancellation_NoPolicy(t *testing.T) {
	code, stdout, stderr := runCLI("evaluate", "cancellation", "-order", "testdata/order_confirmed.yaml")
	require.Equal(t, 0, code, stderr)

	decision := decodeDecision(t, stdout)
	assert.Equal(t, "PENDING", decision["status"])
	assert.Equal(t, "NO_POLICY", decision["rule"])
	assert.Equal(t, false, decision["autoProcessed"])
}

func TestEvaluateRefund(t *testing.T) {
	base := []string{"evaluate", "refund",
		"-policy", "testdata/policy.yaml",
		"-order", "testdata/order_delivered.yaml",
		"-now", "2026-03-10T12:00:00Z"}

	t.Run("fast path", func(t *testing.T) {
		code, stdout, stderr := runCLI(append(base, "-reason", policy.ReasonDamagedProduct, "-amount", "20", "-items", foodItem)...)
		require.Equal(t, 0, code, stderr)

		decision := decodeDecision(t, stdout)
		assert.Equal(t, "AUTO_APPROVED", decision["status"])
		assert.Equal(t, "REASON_FAST_PATH", decision["rule"])
		assert.Equal(t, float64(20), decision["approvedAmount"])
	})

	t.Run("above ceiling", func(t *testing.T) {
		code, stdout, stderr := runCLI(append(base, "-reason", policy.ReasonDamagedProduct, "-amount", "20", "-ceiling", "10")...)
		require.Equal(t, 0, code, stderr)

		decision := decodeDecision(t, stdout)
		assert.Equal(t, "PENDING", decision["status"])
		assert.Equal(t, "NO_MATCH", decision["rule"])
	})

	t.Run("non-refundable category", func(t *testing.T) {
		code, stdout, stderr := runCLI(append(base, "-reason", "OTHER", "-amount", "10", "-items", foodItem+","+drinksItem)...)
		require.Equal(t, 0, code, stderr)

		decision := decodeDecision(t, stdout)
		assert.Equal(t, "REJECTED", decision["status"])
		assert.Equal(t, "PRODUCT_RULE", decision["rule"])
	})

	t.Run("past time limit", func(t *testing.T) {
		args := []string{"evaluate", "refund",
			"-policy", "testdata/policy.yaml",
			"-order", "testdata/order_delivered.yaml",
			"-now", "2026-03-20T12:00:00Z",
			"-reason", policy.ReasonMissingItems, "-amount", "5"}
		code, stdout, stderr := runCLI(args...)
		require.Equal(t, 0, code, stderr)

		decision := decodeDecision(t, stdout)
		assert.Equal(t, "REJECTED", decision["status"])
		assert.Equal(t, "TIME_LIMIT", decision["rule"])
	})

	t.Run("bad item id", func(t *testing.T) {
		code, _, stderr := runCLI(append(base, "-reason", "OTHER", "-items", "abc")...)
		assert.Equal(t, 2, code)
		assert.Contains(t, stderr, "items:")
	})

	t.Run("negative amount", func(t *testing.T) {
		code, _, stderr := runCLI(append(base, "-reason", "OTHER", "-amount", "-5")...)
		assert.Equal(t, 2, code)
		assert.Contains(t, stderr, "amount:")
	})
}

func TestEvaluate_Arguments(t *testing.T) {
	t.Run("unknown kind", func(t *testing.T) {
		code, _, stderr := runCLI("evaluate", "exchange")
		assert.Equal(t, 2, code)
		assert.Contains(t, stderr, "evaluate requires cancellation or refund")
	})

	t.Run("missing order", func(t *testing.T) {
		code, _, stderr := runCLI("evaluate", "cancellation", "-policy", "testdata/policy.yaml")
		assert.Equal(t, 2, code)
		assert.Contains(t, stderr, "evaluate requires -order")
	})

	t.Run("bad now", func(t *testing.T) {
		code, _, stderr := runCLI("evaluate", "cancellation", "-order", "testdata/order_confirmed.yaml", "-now", "yesterday")
		assert.Equal(t, 2, code)
		assert.Contains(t, stderr, "now:")
	})
}

func TestLoadOrder_Validation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "order.yaml")
	require.NoError(t, os.WriteFile(path, []byte("status: SHIPPED\ncreatedAt: \"2026-03-10T11:15:00Z\"\ntotalPrice: \"1.00\"\n"), 0o600))

	_, err := loadOrder(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown order status")
}

func TestLoadOrder_GeneratesItemIDs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "order.yaml")
	body := "status: PENDING\ncreatedAt: \"2026-03-10T11:15:00Z\"\ntotalPrice: \"9.50\"\nitems:\n  - categoryId: food\n    unitPrice: \"9.50\"\n    quantity: 1\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	order, err := loadOrder(path)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", order.Items[0].ID.String())
	assert.Equal(t, policy.CategoryID("food"), order.Items[0].CategoryID)
}
