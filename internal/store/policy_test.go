package store

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"cloudcost/core/types"
)

func fcmWithExpected(expected float64, confidence types.Confidence) *types.FCM {
	return &types.FCM{
		Total: types.Scenario{
			Expected: decimal.NewFromFloat(expected),
			Currency: types.CurrencyUSD,
		},
		OverallConfidence: confidence,
		Currency:          types.CurrencyUSD,
	}
}

func TestGateEvaluatePassesWhenEveryRulePasses(t *testing.T) {
	gate := NewGate(
		&ThresholdRule{Max: 1000},
		&MinConfidenceRule{Floor: types.ConfidenceMedium},
	)

	verdict, err := gate.Evaluate(context.Background(), fcmWithExpected(100, types.ConfidenceHigh))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !verdict.Passed {
		t.Fatalf("expected gate to pass, got violations: %v", verdict.Violations)
	}
	if verdict.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", verdict.ExitCode)
	}
}

func TestGateEvaluateFailsAndCollectsEveryViolation(t *testing.T) {
	gate := NewGate(
		&ThresholdRule{Max: 50},
		&MinConfidenceRule{Floor: types.ConfidenceHigh},
	)

	verdict, err := gate.Evaluate(context.Background(), fcmWithExpected(100, types.ConfidenceLow))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if verdict.Passed {
		t.Fatal("expected gate to fail")
	}
	if verdict.ExitCode != 1 {
		t.Fatalf("expected exit code 1, got %d", verdict.ExitCode)
	}
	if len(verdict.Violations) != 2 {
		t.Fatalf("expected both rules to report a violation, got %v", verdict.Violations)
	}
}

func TestMaxDeltaRuleIgnoresZeroBaseline(t *testing.T) {
	rule := &MaxDeltaRule{Baseline: 0, MaxDeltaFraction: 0.1}
	result, err := rule.Evaluate(context.Background(), fcmWithExpected(1000000, types.ConfidenceHigh))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !result.Passed {
		t.Fatal("a zero baseline should never fail the max-delta rule")
	}
}

func TestMaxDeltaRuleFailsBeyondConfiguredFraction(t *testing.T) {
	fcm := fcmWithExpected(100, types.ConfidenceHigh)
	fcm.Diff = types.Diff{Scenario: types.Scenario{Expected: decimal.NewFromFloat(60), Currency: types.CurrencyUSD}}

	rule := &MaxDeltaRule{Baseline: 100, MaxDeltaFraction: 0.5}
	result, err := rule.Evaluate(context.Background(), fcm)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Passed {
		t.Fatal("expected a 60% delta against a 50% ceiling to fail")
	}
}
