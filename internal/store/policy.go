// Package store implements the immutable result store and the policy gate
// evaluated against a completed cost result before it is released.
package store

import (
	"context"

	"cloudcost/core/types"
)

// Rule is a single policy check run against a completed Final Cost Model.
type Rule interface {
	Name() string
	Description() string

	// Evaluate checks the rule against an FCM and reports the outcome.
	Evaluate(ctx context.Context, fcm *types.FCM) (*RuleResult, error)
}

// RuleResult is the outcome of evaluating a single Rule.
type RuleResult struct {
	RuleName string `json:"rule_name"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message"`
}

// Gate runs a fixed set of rules against an FCM and produces a single
// pass/fail verdict with the process exit code a CLI invocation should use.
type Gate struct {
	rules []Rule
}

// NewGate builds a gate from the given rules, applied in order.
func NewGate(rules ...Rule) *Gate {
	return &Gate{rules: rules}
}

// Evaluate runs every rule and folds the results into a PolicyVerdict.
// Any single failing rule fails the whole gate.
func (g *Gate) Evaluate(ctx context.Context, fcm *types.FCM) (*types.PolicyVerdict, error) {
	verdict := &types.PolicyVerdict{Passed: true}
	for _, rule := range g.rules {
		result, err := rule.Evaluate(ctx, fcm)
		if err != nil {
			return nil, err
		}
		if !result.Passed {
			verdict.Passed = false
			verdict.Violations = append(verdict.Violations, result.Message)
		}
	}
	if !verdict.Passed {
		verdict.ExitCode = 1
	}
	return verdict, nil
}

// ThresholdRule fails when the FCM's expected monthly total exceeds Limit.
type ThresholdRule struct {
	Limit types.Currency
	Max   float64
}

// Name returns the rule identifier.
func (r *ThresholdRule) Name() string { return "monthly-cost-threshold" }

// Description returns a human-readable summary of the rule.
func (r *ThresholdRule) Description() string {
	return "fails when the expected monthly cost exceeds a configured ceiling"
}

// Evaluate implements Rule.
func (r *ThresholdRule) Evaluate(ctx context.Context, fcm *types.FCM) (*RuleResult, error) {
	expected, _ := fcm.Total.Expected.Float64()
	if expected > r.Max {
		return &RuleResult{
			RuleName: r.Name(),
			Passed:   false,
			Message:  "expected monthly cost exceeds configured threshold",
		}, nil
	}
	return &RuleResult{RuleName: r.Name(), Passed: true}, nil
}

// MinConfidenceRule fails when the FCM's overall confidence is weaker than
// the configured floor.
type MinConfidenceRule struct {
	Floor types.Confidence
}

// Name returns the rule identifier.
func (r *MinConfidenceRule) Name() string { return "min-confidence" }

// Description returns a human-readable summary of the rule.
func (r *MinConfidenceRule) Description() string {
	return "fails when the overall estimate confidence falls below a configured floor"
}

// Evaluate implements Rule.
func (r *MinConfidenceRule) Evaluate(ctx context.Context, fcm *types.FCM) (*RuleResult, error) {
	if fcm.OverallConfidence.Min(r.Floor) != r.Floor {
		return &RuleResult{
			RuleName: r.Name(),
			Passed:   false,
			Message:  "overall confidence is below the configured floor",
		}, nil
	}
	return &RuleResult{RuleName: r.Name(), Passed: true}, nil
}

// MaxDeltaRule fails when the expected cost delta against a baseline exceeds
// a configured percentage.
type MaxDeltaRule struct {
	Baseline       float64
	MaxDeltaFraction float64
}

// Name returns the rule identifier.
func (r *MaxDeltaRule) Name() string { return "max-delta" }

// Description returns a human-readable summary of the rule.
func (r *MaxDeltaRule) Description() string {
	return "fails when the proposed change's cost delta exceeds a configured fraction of baseline"
}

// Evaluate implements Rule.
func (r *MaxDeltaRule) Evaluate(ctx context.Context, fcm *types.FCM) (*RuleResult, error) {
	if r.Baseline <= 0 {
		return &RuleResult{RuleName: r.Name(), Passed: true}, nil
	}
	delta, _ := fcm.Diff.Scenario.Expected.Float64()
	if delta/r.Baseline > r.MaxDeltaFraction {
		return &RuleResult{
			RuleName: r.Name(),
			Passed:   false,
			Message:  "cost delta exceeds the configured fraction of baseline spend",
		}, nil
	}
	return &RuleResult{RuleName: r.Name(), Passed: true}, nil
}
