package usage

import (
	"context"
	"testing"

	"cloudcost/core/types"
)

func sampleGraph() *types.ERG {
	return &types.ERG{
		Nodes: []types.ERGNode{
			{
				NRGNode: types.NRGNode{
					ResourceID: "res-web",
					Address:    "aws_instance.web",
					Type:       "aws_instance",
					Provider:   types.ProviderAWS,
					Region:     types.Region("us-east-1"),
					Confidence: types.ConfidenceHigh,
				},
			},
			{
				NRGNode: types.NRGNode{
					ResourceID: "res-unknown",
					Address:    "aws_db_instance.orphan",
					Type:       "aws_db_instance",
					Provider:   types.ProviderAWS,
					Confidence: types.ConfidenceHigh,
				},
			},
		},
	}
}

func sampleProfile() *Profile {
	p := &Profile{
		Name:    "prod",
		Version: "1",
		Entries: []ProfileEntry{
			{
				ResourceType: "aws_instance",
				Scenarios: []ScenarioEntry{
					{Metric: types.MetricMonthlyHours, Min: 730, Expected: 730, Max: 730, Unit: "hours", Assumption: "runs the full month"},
				},
			},
		},
	}
	return p
}

func TestEstimateAllAppliesProfileAndIsDeterministicHighConfidence(t *testing.T) {
	registry := NewRegistry()
	registry.Register(sampleProfile())

	mgr := NewManager(registry, nil, Config{ProfileName: "prod", Overrides: NewOverrideSet(nil)})
	uarg, err := mgr.EstimateAll(context.Background(), sampleGraph(), DefaultContext())
	if err != nil {
		t.Fatalf("EstimateAll: %v", err)
	}
	uarg.Index()

	node, ok := uarg.Lookup("res-web")
	if !ok {
		t.Fatal("expected res-web in the UARG")
	}
	vec, ok := node.Usage[string(types.MetricMonthlyHours)]
	if !ok {
		t.Fatal("expected a monthly_hours usage vector")
	}
	if vec.Value != 730 {
		t.Fatalf("expected 730 expected hours, got %v", vec.Value)
	}
	if node.Confidence != types.ConfidenceHigh {
		t.Fatalf("expected HIGH confidence for a deterministic scenario, got %s", node.Confidence)
	}
}

func TestEstimateAllMissingProfileEntryIsLowConfidence(t *testing.T) {
	registry := NewRegistry()
	registry.Register(sampleProfile())

	mgr := NewManager(registry, nil, Config{ProfileName: "prod", Overrides: NewOverrideSet(nil)})
	uarg, err := mgr.EstimateAll(context.Background(), sampleGraph(), DefaultContext())
	if err != nil {
		t.Fatalf("EstimateAll: %v", err)
	}
	uarg.Index()

	node, ok := uarg.Lookup("res-unknown")
	if !ok {
		t.Fatal("expected res-unknown in the UARG")
	}
	if node.Confidence != types.ConfidenceLow {
		t.Fatalf("expected LOW confidence for a resource with no profile entry, got %s", node.Confidence)
	}
	if len(node.Usage) != 0 {
		t.Fatalf("expected no usage vectors, got %v", node.Usage)
	}
}

func TestResourceOverrideBeatsServiceAndGlobal(t *testing.T) {
	registry := NewRegistry()
	registry.Register(sampleProfile())

	overrides := NewOverrideSet([]Override{
		{Tier: OverrideTierGlobal, Metric: types.MetricMonthlyHours, Value: 100, Unit: "hours"},
		{Tier: OverrideTierService, Match: "aws_instance", Metric: types.MetricMonthlyHours, Value: 200, Unit: "hours"},
		{Tier: OverrideTierResource, Match: "aws_instance.web", Metric: types.MetricMonthlyHours, Value: 300, Unit: "hours"},
	})

	mgr := NewManager(registry, nil, Config{ProfileName: "prod", Overrides: overrides})
	uarg, err := mgr.EstimateAll(context.Background(), sampleGraph(), DefaultContext())
	if err != nil {
		t.Fatalf("EstimateAll: %v", err)
	}
	uarg.Index()

	node, _ := uarg.Lookup("res-web")
	vec := node.Usage[string(types.MetricMonthlyHours)]
	if vec.Value != 300 {
		t.Fatalf("expected resource-tier override (300) to win, got %v", vec.Value)
	}
	if *vec.Min != 300 || *vec.Max != 300 {
		t.Fatalf("expected an override to collapse min=expected=max, got min=%v max=%v", *vec.Min, *vec.Max)
	}
	if node.Confidence != types.ConfidenceHigh {
		t.Fatalf("expected HIGH confidence when an override was applied, got %s", node.Confidence)
	}
}

func TestNonMonotonicScenarioIsNormalized(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&Profile{
		Name: "weird",
		Entries: []ProfileEntry{
			{
				ResourceType: "aws_instance",
				Scenarios: []ScenarioEntry{
					// Deliberately out of order: max < expected < min.
					{Metric: types.MetricMonthlyHours, Min: 700, Expected: 500, Max: 100, Unit: "hours"},
				},
			},
		},
	})

	mgr := NewManager(registry, nil, Config{ProfileName: "weird", Overrides: NewOverrideSet(nil)})
	uarg, err := mgr.EstimateAll(context.Background(), sampleGraph(), DefaultContext())
	if err != nil {
		t.Fatalf("EstimateAll: %v", err)
	}
	uarg.Index()

	node, _ := uarg.Lookup("res-web")
	vec := node.Usage[string(types.MetricMonthlyHours)]
	if *vec.Min > vec.Value || vec.Value > *vec.Max {
		t.Fatalf("expected normalized ascending scenario, got min=%v expected=%v max=%v", *vec.Min, vec.Value, *vec.Max)
	}
}
