package costengine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cloudcost/core/types"
)

func TestComputePricesKnownDimension(t *testing.T) {
	node := types.UARGNode{
		ERGNode: types.ERGNode{
			NRGNode: types.NRGNode{
				ResourceID: "res-1",
				Address:    "aws_instance.web",
				Type:       "aws_instance",
				Provider:   types.ProviderAWS,
				Region:     "us-east-1",
				Confidence: types.ConfidenceHigh,
			},
		},
		Confidence: types.ConfidenceHigh,
		Usage: map[string]types.UsageVector{
			"instance-hours": {Metric: types.MetricMonthlyHours, Value: 730},
		},
	}
	graph := &types.UARG{Nodes: []types.UARGNode{node}}

	key := rateKeyFor(node, "instance-hours")
	prices := &types.PricingResult{Rates: map[string]types.Rate{
		key.String(): {
			Key:             key,
			Price:           decimal.NewFromFloat(0.10),
			Unit:            types.UnitHour,
			Currency:        types.CurrencyUSD,
			EffectiveFrom:   time.Now(),
			MatchConfidence: types.ConfidenceHigh,
		},
	}}

	fcm, err := New().Compute(context.Background(), graph, prices)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(fcm.ResourceCosts) != 1 {
		t.Fatalf("expected 1 resource cost, got %d", len(fcm.ResourceCosts))
	}
	want := decimal.NewFromFloat(73.0)
	if !fcm.Total.Expected.Equal(want) {
		t.Fatalf("expected total %s, got %s", want, fcm.Total.Expected)
	}
	if fcm.OverallConfidence != types.ConfidenceHigh {
		t.Fatalf("expected HIGH confidence, got %s", fcm.OverallConfidence)
	}
	if fcm.DeterminismHash == "" {
		t.Fatal("expected a non-empty determinism hash")
	}
}

func TestComputeDegradesConfidenceOnMissingRate(t *testing.T) {
	node := types.UARGNode{
		ERGNode: types.ERGNode{
			NRGNode: types.NRGNode{
				ResourceID: "res-2",
				Address:    "aws_instance.unpriced",
				Type:       "aws_instance",
				Provider:   types.ProviderAWS,
				Region:     "us-east-1",
				Confidence: types.ConfidenceHigh,
			},
		},
		Confidence: types.ConfidenceHigh,
		Usage: map[string]types.UsageVector{
			"instance-hours": {Metric: types.MetricMonthlyHours, Value: 730},
		},
	}
	graph := &types.UARG{Nodes: []types.UARGNode{node}}
	prices := &types.PricingResult{Rates: map[string]types.Rate{}}

	fcm, err := New().Compute(context.Background(), graph, prices)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if fcm.ResourceCosts[0].Confidence != types.ConfidenceLow {
		t.Fatalf("expected LOW confidence for an unpriced dimension, got %s", fcm.ResourceCosts[0].Confidence)
	}
	if !fcm.ResourceCosts[0].Scenario.Expected.IsZero() {
		t.Fatalf("expected zero cost for an unpriced dimension, got %s", fcm.ResourceCosts[0].Scenario.Expected)
	}
}

func TestDeterminismHashStableAcrossRuns(t *testing.T) {
	node := types.UARGNode{
		ERGNode: types.ERGNode{NRGNode: types.NRGNode{
			ResourceID: "res-3",
			Type:       "aws_instance",
			Provider:   types.ProviderAWS,
			Region:     "us-east-1",
		}},
		Usage: map[string]types.UsageVector{
			"instance-hours": {Value: 100},
		},
	}
	key := rateKeyFor(node, "instance-hours")
	prices := &types.PricingResult{Rates: map[string]types.Rate{
		key.String(): {Key: key, Price: decimal.NewFromFloat(1), Unit: types.UnitHour, Currency: types.CurrencyUSD, MatchConfidence: types.ConfidenceHigh},
	}}
	graph := &types.UARG{Nodes: []types.UARGNode{node}}

	fcm1, err := New().Compute(context.Background(), graph, prices)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	fcm2, err := New().Compute(context.Background(), graph, prices)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if fcm1.DeterminismHash != fcm2.DeterminismHash {
		t.Fatalf("expected identical determinism hashes across runs, got %s vs %s", fcm1.DeterminismHash, fcm2.DeterminismHash)
	}
}
