// Package costengine computes the Final Cost Model from a
// Usage-Annotated Resource Graph and a resolved pricing result. It is a
// pure package: no I/O, no network calls, every number traceable back to a
// UARGNode's usage vectors and the Rate that priced them.
package costengine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"cloudcost/core/determinism"
	"cloudcost/core/types"
)

// Engine computes a Final Cost Model from a UARG and resolved rates.
type Engine struct{}

// New creates a cost engine. It holds no state: every Compute call is
// independent and deterministic in its inputs.
func New() *Engine {
	return &Engine{}
}

// Compute prices every node in graph against prices and aggregates the
// result into a Final Cost Model. Nodes whose usage dimensions cannot be
// priced are still included, their missing dimensions surfaced as
// MEDIUM/LOW confidence rather than silently omitted from the total.
func (e *Engine) Compute(ctx context.Context, graph *types.UARG, prices *types.PricingResult) (*types.FCM, error) {
	if graph == nil {
		return nil, fmt.Errorf("costengine: nil graph")
	}
	if prices == nil {
		return nil, fmt.Errorf("costengine: nil pricing result")
	}

	fcm := &types.FCM{Currency: types.CurrencyUSD}

	nodes := make([]types.UARGNode, len(graph.Nodes))
	copy(nodes, graph.Nodes)
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].ResourceID < nodes[j].ResourceID
	})

	service := make(map[string]string, len(nodes))
	region := make(map[string]string, len(nodes))

	for _, node := range nodes {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		service[node.ResourceID] = node.Type
		region[node.ResourceID] = string(node.Region)
		fcm.ResourceCosts = append(fcm.ResourceCosts, e.priceNode(node, prices))
	}

	fcm.AggregatedByService = aggregate(fcm.ResourceCosts, func(rc types.ResourceCost) string {
		return service[rc.ResourceID]
	}, "service")
	fcm.AggregatedByRegion = aggregate(fcm.ResourceCosts, func(rc types.ResourceCost) string {
		return region[rc.ResourceID]
	}, "region")

	fcm.Summarize()
	// Every resource here comes from a single plan with no baseline FCM to
	// diff against yet, so the diff is the full scenario. Once a prior
	// FCM is threaded in for comparison, this becomes Total.Sub(baseline).
	fcm.Diff = types.Diff{Scenario: fcm.Total}
	fcm.DeterminismHash = determinismHash(fcm)
	return fcm, nil
}

// priceNode turns one UARGNode's usage vectors into a ResourceCost,
// resolving each dimension's rate independently so a single missing rate
// degrades only that dimension's confidence, not the whole resource's.
func (e *Engine) priceNode(node types.UARGNode, prices *types.PricingResult) types.ResourceCost {
	rc := types.ResourceCost{
		ResourceID: node.ResourceID,
		Address:    node.Address,
		Confidence: node.Confidence,
	}

	confidence := node.Confidence
	labels := make([]string, 0, len(node.Usage))
	for label := range node.Usage {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	scenario := types.Scenario{Currency: types.CurrencyUSD}

	for _, label := range labels {
		vector := node.Usage[label]
		key := rateKeyFor(node, label)
		rate, ok := prices.GetRate(key)
		dim := types.CostDimension{
			Label:   label,
			RateKey: key,
		}

		if !ok {
			dim.Confidence = types.ConfidenceLow
			rc.ConfidenceSources = append(rc.ConfidenceSources, label+":unpriced")
			confidence = confidence.Min(types.ConfidenceLow)
			rc.Dimensions = append(rc.Dimensions, dim)
			continue
		}

		dim.Unit = rate.Unit
		dim.UnitPrice = rate.Price
		dim.Quantity = decimal.NewFromFloat(vector.Value)
		dim.Amount = rate.CalculateTieredCost(dim.Quantity)
		dim.Confidence = rate.MatchConfidence

		confidence = confidence.Min(rate.MatchConfidence)
		if rate.MatchConfidence != types.ConfidenceHigh {
			rc.ConfidenceSources = append(rc.ConfidenceSources, label+":"+string(rate.MatchConfidence))
		}

		scenario.Expected = scenario.Expected.Add(dim.Amount)
		scenario.Min = scenario.Min.Add(scenarioBound(vector, dim, vector.Min))
		scenario.Max = scenario.Max.Add(scenarioBound(vector, dim, vector.Max))

		rc.Dimensions = append(rc.Dimensions, dim)
	}

	scenario.EnforceMonotonic()
	rc.Scenario = scenario
	rc.Diff = types.Diff{Scenario: scenario}
	rc.Confidence = confidence
	return rc
}

// scenarioBound prices the dimension's min/max usage bound instead of its
// expected value, falling back to the expected amount when the vector
// carries no explicit range (most usage estimates don't).
func scenarioBound(vector types.UsageVector, dim types.CostDimension, bound *float64) decimal.Decimal {
	if bound == nil {
		return dim.Amount
	}
	return decimal.NewFromFloat(*bound).Mul(dim.UnitPrice)
}

// rateKeyFor derives the RateKey a usage dimension prices against from its
// owning node. The usage label becomes part of the SKU attribute set so
// distinct dimensions on the same resource (e.g. "instance-hours" versus
// "ebs-gb-month") never collide in the pricing result's key space.
func rateKeyFor(node types.UARGNode, label string) types.RateKey {
	attrs := make(map[string]string, len(node.Attributes)+1)
	for k, v := range node.Attributes {
		attrs[k] = fmt.Sprintf("%v", v.Value)
	}
	attrs["usage_dimension"] = label

	return types.RateKey{
		Provider:      node.Provider,
		Service:       node.Type,
		ProductFamily: label,
		Region:        string(node.Region),
		Attributes:    attrs,
	}
}

// aggregate groups resource costs by keyFn into AggregatedCost entries,
// sorted by group value for deterministic output.
func aggregate(costs []types.ResourceCost, keyFn func(types.ResourceCost) string, groupBy string) []types.AggregatedCost {
	groups := make(map[string]*types.AggregatedCost)
	var order []string

	for _, rc := range costs {
		key := keyFn(rc)
		agg, ok := groups[key]
		if !ok {
			agg = &types.AggregatedCost{GroupBy: groupBy, GroupValue: key, Confidence: types.ConfidenceHigh}
			groups[key] = agg
			order = append(order, key)
		}
		agg.Scenario = agg.Scenario.Add(rc.Scenario)
		agg.Diff.Scenario = agg.Diff.Scenario.Add(rc.Diff.Scenario)
		agg.ResourceCount++
		agg.Confidence = agg.Confidence.Min(rc.Confidence)
	}

	sort.Strings(order)
	out := make([]types.AggregatedCost, 0, len(order))
	for _, key := range order {
		out = append(out, *groups[key])
	}
	return out
}

// hashRow is the canonical per-resource row hashed into an FCM's
// DeterminismHash: only the numbers that must reproduce identically across
// runs, never timestamps or free-text explanation fields.
type hashRow struct {
	ResourceID string `json:"resource_id"`
	Min        string `json:"min"`
	Expected   string `json:"expected"`
	Max        string `json:"max"`
}

// determinismHash computes the FCM's content hash from a canonical JSON
// encoding of its sorted resource costs, matching the recipe used by the
// pricing snapshot hasher: sort first, then hash, so serialization order
// never leaks into the digest.
func determinismHash(fcm *types.FCM) string {
	rows := make([]hashRow, 0, len(fcm.ResourceCosts))
	for _, rc := range fcm.ResourceCosts {
		rows = append(rows, hashRow{
			ResourceID: rc.ResourceID,
			Min:        rc.Scenario.Min.String(),
			Expected:   rc.Scenario.Expected.String(),
			Max:        rc.Scenario.Max.String(),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ResourceID < rows[j].ResourceID })

	data, err := json.Marshal(rows)
	if err != nil {
		return ""
	}
	return determinism.ComputeHash(data).Hex()[:16]
}
