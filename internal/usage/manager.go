package usage

import (
	"context"
	"fmt"
	"sort"

	"cloudcost/core/types"
)

// Config selects which profile and overrides a Manager applies.
type Config struct {
	ProfileName string
	Overrides   *OverrideSet
}

// manager is the concrete Manager: for each resource it tries a registered
// Estimator first (a resource type with provider-specific usage logic
// beyond simple scenario triples, e.g. deriving NAT gateway data processed
// from the VPC's route table fan-out), then falls back to the profile's
// flat scenario entry, applies override precedence, and folds the result
// into the Usage-Annotated Resource Graph the cost engine consumes.
type manager struct {
	registry   *Registry
	estimators EstimatorRegistry
	config     Config
	tracker    *AssumptionTracker
}

// NewManager builds a Manager backed by registry, applying cfg's profile
// and overrides to every estimate. estimators may be nil, in which case
// every resource is estimated from its profile entry alone.
func NewManager(registry *Registry, estimators EstimatorRegistry, cfg Config) Manager {
	return &manager{registry: registry, estimators: estimators, config: cfg, tracker: NewAssumptionTracker()}
}

// EstimateAll estimates usage for every node in graph, in graph order, and
// returns the resulting UARG indexed by resource ID.
func (m *manager) EstimateAll(ctx context.Context, graph *types.ERG, uctx *Context) (*types.UARG, error) {
	if graph == nil {
		return nil, fmt.Errorf("usage: nil graph")
	}

	uarg := &types.UARG{Nodes: make([]types.UARGNode, 0, len(graph.Nodes))}
	for i := range graph.Nodes {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		node := graph.Nodes[i]
		result, err := m.EstimateNode(ctx, &node, uctx)
		if err != nil {
			return nil, fmt.Errorf("usage: estimate %s: %w", node.Address, err)
		}
		uarg.Nodes = append(uarg.Nodes, uargNodeFrom(node, result))
	}
	uarg.Index()
	return uarg, nil
}

// EstimateNode implements the §4.7 usage modeling rule for a single
// resource: look up the profile entry for its resource type, apply
// overrides in resource > service > global precedence, enforce scenario
// monotonicity, and derive confidence from whether an override fired or
// the resulting scenario collapsed to a single deterministic value.
func (m *manager) EstimateNode(ctx context.Context, node *types.ERGNode, uctx *Context) (*EstimationResult, error) {
	result := &EstimationResult{ResourceID: node.ResourceID}

	byMetric, hasBase, err := m.baseScenarios(ctx, node, uctx)
	if err != nil {
		return nil, err
	}
	if !hasBase {
		result.Confidence = types.ConfidenceLow
		result.Assumptions = []string{fmt.Sprintf("no usage profile entry for %s; no usage annotated", node.Type)}
		return result, nil
	}

	metrics := make([]types.UsageMetric, 0, len(byMetric))
	for metric := range byMetric {
		metrics = append(metrics, metric)
	}
	sort.Slice(metrics, func(i, j int) bool { return metrics[i] < metrics[j] })

	vectors := make([]types.UsageVector, 0, len(metrics))
	assumptions := make([]string, 0, len(metrics))
	anyOverride := false

	for _, metric := range metrics {
		entryScenario := byMetric[metric]
		min, expected, max := entryScenario.Min, entryScenario.Expected, entryScenario.Max
		unit := entryScenario.Unit
		source := types.SourceProfile

		if ov, ok := m.config.Overrides.Resolve(node.Address, node.Type, metric); ok {
			min, expected, max = ov.Value, ov.Value, ov.Value
			if ov.Unit != "" {
				unit = ov.Unit
			}
			source = types.SourceOverride
			anyOverride = true
			assumptions = append(assumptions, fmt.Sprintf("%s overridden at %s tier to %v %s", metric, ov.Tier, ov.Value, unit))
			m.tracker.RecordDefault(node.Type, string(metric), ov.Value, unit, 0)
		} else if entryScenario.Assumption != "" {
			assumptions = append(assumptions, entryScenario.Assumption)
		}

		if max < expected || expected < min {
			min, expected, max = sortAscending(min, expected, max)
			assumptions = append(assumptions, fmt.Sprintf("%s scenario was non-monotonic; normalized to ascending order", metric))
		}

		minCopy, maxCopy := min, max
		vectors = append(vectors, types.UsageVector{
			Metric:      metric,
			Value:       expected,
			Min:         &minCopy,
			Max:         &maxCopy,
			Source:      source,
			Description: entryScenario.Assumption,
		})
	}

	deterministic := true
	for _, v := range vectors {
		if v.Min == nil || v.Max == nil || *v.Min != v.Value || *v.Max != v.Value {
			deterministic = false
			break
		}
	}

	result.Vectors = vectors
	result.Assumptions = assumptions
	if anyOverride || deterministic {
		result.Confidence = types.ConfidenceHigh
	} else {
		result.Confidence = types.ConfidenceMedium
	}
	return result, nil
}

// baseScenarios returns the pre-override scenario triples for node, keyed
// by metric. A registered Estimator for node's provider/type takes
// precedence over the profile entry — it's presumed to know more about
// this specific resource type than a flat YAML triple can express — with
// the profile entry as the fallback when no estimator is registered.
func (m *manager) baseScenarios(ctx context.Context, node *types.ERGNode, uctx *Context) (map[types.UsageMetric]ScenarioEntry, bool, error) {
	if m.estimators != nil {
		if est, ok := m.estimators.GetEstimator(node.Provider, node.Type); ok {
			vectors, err := est.Estimate(ctx, node, uctx)
			if err != nil {
				return nil, false, fmt.Errorf("estimator %s/%s: %w", node.Provider, node.Type, err)
			}
			if len(vectors) > 0 {
				byMetric := make(map[types.UsageMetric]ScenarioEntry, len(vectors))
				for _, v := range vectors {
					min, max := v.Value, v.Value
					if v.Min != nil {
						min = *v.Min
					}
					if v.Max != nil {
						max = *v.Max
					}
					byMetric[v.Metric] = ScenarioEntry{
						Metric: v.Metric, Min: min, Expected: v.Value, Max: max,
						Assumption: v.Description,
					}
				}
				return byMetric, true, nil
			}
		}
	}

	profile, hasProfile := m.profileFor(uctx)
	if !hasProfile {
		return nil, false, nil
	}
	entry, hasEntry := profile.EntryFor(node.Type)
	if !hasEntry {
		return nil, false, nil
	}
	byMetric := make(map[types.UsageMetric]ScenarioEntry, len(entry.Scenarios))
	for _, s := range entry.Scenarios {
		byMetric[s.Metric] = s
	}
	return byMetric, true, nil
}

func (m *manager) profileFor(uctx *Context) (*Profile, bool) {
	name := m.config.ProfileName
	if uctx != nil && uctx.Profile != nil && uctx.Profile.Name != "" {
		name = uctx.Profile.Name
	}
	if name == "" || m.registry == nil {
		return nil, false
	}
	return m.registry.Get(name)
}

// sortAscending returns a, b, c reordered so the result is non-decreasing,
// the normalization the monotonicity invariant calls for on violation.
func sortAscending(a, b, c float64) (float64, float64, float64) {
	vals := []float64{a, b, c}
	sort.Float64s(vals)
	return vals[0], vals[1], vals[2]
}

// uargNodeFrom folds an estimation result into a UARGNode, keyed by usage
// metric so the cost engine can price each dimension independently.
func uargNodeFrom(node types.ERGNode, result *EstimationResult) types.UARGNode {
	usage := make(map[string]types.UsageVector, len(result.Vectors))
	for _, v := range result.Vectors {
		usage[string(v.Metric)] = v
	}
	return types.UARGNode{
		ERGNode:     node,
		Usage:       usage,
		Assumptions: result.Assumptions,
		Confidence:  node.Confidence.Min(result.Confidence),
	}
}
