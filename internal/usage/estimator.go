// Package usage models resource consumption for the min/expected/max cost
// scenarios. Usage is decoupled from resource definitions so the same
// estimator logic can be scaled by a usage profile's multipliers.
package usage

import (
	"context"

	"cloudcost/core/types"
)

// Estimator produces usage vectors for a single resource type.
type Estimator interface {
	// Provider returns the cloud provider this estimator handles.
	Provider() types.Provider

	// ResourceType returns the resource type this estimator handles
	// (e.g. "aws_instance").
	ResourceType() string

	// Estimate produces usage vectors for one enriched resource graph node.
	Estimate(ctx context.Context, node *types.ERGNode, uctx *Context) ([]types.UsageVector, error)
}

// Context carries the inputs an Estimator needs beyond the node itself.
type Context struct {
	// Profile is the active usage profile.
	Profile *types.UsageProfile

	// Environment is the target environment (dev, staging, prod).
	Environment string

	// Region is the deployment region.
	Region types.Region

	// Scenario selects which of min/expected/max is being estimated.
	Scenario types.UsageScenario

	// CustomDefaults are additional default values layered beneath the
	// profile's own defaults.
	CustomDefaults map[types.UsageMetric]float64
}

// DefaultContext creates a usage context with sensible defaults.
func DefaultContext() *Context {
	return &Context{
		Environment: "production",
		Scenario:    types.ScenarioExpected,
	}
}

// EstimatorRegistry manages estimator registration and lookup, keyed by
// provider and resource type.
type EstimatorRegistry interface {
	Register(estimator Estimator) error
	GetEstimator(provider types.Provider, resourceType string) (Estimator, bool)
	GetProviderEstimators(provider types.Provider) []Estimator
}

// EstimationResult is the output of estimating usage for one resource.
type EstimationResult struct {
	ResourceID string

	Vectors []types.UsageVector

	Confidence types.Confidence

	// Assumptions lists human-readable notes about how the estimate was
	// derived, surfaced in reports so a reader can judge trustworthiness.
	Assumptions []string
}

// Manager orchestrates usage estimation across an entire enriched resource
// graph, producing the Usage-Annotated Resource Graph.
type Manager interface {
	// EstimateAll estimates usage for every node in graph across all three
	// scenarios and returns the resulting UARG.
	EstimateAll(ctx context.Context, graph *types.ERG, uctx *Context) (*types.UARG, error)

	// EstimateNode estimates usage for a single node.
	EstimateNode(ctx context.Context, node *types.ERGNode, uctx *Context) (*EstimationResult, error)
}
