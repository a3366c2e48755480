// Package metadata enriches plan-derived resource nodes with attributes
// only a cloud provider's describe APIs can supply (instance vCPU/memory,
// default EBS volume size, LCU pricing inputs) and synthesizes the
// implicit billable resources a declared one creates (a root volume, an
// ENI, a default security group).
package metadata

import (
	"context"

	"cloudcost/core/types"
)

// Adapter enriches nodes of the resource types it handles and can
// synthesize implicit billable nodes a declared resource creates.
// Grounded on the original resolver's BaseServiceAdapter: one adapter per
// AWS service, dispatched by resource-type prefix.
type Adapter interface {
	// Handles reports whether this adapter enriches resourceType.
	Handles(resourceType string) bool

	// Enrich fills in EnrichedAttributes on node from a provider describe
	// call, returning the same node (ResourceID and Address untouched).
	Enrich(ctx context.Context, node *types.ERGNode) (*types.ERGNode, error)

	// DetectImplicit returns any billable resources node's declaration
	// implies but that Terraform never declares explicitly (e.g. an EC2
	// instance's root EBS volume).
	DetectImplicit(ctx context.Context, node *types.ERGNode) ([]*types.ERGNode, error)
}

// Registry dispatches enrichment across every registered Adapter.
type Registry struct {
	adapters []Adapter
}

// NewRegistry creates an empty registry. Register adapters with Register
// before calling Enrich.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds an adapter. Adapters are tried in registration order; the
// first one whose Handles returns true for a node's resource type owns it.
func (r *Registry) Register(a Adapter) {
	r.adapters = append(r.adapters, a)
}

// EnrichGraph runs every declared node in graph through its matching
// adapter (if any), appending implicit nodes the adapters synthesize, and
// returns the resulting Enriched Resource Graph. Nodes with no matching
// adapter pass through unchanged rather than erroring, since not every
// resource type needs provider enrichment.
func (r *Registry) EnrichGraph(ctx context.Context, nrg *types.NRG) (*types.ERG, error) {
	erg := &types.ERG{}

	for _, n := range nrg.Nodes {
		node := types.ERGNode{NRGNode: n, Provenance: types.ProvenanceDeclared}
		adapter := r.find(n.Type)

		if adapter != nil {
			enriched, err := adapter.Enrich(ctx, &node)
			if err != nil {
				return nil, err
			}
			node = *enriched

			implicit, err := adapter.DetectImplicit(ctx, &node)
			if err != nil {
				return nil, err
			}
			for _, child := range implicit {
				child.Provenance = types.ProvenanceImplicit
				child.ParentResourceID = node.ResourceID
				erg.Nodes = append(erg.Nodes, *child)
			}
		}

		erg.Nodes = append(erg.Nodes, node)
	}

	erg.Index()
	return erg, nil
}

func (r *Registry) find(resourceType string) Adapter {
	for _, a := range r.adapters {
		if a.Handles(resourceType) {
			return a
		}
	}
	return nil
}
