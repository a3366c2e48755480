// Package types - Normalized and Enriched Resource Graph types
package types

// NRGNode is a single resource in the Normalized Resource Graph: the pure,
// deterministic expansion of a planned infrastructure change with no
// provider enrichment or pricing applied yet.
type NRGNode struct {
	// ResourceID is a stable identifier derived from address + attribute
	// content. Re-running interpretation on the same plan document yields
	// the same ResourceID.
	ResourceID string `json:"resource_id"`

	// Address is the fully-indexed resource address, including any
	// count/for_each instance key (e.g. aws_instance.web[2]).
	Address ResourceAddress `json:"address"`

	// Type is the resource type (e.g. "aws_instance")
	Type string `json:"type"`

	// Provider is the cloud provider that owns this resource type
	Provider Provider `json:"provider"`

	// Region is the resource's declared region, if known at this stage
	Region Region `json:"region,omitempty"`

	// Attributes holds attribute values known at plan time
	Attributes Attributes `json:"attributes"`

	// UnknownAttributes lists attribute names the plan could not resolve
	// (values only known after apply). Used to compute Confidence.
	UnknownAttributes []string `json:"unknown_attributes,omitempty"`

	// Quantity is the number of identical billable units this node
	// represents. Always 1 after multiplicity expansion splits count/
	// for_each into distinct nodes; kept for nodes that are inherently
	// multi-unit (e.g. a fleet declared with desired_capacity).
	Quantity int `json:"quantity"`

	// ModulePath is the ordered sequence of module names from root to this
	// resource (empty for root-module resources).
	ModulePath []string `json:"module_path,omitempty"`

	// Dependencies lists the ResourceIDs of nodes this node depends on.
	Dependencies []string `json:"dependencies,omitempty"`

	// Confidence reflects how much of this node's attribute set was known
	// at plan time versus computed after apply.
	Confidence Confidence `json:"confidence"`
}

// NRG is the Normalized Resource Graph produced by the plan interpreter: a
// flat, deterministically ordered collection of NRGNode plus the edges
// between them.
type NRG struct {
	Nodes []NRGNode `json:"nodes"`

	// ByID provides O(1) lookup by ResourceID. Not serialized; rebuilt by
	// Index after unmarshaling.
	ByID map[string]*NRGNode `json:"-"`
}

// Index rebuilds the ByID lookup table from Nodes. Call after constructing
// or deserializing an NRG before using Lookup/Walk.
func (g *NRG) Index() {
	g.ByID = make(map[string]*NRGNode, len(g.Nodes))
	for i := range g.Nodes {
		g.ByID[g.Nodes[i].ResourceID] = &g.Nodes[i]
	}
}

// Lookup returns the node with the given ResourceID, if present.
func (g *NRG) Lookup(resourceID string) (*NRGNode, bool) {
	if g.ByID == nil {
		g.Index()
	}
	n, ok := g.ByID[resourceID]
	return n, ok
}

// ResourceProvenance explains how an ERGNode came to exist.
type ResourceProvenance string

const (
	// ProvenanceDeclared means the resource appeared explicitly in the plan.
	ProvenanceDeclared ResourceProvenance = "DECLARED"

	// ProvenanceImplicit means a service adapter synthesized this resource
	// as a billable side-effect of a declared one (e.g. an EC2 instance's
	// root volume).
	ProvenanceImplicit ResourceProvenance = "IMPLICIT"

	// ProvenanceDerived means the resource's attributes were filled in or
	// corrected from a provider describe call rather than the plan itself.
	ProvenanceDerived ResourceProvenance = "DERIVED"
)

// ERGNode is an NRGNode after metadata enrichment: provider describe-API
// attributes merged in, plus any implicit billable sub-resources a service
// adapter synthesized.
type ERGNode struct {
	NRGNode

	// EnrichedAttributes holds attribute values discovered via provider
	// describe calls, layered on top of Attributes.
	EnrichedAttributes Attributes `json:"enriched_attributes,omitempty"`

	// Provenance explains how this node came to exist.
	Provenance ResourceProvenance `json:"provenance"`

	// ParentResourceID links an implicit node back to the resource that
	// caused it to be synthesized (e.g. a volume's owning instance).
	ParentResourceID string `json:"parent_resource_id,omitempty"`

	// AWSAccountID is the resolved account the resource lives in, when known.
	AWSAccountID string `json:"aws_account_id,omitempty"`

	// AvailabilityZone is the resolved zone, when more specific than Region.
	AvailabilityZone string `json:"availability_zone,omitempty"`
}

// ERG is the Enriched Resource Graph produced by the metadata resolver.
type ERG struct {
	Nodes []ERGNode `json:"nodes"`

	ByID map[string]*ERGNode `json:"-"`
}

// Index rebuilds the ByID lookup table from Nodes.
func (g *ERG) Index() {
	g.ByID = make(map[string]*ERGNode, len(g.Nodes))
	for i := range g.Nodes {
		g.ByID[g.Nodes[i].ResourceID] = &g.Nodes[i]
	}
}

// Lookup returns the node with the given ResourceID, if present.
func (g *ERG) Lookup(resourceID string) (*ERGNode, bool) {
	if g.ByID == nil {
		g.Index()
	}
	n, ok := g.ByID[resourceID]
	return n, ok
}

// Declared returns only nodes with ProvenanceDeclared, in graph order.
func (g *ERG) Declared() []ERGNode {
	out := make([]ERGNode, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.Provenance == ProvenanceDeclared {
			out = append(out, n)
		}
	}
	return out
}

// UARGNode is an ERGNode after usage modeling: every billable dimension the
// node needs has a resolved UsageVector, sourced from config, an override
// file, or a registered default (in that precedence order).
type UARGNode struct {
	ERGNode

	// Usage maps a usage dimension label (e.g. "instance-hours",
	// "storage-gb") to the vector the usage modeler resolved for it.
	Usage map[string]UsageVector `json:"usage"`

	// Assumptions lists the labels of any Usage entries that came from a
	// default rather than config or an override file.
	Assumptions []string `json:"assumptions,omitempty"`

	// Confidence is the node's ERGNode confidence folded with the weakest
	// confidence among its Usage vectors.
	Confidence Confidence `json:"confidence"`
}

// UARG is the Usage-Annotated Resource Graph produced by the usage modeler:
// the final graph stage before pricing is applied to produce the FCM.
type UARG struct {
	Nodes []UARGNode `json:"nodes"`

	ByID map[string]*UARGNode `json:"-"`
}

// Index rebuilds the ByID lookup table from Nodes.
func (g *UARG) Index() {
	g.ByID = make(map[string]*UARGNode, len(g.Nodes))
	for i := range g.Nodes {
		g.ByID[g.Nodes[i].ResourceID] = &g.Nodes[i]
	}
}

// Lookup returns the node with the given ResourceID, if present.
func (g *UARG) Lookup(resourceID string) (*UARGNode, bool) {
	if g.ByID == nil {
		g.Index()
	}
	n, ok := g.ByID[resourceID]
	return n, ok
}
