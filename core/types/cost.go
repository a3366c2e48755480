// Package types - Final Cost Model types
package types

import "github.com/shopspring/decimal"

// Currency represents a currency code
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
)

// String returns the string representation
func (c Currency) String() string {
	return string(c)
}

// RateKey uniquely identifies a pricing rate
type RateKey struct {
	// Provider is the cloud provider
	Provider Provider `json:"provider"`

	// Service is the cloud service (e.g., "EC2", "S3")
	Service string `json:"service"`

	// ProductFamily is the product family (e.g., "Compute Instance", "Storage")
	ProductFamily string `json:"product_family"`

	// Region is the cloud region
	Region string `json:"region"`

	// Attributes contains SKU-specific attributes
	Attributes map[string]string `json:"attributes,omitempty"`
}

// String returns a string representation for caching/lookup
func (k RateKey) String() string {
	return string(k.Provider) + "/" + k.Service + "/" + k.ProductFamily + "/" + k.Region
}

// Scenario holds the three cost projections the usage modeler and cost
// engine carry end to end: a pessimistic floor, a best estimate, and a
// pessimistic ceiling. Min is always <= Expected <= Max after monotonicity
// enforcement.
type Scenario struct {
	Min      decimal.Decimal `json:"min"`
	Expected decimal.Decimal `json:"expected"`
	Max      decimal.Decimal `json:"max"`
	Currency Currency        `json:"currency"`
}

// Add returns the element-wise sum of two scenarios. Panics if currencies
// differ, matching Money's behavior.
func (s Scenario) Add(other Scenario) Scenario {
	if s.Currency == "" {
		s.Currency = other.Currency
	}
	if other.Currency != "" && s.Currency != other.Currency {
		panic("types: cannot add scenarios in different currencies: " + string(s.Currency) + " vs " + string(other.Currency))
	}
	return Scenario{
		Min:      s.Min.Add(other.Min),
		Expected: s.Expected.Add(other.Expected),
		Max:      s.Max.Add(other.Max),
		Currency: s.Currency,
	}
}

// EnforceMonotonic sorts Min/Expected/Max into ascending order in place and
// reports whether the input already satisfied Min <= Expected <= Max.
func (s *Scenario) EnforceMonotonic() (wasMonotonic bool) {
	vals := []decimal.Decimal{s.Min, s.Expected, s.Max}
	wasMonotonic = vals[0].LessThanOrEqual(vals[1]) && vals[1].LessThanOrEqual(vals[2])
	if wasMonotonic {
		return true
	}
	for i := 0; i < len(vals); i++ {
		for j := i + 1; j < len(vals); j++ {
			if vals[j].LessThan(vals[i]) {
				vals[i], vals[j] = vals[j], vals[i]
			}
		}
	}
	s.Min, s.Expected, s.Max = vals[0], vals[1], vals[2]
	return false
}

// Diff describes the delta a Scenario represents relative to a baseline
// (typically zero, for a brand-new resource).
type Diff struct {
	Scenario Scenario `json:"scenario"`
}

// ResourceCost is the per-resource line item in the Final Cost Model.
type ResourceCost struct {
	// ResourceID links back to the ERG/UARG node this cost was computed for.
	ResourceID string `json:"resource_id"`

	// Address is the resource's full Terraform address.
	Address ResourceAddress `json:"address"`

	// Dimensions lists the individual priced quantities that make up this
	// resource's cost (e.g. "compute-hours", "gp3-storage-gb").
	Dimensions []CostDimension `json:"dimensions"`

	// Scenario is the resource's aggregated min/expected/max monthly cost.
	Scenario Scenario `json:"scenario"`

	// Diff is the change this resource contributes (equal to Scenario for
	// a net-new resource; may be zero for no-op changes).
	Diff Diff `json:"diff"`

	// Confidence is the weakest confidence among this resource's
	// contributing dimensions.
	Confidence Confidence `json:"confidence"`

	// ConfidenceSources names which dimensions pulled confidence down,
	// for explanation in reports.
	ConfidenceSources []string `json:"confidence_sources,omitempty"`
}

// CostDimension is a single priced quantity within a resource (e.g. the
// compute-hours dimension of an EC2 instance, distinct from its EBS volume
// dimension).
type CostDimension struct {
	// Label is a human-readable name, e.g. "instance-hours".
	Label string `json:"label"`

	// Unit is the canonical billing unit this dimension was priced in.
	Unit Unit `json:"unit"`

	// Quantity is the usage quantity for the scenario being evaluated.
	Quantity decimal.Decimal `json:"quantity"`

	// RateKey identifies the pricing rate applied.
	RateKey RateKey `json:"rate_key"`

	// UnitPrice is the resolved price per Unit.
	UnitPrice decimal.Decimal `json:"unit_price"`

	// Amount is Quantity * UnitPrice in Scenario.Currency.
	Amount decimal.Decimal `json:"amount"`

	// Confidence is this dimension's own confidence, before propagation
	// into the owning ResourceCost.
	Confidence Confidence `json:"confidence"`
}

// AggregatedCost groups resource costs along one dimension (by service, by
// region, ...).
type AggregatedCost struct {
	// GroupBy names the dimension being aggregated, e.g. "service".
	GroupBy string `json:"group_by"`

	// GroupValue is this aggregate's value for GroupBy, e.g. "EC2".
	GroupValue string `json:"group_value"`

	Scenario Scenario `json:"scenario"`
	Diff     Diff     `json:"diff"`

	// ResourceCount is how many resources contributed to this aggregate.
	ResourceCount int `json:"resource_count"`

	// Confidence is the weakest confidence among contributing resources.
	Confidence Confidence `json:"confidence"`
}

// FCM is the Final Cost Model: the complete, deterministic output of the
// cost engine for one job.
type FCM struct {
	ResourceCosts []ResourceCost `json:"resource_costs"`

	AggregatedByService []AggregatedCost `json:"aggregated_by_service"`
	AggregatedByRegion  []AggregatedCost `json:"aggregated_by_region"`

	Total Scenario `json:"total"`
	Diff  Diff      `json:"diff"`

	// OverallConfidence is the weakest confidence across every resource
	// cost contributing to Total.
	OverallConfidence Confidence `json:"overall_confidence"`

	// DeterminismHash is a SHA-256 digest (truncated to 16 hex characters)
	// of the canonical JSON encoding of this FCM's cost data, excluding
	// timestamps. Two runs over the same inputs produce the same hash.
	DeterminismHash string `json:"determinism_hash"`

	Currency Currency `json:"currency"`
}

// Summarize recomputes Total and OverallConfidence from ResourceCosts. It
// does not recompute DeterminismHash; callers must do that last, after all
// other fields are final, so the hash covers the settled result.
func (f *FCM) Summarize() {
	total := Scenario{Currency: f.Currency}
	confidence := ConfidenceHigh
	for _, rc := range f.ResourceCosts {
		total = total.Add(rc.Scenario)
		confidence = confidence.Min(rc.Confidence)
	}
	f.Total = total
	if len(f.ResourceCosts) == 0 {
		confidence = ConfidenceHigh
	}
	f.OverallConfidence = confidence
}
