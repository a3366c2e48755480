package usage

import "cloudcost/core/types"

// OverrideTier names the three precedence levels an Override can apply at.
// Resource beats service beats global: the most specific override that
// matches a given resource and metric wins outright, it is never blended
// with a lower tier.
type OverrideTier int

const (
	OverrideTierGlobal OverrideTier = iota
	OverrideTierService
	OverrideTierResource
)

// String names the tier, also used as the "overrides_applied" label
// recorded against a resource's usage annotation.
func (t OverrideTier) String() string {
	switch t {
	case OverrideTierResource:
		return "resource"
	case OverrideTierService:
		return "service"
	default:
		return "global"
	}
}

// Override pins a single usage metric's value, bypassing whatever the
// active profile would otherwise estimate. Applying an override sets
// min = expected = max = Value: an override is a statement of fact, not
// another estimate to blend in.
type Override struct {
	Tier OverrideTier `yaml:"tier"`

	// Match identifies what this override applies to: a resource address
	// for OverrideTierResource, a resource type for OverrideTierService,
	// ignored for OverrideTierGlobal.
	Match string `yaml:"match"`

	Metric types.UsageMetric `yaml:"metric"`
	Value  float64           `yaml:"value"`
	Unit   string            `yaml:"unit"`
}

// OverrideSet indexes a flat list of overrides for fast per-resource,
// per-metric lookup at each precedence tier.
type OverrideSet struct {
	byResource map[string]map[types.UsageMetric]Override
	byService  map[string]map[types.UsageMetric]Override
	global     map[types.UsageMetric]Override
}

// NewOverrideSet indexes overrides by tier and match key. A later entry in
// overrides for the same (tier, match, metric) replaces an earlier one;
// across tiers, precedence is handled by Resolve, not by indexing order.
func NewOverrideSet(overrides []Override) *OverrideSet {
	s := &OverrideSet{
		byResource: make(map[string]map[types.UsageMetric]Override),
		byService:  make(map[string]map[types.UsageMetric]Override),
		global:     make(map[types.UsageMetric]Override),
	}
	for _, o := range overrides {
		switch o.Tier {
		case OverrideTierResource:
			m, ok := s.byResource[o.Match]
			if !ok {
				m = make(map[types.UsageMetric]Override)
				s.byResource[o.Match] = m
			}
			m[o.Metric] = o
		case OverrideTierService:
			m, ok := s.byService[o.Match]
			if !ok {
				m = make(map[types.UsageMetric]Override)
				s.byService[o.Match] = m
			}
			m[o.Metric] = o
		default:
			s.global[o.Metric] = o
		}
	}
	return s
}

// Resolve returns the highest-precedence override for a resource's metric,
// checking resource-level, then service-level (keyed by resource type),
// then global, in that order.
func (s *OverrideSet) Resolve(address types.ResourceAddress, resourceType string, metric types.UsageMetric) (Override, bool) {
	if s == nil {
		return Override{}, false
	}
	if m, ok := s.byResource[string(address)]; ok {
		if o, ok := m[metric]; ok {
			return o, true
		}
	}
	if m, ok := s.byService[resourceType]; ok {
		if o, ok := m[metric]; ok {
			return o, true
		}
	}
	if o, ok := s.global[metric]; ok {
		return o, true
	}
	return Override{}, false
}
