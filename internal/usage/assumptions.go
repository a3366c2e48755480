// Package usage - Tracked assumptions
// Every default MUST be recorded as an assumption and reduce confidence.
package usage

import (
	"fmt"

	"cloudcost/core/confidence"
	"cloudcost/core/types"
)

// Assumption represents a usage assumption made during estimation
type Assumption struct {
	// What was assumed
	Component string
	Attribute string

	// What value was used
	Value     interface{}
	Unit      string

	// Why this was assumed
	Source    AssumptionSource
	Reason    string

	// Confidence impact
	ConfidenceImpact float64

	// Is this overrideable?
	Overrideable     bool
	OverrideKey      string // Key to use in usage file
}

// AssumptionSource indicates where the assumption came from
type AssumptionSource int

const (
	AssumptionFromDefault    AssumptionSource = iota // Hardcoded default
	AssumptionFromHeuristic                           // Calculated from other attributes
	AssumptionFromProfile                             // Usage profile
	AssumptionFromHistorical                          // Historical data
)

// String returns the source name
func (s AssumptionSource) String() string {
	switch s {
	case AssumptionFromDefault:
		return "default"
	case AssumptionFromHeuristic:
		return "heuristic"
	case AssumptionFromProfile:
		return "profile"
	case AssumptionFromHistorical:
		return "historical"
	default:
		return "unknown"
	}
}

// AssumptionTracker tracks all assumptions made during estimation
type AssumptionTracker struct {
	assumptions []*Assumption
	byComponent map[string][]*Assumption
}

// NewAssumptionTracker creates a new tracker
func NewAssumptionTracker() *AssumptionTracker {
	return &AssumptionTracker{
		assumptions: []*Assumption{},
		byComponent: make(map[string][]*Assumption),
	}
}

// RecordDefault records a default value assumption
// This ALWAYS reduces confidence
func (t *AssumptionTracker) RecordDefault(component, attribute string, value interface{}, unit string, impact float64) *Assumption {
	a := &Assumption{
		Component:        component,
		Attribute:        attribute,
		Value:            value,
		Unit:             unit,
		Source:           AssumptionFromDefault,
		Reason:           "using default value",
		ConfidenceImpact: impact,
		Overrideable:     true,
		OverrideKey:      fmt.Sprintf("%s.%s", component, attribute),
	}

	t.assumptions = append(t.assumptions, a)
	t.byComponent[component] = append(t.byComponent[component], a)
	return a
}

// RecordHeuristic records a heuristic-based assumption
func (t *AssumptionTracker) RecordHeuristic(component, attribute string, value interface{}, unit, reason string, impact float64) *Assumption {
	a := &Assumption{
		Component:        component,
		Attribute:        attribute,
		Value:            value,
		Unit:             unit,
		Source:           AssumptionFromHeuristic,
		Reason:           reason,
		ConfidenceImpact: impact,
		Overrideable:     true,
		OverrideKey:      fmt.Sprintf("%s.%s", component, attribute),
	}

	t.assumptions = append(t.assumptions, a)
	t.byComponent[component] = append(t.byComponent[component], a)
	return a
}

// All returns all assumptions
func (t *AssumptionTracker) All() []*Assumption {
	return t.assumptions
}

// ForComponent returns assumptions for a component
func (t *AssumptionTracker) ForComponent(component string) []*Assumption {
	return t.byComponent[component]
}

// TotalConfidenceImpact returns the total confidence impact
func (t *AssumptionTracker) TotalConfidenceImpact() float64 {
	total := 0.0
	for _, a := range t.assumptions {
		total += a.ConfidenceImpact
	}
	return total
}

// ApplyToTracker folds every recorded assumption into a confidence tracker
// at MEDIUM confidence (a default value is never grounds for LOW on its
// own, but it is never grounds for HIGH either).
func (t *AssumptionTracker) ApplyToTracker(ct *confidence.Tracker) {
	for _, a := range t.assumptions {
		ct.Apply(types.ConfidenceMedium, fmt.Sprintf("%s: %v %s", a.OverrideKey, a.Value, a.Unit))
	}
}

// Count returns the number of assumptions
func (t *AssumptionTracker) Count() int {
	return len(t.assumptions)
}
