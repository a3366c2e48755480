// Package interpreter - unknown-value propagation.
// Implements correct Terraform unknown semantics: unknowns MUST propagate,
// never collapse into a guessed value.
package interpreter

import (
	"fmt"

	"cloudcost/core/types"
)

// UnknownValue represents a value that cannot be determined at plan time.
// This is a FIRST-CLASS result, not a nil or zero value.
type UnknownValue struct {
	// ExpectedType is a type hint for the value that would have been here.
	ExpectedType ValueType

	// Reason explains why this value is unknown.
	Reason UnknownReason

	// Source is the resource address and attribute path the unknown came
	// from, for debugging and warning messages.
	Source string

	// Depth tracks how many levels of unknowns this one propagated through.
	Depth int
}

// ValueType indicates the expected type of an unknown value.
type ValueType int

const (
	TypeUnknown ValueType = iota
	TypeString
	TypeNumber
	TypeBool
	TypeList
	TypeMap
	TypeObject
)

// UnknownReason explains WHY a value is unknown.
type UnknownReason int

const (
	// ReasonComputedAtApply - value computed during terraform apply.
	ReasonComputedAtApply UnknownReason = iota

	// ReasonDataSourcePending - data source not yet evaluated.
	ReasonDataSourcePending

	// ReasonVariableNotProvided - required variable with no default.
	ReasonVariableNotProvided

	// ReasonDependsOnUnknown - depends on another unknown value.
	ReasonDependsOnUnknown

	// ReasonResourceNotCreated - resource doesn't exist yet.
	ReasonResourceNotCreated

	// ReasonExpressionError - an expression could not be evaluated.
	ReasonExpressionError
)

// String returns a human-readable reason.
func (r UnknownReason) String() string {
	switch r {
	case ReasonComputedAtApply:
		return "computed at apply time"
	case ReasonDataSourcePending:
		return "data source not yet evaluated"
	case ReasonVariableNotProvided:
		return "required variable not provided"
	case ReasonDependsOnUnknown:
		return "depends on unknown value"
	case ReasonResourceNotCreated:
		return "resource not yet created"
	case ReasonExpressionError:
		return "expression evaluation failed"
	default:
		return "unknown reason"
	}
}

// UnknownTracker records every unknown attribute encountered while
// interpreting a plan document, keyed by "resourceID.attribute".
type UnknownTracker struct {
	unknowns map[string]*UnknownValue
}

// NewUnknownTracker creates an empty tracker.
func NewUnknownTracker() *UnknownTracker {
	return &UnknownTracker{unknowns: make(map[string]*UnknownValue)}
}

// Track records an unknown value for a resource/attribute path.
func (t *UnknownTracker) Track(path string, u *UnknownValue) {
	t.unknowns[path] = u
}

// IsUnknown reports whether a path was tracked as unknown.
func (t *UnknownTracker) IsUnknown(path string) bool {
	_, ok := t.unknowns[path]
	return ok
}

// Get returns the unknown info for a path, if tracked.
func (t *UnknownTracker) Get(path string) *UnknownValue {
	return t.unknowns[path]
}

// All returns a copy of every tracked unknown.
func (t *UnknownTracker) All() map[string]*UnknownValue {
	result := make(map[string]*UnknownValue, len(t.unknowns))
	for k, v := range t.unknowns {
		result[k] = v
	}
	return result
}

// Count returns the number of tracked unknowns.
func (t *UnknownTracker) Count() int {
	return len(t.unknowns)
}

// Propagate produces a new unknown that depends on an existing one,
// incrementing Depth so deeply chained unknowns are visible in diagnostics.
func Propagate(existing *UnknownValue, newSource string) *UnknownValue {
	return &UnknownValue{
		ExpectedType: existing.ExpectedType,
		Reason:       ReasonDependsOnUnknown,
		Source:       fmt.Sprintf("%s (from %s)", newSource, existing.Source),
		Depth:        existing.Depth + 1,
	}
}

// criticalAttributes lists attribute names whose being unknown should pull
// a node's confidence all the way to LOW, because they directly gate the
// billing dimension (instance size, storage size, tier).
var criticalAttributes = map[string]bool{
	"instance_type":     true,
	"allocated_storage": true,
	"size":              true,
	"volume_size":       true,
	"memory_size":       true,
	"desired_count":     true,
}

// ConfidenceForUnknowns derives a node's confidence from which of its
// attributes the plan left unknown. No unknowns is HIGH; any unknown
// attribute is at most MEDIUM; an unknown critical (billing-determining)
// attribute is LOW, since the cost engine cannot even select a rate.
func ConfidenceForUnknowns(unknownAttributes []string) types.Confidence {
	if len(unknownAttributes) == 0 {
		return types.ConfidenceHigh
	}
	for _, attr := range unknownAttributes {
		if criticalAttributes[attr] {
			return types.ConfidenceLow
		}
	}
	return types.ConfidenceMedium
}
