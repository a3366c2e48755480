// Package confidence tracks why a cost estimate's confidence dropped,
// not just what it dropped to. Confidence itself is the ordinal
// LOW/MEDIUM/HIGH scale in core/types; this package records the reasoning
// trail behind a min-propagation result so reports can explain it.
package confidence

import (
	"fmt"
	"strings"

	"cloudcost/core/types"
)

// Downgrade is a single reason confidence moved to a lower level.
type Downgrade struct {
	Level  types.Confidence
	Reason string
}

// Tracker accumulates downgrades and folds them into a single confidence
// level via ordinal minimum, matching the propagation rule the cost engine
// and metadata resolver use everywhere else.
type Tracker struct {
	level      types.Confidence
	downgrades []Downgrade
}

// NewTracker starts a tracker at HIGH confidence, the identity element for
// minimum propagation.
func NewTracker() *Tracker {
	return &Tracker{level: types.ConfidenceHigh}
}

// Apply folds a new observation into the tracker's running confidence.
func (t *Tracker) Apply(level types.Confidence, reason string) {
	t.level = t.level.Min(level)
	t.downgrades = append(t.downgrades, Downgrade{Level: level, Reason: reason})
}

// Level returns the tracker's current confidence.
func (t *Tracker) Level() types.Confidence {
	return t.level
}

// Sources returns the reasons that contributed a level below HIGH, in the
// order they were applied. Used to populate ResourceCost.ConfidenceSources.
func (t *Tracker) Sources() []string {
	var sources []string
	for _, d := range t.downgrades {
		if d.Level != types.ConfidenceHigh {
			sources = append(sources, d.Reason)
		}
	}
	return sources
}

// Explain renders a human-readable account of how the tracker reached its
// current level, most useful in CLI output and debug logs.
func (t *Tracker) Explain() string {
	if len(t.downgrades) == 0 {
		return "HIGH confidence - no downgrades observed"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("confidence: %s\n", t.level))
	for i, d := range t.downgrades {
		sb.WriteString(fmt.Sprintf("  %d. %s -> %s\n", i+1, d.Reason, d.Level))
	}
	return sb.String()
}

// Merge combines this tracker with others, taking the ordinal minimum level
// and concatenating downgrade histories in argument order.
func (t *Tracker) Merge(others ...*Tracker) *Tracker {
	merged := &Tracker{level: t.level, downgrades: append([]Downgrade{}, t.downgrades...)}
	for _, o := range others {
		if o == nil {
			continue
		}
		merged.level = merged.level.Min(o.level)
		merged.downgrades = append(merged.downgrades, o.downgrades...)
	}
	return merged
}
