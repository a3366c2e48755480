package interpreter

import "time"

// Metadata summarizes one interpretation run: the signature of the NRG it
// produced plus enough shape information for a caller to sanity-check the
// result without re-walking the graph.
type Metadata struct {
	// PlanHash is a stable digest of the plan document's resource changes.
	// Re-interpreting an identical plan document yields an identical hash.
	PlanHash string `json:"plan_hash"`

	TotalResources int            `json:"total_resources"`
	ByType         map[string]int `json:"by_type"`
	UnknownCount   int            `json:"unknown_count"`
	MaxModuleDepth int            `json:"max_module_depth"`

	Timestamp time.Time `json:"timestamp"`
}
