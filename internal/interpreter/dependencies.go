// Package interpreter turns a Terraform plan document into a Normalized
// Resource Graph: flat resource nodes plus the dependency edges between
// them, safe unknown-value handling, and expansion of count/for_each.
package interpreter

import (
	"sort"
	"strings"

	"cloudcost/core/determinism"
	"cloudcost/core/types"
)

// Edge is a directed dependency between two resources in the graph, From
// depends on To.
type Edge struct {
	From string
	To   string
}

// DependencyResolver builds the dependency edges between NRG nodes from
// each node's recorded Dependencies references plus module-aware address
// matching for expanded (count/for_each) resources.
type DependencyResolver struct {
	byAddress map[string][]*types.NRGNode
}

// NewDependencyResolver creates a new resolver.
func NewDependencyResolver() *DependencyResolver {
	return &DependencyResolver{byAddress: make(map[string][]*types.NRGNode)}
}

// ResolveDependencies builds all dependency edges for a graph's nodes.
// Each node's Dependencies field holds base resource addresses (e.g.
// "aws_instance.web" or "module.app.aws_s3_bucket.data") as recorded in
// the plan's configuration block; this expands each reference to every
// matching instance address, including expanded count/for_each instances.
func (r *DependencyResolver) ResolveDependencies(nodes []types.NRGNode) []Edge {
	r.buildIndex(nodes)

	var edges []Edge
	for i := range nodes {
		inst := &nodes[i]
		for _, dep := range inst.Dependencies {
			for _, target := range r.findInstancesByAddress(dep) {
				if target.ResourceID != inst.ResourceID {
					edges = append(edges, Edge{From: inst.ResourceID, To: target.ResourceID})
				}
			}
		}
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})

	return dedupeEdges(edges)
}

func (r *DependencyResolver) buildIndex(nodes []types.NRGNode) {
	for i := range nodes {
		r.byAddress[nodes[i].Address] = append(r.byAddress[nodes[i].Address], &nodes[i])
	}
}

// findInstancesByAddress resolves a base address to every matching
// instance, including expanded "addr[0]"/"addr[\"key\"]" instances.
func (r *DependencyResolver) findInstancesByAddress(addr string) []*types.NRGNode {
	if insts, ok := r.byAddress[addr]; ok {
		return insts
	}

	var result []*types.NRGNode
	for instAddr, insts := range r.byAddress {
		if strings.HasPrefix(instAddr, addr+"[") {
			result = append(result, insts...)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Address < result[j].Address
	})

	return result
}

// ParseRefToAddress extracts the resource address a configuration
// expression reference points at, e.g. "aws_instance.web.id" ->
// "aws_instance.web", "module.app.aws_s3_bucket.data.arn" ->
// "module.app.aws_s3_bucket.data". Returns "" for non-resource references
// (var, local, path, terraform).
func ParseRefToAddress(ref string) string {
	parts := strings.Split(ref, ".")
	if len(parts) < 2 {
		return ""
	}

	switch parts[0] {
	case "var", "local", "path", "terraform":
		return ""
	case "data":
		if len(parts) >= 3 {
			return strings.Join(parts[:3], ".")
		}
	case "module":
		for i := 0; i < len(parts)-1; i += 2 {
			if parts[i] != "module" {
				return strings.Join(parts[:i+2], ".")
			}
		}
	default:
		return parts[0] + "." + parts[1]
	}
	return ""
}

func dedupeEdges(edges []Edge) []Edge {
	seen := make(map[string]bool)
	result := make([]Edge, 0, len(edges))
	for _, e := range edges {
		key := e.From + "->" + e.To
		if !seen[key] {
			seen[key] = true
			result = append(result, e)
		}
	}
	return result
}

// TopologicalSort orders resource IDs so every dependency precedes its
// dependents, breaking ties by ResourceID for determinism.
func TopologicalSort(nodes []types.NRGNode, edges []Edge) []string {
	adj := make(map[string][]string)
	inDegree := make(map[string]int)

	for _, n := range nodes {
		adj[n.ResourceID] = []string{}
		inDegree[n.ResourceID] = 0
	}
	for _, e := range edges {
		adj[e.From] = append(adj[e.From], e.To)
		inDegree[e.To]++
	}

	var queue []string
	for id, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}
	determinism.SortSlice(queue, func(a, b string) bool { return a < b })

	var result []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, neighbor := range adj[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
				determinism.SortSlice(queue, func(a, b string) bool { return a < b })
			}
		}
	}

	return result
}

// DetectCycles finds dependency cycles in the graph. A non-empty result
// means TopologicalSort's output is incomplete and the plan must be
// rejected rather than costed out of order.
func DetectCycles(nodes []types.NRGNode, edges []Edge) [][]string {
	adj := make(map[string][]string)
	for _, n := range nodes {
		adj[n.ResourceID] = []string{}
	}
	for _, e := range edges {
		adj[e.From] = append(adj[e.From], e.To)
	}

	var cycles [][]string
	color := make(map[string]int) // 0=white, 1=gray, 2=black
	parent := make(map[string]string)

	var dfs func(node string)
	dfs = func(node string) {
		color[node] = 1

		for _, neighbor := range adj[node] {
			if color[neighbor] == 1 {
				cycle := []string{neighbor}
				for n := node; n != neighbor; n = parent[n] {
					cycle = append([]string{n}, cycle...)
				}
				cycles = append(cycles, cycle)
			} else if color[neighbor] == 0 {
				parent[neighbor] = node
				dfs(neighbor)
			}
		}

		color[node] = 2
	}

	var order []string
	for id := range adj {
		order = append(order, id)
	}
	determinism.SortSlice(order, func(a, b string) bool { return a < b })

	for _, node := range order {
		if color[node] == 0 {
			dfs(node)
		}
	}

	return cycles
}
