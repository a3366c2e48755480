package interpreter

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"cloudcost/core/determinism"
	"cloudcost/core/types"
)

// idGen namespaces resource_id generation so a plan-document ID never
// collides with an ID minted by some other component that also uses
// determinism.IDGenerator (e.g. the metadata resolver's implicit nodes).
var idGen = determinism.NewIDGenerator("nrg-resource")

// plannedInstance pairs a planned_values resource with the module path it
// was discovered at and, when one exists, the resource_changes entry
// carrying its before/after/unknown attribute split.
type plannedInstance struct {
	resource   types.PlannedResource
	modulePath []string
	change     *types.ResourceChange
}

// Interpret is the pure, deterministic transform from a Terraform plan
// document to a Normalized Resource Graph: no I/O, no provider calls, no
// HCL evaluation beyond what the plan document already resolved. Walking
// the same doc twice, in the same or a different process, produces
// byte-identical resource_ids and an identical plan_hash.
func Interpret(doc *types.PlanDocument) (*types.NRG, *Metadata, error) {
	if doc == nil {
		return nil, nil, fmt.Errorf("interpreter: nil plan document")
	}
	if doc.PlannedValues == nil {
		return nil, nil, fmt.Errorf("interpreter: plan document has no planned_values")
	}

	changesByAddress := make(map[string]*types.ResourceChange, len(doc.ResourceChanges))
	for i := range doc.ResourceChanges {
		changesByAddress[doc.ResourceChanges[i].Address] = &doc.ResourceChanges[i]
	}

	providers := buildProviderResolver(doc.Configuration)
	configIndex := buildConfigIndex(doc.Configuration)

	var instances []plannedInstance
	maxDepth := collectInstances(doc.PlannedValues.RootModule, nil, changesByAddress, &instances)

	degradation := NewUnknownTracker()

	nodes := make([]types.NRGNode, 0, len(instances))
	byType := make(map[string]int)
	unknownCount := 0

	for _, inst := range instances {
		node, err := buildNode(inst, providers, configIndex)
		if err != nil {
			return nil, nil, err
		}

		for _, attr := range node.UnknownAttributes {
			degradation.Track(string(node.Address)+"."+attr, &UnknownValue{
				ExpectedType: TypeUnknown,
				Reason:       ReasonComputedAtApply,
				Source:       string(node.Address) + "." + attr,
			})
		}
		unknownCount += len(node.UnknownAttributes)
		byType[node.Type]++

		nodes = append(nodes, node)
	}

	// Deterministic node order: by address, so two runs over an
	// identically-ordered input always lay nodes out the same way even
	// though map iteration over changesByAddress/configIndex is not ordered.
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Address < nodes[j].Address
	})

	resolver := NewDependencyResolver()
	edges := resolver.ResolveDependencies(nodes)
	depsByFrom := make(map[string][]string)
	for _, e := range edges {
		depsByFrom[e.From] = append(depsByFrom[e.From], e.To)
	}
	for i := range nodes {
		deps := depsByFrom[nodes[i].ResourceID]
		sort.Strings(deps)
		nodes[i].Dependencies = deps
	}

	nrg := &types.NRG{Nodes: nodes}
	nrg.Index()

	meta := &Metadata{
		PlanHash:       planHash(doc),
		TotalResources: len(nodes),
		ByType:         byType,
		UnknownCount:   unknownCount,
		MaxModuleDepth: maxDepth,
	}

	return nrg, meta, nil
}

// collectInstances walks a planned_values module tree depth-first,
// including child modules, and returns the deepest module nesting level
// observed.
func collectInstances(
	module types.PlannedModule,
	modulePath []string,
	changesByAddress map[string]*types.ResourceChange,
	out *[]plannedInstance,
) int {
	maxDepth := len(modulePath)

	for _, r := range module.Resources {
		var change *types.ResourceChange
		if c, ok := changesByAddress[r.Address]; ok {
			change = c
		}
		*out = append(*out, plannedInstance{
			resource:   r,
			modulePath: append([]string(nil), modulePath...),
			change:     change,
		})
	}

	for _, child := range module.ChildModules {
		name := lastModuleSegment(child.Address)
		childPath := append(append([]string(nil), modulePath...), name)
		if d := collectInstances(child, childPath, changesByAddress, out); d > maxDepth {
			maxDepth = d
		}
	}

	return maxDepth
}

// lastModuleSegment extracts the final module name from an address like
// "module.app.module.db" -> "db".
func lastModuleSegment(address string) string {
	parts := strings.Split(address, ".")
	if len(parts) == 0 {
		return address
	}
	return parts[len(parts)-1]
}

// buildNode converts one planned instance into its NRGNode: attribute
// split, resource_id, confidence, provider/region resolution.
func buildNode(inst plannedInstance, providers *ModuleProviderResolver, configIndex map[string]*types.PlanResourceConfig) (types.NRGNode, error) {
	r := inst.resource

	instanceKey := ""
	if r.Index != nil {
		instanceKey = fmt.Sprintf("%v", r.Index)
	}
	modulePathStr := strings.Join(inst.modulePath, ".")

	resourceID := string(idGen.Generate(modulePathStr, r.Type, r.Name, instanceKey))

	attrs, unknownAttrs := splitAttributes(r.Values, inst.change)

	ratio := confidenceRatio(len(attrs), len(unknownAttrs))

	ctx, err := providers.ResolveProvider(modulePathStr, r.Type, "")
	region := ""
	providerType := extractProviderTypeFromResource(r.Type)
	if err == nil && ctx != nil {
		region = ctx.Region
		providerType = ctx.ProviderType
	}

	node := types.NRGNode{
		ResourceID:        resourceID,
		Address:           types.ResourceAddress(r.Address),
		Type:               r.Type,
		Provider:           normalizeProvider(providerType),
		Region:             types.Region(region),
		Attributes:         attrs,
		UnknownAttributes:  unknownAttrs,
		Quantity:           1,
		ModulePath:         inst.modulePath,
		Confidence:         ratio,
	}

	// depends_on from the un-expanded configuration block, plus any
	// resource references discovered in its expressions, become the raw
	// (address-level, not yet resource_id-level) dependency list;
	// DependencyResolver resolves these to resource_ids afterward.
	if cfg, ok := configIndex[modulePathStr+"::"+r.Type+"."+r.Name]; ok {
		seen := make(map[string]bool)
		for _, dep := range cfg.DependsOn {
			addr := ParseRefToAddress(dep)
			if addr == "" {
				addr = dep
			}
			if addr != "" && !seen[addr] {
				seen[addr] = true
				node.Dependencies = append(node.Dependencies, qualifyAddress(modulePathStr, addr))
			}
		}
		for _, ref := range collectExpressionRefs(cfg.Expressions) {
			addr := ParseRefToAddress(ref)
			if addr != "" && !seen[addr] {
				seen[addr] = true
				node.Dependencies = append(node.Dependencies, qualifyAddress(modulePathStr, addr))
			}
		}
	}

	return node, nil
}

// qualifyAddress prefixes a bare "type.name" reference with the module path
// it was found in, since depends_on references are module-relative.
func qualifyAddress(modulePath, addr string) string {
	if modulePath == "" || strings.HasPrefix(addr, "module.") {
		return addr
	}
	return "module." + strings.ReplaceAll(modulePath, ".", ".module.") + "." + addr
}

// splitAttributes divides a resource's final values into known attributes
// and the ordered list of attribute names the plan could not resolve,
// using the resource_changes entry's after_unknown map when one exists.
func splitAttributes(values map[string]interface{}, change *types.ResourceChange) (types.Attributes, []string) {
	attrs := make(types.Attributes, len(values))
	var unknown []string

	unknownSet := map[string]bool{}
	if change != nil {
		for k, v := range change.Change.AfterUnknown {
			if isUnknownMarker(v) {
				unknownSet[k] = true
			}
		}
	}

	for k, v := range values {
		if unknownSet[k] {
			unknown = append(unknown, k)
			continue
		}
		attrs[k] = types.Attribute{Value: v}
	}
	// after_unknown can reference attributes absent from values entirely
	// (Terraform omits unresolved keys from planned values).
	for k := range unknownSet {
		if _, ok := values[k]; !ok {
			unknown = append(unknown, k)
		}
	}

	sort.Strings(unknown)
	return attrs, unknown
}

// isUnknownMarker reports whether an after_unknown entry marks its key (or
// any nested element) unknown. Terraform emits either a bare `true`, or a
// nested list/map of per-element unknown markers; any non-empty nesting
// means some part of the attribute is unresolved.
func isUnknownMarker(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case []interface{}:
		for _, e := range t {
			if isUnknownMarker(e) {
				return true
			}
		}
		return false
	case map[string]interface{}:
		for _, e := range t {
			if isUnknownMarker(e) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// confidenceRatio implements the known/(known+unknown) threshold: HIGH at
// or above 0.9, MEDIUM at or above 0.5, LOW otherwise. A resource with no
// attributes at all (a data source stub, say) is HIGH: there is nothing
// unresolved to degrade it.
func confidenceRatio(known, unknown int) types.Confidence {
	total := known + unknown
	if total == 0 {
		return types.ConfidenceHigh
	}
	ratio := float64(known) / float64(total)
	switch {
	case ratio >= 0.9:
		return types.ConfidenceHigh
	case ratio >= 0.5:
		return types.ConfidenceMedium
	default:
		return types.ConfidenceLow
	}
}

func normalizeProvider(providerType string) types.Provider {
	switch providerType {
	case "aws":
		return types.ProviderAWS
	case "azurerm", "azure":
		return types.ProviderAzure
	case "google":
		return types.ProviderGCP
	default:
		return types.ProviderUnknown
	}
}

// buildProviderResolver registers every root-level provider block so
// per-resource region resolution has somewhere to look. Nested module
// provider passthrough (the "providers = { aws = aws.west }" module-call
// argument) is not represented in the plan JSON's module_calls today, so
// child-module resources inherit the root provider of their type; that
// matches Terraform's own default-inheritance behavior for modules that
// don't redeclare providers.
func buildProviderResolver(cfg *types.PlanConfiguration) *ModuleProviderResolver {
	resolver := NewModuleProviderResolver()
	if cfg == nil {
		return resolver
	}
	for key, pc := range cfg.ProviderConfig {
		providerType := pc.Name
		alias := ""
		if idx := strings.Index(key, "."); idx != -1 {
			alias = key[idx+1:]
		}
		resolver.RegisterRootProvider(&ProviderConfig{
			Type:   providerType,
			Alias:  alias,
			Region: constantValue(pc.Expressions, "region"),
		})
	}
	return resolver
}

// constantValue extracts a plan expression's literal constant_value, the
// shape Terraform emits for `region = "us-east-1"` (as opposed to a
// reference, which this deliberately does not try to resolve).
func constantValue(exprs map[string]interface{}, key string) string {
	raw, ok := exprs[key]
	if !ok {
		return ""
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return ""
	}
	if cv, ok := m["constant_value"].(string); ok {
		return cv
	}
	return ""
}

// buildConfigIndex flattens the configuration's module tree into
// "modulePath::type.name" -> PlanResourceConfig, so buildNode can look up
// a resource's depends_on and expressions without re-walking the tree per
// instance.
func buildConfigIndex(cfg *types.PlanConfiguration) map[string]*types.PlanResourceConfig {
	index := make(map[string]*types.PlanResourceConfig)
	if cfg == nil {
		return index
	}
	var walk func(mod types.PlanModuleConfig, path []string)
	walk = func(mod types.PlanModuleConfig, path []string) {
		modulePathStr := strings.Join(path, ".")
		for i := range mod.Resources {
			r := &mod.Resources[i]
			index[modulePathStr+"::"+r.Type+"."+r.Name] = r
		}
		for name, call := range mod.ModuleCalls {
			walk(call.Module, append(append([]string(nil), path...), name))
		}
	}
	walk(cfg.RootModule, nil)
	return index
}

// collectExpressionRefs walks a resource's expression block looking for
// "references" arrays, the form Terraform emits for any attribute whose
// value depends on another resource's output.
func collectExpressionRefs(exprs map[string]interface{}) []string {
	var refs []string
	var walk func(v interface{})
	walk = func(v interface{}) {
		switch t := v.(type) {
		case map[string]interface{}:
			if raw, ok := t["references"]; ok {
				if list, ok := raw.([]interface{}); ok {
					for _, r := range list {
						if s, ok := r.(string); ok {
							refs = append(refs, s)
						}
					}
				}
			}
			for _, sub := range t {
				walk(sub)
			}
		case []interface{}:
			for _, sub := range t {
				walk(sub)
			}
		}
	}
	for _, v := range exprs {
		walk(v)
	}
	sort.Strings(refs)
	return refs
}

// planHash is the stable digest interpretation metadata reports: canonical
// JSON of every resource_changes entry's address and actions, sorted by
// address so key ordering in the source document can't perturb it.
func planHash(doc *types.PlanDocument) string {
	type row struct {
		Address string   `json:"address"`
		Actions []string `json:"actions"`
	}
	rows := make([]row, 0, len(doc.ResourceChanges))
	for _, c := range doc.ResourceChanges {
		rows = append(rows, row{Address: c.Address, Actions: c.Change.Actions})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Address < rows[j].Address })

	data, _ := json.Marshal(rows)
	return determinism.ComputeHash(data).Hex()[:16]
}
