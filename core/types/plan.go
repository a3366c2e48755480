package types

// PlanDocument is the parsed output of `terraform show -json <planfile>`.
// It is the sole input to the plan interpreter (C4): the interpreter does
// no I/O and no HCL evaluation of its own, only a structural walk of this
// document.
type PlanDocument struct {
	FormatVersion    string `json:"format_version"`
	TerraformVersion string `json:"terraform_version"`

	ResourceChanges []ResourceChange       `json:"resource_changes"`
	Configuration   *PlanConfiguration     `json:"configuration,omitempty"`
	PlannedValues   *PlannedValues         `json:"planned_values,omitempty"`
	PriorState      *PlanState             `json:"prior_state,omitempty"`
	Variables       map[string]PlanVariable `json:"variables,omitempty"`
}

// ResourceChange is a single entry in resource_changes: one already-expanded
// resource instance and the action Terraform plans to take on it.
type ResourceChange struct {
	Address       string `json:"address"`
	ModuleAddress string `json:"module_address,omitempty"`
	Mode          string `json:"mode"` // "managed" or "data"
	Type          string `json:"type"`
	Name          string `json:"name"`
	Index         interface{} `json:"index,omitempty"`
	ProviderName  string      `json:"provider_name"`
	Change        PlanChange  `json:"change"`
	ActionReason  string      `json:"action_reason,omitempty"`
}

// PlanChange carries the before/after attribute values for a resource change.
type PlanChange struct {
	Actions         []string               `json:"actions"`
	Before          map[string]interface{}  `json:"before"`
	After           map[string]interface{}  `json:"after"`
	AfterUnknown    map[string]interface{}  `json:"after_unknown"`
	BeforeSensitive interface{}             `json:"before_sensitive"`
	AfterSensitive  interface{}             `json:"after_sensitive"`
}

// HasAction reports whether the change includes the given action
// ("create", "update", "delete", "no-op", "read").
func (c PlanChange) HasAction(action string) bool {
	for _, a := range c.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// PlanConfiguration is the configuration block: the un-expanded resource and
// module-call definitions, used to recover dependency references that
// resource_changes alone doesn't carry.
type PlanConfiguration struct {
	ProviderConfig map[string]PlanProviderConfig `json:"provider_config,omitempty"`
	RootModule     PlanModuleConfig              `json:"root_module"`
}

// PlanProviderConfig is a provider block as it appears in configuration.
type PlanProviderConfig struct {
	Name              string                 `json:"name"`
	FullName          string                 `json:"full_name"`
	VersionConstraint string                 `json:"version_constraint,omitempty"`
	Expressions       map[string]interface{} `json:"expressions,omitempty"`
}

// PlanModuleConfig is a module's configuration: its own resources plus any
// nested module_calls, recursively.
type PlanModuleConfig struct {
	Resources   []PlanResourceConfig       `json:"resources,omitempty"`
	ModuleCalls map[string]PlanModuleCall  `json:"module_calls,omitempty"`
	Variables   map[string]PlanVariableConfig `json:"variables,omitempty"`
	Outputs     map[string]PlanOutputConfig   `json:"outputs,omitempty"`
}

// PlanResourceConfig is one resource block's un-expanded configuration,
// including the expression referencing other resources that resource_changes
// strips out.
type PlanResourceConfig struct {
	Address           string                 `json:"address"`
	Mode              string                 `json:"mode"`
	Type              string                 `json:"type"`
	Name              string                 `json:"name"`
	ProviderConfigKey string                 `json:"provider_config_key"`
	Expressions       map[string]interface{} `json:"expressions,omitempty"`
	SchemaVersion     int                    `json:"schema_version"`
	CountExpression   interface{}            `json:"count_expression,omitempty"`
	ForEachExpression interface{}            `json:"for_each_expression,omitempty"`
	DependsOn         []string               `json:"depends_on,omitempty"`
}

// PlanModuleCall is a module block's un-expanded configuration.
type PlanModuleCall struct {
	Source            string                 `json:"source"`
	VersionConstraint string                 `json:"version_constraint,omitempty"`
	Expressions       map[string]interface{} `json:"expressions,omitempty"`
	CountExpression   interface{}            `json:"count_expression,omitempty"`
	ForEachExpression interface{}            `json:"for_each_expression,omitempty"`
	Module            PlanModuleConfig       `json:"module"`
}

// PlanVariableConfig describes a declared variable.
type PlanVariableConfig struct {
	Default     interface{} `json:"default,omitempty"`
	Description string      `json:"description,omitempty"`
	Sensitive   bool        `json:"sensitive,omitempty"`
}

// PlanOutputConfig describes a declared output.
type PlanOutputConfig struct {
	Expression  interface{} `json:"expression,omitempty"`
	Description string      `json:"description,omitempty"`
	Sensitive   bool        `json:"sensitive,omitempty"`
}

// PlannedValues is the planned_values (or state values) tree: the expanded
// resource instances with their final attribute values, one entry per
// count/for_each instance.
type PlannedValues struct {
	RootModule PlannedModule              `json:"root_module"`
	Outputs    map[string]PlanOutputValue `json:"outputs,omitempty"`
}

// PlannedModule is one module's expanded resource instances plus any child
// modules, recursively.
type PlannedModule struct {
	Resources    []PlannedResource `json:"resources,omitempty"`
	ChildModules []PlannedModule   `json:"child_modules,omitempty"`
	Address      string            `json:"address,omitempty"`
}

// PlannedResource is one expanded resource instance's final values.
type PlannedResource struct {
	Address         string                 `json:"address"`
	Mode            string                 `json:"mode"`
	Type            string                 `json:"type"`
	Name            string                 `json:"name"`
	Index           interface{}            `json:"index,omitempty"`
	ProviderName    string                 `json:"provider_name"`
	SchemaVersion   int                    `json:"schema_version"`
	Values          map[string]interface{} `json:"values"`
	SensitiveValues interface{}            `json:"sensitive_values"`
}

// PlanOutputValue is a root module output.
type PlanOutputValue struct {
	Sensitive bool        `json:"sensitive"`
	Value     interface{} `json:"value"`
	Type      interface{} `json:"type,omitempty"`
}

// PlanState is the prior_state block.
type PlanState struct {
	FormatVersion    string         `json:"format_version"`
	TerraformVersion string         `json:"terraform_version"`
	Values           *PlannedValues `json:"values,omitempty"`
}

// PlanVariable is a resolved root input variable.
type PlanVariable struct {
	Value interface{} `json:"value"`
}
