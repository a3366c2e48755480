package interpreter

// ProviderConfig is a Terraform provider block: a provider type, an
// optional alias for multi-region/multi-account setups, and its region.
type ProviderConfig struct {
	Type   string
	Alias  string
	Region string
	Config map[string]any
}
