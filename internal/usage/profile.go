package usage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"cloudcost/core/types"
)

// ScenarioEntry is one usage dimension's min/expected/max estimate as
// loaded from a profile YAML file.
type ScenarioEntry struct {
	Metric     types.UsageMetric `yaml:"metric"`
	Min        float64           `yaml:"min"`
	Expected   float64           `yaml:"expected"`
	Max        float64           `yaml:"max"`
	Unit       string            `yaml:"unit"`
	Assumption string            `yaml:"assumption"`
}

// ProfileEntry is a profile's usage model for one resource type.
type ProfileEntry struct {
	ResourceType string          `yaml:"resource_type"`
	Scenarios    []ScenarioEntry `yaml:"scenarios"`
}

// Profile is a named, versioned usage model loaded from a single YAML file.
// A profile covers zero or more resource types; a resource type this
// profile doesn't mention falls through to an empty, LOW-confidence
// annotation rather than a guessed default.
type Profile struct {
	Name    string         `yaml:"name"`
	Version string         `yaml:"version"`
	Entries []ProfileEntry `yaml:"entries"`

	byResourceType map[string]ProfileEntry
}

func (p *Profile) index() {
	p.byResourceType = make(map[string]ProfileEntry, len(p.Entries))
	for _, e := range p.Entries {
		p.byResourceType[e.ResourceType] = e
	}
}

// EntryFor returns the profile's usage model for a resource type, if any.
func (p *Profile) EntryFor(resourceType string) (ProfileEntry, bool) {
	if p.byResourceType == nil {
		p.index()
	}
	e, ok := p.byResourceType[resourceType]
	return e, ok
}

// Registry loads and indexes named usage profiles by name.
type Registry struct {
	profiles map[string]*Profile
}

// NewRegistry creates an empty profile registry.
func NewRegistry() *Registry {
	return &Registry{profiles: make(map[string]*Profile)}
}

// LoadDir reads every *.yaml/*.yml file in dir and registers the profile it
// contains, keyed by the profile's own Name field (not the filename). A
// file whose Name is empty is rejected rather than silently registered
// under an empty key.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("usage: read profile dir %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if err := r.LoadFile(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// LoadFile parses a single profile YAML file and registers it.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("usage: read profile %s: %w", path, err)
	}
	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return fmt.Errorf("usage: parse profile %s: %w", path, err)
	}
	if profile.Name == "" {
		return fmt.Errorf("usage: profile %s has no name", path)
	}
	profile.index()
	r.profiles[profile.Name] = &profile
	return nil
}

// Register adds an already-constructed profile directly, for tests and
// callers building profiles without a filesystem.
func (r *Registry) Register(profile *Profile) {
	profile.index()
	r.profiles[profile.Name] = profile
}

// Get returns a registered profile by name.
func (r *Registry) Get(name string) (*Profile, bool) {
	p, ok := r.profiles[name]
	return p, ok
}

// Names returns every registered profile's name.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	return names
}
