package persona

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PrecinctConfig describes a voting precinct with its census demographics.
type PrecinctConfig struct {
	ID           string `yaml:"id"`   // e.g. "SF-P01-Mission"
	Name         string `yaml:"name"` // e.g. "Mission District"
	State        string `yaml:"state"`
	County       string `yaml:"county"`
	Neighborhood string `yaml:"neighborhood"`

	// Demographic distributions: value -> probability weight.
	// Weights need not sum to 1; sampling normalizes them.
	Demographics Demographics `yaml:"demographics"`

	ExpectedVoters int    `yaml:"expected_voters"`
	Description    string `yaml:"description,omitempty"`
}

// Demographics holds the per-attribute sampling distributions.
type Demographics struct {
	Age        map[string]float64 `yaml:"age_distribution"`
	Race       map[string]float64 `yaml:"race_distribution"`
	Education  map[string]float64 `yaml:"education_distribution"`
	Income     map[string]float64 `yaml:"income_distribution"`
	Employment map[string]float64 `yaml:"employment_status"`
	Marital    map[string]float64 `yaml:"marital_status"`
	Party      map[string]float64 `yaml:"party_distribution"`
	Ideology   map[string]float64 `yaml:"ideology_distribution"`
}

// Registry resolves precinct IDs to their configurations.
type Registry struct {
	precincts map[string]PrecinctConfig
	order     []string
}

// NewRegistry builds a registry from precinct configs.
func NewRegistry(configs []PrecinctConfig) *Registry {
	reg := &Registry{precincts: make(map[string]PrecinctConfig, len(configs))}
	for _, cfg := range configs {
		if _, ok := reg.precincts[cfg.ID]; !ok {
			reg.order = append(reg.order, cfg.ID)
		}
		reg.precincts[cfg.ID] = cfg
	}
	return reg
}

// LoadRegistry reads precinct configurations from a YAML file with a
// top-level "precincts" list.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read precinct config: %w", err)
	}

	var doc struct {
		Precincts []PrecinctConfig `yaml:"precincts"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse precinct config: %w", err)
	}
	if len(doc.Precincts) == 0 {
		return nil, fmt.Errorf("precinct config %s defines no precincts", path)
	}

	for _, p := range doc.Precincts {
		if p.ID == "" {
			return nil, fmt.Errorf("precinct config %s: precinct with empty id", path)
		}
	}

	return NewRegistry(doc.Precincts), nil
}

// Resolve returns the config for a precinct ID.
func (r *Registry) Resolve(id string) (PrecinctConfig, bool) {
	cfg, ok := r.precincts[id]
	return cfg, ok
}

// IDs returns all precinct IDs in load order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
