package store

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jmerrifield20/SecretTriage/internal/triage/model"
)

//go:embed defaults.yaml
var defaultPack []byte

// RulePack is a YAML bundle of feature definitions and heuristic rules.
type RulePack struct {
	Features   []FeatureSpec         `yaml:"features"`
	Heuristics []model.HeuristicRule `yaml:"heuristics"`
}

// FeatureSpec is the YAML form of a FeatureDefinition. Config is free-form
// and converted to JSON when the pack is applied.
type FeatureSpec struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Kind        model.FeatureKind `yaml:"kind"`
	Config      map[string]any    `yaml:"config"`
	Enabled     *bool             `yaml:"enabled"`
}

// DefaultRulePack returns the built-in rule pack.
func DefaultRulePack() (*RulePack, error) {
	return ParseRulePack(defaultPack)
}

// LoadRulePack reads a rule pack from a YAML file.
func LoadRulePack(path string) (*RulePack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule pack: %w", err)
	}
	return ParseRulePack(data)
}

// ParseRulePack decodes and validates a YAML rule pack. Rules are enabled
// unless they say otherwise.
func ParseRulePack(data []byte) (*RulePack, error) {
	var raw struct {
		Features   []FeatureSpec `yaml:"features"`
		Heuristics []struct {
			model.HeuristicRule `yaml:",inline"`
			Enabled             *bool `yaml:"enabled"`
		} `yaml:"heuristics"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse rule pack: %w", err)
	}

	pack := &RulePack{Features: raw.Features}
	for _, h := range raw.Heuristics {
		r := h.HeuristicRule
		r.Enabled = h.Enabled == nil || *h.Enabled
		pack.Heuristics = append(pack.Heuristics, r)
	}
	if err := pack.Validate(); err != nil {
		return nil, err
	}
	return pack, nil
}

// Validate checks names are unique and present and that kinds and operators
// are known. It does not compile patterns or expressions.
func (p *RulePack) Validate() error {
	seen := map[string]bool{}
	for i, f := range p.Features {
		if f.Name == "" {
			return fmt.Errorf("feature #%d: name is required", i+1)
		}
		if seen[f.Name] {
			return fmt.Errorf("feature %q: duplicate name", f.Name)
		}
		seen[f.Name] = true
		if !f.Kind.Valid() {
			return fmt.Errorf("feature %q: unknown kind %q", f.Name, f.Kind)
		}
	}
	seen = map[string]bool{}
	for i, h := range p.Heuristics {
		if h.Name == "" {
			return fmt.Errorf("heuristic #%d: name is required", i+1)
		}
		if seen[h.Name] {
			return fmt.Errorf("heuristic %q: duplicate name", h.Name)
		}
		seen[h.Name] = true
		if !h.Condition.Operator.Valid() {
			return fmt.Errorf("heuristic %q: unknown operator %q", h.Name, h.Condition.Operator)
		}
		if h.Condition.Feature == "" {
			return fmt.Errorf("heuristic %q: condition.feature is required", h.Name)
		}
	}
	return nil
}

// Definitions converts the feature specs into stored definitions.
func (p *RulePack) Definitions() ([]model.FeatureDefinition, error) {
	out := make([]model.FeatureDefinition, 0, len(p.Features))
	for _, f := range p.Features {
		cfg := f.Config
		if cfg == nil {
			cfg = map[string]any{}
		}
		raw, err := json.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("feature %q: encode config: %w", f.Name, err)
		}
		out = append(out, model.FeatureDefinition{
			Name:        f.Name,
			Description: f.Description,
			Kind:        f.Kind,
			Config:      raw,
			Enabled:     f.Enabled == nil || *f.Enabled,
		})
	}
	return out, nil
}

// Names returns the feature and heuristic names in pack order.
func (p *RulePack) Names() (features, heuristics []string) {
	features = make([]string, 0, len(p.Features))
	for _, f := range p.Features {
		features = append(features, f.Name)
	}
	heuristics = make([]string, 0, len(p.Heuristics))
	for _, h := range p.Heuristics {
		heuristics = append(heuristics, h.Name)
	}
	return features, heuristics
}
