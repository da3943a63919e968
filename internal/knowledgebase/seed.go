// Package knowledgebase loads the reference catalog, alias dictionary and
// symptom rules into storage and exports them back as JSON.
package knowledgebase

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/askmap/diagnostic-engine/internal/apperrors"
	"github.com/askmap/diagnostic-engine/internal/catalog"
)

//go:embed data/seed.yaml
var defaultSeed []byte

// ZonePrefix marks virtual components that stand for a car area, not a part.
const ZonePrefix = "zone_"

// Seed is the content of a seed file. Aliases and rules refer to components
// by code.
type Seed struct {
	Components []catalog.Component `yaml:"components"`
	Aliases    []AliasEntry        `yaml:"aliases"`
	Rules      []RuleEntry         `yaml:"rules"`
}

// AliasEntry is one spelling of a component.
type AliasEntry struct {
	Alias string `yaml:"alias"`
	Code  string `yaml:"code"`
}

// RuleEntry is one symptom rule.
type RuleEntry struct {
	Symptom    catalog.SymptomCode `yaml:"symptom" json:"symptom"`
	Location   string              `yaml:"location,omitempty" json:"location"`
	Condition  string              `yaml:"condition,omitempty" json:"condition"`
	BaseWeight float64             `yaml:"base_weight" json:"baseWeight"`
	Code       string              `yaml:"code" json:"componentPartCode"`
}

// DefaultSeed returns the built-in seed.
func DefaultSeed() (*Seed, error) {
	return ParseSeed(defaultSeed)
}

// LoadSeed reads a YAML seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.IOError(fmt.Sprintf("read seed file %s", path), err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes and validates YAML seed data.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, apperrors.ValidationError("decode seed", err)
	}
	if err := seed.Validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

// Validate checks the seed's own consistency. References to codes missing
// from the seed are allowed; they may already exist in storage.
func (s *Seed) Validate() error {
	seen := make(map[string]bool, len(s.Components))
	for i, c := range s.Components {
		code := strings.TrimSpace(c.Code)
		if code == "" {
			return apperrors.ValidationError(fmt.Sprintf("component %d: code is required", i), nil)
		}
		if seen[code] {
			return apperrors.ValidationError(fmt.Sprintf("component %s: duplicate code", code), nil)
		}
		seen[code] = true
		if strings.TrimSpace(c.Name) == "" {
			return apperrors.ValidationError(fmt.Sprintf("component %s: name is required", code), nil)
		}
		if c.DistanceLifespan != nil && *c.DistanceLifespan < 0 {
			return apperrors.ValidationError(fmt.Sprintf("component %s: negative lifespan_km", code), nil)
		}
		if c.TimeLifespanMonths != nil && *c.TimeLifespanMonths < 0 {
			return apperrors.ValidationError(fmt.Sprintf("component %s: negative lifespan_months", code), nil)
		}
	}

	for i, a := range s.Aliases {
		if strings.TrimSpace(a.Alias) == "" || strings.TrimSpace(a.Code) == "" {
			return apperrors.ValidationError(fmt.Sprintf("alias %d: alias and code are required", i), nil)
		}
	}

	for i, r := range s.Rules {
		if _, err := catalog.ParseSymptomCode(string(r.Symptom)); err != nil {
			return apperrors.ValidationError(fmt.Sprintf("rule %d", i), err)
		}
		if r.BaseWeight < 0 || r.BaseWeight > 1 {
			return apperrors.ValidationError(fmt.Sprintf("rule %d: base_weight %.2f outside [0, 1]", i, r.BaseWeight), nil)
		}
		if strings.TrimSpace(r.Code) == "" {
			return apperrors.ValidationError(fmt.Sprintf("rule %d: code is required", i), nil)
		}
	}
	return nil
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
