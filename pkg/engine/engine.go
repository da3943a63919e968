// Package engine is the public Go SDK for the diagnostic engine: the pure
// wear, alias and ranking algorithms in-process, plus a client for a running
// API server.
package engine

import (
	"github.com/askmap/diagnostic-engine/internal/alias"
	"github.com/askmap/diagnostic-engine/internal/catalog"
	"github.com/askmap/diagnostic-engine/internal/ranking"
	"github.com/askmap/diagnostic-engine/internal/textnorm"
	"github.com/askmap/diagnostic-engine/internal/wear"
)

type (
	Component      = catalog.Component
	UsageEvent     = catalog.UsageEvent
	OdometerSample = catalog.OdometerSample
	Rule           = catalog.Rule
	Alias          = catalog.Alias
	HealthState    = catalog.HealthState
	RankedCause    = catalog.RankedCause
	SymptomCode    = catalog.SymptomCode
	Status         = catalog.Status
	AliasMatch     = alias.Result
	HealthInput    = wear.Input
)

// ComputeHealthStates evaluates the wear of every tracked component.
func ComputeHealthStates(in HealthInput) []HealthState {
	return wear.ComputeHealthStates(in)
}

// MatchAlias links a text fragment to the best matching component alias.
func MatchAlias(fragment string, table []Alias) AliasMatch {
	return alias.Match(fragment, table)
}

// RankCauses orders knowledge-base rules for a symptom by keyword hits.
func RankCauses(symptom SymptomCode, keywords []string, rules []Rule) []RankedCause {
	return ranking.Rank(symptom, keywords, rules)
}

// Normalize folds text the way every matcher in the engine compares it.
func Normalize(text string) string {
	return textnorm.Normalize(text)
}

// ParseSymptomCode validates a symptom code.
func ParseSymptomCode(s string) (SymptomCode, error) {
	return catalog.ParseSymptomCode(s)
}
