// Package ranking orders knowledge-base rules for a symptom by how many of
// the query keywords appear in each rule's text.
package ranking

import (
	"math"
	"sort"
	"strings"

	"github.com/askmap/diagnostic-engine/internal/catalog"
	"github.com/askmap/diagnostic-engine/internal/textnorm"
)

const (
	// MaxResults caps every ranked list.
	MaxResults = 9
	// minKeywordLen: keywords this short or shorter never score.
	minKeywordLen = 2
)

// Rank scores every rule of the given symptom, keeps those with at least one
// keyword hit and returns at most MaxResults of them, best first. Equal
// scores keep the input order.
func Rank(symptom catalog.SymptomCode, keywords []string, rules []catalog.Rule) []catalog.RankedCause {
	return rank(symptom, keywords, rules, MaxResults)
}

// Engine is Rank with a configurable cap.
type Engine struct {
	limit int
}

// NewEngine returns an engine capped at limit; values outside 1..MaxResults
// fall back to MaxResults.
func NewEngine(limit int) *Engine {
	if limit <= 0 || limit > MaxResults {
		limit = MaxResults
	}
	return &Engine{limit: limit}
}

// Limit returns the effective cap.
func (e *Engine) Limit() int {
	return e.limit
}

// Rank behaves like the package-level Rank with the engine's cap.
func (e *Engine) Rank(symptom catalog.SymptomCode, keywords []string, rules []catalog.Rule) []catalog.RankedCause {
	return rank(symptom, keywords, rules, e.limit)
}

func rank(symptom catalog.SymptomCode, keywords []string, rules []catalog.Rule, limit int) []catalog.RankedCause {
	ranked := make([]catalog.RankedCause, 0)
	terms := searchTerms(keywords)

	for _, rule := range rules {
		if rule.Symptom != symptom {
			continue
		}
		hits := countHits(RuleText(rule), terms)
		if hits == 0 {
			continue
		}
		ranked = append(ranked, catalog.RankedCause{
			RuleID:        rule.ID,
			ComponentID:   rule.ComponentID,
			ComponentName: rule.ComponentName,
			Score:         float64(hits) + rule.BaseWeight,
			Probability:   Probability(rule.BaseWeight),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// RuleText is the normalized blob keywords are searched in: location,
// condition and component name.
func RuleText(rule catalog.Rule) string {
	var location, condition string
	if rule.Location != nil {
		location = *rule.Location
	}
	if rule.Condition != nil {
		condition = *rule.Condition
	}
	return textnorm.Normalize(location + " " + condition + " " + rule.ComponentName)
}

// Probability is the rule's prior weight shown as a percentage. It does not
// depend on the keyword score.
func Probability(baseWeight float64) int {
	return int(math.Round(baseWeight * 100))
}

// searchTerms normalizes keywords the same way rule texts are normalized and
// drops the ones too short to count.
func searchTerms(keywords []string) []string {
	terms := make([]string, 0, len(keywords))
	for _, k := range keywords {
		n := textnorm.Normalize(k)
		if textnorm.RuneLen(n) > minKeywordLen {
			terms = append(terms, n)
		}
	}
	return terms
}

func countHits(text string, terms []string) int {
	hits := 0
	for _, term := range terms {
		if strings.Contains(text, term) {
			hits++
		}
	}
	return hits
}
