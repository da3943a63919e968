package alias

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/hbollon/go-edlib"

	"github.com/askmap/diagnostic-engine/internal/catalog"
	"github.com/askmap/diagnostic-engine/internal/textnorm"
)

const (
	// MinTokenLen drops prepositions and conjunctions from the query.
	MinTokenLen = 3
	// SimilarityThreshold is the Jaro-Winkler floor for the fuzzy fallback.
	SimilarityThreshold = 0.85
)

// Suggestion is one candidate component for a free-text name.
type Suggestion struct {
	Component catalog.Component `json:"component"`
	Score     float64           `json:"score"`
	// Method is "alias", "tokens" or "fuzzy".
	Method string `json:"method"`
}

// Suggest ranks catalog components for a name the user (or the oracle)
// proposed. An alias hit goes first; then components sharing query words;
// when no words overlap, names close by Jaro-Winkler similarity.
func Suggest(name string, components []catalog.Component, aliases []catalog.Alias, limit int) []Suggestion {
	suggestions := make([]Suggestion, 0)
	query := textnorm.Normalize(name)
	if query == "" {
		return suggestions
	}

	seen := make(map[uuid.UUID]bool)
	if hit := Match(name, aliases); hit.Matched {
		for _, c := range components {
			if c.ID == hit.ComponentID {
				suggestions = append(suggestions, Suggestion{Component: c, Score: hit.Confidence, Method: "alias"})
				seen[c.ID] = true
				break
			}
		}
	}

	var tokens []string
	for _, tok := range strings.Fields(query) {
		if textnorm.RuneLen(tok) >= MinTokenLen {
			tokens = append(tokens, tok)
		}
	}

	var overlapping []Suggestion
	for _, c := range components {
		if seen[c.ID] {
			continue
		}
		componentName := textnorm.Normalize(c.Name)
		hits := 0
		for _, tok := range tokens {
			if strings.Contains(componentName, tok) {
				hits++
			}
		}
		if hits > 0 {
			overlapping = append(overlapping, Suggestion{Component: c, Score: float64(hits), Method: "tokens"})
		}
	}

	if len(overlapping) == 0 {
		overlapping = fuzzy(query, components, seen)
	}

	sort.SliceStable(overlapping, func(i, j int) bool {
		return overlapping[i].Score > overlapping[j].Score
	})
	suggestions = append(suggestions, overlapping...)

	if limit > 0 && len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions
}

func fuzzy(query string, components []catalog.Component, seen map[uuid.UUID]bool) []Suggestion {
	var out []Suggestion
	for _, c := range components {
		if seen[c.ID] {
			continue
		}
		similarity, err := edlib.StringsSimilarity(query, textnorm.Normalize(c.Name), edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if float64(similarity) >= SimilarityThreshold {
			out = append(out, Suggestion{Component: c, Score: float64(similarity), Method: "fuzzy"})
		}
	}
	return out
}
