// Package alias maps noisy text fragments (receipt line items, suggested
// component names) onto canonical catalog components.
package alias

import (
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/askmap/diagnostic-engine/internal/catalog"
	"github.com/askmap/diagnostic-engine/internal/textnorm"
)

const (
	// UnmatchedConfidence distinguishes "not found" from "no data".
	UnmatchedConfidence = 0.3

	baseConfidence = 0.8
	maxBonus       = 0.19
	minFragmentLen = 10
)

// Result is the outcome of matching one fragment.
type Result struct {
	Matched       bool      `json:"matched"`
	ComponentID   uuid.UUID `json:"componentId,omitempty"`
	ComponentCode string    `json:"componentCode,omitempty"`
	Alias         string    `json:"alias,omitempty"`
	Confidence    float64   `json:"confidence"`
}

// Unmatched is the sentinel result for fragments no alias covers.
func Unmatched() Result {
	return Result{Confidence: UnmatchedConfidence}
}

// Match returns the highest-scoring alias contained in the fragment.
// Ties keep the alias that appears first in the table.
func Match(fragment string, table []catalog.Alias) Result {
	normFragment := textnorm.Normalize(fragment)
	if normFragment == "" || len(table) == 0 {
		return Unmatched()
	}
	fragmentLen := textnorm.RuneLen(normFragment)

	best := Unmatched()
	bestScore := 0.0
	for _, a := range table {
		normAlias := textnorm.Normalize(a.Alias)
		if normAlias == "" || !contains(normFragment, normAlias) {
			continue
		}

		score := Confidence(textnorm.RuneLen(normAlias), fragmentLen)
		if !best.Matched || score > bestScore {
			bestScore = score
			best = Result{
				Matched:       true,
				ComponentID:   a.ComponentID,
				ComponentCode: a.ComponentCode,
				Alias:         a.Alias,
			}
		}
	}

	if best.Matched {
		best.Confidence = round2(bestScore)
	}
	return best
}

// Confidence scores a hit from normalized rune lengths. Any hit scores at
// least 0.8 and never reaches 1.0.
func Confidence(aliasLen, fragmentLen int) float64 {
	ratio := float64(aliasLen) / float64(max(minFragmentLen, fragmentLen)) / 2
	return baseConfidence + math.Min(maxBonus, ratio)
}

// contains reports a substring hit, or a word-order-insensitive hit where the
// alias tokens cover a run of adjacent fragment words ("фильтр масляный"
// covers "масляный фильтр"). Each alias token must start a distinct word of
// the run.
func contains(fragment, alias string) bool {
	if strings.Contains(fragment, alias) {
		return true
	}
	tokens := strings.Fields(alias)
	if len(tokens) < 2 {
		return false
	}
	words := strings.Fields(fragment)
	for start := 0; start+len(tokens) <= len(words); start++ {
		if coversWindow(tokens, words[start:start+len(tokens)], make([]bool, len(tokens))) {
			return true
		}
	}
	return false
}

// coversWindow assigns every token to a different word it prefixes.
func coversWindow(tokens, window []string, used []bool) bool {
	if len(tokens) == 0 {
		return true
	}
	for i, word := range window {
		if used[i] || !strings.HasPrefix(word, tokens[0]) {
			continue
		}
		used[i] = true
		if coversWindow(tokens[1:], window, used) {
			return true
		}
		used[i] = false
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
