// Package textnorm canonicalizes free text (receipt lines, symptom
// descriptions, rule texts, aliases) so that it can be compared by substring.
//
// Every matcher in the engine must go through Normalize; comparing a
// normalized string with a raw one is a bug.
package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// combiningBreve is kept so that й survives decomposition.
const combiningBreve = '\u0306'

// newFolder builds a transformer that drops diacritics: é -> e, ё -> е,
// while й stays й. Chained transformers hold buffers, so each call gets its own.
func newFolder() transform.Transformer {
	return transform.Chain(
		norm.NFD,
		runes.Remove(runes.Predicate(func(r rune) bool {
			return unicode.Is(unicode.Mn, r) && r != combiningBreve
		})),
		norm.NFC,
	)
}

// Normalize lowercases text, folds diacritics and ё to е, turns every
// character outside [a-z], [а-я], [0-9] into a space, collapses runs of
// whitespace and trims. It is total and idempotent.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	lowered := strings.ToLower(text)
	folded, _, err := transform.String(newFolder(), lowered)
	if err != nil {
		folded = lowered
	}
	folded = strings.ReplaceAll(folded, "ё", "е")

	var b strings.Builder
	b.Grow(len(folded))
	pendingSpace := false
	for _, r := range folded {
		if !keep(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Tokens returns the space-separated words of the normalized text.
func Tokens(text string) []string {
	return strings.Fields(Normalize(text))
}

// RuneLen is the length used by all scoring formulas: characters, not bytes.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

func keep(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r >= 'а' && r <= 'я':
		return true
	}
	return false
}
