package ranking

import (
	"context"
	"errors"
	"strings"
)

// Source tells where a keyword set came from.
type Source string

const (
	SourceEnriched Source = "enriched"
	SourceFallback Source = "fallback"
)

// ErrEmptyEnrichment is recorded when the enricher answered with no keywords.
var ErrEmptyEnrichment = errors.New("enricher returned no keywords")

// Enricher expands free text into related keywords (synonyms, slang,
// technical terms). Implementations may be slow or fail.
type Enricher interface {
	Enrich(ctx context.Context, text string) ([]string, error)
}

// KeywordSet is the output of the two-stage keyword pipeline.
type KeywordSet struct {
	Keywords []string `json:"keywords"`
	Source   Source   `json:"source"`
	// EnrichErr is why enrichment was not used. It is informational only.
	EnrichErr error `json:"-"`
}

// FallbackKeywords splits the raw location and condition on spaces,
// lowercased. Nil fragments contribute nothing.
func FallbackKeywords(location, condition *string) []string {
	keywords := make([]string, 0)
	for _, fragment := range []*string{location, condition} {
		if fragment == nil {
			continue
		}
		keywords = append(keywords, strings.Fields(strings.ToLower(*fragment))...)
	}
	return keywords
}

// ResolveKeywords asks the enricher first and degrades to FallbackKeywords
// when it fails, times out or returns nothing. It never returns an error;
// a nil enricher goes straight to the fallback.
func ResolveKeywords(ctx context.Context, enricher Enricher, originalText string, location, condition *string) KeywordSet {
	var enrichErr error
	if enricher != nil && strings.TrimSpace(originalText) != "" {
		keywords, err := enricher.Enrich(ctx, originalText)
		switch {
		case err != nil:
			enrichErr = err
		case len(nonBlank(keywords)) == 0:
			enrichErr = ErrEmptyEnrichment
		default:
			return KeywordSet{Keywords: nonBlank(keywords), Source: SourceEnriched}
		}
	}

	return KeywordSet{
		Keywords:  FallbackKeywords(location, condition),
		Source:    SourceFallback,
		EnrichErr: enrichErr,
	}
}

func nonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
