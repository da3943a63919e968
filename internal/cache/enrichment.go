package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/askmap/diagnostic-engine/internal/observability"
	"github.com/askmap/diagnostic-engine/internal/textnorm"
)

const enrichmentNamespace = "enrich"

// Enricher is the keyword enrichment oracle being cached.
type Enricher interface {
	Enrich(ctx context.Context, text string) ([]string, error)
}

// CachingEnricher memoizes enrichment answers per normalized text. Cache
// failures are logged and bypassed; only non-empty answers are stored.
type CachingEnricher struct {
	next   Enricher
	client Client
	ttl    time.Duration
	logger *observability.Logger
}

// NewCachingEnricher wraps next with the given cache.
func NewCachingEnricher(next Enricher, client Client, ttl time.Duration, logger *observability.Logger) *CachingEnricher {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &CachingEnricher{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger.WithOperation("enrichment_cache"),
	}
}

// Enrich returns the cached answer or asks the wrapped enricher.
func (e *CachingEnricher) Enrich(ctx context.Context, text string) ([]string, error) {
	key := Key(enrichmentNamespace, textnorm.Normalize(text))

	data, err := e.client.Get(ctx, key)
	switch {
	case err == nil:
		var keywords []string
		if jsonErr := json.Unmarshal(data, &keywords); jsonErr == nil {
			e.logger.Debug().Str("key", key).Msg("Enrichment cache hit")
			return keywords, nil
		}
	case !errors.Is(err, ErrCacheMiss):
		e.logger.Warn().Err(err).Msg("Enrichment cache read failed")
	}

	keywords, err := e.next.Enrich(ctx, text)
	if err != nil || len(keywords) == 0 {
		return keywords, err
	}

	if data, err := json.Marshal(keywords); err == nil {
		if err := e.client.Set(ctx, key, data, e.ttl); err != nil {
			e.logger.Warn().Err(err).Msg("Enrichment cache write failed")
		}
	}
	return keywords, nil
}

// InvalidateEnrichment drops every cached enrichment answer.
func InvalidateEnrichment(ctx context.Context, client Client) error {
	return client.DeleteByPrefix(ctx, Key(enrichmentNamespace, ""))
}
