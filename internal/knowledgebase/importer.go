package knowledgebase

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/askmap/diagnostic-engine/internal/apperrors"
	"github.com/askmap/diagnostic-engine/internal/catalog"
	"github.com/askmap/diagnostic-engine/internal/observability"
)

// Writer is the storage the importer writes into.
type Writer interface {
	Components(ctx context.Context) ([]catalog.Component, error)
	UpsertComponent(ctx context.Context, c *catalog.Component) error
	CreateAlias(ctx context.Context, a catalog.Alias) error
	UpsertRule(ctx context.Context, rule *catalog.Rule) (bool, error)
}

// Stage names an import phase for progress reporting.
type Stage string

const (
	StageComponents Stage = "components"
	StageAliases    Stage = "aliases"
	StageRules      Stage = "rules"
)

// ProgressFunc is called after each record of a stage.
type ProgressFunc func(stage Stage, done, total int)

// ImportResult counts what an import changed.
type ImportResult struct {
	Components   int      `json:"components"`
	Aliases      int      `json:"aliases"`
	RulesCreated int      `json:"rulesCreated"`
	RulesUpdated int      `json:"rulesUpdated"`
	Skipped      []string `json:"skipped"`
}

// Importer writes a seed into storage. Components are upserted by code,
// aliases are created once and rules update their weight when an identical
// rule exists.
type Importer struct {
	store    Writer
	logger   *observability.Logger
	progress ProgressFunc
}

// NewImporter creates an importer. progress may be nil.
func NewImporter(store Writer, logger *observability.Logger, progress ProgressFunc) *Importer {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if progress == nil {
		progress = func(Stage, int, int) {}
	}
	return &Importer{store: store, logger: logger.WithOperation("knowledge_import"), progress: progress}
}

// Import writes the seed. Aliases and rules naming an unknown component are
// skipped with a warning.
func (im *Importer) Import(ctx context.Context, seed *Seed) (*ImportResult, error) {
	result := &ImportResult{Skipped: []string{}}

	for i := range seed.Components {
		c := seed.Components[i]
		if c.Category == "" {
			c.Category = catalog.CategoryOther
		}
		if err := im.store.UpsertComponent(ctx, &c); err != nil {
			return result, apperrors.StorageError(fmt.Sprintf("upsert component %s", c.Code), err)
		}
		result.Components++
		im.progress(StageComponents, i+1, len(seed.Components))
	}

	ids, err := im.componentIDs(ctx)
	if err != nil {
		return result, err
	}

	for i, a := range seed.Aliases {
		id, ok := ids[a.Code]
		if !ok {
			im.skip(result, fmt.Sprintf("alias %q: unknown component %s", a.Alias, a.Code))
			im.progress(StageAliases, i+1, len(seed.Aliases))
			continue
		}
		if err := im.store.CreateAlias(ctx, catalog.Alias{Alias: a.Alias, ComponentID: id, Locale: "ru"}); err != nil {
			return result, apperrors.StorageError(fmt.Sprintf("create alias %q", a.Alias), err)
		}
		result.Aliases++
		im.progress(StageAliases, i+1, len(seed.Aliases))
	}

	for i, r := range seed.Rules {
		id, ok := ids[r.Code]
		if !ok {
			im.skip(result, fmt.Sprintf("rule %s: unknown component %s", r.Symptom, r.Code))
			im.progress(StageRules, i+1, len(seed.Rules))
			continue
		}
		symptom, err := catalog.ParseSymptomCode(string(r.Symptom))
		if err != nil {
			return result, apperrors.ValidationError("import rule", err)
		}
		rule := &catalog.Rule{
			Symptom:     symptom,
			Location:    optional(r.Location),
			Condition:   optional(r.Condition),
			ComponentID: id,
			BaseWeight:  r.BaseWeight,
		}
		created, err := im.store.UpsertRule(ctx, rule)
		if err != nil {
			return result, apperrors.StorageError(fmt.Sprintf("upsert rule %s/%s", r.Symptom, r.Code), err)
		}
		if created {
			result.RulesCreated++
		} else {
			result.RulesUpdated++
		}
		im.progress(StageRules, i+1, len(seed.Rules))
	}

	im.logger.Info().
		Int("components", result.Components).
		Int("aliases", result.Aliases).
		Int("rules_created", result.RulesCreated).
		Int("rules_updated", result.RulesUpdated).
		Int("skipped", len(result.Skipped)).
		Msg("Knowledge base imported")
	return result, nil
}

func (im *Importer) componentIDs(ctx context.Context) (map[string]uuid.UUID, error) {
	components, err := im.store.Components(ctx)
	if err != nil {
		return nil, apperrors.StorageError("list components", err)
	}
	ids := make(map[string]uuid.UUID, len(components))
	for _, c := range components {
		ids[c.Code] = c.ID
	}
	return ids, nil
}

func (im *Importer) skip(result *ImportResult, reason string) {
	im.logger.Warn().Str("reason", reason).Msg("Seed record skipped")
	result.Skipped = append(result.Skipped, reason)
}
