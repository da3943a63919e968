package knowledgebase

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askmap/diagnostic-engine/internal/apperrors"
	"github.com/askmap/diagnostic-engine/internal/catalog"
	"github.com/askmap/diagnostic-engine/internal/storage"
)

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = storage.NewMigrator(db, "sqlite").Up(context.Background())
	require.NoError(t, err)
	return storage.NewStore(db)
}

func TestDefaultSeed(t *testing.T) {
	seed, err := DefaultSeed()
	require.NoError(t, err)

	codes := make(map[string]bool)
	for _, c := range seed.Components {
		codes[c.Code] = true
	}
	assert.True(t, codes["engine_oil"])
	assert.True(t, codes["zone_chassis"])

	for _, a := range seed.Aliases {
		assert.True(t, codes[a.Code], "alias %q points at a seeded component", a.Alias)
	}
	for _, r := range seed.Rules {
		assert.True(t, codes[r.Code], "rule %s points at a seeded component", r.Code)
	}
}

func TestParseSeed_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing code", "components:\n  - {name: Масло}\n"},
		{"duplicate code", "components:\n  - {code: a, name: A}\n  - {code: a, name: B}\n"},
		{"missing name", "components:\n  - {code: a}\n"},
		{"negative lifespan", "components:\n  - {code: a, name: A, lifespan_km: -1}\n"},
		{"empty alias", "aliases:\n  - {alias: '', code: a}\n"},
		{"unknown symptom", "rules:\n  - {symptom: HUM, code: a, base_weight: 0.5}\n"},
		{"weight above one", "rules:\n  - {symptom: KNOCK, code: a, base_weight: 1.5}\n"},
		{"rule without code", "rules:\n  - {symptom: KNOCK, base_weight: 0.5}\n"},
		{"broken yaml", "components: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSeed([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation))
		})
	}
}

func TestLoadSeed_MissingFile(t *testing.T) {
	_, err := LoadSeed(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeIO))
}

func TestImporter_DefaultSeedIsIdempotent(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	seed, err := DefaultSeed()
	require.NoError(t, err)

	var calls []Stage
	im := NewImporter(store, nil, func(stage Stage, done, total int) {
		if done == total {
			calls = append(calls, stage)
		}
	})

	first, err := im.Import(ctx, seed)
	require.NoError(t, err)
	assert.Equal(t, len(seed.Components), first.Components)
	assert.Equal(t, len(seed.Aliases), first.Aliases)
	assert.Equal(t, len(seed.Rules), first.RulesCreated)
	assert.Zero(t, first.RulesUpdated)
	assert.Empty(t, first.Skipped)
	assert.Equal(t, []Stage{StageComponents, StageAliases, StageRules}, calls)

	second, err := im.Import(ctx, seed)
	require.NoError(t, err)
	assert.Zero(t, second.RulesCreated)
	assert.Equal(t, len(seed.Rules), second.RulesUpdated)

	rules, err := store.Rules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, len(seed.Rules))
	aliases, err := store.Aliases(ctx)
	require.NoError(t, err)
	assert.Len(t, aliases, len(seed.Aliases))
}

func TestImporter_SkipsUnknownComponents(t *testing.T) {
	store := newStore(t)
	seed := &Seed{
		Components: []catalog.Component{{Code: "battery", Name: "Аккумулятор"}},
		Aliases:    []AliasEntry{{Alias: "акб", Code: "battery"}, {Alias: "ремень", Code: "belt"}},
		Rules: []RuleEntry{
			{Symptom: "starting_issue", Condition: "в мороз", Code: "battery", BaseWeight: 0.8},
			{Symptom: catalog.SymptomNoise, Code: "belt", BaseWeight: 0.5},
		},
	}

	result, err := NewImporter(store, nil, nil).Import(context.Background(), seed)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Aliases)
	assert.Equal(t, 1, result.RulesCreated)
	assert.Len(t, result.Skipped, 2)

	rules, err := store.RulesForSymptom(context.Background(), catalog.SymptomStartingIssue)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Nil(t, rules[0].Location)
	assert.Equal(t, "в мороз", *rules[0].Condition)

	c, err := store.ComponentRepo.GetByCode(context.Background(), "battery")
	require.NoError(t, err)
	assert.Equal(t, catalog.CategoryOther, c.Category)
}

func TestBuildExport(t *testing.T) {
	pads := catalog.Component{ID: uuid.New(), Code: "brake_pads_front", Name: "Передние тормозные колодки", DistanceLifespan: catalog.Ptr(30000), Importance: 5, SafetyCritical: true}
	battery := catalog.Component{ID: uuid.New(), Code: "battery", Name: "АКБ", TimeLifespanMonths: catalog.Ptr(48)}
	zone := catalog.Component{ID: uuid.New(), Code: "zone_wheels", Name: "Колеса и шины"}

	rules := []catalog.Rule{
		{Symptom: catalog.SymptomSqueak, ComponentID: pads.ID, Condition: catalog.Ptr("при торможении"), BaseWeight: 0.7},
		{Symptom: catalog.SymptomKnock, ComponentID: zone.ID, ComponentCode: "zone_wheels", BaseWeight: 0.2},
	}

	out := BuildExport([]catalog.Component{pads, zone, battery}, rules)

	require.Len(t, out.Components, 2)
	assert.Equal(t, "battery", out.Components[0].PartCode)
	assert.Equal(t, "brake_pads_front", out.Components[1].PartCode)

	require.Len(t, out.KnowledgeBase, 2)
	assert.Equal(t, catalog.SymptomKnock, out.KnowledgeBase[0].Symptom)
	assert.Equal(t, "zone_wheels", out.KnowledgeBase[0].Code)
	assert.Equal(t, "brake_pads_front", out.KnowledgeBase[1].Code)
	assert.Equal(t, "при торможении", out.KnowledgeBase[1].Condition)

	var buf bytes.Buffer
	require.NoError(t, out.Write(&buf))
	var raw map[string][]map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	assert.Equal(t, "brake_pads_front", raw["knowledgeBase"][1]["componentPartCode"])
	assert.Equal(t, true, raw["components"][1]["isSafetyCritical"])
	assert.Nil(t, raw["components"][0]["lifespanKm"])
}

func TestExport_RoundTripThroughStorage(t *testing.T) {
	ctx := context.Background()
	src := newStore(t)
	seed, err := DefaultSeed()
	require.NoError(t, err)
	_, err = NewImporter(src, nil, nil).Import(ctx, seed)
	require.NoError(t, err)

	exported, err := ExportFrom(ctx, src)
	require.NoError(t, err)
	for _, c := range exported.Components {
		assert.False(t, strings.HasPrefix(c.PartCode, ZonePrefix))
	}

	path := filepath.Join(t.TempDir(), FileName(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)))
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, exported.Write(f))
	require.NoError(t, f.Close())
	assert.Equal(t, "askmap_knowledge_2025-06-01.json", filepath.Base(path))

	loaded, err := LoadExport(path)
	require.NoError(t, err)

	dst := newStore(t)
	result, err := NewImporter(dst, nil, nil).Import(ctx, loaded.Seed())
	require.NoError(t, err)
	assert.Equal(t, len(exported.Components), result.Components)
	assert.Equal(t, len(seed.Rules), result.RulesCreated)
}
