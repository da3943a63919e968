// Package diagnostics runs the engine's use cases against storage and the
// text oracle: component health, symptom analysis, free-text interpretation,
// document parsing and component suggestions.
package diagnostics

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/askmap/diagnostic-engine/internal/alias"
	"github.com/askmap/diagnostic-engine/internal/apperrors"
	"github.com/askmap/diagnostic-engine/internal/catalog"
	"github.com/askmap/diagnostic-engine/internal/observability"
	"github.com/askmap/diagnostic-engine/internal/oracle"
	"github.com/askmap/diagnostic-engine/internal/ranking"
	"github.com/askmap/diagnostic-engine/internal/receipt"
	"github.com/askmap/diagnostic-engine/internal/storage"
	"github.com/askmap/diagnostic-engine/internal/wear"
)

// Store is the persistence the service reads and writes.
type Store interface {
	Components(ctx context.Context) ([]catalog.Component, error)
	Aliases(ctx context.Context) ([]catalog.Alias, error)
	RulesForSymptom(ctx context.Context, symptom catalog.SymptomCode) ([]catalog.Rule, error)
	UsageEvents(ctx context.Context, vehicleID uuid.UUID) ([]catalog.UsageEvent, error)
	LatestOdometer(ctx context.Context, vehicleID uuid.UUID) (*catalog.OdometerSample, error)
	Document(ctx context.Context, id uuid.UUID) (*storage.Document, error)
	SetDocumentStatus(ctx context.Context, id uuid.UUID, status storage.DocumentStatus) error
	SaveParsedDocument(ctx context.Context, id uuid.UUID, ocrText string, parsed receipt.Document, confidence float64) error
	CreateOdometerSample(ctx context.Context, sample *catalog.OdometerSample) error
	CreateUsageEvent(ctx context.Context, ev *catalog.UsageEvent) error
}

// Interpreter turns free text into a symptom and keywords.
type Interpreter interface {
	Interpret(ctx context.Context, text string) (oracle.Interpretation, error)
}

// Options configures a Service. Zero values fall back to defaults.
type Options struct {
	MaxResults             int
	EnrichTimeout          time.Duration
	ExplanationConcurrency int
	SuggestionLimit        int
	// OCRProvider is recorded in parsed documents.
	OCRProvider string
}

// Deps are the collaborators of a Service. Only Store is required.
type Deps struct {
	Store       Store
	Enricher    ranking.Enricher
	Explainer   oracle.Explainer
	Interpreter Interpreter
	Extractor   oracle.TextExtractor
	Logger      *observability.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Service implements the diagnostic use cases.
type Service struct {
	store       Store
	enricher    ranking.Enricher
	explainer   oracle.Explainer
	interpreter Interpreter
	extractor   oracle.TextExtractor
	ranker      *ranking.Engine
	logger      *observability.Logger
	now         func() time.Time
	opts        Options
}

// NewService wires a service.
func NewService(deps Deps, opts Options) *Service {
	if opts.MaxResults <= 0 {
		opts.MaxResults = ranking.MaxResults
	}
	if opts.EnrichTimeout <= 0 {
		opts.EnrichTimeout = 8 * time.Second
	}
	if opts.ExplanationConcurrency <= 0 {
		opts.ExplanationConcurrency = 4
	}
	if opts.SuggestionLimit <= 0 {
		opts.SuggestionLimit = 10
	}
	if opts.OCRProvider == "" {
		opts.OCRProvider = "static"
	}

	logger := deps.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	extractor := deps.Extractor
	if extractor == nil {
		extractor = oracle.StaticExtractor{}
	}

	return &Service{
		store:       deps.Store,
		enricher:    deps.Enricher,
		explainer:   deps.Explainer,
		interpreter: deps.Interpreter,
		extractor:   extractor,
		ranker:      ranking.NewEngine(opts.MaxResults),
		logger:      logger,
		now:         now,
		opts:        opts,
	}
}

// HealthStates evaluates every tracked component of a vehicle at now.
func (s *Service) HealthStates(ctx context.Context, vehicleID uuid.UUID, now time.Time) ([]catalog.HealthState, error) {
	if vehicleID == uuid.Nil {
		return nil, apperrors.ValidationError("vehicle id is required", nil)
	}

	components, err := s.store.Components(ctx)
	if err != nil {
		return nil, apperrors.StorageError("load components", err)
	}
	events, err := s.store.UsageEvents(ctx, vehicleID)
	if err != nil {
		return nil, apperrors.StorageError("load usage events", err)
	}
	odometer, err := s.store.LatestOdometer(ctx, vehicleID)
	if err != nil {
		return nil, apperrors.StorageError("load odometer", err)
	}

	states := wear.ComputeHealthStates(wear.Input{
		Components: components,
		Events:     events,
		Odometer:   odometer,
		Now:        now,
	})

	s.logger.WithContext(ctx).WithVehicle(vehicleID.String()).Debug().
		Int("components", len(components)).
		Int("events", len(events)).
		Bool("odometer_known", odometer != nil).
		Int("states", len(states)).
		Msg("Health states computed")
	return states, nil
}

// SuggestComponents proposes catalog components for a free-form part name.
// limit <= 0 uses the configured default.
func (s *Service) SuggestComponents(ctx context.Context, name string, limit int) ([]alias.Suggestion, error) {
	if limit <= 0 {
		limit = s.opts.SuggestionLimit
	}
	components, err := s.store.Components(ctx)
	if err != nil {
		return nil, apperrors.StorageError("load components", err)
	}
	aliases, err := s.store.Aliases(ctx)
	if err != nil {
		return nil, apperrors.StorageError("load aliases", err)
	}
	return alias.Suggest(name, components, aliases, limit), nil
}

// MatchAlias links a text fragment to a component through the stored aliases.
func (s *Service) MatchAlias(ctx context.Context, fragment string) (alias.Result, error) {
	aliases, err := s.store.Aliases(ctx)
	if err != nil {
		return alias.Result{}, apperrors.StorageError("load aliases", err)
	}
	return alias.Match(fragment, aliases), nil
}
