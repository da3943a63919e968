// Package app builds the diagnostic engine's runtime graph from configuration.
// The API server and the CLI share it.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/askmap/diagnostic-engine/internal/cache"
	"github.com/askmap/diagnostic-engine/internal/config"
	"github.com/askmap/diagnostic-engine/internal/diagnostics"
	"github.com/askmap/diagnostic-engine/internal/observability"
	"github.com/askmap/diagnostic-engine/internal/oracle"
	"github.com/askmap/diagnostic-engine/internal/storage"
)

// App holds the wired services and the resources they own.
type App struct {
	Config      *config.Config
	Logger      *observability.Logger
	Store       *storage.Store
	Cache       cache.Client
	Diagnostics *diagnostics.Service

	// OracleEnabled reports whether a completion client was configured.
	OracleEnabled bool
}

// NewLogger creates the process logger from configuration.
func NewLogger(cfg *config.Config) *observability.Logger {
	return observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
}

// Build opens storage, applies migrations and wires the diagnostics service.
func Build(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*App, error) {
	if logger == nil {
		logger = NewLogger(cfg)
	}

	db, err := storage.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	applied, err := storage.NewMigrator(db, cfg.Database.Driver).Up(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	if len(applied) > 0 {
		logger.Info().Strs("migrations", applied).Msg("Applied migrations")
	}
	store := storage.NewStore(db)

	cacheClient, err := cache.New(cfg.Cache)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create cache: %w", err)
	}

	deps := diagnostics.Deps{
		Store:  store,
		Logger: logger.WithOperation("diagnostics"),
	}

	oracleEnabled := false
	if cfg.Oracle.Enabled {
		client, err := NewOracleClient(cfg.Oracle, logger)
		if err != nil {
			_ = cacheClient.Close()
			_ = store.Close()
			return nil, fmt.Errorf("create oracle client: %w", err)
		}
		deps.Enricher = cache.NewCachingEnricher(oracle.NewEnricher(client), cacheClient, cfg.Cache.TTL, logger)
		deps.Explainer = oracle.NewExplainer(client)
		deps.Interpreter = oracle.NewInterpreter(client)
		oracleEnabled = true
	} else {
		logger.Warn().Msg("Oracle disabled; analysis uses built-in keywords only")
	}

	svc := diagnostics.NewService(deps, diagnostics.Options{
		MaxResults:             cfg.Diagnostics.MaxResults,
		EnrichTimeout:          cfg.Diagnostics.EnrichTimeout,
		ExplanationConcurrency: cfg.Diagnostics.ExplanationConcurrency,
		SuggestionLimit:        cfg.Diagnostics.SuggestionLimit,
	})

	return &App{
		Config:        cfg,
		Logger:        logger,
		Store:         store,
		Cache:         cacheClient,
		Diagnostics:   svc,
		OracleEnabled: oracleEnabled,
	}, nil
}

// NewOracleClient creates the completion client described by cfg.
func NewOracleClient(cfg config.OracleConfig, logger *observability.Logger) (*oracle.Client, error) {
	retry := oracle.DefaultRetryConfig()
	retry.MaxRetries = cfg.MaxRetries

	return oracle.NewClient(oracle.Config{
		APIKey:      cfg.APIKey,
		ModelURI:    ModelURI(cfg.FolderID, cfg.Model),
		Endpoint:    cfg.Endpoint,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout,
		Retry:       &retry,
	}, logger)
}

// ModelURI expands a bare model name into a folder-scoped model URI.
// Full URIs pass through unchanged.
func ModelURI(folderID, model string) string {
	if strings.Contains(model, "://") || folderID == "" {
		return model
	}
	return fmt.Sprintf("gpt://%s/%s", folderID, model)
}

// Close releases the cache and the database.
func (a *App) Close() error {
	var firstErr error
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			firstErr = err
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
