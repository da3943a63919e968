// Package main provides the API router setup.
package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/askmap/diagnostic-engine/cmd/diagnostic-engine-api/handlers"
	"github.com/askmap/diagnostic-engine/cmd/diagnostic-engine-api/middleware"
	"github.com/askmap/diagnostic-engine/internal/api/rpc"
	"github.com/askmap/diagnostic-engine/internal/knowledgebase"
	"github.com/askmap/diagnostic-engine/internal/observability"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Backend is everything the router serves.
type Backend struct {
	Diagnostics interface {
		handlers.Diagnostics
		handlers.History
		rpc.Analyzer
	}
	Knowledge knowledgebase.Reader
	Store     Pinger
}

// RouterConfig holds router settings.
type RouterConfig struct {
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger *observability.Logger, cfg RouterConfig, backend Backend) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(chimiddleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"diagnostic-engine"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := backend.Store.Ping(r.Context()); err != nil {
			logger.Warn().Err(err).Msg("Readiness check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.Write([]byte(`{"status":"ready"}`))
	})

	diagnosticsHandler := handlers.NewDiagnosticsHandler(logger, backend.Diagnostics)
	historyHandler := handlers.NewHistoryHandler(logger, backend.Diagnostics)
	knowledgeHandler := handlers.NewKnowledgeHandler(logger, backend.Knowledge)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/vehicles/{vehicleId}", func(r chi.Router) {
			r.Get("/component-states", diagnosticsHandler.ComponentStates)
			r.Post("/service-records", historyHandler.CreateServiceRecord)
			r.Post("/odometer-readings", historyHandler.CreateOdometerReading)
		})

		r.Route("/diagnostics", func(r chi.Router) {
			r.Post("/interpret", diagnosticsHandler.Interpret)
			r.Post("/analyze", diagnosticsHandler.Analyze)
		})

		r.Post("/documents/{id}/parse", diagnosticsHandler.ParseDocument)
		r.Post("/aliases/match", diagnosticsHandler.MatchAlias)
		r.Get("/components/suggest", diagnosticsHandler.SuggestComponents)
		r.Get("/knowledge/export", knowledgeHandler.Export)
	})

	rpcPath, rpcHandler := rpc.NewHandler(rpc.NewDiagnosticsService(logger, backend.Diagnostics))
	r.Mount(rpcPath, rpcHandler)

	return r
}
