// Package handlers provides HTTP handlers for the diagnostic engine API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/askmap/diagnostic-engine/internal/alias"
	"github.com/askmap/diagnostic-engine/internal/apperrors"
	"github.com/askmap/diagnostic-engine/internal/catalog"
	"github.com/askmap/diagnostic-engine/internal/diagnostics"
	"github.com/askmap/diagnostic-engine/internal/observability"
	"github.com/askmap/diagnostic-engine/internal/oracle"
)

// Diagnostics is the service behind the diagnostics endpoints.
type Diagnostics interface {
	HealthStates(ctx context.Context, vehicleID uuid.UUID, now time.Time) ([]catalog.HealthState, error)
	Interpret(ctx context.Context, text string) (oracle.Interpretation, error)
	Analyze(ctx context.Context, q diagnostics.Query) (*diagnostics.Report, error)
	ParseDocument(ctx context.Context, documentID uuid.UUID) (*diagnostics.ParseResult, error)
	MatchAlias(ctx context.Context, fragment string) (alias.Result, error)
	SuggestComponents(ctx context.Context, name string, limit int) ([]alias.Suggestion, error)
}

// DiagnosticsHandler handles vehicle health and symptom analysis requests.
type DiagnosticsHandler struct {
	logger *observability.Logger
	svc    Diagnostics
	now    func() time.Time
}

// NewDiagnosticsHandler creates a new diagnostics handler.
func NewDiagnosticsHandler(logger *observability.Logger, svc Diagnostics) *DiagnosticsHandler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &DiagnosticsHandler{logger: logger, svc: svc, now: time.Now}
}

// ComponentStatesResponseDTO is the body of GET /vehicles/{vehicleId}/component-states.
type ComponentStatesResponseDTO struct {
	VehicleID string                `json:"vehicleId"`
	States    []catalog.HealthState `json:"states"`
}

// InterpretRequestDTO is the body of POST /diagnostics/interpret.
type InterpretRequestDTO struct {
	Text string `json:"text"`
}

// AnalyzeRequestDTO is the body of POST /diagnostics/analyze.
type AnalyzeRequestDTO struct {
	Symptom      string  `json:"symptom"`
	Location     *string `json:"location,omitempty"`
	Condition    *string `json:"condition,omitempty"`
	OriginalText string  `json:"originalText"`
}

// MatchRequestDTO is the body of POST /aliases/match.
type MatchRequestDTO struct {
	Text string `json:"text"`
}

// SuggestResponseDTO is the body of GET /components/suggest.
type SuggestResponseDTO struct {
	Query       string             `json:"query"`
	Suggestions []alias.Suggestion `json:"suggestions"`
}

// ComponentStates handles GET /vehicles/{vehicleId}/component-states.
func (h *DiagnosticsHandler) ComponentStates(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := uuid.Parse(chi.URLParam(r, "vehicleId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid vehicle id", err.Error())
		return
	}

	states, err := h.svc.HealthStates(r.Context(), vehicleID, h.now())
	if err != nil {
		h.fail(w, err, "Component states failed")
		return
	}
	if states == nil {
		states = []catalog.HealthState{}
	}

	writeJSON(w, h.logger, http.StatusOK, ComponentStatesResponseDTO{
		VehicleID: vehicleID.String(),
		States:    states,
	})
}

// Interpret handles POST /diagnostics/interpret.
func (h *DiagnosticsHandler) Interpret(w http.ResponseWriter, r *http.Request) {
	var req InterpretRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	interpretation, err := h.svc.Interpret(r.Context(), req.Text)
	if err != nil {
		h.fail(w, err, "Interpret failed")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, interpretation)
}

// Analyze handles POST /diagnostics/analyze.
func (h *DiagnosticsHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Symptom == "" {
		writeError(w, http.StatusBadRequest, "symptom is required", "")
		return
	}

	report, err := h.svc.Analyze(r.Context(), diagnostics.Query{
		Symptom:      req.Symptom,
		Location:     req.Location,
		Condition:    req.Condition,
		OriginalText: req.OriginalText,
	})
	if err != nil {
		h.fail(w, err, "Analyze failed")
		return
	}
	if report.Results == nil {
		report.Results = []diagnostics.Result{}
	}
	writeJSON(w, h.logger, http.StatusOK, report)
}

// ParseDocument handles POST /documents/{id}/parse.
func (h *DiagnosticsHandler) ParseDocument(w http.ResponseWriter, r *http.Request) {
	documentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id", err.Error())
		return
	}

	result, err := h.svc.ParseDocument(r.Context(), documentID)
	if err != nil {
		h.fail(w, err, "Document parse failed")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, result)
}

// MatchAlias handles POST /aliases/match.
func (h *DiagnosticsHandler) MatchAlias(w http.ResponseWriter, r *http.Request) {
	var req MatchRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.svc.MatchAlias(r.Context(), req.Text)
	if err != nil {
		h.fail(w, err, "Alias match failed")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, result)
}

// SuggestComponents handles GET /components/suggest?name=&limit=.
func (h *DiagnosticsHandler) SuggestComponents(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required", "")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit", raw)
			return
		}
		limit = n
	}

	suggestions, err := h.svc.SuggestComponents(r.Context(), name, limit)
	if err != nil {
		h.fail(w, err, "Suggest failed")
		return
	}
	if suggestions == nil {
		suggestions = []alias.Suggestion{}
	}
	writeJSON(w, h.logger, http.StatusOK, SuggestResponseDTO{Query: name, Suggestions: suggestions})
}

func (h *DiagnosticsHandler) fail(w http.ResponseWriter, err error, msg string) {
	failWith(h.logger, w, err, msg)
}

func failWith(logger *observability.Logger, w http.ResponseWriter, err error, msg string) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Msg(msg)
	} else {
		logger.Debug().Err(err).Msg(msg)
	}
	writeError(w, status, message(err), err.Error())
}

// StatusFor maps a classified error to an HTTP status code.
func StatusFor(err error) int {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeIO:
		return http.StatusUnprocessableEntity
	case apperrors.ErrorTypeOracle:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func message(err error) string {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}
