package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/askmap/diagnostic-engine/internal/catalog"
	"github.com/askmap/diagnostic-engine/internal/diagnostics"
	"github.com/askmap/diagnostic-engine/internal/observability"
)

// History records the inputs of the wear calculation.
type History interface {
	RecordService(ctx context.Context, in diagnostics.ServiceRecordInput) (*diagnostics.ServiceRecordResult, error)
	RecordOdometer(ctx context.Context, in diagnostics.OdometerInput) (*catalog.OdometerSample, error)
}

// HistoryHandler handles manual service records and odometer readings.
type HistoryHandler struct {
	logger *observability.Logger
	svc    History
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(logger *observability.Logger, svc History) *HistoryHandler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &HistoryHandler{logger: logger, svc: svc}
}

// ServiceRecordRequestDTO is the body of POST /vehicles/{vehicleId}/service-records.
type ServiceRecordRequestDTO struct {
	Title                       string      `json:"title"`
	Mileage                     *int        `json:"mileage,omitempty"`
	Date                        *time.Time  `json:"date,omitempty"`
	Cost                        *float64    `json:"cost,omitempty"`
	InstalledPartLifespanKm     *int        `json:"installedPartLifespanKm,omitempty"`
	InstalledPartLifespanMonths *int        `json:"installedPartLifespanMonths,omitempty"`
	Components                  []uuid.UUID `json:"components,omitempty"`
	ComponentCodes              []string    `json:"componentCodes,omitempty"`
}

// OdometerRequestDTO is the body of POST /vehicles/{vehicleId}/odometer-readings.
type OdometerRequestDTO struct {
	Value int        `json:"value"`
	Date  *time.Time `json:"date,omitempty"`
}

// CreateServiceRecord handles POST /vehicles/{vehicleId}/service-records.
func (h *HistoryHandler) CreateServiceRecord(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := uuid.Parse(chi.URLParam(r, "vehicleId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid vehicle id", err.Error())
		return
	}

	var req ServiceRecordRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.svc.RecordService(r.Context(), diagnostics.ServiceRecordInput{
		VehicleID:                   vehicleID,
		Title:                       req.Title,
		Odometer:                    req.Mileage,
		Date:                        req.Date,
		Cost:                        req.Cost,
		InstalledPartLifespanKm:     req.InstalledPartLifespanKm,
		InstalledPartLifespanMonths: req.InstalledPartLifespanMonths,
		ComponentIDs:                req.Components,
		ComponentCodes:              req.ComponentCodes,
	})
	if err != nil {
		failWith(h.logger, w, err, "Service record failed")
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, result)
}

// CreateOdometerReading handles POST /vehicles/{vehicleId}/odometer-readings.
func (h *HistoryHandler) CreateOdometerReading(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := uuid.Parse(chi.URLParam(r, "vehicleId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid vehicle id", err.Error())
		return
	}

	var req OdometerRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	sample, err := h.svc.RecordOdometer(r.Context(), diagnostics.OdometerInput{
		VehicleID: vehicleID,
		Value:     req.Value,
		Date:      req.Date,
	})
	if err != nil {
		failWith(h.logger, w, err, "Odometer reading failed")
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, sample)
}
