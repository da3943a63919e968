package diagnostics

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/askmap/diagnostic-engine/internal/apperrors"
	"github.com/askmap/diagnostic-engine/internal/catalog"
)

const minTitleRunes = 3

// ServiceRecordInput is a manually entered service record. Components are
// given by ID, by catalog code, or both.
type ServiceRecordInput struct {
	VehicleID                   uuid.UUID
	Title                       string
	Odometer                    *int
	Date                        *time.Time
	Cost                        *float64
	InstalledPartLifespanKm     *int
	InstalledPartLifespanMonths *int
	ComponentIDs                []uuid.UUID
	ComponentCodes              []string
}

// ServiceRecordResult is the stored record and, when mileage was given, the
// odometer sample recorded with it.
type ServiceRecordResult struct {
	Event            catalog.UsageEvent `json:"serviceRecord"`
	OdometerSampleID *uuid.UUID         `json:"odometerReadingId,omitempty"`
}

// RecordService stores a confirmed manual service record. A record with
// mileage also becomes an odometer sample dated like the record.
func (s *Service) RecordService(ctx context.Context, in ServiceRecordInput) (*ServiceRecordResult, error) {
	if in.VehicleID == uuid.Nil {
		return nil, apperrors.ValidationError("vehicle id is required", nil)
	}
	if utf8.RuneCountInString(in.Title) < minTitleRunes {
		return nil, apperrors.ValidationError(fmt.Sprintf("title must be at least %d characters", minTitleRunes), nil)
	}
	for name, v := range map[string]*int{
		"odometer":                    in.Odometer,
		"installedPartLifespanKm":     in.InstalledPartLifespanKm,
		"installedPartLifespanMonths": in.InstalledPartLifespanMonths,
	} {
		if v != nil && *v <= 0 {
			return nil, apperrors.ValidationError(name+" must be positive", nil)
		}
	}

	componentIDs, err := s.resolveComponents(ctx, in.ComponentIDs, in.ComponentCodes)
	if err != nil {
		return nil, err
	}

	date := s.now().UTC()
	if in.Date != nil {
		date = in.Date.UTC()
	}

	ev := &catalog.UsageEvent{
		VehicleID:                   in.VehicleID,
		ComponentIDs:                componentIDs,
		Date:                        date,
		InstalledPartLifespanKm:     in.InstalledPartLifespanKm,
		InstalledPartLifespanMonths: in.InstalledPartLifespanMonths,
		Title:                       in.Title,
		Status:                      catalog.EventStatusConfirmed,
		Source:                      catalog.SourceManual,
		Cost:                        in.Cost,
	}
	if in.Odometer != nil {
		ev.Odometer = *in.Odometer
	}
	if err := s.store.CreateUsageEvent(ctx, ev); err != nil {
		return nil, apperrors.StorageError("create service record", err)
	}
	result := &ServiceRecordResult{Event: *ev}

	if in.Odometer != nil {
		sample := &catalog.OdometerSample{
			VehicleID: in.VehicleID,
			Date:      date,
			Value:     *in.Odometer,
			Source:    catalog.SourceManual,
		}
		if err := s.store.CreateOdometerSample(ctx, sample); err != nil {
			return nil, apperrors.StorageError("create odometer sample", err)
		}
		result.OdometerSampleID = &sample.ID
	}

	s.logger.WithContext(ctx).WithVehicle(in.VehicleID.String()).Info().
		Str("event_id", ev.ID.String()).
		Int("components", len(componentIDs)).
		Bool("with_mileage", in.Odometer != nil).
		Msg("Service record created")
	return result, nil
}

// OdometerInput is a manually entered distance reading.
type OdometerInput struct {
	VehicleID uuid.UUID
	Value     int
	// Date defaults to now.
	Date *time.Time
}

// RecordOdometer stores a manual reading. A value below the latest known
// reading is rejected.
func (s *Service) RecordOdometer(ctx context.Context, in OdometerInput) (*catalog.OdometerSample, error) {
	if in.VehicleID == uuid.Nil {
		return nil, apperrors.ValidationError("vehicle id is required", nil)
	}
	if in.Value <= 0 {
		return nil, apperrors.ValidationError("odometer value must be positive", nil)
	}

	latest, err := s.store.LatestOdometer(ctx, in.VehicleID)
	if err != nil {
		return nil, apperrors.StorageError("load odometer", err)
	}
	if latest != nil && in.Value < latest.Value {
		return nil, apperrors.ValidationError(
			fmt.Sprintf("odometer value %d km is below the latest reading %d km", in.Value, latest.Value), nil)
	}

	date := s.now().UTC()
	if in.Date != nil {
		date = in.Date.UTC()
	}
	sample := &catalog.OdometerSample{
		VehicleID: in.VehicleID,
		Date:      date,
		Value:     in.Value,
		Source:    catalog.SourceManual,
	}
	if err := s.store.CreateOdometerSample(ctx, sample); err != nil {
		return nil, apperrors.StorageError("create odometer sample", err)
	}
	return sample, nil
}

// resolveComponents checks IDs against the catalog and turns codes into IDs.
// The result keeps input order without duplicates.
func (s *Service) resolveComponents(ctx context.Context, ids []uuid.UUID, codes []string) ([]uuid.UUID, error) {
	if len(ids) == 0 && len(codes) == 0 {
		return []uuid.UUID{}, nil
	}
	components, err := s.store.Components(ctx)
	if err != nil {
		return nil, apperrors.StorageError("load components", err)
	}
	known := make(map[uuid.UUID]bool, len(components))
	byCode := make(map[string]uuid.UUID, len(components))
	for _, c := range components {
		known[c.ID] = true
		byCode[c.Code] = c.ID
	}

	out := make([]uuid.UUID, 0, len(ids)+len(codes))
	seen := make(map[uuid.UUID]bool)
	add := func(id uuid.UUID) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range ids {
		if !known[id] {
			return nil, apperrors.ValidationError("unknown component "+id.String(), nil)
		}
		add(id)
	}
	for _, code := range codes {
		id, ok := byCode[code]
		if !ok {
			return nil, apperrors.ValidationError("unknown component "+code, nil)
		}
		add(id)
	}
	return out, nil
}
