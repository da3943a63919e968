package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/askmap/diagnostic-engine/internal/catalog"
)

// UsageEventRepository handles service records.
type UsageEventRepository struct {
	db *sql.DB
}

// NewUsageEventRepository creates a new usage event repository.
func NewUsageEventRepository(db *sql.DB) *UsageEventRepository {
	return &UsageEventRepository{db: db}
}

// Create stores the event and its component links in one transaction.
func (r *UsageEventRepository) Create(ctx context.Context, ev *catalog.UsageEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.Status == "" {
		ev.Status = catalog.EventStatusConfirmed
	}
	if ev.Source == "" {
		ev.Source = catalog.SourceManual
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO usage_events (id, vehicle_id, event_date, odometer, lifespan_km, lifespan_months,
			title, status, source, cost, location, source_document_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = tx.ExecContext(ctx, query,
		ev.ID, ev.VehicleID, ev.Date.UTC(), ev.Odometer,
		nullInt(ev.InstalledPartLifespanKm), nullInt(ev.InstalledPartLifespanMonths),
		ev.Title, string(ev.Status), string(ev.Source), nullFloat(ev.Cost), ev.Location, nullUUID(ev.SourceDocumentID),
	)
	if err != nil {
		return fmt.Errorf("create usage event: %w", err)
	}

	for _, componentID := range ev.ComponentIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO usage_event_components (event_id, component_id) VALUES ($1, $2)`,
			ev.ID, componentID,
		); err != nil {
			return fmt.Errorf("link component %s: %w", componentID, err)
		}
	}

	return tx.Commit()
}

// ListByVehicle returns the vehicle's events, oldest first, each with its
// component links.
func (r *UsageEventRepository) ListByVehicle(ctx context.Context, vehicleID uuid.UUID) ([]catalog.UsageEvent, error) {
	query := `
		SELECT id, vehicle_id, event_date, odometer, lifespan_km, lifespan_months,
			title, status, source, cost, location, source_document_id
		FROM usage_events
		WHERE vehicle_id = $1
		ORDER BY event_date, id
	`
	rows, err := r.db.QueryContext(ctx, query, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("list usage events: %w", err)
	}

	events := make([]catalog.UsageEvent, 0)
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var (
			ev             catalog.UsageEvent
			lifespanKm     sql.NullInt64
			lifespanMonths sql.NullInt64
			status, source string
			cost           sql.NullFloat64
			documentID     uuid.NullUUID
		)
		if err := rows.Scan(&ev.ID, &ev.VehicleID, &ev.Date, &ev.Odometer, &lifespanKm, &lifespanMonths,
			&ev.Title, &status, &source, &cost, &ev.Location, &documentID); err != nil {
			rows.Close()
			return nil, err
		}
		ev.InstalledPartLifespanKm = intPtr(lifespanKm)
		ev.InstalledPartLifespanMonths = intPtr(lifespanMonths)
		ev.Status = catalog.EventStatus(status)
		ev.Source = catalog.Source(source)
		if cost.Valid {
			ev.Cost = &cost.Float64
		}
		if documentID.Valid {
			ev.SourceDocumentID = &documentID.UUID
		}
		ev.ComponentIDs = []uuid.UUID{}
		index[ev.ID] = len(events)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	links, err := r.db.QueryContext(ctx, `
		SELECT l.event_id, l.component_id
		FROM usage_event_components l
		JOIN usage_events e ON e.id = l.event_id
		WHERE e.vehicle_id = $1
		ORDER BY l.event_id, l.component_id
	`, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("list usage event components: %w", err)
	}
	defer links.Close()

	for links.Next() {
		var eventID, componentID uuid.UUID
		if err := links.Scan(&eventID, &componentID); err != nil {
			return nil, err
		}
		if i, ok := index[eventID]; ok {
			events[i].ComponentIDs = append(events[i].ComponentIDs, componentID)
		}
	}
	return events, links.Err()
}

// OdometerRepository handles distance readings.
type OdometerRepository struct {
	db DB
}

// NewOdometerRepository creates a new odometer repository.
func NewOdometerRepository(db DB) *OdometerRepository {
	return &OdometerRepository{db: db}
}

// Create stores a reading.
func (r *OdometerRepository) Create(ctx context.Context, s *catalog.OdometerSample) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Source == "" {
		s.Source = catalog.SourceManual
	}
	query := `
		INSERT INTO odometer_readings (id, vehicle_id, reading_date, value, source, document_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query, s.ID, s.VehicleID, s.Date.UTC(), s.Value, string(s.Source), nullUUID(s.DocumentID))
	if err != nil {
		return fmt.Errorf("create odometer reading: %w", err)
	}
	return nil
}

// Latest returns the most recent reading for the vehicle.
func (r *OdometerRepository) Latest(ctx context.Context, vehicleID uuid.UUID) (*catalog.OdometerSample, error) {
	query := `
		SELECT id, vehicle_id, reading_date, value, source, document_id
		FROM odometer_readings
		WHERE vehicle_id = $1
		ORDER BY reading_date DESC, value DESC
		LIMIT 1
	`
	var (
		s          catalog.OdometerSample
		source     string
		documentID uuid.NullUUID
	)
	err := r.db.QueryRowContext(ctx, query, vehicleID).Scan(&s.ID, &s.VehicleID, &s.Date, &s.Value, &source, &documentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Source = catalog.Source(source)
	if documentID.Valid {
		s.DocumentID = &documentID.UUID
	}
	return &s, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullUUID(v *uuid.UUID) uuid.NullUUID {
	if v == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *v, Valid: true}
}

// now is replaced in tests.
var now = func() time.Time { return time.Now().UTC() }
