package diagnostics

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askmap/diagnostic-engine/internal/apperrors"
	"github.com/askmap/diagnostic-engine/internal/catalog"
)

func recordCatalog() []catalog.Component {
	return []catalog.Component{
		{ID: uuid.New(), Code: "engine_oil", Name: "Моторное масло", DistanceLifespan: catalog.Ptr(10000), TimeLifespanMonths: catalog.Ptr(12)},
		{ID: uuid.New(), Code: "oil_filter", Name: "Масляный фильтр", DistanceLifespan: catalog.Ptr(10000), TimeLifespanMonths: catalog.Ptr(12)},
	}
}

func TestService_RecordService(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	components := recordCatalog()
	store := &fakeStore{components: components}
	svc := NewService(Deps{Store: store, Now: func() time.Time { return now }}, Options{})
	vehicle := uuid.New()

	result, err := svc.RecordService(context.Background(), ServiceRecordInput{
		VehicleID:               vehicle,
		Title:                   "Замена масла и фильтра",
		Odometer:                catalog.Ptr(120000),
		Cost:                    catalog.Ptr(5200.0),
		InstalledPartLifespanKm: catalog.Ptr(8000),
		ComponentIDs:            []uuid.UUID{components[0].ID},
		ComponentCodes:          []string{"oil_filter", "engine_oil"},
	})
	require.NoError(t, err)

	ev := result.Event
	assert.Equal(t, catalog.EventStatusConfirmed, ev.Status)
	assert.Equal(t, catalog.SourceManual, ev.Source)
	assert.Equal(t, now, ev.Date)
	assert.Equal(t, 120000, ev.Odometer)
	assert.Equal(t, []uuid.UUID{components[0].ID, components[1].ID}, ev.ComponentIDs)

	require.NotNil(t, result.OdometerSampleID)
	require.Len(t, store.samples, 1)
	assert.Equal(t, 120000, store.samples[0].Value)
	assert.Equal(t, now, store.samples[0].Date)

	states, err := svc.HealthStates(context.Background(), vehicle, now.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, catalog.StatusOK, states[0].Status)
}

func TestService_RecordService_WithoutMileage(t *testing.T) {
	store := &fakeStore{components: recordCatalog()}
	svc := NewService(Deps{Store: store}, Options{})
	date := time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)

	result, err := svc.RecordService(context.Background(), ServiceRecordInput{
		VehicleID: uuid.New(),
		Title:     "Мойка",
		Date:      &date,
	})
	require.NoError(t, err)
	assert.Nil(t, result.OdometerSampleID)
	assert.Equal(t, date, result.Event.Date)
	assert.Empty(t, result.Event.ComponentIDs)
	assert.Empty(t, store.samples)
}

func TestService_RecordService_Validation(t *testing.T) {
	vehicle := uuid.New()
	tests := []struct {
		name string
		in   ServiceRecordInput
	}{
		{"missing vehicle", ServiceRecordInput{Title: "Замена масла"}},
		{"short title", ServiceRecordInput{VehicleID: vehicle, Title: "ТО"}},
		{"zero mileage", ServiceRecordInput{VehicleID: vehicle, Title: "Замена масла", Odometer: catalog.Ptr(0)}},
		{"negative lifespan", ServiceRecordInput{VehicleID: vehicle, Title: "Замена масла", InstalledPartLifespanKm: catalog.Ptr(-1)}},
		{"unknown code", ServiceRecordInput{VehicleID: vehicle, Title: "Замена масла", ComponentCodes: []string{"flux_capacitor"}}},
		{"unknown id", ServiceRecordInput{VehicleID: vehicle, Title: "Замена масла", ComponentIDs: []uuid.UUID{uuid.New()}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeStore{components: recordCatalog()}
			_, err := NewService(Deps{Store: store}, Options{}).RecordService(context.Background(), tc.in)
			assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation), "got %v", err)
			assert.Empty(t, store.created)
		})
	}
}

func TestService_RecordOdometer(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	vehicle := uuid.New()

	tests := []struct {
		name    string
		latest  *catalog.OdometerSample
		value   int
		wantErr bool
	}{
		{"first reading", nil, 1500, false},
		{"higher than latest", &catalog.OdometerSample{Value: 50000}, 50100, false},
		{"equal to latest", &catalog.OdometerSample{Value: 50000}, 50000, false},
		{"rollback rejected", &catalog.OdometerSample{Value: 50000}, 49999, true},
		{"zero rejected", nil, 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeStore{odometer: tc.latest}
			svc := NewService(Deps{Store: store, Now: func() time.Time { return now }}, Options{})

			sample, err := svc.RecordOdometer(context.Background(), OdometerInput{VehicleID: vehicle, Value: tc.value})
			if tc.wantErr {
				assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation), "got %v", err)
				assert.Empty(t, store.samples)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.value, sample.Value)
			assert.Equal(t, now, sample.Date)
			assert.Equal(t, catalog.SourceManual, sample.Source)
			require.Len(t, store.samples, 1)
		})
	}

	_, err := NewService(Deps{Store: &fakeStore{}}, Options{}).RecordOdometer(context.Background(), OdometerInput{Value: 10})
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation))
}
