package wear

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askmap/diagnostic-engine/internal/catalog"
)

var baseDate = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

func distanceOnly(km int) catalog.Component {
	return catalog.Component{ID: uuid.New(), Code: "brake_pads_front", Name: "Передние тормозные колодки", DistanceLifespan: catalog.Ptr(km)}
}

func eventFor(c catalog.Component, date time.Time, odometer int) catalog.UsageEvent {
	return catalog.UsageEvent{ID: uuid.New(), ComponentIDs: []uuid.UUID{c.ID}, Date: date, Odometer: odometer}
}

func odo(v int) *catalog.OdometerSample {
	return &catalog.OdometerSample{Date: baseDate, Value: v}
}

func TestComputeHealthStates_DistanceBoundaries(t *testing.T) {
	tests := []struct {
		name      string
		current   int
		want      catalog.Status
		wantNote  string
		wantValue float64
	}{
		{"no distance travelled", 100000, catalog.StatusOK, noteOK, 0},
		{"just below attention", 107999, catalog.StatusOK, noteOK, 0.7999},
		{"exactly attention", 108000, catalog.StatusAttention, noteAttention, 0.8},
		{"just below critical", 109999, catalog.StatusAttention, noteAttention, 0.9999},
		{"exactly critical", 110000, catalog.StatusCritical, noteCritical, 1.0},
		{"way over", 130000, catalog.StatusCritical, noteCritical, 3.0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := distanceOnly(10000)
			states := ComputeHealthStates(Input{
				Components: []catalog.Component{c},
				Events:     []catalog.UsageEvent{eventFor(c, baseDate, 100000)},
				Odometer:   odo(tc.current),
				Now:        baseDate,
			})
			require.Len(t, states, 1)
			assert.Equal(t, tc.want, states[0].Status)
			assert.Equal(t, tc.wantNote, states[0].Note)
			assert.InDelta(t, tc.wantValue, states[0].Progress, 1e-9)
		})
	}
}

func TestClassify_LiteralThresholds(t *testing.T) {
	s, _ := Classify(0.8)
	assert.Equal(t, catalog.StatusAttention, s)
	s, _ = Classify(1.0)
	assert.Equal(t, catalog.StatusCritical, s)
	s, _ = Classify(0.7999999999)
	assert.Equal(t, catalog.StatusOK, s)
	s, _ = Classify(0)
	assert.Equal(t, catalog.StatusOK, s)
}

func TestComputeHealthStates_TimeDominates(t *testing.T) {
	c := catalog.Component{
		ID:                 uuid.New(),
		Code:               "engine_oil",
		DistanceLifespan:   catalog.Ptr(10000),
		TimeLifespanMonths: catalog.Ptr(12),
	}
	serviced := baseDate
	now := serviced.AddDate(0, 13, 0)

	states := ComputeHealthStates(Input{
		Components: []catalog.Component{c},
		Events:     []catalog.UsageEvent{eventFor(c, serviced, 50000)},
		Odometer:   odo(51000),
		Now:        now,
	})
	require.Len(t, states, 1)
	assert.Equal(t, catalog.StatusCritical, states[0].Status)
	assert.Greater(t, states[0].Progress, 1.0)
}

func TestComputeHealthStates_UnknownCurrentDistance(t *testing.T) {
	c := catalog.Component{ID: uuid.New(), Code: "coolant", TimeLifespanMonths: catalog.Ptr(12)}
	events := []catalog.UsageEvent{eventFor(c, baseDate, 50000)}
	now := baseDate.AddDate(2, 0, 0)

	tests := []struct {
		name     string
		odometer *catalog.OdometerSample
	}{
		{"no sample", nil},
		{"zero reading", odo(0)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			states := ComputeHealthStates(Input{
				Components: []catalog.Component{c},
				Events:     events,
				Odometer:   tc.odometer,
				Now:        now,
			})
			assert.NotNil(t, states)
			assert.Empty(t, states)
		})
	}
}

func TestComputeHealthStates_EventWithoutMileage(t *testing.T) {
	c := catalog.Component{ID: uuid.New(), Code: "oil_filter", DistanceLifespan: catalog.Ptr(15000), TimeLifespanMonths: catalog.Ptr(12)}
	battery := catalog.Component{ID: uuid.New(), Code: "battery", TimeLifespanMonths: catalog.Ptr(48)}

	states := ComputeHealthStates(Input{
		Components: []catalog.Component{c, battery},
		Events: []catalog.UsageEvent{
			eventFor(c, baseDate, 0),
			eventFor(battery, baseDate.AddDate(0, -40, 0), 0),
		},
		Odometer: odo(132400),
		Now:      baseDate,
	})
	require.Len(t, states, 2)
	assert.Equal(t, catalog.StatusOK, states[0].Status)
	assert.Equal(t, 0.0, states[0].Progress)
	assert.Equal(t, catalog.StatusAttention, states[1].Status)
}

func TestComputeHealthStates_Exclusions(t *testing.T) {
	untrackable := catalog.Component{ID: uuid.New(), Code: "zone_engine"}
	neverServiced := distanceOnly(30000)
	serviced := distanceOnly(30000)

	states := ComputeHealthStates(Input{
		Components: []catalog.Component{untrackable, neverServiced, serviced},
		Events: []catalog.UsageEvent{
			eventFor(untrackable, baseDate, 1000),
			eventFor(serviced, baseDate, 1000),
		},
		Odometer: odo(2000),
		Now:      baseDate,
	})
	require.Len(t, states, 1)
	assert.Equal(t, serviced.ID, states[0].ComponentID)
}

func TestComputeHealthStates_NullLifespansNeverPresent(t *testing.T) {
	c := catalog.Component{ID: uuid.New(), Code: "zone_chassis"}
	histories := [][]catalog.UsageEvent{
		nil,
		{eventFor(c, baseDate, 0)},
		{eventFor(c, baseDate, 0), eventFor(c, baseDate.AddDate(-5, 0, 0), 0)},
	}
	for _, events := range histories {
		states := ComputeHealthStates(Input{Components: []catalog.Component{c}, Events: events, Odometer: odo(999999), Now: baseDate.AddDate(30, 0, 0)})
		assert.Empty(t, states)
	}
}

func TestComputeHealthStates_OverrideLifespan(t *testing.T) {
	c := distanceOnly(10000)
	ev := eventFor(c, baseDate, 1000)
	ev.InstalledPartLifespanKm = catalog.Ptr(20000)

	states := ComputeHealthStates(Input{
		Components: []catalog.Component{c},
		Events:     []catalog.UsageEvent{ev},
		Odometer:   odo(16000),
		Now:        baseDate,
	})
	require.Len(t, states, 1)
	assert.InDelta(t, 0.75, states[0].Progress, 1e-9)
	assert.Equal(t, catalog.StatusOK, states[0].Status)
}

func TestComputeHealthStates_OverrideGivesLifespanToUntrackedAxis(t *testing.T) {
	c := distanceOnly(100000)
	ev := eventFor(c, baseDate, 500)
	ev.InstalledPartLifespanMonths = catalog.Ptr(6)

	states := ComputeHealthStates(Input{
		Components: []catalog.Component{c},
		Events:     []catalog.UsageEvent{ev},
		Odometer:   odo(1000),
		Now:        baseDate.AddDate(0, 7, 0),
	})
	require.Len(t, states, 1)
	assert.Equal(t, catalog.StatusCritical, states[0].Status)
}

func TestComputeHealthStates_FutureEventClampsToZero(t *testing.T) {
	c := catalog.Component{ID: uuid.New(), DistanceLifespan: catalog.Ptr(10000), TimeLifespanMonths: catalog.Ptr(12)}
	ev := eventFor(c, baseDate.AddDate(0, 2, 0), 50000)

	states := ComputeHealthStates(Input{
		Components: []catalog.Component{c},
		Events:     []catalog.UsageEvent{ev},
		Odometer:   odo(40000),
		Now:        baseDate,
	})
	require.Len(t, states, 1)
	assert.Equal(t, 0.0, states[0].Progress)
	assert.Equal(t, catalog.StatusOK, states[0].Status)
}

func TestLatestEvent(t *testing.T) {
	c := distanceOnly(10000)
	older := eventFor(c, baseDate, 1000)
	newerA := eventFor(c, baseDate.AddDate(0, 1, 0), 2000)
	newerB := eventFor(c, baseDate.AddDate(0, 1, 0), 3000)
	other := catalog.UsageEvent{ID: uuid.New(), ComponentIDs: []uuid.UUID{uuid.New()}, Date: baseDate.AddDate(1, 0, 0)}

	got, ok := LatestEvent([]catalog.UsageEvent{older, newerA, other, newerB}, c)
	require.True(t, ok)
	assert.Equal(t, newerA.ID, got.ID)

	_, ok = LatestEvent([]catalog.UsageEvent{other}, c)
	assert.False(t, ok)
}

func TestComputeHealthStates_Deterministic(t *testing.T) {
	c := catalog.Component{ID: uuid.New(), DistanceLifespan: catalog.Ptr(60000), TimeLifespanMonths: catalog.Ptr(60)}
	in := Input{
		Components: []catalog.Component{c},
		Events:     []catalog.UsageEvent{eventFor(c, baseDate, 10000)},
		Odometer:   odo(58000),
		Now:        baseDate.AddDate(2, 0, 0),
	}
	first := ComputeHealthStates(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ComputeHealthStates(in))
	}
}

func TestMonthsBetween(t *testing.T) {
	assert.InDelta(t, 1.0, MonthsBetween(baseDate, baseDate.Add(time.Duration(DaysPerMonth*24*float64(time.Hour)))), 1e-9)
	assert.Less(t, MonthsBetween(baseDate, baseDate.AddDate(0, 0, -1)), 0.0)
}
