// Package wear derives a discrete health state for each trackable component
// of a vehicle from distance and time consumed since its last service.
package wear

import (
	"math"
	"time"

	"github.com/askmap/diagnostic-engine/internal/catalog"
)

// Thresholds are compared literally, without tolerance.
const (
	CriticalThreshold  = 1.0
	AttentionThreshold = 0.8

	// DaysPerMonth is the average month length used for time-based wear.
	DaysPerMonth = 30.44
)

const (
	noteCritical  = "Ресурс исчерпан! Рекомендуется срочная замена."
	noteAttention = "Ресурс подходит к концу. Рекомендуется плановая замена."
	noteOK        = "Ресурс в норме."
)

// Input is everything needed to evaluate one vehicle.
type Input struct {
	Components []catalog.Component
	// Events is the vehicle's usage history in any order.
	Events []catalog.UsageEvent
	// Odometer is the latest sample. Without a positive reading no state
	// can be computed.
	Odometer *catalog.OdometerSample
	// Now is the evaluation instant. It is never read from the clock here.
	Now time.Time
}

// ComputeHealthStates returns a state for every trackable component that has
// at least one usage event, in catalog order. It returns an empty list when
// the current distance is unknown.
func ComputeHealthStates(in Input) []catalog.HealthState {
	states := make([]catalog.HealthState, 0, len(in.Components))
	if in.Odometer == nil || in.Odometer.Value <= 0 {
		return states
	}

	for _, component := range in.Components {
		if !component.Trackable() {
			continue
		}

		event, ok := LatestEvent(in.Events, component)
		if !ok {
			continue
		}

		state, ok := Evaluate(component, event, in.Odometer, in.Now)
		if !ok {
			continue
		}
		states = append(states, state)
	}

	return states
}

// LatestEvent returns the most recent event referencing the component.
// Among events sharing the latest date the first one wins.
func LatestEvent(events []catalog.UsageEvent, component catalog.Component) (catalog.UsageEvent, bool) {
	var (
		latest catalog.UsageEvent
		found  bool
	)
	for _, ev := range events {
		if !ev.References(component.ID) {
			continue
		}
		if !found || ev.Date.After(latest.Date) {
			latest = ev
			found = true
		}
	}
	return latest, found
}

// Evaluate computes the state of one component from its latest event.
// It returns false when no lifespan applies.
func Evaluate(component catalog.Component, event catalog.UsageEvent, odometer *catalog.OdometerSample, now time.Time) (catalog.HealthState, bool) {
	distanceLifespan := effectiveLifespan(event.InstalledPartLifespanKm, component.DistanceLifespan)
	timeLifespan := effectiveLifespan(event.InstalledPartLifespanMonths, component.TimeLifespanMonths)
	if distanceLifespan == 0 && timeLifespan == 0 {
		return catalog.HealthState{}, false
	}

	progress := Progress(distanceLifespan, timeLifespan, event, odometer, now)
	status, note := Classify(progress)

	return catalog.HealthState{
		ComponentID:   component.ID,
		ComponentCode: component.Code,
		ComponentName: component.Name,
		Status:        status,
		Note:          note,
		Progress:      progress,
	}, true
}

// Progress is the worse of distance-based and time-based consumption.
// Lifespans of zero disable the corresponding axis. An event without a
// positive odometer value has no distance baseline.
func Progress(distanceLifespan, timeLifespanMonths int, event catalog.UsageEvent, odometer *catalog.OdometerSample, now time.Time) float64 {
	var distanceProgress float64
	if distanceLifespan > 0 && odometer != nil && event.Odometer > 0 {
		travelled := float64(odometer.Value - event.Odometer)
		distanceProgress = math.Max(0, travelled) / float64(distanceLifespan)
	}

	var timeProgress float64
	if timeLifespanMonths > 0 {
		months := MonthsBetween(event.Date, now)
		timeProgress = math.Max(0, months) / float64(timeLifespanMonths)
	}

	return math.Max(distanceProgress, timeProgress)
}

// MonthsBetween converts the interval to average-length months. It is
// negative when to precedes from.
func MonthsBetween(from, to time.Time) float64 {
	days := to.Sub(from).Hours() / 24
	return days / DaysPerMonth
}

// Classify maps progress onto a status and its note.
func Classify(progress float64) (catalog.Status, string) {
	switch {
	case progress >= CriticalThreshold:
		return catalog.StatusCritical, noteCritical
	case progress >= AttentionThreshold:
		return catalog.StatusAttention, noteAttention
	default:
		return catalog.StatusOK, noteOK
	}
}

// effectiveLifespan prefers the installation override over the catalog
// default; non-positive values count as unset.
func effectiveLifespan(override, fallback *int) int {
	if override != nil && *override > 0 {
		return *override
	}
	if fallback != nil && *fallback > 0 {
		return *fallback
	}
	return 0
}
