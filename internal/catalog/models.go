// Package catalog defines the records the diagnostic engine reads (components,
// usage history, knowledge-base rules, aliases) and the results it produces.
// Values of these types are treated as read-only by the engine.
package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Category groups components by vehicle system.
type Category string

const (
	CategoryEngine       Category = "ENGINE_SYSTEM"
	CategoryBrakes       Category = "BRAKE_SYSTEM"
	CategoryTransmission Category = "TRANSMISSION"
	CategorySuspension   Category = "SUSPENSION"
	CategoryElectrical   Category = "ELECTRICAL"
	CategoryBody         Category = "BODY"
	CategoryWheelsTires  Category = "WHEELS_TIRES"
	CategoryOther        Category = "OTHER"
)

// Component is a trackable vehicle part from the reference catalog.
type Component struct {
	ID                 uuid.UUID `json:"id" yaml:"-"`
	Code               string    `json:"code" yaml:"code"`
	Name               string    `json:"name" yaml:"name"`
	Category           Category  `json:"category" yaml:"category"`
	DistanceLifespan   *int      `json:"distanceLifespan,omitempty" yaml:"lifespan_km,omitempty"`
	TimeLifespanMonths *int      `json:"timeLifespanMonths,omitempty" yaml:"lifespan_months,omitempty"`
	Importance         int       `json:"importance" yaml:"importance"`
	SafetyCritical     bool      `json:"safetyCritical" yaml:"safety_critical"`
}

// Trackable reports whether the component has at least one lifespan.
func (c Component) Trackable() bool {
	return c.DistanceLifespan != nil || c.TimeLifespanMonths != nil
}

// UsageEvent is a service record: work done on one or more components.
type UsageEvent struct {
	ID                          uuid.UUID   `json:"id"`
	VehicleID                   uuid.UUID   `json:"vehicleId"`
	ComponentIDs                []uuid.UUID `json:"componentIds"`
	Date                        time.Time   `json:"date"`
	Odometer                    int         `json:"odometer"`
	InstalledPartLifespanKm     *int        `json:"installedPartLifespanKm,omitempty"`
	InstalledPartLifespanMonths *int        `json:"installedPartLifespanMonths,omitempty"`
	Title                       string      `json:"title"`
	Status                      EventStatus `json:"status"`
	Source                      Source      `json:"source"`
	Cost                        *float64    `json:"cost,omitempty"`
	Location                    string      `json:"location,omitempty"`
	SourceDocumentID            *uuid.UUID  `json:"sourceDocumentId,omitempty"`
}

// References reports whether the event covers the given component.
func (e UsageEvent) References(componentID uuid.UUID) bool {
	for _, id := range e.ComponentIDs {
		if id == componentID {
			return true
		}
	}
	return false
}

// EventStatus marks whether a service record was confirmed by the owner.
type EventStatus string

const (
	EventStatusConfirmed EventStatus = "CONFIRMED"
	EventStatusDraft     EventStatus = "DRAFT"
)

// Source records how a value entered the system.
type Source string

const (
	SourceManual Source = "MANUAL"
	SourceOCR    Source = "OCR"
)

// OdometerSample is a distance reading; the latest one is the current distance.
type OdometerSample struct {
	ID         uuid.UUID  `json:"id"`
	VehicleID  uuid.UUID  `json:"vehicleId"`
	Date       time.Time  `json:"date"`
	Value      int        `json:"value"`
	Source     Source     `json:"source"`
	DocumentID *uuid.UUID `json:"documentId,omitempty"`
}

// Rule is a knowledge-base entry linking a symptom to a probable cause.
type Rule struct {
	ID            uuid.UUID   `json:"id"`
	Symptom       SymptomCode `json:"symptom"`
	Location      *string     `json:"location,omitempty"`
	Condition     *string     `json:"condition,omitempty"`
	ComponentID   uuid.UUID   `json:"componentId"`
	ComponentCode string      `json:"componentCode,omitempty"`
	ComponentName string      `json:"componentName"`
	BaseWeight    float64     `json:"baseWeight"`
}

// Alias maps a raw text spelling to a canonical component.
type Alias struct {
	Alias         string    `json:"alias"`
	ComponentID   uuid.UUID `json:"componentId"`
	ComponentCode string    `json:"componentCode"`
	Locale        string    `json:"locale"`
}

// HealthState is the wear verdict for one component of one vehicle.
type HealthState struct {
	ComponentID   uuid.UUID `json:"componentId"`
	ComponentCode string    `json:"code"`
	ComponentName string    `json:"name"`
	Status        Status    `json:"status"`
	Note          string    `json:"notes"`
	Progress      float64   `json:"progress"`
}

// RankedCause is one entry of a ranked diagnostic result.
type RankedCause struct {
	RuleID        uuid.UUID `json:"ruleId"`
	ComponentID   uuid.UUID `json:"componentId"`
	ComponentName string    `json:"componentName"`
	Score         float64   `json:"score"`
	// Probability is the rule's prior weight as a percentage, not Score.
	Probability int `json:"probability"`
}

// Ptr returns a pointer to v. Handy for optional lifespans and rule texts.
func Ptr[T any](v T) *T {
	return &v
}
