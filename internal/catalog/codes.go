package catalog

import (
	"fmt"
	"strings"
)

// SymptomCode is the closed set of symptom classes the knowledge base knows.
type SymptomCode string

const (
	SymptomKnock         SymptomCode = "KNOCK"
	SymptomVibration     SymptomCode = "VIBRATION"
	SymptomSqueak        SymptomCode = "SQUEAK"
	SymptomNoise         SymptomCode = "NOISE"
	SymptomSmell         SymptomCode = "SMELL"
	SymptomLeak          SymptomCode = "LEAK"
	SymptomWarningLight  SymptomCode = "WARNING_LIGHT"
	SymptomStartingIssue SymptomCode = "STARTING_ISSUE"
	SymptomPowerLoss     SymptomCode = "POWER_LOSS"
)

var symptomLabels = map[SymptomCode]string{
	SymptomKnock:         "Стук",
	SymptomVibration:     "Вибрация",
	SymptomSqueak:        "Скрип",
	SymptomNoise:         "Шум",
	SymptomSmell:         "Запах",
	SymptomLeak:          "Утечка",
	SymptomWarningLight:  "Индикатор на панели",
	SymptomStartingIssue: "Проблема с запуском",
	SymptomPowerLoss:     "Потеря мощности",
}

// SymptomCodes lists every known code in declaration order.
func SymptomCodes() []SymptomCode {
	return []SymptomCode{
		SymptomKnock, SymptomVibration, SymptomSqueak, SymptomNoise, SymptomSmell,
		SymptomLeak, SymptomWarningLight, SymptomStartingIssue, SymptomPowerLoss,
	}
}

// Valid reports whether c is a known code.
func (c SymptomCode) Valid() bool {
	_, ok := symptomLabels[c]
	return ok
}

// Label returns the human-readable name, or the raw code if unknown.
func (c SymptomCode) Label() string {
	if l, ok := symptomLabels[c]; ok {
		return l
	}
	return string(c)
}

// ParseSymptomCode validates a raw code. Surrounding space and case are ignored.
func ParseSymptomCode(s string) (SymptomCode, error) {
	c := SymptomCode(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown symptom code %q", s)
	}
	return c, nil
}

// Status is the discrete wear state of a component.
type Status string

const (
	StatusOK        Status = "OK"
	StatusAttention Status = "ATTENTION"
	StatusCritical  Status = "CRITICAL"
)

var statusLabels = map[Status]string{
	StatusOK:        "В НОРМЕ",
	StatusAttention: "ВНИМАНИЕ",
	StatusCritical:  "КРИТИЧНО",
}

// Label returns the display name of the status.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return "Неизвестен"
}
