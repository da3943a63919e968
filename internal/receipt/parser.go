// Package receipt extracts structured fields from OCR'd service receipts and
// work orders, and links their line items to catalog components.
package receipt

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/askmap/diagnostic-engine/internal/alias"
	"github.com/askmap/diagnostic-engine/internal/catalog"
)

const (
	// Version of the parsed document layout.
	Version = "1.0"

	maxMerchantRunes = 80
	maxItems         = 7
	isoDate          = "2006-01-02"
)

var (
	dateRe     = regexp.MustCompile(`(\d{2})\.(\d{2})\.(\d{4})`)
	totalRe    = regexp.MustCompile(`итог[оa|][^0-9]*([0-9]+[.,]?[0-9]{0,2})`)
	odometerRe = regexp.MustCompile(`пробег[^0-9]*([0-9]{4,7})`)

	// Lines carrying totals, tax ids or mileage are never line items.
	serviceLineRe = regexp.MustCompile(`(?i)итог|инн|пробег`)
)

// Fields are the raw values found in the text, before alias matching.
type Fields struct {
	Date     string
	Total    *float64
	Merchant string
	Odometer *int
	ItemsRaw []string
}

// Item is one line of work or one part on the document.
type Item struct {
	Raw           string     `json:"raw"`
	ComponentCode string     `json:"componentSlug,omitempty"`
	ComponentID   *uuid.UUID `json:"componentId,omitempty"`
	Confidence    float64    `json:"confidence"`
}

// Meta records how the text was obtained.
type Meta struct {
	OCRProvider string `json:"ocrProvider,omitempty"`
	Language    string `json:"language,omitempty"`
}

// Document is the parse result stored alongside the scan.
type Document struct {
	Version  string   `json:"version"`
	Kind     string   `json:"kind"`
	Date     string   `json:"date,omitempty"`
	Total    *float64 `json:"total,omitempty"`
	Currency string   `json:"currency,omitempty"`
	Merchant string   `json:"merchant,omitempty"`
	Odometer *int     `json:"odometer,omitempty"`
	Items    []Item   `json:"items"`
	Meta     Meta     `json:"meta"`
}

// ExtractFields pulls date, total, merchant, odometer and candidate item
// lines out of OCR text.
func ExtractFields(ocrText string) Fields {
	lower := strings.ToLower(ocrText)
	var f Fields

	if m := dateRe.FindStringSubmatch(lower); m != nil {
		iso := m[3] + "-" + m[2] + "-" + m[1]
		if _, err := time.Parse(isoDate, iso); err == nil {
			f.Date = iso
		}
	}

	if m := totalRe.FindStringSubmatch(lower); m != nil {
		if v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64); err == nil {
			f.Total = &v
		}
	}

	if m := odometerRe.FindStringSubmatch(lower); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			f.Odometer = &v
		}
	}

	var lines []string
	for _, line := range strings.Split(ocrText, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > 0 {
		f.Merchant = truncateRunes(lines[0], maxMerchantRunes)
	}

	var items []string
	for _, line := range lines {
		if !serviceLineRe.MatchString(line) {
			items = append(items, line)
		}
	}
	if len(items) > 1 {
		items = items[1:min(len(items), maxItems+1)]
	} else {
		items = nil
	}
	f.ItemsRaw = items

	return f
}

// Parse extracts fields and matches every item line against the alias
// table. Unmatched lines are kept with the unmatched confidence.
func Parse(ocrText, kind string, aliases []catalog.Alias) Document {
	f := ExtractFields(ocrText)

	items := make([]Item, 0, len(f.ItemsRaw))
	for _, raw := range f.ItemsRaw {
		items = append(items, MatchItem(raw, aliases))
	}

	return Document{
		Version:  Version,
		Kind:     kind,
		Date:     f.Date,
		Total:    f.Total,
		Currency: "RUB",
		Merchant: f.Merchant,
		Odometer: f.Odometer,
		Items:    items,
		Meta:     Meta{Language: "ru"},
	}
}

// MatchItem links one line to a component through the alias matcher.
func MatchItem(raw string, aliases []catalog.Alias) Item {
	res := alias.Match(raw, aliases)
	item := Item{Raw: raw, Confidence: res.Confidence}
	if res.Matched {
		id := res.ComponentID
		item.ComponentCode = res.ComponentCode
		item.ComponentID = &id
	}
	return item
}

// Confidence scores the whole document: 0.3 each for a date, a total and at
// least one matched item, plus a 0.1 floor, capped at 1.
func Confidence(doc Document) float64 {
	score := 0.1
	if doc.Date != "" {
		score += 0.3
	}
	if doc.Total != nil && *doc.Total != 0 {
		score += 0.3
	}
	if len(doc.MatchedComponentIDs()) > 0 {
		score += 0.3
	}
	return math.Min(1, math.Round(score*100)/100)
}

// MatchedComponentIDs returns the distinct matched components in item order.
func (d Document) MatchedComponentIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	ids := make([]uuid.UUID, 0)
	for _, it := range d.Items {
		if it.ComponentID == nil || seen[*it.ComponentID] {
			continue
		}
		seen[*it.ComponentID] = true
		ids = append(ids, *it.ComponentID)
	}
	return ids
}

// Title is the first matched line, or a generic title when nothing matched.
func (d Document) Title() string {
	for _, it := range d.Items {
		if it.ComponentCode != "" {
			return it.Raw
		}
	}
	return "Работы по документу"
}

// ParsedDate returns the document date, if any.
func (d Document) ParsedDate() (time.Time, bool) {
	if d.Date == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(isoDate, d.Date)
	return t, err == nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
