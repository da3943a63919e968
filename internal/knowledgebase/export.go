package knowledgebase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/askmap/diagnostic-engine/internal/apperrors"
	"github.com/askmap/diagnostic-engine/internal/catalog"
)

// Reader is the storage an export reads from.
type Reader interface {
	Components(ctx context.Context) ([]catalog.Component, error)
	Rules(ctx context.Context) ([]catalog.Rule, error)
}

// Export is the downloadable knowledge-base snapshot.
type Export struct {
	Components    []ExportedComponent `json:"components"`
	KnowledgeBase []RuleEntry         `json:"knowledgeBase"`
}

// ExportedComponent is a component as written to an export file.
type ExportedComponent struct {
	PartCode       string           `json:"partCode"`
	Name           string           `json:"name"`
	Category       catalog.Category `json:"category"`
	LifespanKm     *int             `json:"lifespanKm"`
	LifespanMonths *int             `json:"lifespanMonths"`
	Importance     int              `json:"importance"`
	SafetyCritical bool             `json:"isSafetyCritical"`
}

// BuildExport assembles an export. Zone components are left out; rules keep
// their component code even when it is a zone.
func BuildExport(components []catalog.Component, rules []catalog.Rule) *Export {
	out := &Export{
		Components:    make([]ExportedComponent, 0, len(components)),
		KnowledgeBase: make([]RuleEntry, 0, len(rules)),
	}

	codes := make(map[string]string, len(components))
	for _, c := range components {
		codes[c.ID.String()] = c.Code
		if strings.HasPrefix(c.Code, ZonePrefix) {
			continue
		}
		out.Components = append(out.Components, ExportedComponent{
			PartCode:       c.Code,
			Name:           c.Name,
			Category:       c.Category,
			LifespanKm:     c.DistanceLifespan,
			LifespanMonths: c.TimeLifespanMonths,
			Importance:     c.Importance,
			SafetyCritical: c.SafetyCritical,
		})
	}
	sort.SliceStable(out.Components, func(i, j int) bool {
		return out.Components[i].PartCode < out.Components[j].PartCode
	})

	for _, r := range rules {
		code := r.ComponentCode
		if code == "" {
			code = codes[r.ComponentID.String()]
		}
		out.KnowledgeBase = append(out.KnowledgeBase, RuleEntry{
			Symptom:    r.Symptom,
			Location:   deref(r.Location),
			Condition:  deref(r.Condition),
			BaseWeight: r.BaseWeight,
			Code:       code,
		})
	}
	sort.SliceStable(out.KnowledgeBase, func(i, j int) bool {
		return out.KnowledgeBase[i].Symptom < out.KnowledgeBase[j].Symptom
	})
	return out
}

// ExportFrom reads the catalog and rules from storage.
func ExportFrom(ctx context.Context, r Reader) (*Export, error) {
	components, err := r.Components(ctx)
	if err != nil {
		return nil, apperrors.StorageError("list components", err)
	}
	rules, err := r.Rules(ctx)
	if err != nil {
		return nil, apperrors.StorageError("list rules", err)
	}
	return BuildExport(components, rules), nil
}

// Write encodes the export as indented JSON.
func (e *Export) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(e)
}

// Seed converts an export back into an importable seed. Aliases are not part
// of an export.
func (e *Export) Seed() *Seed {
	seed := &Seed{
		Components: make([]catalog.Component, 0, len(e.Components)),
		Aliases:    []AliasEntry{},
		Rules:      append([]RuleEntry(nil), e.KnowledgeBase...),
	}
	for _, c := range e.Components {
		seed.Components = append(seed.Components, catalog.Component{
			Code:               c.PartCode,
			Name:               c.Name,
			Category:           c.Category,
			DistanceLifespan:   c.LifespanKm,
			TimeLifespanMonths: c.LifespanMonths,
			Importance:         c.Importance,
			SafetyCritical:     c.SafetyCritical,
		})
	}
	return seed
}

// LoadExport reads an export file written by Write.
func LoadExport(path string) (*Export, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.IOError(fmt.Sprintf("read export file %s", path), err)
	}
	var e Export
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, apperrors.ValidationError("decode export", err)
	}
	return &e, nil
}

// FileName is the suggested download name for an export made at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("askmap_knowledge_%s.json", t.Format("2006-01-02"))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
