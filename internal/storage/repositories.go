package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/askmap/diagnostic-engine/internal/catalog"
)

// ComponentRepository handles the component catalog.
type ComponentRepository struct {
	db DB
}

// NewComponentRepository creates a new component repository.
func NewComponentRepository(db DB) *ComponentRepository {
	return &ComponentRepository{db: db}
}

const componentColumns = `id, code, name, category, lifespan_km, lifespan_months, importance, safety_critical`

// Upsert inserts the component or updates the one with the same code. The
// stored ID is written back to c.
func (r *ComponentRepository) Upsert(ctx context.Context, c *catalog.Component) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Category == "" {
		c.Category = catalog.CategoryOther
	}

	query := `
		INSERT INTO components (` + componentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (code) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			lifespan_km = excluded.lifespan_km,
			lifespan_months = excluded.lifespan_months,
			importance = excluded.importance,
			safety_critical = excluded.safety_critical
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.Code, c.Name, string(c.Category), nullInt(c.DistanceLifespan), nullInt(c.TimeLifespanMonths),
		c.Importance, c.SafetyCritical,
	)
	if err != nil {
		return fmt.Errorf("upsert component %s: %w", c.Code, err)
	}

	stored, err := r.GetByCode(ctx, c.Code)
	if err != nil {
		return err
	}
	c.ID = stored.ID
	return nil
}

// List returns the whole catalog ordered by category and code.
func (r *ComponentRepository) List(ctx context.Context) ([]catalog.Component, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+componentColumns+` FROM components ORDER BY category, code`)
	if err != nil {
		return nil, fmt.Errorf("list components: %w", err)
	}
	defer rows.Close()

	components := make([]catalog.Component, 0)
	for rows.Next() {
		c, err := scanComponent(rows)
		if err != nil {
			return nil, err
		}
		components = append(components, c)
	}
	return components, rows.Err()
}

// GetByCode retrieves a component by its stable code.
func (r *ComponentRepository) GetByCode(ctx context.Context, code string) (*catalog.Component, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+componentColumns+` FROM components WHERE code = $1`, code)
	c, err := scanComponent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanComponent(s scanner) (catalog.Component, error) {
	var (
		c              catalog.Component
		category       string
		lifespanKm     sql.NullInt64
		lifespanMonths sql.NullInt64
	)
	if err := s.Scan(&c.ID, &c.Code, &c.Name, &category, &lifespanKm, &lifespanMonths, &c.Importance, &c.SafetyCritical); err != nil {
		return c, err
	}
	c.Category = catalog.Category(category)
	c.DistanceLifespan = intPtr(lifespanKm)
	c.TimeLifespanMonths = intPtr(lifespanMonths)
	return c, nil
}

// AliasRepository handles text aliases of components.
type AliasRepository struct {
	db DB
}

// NewAliasRepository creates a new alias repository.
func NewAliasRepository(db DB) *AliasRepository {
	return &AliasRepository{db: db}
}

// Create stores an alias; an identical alias for the same component is
// ignored.
func (r *AliasRepository) Create(ctx context.Context, a catalog.Alias) error {
	if a.Locale == "" {
		a.Locale = "ru"
	}
	query := `
		INSERT INTO component_aliases (id, alias, component_id, locale)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (alias, component_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, uuid.New(), a.Alias, a.ComponentID, a.Locale); err != nil {
		return fmt.Errorf("create alias %q: %w", a.Alias, err)
	}
	return nil
}

// List returns every alias with its component code, in a stable order.
func (r *AliasRepository) List(ctx context.Context) ([]catalog.Alias, error) {
	query := `
		SELECT a.alias, a.component_id, c.code, a.locale
		FROM component_aliases a
		JOIN components c ON c.id = a.component_id
		ORDER BY c.code, a.alias
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list aliases: %w", err)
	}
	defer rows.Close()

	aliases := make([]catalog.Alias, 0)
	for rows.Next() {
		var a catalog.Alias
		if err := rows.Scan(&a.Alias, &a.ComponentID, &a.ComponentCode, &a.Locale); err != nil {
			return nil, err
		}
		aliases = append(aliases, a)
	}
	return aliases, rows.Err()
}

// RuleRepository handles knowledge-base rules.
type RuleRepository struct {
	db DB
}

// NewRuleRepository creates a new rule repository.
func NewRuleRepository(db DB) *RuleRepository {
	return &RuleRepository{db: db}
}

// Create stores a rule.
func (r *RuleRepository) Create(ctx context.Context, rule *catalog.Rule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	query := `
		INSERT INTO symptom_rules (id, symptom, location_text, condition_text, component_id, base_weight)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		rule.ID, string(rule.Symptom), nullString(rule.Location), nullString(rule.Condition),
		rule.ComponentID, rule.BaseWeight,
	)
	if err != nil {
		return fmt.Errorf("create rule: %w", err)
	}
	return nil
}

const ruleSelect = `
	SELECT r.id, r.symptom, r.location_text, r.condition_text, r.component_id, c.code, c.name, r.base_weight
	FROM symptom_rules r
	JOIN components c ON c.id = r.component_id
`

// ListBySymptom returns the candidate rules for one symptom.
func (r *RuleRepository) ListBySymptom(ctx context.Context, symptom catalog.SymptomCode) ([]catalog.Rule, error) {
	return r.query(ctx, ruleSelect+` WHERE r.symptom = $1 ORDER BY r.base_weight DESC, c.code, r.id`, string(symptom))
}

// List returns every rule.
func (r *RuleRepository) List(ctx context.Context) ([]catalog.Rule, error) {
	return r.query(ctx, ruleSelect+` ORDER BY c.code, r.symptom, r.id`)
}

// Exists reports whether an identical rule is already stored.
func (r *RuleRepository) Exists(ctx context.Context, rule catalog.Rule) (bool, error) {
	query := `
		SELECT COUNT(*) FROM symptom_rules
		WHERE symptom = $1 AND component_id = $2
			AND COALESCE(location_text, '') = $3 AND COALESCE(condition_text, '') = $4
	`
	var n int
	err := r.db.QueryRowContext(ctx, query,
		string(rule.Symptom), rule.ComponentID, deref(rule.Location), deref(rule.Condition),
	).Scan(&n)
	return n > 0, err
}

// Upsert updates the weight of an identical rule or creates a new one. It
// reports whether a row was created.
func (r *RuleRepository) Upsert(ctx context.Context, rule *catalog.Rule) (bool, error) {
	query := `
		SELECT id FROM symptom_rules
		WHERE symptom = $1 AND component_id = $2
			AND COALESCE(location_text, '') = $3 AND COALESCE(condition_text, '') = $4
		LIMIT 1
	`
	var id uuid.UUID
	err := r.db.QueryRowContext(ctx, query,
		string(rule.Symptom), rule.ComponentID, deref(rule.Location), deref(rule.Condition),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return true, r.Create(ctx, rule)
	}
	if err != nil {
		return false, fmt.Errorf("find rule: %w", err)
	}

	rule.ID = id
	if _, err := r.db.ExecContext(ctx, `UPDATE symptom_rules SET base_weight = $1 WHERE id = $2`, rule.BaseWeight, id); err != nil {
		return false, fmt.Errorf("update rule weight: %w", err)
	}
	return false, nil
}

func (r *RuleRepository) query(ctx context.Context, query string, args ...interface{}) ([]catalog.Rule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	rules := make([]catalog.Rule, 0)
	for rows.Next() {
		var (
			rule      catalog.Rule
			symptom   string
			location  sql.NullString
			condition sql.NullString
		)
		if err := rows.Scan(&rule.ID, &symptom, &location, &condition, &rule.ComponentID,
			&rule.ComponentCode, &rule.ComponentName, &rule.BaseWeight); err != nil {
			return nil, err
		}
		rule.Symptom = catalog.SymptomCode(symptom)
		rule.Location = stringPtr(location)
		rule.Condition = stringPtr(condition)
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullString(v *string) sql.NullString {
	if v == nil || strings.TrimSpace(*v) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
