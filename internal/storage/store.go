package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/askmap/diagnostic-engine/internal/catalog"
	"github.com/askmap/diagnostic-engine/internal/receipt"
)

// Store bundles the repositories behind one handle.
type Store struct {
	db *sql.DB

	ComponentRepo *ComponentRepository
	AliasRepo     *AliasRepository
	RuleRepo      *RuleRepository
	EventRepo     *UsageEventRepository
	OdometerRepo  *OdometerRepository
	DocumentRepo  *DocumentRepository
}

// NewStore creates a store over an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:            db,
		ComponentRepo: NewComponentRepository(db),
		AliasRepo:     NewAliasRepository(db),
		RuleRepo:      NewRuleRepository(db),
		EventRepo:     NewUsageEventRepository(db),
		OdometerRepo:  NewOdometerRepository(db),
		DocumentRepo:  NewDocumentRepository(db),
	}
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Components(ctx context.Context) ([]catalog.Component, error) {
	return s.ComponentRepo.List(ctx)
}

func (s *Store) Aliases(ctx context.Context) ([]catalog.Alias, error) {
	return s.AliasRepo.List(ctx)
}

func (s *Store) RulesForSymptom(ctx context.Context, symptom catalog.SymptomCode) ([]catalog.Rule, error) {
	return s.RuleRepo.ListBySymptom(ctx, symptom)
}

func (s *Store) Rules(ctx context.Context) ([]catalog.Rule, error) {
	return s.RuleRepo.List(ctx)
}

func (s *Store) UsageEvents(ctx context.Context, vehicleID uuid.UUID) ([]catalog.UsageEvent, error) {
	return s.EventRepo.ListByVehicle(ctx, vehicleID)
}

// LatestOdometer returns nil without error when the vehicle has no readings.
func (s *Store) LatestOdometer(ctx context.Context, vehicleID uuid.UUID) (*catalog.OdometerSample, error) {
	sample, err := s.OdometerRepo.Latest(ctx, vehicleID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return sample, err
}

func (s *Store) Document(ctx context.Context, id uuid.UUID) (*Document, error) {
	return s.DocumentRepo.GetByID(ctx, id)
}

func (s *Store) SetDocumentStatus(ctx context.Context, id uuid.UUID, status DocumentStatus) error {
	return s.DocumentRepo.SetStatus(ctx, id, status)
}

func (s *Store) SaveParsedDocument(ctx context.Context, id uuid.UUID, ocrText string, parsed receipt.Document, confidence float64) error {
	return s.DocumentRepo.SaveParsed(ctx, id, ocrText, parsed, confidence)
}

func (s *Store) CreateOdometerSample(ctx context.Context, sample *catalog.OdometerSample) error {
	return s.OdometerRepo.Create(ctx, sample)
}

func (s *Store) CreateUsageEvent(ctx context.Context, ev *catalog.UsageEvent) error {
	return s.EventRepo.Create(ctx, ev)
}

func (s *Store) UpsertComponent(ctx context.Context, c *catalog.Component) error {
	return s.ComponentRepo.Upsert(ctx, c)
}

func (s *Store) CreateAlias(ctx context.Context, a catalog.Alias) error {
	return s.AliasRepo.Create(ctx, a)
}

func (s *Store) UpsertRule(ctx context.Context, rule *catalog.Rule) (bool, error) {
	return s.RuleRepo.Upsert(ctx, rule)
}
