package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrator applies the embedded schema migrations. Files ending in
// _sqlite.sql replace their base migration on SQLite and are skipped on
// PostgreSQL.
type Migrator struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

// NewMigrator creates a new migrator.
func NewMigrator(db *sql.DB, driver string) *Migrator {
	if driver == "" {
		driver = "sqlite"
	}
	return &Migrator{db: db, driver: driver}
}

// MigrationStatus represents the status of migrations.
type MigrationStatus struct {
	UpToDate bool
	Applied  []string
	Pending  []string
	Total    int
}

// Status lists applied and pending migrations.
func (m *Migrator) Status(ctx context.Context) (*MigrationStatus, error) {
	if err := m.ensureSchemaMigrationsTable(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	migrations, err := m.listMigrationFiles()
	if err != nil {
		return nil, fmt.Errorf("list migration files: %w", err)
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("read applied versions: %w", err)
	}

	status := &MigrationStatus{Total: len(migrations), Pending: []string{}, Applied: []string{}}
	for _, name := range migrations {
		if applied[versionOf(name)] {
			status.Applied = append(status.Applied, name)
		} else {
			status.Pending = append(status.Pending, name)
		}
	}
	status.UpToDate = len(status.Pending) == 0
	return status, nil
}

// Up runs every pending migration in order and returns the ones applied.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	status, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}

	for _, name := range status.Pending {
		if err := m.runMigration(ctx, name); err != nil {
			return nil, fmt.Errorf("run migration %s: %w", name, err)
		}
	}
	return status.Pending, nil
}

func (m *Migrator) ensureSchemaMigrationsTable(ctx context.Context) error {
	var query string
	switch m.driver {
	case "sqlite":
		query = `
			CREATE TABLE IF NOT EXISTS schema_migrations (
				version TEXT PRIMARY KEY,
				applied_at TEXT NOT NULL DEFAULT (datetime('now'))
			)
		`
	default:
		query = `
			CREATE TABLE IF NOT EXISTS schema_migrations (
				version TEXT PRIMARY KEY,
				applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)
		`
	}
	_, err := m.db.ExecContext(ctx, query)
	return err
}

// listMigrationFiles returns the file to run for each migration version,
// sorted by version.
func (m *Migrator) listMigrationFiles() ([]string, error) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return nil, err
	}

	sqliteMigrations := make(map[string]string)
	regularMigrations := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		if strings.HasSuffix(name, "_sqlite.sql") {
			sqliteMigrations[strings.TrimSuffix(name, "_sqlite.sql")] = name
		} else {
			regularMigrations[strings.TrimSuffix(name, ".sql")] = name
		}
	}

	var versions []string
	for version := range regularMigrations {
		versions = append(versions, version)
	}
	for version := range sqliteMigrations {
		if _, ok := regularMigrations[version]; !ok && m.driver == "sqlite" {
			versions = append(versions, version)
		}
	}
	sort.Strings(versions)

	migrations := make([]string, 0, len(versions))
	for _, version := range versions {
		if file, ok := sqliteMigrations[version]; ok && m.driver == "sqlite" {
			migrations = append(migrations, file)
			continue
		}
		migrations = append(migrations, regularMigrations[version])
	}
	return migrations, nil
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// runMigration executes one migration file and records its version in the
// same transaction.
func (m *Migrator) runMigration(ctx context.Context, name string) error {
	data, err := migrationFiles.ReadFile("migrations/" + name)
	if err != nil {
		return fmt.Errorf("read migration file: %w", err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range strings.Split(string(data), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", versionOf(name)); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}

func versionOf(name string) string {
	name = strings.TrimSuffix(name, ".sql")
	return strings.TrimSuffix(name, "_sqlite")
}
