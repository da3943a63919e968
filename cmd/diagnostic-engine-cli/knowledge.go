package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"

	"github.com/askmap/diagnostic-engine/internal/cache"
	"github.com/askmap/diagnostic-engine/internal/knowledgebase"
	"github.com/askmap/diagnostic-engine/internal/storage"
)

// newMigrateCmd creates the migrate subcommand.
func (c *cli) newMigrateCmd() *cobra.Command {
	var statusOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply the embedded schema migrations to the configured SQLite or
Postgres database. Use --status to list applied and pending migrations
without changing anything.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			db, err := storage.Open(c.cfg.Database)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			migrator := storage.NewMigrator(db, c.cfg.Database.Driver)

			if statusOnly {
				status, err := migrator.Status(ctx)
				if err != nil {
					return fmt.Errorf("migration status: %w", err)
				}
				if c.outputJSON {
					return writeJSON(cmd.OutOrStdout(), status)
				}
				c.ui.KeyValue("Driver", c.cfg.Database.Driver)
				c.ui.KeyValue("Applied", len(status.Applied))
				c.ui.KeyValue("Pending", len(status.Pending))
				for _, name := range status.Pending {
					c.ui.Step("pending %s", name)
				}
				return nil
			}

			c.logger.Info().Str("driver", c.cfg.Database.Driver).Msg("Applying migrations")
			applied, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}

			if c.outputJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"applied": applied})
			}
			if len(applied) == 0 {
				c.ui.Success("Schema is up to date")
				return nil
			}
			for _, name := range applied {
				c.ui.Success("Applied %s", name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&statusOnly, "status", false, "show migration status only")
	return cmd
}

// newSeedCmd creates the seed subcommand.
func (c *cli) newSeedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import the knowledge-base seed",
		Long: `Import components, aliases and diagnostic rules into the database.
Without --file the built-in seed is used. A JSON export written by the
export command is accepted too. Running it again updates rule weights in
place.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			seed, source, err := loadSeed(file)
			if err != nil {
				return err
			}
			c.ui.Step("Importing %s", source)

			a, err := c.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			bars := map[knowledgebase.Stage]*mpb.Bar{
				knowledgebase.StageComponents: c.ui.StageBar("components", int64(len(seed.Components))),
				knowledgebase.StageAliases:    c.ui.StageBar("aliases", int64(len(seed.Aliases))),
				knowledgebase.StageRules:      c.ui.StageBar("rules", int64(len(seed.Rules))),
			}
			progress := func(stage knowledgebase.Stage, done, total int) {
				if bar := bars[stage]; bar != nil {
					bar.SetCurrent(int64(done))
				}
			}

			result, err := knowledgebase.NewImporter(a.Store, c.logger, progress).Import(ctx, seed)
			for _, bar := range bars {
				if bar != nil && !bar.Completed() {
					bar.Abort(false)
				}
			}
			if err != nil {
				return fmt.Errorf("import seed: %w", err)
			}
			if err := cache.InvalidateEnrichment(ctx, a.Cache); err != nil {
				c.logger.Warn().Err(err).Msg("Enrichment cache not invalidated")
			}

			if c.outputJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			c.ui.Success("Imported %d components, %d aliases", result.Components, result.Aliases)
			c.ui.KeyValue("Rules created", result.RulesCreated)
			c.ui.KeyValue("Rules updated", result.RulesUpdated)
			for _, reason := range result.Skipped {
				c.ui.Warning("Skipped %s", reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "seed YAML or export JSON file (default: built-in seed)")
	return cmd
}

func loadSeed(file string) (*knowledgebase.Seed, string, error) {
	if file == "" {
		seed, err := knowledgebase.DefaultSeed()
		if err != nil {
			return nil, "", fmt.Errorf("load built-in seed: %w", err)
		}
		return seed, "built-in seed", nil
	}

	if isJSONFile(file) {
		export, err := knowledgebase.LoadExport(file)
		if err != nil {
			return nil, "", fmt.Errorf("load export: %w", err)
		}
		return export.Seed(), file, nil
	}

	seed, err := knowledgebase.LoadSeed(file)
	if err != nil {
		return nil, "", fmt.Errorf("load seed: %w", err)
	}
	return seed, file, nil
}

func isJSONFile(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".json")
}

// newExportCmd creates the export subcommand.
func (c *cli) newExportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the knowledge base as JSON",
		Long: `Export the component catalog and diagnostic rules as JSON. Zone
pseudo-components are left out. The default file name carries today's
date; use --output - to write to stdout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			a, err := c.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			export, err := knowledgebase.ExportFrom(ctx, a.Store)
			if err != nil {
				return fmt.Errorf("export knowledge base: %w", err)
			}

			if output == "-" {
				return export.Write(cmd.OutOrStdout())
			}
			if output == "" {
				output = knowledgebase.FileName(time.Now())
			}

			file, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create output file: %w", err)
			}
			defer file.Close()

			if err := export.Write(file); err != nil {
				return fmt.Errorf("write export: %w", err)
			}

			if c.outputJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"output":     output,
					"components": len(export.Components),
					"rules":      len(export.KnowledgeBase),
				})
			}
			c.ui.Success("Exported %d components and %d rules to %s", len(export.Components), len(export.KnowledgeBase), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, - for stdout")
	return cmd
}
