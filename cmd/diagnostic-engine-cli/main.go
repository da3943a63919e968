// Package main provides the diagnostic engine CLI entrypoint.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/askmap/diagnostic-engine/internal/app"
	"github.com/askmap/diagnostic-engine/internal/config"
	"github.com/askmap/diagnostic-engine/internal/observability"
)

const version = "0.3.0"

// cli carries global flags and the state PersistentPreRunE prepares.
type cli struct {
	cfgFile    string
	outputJSON bool
	noColor    bool
	verbose    bool

	cfg    *config.Config
	logger *observability.Logger
	ui     *UI
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "diagnostic-engine-cli",
		Short: "Diagnostic engine CLI for the component catalog and symptom analysis",
		Long: `Diagnostic engine CLI manages the knowledge base and runs the engine
against the configured database.

Use this tool to:
- Apply schema migrations and import the knowledge-base seed
- Export the knowledge base as JSON
- Record service history and odometer readings
- Show component wear for a vehicle
- Rank probable causes of a symptom
- Match receipt lines against component aliases

All commands support --json for automation.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			c.cfg, err = config.Load(c.cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logFormat := "console"
			if c.outputJSON {
				logFormat = "json"
			}
			level := c.cfg.Observability.LogLevel
			if c.verbose {
				level = "debug"
			}

			c.logger = observability.NewLogger(observability.LogConfig{
				Level:       level,
				Format:      logFormat,
				Output:      cmd.ErrOrStderr(),
				ServiceName: "diagnostic-engine-cli",
			})
			c.ui = NewUI(cmd.OutOrStdout(), c.outputJSON, c.noColor)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.ui != nil {
				c.ui.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&c.cfgFile, "config", "c", os.Getenv("CONFIG_PATH"), "config file path (default: uses env vars)")
	rootCmd.PersistentFlags().BoolVar(&c.outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&c.noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(c.newMigrateCmd())
	rootCmd.AddCommand(c.newSeedCmd())
	rootCmd.AddCommand(c.newExportCmd())
	rootCmd.AddCommand(c.newHealthCmd())
	rootCmd.AddCommand(c.newDiagnoseCmd())
	rootCmd.AddCommand(c.newMatchCmd())
	rootCmd.AddCommand(c.newParseReceiptCmd())
	rootCmd.AddCommand(c.newRecordCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openApp builds the engine against the configured database.
func (c *cli) openApp(ctx context.Context) (*app.App, error) {
	a, err := app.Build(ctx, c.cfg, c.logger)
	if err != nil {
		return nil, fmt.Errorf("initialize engine: %w", err)
	}
	return a, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// newVersionCmd creates the version subcommand.
func (c *cli) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.outputJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]string{
					"version": version,
					"go":      runtime.Version(),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "diagnostic-engine-cli v%s\n", version)
			return nil
		},
	}
}
