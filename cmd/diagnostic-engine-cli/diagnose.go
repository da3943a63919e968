package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/askmap/diagnostic-engine/internal/catalog"
	"github.com/askmap/diagnostic-engine/internal/diagnostics"
)

// newHealthCmd creates the health subcommand.
func (c *cli) newHealthCmd() *cobra.Command {
	var (
		vehicle string
		at      string
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show component wear for a vehicle",
		Long: `Evaluate every tracked component that has service history for the
vehicle and print its wear progress and status.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			vehicleID, err := uuid.Parse(vehicle)
			if err != nil {
				return fmt.Errorf("invalid vehicle id: %w", err)
			}
			now := time.Now()
			if at != "" {
				now, err = time.Parse("2006-01-02", at)
				if err != nil {
					return fmt.Errorf("invalid --at date: %w", err)
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			a, err := c.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			states, err := a.Diagnostics.HealthStates(ctx, vehicleID, now)
			if err != nil {
				return fmt.Errorf("compute health states: %w", err)
			}

			if c.outputJSON {
				if states == nil {
					states = []catalog.HealthState{}
				}
				return writeJSON(cmd.OutOrStdout(), states)
			}
			if len(states) == 0 {
				c.ui.Info("No service history for vehicle %s", vehicleID)
				return nil
			}

			c.ui.Section("Component health")
			rows := make([][]string, 0, len(states))
			for _, s := range states {
				rows = append(rows, []string{
					s.ComponentCode,
					truncate(s.ComponentName, 32),
					fmt.Sprintf("%3.0f%%", s.Progress*100),
					c.ui.StatusText(s.Status),
				})
			}
			c.ui.Table([]string{"Code", "Component", "Wear", "Status"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&vehicle, "vehicle", "", "vehicle ID")
	cmd.Flags().StringVar(&at, "at", "", "evaluation date YYYY-MM-DD (default: now)")
	_ = cmd.MarkFlagRequired("vehicle")
	return cmd
}

// newDiagnoseCmd creates the diagnose subcommand.
func (c *cli) newDiagnoseCmd() *cobra.Command {
	var (
		symptom   string
		location  string
		condition string
		text      string
	)

	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Rank probable causes of a symptom",
		Long: `Rank knowledge-base rules for a symptom. Without --symptom the
free-text complaint is interpreted by the oracle first, which needs the
oracle to be enabled.

Example:
  diagnostic-engine-cli diagnose --symptom KNOCK --location спереди --condition "на кочках"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if symptom == "" && text == "" {
				return errors.New("either --symptom or --text is required")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			a, err := c.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var spin *Spinner
			if a.OracleEnabled && !c.outputJSON && IsTerminal() {
				spin = NewSpinner("Asking the oracle...")
				spin.Start()
			}

			if symptom == "" {
				interp, err := a.Diagnostics.Interpret(ctx, text)
				if err != nil {
					spin.Stop()
					return fmt.Errorf("interpret complaint: %w", err)
				}
				symptom = string(interp.Symptom)
				spin.UpdateMessage("Ranking causes for " + interp.Symptom.Label() + "...")
			}

			report, err := a.Diagnostics.Analyze(ctx, diagnostics.Query{
				Symptom:      strings.ToUpper(symptom),
				Location:     optionalFlag(location),
				Condition:    optionalFlag(condition),
				OriginalText: text,
			})
			spin.Stop()
			if err != nil {
				return fmt.Errorf("analyze: %w", err)
			}

			if c.outputJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}

			c.ui.Section(report.Symptom.Label())
			c.ui.KeyValue("Keywords", strings.Join(report.Keywords, ", "))
			c.ui.KeyValue("Keyword source", report.KeywordSource)
			if len(report.Results) > 0 {
				rows := make([][]string, 0, len(report.Results))
				for i, r := range report.Results {
					rows = append(rows, []string{
						fmt.Sprintf("%d", i+1),
						truncate(r.ComponentName, 36),
						fmt.Sprintf("%d%%", r.Probability),
						fmt.Sprintf("%.2f", r.Score),
					})
				}
				c.ui.Table([]string{"#", "Component", "Probability", "Score"}, rows)
				for _, r := range report.Results {
					if r.Explanation != "" {
						c.ui.Step("%s: %s", r.ComponentName, r.Explanation)
					}
				}
			}
			c.ui.Warning("%s", report.Disclaimer)
			return nil
		},
	}

	cmd.Flags().StringVarP(&symptom, "symptom", "s", "", "symptom code ("+symptomList()+")")
	cmd.Flags().StringVarP(&location, "location", "l", "", "where the symptom appears")
	cmd.Flags().StringVar(&condition, "condition", "", "when the symptom appears")
	cmd.Flags().StringVarP(&text, "text", "t", "", "free-text complaint")
	return cmd
}

// newMatchCmd creates the match subcommand.
func (c *cli) newMatchCmd() *cobra.Command {
	var (
		suggest bool
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "match <text>",
		Short: "Match a text fragment to a component alias",
		Long: `Link a receipt line or part name to a catalog component through the
alias table. With --suggest, rank candidate components instead.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fragment := strings.Join(args, " ")

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			a, err := c.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if suggest {
				suggestions, err := a.Diagnostics.SuggestComponents(ctx, fragment, limit)
				if err != nil {
					return fmt.Errorf("suggest components: %w", err)
				}
				if c.outputJSON {
					return writeJSON(cmd.OutOrStdout(), suggestions)
				}
				if len(suggestions) == 0 {
					c.ui.Warning("No components resemble %q", fragment)
					return nil
				}
				rows := make([][]string, 0, len(suggestions))
				for _, s := range suggestions {
					rows = append(rows, []string{s.Component.Code, s.Component.Name, s.Method, fmt.Sprintf("%.2f", s.Score)})
				}
				c.ui.Table([]string{"Code", "Component", "Method", "Score"}, rows)
				return nil
			}

			result, err := a.Diagnostics.MatchAlias(ctx, fragment)
			if err != nil {
				return fmt.Errorf("match alias: %w", err)
			}
			if c.outputJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			if !result.Matched {
				c.ui.Warning("No alias matches %q", fragment)
				return nil
			}
			c.ui.Success("%s (alias %q, confidence %.2f)", result.ComponentCode, result.Alias, result.Confidence)
			return nil
		},
	}

	cmd.Flags().BoolVar(&suggest, "suggest", false, "rank candidate components")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum suggestions (default from config)")
	return cmd
}

func optionalFlag(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func symptomList() string {
	codes := catalog.SymptomCodes()
	names := make([]string, len(codes))
	for i, code := range codes {
		names[i] = string(code)
	}
	return strings.Join(names, ", ")
}
