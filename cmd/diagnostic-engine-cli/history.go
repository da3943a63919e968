package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/askmap/diagnostic-engine/internal/diagnostics"
)

// newRecordCmd creates the record command group.
func (c *cli) newRecordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record service history and odometer readings",
		Long: `Enter the data component health is computed from: confirmed service
records and odometer readings.`,
	}
	cmd.AddCommand(c.newRecordServiceCmd())
	cmd.AddCommand(c.newRecordOdometerCmd())
	return cmd
}

func (c *cli) newRecordServiceCmd() *cobra.Command {
	var (
		vehicle        string
		title          string
		date           string
		mileage        int
		cost           float64
		lifespanKm     int
		lifespanMonths int
		components     []string
	)

	cmd := &cobra.Command{
		Use:   "service",
		Short: "Add a confirmed service record",
		Long: `Add a manual service record for a vehicle. Components are given by
catalog code. With --mileage an odometer reading dated like the record is
stored too.

Example:
  diagnostic-engine-cli record service --vehicle <id> --title "Замена масла" \
    --mileage 120500 --date 2024-03-12 --component engine_oil --component oil_filter`,
		RunE: func(cmd *cobra.Command, args []string) error {
			vehicleID, err := uuid.Parse(vehicle)
			if err != nil {
				return fmt.Errorf("invalid vehicle id: %w", err)
			}
			in := diagnostics.ServiceRecordInput{
				VehicleID:      vehicleID,
				Title:          title,
				ComponentCodes: components,
			}
			if in.Date, err = optionalDate(date); err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("mileage") {
				in.Odometer = &mileage
			}
			if flags.Changed("cost") {
				in.Cost = &cost
			}
			if flags.Changed("lifespan-km") {
				in.InstalledPartLifespanKm = &lifespanKm
			}
			if flags.Changed("lifespan-months") {
				in.InstalledPartLifespanMonths = &lifespanMonths
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			a, err := c.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Diagnostics.RecordService(ctx, in)
			if err != nil {
				return fmt.Errorf("record service: %w", err)
			}

			if c.outputJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			c.ui.Success("Service record %s", result.Event.ID)
			c.ui.KeyValue("Date", result.Event.Date.Format("2006-01-02"))
			c.ui.KeyValue("Components", len(result.Event.ComponentIDs))
			if result.OdometerSampleID != nil {
				c.ui.KeyValue("Odometer reading", result.OdometerSampleID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&vehicle, "vehicle", "", "vehicle ID")
	cmd.Flags().StringVar(&title, "title", "", "what was done")
	cmd.Flags().StringVar(&date, "date", "", "service date YYYY-MM-DD (default: now)")
	cmd.Flags().IntVar(&mileage, "mileage", 0, "odometer value at the service, km")
	cmd.Flags().Float64Var(&cost, "cost", 0, "total cost")
	cmd.Flags().IntVar(&lifespanKm, "lifespan-km", 0, "lifespan of the installed part, km")
	cmd.Flags().IntVar(&lifespanMonths, "lifespan-months", 0, "lifespan of the installed part, months")
	cmd.Flags().StringSliceVar(&components, "component", nil, "serviced component code (repeatable)")
	_ = cmd.MarkFlagRequired("vehicle")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func (c *cli) newRecordOdometerCmd() *cobra.Command {
	var (
		vehicle string
		value   int
		date    string
	)

	cmd := &cobra.Command{
		Use:   "odometer",
		Short: "Add an odometer reading",
		Long: `Add a manual odometer reading. A value below the latest known
reading is rejected.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			vehicleID, err := uuid.Parse(vehicle)
			if err != nil {
				return fmt.Errorf("invalid vehicle id: %w", err)
			}
			at, err := optionalDate(date)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			a, err := c.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			sample, err := a.Diagnostics.RecordOdometer(ctx, diagnostics.OdometerInput{
				VehicleID: vehicleID,
				Value:     value,
				Date:      at,
			})
			if err != nil {
				return fmt.Errorf("record odometer: %w", err)
			}

			if c.outputJSON {
				return writeJSON(cmd.OutOrStdout(), sample)
			}
			c.ui.Success("Odometer %d km recorded for %s", sample.Value, sample.Date.Format("2006-01-02"))
			return nil
		},
	}

	cmd.Flags().StringVar(&vehicle, "vehicle", "", "vehicle ID")
	cmd.Flags().IntVar(&value, "value", 0, "odometer value, km")
	cmd.Flags().StringVar(&date, "date", "", "reading date YYYY-MM-DD (default: now)")
	_ = cmd.MarkFlagRequired("vehicle")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func optionalDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", raw, err)
	}
	return &t, nil
}
