package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/askmap/diagnostic-engine/internal/diagnostics"
	"github.com/askmap/diagnostic-engine/internal/oracle"
	"github.com/askmap/diagnostic-engine/internal/receipt"
	"github.com/askmap/diagnostic-engine/internal/storage"
)

// ReceiptReport is the parse-receipt output for one file.
type ReceiptReport struct {
	File       string           `json:"file"`
	Confidence float64          `json:"confidence"`
	Parsed     receipt.Document `json:"parsed"`
	// Set when the file was stored against a vehicle.
	DocumentID      *uuid.UUID `json:"documentId,omitempty"`
	ServiceRecordID *uuid.UUID `json:"serviceRecordId,omitempty"`
	OdometerID      *uuid.UUID `json:"odometerReadingId,omitempty"`
}

// newParseReceiptCmd creates the parse-receipt subcommand.
func (c *cli) newParseReceiptCmd() *cobra.Command {
	var (
		kind    string
		vehicle string
	)

	cmd := &cobra.Command{
		Use:   "parse-receipt <file>...",
		Short: "Parse OCR text of receipts and work orders",
		Long: `Parse text files holding OCR output of receipts, work orders or
odometer photos. Item lines are matched against the alias table.

With --vehicle each file is stored as a document for that vehicle and run
through the full pipeline, which records a draft service record or an
odometer reading.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docKind := oracle.DocumentKind(strings.ToUpper(kind))
			switch docKind {
			case oracle.DocumentReceipt, oracle.DocumentWorkOrder, oracle.DocumentOdometer:
			default:
				return fmt.Errorf("unknown document kind %q", kind)
			}

			var vehicleID *uuid.UUID
			if vehicle != "" {
				id, err := uuid.Parse(vehicle)
				if err != nil {
					return fmt.Errorf("invalid vehicle id: %w", err)
				}
				vehicleID = &id
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			a, err := c.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			aliases, err := a.Store.Aliases(ctx)
			if err != nil {
				return fmt.Errorf("load aliases: %w", err)
			}

			var bar *ProgressBar
			if len(args) > 1 && !c.outputJSON && IsTerminal() {
				bar = NewProgressBar(int64(len(args)), "Parsing")
			}

			reports := make([]ReceiptReport, 0, len(args))
			for _, path := range args {
				text, err := os.ReadFile(path)
				if err != nil {
					bar.Finish()
					return fmt.Errorf("read %s: %w", path, err)
				}

				var report ReceiptReport
				if vehicleID != nil {
					report, err = storeAndParse(ctx, a.Store, a.Diagnostics, path, string(text), docKind, *vehicleID)
					if err != nil {
						bar.Finish()
						return err
					}
				} else {
					parsed := receipt.Parse(string(text), strings.ToLower(string(docKind)), aliases)
					report = ReceiptReport{File: path, Parsed: parsed, Confidence: receipt.Confidence(parsed)}
				}
				reports = append(reports, report)
				bar.Add(1)
			}
			bar.Finish()

			if c.outputJSON {
				return writeJSON(cmd.OutOrStdout(), reports)
			}

			for _, r := range reports {
				c.ui.Section(filepath.Base(r.File))
				c.ui.KeyValue("Merchant", r.Parsed.Merchant)
				c.ui.KeyValue("Date", r.Parsed.Date)
				if r.Parsed.Total != nil {
					c.ui.KeyValue("Total", fmt.Sprintf("%.2f %s", *r.Parsed.Total, r.Parsed.Currency))
				}
				if r.Parsed.Odometer != nil {
					c.ui.KeyValue("Odometer", *r.Parsed.Odometer)
				}
				c.ui.KeyValue("Confidence", fmt.Sprintf("%.2f", r.Confidence))
				rows := make([][]string, 0, len(r.Parsed.Items))
				for _, it := range r.Parsed.Items {
					code := "-"
					if it.ComponentCode != "" {
						code = it.ComponentCode
					}
					rows = append(rows, []string{truncate(it.Raw, 40), code, fmt.Sprintf("%.2f", it.Confidence)})
				}
				c.ui.Table([]string{"Line", "Component", "Confidence"}, rows)
				if r.ServiceRecordID != nil {
					c.ui.Success("Draft service record %s", r.ServiceRecordID)
				}
				if r.OdometerID != nil {
					c.ui.Success("Odometer reading %s", r.OdometerID)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "receipt", "document kind: receipt, work_order or odometer")
	cmd.Flags().StringVar(&vehicle, "vehicle", "", "store the documents for this vehicle ID")
	return cmd
}

type documentParser interface {
	ParseDocument(ctx context.Context, documentID uuid.UUID) (*diagnostics.ParseResult, error)
}

func storeAndParse(ctx context.Context, store *storage.Store, parser documentParser, path, text string, kind oracle.DocumentKind, vehicleID uuid.UUID) (ReceiptReport, error) {
	doc := &storage.Document{Document: oracle.Document{
		VehicleID:  &vehicleID,
		Kind:       kind,
		StorageURL: "file://" + path,
		OCRText:    text,
	}}
	if err := store.DocumentRepo.Create(ctx, doc); err != nil {
		return ReceiptReport{}, fmt.Errorf("store %s: %w", path, err)
	}

	result, err := parser.ParseDocument(ctx, doc.ID)
	if err != nil {
		return ReceiptReport{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return ReceiptReport{
		File:            path,
		Confidence:      result.Confidence,
		Parsed:          result.Parsed,
		DocumentID:      &result.DocumentID,
		ServiceRecordID: result.UsageEventID,
		OdometerID:      result.OdometerSampleID,
	}, nil
}
