package diagnostics

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/askmap/diagnostic-engine/internal/apperrors"
	"github.com/askmap/diagnostic-engine/internal/catalog"
	"github.com/askmap/diagnostic-engine/internal/oracle"
	"github.com/askmap/diagnostic-engine/internal/receipt"
	"github.com/askmap/diagnostic-engine/internal/storage"
)

// ParseResult is the outcome of parsing one stored document.
type ParseResult struct {
	DocumentID       uuid.UUID              `json:"documentId"`
	Status           storage.DocumentStatus `json:"status"`
	Confidence       float64                `json:"confidence"`
	Parsed           receipt.Document       `json:"parsed"`
	UsageEventID     *uuid.UUID             `json:"serviceRecordId,omitempty"`
	OdometerSampleID *uuid.UUID             `json:"odometerReadingId,omitempty"`
}

// ParseDocument extracts text from a stored document, parses it and records
// what it found. Odometer documents add an odometer sample; every other kind
// adds a draft usage event linking the matched components.
func (s *Service) ParseDocument(ctx context.Context, documentID uuid.UUID) (*ParseResult, error) {
	doc, err := s.store.Document(ctx, documentID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NotFoundError("document not found", err)
	}
	if err != nil {
		return nil, apperrors.StorageError("load document", err)
	}
	if doc.VehicleID == nil {
		return nil, apperrors.ValidationError("document is not linked to a vehicle", nil)
	}
	logger := s.logger.WithContext(ctx).WithOperation("parse_document").WithVehicle(doc.VehicleID.String())

	if err := s.store.SetDocumentStatus(ctx, doc.ID, storage.DocumentProcessing); err != nil {
		return nil, apperrors.StorageError("mark document processing", err)
	}

	text, err := s.extractor.ExtractText(ctx, doc.Document)
	if err != nil {
		if statusErr := s.store.SetDocumentStatus(ctx, doc.ID, storage.DocumentFailed); statusErr != nil {
			logger.Error().Err(statusErr).Msg("Failed to mark document failed")
		}
		logger.Warn().Err(err).Str("document_id", doc.ID.String()).Msg("Text extraction failed")
		if apperrors.TypeOf(err) == "" {
			err = apperrors.OracleError("extract document text", err)
		}
		return nil, err
	}

	aliases, err := s.store.Aliases(ctx)
	if err != nil {
		return nil, apperrors.StorageError("load aliases", err)
	}

	parsed := receipt.Parse(text, strings.ToLower(string(doc.Kind)), aliases)
	parsed.Meta.OCRProvider = s.opts.OCRProvider
	confidence := receipt.Confidence(parsed)

	if err := s.store.SaveParsedDocument(ctx, doc.ID, text, parsed, confidence); err != nil {
		return nil, apperrors.StorageError("save parsed document", err)
	}

	result := &ParseResult{
		DocumentID: doc.ID,
		Status:     storage.DocumentParsed,
		Confidence: confidence,
		Parsed:     parsed,
	}

	date, ok := parsed.ParsedDate()
	if !ok {
		date = s.now().UTC()
	}
	docID := doc.ID

	if doc.Kind == oracle.DocumentOdometer {
		if parsed.Odometer != nil {
			sample := &catalog.OdometerSample{
				VehicleID:  *doc.VehicleID,
				Date:       date,
				Value:      *parsed.Odometer,
				Source:     catalog.SourceOCR,
				DocumentID: &docID,
			}
			if err := s.store.CreateOdometerSample(ctx, sample); err != nil {
				return nil, apperrors.StorageError("create odometer sample", err)
			}
			result.OdometerSampleID = &sample.ID
		}
	} else {
		ev := &catalog.UsageEvent{
			VehicleID:        *doc.VehicleID,
			ComponentIDs:     parsed.MatchedComponentIDs(),
			Date:             date,
			Title:            parsed.Title(),
			Status:           catalog.EventStatusDraft,
			Source:           catalog.SourceOCR,
			Cost:             parsed.Total,
			Location:         parsed.Merchant,
			SourceDocumentID: &docID,
		}
		if parsed.Odometer != nil {
			ev.Odometer = *parsed.Odometer
		}
		if err := s.store.CreateUsageEvent(ctx, ev); err != nil {
			return nil, apperrors.StorageError("create draft usage event", err)
		}
		result.UsageEventID = &ev.ID
	}

	logger.Info().
		Str("document_id", doc.ID.String()).
		Str("kind", string(doc.Kind)).
		Int("items", len(parsed.Items)).
		Int("matched", len(parsed.MatchedComponentIDs())).
		Float64("confidence", confidence).
		Msg("Document parsed")
	return result, nil
}
