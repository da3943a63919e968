// Package oracle holds the external text services the diagnostic engine
// depends on: keyword enrichment, symptom interpretation, explanations and
// OCR text extraction. The engine only sees the interfaces; the YandexGPT
// client is one implementation.
package oracle

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/askmap/diagnostic-engine/internal/apperrors"
)

// Completer sends a system prompt plus user text to a completion model and
// returns the model's raw answer.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userText string) (string, error)
}

// Enricher expands free text into related keywords.
type Enricher interface {
	Enrich(ctx context.Context, text string) ([]string, error)
}

// Explainer produces a short plain-language explanation of why a component
// may cause a symptom.
type Explainer interface {
	Explain(ctx context.Context, componentName, symptomLabel string) (string, error)
}

// DocumentKind tells what a scanned document is.
type DocumentKind string

const (
	DocumentReceipt   DocumentKind = "RECEIPT"
	DocumentWorkOrder DocumentKind = "WORK_ORDER"
	DocumentOdometer  DocumentKind = "ODOMETER"
)

// Document is a stored scan awaiting text extraction.
type Document struct {
	ID         uuid.UUID    `json:"id"`
	VehicleID  *uuid.UUID   `json:"vehicleId,omitempty"`
	Kind       DocumentKind `json:"kind"`
	StorageURL string       `json:"storageUrl,omitempty"`
	// OCRText is text already extracted or supplied with the upload.
	OCRText string `json:"ocrText,omitempty"`
}

// TextExtractor turns a document into plain text.
type TextExtractor interface {
	ExtractText(ctx context.Context, doc Document) (string, error)
}

// StaticExtractor returns text already attached to the document. It stands
// in for a real OCR provider.
type StaticExtractor struct{}

// ExtractText returns doc.OCRText or an IO error when there is none.
func (StaticExtractor) ExtractText(_ context.Context, doc Document) (string, error) {
	if strings.TrimSpace(doc.OCRText) == "" {
		return "", apperrors.IOError("document has no extracted text", nil)
	}
	return doc.OCRText, nil
}
