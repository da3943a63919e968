package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/askmap/diagnostic-engine/internal/oracle"
	"github.com/askmap/diagnostic-engine/internal/receipt"
)

// DocumentStatus tracks a scan through parsing.
type DocumentStatus string

const (
	DocumentUploaded   DocumentStatus = "UPLOADED"
	DocumentProcessing DocumentStatus = "PROCESSING"
	DocumentParsed     DocumentStatus = "PARSED"
	DocumentFailed     DocumentStatus = "FAILED"
)

// Document is a stored scan with its parse result.
type Document struct {
	oracle.Document
	Status     DocumentStatus    `json:"status"`
	Parsed     *receipt.Document `json:"parsed,omitempty"`
	Confidence *float64          `json:"confidence,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// DocumentRepository handles uploaded documents.
type DocumentRepository struct {
	db DB
}

// NewDocumentRepository creates a new document repository.
func NewDocumentRepository(db DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create stores a new document in UPLOADED state.
func (r *DocumentRepository) Create(ctx context.Context, doc *Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.Status == "" {
		doc.Status = DocumentUploaded
	}
	doc.CreatedAt = now()

	query := `
		INSERT INTO documents (id, vehicle_id, kind, storage_url, status, ocr_text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		doc.ID, nullUUID(doc.VehicleID), string(doc.Kind), doc.StorageURL, string(doc.Status), doc.OCRText, doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// GetByID retrieves a document.
func (r *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	query := `
		SELECT id, vehicle_id, kind, storage_url, status, ocr_text, parsed, confidence, created_at
		FROM documents WHERE id = $1
	`
	var (
		doc        Document
		vehicleID  uuid.NullUUID
		kind       string
		status     string
		parsed     sql.NullString
		confidence sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&doc.ID, &vehicleID, &kind, &doc.StorageURL, &status, &doc.OCRText, &parsed, &confidence, &doc.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if vehicleID.Valid {
		doc.VehicleID = &vehicleID.UUID
	}
	doc.Kind = oracle.DocumentKind(kind)
	doc.Status = DocumentStatus(status)
	if confidence.Valid {
		doc.Confidence = &confidence.Float64
	}
	if parsed.Valid && parsed.String != "" {
		var p receipt.Document
		if err := json.Unmarshal([]byte(parsed.String), &p); err != nil {
			return nil, fmt.Errorf("decode parsed document: %w", err)
		}
		doc.Parsed = &p
	}
	return &doc, nil
}

// SetStatus moves the document to a new status.
func (r *DocumentRepository) SetStatus(ctx context.Context, id uuid.UUID, status DocumentStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE documents SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return expectOne(res)
}

// SaveParsed stores the OCR text, parse result and confidence and marks the
// document PARSED.
func (r *DocumentRepository) SaveParsed(ctx context.Context, id uuid.UUID, ocrText string, parsed receipt.Document, confidence float64) error {
	data, err := json.Marshal(parsed)
	if err != nil {
		return fmt.Errorf("encode parsed document: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE documents SET status = $1, ocr_text = $2, parsed = $3, confidence = $4 WHERE id = $5`,
		string(DocumentParsed), ocrText, string(data), confidence, id,
	)
	if err != nil {
		return fmt.Errorf("save parsed document: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
