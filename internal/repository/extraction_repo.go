package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Extraction is one stored extraction pass: the raw model reply and the
// reconciled invoice record, serialized as JSON. InvoiceNumber and GrandTotal
// are denormalized from the record for listing.
type Extraction struct {
	ID            int64
	InvoiceNumber sql.NullString
	GrandTotal    sql.NullFloat64
	RawResponse   string
	InvoiceJSON   string
	CreatedAt     time.Time
}

// ExtractionRepository persists extraction results
type ExtractionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewExtractionRepository creates a new extraction repository
func NewExtractionRepository(db *sql.DB, logger *zap.Logger) *ExtractionRepository {
	return &ExtractionRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a new extraction record
func (r *ExtractionRepository) Create(ctx context.Context, e *Extraction) error {
	query := `
		INSERT INTO extractions (invoice_number, grand_total, raw_response, invoice_json)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		e.InvoiceNumber,
		e.GrandTotal,
		e.RawResponse,
		e.InvoiceJSON,
	)
	if err != nil {
		r.logger.Error("Failed to create extraction", zap.Error(err))
		return fmt.Errorf("failed to create extraction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	e.ID = id
	return nil
}

// GetByID retrieves an extraction by ID
func (r *ExtractionRepository) GetByID(ctx context.Context, id int64) (*Extraction, error) {
	query := `
		SELECT id, invoice_number, grand_total, raw_response, invoice_json, created_at
		FROM extractions
		WHERE id = ?
	`

	var e Extraction
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&e.ID,
		&e.InvoiceNumber,
		&e.GrandTotal,
		&e.RawResponse,
		&e.InvoiceJSON,
		&e.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get extraction", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get extraction: %w", err)
	}

	return &e, nil
}

// List returns the most recent extractions, newest first
func (r *ExtractionRepository) List(ctx context.Context, limit int) ([]*Extraction, error) {
	query := `
		SELECT id, invoice_number, grand_total, raw_response, invoice_json, created_at
		FROM extractions
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		r.logger.Error("Failed to list extractions", zap.Error(err))
		return nil, fmt.Errorf("failed to list extractions: %w", err)
	}
	defer rows.Close()

	var extractions []*Extraction
	for rows.Next() {
		var e Extraction
		if err := rows.Scan(
			&e.ID,
			&e.InvoiceNumber,
			&e.GrandTotal,
			&e.RawResponse,
			&e.InvoiceJSON,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan extraction: %w", err)
		}
		extractions = append(extractions, &e)
	}

	return extractions, rows.Err()
}
