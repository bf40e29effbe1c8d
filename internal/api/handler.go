package api

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/docuflow/invoice-extractor/internal/export"
	"github.com/docuflow/invoice-extractor/internal/invoice"
	"github.com/docuflow/invoice-extractor/internal/repository"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PageRenderer renders the first page of a stored PDF to JPEG bytes.
type PageRenderer interface {
	RenderFirstPage(pdfPath string) ([]byte, error)
}

// InvoiceExtractor turns a JPEG invoice page into a validated record plus the
// raw model reply.
type InvoiceExtractor interface {
	ExtractFromImage(ctx context.Context, jpegData []byte) (*invoice.InvoiceData, string, error)
}

// Handler serves the invoice extraction API
type Handler struct {
	renderer    PageRenderer
	extractor   InvoiceExtractor
	extractions *repository.ExtractionRepository
	exporter    *export.ExcelExporter
	uploadDir   string
	maxUpload   int
	logger      *zap.Logger
}

// NewHandler creates a new API handler. maxUploadMB bounds the decoded upload
// size.
func NewHandler(
	renderer PageRenderer,
	extractor InvoiceExtractor,
	extractions *repository.ExtractionRepository,
	exporter *export.ExcelExporter,
	uploadDir string,
	maxUploadMB int,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		renderer:    renderer,
		extractor:   extractor,
		extractions: extractions,
		exporter:    exporter,
		uploadDir:   uploadDir,
		maxUpload:   maxUploadMB * 1024 * 1024,
		logger:      logger,
	}
}

// RegisterRoutes wires the API endpoints onto the router
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.POST("/extract", h.Extract)
	router.GET("/extractions", h.ListExtractions)
	router.GET("/extractions/:id", h.GetExtraction)
	router.GET("/extractions/:id/export", h.ExportExtraction)
}

// ExtractRequest is the upload envelope: base64 file content plus extension.
type ExtractRequest struct {
	Data string `json:"data" binding:"required"`
	Ext  string `json:"ext" binding:"required"`
}

// Extract handles POST /extract: decode the upload, render the first page,
// send it to the vision model and reconcile the reply into an invoice record.
// The response body is the serialized record itself.
func (h *Handler) Extract(c *gin.Context) {
	var req ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: data and ext are required"})
		return
	}

	ext := strings.ToLower(strings.Trim(req.Ext, "."))
	if ext != "pdf" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported file extension. Allowed extensions: pdf"})
		return
	}

	fileData, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		h.logger.Warn("Invalid base64 upload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid base64-encoded file data"})
		return
	}
	if len(fileData) > h.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("Upload exceeds %d bytes", h.maxUpload)})
		return
	}

	pdfPath, err := h.saveUpload(fileData)
	if err != nil {
		h.logger.Error("Failed to store upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store the uploaded file"})
		return
	}
	defer func() {
		if err := os.Remove(pdfPath); err != nil {
			h.logger.Error("Failed to delete temporary file", zap.String("path", pdfPath), zap.Error(err))
			return
		}
		h.logger.Info("Temporary file deleted", zap.String("path", pdfPath))
	}()

	jpegData, err := h.renderer.RenderFirstPage(pdfPath)
	if err != nil {
		h.logger.Error("Failed to render PDF", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process the uploaded PDF"})
		return
	}

	record, rawReply, err := h.extractor.ExtractFromImage(c.Request.Context(), jpegData)
	if err != nil {
		h.respondExtractionError(c, err)
		return
	}

	if id, err := h.saveExtraction(c.Request.Context(), record, rawReply); err != nil {
		// Persistence is best-effort; the caller still gets the record.
		h.logger.Error("Failed to persist extraction", zap.Error(err))
	} else {
		c.Header("X-Extraction-ID", strconv.FormatInt(id, 10))
	}

	c.JSON(http.StatusOK, record)
}

// ExtractionSummary is one row of the extraction history listing.
type ExtractionSummary struct {
	ID            int64     `json:"id"`
	InvoiceNumber *string   `json:"invoice_number"`
	GrandTotal    *float64  `json:"grand_total"`
	CreatedAt     time.Time `json:"created_at"`
}

// ListExtractions handles GET /extractions
func (h *Handler) ListExtractions(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer between 1 and 500"})
			return
		}
		limit = parsed
	}

	rows, err := h.extractions.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list extractions"})
		return
	}

	summaries := make([]ExtractionSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, summarize(row))
	}
	c.JSON(http.StatusOK, gin.H{"extractions": summaries})
}

// GetExtraction handles GET /extractions/:id
func (h *Handler) GetExtraction(c *gin.Context) {
	row, ok := h.lookupExtraction(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         row.ID,
		"created_at": row.CreatedAt,
		"invoice":    json.RawMessage(row.InvoiceJSON),
	})
}

// ExportExtraction handles GET /extractions/:id/export, returning the stored
// record as an .xlsx workbook.
func (h *Handler) ExportExtraction(c *gin.Context) {
	row, ok := h.lookupExtraction(c)
	if !ok {
		return
	}

	var record invoice.InvoiceData
	if err := json.Unmarshal([]byte(row.InvoiceJSON), &record); err != nil {
		h.logger.Error("Stored extraction is unreadable", zap.Int64("id", row.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Stored extraction is unreadable"})
		return
	}

	workbook, err := h.exporter.Export(&record)
	if err != nil {
		h.logger.Error("Failed to export extraction", zap.Int64("id", row.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export extraction"})
		return
	}
	defer workbook.Close()

	buf, err := workbook.WriteToBuffer()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to serialize workbook"})
		return
	}

	filename := fmt.Sprintf("extraction-%d.xlsx", row.ID)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func (h *Handler) lookupExtraction(c *gin.Context) (*repository.Extraction, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
		return nil, false
	}

	row, err := h.extractions.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load extraction"})
		return nil, false
	}
	if row == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Extraction not found"})
		return nil, false
	}
	return row, true
}

// saveUpload writes the decoded PDF to a unique temporary file under the
// upload directory.
func (h *Handler) saveUpload(data []byte) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	tmp, err := os.CreateTemp(h.uploadDir, "invoice_*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close upload: %w", err)
	}

	return tmp.Name(), nil
}

func (h *Handler) saveExtraction(ctx context.Context, record *invoice.InvoiceData, rawReply string) (int64, error) {
	encoded, err := json.Marshal(record)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize record: %w", err)
	}

	row := &repository.Extraction{
		RawResponse: rawReply,
		InvoiceJSON: string(encoded),
	}
	if record.InvoiceMetadata.InvoiceNumber != nil {
		row.InvoiceNumber = sql.NullString{String: *record.InvoiceMetadata.InvoiceNumber, Valid: true}
	}
	if record.Totals.GrandTotal != nil {
		row.GrandTotal = sql.NullFloat64{Float64: *record.Totals.GrandTotal, Valid: true}
	}

	if err := h.extractions.Create(ctx, row); err != nil {
		return 0, err
	}
	return row.ID, nil
}

// respondExtractionError maps reconciliation error kinds onto HTTP statuses:
// a malformed reply is an upstream fault, shape and value conflicts are
// unprocessable extractions.
func (h *Handler) respondExtractionError(c *gin.Context, err error) {
	var malformed *invoice.MalformedResponseError
	var mismatch *invoice.SchemaMismatchError
	var invalid *invoice.ValidationError

	switch {
	case errors.As(err, &malformed):
		h.logger.Error("Model returned malformed JSON", zap.String("raw", malformed.Raw))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Received invalid JSON from the extraction model"})
	case errors.As(err, &mismatch):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "Extraction did not match the invoice schema",
			"path":  mismatch.Path,
		})
	case errors.As(err, &invalid):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "Extraction contained an invalid value",
			"path":  invalid.Path,
		})
	default:
		h.logger.Error("Extraction failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred while extracting the invoice"})
	}
}

func summarize(row *repository.Extraction) ExtractionSummary {
	summary := ExtractionSummary{
		ID:        row.ID,
		CreatedAt: row.CreatedAt,
	}
	if row.InvoiceNumber.Valid {
		summary.InvoiceNumber = &row.InvoiceNumber.String
	}
	if row.GrandTotal.Valid {
		summary.GrandTotal = &row.GrandTotal.Float64
	}
	return summary
}
