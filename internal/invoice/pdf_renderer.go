package invoice

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"os"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// renderDPI keeps the rendered page small enough for the vision API while
// staying legible for dense invoices.
const renderDPI = 150

// jpegQuality trades payload size against OCR accuracy.
const jpegQuality = 70

// PDFRenderer renders the first page of a PDF to a JPEG image for the vision
// model using mupdf.
type PDFRenderer struct {
	logger *zap.Logger
}

// NewPDFRenderer creates a new PDF renderer.
func NewPDFRenderer(logger *zap.Logger) *PDFRenderer {
	return &PDFRenderer{logger: logger}
}

// RenderFirstPage renders page one of the PDF at pdfPath to JPEG bytes.
// Invoices are extracted from the first page only, matching the upstream
// extraction contract.
func (r *PDFRenderer) RenderFirstPage(pdfPath string) ([]byte, error) {
	if _, err := os.Stat(pdfPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("PDF file not found: %s", pdfPath)
	}

	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("no pages found in PDF")
	}

	img, err := doc.ImageDPI(0, renderDPI)
	if err != nil {
		return nil, fmt.Errorf("failed to render PDF page: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}

	r.logger.Debug("Rendered PDF page",
		zap.String("path", pdfPath),
		zap.Int("total_pages", doc.NumPage()),
		zap.Int("jpeg_bytes", buf.Len()))

	return buf.Bytes(), nil
}
