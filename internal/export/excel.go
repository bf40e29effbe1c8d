package export

import (
	"fmt"

	"github.com/docuflow/invoice-extractor/internal/invoice"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ExcelExporter renders a reconciled invoice record to an .xlsx workbook:
// a metadata block, one row per line item and a totals block.
type ExcelExporter struct {
	logger *zap.Logger
}

// NewExcelExporter creates a new Excel exporter
func NewExcelExporter(logger *zap.Logger) *ExcelExporter {
	return &ExcelExporter{logger: logger}
}

// Export builds the workbook for an invoice record. The caller owns the
// returned file and is responsible for closing it.
func (e *ExcelExporter) Export(inv *invoice.InvoiceData) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	e.setCell(f, sheet, "A1", "Invoice Number")
	e.setCell(f, sheet, "B1", strValue(inv.InvoiceMetadata.InvoiceNumber))
	e.setCell(f, sheet, "A2", "Invoice Date")
	e.setCell(f, sheet, "B2", strValue(inv.InvoiceMetadata.InvoiceDate))
	e.setCell(f, sheet, "A3", "Due Date")
	e.setCell(f, sheet, "B3", strValue(inv.InvoiceMetadata.DueDate))
	e.setCell(f, sheet, "A4", "Currency")
	e.setCell(f, sheet, "B4", strValue(inv.InvoiceMetadata.Currency))

	e.setCell(f, sheet, "A6", "Vendor")
	e.setCell(f, sheet, "B6", strValue(inv.InvoiceMetadata.VendorDetails.Name))
	e.setCell(f, sheet, "C6", strValue(inv.InvoiceMetadata.VendorDetails.Address))
	e.setCell(f, sheet, "D6", strValue(inv.InvoiceMetadata.VendorDetails.TaxID))
	e.setCell(f, sheet, "A7", "Customer")
	e.setCell(f, sheet, "B7", strValue(inv.InvoiceMetadata.CustomerDetails.Name))
	e.setCell(f, sheet, "C7", strValue(inv.InvoiceMetadata.CustomerDetails.Address))
	e.setCell(f, sheet, "D7", strValue(inv.InvoiceMetadata.CustomerDetails.TaxID))

	// Line item table
	headerRow := 9
	headers := []string{"Date", "Description", "Quantity", "Unit", "Unit Price", "Tax Rate", "Tax Amount", "Subtotal", "Total"}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, headerRow)
		if err != nil {
			return nil, fmt.Errorf("failed to build cell name: %w", err)
		}
		e.setCell(f, sheet, cell, header)
	}

	for rowIdx, item := range inv.LineItems {
		row := headerRow + 1 + rowIdx
		values := []any{
			strValue(item.TransactionDate),
			strValue(item.Description),
			floatValue(item.Quantity),
			strValue(item.Unit),
			floatValue(item.UnitPrice),
			floatValue(item.TaxRate),
			floatValue(item.TaxAmount),
			floatValue(item.Subtotal),
			floatValue(item.Total),
		}
		for colIdx, value := range values {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, row)
			if err != nil {
				return nil, fmt.Errorf("failed to build cell name: %w", err)
			}
			e.setCell(f, sheet, cell, value)
		}
	}

	// Totals block below the table
	totalsRow := headerRow + len(inv.LineItems) + 2
	totals := []struct {
		label string
		value any
	}{
		{"Previous Balance", floatValue(inv.Totals.PreviousBalance)},
		{"Current Charges", floatValue(inv.Totals.CurrentCharges)},
		{"Discounts", floatValue(inv.Totals.Discounts)},
		{"Adjustments", floatValue(inv.Totals.Adjustments)},
		{"Grand Total", floatValue(inv.Totals.GrandTotal)},
		{"Amount in Words", strValue(inv.Totals.AmountInWords)},
	}
	for i, entry := range totals {
		labelCell, err := excelize.CoordinatesToCellName(1, totalsRow+i)
		if err != nil {
			return nil, fmt.Errorf("failed to build cell name: %w", err)
		}
		valueCell, err := excelize.CoordinatesToCellName(2, totalsRow+i)
		if err != nil {
			return nil, fmt.Errorf("failed to build cell name: %w", err)
		}
		e.setCell(f, sheet, labelCell, entry.label)
		e.setCell(f, sheet, valueCell, entry.value)
	}

	e.logger.Debug("Invoice exported to workbook",
		zap.Stringp("invoice_number", inv.InvoiceMetadata.InvoiceNumber),
		zap.Int("line_items", len(inv.LineItems)))

	return f, nil
}

// setCell sets a cell value, logging failures instead of aborting the export
func (e *ExcelExporter) setCell(f *excelize.File, sheet, cell string, value any) {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		e.logger.Warn("Failed to set cell value",
			zap.String("cell", cell),
			zap.Error(err))
	}
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func floatValue(f *float64) any {
	if f == nil {
		return ""
	}
	return *f
}
