// Package report writes normalization and clustering results to xlsx workbooks.
package report

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/Veraticus/product-normalizer/internal/model"
)

// Sheet names shared by both workbooks.
const (
	SheetSummary       = "Resumen"
	SheetUnsalvageable = "Insalvables"
)

const defaultColWidth = 18

// workbook wraps an excelize file with the header style and the sheet
// bookkeeping used by every writer in this package.
type workbook struct {
	f           *excelize.File
	headerStyle int
	sheets      int
}

func newWorkbook() (*workbook, error) {
	f := excelize.NewFile()
	style, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	return &workbook{f: f, headerStyle: style}, nil
}

// table writes a header row and data rows to a new sheet. The first sheet
// reuses the file's default sheet.
func (w *workbook) table(sheet string, headers []string, rows [][]any) error {
	if w.sheets == 0 {
		if err := w.f.SetSheetName(w.f.GetSheetName(0), sheet); err != nil {
			return fmt.Errorf("failed to rename sheet: %w", err)
		}
	} else if _, err := w.f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}
	w.sheets++

	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := w.f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to write header %s: %w", header, err)
		}
	}
	if len(headers) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(headers), 1)
		if err := w.f.SetCellStyle(sheet, "A1", last, w.headerStyle); err != nil {
			return fmt.Errorf("failed to style header: %w", err)
		}
		lastCol, _ := excelize.ColumnNumberToName(len(headers))
		if err := w.f.SetColWidth(sheet, "A", lastCol, defaultColWidth); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		values := row
		if err := w.f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", r+2, sheet, err)
		}
	}
	return nil
}

func (w *workbook) save(path string) error {
	defer func() { _ = w.f.Close() }()
	w.f.SetActiveSheet(0)
	if err := w.f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

func (w *workbook) close() {
	_ = w.f.Close()
}

var lineItemHeaders = []string{"Fila", "Info", "Descripcion", "Cantidad", "Precio_Unitario", "Subtotal"}

func lineItemRow(item model.LineItem) []any {
	return []any{
		item.Row,
		item.Fields["Info"],
		item.Description,
		amount(item.Quantity),
		amount(item.UnitPrice),
		amount(item.Subtotal),
	}
}

func (w *workbook) unsalvageable(items []model.LineItem) error {
	rows := make([][]any, len(items))
	for i, item := range items {
		rows[i] = lineItemRow(item)
	}
	return w.table(SheetUnsalvageable, lineItemHeaders, rows)
}

func amount(d decimal.Decimal) float64 {
	return d.Round(4).InexactFloat64()
}

func round2(f float64) float64 {
	return decimal.NewFromFloat(f).Round(2).InexactFloat64()
}
