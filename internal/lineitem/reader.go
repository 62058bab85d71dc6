// Package lineitem reads invoice rows from spreadsheets and prepares them for
// normalization: numeric rescue and Pareto frequency analysis.
package lineitem

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/product-normalizer/internal/model"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ReadOptions names the sheet and columns to read. Empty column names for
// the numeric fields skip them.
type ReadOptions struct {
	Sheet             string
	DescriptionColumn string
	QuantityColumn    string
	PriceColumn       string
	SubtotalColumn    string
	InfoColumn        string
}

// DefaultReadOptions returns the column names used by the invoice export.
func DefaultReadOptions() ReadOptions {
	return ReadOptions{
		DescriptionColumn: "Descripcion",
		QuantityColumn:    "Cantidad",
		PriceColumn:       "Precio_Unitario",
		SubtotalColumn:    "Subtotal",
		InfoColumn:        "Info",
	}
}

// ReadXLSX loads every non-empty data row of the sheet. A sheet without the
// description column is not an error: each row is returned with
// DescriptionMissing set so the batch can report it.
func ReadXLSX(path string, opts ReadOptions) ([]model.LineItem, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open invoice workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheet := opts.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
		if sheet == "" {
			return nil, fmt.Errorf("no sheets found in %s", path)
		}
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows of sheet %q: %w", sheet, err)
	}
	return ParseRows(rows, opts), nil
}

// ParseRows converts a header row plus data rows into line items.
func ParseRows(rows [][]string, opts ReadOptions) []model.LineItem {
	if len(rows) == 0 {
		return nil
	}

	header := rows[0]
	descIdx := columnIndex(header, opts.DescriptionColumn)
	qtyIdx := columnIndex(header, opts.QuantityColumn)
	priceIdx := columnIndex(header, opts.PriceColumn)
	subIdx := columnIndex(header, opts.SubtotalColumn)
	infoIdx := columnIndex(header, opts.InfoColumn)

	if descIdx < 0 {
		slog.Warn("Description column not found, rows will be reported as malformed",
			"column", opts.DescriptionColumn,
			"header", header)
	}

	items := make([]model.LineItem, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if isEmptyRow(row) {
			continue
		}

		item := model.LineItem{
			Row:         i + 2,
			Fields:      make(map[string]string, len(header)),
			Salvageable: true,
		}
		for c, name := range header {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			item.Fields[name] = cell(row, c)
		}

		if descIdx < 0 {
			item.DescriptionMissing = true
		} else {
			item.Description = strings.TrimSpace(cell(row, descIdx))
		}
		item.Quantity, _ = ParseAmount(cell(row, qtyIdx))
		item.UnitPrice, _ = ParseAmount(cell(row, priceIdx))
		item.Subtotal, _ = ParseAmount(cell(row, subIdx))
		if infoIdx >= 0 {
			item.Invoice = ParseInvoiceHeader(cell(row, infoIdx))
		}

		items = append(items, item)
	}
	return items
}

// ParseAmount parses spreadsheet numbers written either as 1234.56 or in
// the Argentine 1.234,56 form. Currency marks are ignored. It reports false
// for blank or unparsable input, returning zero.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "ARS")
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.Zero, false
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func columnIndex(header []string, name string) int {
	if name == "" {
		return -1
	}
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx >= 0 && idx < len(row) {
		return row[idx]
	}
	return ""
}

func isEmptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
