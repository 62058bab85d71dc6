package reftable

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/product-normalizer/internal/common"
	"github.com/Veraticus/product-normalizer/internal/model"
	"github.com/xuri/excelize/v2"
)

// XLSXStore keeps the reference table in a spreadsheet with a header row.
type XLSXStore struct {
	Path          string
	Sheet         string // first sheet when empty
	VariantColumn string
	BaseColumn    string
}

// NewXLSXStore returns a store for path using the default sheet and column names.
func NewXLSXStore(path string) *XLSXStore {
	return &XLSXStore{
		Path:          path,
		VariantColumn: DefaultVariantColumn,
		BaseColumn:    DefaultBaseColumn,
	}
}

// Location implements Store.
func (s *XLSXStore) Location() string {
	abs, err := filepath.Abs(s.Path)
	if err != nil {
		return s.Path
	}
	return abs
}

// Load implements Store.
func (s *XLSXStore) Load(_ context.Context) ([]model.ReferenceEntry, error) {
	if _, err := os.Stat(s.Path); err != nil {
		return nil, common.MissingResource(s.Path, err)
	}

	f, err := excelize.OpenFile(s.Path)
	if err != nil {
		return nil, common.MissingResource(s.Path, err)
	}
	defer func() { _ = f.Close() }()

	sheet := s.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, common.MissingResource(s.Path, errors.New("workbook has no sheets"))
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, common.MissingResource(s.Path, err)
	}
	if len(rows) == 0 {
		return nil, common.MissingResource(s.Path, fmt.Errorf("sheet %q is empty", sheet))
	}

	variantIdx := columnIndex(rows[0], s.variantColumn())
	baseIdx := columnIndex(rows[0], s.baseColumn())
	if variantIdx < 0 || baseIdx < 0 {
		return nil, common.MissingResource(s.Path, fmt.Errorf("sheet %q must have columns %q and %q, found %v",
			sheet, s.variantColumn(), s.baseColumn(), rows[0]))
	}

	entries := make([]model.ReferenceEntry, 0, len(rows)-1)
	for _, row := range rows[1:] {
		e := model.ReferenceEntry{Variant: cell(row, variantIdx), Base: cell(row, baseIdx)}.Clean()
		if e.Variant == "" || e.Base == "" {
			continue
		}
		entries = append(entries, e)
	}

	return entries, nil
}

// Save implements Store. The workbook is written to a temporary file and
// renamed over the original.
func (s *XLSXStore) Save(_ context.Context, entries []model.ReferenceEntry) error {
	sheet := s.Sheet
	if sheet == "" {
		sheet = "Sheet1"
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return fmt.Errorf("%w: %v", common.ErrPersistence, err)
		}
	}

	if err := f.SetSheetRow(sheet, "A1", &[]any{s.variantColumn(), s.baseColumn()}); err != nil {
		return fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	for i, e := range entries {
		cellName, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("%w: %v", common.ErrPersistence, err)
		}
		if err := f.SetSheetRow(sheet, cellName, &[]any{e.Variant, e.Base}); err != nil {
			return fmt.Errorf("%w: %v", common.ErrPersistence, err)
		}
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	tmp := filepath.Join(dir, "."+filepath.Base(s.Path)+".tmp.xlsx")
	if err := f.SaveAs(tmp); err != nil {
		return fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}

	return nil
}

func (s *XLSXStore) variantColumn() string {
	if s.VariantColumn == "" {
		return DefaultVariantColumn
	}
	return s.VariantColumn
}

func (s *XLSXStore) baseColumn() string {
	if s.BaseColumn == "" {
		return DefaultBaseColumn
	}
	return s.BaseColumn
}

func columnIndex(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}
