package dataset

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

type xlsxDecoder struct{}

func (xlsxDecoder) CanDecode(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".xlsx")
}

// Decode extracts rows from the selected sheet. The first sheet row is the header.
// If opt.SheetName is empty and opt.SheetIndex <= 0, the first sheet is used.
func (xlsxDecoder) Decode(name string, src io.Reader, opt DecodeOptions) (*Dataset, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheet, err := resolveSheet(f.GetSheetList(), name, opt.SheetName, opt.SheetIndex)
	if err != nil {
		return nil, err
	}
	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	defer rows.Close()

	ds := &Dataset{Name: name}
	if opt.SheetName != "" {
		ds.Name = fmt.Sprintf("%s (sheet: %s)", name, opt.SheetName)
	}
	var names []string
	lim := rowLimiter{max: opt.MaxRows}
	rowNum := 0
	for rows.Next() {
		rowNum++
		cells, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", rowNum, err)
		}
		if names == nil {
			if isBlankRecord(cells) {
				continue
			}
			names = normalizeHeader(cells)
			continue
		}
		if isBlankRecord(cells) || !lim.admit() {
			continue
		}
		row := NewRow(len(names))
		for i, key := range names {
			if i >= len(cells) {
				break
			}
			literal := false
			if !opt.DynamicTyping && strings.TrimSpace(cells[i]) != "" {
				literal = isStringCell(f, sheet, i+1, rowNum)
			}
			row.Set(key, sheetValue(cells[i], literal, opt.DynamicTyping))
		}
		ds.Rows = append(ds.Rows, row)
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	lim.warn(ds)
	return ds, nil
}

// resolveSheet picks a sheet by case-insensitive name, else by 1-based
// position in workbook order.
func resolveSheet(sheets []string, file, sheetName string, sheetIndex int) (string, error) {
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook '%s' has no sheets", file)
	}
	if sheetName != "" {
		for _, s := range sheets {
			if strings.EqualFold(s, sheetName) {
				return s, nil
			}
		}
		return "", fmt.Errorf("sheet '%s' not found in workbook '%s'.\nAvailable sheets: %s",
			sheetName, file, strings.Join(sheets, ", "))
	}
	idx := sheetIndex
	if idx <= 0 {
		idx = 1
	}
	if idx > len(sheets) {
		return "", fmt.Errorf("sheet index %d out of range: workbook '%s' has %d sheets", idx, file, len(sheets))
	}
	return sheets[idx-1], nil
}

func isStringCell(f *excelize.File, sheet string, col, row int) bool {
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return false
	}
	typ, err := f.GetCellType(sheet, ref)
	if err != nil {
		return false
	}
	return typ == excelize.CellTypeSharedString || typ == excelize.CellTypeInlineString
}

// sheetValue types a cell. String-typed cells only become numbers under
// dynamic typing.
func sheetValue(raw string, literal, dynamic bool) Value {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Missing()
	}
	if !literal || dynamic {
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return Number(f)
		}
	}
	return Text(s)
}
