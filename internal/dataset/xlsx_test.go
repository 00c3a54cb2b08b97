package dataset

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

// writeWorkbook saves a workbook with sheets "Ignore" and "Data"; "Data" holds
// a header plus ten rows, a blank row, and a text-typed numeric cell.
func writeWorkbook(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", "Ignore"); err != nil {
		t.Fatalf("rename sheet: %v", err)
	}
	_ = f.SetSheetRow("Ignore", "A1", &[]any{"x"})
	if _, err := f.NewSheet("Data"); err != nil {
		t.Fatalf("new sheet: %v", err)
	}
	_ = f.SetSheetRow("Data", "A1", &[]any{"Group", "Category", "Units", "Price", "Region", "Code", "Note"})
	row := 2
	for i := 0; i < 10; i++ {
		if i == 5 {
			row++ // leave row 7 blank
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		group := string(rune('A' + i%3))
		_ = f.SetSheetRow("Data", cell, &[]any{group, "alpha", i + 1, 9.5, "north", "", fmt.Sprintf("n%d", i)})
		code, _ := excelize.CoordinatesToCellName(6, row)
		_ = f.SetCellStr("Data", code, "0042")
		row++
	}
	path := filepath.Join(t.TempDir(), "analysis_dataset.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}

func TestDecodeXLSXSheetSelection(t *testing.T) {
	path := writeWorkbook(t)
	opt := DefaultDecodeOptions()
	opt.SheetName = "data"

	byName, err := DecodeFile(path, opt)
	if err != nil {
		t.Fatalf("decode by name: %v", err)
	}
	if byName.Len() != 10 {
		t.Fatalf("rows = %d, want 10", byName.Len())
	}
	cols := byName.Columns()
	if len(cols) != 7 || cols[0] != "Group" || cols[6] != "Note" {
		t.Fatalf("columns = %#v", cols)
	}
	if v := byName.Rows[0].Value("Group"); v.String() != "A" {
		t.Fatalf("first group = %q", v.String())
	}
	if v := byName.Rows[0].Value("Category"); !v.IsText() || v.String() != "alpha" {
		t.Fatalf("first category = %#v", v)
	}
	if v := byName.Rows[9].Value("Units"); !v.IsNumber() || v.Num() != 10 {
		t.Fatalf("last units = %#v", v)
	}
	if byName.Name != "analysis_dataset.xlsx (sheet: data)" {
		t.Fatalf("name = %q", byName.Name)
	}

	opt = DefaultDecodeOptions()
	opt.SheetIndex = 2
	byIndex, err := DecodeFile(path, opt)
	if err != nil {
		t.Fatalf("decode by index: %v", err)
	}
	if byIndex.Len() != 10 {
		t.Fatalf("rows by index = %d, want 10", byIndex.Len())
	}
}

func TestDecodeXLSXStringCellsStayTextWithoutDynamicTyping(t *testing.T) {
	path := writeWorkbook(t)
	opt := DefaultDecodeOptions()
	opt.SheetName = "Data"

	opt.DynamicTyping = true
	ds, err := DecodeFile(path, opt)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v := ds.Rows[0].Value("Code"); !v.IsNumber() || v.Num() != 42 {
		t.Fatalf("dynamic code = %#v", v)
	}

	opt.DynamicTyping = false
	ds, err = DecodeFile(path, opt)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v := ds.Rows[0].Value("Code"); !v.IsText() || v.String() != "0042" {
		t.Fatalf("literal code = %#v", v)
	}
	if v := ds.Rows[0].Value("Units"); !v.IsNumber() {
		t.Fatalf("numeric cell should stay a number: %#v", v)
	}
}

func TestDecodeXLSXMaxRows(t *testing.T) {
	path := writeWorkbook(t)
	opt := DefaultDecodeOptions()
	opt.SheetName = "Data"
	opt.MaxRows = 4
	ds, err := DecodeFile(path, opt)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ds.Len() != 4 || len(ds.Warnings) != 1 || !strings.Contains(ds.Warnings[0], "4/10") {
		t.Fatalf("rows = %d, warnings = %v", ds.Len(), ds.Warnings)
	}
}

func TestDecodeXLSXSheetErrors(t *testing.T) {
	path := writeWorkbook(t)
	opt := DefaultDecodeOptions()
	opt.SheetName = "Nope"
	_, err := DecodeFile(path, opt)
	if err == nil || !strings.Contains(err.Error(), "Available sheets: Ignore, Data") {
		t.Fatalf("expected sheet listing error, got %v", err)
	}

	opt = DefaultDecodeOptions()
	opt.SheetIndex = 3
	if _, err := DecodeFile(path, opt); err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("expected index error, got %v", err)
	}
}

func TestDecodeXLSXRejectsNonWorkbook(t *testing.T) {
	_, err := xlsxDecoder{}.Decode("broken.xlsx", bytes.NewReader([]byte("not a zip")), DefaultDecodeOptions())
	if err == nil || !strings.Contains(err.Error(), "open xlsx") {
		t.Fatalf("expected open error, got %v", err)
	}
}
