package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"intransparent/internal/disclosure"
	"intransparent/internal/ingest"
)

// WriteWorkbook writes one sheet per normalized series to an Excel workbook.
// Entities without quantitative data are skipped.
func WriteWorkbook(path string, series map[string]*ingest.Series) error {
	f := excelize.NewFile()
	defer f.Close()

	names := make([]string, 0, len(series))
	for name, s := range series {
		if s.Table != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return fmt.Errorf("no series with quantitative data to export")
	}

	used := make(map[string]bool, len(names))
	for i, name := range names {
		sheet := sheetName(name, used)
		if i == 0 {
			// Reuse the default sheet instead of leaving an empty one behind.
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return fmt.Errorf("rename default sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %q: %w", sheet, err)
		}

		if err := writeSheet(f, sheet, series[name]); err != nil {
			return fmt.Errorf("write sheet %q: %w", sheet, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, series *ingest.Series) error {
	columns := series.Table.Columns()

	header := []any{"period"}
	for _, col := range columns {
		header = append(header, col.Name)
	}
	header = append(header, "redundant")
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	for i, row := range series.Table.Rows() {
		values := make([]any, 0, len(header))
		values = append(values, row.Period.Label())
		for _, cell := range row.Cells {
			values = append(values, cellValue(cell))
		}
		values = append(values, row.Redundant)

		anchor, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, anchor, &values); err != nil {
			return err
		}
	}
	return nil
}

func cellValue(cell disclosure.CellValue) any {
	switch cell.Kind() {
	case disclosure.KindInt:
		v, _ := cell.AsInt()
		return v
	case disclosure.KindFloat:
		v, _ := cell.AsFloat()
		return v
	case disclosure.KindString:
		s, _ := cell.AsString()
		return s
	default:
		return nil
	}
}

const sheetNameLimit = 31

// sheetName fits an entity name into Excel's sheet naming rules: characters
// excelize rejects are replaced, the result is cut to 31 characters without
// splitting a rune, and a numeric suffix keeps names unique within the
// workbook. The map records every name already handed out.
func sheetName(name string, used map[string]bool) string {
	sanitized := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '?', '*', '[', ']', ':':
			return '-'
		}
		return r
	}, name)
	sanitized = truncateRunes(sanitized, sheetNameLimit)
	if sanitized == "" {
		sanitized = "Sheet"
	}

	candidate := sanitized
	for n := 2; used[candidate]; n++ {
		suffix := fmt.Sprintf(" %d", n)
		candidate = truncateRunes(sanitized, sheetNameLimit-len(suffix)) + suffix
	}
	used[candidate] = true
	return candidate
}

func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	out := ""
	for _, r := range runes {
		if len(out)+len(string(r)) > limit {
			break
		}
		out += string(r)
	}
	return out
}
