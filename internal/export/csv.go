package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"intransparent/internal/disclosure"
	"intransparent/internal/ingest"
)

// WriteSeriesCSV renders a normalized series as CSV: a period column, one
// column per table column, and a trailing redundant flag. Percent-encoded
// cells render their decoded value; the original encoding lives in the JSON
// export.
func WriteSeriesCSV(w io.Writer, series *ingest.Series) error {
	if series.Table == nil {
		return fmt.Errorf("series %q has no table", series.Entity)
	}

	writer := csv.NewWriter(w)
	defer writer.Flush()

	columns := series.Table.Columns()
	header := make([]string, 0, len(columns)+2)
	header = append(header, "period")
	for _, col := range columns {
		header = append(header, col.Name)
	}
	header = append(header, "redundant")
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, row := range series.Table.Rows() {
		record := make([]string, 0, len(header))
		record = append(record, row.Period.Label())
		for _, cell := range row.Cells {
			record = append(record, formatCell(cell))
		}
		record = append(record, strconv.FormatBool(row.Redundant))
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write row %s: %w", row.Period, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// formatCell renders a cell for tabular output. Floats keep up to six
// decimals with trailing zeros trimmed.
func formatCell(cell disclosure.CellValue) string {
	switch cell.Kind() {
	case disclosure.KindNull:
		return ""
	case disclosure.KindInt:
		v, _ := cell.AsInt()
		return strconv.FormatInt(v, 10)
	case disclosure.KindFloat:
		v, _ := cell.AsFloat()
		return formatFloat(v)
	default:
		s, _ := cell.AsString()
		return s
	}
}

func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', 6, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	return s
}
