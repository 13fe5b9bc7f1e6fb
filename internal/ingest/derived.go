package ingest

import (
	"sort"

	"intransparent/internal/disclosure"
	apperrors "intransparent/internal/errors"
)

// applyDerivedColumns synthesizes the declared sums and products columns.
// Every rule is validated against the declared column set before any rule is
// applied, so a derived column can never feed another rule. Null source cells
// are skipped; a derived cell is null only when every source cell is null. A
// derived column is integer when all its sources are integer columns, float
// otherwise.
//
// Rule targets are applied in sorted name order, sums before products, so the
// output column order is deterministic and re-ingestion is bit-identical.
func applyDerivedColumns(
	table *disclosure.Table,
	sums, products map[string][]string,
) (*disclosure.Table, error) {
	if len(sums) == 0 && len(products) == 0 {
		return table, nil
	}

	for _, rules := range []map[string][]string{sums, products} {
		for target, sources := range rules {
			if table.HasColumn(target) {
				return nil, apperrors.NewSchemaError(
					"derived column %q would recompute an existing column", target)
			}
			if len(sources) == 0 {
				return nil, apperrors.NewSchemaError(
					"derived column %q has no source columns", target)
			}
			for _, source := range sources {
				if !table.HasColumn(source) {
					return nil, apperrors.NewSchemaError(
						"derived column %q references undeclared column %q", target, source)
				}
			}
		}
	}

	columns := table.Columns()
	rows := table.Rows()

	apply := func(rules map[string][]string, combine func(acc, v float64) float64, isSum bool) {
		for _, target := range sortedTargets(rules) {
			sources := rules[target]

			sourceIdx := make([]int, len(sources))
			derivedType := disclosure.TypeInt
			for i, source := range sources {
				idx, _ := table.ColumnIndex(source)
				sourceIdx[i] = idx
				if columns[idx].Type != disclosure.TypeInt {
					derivedType = disclosure.TypeFloat
				}
			}

			for rowIdx := range rows {
				cell := deriveCell(rows[rowIdx].Cells, sourceIdx, derivedType, combine, isSum)
				rows[rowIdx].Cells = append(rows[rowIdx].Cells, cell)
			}
			columns = append(columns, disclosure.Column{Name: target, Type: derivedType})
		}
	}

	apply(sums, func(acc, v float64) float64 { return acc + v }, true)
	apply(products, func(acc, v float64) float64 { return acc * v }, false)

	return disclosure.Build(columns, rows)
}

// deriveCell combines one row's source cells into a derived cell.
func deriveCell(
	cells []disclosure.CellValue,
	sourceIdx []int,
	derivedType disclosure.ColumnType,
	combine func(acc, v float64) float64,
	isSum bool,
) disclosure.CellValue {
	acc := 1.0
	if isSum {
		acc = 0.0
	}

	present := false
	for _, idx := range sourceIdx {
		v, ok := cells[idx].AsFloat()
		if !ok {
			continue
		}
		present = true
		acc = combine(acc, v)
	}
	if !present {
		return disclosure.Null()
	}

	if derivedType == disclosure.TypeInt {
		return disclosure.Int(int64(acc))
	}
	return disclosure.Float(acc)
}

func sortedTargets(rules map[string][]string) []string {
	targets := make([]string, 0, len(rules))
	for target := range rules {
		targets = append(targets, target)
	}
	sort.Strings(targets)
	return targets
}
