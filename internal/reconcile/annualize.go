// Package reconcile aligns comparable metrics between an entity's normalized
// disclosures and the clearinghouse's, by calendar year. Comparison is an
// inner join: periods disclosed on only one side are dropped, never
// interpolated or estimated.
package reconcile

import (
	"intransparent/internal/disclosure"
	"intransparent/internal/errors"
	"intransparent/internal/period"
)

// Annualize downsamples a disclosure table to yearly periods by summing each
// numeric column's non-redundant rows per calendar year. String columns are
// dropped; they have no additive meaning. A year's cell is null when no row
// contributes a value for it.
//
// Redundancy flags are the only guard against double counting here: a table
// disclosing both quarters and their full year must flag one granularity
// redundant, which Build already enforces per cell claim.
func Annualize(t *disclosure.Table) (*disclosure.Table, error) {
	var columns []disclosure.Column
	var srcIdx []int
	for i, col := range t.Columns() {
		if col.Type == disclosure.TypeString {
			continue
		}
		columns = append(columns, col)
		srcIdx = append(srcIdx, i)
	}

	type yearAcc struct {
		sums    []float64
		present []bool
	}
	years := make(map[int]*yearAcc)

	for _, row := range t.Rows() {
		if row.Redundant {
			continue
		}
		year := row.Period.YearOf()
		acc, ok := years[year]
		if !ok {
			acc = &yearAcc{
				sums:    make([]float64, len(columns)),
				present: make([]bool, len(columns)),
			}
			years[year] = acc
		}
		for i, src := range srcIdx {
			v, ok := row.Cells[src].AsFloat()
			if !ok {
				continue
			}
			acc.sums[i] += v
			acc.present[i] = true
		}
	}

	yearPeriods := make([]period.Period, 0, len(years))
	for year := range years {
		yearPeriods = append(yearPeriods, period.NewYear(year))
	}
	period.Sort(yearPeriods)

	rows := make([]disclosure.Row, 0, len(yearPeriods))
	for _, p := range yearPeriods {
		acc := years[p.YearOf()]
		cells := make([]disclosure.CellValue, len(columns))
		for i := range columns {
			switch {
			case !acc.present[i]:
				cells[i] = disclosure.Null()
			case columns[i].Type == disclosure.TypeInt:
				cells[i] = disclosure.Int(int64(acc.sums[i]))
			default:
				cells[i] = disclosure.Float(acc.sums[i])
			}
		}
		rows = append(rows, disclosure.Row{Period: p, Cells: cells})
	}

	return disclosure.Build(columns, rows)
}

// CombineSeries folds brand tables into their parent corporation's table,
// cell-wise by (year, column). All tables must be annualized and share the
// same column schema. The parent may be nil for a corporation that discloses
// nothing itself. Null cells act as absent: null plus a value is the value,
// and a cell is null only when every contributing table is null there.
func CombineSeries(parent *disclosure.Table, brands ...*disclosure.Table) (*disclosure.Table, error) {
	var combined *disclosure.Table
	tables := brands
	if parent != nil {
		tables = append([]*disclosure.Table{parent}, brands...)
	}

	for _, t := range tables {
		if t == nil {
			continue
		}
		if combined == nil {
			combined = t
			continue
		}
		merged, err := addTables(combined, t)
		if err != nil {
			return nil, err
		}
		combined = merged
	}

	if combined == nil {
		return nil, errors.NewSchemaError("no tables to combine")
	}
	return combined, nil
}

// AnnualizedFamily annualizes a parent corporation's table and its brands'
// tables and folds them into one combined yearly table. The parent may be
// nil when the corporation discloses only through its brands.
func AnnualizedFamily(parent *disclosure.Table, brands ...*disclosure.Table) (*disclosure.Table, error) {
	annualized := make([]*disclosure.Table, 0, len(brands))
	for _, t := range brands {
		if t == nil {
			continue
		}
		annual, err := Annualize(t)
		if err != nil {
			return nil, err
		}
		annualized = append(annualized, annual)
	}

	var annualParent *disclosure.Table
	if parent != nil {
		var err error
		annualParent, err = Annualize(parent)
		if err != nil {
			return nil, err
		}
	}
	return CombineSeries(annualParent, annualized...)
}

func addTables(a, b *disclosure.Table) (*disclosure.Table, error) {
	colsA, colsB := a.Columns(), b.Columns()
	if len(colsA) != len(colsB) {
		return nil, errors.NewSchemaError(
			"cannot combine tables with %d and %d columns", len(colsA), len(colsB))
	}
	for i := range colsA {
		if colsA[i] != colsB[i] {
			return nil, errors.NewSchemaError(
				"cannot combine tables: column %q/%q mismatch", colsA[i].Name, colsB[i].Name)
		}
	}

	cells := make(map[period.Period][]disclosure.CellValue)
	var periods []period.Period
	for _, t := range []*disclosure.Table{a, b} {
		for _, row := range t.Rows() {
			existing, ok := cells[row.Period]
			if !ok {
				existing = make([]disclosure.CellValue, len(colsA))
				cells[row.Period] = existing
				periods = append(periods, row.Period)
			}
			for i, cell := range row.Cells {
				existing[i] = addCells(existing[i], cell, colsA[i].Type)
			}
		}
	}
	period.Sort(periods)

	rows := make([]disclosure.Row, 0, len(periods))
	for _, p := range periods {
		rows = append(rows, disclosure.Row{Period: p, Cells: cells[p]})
	}
	return disclosure.Build(colsA, rows)
}

func addCells(a, b disclosure.CellValue, typed disclosure.ColumnType) disclosure.CellValue {
	va, okA := a.AsFloat()
	vb, okB := b.AsFloat()
	switch {
	case !okA && !okB:
		return disclosure.Null()
	case !okA:
		va = 0
	case !okB:
		vb = 0
	}

	if typed == disclosure.TypeInt {
		return disclosure.Int(int64(va + vb))
	}
	return disclosure.Float(va + vb)
}
