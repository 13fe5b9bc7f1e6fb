package disclosure

import (
	"intransparent/internal/errors"
	"intransparent/internal/period"
)

// Row is a period's disclosed cells. A redundant row duplicates another row's
// claim for the same (period, column) and is retained for audit only.
type Row struct {
	Period    period.Period
	Cells     []CellValue
	Redundant bool
}

// Table is a validated disclosure table: an ordered column schema and an
// ordered sequence of rows. Tables are immutable after Build; accessors
// return copies. A Table that exists is well-formed: Build validates all
// invariants eagerly and a malformed table is never constructed.
type Table struct {
	columns  []Column
	rows     []Row
	colIndex map[string]int
}

// Build validates columns and rows and constructs the table. It fails with a
// SCHEMA or TYPE_MISMATCH error describing the first violated invariant:
// duplicate column names, row arity mismatch, a cell violating its column
// type, or a missing redundancy flag on a colliding row.
func Build(columns []Column, rows []Row) (*Table, error) {
	colIndex := make(map[string]int, len(columns))
	for i, col := range columns {
		if _, dup := colIndex[col.Name]; dup {
			return nil, errors.NewSchemaError("duplicate column %q", col.Name)
		}
		switch col.Type {
		case TypeInt, TypeFloat, TypeString:
		default:
			return nil, errors.NewSchemaError(
				"column %q has invalid type %q", col.Name, col.Type)
		}
		colIndex[col.Name] = i
	}

	for rowIdx, row := range rows {
		if len(row.Cells) != len(columns) {
			return nil, errors.NewSchemaError(
				"row %s has %d cells instead of %d",
				row.Period, len(row.Cells), len(columns)).WithLocator(rowIdx, "")
		}
		for colIdx, cell := range row.Cells {
			if err := checkCellType(cell, columns[colIdx]); err != nil {
				return nil, err.WithLocator(rowIdx, columns[colIdx].Name)
			}
		}
	}

	if err := checkCollisions(columns, rows); err != nil {
		return nil, err
	}

	t := &Table{
		columns:  append([]Column(nil), columns...),
		rows:     make([]Row, len(rows)),
		colIndex: colIndex,
	}
	for i, row := range rows {
		t.rows[i] = Row{
			Period:    row.Period,
			Cells:     append([]CellValue(nil), row.Cells...),
			Redundant: row.Redundant,
		}
	}
	return t, nil
}

// checkCellType verifies a constructed cell against the declared column type.
// A float column accepts integer-valued cells as well.
func checkCellType(cell CellValue, col Column) *errors.DisclosureError {
	switch cell.Kind() {
	case KindNull:
		return nil
	case KindInt:
		if col.Type == TypeInt || col.Type == TypeFloat {
			return nil
		}
	case KindFloat:
		if col.Type == TypeFloat {
			return nil
		}
	case KindString:
		if col.Type == TypeString {
			return nil
		}
	}
	return errors.NewTypeMismatchError(
		"column %q of type %q contains %s cell", col.Name, col.Type, cell.Kind())
}

// EntityColumn names the string column that switches a table into its
// entity-keyed orientation: the clearinghouse reports several rows per
// period, one per platform, and row identity is then (period, platform).
const EntityColumn = "platform"

// entityKeyIndex returns the index of the entity column, or -1 for tables in
// the plain period-keyed orientation.
func entityKeyIndex(columns []Column) int {
	for i, col := range columns {
		if col.Name == EntityColumn && col.Type == TypeString {
			return i
		}
	}
	return -1
}

// checkCollisions enforces the single non-redundant claim invariant: when two
// or more rows provide non-null values for the same (period, column), or
// (period, entity, column) in the entity-keyed orientation, all but one must
// carry the redundant flag.
func checkCollisions(columns []Column, rows []Row) error {
	type claim struct {
		period period.Period
		entity string
		column int
	}
	keyIdx := entityKeyIndex(columns)
	claimed := make(map[claim]bool, len(rows))

	for _, row := range rows {
		if row.Redundant {
			continue
		}
		entity := ""
		if keyIdx >= 0 {
			entity, _ = row.Cells[keyIdx].AsString()
		}
		for colIdx, cell := range row.Cells {
			if cell.IsNull() || colIdx == keyIdx {
				continue
			}
			key := claim{period: row.Period, entity: entity, column: colIdx}
			if claimed[key] {
				return errors.NewSchemaError(
					"rows for %s both claim column %q without a redundancy flag",
					row.Period, columns[colIdx].Name)
			}
			claimed[key] = true
		}
	}
	return nil
}

// Columns returns a copy of the column schema.
func (t *Table) Columns() []Column {
	return append([]Column(nil), t.columns...)
}

// Rows returns a copy of the rows in construction order.
func (t *Table) Rows() []Row {
	rows := make([]Row, len(t.rows))
	for i, row := range t.rows {
		rows[i] = Row{
			Period:    row.Period,
			Cells:     append([]CellValue(nil), row.Cells...),
			Redundant: row.Redundant,
		}
	}
	return rows
}

// ColumnIndex returns the position of the named column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	idx, ok := t.colIndex[name]
	return idx, ok
}

// HasColumn reports whether the named column is declared.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.colIndex[name]
	return ok
}

// Periods returns the distinct periods of non-redundant rows, sorted.
func (t *Table) Periods() []period.Period {
	seen := make(map[period.Period]bool, len(t.rows))
	var periods []period.Period
	for _, row := range t.rows {
		if row.Redundant || seen[row.Period] {
			continue
		}
		seen[row.Period] = true
		periods = append(periods, row.Period)
	}
	period.Sort(periods)
	return periods
}

// Lookup returns the canonical (non-redundant) value for the given period and
// column, or the null cell when no row discloses one. More than one
// non-redundant claim yields an AMBIGUITY error; Build rejects such tables,
// so its occurrence indicates a defect in the validator. Lookup serves the
// period-keyed orientation; entity-keyed tables are accessed through views
// that include the entity in the key.
func (t *Table) Lookup(p period.Period, column string) (CellValue, error) {
	colIdx, ok := t.colIndex[column]
	if !ok {
		return Null(), errors.NewSchemaError("no column %q", column)
	}

	found := false
	var value CellValue
	for _, row := range t.rows {
		if row.Redundant || row.Period != p || row.Cells[colIdx].IsNull() {
			continue
		}
		if found {
			return Null(), errors.NewAmbiguityError(
				"two non-redundant rows claim (%s, %q)", p, column)
		}
		found = true
		value = row.Cells[colIdx]
	}
	return value, nil
}

// Aggregate sums integer cells for each named column across the non-redundant
// rows contained in target, verifying first that those rows' periods
// completely and non-overlappingly cover target. Summing across overlapping
// periods double-counts, and gaps undercount; both are rejected with a SCHEMA
// error. Aggregation of non-integer columns is rejected rather than guessed.
func (t *Table) Aggregate(columns []string, target period.Period) (map[string]int64, error) {
	totals := make(map[string]int64, len(columns))

	for _, name := range columns {
		colIdx, ok := t.colIndex[name]
		if !ok {
			return nil, errors.NewSchemaError("no column %q", name)
		}
		if t.columns[colIdx].Type != TypeInt {
			return nil, errors.NewSchemaError(
				"aggregation of %q column %q is undefined; only integer columns are additive",
				t.columns[colIdx].Type, name)
		}

		var covering []period.Period
		var sum int64
		for _, row := range t.rows {
			if row.Redundant || !target.Contains(row.Period) {
				continue
			}
			v, ok := row.Cells[colIdx].AsInt()
			if !ok {
				continue
			}
			covering = append(covering, row.Period)
			sum += v
		}

		if err := period.Covers(target, covering); err != nil {
			return nil, err
		}
		totals[name] = sum
	}
	return totals, nil
}
