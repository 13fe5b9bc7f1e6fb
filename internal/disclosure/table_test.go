package disclosure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intransparent/internal/errors"
	"intransparent/internal/period"
)

func intColumns(names ...string) []Column {
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n, Type: TypeInt}
	}
	return cols
}

func row(label string, redundant bool, cells ...CellValue) Row {
	return Row{Period: period.MustParse(label), Cells: cells, Redundant: redundant}
}

func TestBuildValidTable(t *testing.T) {
	table, err := Build(
		intColumns("reports", "accounts"),
		[]Row{
			row("2021 Q1", false, Int(10), Int(3)),
			row("2021 Q2", false, Int(12), Null()),
			row("2021 H1", true, Int(22), Int(3)),
		},
	)
	require.NoError(t, err)
	assert.Len(t, table.Rows(), 3)
	assert.True(t, table.HasColumn("reports"))
	assert.False(t, table.HasColumn("period"))
}

func TestBuildRejectsDuplicateColumns(t *testing.T) {
	_, err := Build(intColumns("reports", "reports"), nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeSchema))
}

func TestBuildRejectsArityMismatch(t *testing.T) {
	_, err := Build(
		intColumns("reports", "accounts"),
		[]Row{row("2021", false, Int(1))},
	)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeSchema))
}

func TestBuildRejectsCellTypeViolations(t *testing.T) {
	tests := []struct {
		name string
		col  Column
		cell CellValue
	}{
		{name: "float cell in int column", col: Column{Name: "reports", Type: TypeInt}, cell: Float(1.5)},
		{name: "string cell in int column", col: Column{Name: "reports", Type: TypeInt}, cell: String("ten")},
		{name: "string cell in float column", col: Column{Name: "rate", Type: TypeFloat}, cell: String("half")},
		{name: "int cell in string column", col: Column{Name: "note", Type: TypeString}, cell: Int(4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build([]Column{tt.col}, []Row{row("2021", false, tt.cell)})
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrTypeTypeMismatch))
		})
	}
}

func TestBuildAcceptsIntCellInFloatColumn(t *testing.T) {
	_, err := Build(
		[]Column{{Name: "rate", Type: TypeFloat}},
		[]Row{row("2021", false, Int(3))},
	)
	assert.NoError(t, err)
}

func TestBuildEnforcesRedundancyFlag(t *testing.T) {
	// Two rows claiming (2021 Q1, reports) with neither flagged redundant.
	_, err := Build(
		intColumns("reports"),
		[]Row{
			row("2021 Q1", false, Int(10)),
			row("2021 Q1", false, Int(11)),
		},
	)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeSchema))

	// Flagging one of them makes the collision legal; the diverging value is
	// preserved for audit.
	table, err := Build(
		intColumns("reports"),
		[]Row{
			row("2021 Q1", false, Int(10)),
			row("2021 Q1", true, Int(11)),
		},
	)
	require.NoError(t, err)
	assert.Len(t, table.Rows(), 2)
}

func TestBuildAllowsCollisionOnDisjointColumns(t *testing.T) {
	// Same period twice, but the non-null cells do not collide.
	_, err := Build(
		intColumns("reports", "accounts"),
		[]Row{
			row("2021", false, Int(10), Null()),
			row("2021", false, Null(), Int(5)),
		},
	)
	assert.NoError(t, err)
}

func TestBuildEntityKeyedOrientation(t *testing.T) {
	columns := []Column{
		{Name: "platform", Type: TypeString},
		{Name: "reports", Type: TypeInt},
	}

	// Several rows per period are legal when distinguished by the platform
	// column.
	_, err := Build(columns, []Row{
		row("2021", false, String("Meta"), Int(1000)),
		row("2021", false, String("Snap"), Int(120)),
	})
	require.NoError(t, err)

	// The same platform claiming the same period twice still collides.
	_, err = Build(columns, []Row{
		row("2021", false, String("Snap"), Int(120)),
		row("2021", false, String("Snap"), Int(130)),
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeSchema))
}

func TestLookup(t *testing.T) {
	table, err := Build(
		intColumns("reports"),
		[]Row{
			row("2021 Q1", false, Int(10)),
			row("2021 Q1", true, Int(12)),
			row("2021 Q2", false, Null()),
		},
	)
	require.NoError(t, err)

	v, err := table.Lookup(period.MustParse("2021 Q1"), "reports")
	require.NoError(t, err)
	got, ok := v.AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(10), got)

	// No disclosure for the period at all.
	v, err = table.Lookup(period.MustParse("2022"), "reports")
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	// Null cell is not a disclosure.
	v, err = table.Lookup(period.MustParse("2021 Q2"), "reports")
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	_, err = table.Lookup(period.MustParse("2021"), "unknown")
	require.Error(t, err)
}

func TestAggregateQuarterlyIntoYear(t *testing.T) {
	table, err := Build(
		intColumns("reports"),
		[]Row{
			row("2021 Q1", false, Int(10)),
			row("2021 Q2", false, Int(10)),
			row("2021 Q3", false, Int(10)),
			row("2021 Q4", false, Int(10)),
		},
	)
	require.NoError(t, err)

	totals, err := table.Aggregate([]string{"reports"}, period.MustParse("2021"))
	require.NoError(t, err)
	assert.Equal(t, int64(40), totals["reports"])
}

func TestAggregateRejectsDoubleCoverage(t *testing.T) {
	table, err := Build(
		intColumns("reports"),
		[]Row{
			row("2021 Q1", false, Int(10)),
			row("2021 Q2", false, Int(10)),
			row("2021 Q3", false, Int(10)),
			row("2021 Q4", false, Int(10)),
			row("2021 H1", true, Int(20)),
		},
	)
	require.NoError(t, err)

	// The H1 row is redundant, so coverage stays exact.
	totals, err := table.Aggregate([]string{"reports"}, period.MustParse("2021"))
	require.NoError(t, err)
	assert.Equal(t, int64(40), totals["reports"])

	// A non-redundant overlapping row is double coverage and must be rejected
	// rather than silently summed. Overlapping granularities are legal in the
	// table itself, so Build accepts it.
	table, err = Build(
		intColumns("reports"),
		[]Row{
			row("2021 Q1", false, Int(10)),
			row("2021 Q2", false, Int(10)),
			row("2021 Q3", false, Int(10)),
			row("2021 Q4", false, Int(10)),
			row("2021 H1", false, Int(20)),
		},
	)
	require.NoError(t, err)

	_, err = table.Aggregate([]string{"reports"}, period.MustParse("2021"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeSchema))
}

func TestAggregateRejectsGaps(t *testing.T) {
	table, err := Build(
		intColumns("reports"),
		[]Row{
			row("2021 Q1", false, Int(10)),
			row("2021 Q2", false, Int(10)),
		},
	)
	require.NoError(t, err)

	_, err = table.Aggregate([]string{"reports"}, period.MustParse("2021"))
	require.Error(t, err)
}

func TestAggregateRejectsNonIntegerColumns(t *testing.T) {
	table, err := Build(
		[]Column{{Name: "rate", Type: TypeFloat}},
		[]Row{row("2021 H1", false, Float(0.5)), row("2021 H2", false, Float(0.6))},
	)
	require.NoError(t, err)

	_, err = table.Aggregate([]string{"rate"}, period.MustParse("2021"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeSchema))
}

func TestTableAccessorsCopy(t *testing.T) {
	table, err := Build(
		intColumns("reports"),
		[]Row{row("2021", false, Int(1))},
	)
	require.NoError(t, err)

	rows := table.Rows()
	rows[0].Cells[0] = Int(999)
	cols := table.Columns()
	cols[0].Name = "mutated"

	fresh := table.Rows()
	v, _ := fresh[0].Cells[0].AsInt()
	assert.Equal(t, int64(1), v)
	assert.Equal(t, "reports", table.Columns()[0].Name)
}
