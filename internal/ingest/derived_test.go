package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intransparent/internal/disclosure"
	apperrors "intransparent/internal/errors"
	"intransparent/internal/period"
)

func TestDerivedSums(t *testing.T) {
	rec := &disclosure.Record{
		Columns: []string{"csam", "ocse"},
		Sums:    map[string][]string{"reports": {"csam", "ocse"}},
		Rows: []disclosure.RawRow{
			{Period: "2021 H1", Cells: []any{30, 12}},
			{Period: "2021 H2", Cells: []any{40, nil}},
			{Period: "2022 H1", Cells: []any{nil, nil}},
		},
	}

	series, err := testEngine().Ingest("LinkedIn", rec)
	require.NoError(t, err)
	require.True(t, series.Table.HasColumn("reports"))

	lookup := func(label string) disclosure.CellValue {
		cell, err := series.Table.Lookup(period.MustParse(label), "reports")
		require.NoError(t, err)
		return cell
	}

	v, ok := lookup("2021 H1").AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(42), v)

	// A null source cell is skipped, not treated as zero-or-poison.
	v, ok = lookup("2021 H2").AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(40), v)

	// All-null sources derive a null cell.
	assert.True(t, lookup("2022 H1").IsNull())
}

func TestDerivedProducts(t *testing.T) {
	rec := &disclosure.Record{
		Columns: []string{"rate", "population"},
		Schema:  map[string]string{"rate": "float"},
		Products: map[string][]string{
			"reports": {"rate", "population"},
		},
		Rows: []disclosure.RawRow{
			{Period: "2022", Cells: []any{0.5, 1000}},
		},
	}

	series, err := testEngine().Ingest("Quora", rec)
	require.NoError(t, err)

	cell, err := series.Table.Lookup(period.MustParse("2022"), "reports")
	require.NoError(t, err)

	// A float source makes the derived column float.
	v, ok := cell.AsFloat()
	require.True(t, ok)
	assert.Equal(t, 500.0, v)
	_, isInt := cell.AsInt()
	assert.False(t, isInt)
}

func TestDerivedColumnOrderIsDeterministic(t *testing.T) {
	rec := &disclosure.Record{
		Columns: []string{"a", "b"},
		Sums: map[string][]string{
			"z_total": {"a", "b"},
			"m_total": {"a"},
		},
		Products: map[string][]string{
			"p_total": {"b"},
		},
		Rows: []disclosure.RawRow{{Period: "2021", Cells: []any{1, 2}}},
	}

	series, err := testEngine().Ingest("Google", rec)
	require.NoError(t, err)

	var names []string
	for _, col := range series.Table.Columns() {
		names = append(names, col.Name)
	}
	// Sums first in sorted target order, then products.
	assert.Equal(t, []string{"a", "b", "m_total", "z_total", "p_total"}, names)
}

func TestDerivedRuleValidation(t *testing.T) {
	tests := []struct {
		name string
		rec  *disclosure.Record
	}{
		{
			name: "recomputing an existing column",
			rec: &disclosure.Record{
				Columns: []string{"reports"},
				Sums:    map[string][]string{"reports": {"reports"}},
				Rows:    []disclosure.RawRow{{Period: "2021", Cells: []any{1}}},
			},
		},
		{
			name: "empty source list",
			rec: &disclosure.Record{
				Columns: []string{"reports"},
				Sums:    map[string][]string{"total": {}},
				Rows:    []disclosure.RawRow{{Period: "2021", Cells: []any{1}}},
			},
		},
		{
			name: "undeclared source column",
			rec: &disclosure.Record{
				Columns:  []string{"reports"},
				Products: map[string][]string{"total": {"reports", "ghost"}},
				Rows:     []disclosure.RawRow{{Period: "2021", Cells: []any{1}}},
			},
		},
		{
			name: "products source may not be a sums target",
			rec: &disclosure.Record{
				Columns:  []string{"a", "b"},
				Sums:     map[string][]string{"total": {"a", "b"}},
				Products: map[string][]string{"grand": {"total", "a"}},
				Rows:     []disclosure.RawRow{{Period: "2021", Cells: []any{1, 2}}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testEngine().Ingest("Twitter", tt.rec)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSchema))
		})
	}
}
