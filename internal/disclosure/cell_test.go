package disclosure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intransparent/internal/errors"
)

func TestParsePercentage(t *testing.T) {
	t.Run("decodes with thousands separators", func(t *testing.T) {
		pct, matched, err := ParsePercentage("12.5 / 100 * 4,000")
		require.NoError(t, err)
		require.True(t, matched)
		assert.Equal(t, 12.5, pct.Percent)
		assert.Equal(t, int64(4000), pct.Total)
		assert.Equal(t, 500.0, pct.Value())
	})

	t.Run("retains the original transcription", func(t *testing.T) {
		pct, matched, err := ParsePercentage("0.1 / 100 * 1,234,567")
		require.NoError(t, err)
		require.True(t, matched)
		assert.Equal(t, "0.1 / 100 * 1,234,567", pct.String())
	})

	t.Run("rejects non-matching strings", func(t *testing.T) {
		for _, s := range []string{"", "12.5", "12.5 / 100", "12 / 100 * 50", "x / 100 * 50"} {
			_, matched, err := ParsePercentage(s)
			require.NoError(t, err)
			assert.False(t, matched, s)
		}
	})
}

func TestParseCell(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		typed   ColumnType
		want    CellValue
		wantErr bool
	}{
		{name: "null in any column", raw: nil, typed: TypeInt, want: Null()},
		{name: "int in int column", raw: 42, typed: TypeInt, want: Int(42)},
		{name: "int64 in int column", raw: int64(42), typed: TypeInt, want: Int(42)},
		{name: "float in int column", raw: 42.0, typed: TypeInt, wantErr: true},
		{name: "string in int column", raw: "42", typed: TypeInt, wantErr: true},
		{name: "float-looking string in int column", raw: "42.5", typed: TypeInt, wantErr: true},
		{name: "int in float column", raw: 7, typed: TypeFloat, want: Float(7)},
		{name: "float in float column", raw: 1.5, typed: TypeFloat, want: Float(1.5)},
		{name: "numeric string in float column", raw: "1.5", typed: TypeFloat, wantErr: true},
		{name: "garbage string in float column", raw: "about half", typed: TypeFloat, wantErr: true},
		{name: "string in string column", raw: "under 100", typed: TypeString, want: String("under 100")},
		{name: "int in string column", raw: 3, typed: TypeString, wantErr: true},
		{name: "bool anywhere", raw: true, typed: TypeFloat, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cell, err := ParseCell(tt.raw, "reports", tt.typed)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrTypeTypeMismatch))
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(cell), "got %s", cell)
		})
	}
}

func TestParseCellPercentEncoding(t *testing.T) {
	cell, err := ParseCell("12.5 / 100 * 4,000", "fraction", TypeFloat)
	require.NoError(t, err)

	assert.Equal(t, KindFloat, cell.Kind())
	v, ok := cell.AsFloat()
	require.True(t, ok)
	assert.Equal(t, 500.0, v)

	pct := cell.Percentage()
	require.NotNil(t, pct)
	assert.Equal(t, 12.5, pct.Percent)
	assert.Equal(t, int64(4000), pct.Total)
}

func TestCellAccessors(t *testing.T) {
	assert.True(t, Null().IsNull())

	i, ok := Int(9).AsInt()
	assert.True(t, ok)
	assert.Equal(t, int64(9), i)

	_, ok = Float(9).AsInt()
	assert.False(t, ok)

	f, ok := Int(9).AsFloat()
	assert.True(t, ok)
	assert.Equal(t, 9.0, f)

	_, ok = String("x").AsFloat()
	assert.False(t, ok)

	s, ok := String("x").AsString()
	assert.True(t, ok)
	assert.Equal(t, "x", s)
}

func TestCellEqual(t *testing.T) {
	pct, _, err := ParsePercentage("10.0 / 100 * 50")
	require.NoError(t, err)

	assert.True(t, Int(1).Equal(Int(1)))
	assert.False(t, Int(1).Equal(Float(1)))
	assert.False(t, Float(5).Equal(Percent(pct)))
	assert.True(t, Percent(pct).Equal(Percent(pct)))
	assert.True(t, Null().Equal(Null()))
}
