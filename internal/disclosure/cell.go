package disclosure

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"intransparent/internal/errors"
)

// Kind tags a cell value's variant.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindString
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "null"
	}
}

// percentFormat matches the percent-of-N cell encoding, e.g.
// "12.5 / 100 * 4,000". The total allows thousands separators.
var percentFormat = regexp.MustCompile(`^(\d+\.\d+)\s*/\s*100\s*\*\s*(\d[\d,]*\d|\d)$`)

// Percentage preserves a disclosed ratio's original numerator and
// denominator alongside its decoded float value.
type Percentage struct {
	Percent float64
	Total   int64
	raw     string // source transcription, kept for audit
}

// ParsePercentage parses the percent-of-N grammar. The bool result reports
// whether the string matched the grammar at all.
func ParsePercentage(s string) (Percentage, bool, error) {
	match := percentFormat.FindStringSubmatch(s)
	if match == nil {
		return Percentage{}, false, nil
	}
	percent, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return Percentage{}, true, fmt.Errorf("parse percent literal: %w", err)
	}
	total, err := strconv.ParseInt(strings.ReplaceAll(match[2], ",", ""), 10, 64)
	if err != nil {
		return Percentage{}, true, fmt.Errorf("parse percent total: %w", err)
	}
	return Percentage{Percent: percent, Total: total, raw: s}, true, nil
}

// Value returns the decoded float value, percent/100 * total.
func (p Percentage) Value() float64 {
	return p.Percent / 100.0 * float64(p.Total)
}

// String renders the original source transcription when available, so exports
// preserve the disclosed ratio exactly.
func (p Percentage) String() string {
	if p.raw != "" {
		return p.raw
	}
	return fmt.Sprintf("%v / 100 * %d", p.Percent, p.Total)
}

// CellValue is the tagged variant over {null, int, float, string}. Float
// cells decoded from the percent encoding additionally carry the original
// Percentage for audit. The zero value is the null cell.
type CellValue struct {
	kind Kind
	i    int64
	f    float64
	s    string
	pct  *Percentage
}

// Null returns the absent cell.
func Null() CellValue { return CellValue{} }

// Int returns an integer cell.
func Int(v int64) CellValue { return CellValue{kind: KindInt, i: v} }

// Float returns a float cell.
func Float(v float64) CellValue { return CellValue{kind: KindFloat, f: v} }

// String returns a string cell holding a literal transcription.
func String(v string) CellValue { return CellValue{kind: KindString, s: v} }

// Percent returns a float cell decoded from a percent-of-N encoding.
func Percent(p Percentage) CellValue {
	return CellValue{kind: KindFloat, f: p.Value(), pct: &p}
}

// Kind returns the variant tag.
func (c CellValue) Kind() Kind { return c.kind }

// IsNull reports whether the cell is absent.
func (c CellValue) IsNull() bool { return c.kind == KindNull }

// AsInt returns the integer value; ok is false for any other variant.
func (c CellValue) AsInt() (int64, bool) {
	return c.i, c.kind == KindInt
}

// AsFloat returns the numeric value of an int or float cell; ok is false for
// null and string cells.
func (c CellValue) AsFloat() (float64, bool) {
	switch c.kind {
	case KindInt:
		return float64(c.i), true
	case KindFloat:
		return c.f, true
	default:
		return 0, false
	}
}

// AsString returns the string value; ok is false for any other variant.
func (c CellValue) AsString() (string, bool) {
	return c.s, c.kind == KindString
}

// Percentage returns the retained percent encoding of a float cell, or nil.
func (c CellValue) Percentage() *Percentage {
	if c.pct == nil {
		return nil
	}
	p := *c.pct
	return &p
}

// Equal reports value equality, including retained percent encodings.
func (c CellValue) Equal(o CellValue) bool {
	if c.kind != o.kind {
		return false
	}
	if (c.pct == nil) != (o.pct == nil) {
		return false
	}
	if c.pct != nil && *c.pct != *o.pct {
		return false
	}
	return c.i == o.i && c.f == o.f && c.s == o.s
}

// String implements fmt.Stringer for diagnostics.
func (c CellValue) String() string {
	switch c.kind {
	case KindInt:
		return strconv.FormatInt(c.i, 10)
	case KindFloat:
		if c.pct != nil {
			return c.pct.String()
		}
		return strconv.FormatFloat(c.f, 'f', -1, 64)
	case KindString:
		return strconv.Quote(c.s)
	default:
		return "null"
	}
}

// ParseCell validates a raw cell value against the declared column type and
// returns the typed cell. Raw values come either from the in-memory record
// form (Go ints, floats, strings) or from decoded JSON (int64, float64,
// string, nil).
//
// An integer column accepts only integers: no string coercion and no floats,
// preserving the source distinction between exact counts and derived
// fractions. A float column additionally accepts the percent-of-N string
// encoding. A string column accepts only strings.
func ParseCell(raw any, column string, typed ColumnType) (CellValue, error) {
	// All columns are implicitly nullable.
	if raw == nil {
		return Null(), nil
	}

	switch typed {
	case TypeString:
		s, ok := raw.(string)
		if !ok {
			return Null(), errors.NewTypeMismatchError(
				"column %q contains non-string %v", column, raw)
		}
		return String(s), nil

	case TypeInt:
		switch v := raw.(type) {
		case int:
			return Int(int64(v)), nil
		case int64:
			return Int(v), nil
		default:
			return Null(), errors.NewTypeMismatchError(
				"column %q contains non-integer %v", column, raw)
		}

	case TypeFloat:
		switch v := raw.(type) {
		case int:
			return Float(float64(v)), nil
		case int64:
			return Float(float64(v)), nil
		case float64:
			return Float(v), nil
		case string:
			pct, matched, err := ParsePercentage(v)
			if err != nil {
				return Null(), errors.NewTypeMismatchError(
					"column %q contains unparseable percentage %q", column, v)
			}
			if !matched {
				return Null(), errors.NewTypeMismatchError(
					"column %q contains invalid percentage expression %q", column, v)
			}
			return Percent(pct), nil
		default:
			return Null(), errors.NewTypeMismatchError(
				"column %q contains invalidly typed %v", column, raw)
		}

	default:
		return Null(), errors.NewSchemaError("column %q has unknown type %q", column, typed)
	}
}
