// Package period implements the calendar period algebra used by disclosure
// tables: parsing of period labels, containment, overlap and coverage checks
// over the three recognized reporting cadences (quarter, half-year, year).
package period

import (
	"fmt"
	"regexp"
	"sort"

	"intransparent/internal/errors"
)

// Coarseness identifies the granularity of a reporting period.
type Coarseness string

const (
	Quarter Coarseness = "quarter"
	Half    Coarseness = "half"
	Year    Coarseness = "year"
)

// Period is a calendar interval at one of the three recognized granularities.
// The zero value is not a valid period; construct via Parse or the typed
// constructors. Periods are comparable and usable as map keys; equality is
// exact-label equality.
type Period struct {
	year   int
	coarse Coarseness
	index  int // 1-based quarter or half index, 0 for year periods
}

// labelFormat accepts exactly the three surface forms: "YYYY", "YYYY H1",
// "YYYY Q3". Anything else is a format error.
var labelFormat = regexp.MustCompile(`^(\d{4})(?: (H[12]|Q[1-4]))?$`)

// Parse parses a period label. It fails with a FORMAT error for any string
// outside the three recognized surface forms.
func Parse(label string) (Period, error) {
	match := labelFormat.FindStringSubmatch(label)
	if match == nil {
		return Period{}, errors.NewFormatError("%q is not a valid period", label)
	}

	year := 0
	for _, c := range match[1] {
		year = year*10 + int(c-'0')
	}

	tag := match[2]
	switch {
	case tag == "":
		return NewYear(year), nil
	case tag[0] == 'H':
		return NewHalf(year, int(tag[1]-'0'))
	default:
		return NewQuarter(year, int(tag[1]-'0'))
	}
}

// MustParse parses a period label and panics on failure. For tests and
// literals only.
func MustParse(label string) Period {
	p, err := Parse(label)
	if err != nil {
		panic(err)
	}
	return p
}

// NewYear returns the year period for the given calendar year.
func NewYear(year int) Period {
	return Period{year: year, coarse: Year}
}

// NewHalf returns the half-year period for the given year and half (1 or 2).
func NewHalf(year, half int) (Period, error) {
	if half < 1 || half > 2 {
		return Period{}, errors.NewFormatError("half index %d out of range", half)
	}
	return Period{year: year, coarse: Half, index: half}, nil
}

// NewQuarter returns the quarter period for the given year and quarter (1-4).
func NewQuarter(year, quarter int) (Period, error) {
	if quarter < 1 || quarter > 4 {
		return Period{}, errors.NewFormatError("quarter index %d out of range", quarter)
	}
	return Period{year: year, coarse: Quarter, index: quarter}, nil
}

// Label renders the canonical label. Parse(p.Label()) round-trips.
func (p Period) Label() string {
	switch p.coarse {
	case Half:
		return fmt.Sprintf("%04d H%d", p.year, p.index)
	case Quarter:
		return fmt.Sprintf("%04d Q%d", p.year, p.index)
	default:
		return fmt.Sprintf("%04d", p.year)
	}
}

// String implements fmt.Stringer.
func (p Period) String() string { return p.Label() }

// Coarseness returns the period's granularity.
func (p Period) Coarseness() Coarseness { return p.coarse }

// YearOf returns the calendar year the period falls in.
func (p Period) YearOf() int { return p.year }

// StartMonth returns the 1-based first month of the period.
func (p Period) StartMonth() int {
	switch p.coarse {
	case Quarter:
		return (p.index-1)*3 + 1
	case Half:
		return (p.index-1)*6 + 1
	default:
		return 1
	}
}

// EndMonth returns the 1-based last month of the period.
func (p Period) EndMonth() int {
	switch p.coarse {
	case Quarter:
		return p.index * 3
	case Half:
		return p.index * 6
	default:
		return 12
	}
}

// Months returns the number of calendar months the period spans.
func (p Period) Months() int {
	return p.EndMonth() - p.StartMonth() + 1
}

// Contains reports whether p's interval contains q's. Containment is computed
// from calendar boundaries, not labels, so "2021" contains "2021 H1" contains
// "2021 Q1". A period contains itself.
func (p Period) Contains(q Period) bool {
	if p.year != q.year {
		return false
	}
	return p.StartMonth() <= q.StartMonth() && q.EndMonth() <= p.EndMonth()
}

// Overlaps reports whether the two periods share any calendar month.
func (p Period) Overlaps(q Period) bool {
	if p.year != q.year {
		return false
	}
	return p.StartMonth() <= q.EndMonth() && q.StartMonth() <= p.EndMonth()
}

// Before orders periods by start of interval, finer granularity last on ties.
// Used for deterministic row ordering.
func (p Period) Before(q Period) bool {
	if p.year != q.year {
		return p.year < q.year
	}
	if p.StartMonth() != q.StartMonth() {
		return p.StartMonth() < q.StartMonth()
	}
	if p.EndMonth() != q.EndMonth() {
		return p.EndMonth() > q.EndMonth()
	}
	return false
}

// Sort sorts periods in place into Before order.
func Sort(periods []Period) {
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })
}

// Covers verifies that parts completely and non-overlappingly cover target.
// This is the precondition for summing disclosures across periods: gaps would
// undercount, overlaps would double-count. Both are rejected.
func Covers(target Period, parts []Period) error {
	months := 0
	for i, p := range parts {
		if !target.Contains(p) {
			return errors.NewSchemaError("period %s lies outside %s", p, target)
		}
		for _, q := range parts[i+1:] {
			if p.Overlaps(q) {
				return errors.NewSchemaError("periods %s and %s overlap", p, q)
			}
		}
		months += p.Months()
	}
	if months != target.Months() {
		return errors.NewSchemaError(
			"periods cover %d of %d months in %s", months, target.Months(), target)
	}
	return nil
}
