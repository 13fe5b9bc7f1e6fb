// Package country reads the country/population reference data that
// downstream consumers join against disclosure series. It is a consumed
// interface: a thin tabular reader keyed by ISO Alpha-3 codes, with no
// knowledge of the disclosure model.
package country

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Country is one reference row. Reports maps year labels to the
// clearinghouse's per-country report counts.
type Country struct {
	ISO3       string
	Name       string
	Region     string
	Population int64
	Reports    map[string]int64
}

var yearHeader = regexp.MustCompile(`^\d{4}$`)

// ReadReference reads a reference CSV keyed by ISO Alpha-3 code. Recognized
// header columns are iso3, country, region and population; any four-digit
// header is treated as a per-year report count. Rows without an ISO code are
// folded into USA, matching the clearinghouse's own handling of reports it
// cannot attribute to a country.
func ReadReference(r io.Reader) (map[string]Country, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read reference CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("reference CSV has no data rows")
	}

	header := records[0]
	colIdx := make(map[string]int, len(header))
	var yearCols []string
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		colIdx[name] = i
		if yearHeader.MatchString(name) {
			yearCols = append(yearCols, name)
		}
	}
	isoIdx, ok := colIdx["iso3"]
	if !ok {
		return nil, fmt.Errorf("reference CSV has no iso3 column")
	}

	countries := make(map[string]Country, len(records)-1)
	var unattributed map[string]int64

	for line, record := range records[1:] {
		iso := strings.ToUpper(strings.TrimSpace(record[isoIdx]))

		reports := make(map[string]int64, len(yearCols))
		for _, year := range yearCols {
			raw := strings.TrimSpace(record[colIdx[year]])
			if raw == "" {
				continue
			}
			v, err := parseCount(raw)
			if err != nil {
				return nil, fmt.Errorf("line %d, year %s: %w", line+2, year, err)
			}
			reports[year] = v
		}

		if iso == "" {
			unattributed = reports
			continue
		}
		if _, dup := countries[iso]; dup {
			return nil, fmt.Errorf("line %d: duplicate ISO code %q", line+2, iso)
		}

		c := Country{ISO3: iso, Reports: reports}
		if idx, ok := colIdx["country"]; ok {
			c.Name = strings.TrimSpace(record[idx])
		}
		if idx, ok := colIdx["region"]; ok {
			c.Region = strings.TrimSpace(record[idx])
		}
		if idx, ok := colIdx["population"]; ok {
			raw := strings.TrimSpace(record[idx])
			if raw != "" {
				c.Population, err = parseCount(raw)
				if err != nil {
					return nil, fmt.Errorf("line %d, population: %w", line+2, err)
				}
			}
		}
		countries[iso] = c
	}

	if unattributed != nil {
		usa, ok := countries["USA"]
		if !ok {
			return nil, fmt.Errorf("unattributed reports present but no USA row to fold them into")
		}
		for year, v := range unattributed {
			usa.Reports[year] += v
		}
		countries["USA"] = usa
	}

	return countries, nil
}

// ReadReferenceFile reads reference data from a file path.
func ReadReferenceFile(path string) (map[string]Country, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reference file: %w", err)
	}
	defer f.Close()
	return ReadReference(f)
}

// WriteCSV writes the reference back out in normalized form: one row per
// ISO code in sorted order, unattributed reports already folded into USA.
// The year columns are the sorted union of every country's report years.
func WriteCSV(w io.Writer, countries map[string]Country) error {
	isoCodes := make([]string, 0, len(countries))
	yearSet := make(map[string]bool)
	for iso, c := range countries {
		isoCodes = append(isoCodes, iso)
		for year := range c.Reports {
			yearSet[year] = true
		}
	}
	sort.Strings(isoCodes)
	years := make([]string, 0, len(yearSet))
	for year := range yearSet {
		years = append(years, year)
	}
	sort.Strings(years)

	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"iso3", "country", "region", "population"}, years...)); err != nil {
		return fmt.Errorf("write reference header: %w", err)
	}
	for _, iso := range isoCodes {
		c := countries[iso]
		record := []string{iso, c.Name, c.Region, strconv.FormatInt(c.Population, 10)}
		for _, year := range years {
			if v, ok := c.Reports[year]; ok {
				record = append(record, strconv.FormatInt(v, 10))
			} else {
				record = append(record, "")
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write reference row %s: %w", iso, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func parseCount(raw string) (int64, error) {
	v, err := strconv.ParseInt(strings.ReplaceAll(raw, ",", ""), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse count %q: %w", raw, err)
	}
	return v, nil
}
