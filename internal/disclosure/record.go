package disclosure

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// MetadataKey is the distinguished collection key holding the citation record.
const MetadataKey = "@"

// Metadata is the collection's citation record.
type Metadata struct {
	Author  string `json:"author" validate:"required"`
	Title   string `json:"title" validate:"required"`
	Version string `json:"version" validate:"required"`
	Date    string `json:"date" validate:"required"`
	URL     string `json:"url" validate:"required,url"`
}

// Features describes an entity's reporting cadence and format. All fields
// are qualitative metadata; HasReports is derived during ingestion.
type Features struct {
	Data        *string  `json:"data" validate:"omitempty,oneof=csv"`
	History     *string  `json:"history"`
	Terms       []string `json:"terms"`
	Quantities  string   `json:"quantities" validate:"required,oneof=counts fractions rounded"`
	Granularity string   `json:"granularity"`
	Frequency   string   `json:"frequency"`
	Coverage    *string  `json:"coverage"`
}

// historyKinds are the recognized ways an entity publishes past disclosures.
var historyKinds = map[string]bool{
	"data":                 true,
	"same page (dropdown)": true,
	"same page (tabs)":     true,
	"page archive":         true,
}

// KnownHistory reports whether h names a recognized history kind.
func KnownHistory(h string) bool { return historyKinds[h] }

// RawRow is a disclosure row in its source form: a period label paired with
// raw cell values and an optional redundancy flag. In JSON it is a single-key
// object whose key is the period label, with an optional sibling
// "redundant": true.
type RawRow struct {
	Period    string
	Cells     []any
	Redundant bool
}

// UnmarshalJSON decodes the single-key object form. Numbers decode to int64
// when integral so the int/float source distinction survives the round trip.
func (r *RawRow) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	if raw, ok := obj["redundant"]; ok {
		if err := json.Unmarshal(raw, &r.Redundant); err != nil {
			return fmt.Errorf("row redundant flag: %w", err)
		}
		delete(obj, "redundant")
	}

	if len(obj) != 1 {
		return fmt.Errorf("row object has %d entries instead of one period key", len(obj))
	}

	for label, raw := range obj {
		r.Period = label

		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var cells []any
		if err := dec.Decode(&cells); err != nil {
			return fmt.Errorf("row %q cells: %w", label, err)
		}
		r.Cells = make([]any, len(cells))
		for i, cell := range cells {
			num, ok := cell.(json.Number)
			if !ok {
				r.Cells[i] = cell
				continue
			}
			if v, err := num.Int64(); err == nil {
				r.Cells[i] = v
				continue
			}
			v, err := num.Float64()
			if err != nil {
				return fmt.Errorf("row %q cell %d: %w", label, i, err)
			}
			r.Cells[i] = v
		}
	}
	return nil
}

// MarshalJSON encodes the single-key object form.
func (r RawRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	key, err := json.Marshal(r.Period)
	if err != nil {
		return nil, err
	}
	cells, err := json.Marshal(r.Cells)
	if err != nil {
		return nil, err
	}
	buf.WriteByte('{')
	buf.Write(key)
	buf.WriteString(": ")
	buf.Write(cells)
	if r.Redundant {
		buf.WriteString(`, "redundant": true`)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Record is an entity's full raw disclosure profile. Sums and Products map a
// derived output column to the input columns combined to produce it.
type Record struct {
	AKA      []string            `json:"aka,omitempty"`
	Brands   []string            `json:"brands,omitempty"`
	Sources  []string            `json:"sources,omitempty"`
	Comments []string            `json:"comments,omitempty"`
	Features *Features           `json:"features,omitempty"`
	Columns  []string            `json:"columns,omitempty"`
	Schema   map[string]string   `json:"schema,omitempty"`
	Sums     map[string][]string `json:"sums,omitempty"`
	Products map[string][]string `json:"products,omitempty"`
	Rows     []RawRow            `json:"rows,omitempty"`
}

// HasTable reports whether the record carries quantitative table data.
func (r *Record) HasTable() bool {
	return r != nil && len(r.Columns) > 0 && len(r.Rows) > 0
}

// HasReports reports whether the record discloses a "reports" metric, either
// directly or as a derived column.
func (r *Record) HasReports() bool {
	if r == nil {
		return false
	}
	for _, col := range r.Columns {
		if col == "reports" {
			return true
		}
	}
	_, inSums := r.Sums["reports"]
	_, inProducts := r.Products["reports"]
	return inSums || inProducts
}

// Collection maps entity names to disclosure records. A nil record is the
// explicit "no data" marker. The collection exclusively owns its records;
// corporation/brand relationships are name references resolved by lookup,
// never embedded. Collections are built once per ingestion run and treated
// as immutable afterwards.
type Collection struct {
	Metadata Metadata
	Records  map[string]*Record
}

// EntityNames returns the entity names in sorted order for deterministic
// iteration.
func (c *Collection) EntityNames() []string {
	names := make([]string, 0, len(c.Records))
	for name := range c.Records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Record returns the named entity's record. The second result distinguishes
// an unknown entity from an explicit no-data marker.
func (c *Collection) Record(name string) (*Record, bool) {
	rec, ok := c.Records[name]
	return rec, ok
}
