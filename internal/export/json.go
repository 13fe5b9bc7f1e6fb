// Package export serializes disclosure collections and normalized series for
// external collaborators: the structured-text (JSON) form of the collection,
// and CSV/Excel renderings of normalized tables. Export and Parse are
// mutually inverse over the validated subset of the model, so exporting a
// collection and re-ingesting the export reproduces the same normalized
// series.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"intransparent/internal/disclosure"
)

// Parse reads the structured-text form of a disclosure collection: a
// top-level object mapping entity names to records or null, with the
// citation record under the "@" key.
func Parse(r io.Reader) (*disclosure.Collection, error) {
	var top map[string]json.RawMessage
	dec := json.NewDecoder(r)
	if err := dec.Decode(&top); err != nil {
		return nil, fmt.Errorf("decode collection: %w", err)
	}

	metaRaw, ok := top[disclosure.MetadataKey]
	if !ok {
		return nil, fmt.Errorf("collection has no %q metadata record", disclosure.MetadataKey)
	}
	col := &disclosure.Collection{
		Records: make(map[string]*disclosure.Record, len(top)-1),
	}
	// The citation record frames itself with "!" and "|" rule entries;
	// decoding ignores them along with any other unknown key.
	if err := json.Unmarshal(metaRaw, &col.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}

	for name, raw := range top {
		if name == disclosure.MetadataKey {
			continue
		}
		if string(raw) == "null" {
			col.Records[name] = nil
			continue
		}
		var rec disclosure.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode record %q: %w", name, err)
		}
		col.Records[name] = &rec
	}
	return col, nil
}

// Export writes the collection in its structured-text form. The output is
// valid JSON, deterministically ordered: the citation record first, then
// entities sorted by name, record properties in their canonical order.
func Export(w io.Writer, col *disclosure.Collection) error {
	e := &encoder{w: w}

	e.line("{")
	e.exportMetadata(col.Metadata)

	for _, name := range col.EntityNames() {
		e.raw(",\n")
		rec, _ := col.Record(name)
		if rec == nil {
			e.printf("    %s: null", jsonString(name))
			continue
		}
		e.exportRecord(name, rec)
	}
	e.raw("\n}\n")
	return e.err
}

type encoder struct {
	w   io.Writer
	err error
}

func (e *encoder) raw(s string) {
	if e.err == nil {
		_, e.err = io.WriteString(e.w, s)
	}
}

func (e *encoder) line(s string)                  { e.raw(s + "\n") }
func (e *encoder) printf(format string, a ...any) { e.raw(fmt.Sprintf(format, a...)) }

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// exportMetadata renders the citation record framed by "!" and "|" rules,
// which sort before and after the field names so the frame survives any
// re-serialization that orders keys.
func (e *encoder) exportMetadata(meta disclosure.Metadata) {
	fields := [][2]string{
		{"author", meta.Author},
		{"title", meta.Title},
		{"version", meta.Version},
		{"date", meta.Date},
		{"url", meta.URL},
	}

	keyWidth, valueWidth := 0, 0
	for _, f := range fields {
		if len(f[0]) > keyWidth {
			keyWidth = len(f[0])
		}
		if len(f[1]) > valueWidth {
			valueWidth = len(f[1])
		}
	}
	rule := strings.Repeat("━", keyWidth+valueWidth+10)

	e.printf("    %s: {\n", jsonString(disclosure.MetadataKey))
	e.printf("        \"!\": %s,\n", jsonString(rule))
	for _, f := range fields {
		key := jsonString(f[0])
		e.printf("           %*s: %s,\n", keyWidth+2, key, jsonString(f[1]))
	}
	e.printf("        \"|\": %s\n", jsonString(rule))
	e.raw("    }")
}

func (e *encoder) exportRecord(name string, rec *disclosure.Record) {
	e.printf("    %s: {", jsonString(name))

	first := true
	property := func(render func()) {
		if !first {
			e.raw(",")
		}
		first = false
		e.raw("\n")
		render()
	}

	if len(rec.AKA) > 0 {
		property(func() { e.stringList("aka", rec.AKA) })
	}
	if len(rec.Brands) > 0 {
		property(func() { e.printf("        \"brands\": [%s]", joinStrings(rec.Brands)) })
	}
	if len(rec.Sources) > 0 {
		property(func() { e.stringList("sources", rec.Sources) })
	}
	if len(rec.Comments) > 0 {
		property(func() { e.stringList("comments", rec.Comments) })
	}
	if rec.Features != nil {
		property(func() { e.exportFeatures(rec.Features) })
	}
	if len(rec.Columns) > 0 {
		property(func() { e.stringList("columns", rec.Columns) })
	}
	if len(rec.Schema) > 0 {
		property(func() { e.stringMap("schema", rec.Schema) })
	}
	if len(rec.Sums) > 0 {
		property(func() { e.ruleMap("sums", rec.Sums) })
	}
	if len(rec.Products) > 0 {
		property(func() { e.ruleMap("products", rec.Products) })
	}
	if len(rec.Rows) > 0 {
		property(func() { e.exportRows(rec.Rows) })
	}

	e.raw("\n    }")
}

func joinStrings(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = jsonString(v)
	}
	return strings.Join(quoted, ", ")
}

func (e *encoder) stringList(key string, values []string) {
	if len(values) == 1 {
		e.printf("        %s: [%s]", jsonString(key), jsonString(values[0]))
		return
	}
	e.printf("        %s: [\n", jsonString(key))
	for i, v := range values {
		comma := ","
		if i == len(values)-1 {
			comma = ""
		}
		e.printf("            %s%s\n", jsonString(v), comma)
	}
	e.raw("        ]")
}

func (e *encoder) stringMap(key string, m map[string]string) {
	keys := sortedKeys(m)
	e.printf("        %s: {\n", jsonString(key))
	for i, k := range keys {
		comma := ","
		if i == len(keys)-1 {
			comma = ""
		}
		e.printf("            %s: %s%s\n", jsonString(k), jsonString(m[k]), comma)
	}
	e.raw("        }")
}

func (e *encoder) ruleMap(key string, m map[string][]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	e.printf("        %s: {\n", jsonString(key))
	for i, k := range keys {
		comma := ","
		if i == len(keys)-1 {
			comma = ""
		}
		e.printf("            %s: [%s]%s\n", jsonString(k), joinStrings(m[k]), comma)
	}
	e.raw("        }")
}

func (e *encoder) exportFeatures(f *disclosure.Features) {
	e.raw("        \"features\": {\n")
	optional := func(v *string) string {
		if v == nil {
			return "null"
		}
		return jsonString(*v)
	}
	e.printf("            \"data\": %s,\n", optional(f.Data))
	e.printf("            \"history\": %s,\n", optional(f.History))
	e.printf("            \"terms\": [%s],\n", joinStrings(f.Terms))
	e.printf("            \"quantities\": %s,\n", jsonString(f.Quantities))
	e.printf("            \"granularity\": %s,\n", jsonString(f.Granularity))
	e.printf("            \"frequency\": %s,\n", jsonString(f.Frequency))
	e.printf("            \"coverage\": %s\n", optional(f.Coverage))
	e.raw("        }")
}

func (e *encoder) exportRows(rows []disclosure.RawRow) {
	e.raw("        \"rows\": [\n")
	for i, row := range rows {
		comma := ","
		if i == len(rows)-1 {
			comma = ""
		}
		e.printf("            %s%s\n", formatRow(row), comma)
	}
	e.raw("        ]")
}

// formatRow renders a row as its single-key object. Integers render bare;
// floats with three decimals (no disclosed quantity has more significant
// digits); percent encodings keep their original string form.
func formatRow(row disclosure.RawRow) string {
	cells := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		switch v := cell.(type) {
		case nil:
			cells[i] = "null"
		case int:
			cells[i] = fmt.Sprintf("%d", v)
		case int64:
			cells[i] = fmt.Sprintf("%d", v)
		case float64:
			cells[i] = fmt.Sprintf("%.3f", v)
		case string:
			cells[i] = jsonString(v)
		default:
			cells[i] = jsonString(fmt.Sprintf("%v", v))
		}
	}

	line := fmt.Sprintf("{%s: [%s]", jsonString(row.Period), strings.Join(cells, ", "))
	if row.Redundant {
		line += `, "redundant": true`
	}
	return line + "}"
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
