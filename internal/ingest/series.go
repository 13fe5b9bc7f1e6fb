package ingest

import (
	"sort"

	"intransparent/internal/disclosure"
)

// Series is an entity's normalized view: the validated disclosure table plus
// resolved profile metadata. Brands holds subsidiary names resolved against
// the enclosing collection, a lookup relationship rather than a copy of the
// subsidiaries' records. Table is nil for entities whose record carries no
// quantitative data.
type Series struct {
	Entity     string
	Table      *disclosure.Table
	Brands     []string
	Sources    []string
	Comments   []string
	Features   *disclosure.Features
	HasReports bool
}

// Result is the outcome of ingesting a whole collection. Failures maps each
// entity whose record was malformed to its validation error; those entities
// have no Series entry, and their failure never aborts the rest.
type Result struct {
	RunID    string
	Metadata disclosure.Metadata
	Series   map[string]*Series
	Brands   map[string][]string
	NoData   []string
	Failures map[string]error
}

// Entities returns the names of successfully normalized entities, sorted.
func (r *Result) Entities() []string {
	names := make([]string, 0, len(r.Series))
	for name := range r.Series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
