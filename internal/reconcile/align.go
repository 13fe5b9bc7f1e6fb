package reconcile

import (
	"sort"

	"intransparent/internal/disclosure"
	"intransparent/internal/errors"
	"intransparent/internal/period"
)

// platformColumn names the clearinghouse table's entity column.
const platformColumn = "platform"

// ClearinghouseView indexes the clearinghouse's disclosures by (period,
// platform) for one topic. The clearinghouse reports multiple rows per
// period, one per platform; rows for the same pair are summed.
type ClearinghouseView struct {
	topic  string
	totals map[viewKey]int64
}

type viewKey struct {
	period   period.Period
	platform string
}

// NewClearinghouseView builds the per-platform index from the clearinghouse's
// validated table. The table must declare a string "platform" column and an
// integer topic column.
func NewClearinghouseView(t *disclosure.Table, topic string) (*ClearinghouseView, error) {
	platformIdx, ok := t.ColumnIndex(platformColumn)
	if !ok {
		return nil, errors.NewSchemaError("clearinghouse table has no %q column", platformColumn)
	}
	topicIdx, ok := t.ColumnIndex(topic)
	if !ok {
		return nil, errors.NewSchemaError("clearinghouse table has no %q column", topic)
	}

	view := &ClearinghouseView{
		topic:  topic,
		totals: make(map[viewKey]int64),
	}
	for _, row := range t.Rows() {
		if row.Redundant {
			continue
		}
		platform, ok := row.Cells[platformIdx].AsString()
		if !ok {
			return nil, errors.NewTypeMismatchError(
				"clearinghouse %q column contains non-string cell", platformColumn)
		}
		v, ok := row.Cells[topicIdx].AsInt()
		if !ok {
			continue
		}
		view.totals[viewKey{period: row.Period, platform: platform}] += v
	}
	return view, nil
}

// CombineBrands folds each brand's totals into its parent corporation and
// drops the brand entries, so comparisons line up with combined entity
// series. Brand relationships come from the ingestion result's name map.
func (v *ClearinghouseView) CombineBrands(brands map[string][]string) *ClearinghouseView {
	parentOf := make(map[string]string)
	for firm, names := range brands {
		for _, brand := range names {
			parentOf[brand] = firm
		}
	}

	combined := &ClearinghouseView{
		topic:  v.topic,
		totals: make(map[viewKey]int64, len(v.totals)),
	}
	for key, total := range v.totals {
		if firm, ok := parentOf[key.platform]; ok {
			key = viewKey{period: key.period, platform: firm}
		}
		combined.totals[key] += total
	}
	return combined
}

// Value returns the clearinghouse total for the given period and platform.
func (v *ClearinghouseView) Value(p period.Period, platform string) (int64, bool) {
	total, ok := v.totals[viewKey{period: p, platform: platform}]
	return total, ok
}

// Platforms returns the platforms present in the view, sorted.
func (v *ClearinghouseView) Platforms() []string {
	seen := make(map[string]bool)
	var platforms []string
	for key := range v.totals {
		if !seen[key.platform] {
			seen[key.platform] = true
			platforms = append(platforms, key.platform)
		}
	}
	sort.Strings(platforms)
	return platforms
}

// AlignedRow pairs one period's disclosures from both sides. DeltaPct is the
// clearinghouse's relative difference from the entity's own figure, in
// percent; it is only meaningful when DeltaValid is set. A disclosed zero on
// the entity side still aligns, but leaves the relative difference undefined.
type AlignedRow struct {
	Period        period.Period
	EntityValue   int64
	ClearingValue int64
	DeltaPct      float64
	DeltaValid    bool
}

// Align joins an entity's annualized disclosures with the clearinghouse's by
// (period, topic). Only periods where both sides disclose a non-null value
// appear; missing disclosures on either side drop the period, since there is
// nothing to compare. An entity without the topic column yields no rows.
func Align(platform string, entity *disclosure.Table, view *ClearinghouseView, topic string) ([]AlignedRow, error) {
	if entity == nil || !entity.HasColumn(topic) {
		return nil, nil
	}

	annual, err := Annualize(entity)
	if err != nil {
		return nil, err
	}

	var aligned []AlignedRow
	for _, p := range annual.Periods() {
		cell, err := annual.Lookup(p, topic)
		if err != nil {
			return nil, err
		}
		sent, ok := cell.AsInt()
		if !ok {
			continue
		}
		received, ok := view.Value(p, platform)
		if !ok {
			continue
		}
		row := AlignedRow{
			Period:        p,
			EntityValue:   sent,
			ClearingValue: received,
		}
		// A zero base leaves the relative difference undefined.
		if sent != 0 {
			row.DeltaPct = float64(received-sent) / float64(sent) * 100
			row.DeltaValid = true
		}
		aligned = append(aligned, row)
	}
	return aligned, nil
}
