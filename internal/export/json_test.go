package export

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intransparent/internal/disclosure"
	"intransparent/internal/ingest"
)

const sampleCollection = `{
    "@": {
        "!": "━━━━━━━━━━━━━━━━━━━━",
        "author": "The Authors",
        "title": "Transparency Disclosures",
        "version": "2.0.0",
        "date": "2023-04-01",
        "url": "https://example.org/dataset",
        "|": "━━━━━━━━━━━━━━━━━━━━"
    },
    "Automattic": {
        "brands": ["Tumblr", "Wordpress"],
        "sources": ["https://transparency.automattic.com"]
    },
    "Snap": {
        "aka": ["Snapchat"],
        "comments": ["switched to semiannual reporting"],
        "features": {
            "data": null,
            "history": "page archive",
            "terms": ["CSAM"],
            "quantities": "counts",
            "granularity": "H",
            "frequency": "H",
            "coverage": null
        },
        "columns": ["reports", "fraction"],
        "schema": {"fraction": "float"},
        "sums": {"combined": ["reports", "reports"]},
        "rows": [
            {"2021 H1": [120, "12.5 / 100 * 4,000"]},
            {"2021 H2": [140, null]},
            {"2021": [260, null], "redundant": true}
        ]
    },
    "Telegram": null
}`

func parseSample(t *testing.T) *disclosure.Collection {
	t.Helper()
	col, err := Parse(strings.NewReader(sampleCollection))
	require.NoError(t, err)
	return col
}

func TestParse(t *testing.T) {
	col := parseSample(t)

	assert.Equal(t, "The Authors", col.Metadata.Author)
	assert.Equal(t, "2.0.0", col.Metadata.Version)

	rec, ok := col.Record("Telegram")
	require.True(t, ok)
	assert.Nil(t, rec)

	snap, ok := col.Record("Snap")
	require.True(t, ok)
	require.NotNil(t, snap)
	assert.Equal(t, []string{"Snapchat"}, snap.AKA)
	require.Len(t, snap.Rows, 3)
	assert.Equal(t, int64(120), snap.Rows[0].Cells[0])
	assert.Equal(t, "12.5 / 100 * 4,000", snap.Rows[0].Cells[1])
	assert.True(t, snap.Rows[2].Redundant)
	require.NotNil(t, snap.Features)
	require.NotNil(t, snap.Features.History)
	assert.Equal(t, "page archive", *snap.Features.History)
}

func TestParseRequiresMetadata(t *testing.T) {
	_, err := Parse(strings.NewReader(`{"Meta": null}`))
	require.Error(t, err)
}

func TestExportIsValidJSON(t *testing.T) {
	col := parseSample(t)

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, col))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded), "export output:\n%s", buf.String())
	assert.Contains(t, decoded, "@")
	assert.Contains(t, decoded, "Snap")
}

func TestExportParseRoundTrip(t *testing.T) {
	col := parseSample(t)

	var first bytes.Buffer
	require.NoError(t, Export(&first, col))

	reparsed, err := Parse(bytes.NewReader(first.Bytes()))
	require.NoError(t, err)

	// Export is deterministic and stable across round trips.
	var second bytes.Buffer
	require.NoError(t, Export(&second, reparsed))
	assert.Equal(t, first.String(), second.String())
}

func TestExportIngestRoundTripReproducesSeries(t *testing.T) {
	engine := ingest.NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil)))
	col := parseSample(t)

	// Normalize the original, export it, re-parse, normalize again.
	original, err := engine.Ingest("Snap", mustRecord(t, col, "Snap"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, col))
	reparsed, err := Parse(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	reingested, err := engine.Ingest("Snap", mustRecord(t, reparsed, "Snap"))
	require.NoError(t, err)

	require.Equal(t, original.Table.Columns(), reingested.Table.Columns())
	ra, rb := original.Table.Rows(), reingested.Table.Rows()
	require.Len(t, rb, len(ra))
	for i := range ra {
		require.Equal(t, ra[i].Period, rb[i].Period)
		require.Equal(t, ra[i].Redundant, rb[i].Redundant)
		for j := range ra[i].Cells {
			require.True(t, ra[i].Cells[j].Equal(rb[i].Cells[j]),
				"row %d cell %d: %s != %s", i, j, ra[i].Cells[j], rb[i].Cells[j])
		}
	}
}

func mustRecord(t *testing.T, col *disclosure.Collection, name string) *disclosure.Record {
	t.Helper()
	rec, ok := col.Record(name)
	require.True(t, ok)
	require.NotNil(t, rec)
	return rec
}
