package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intransparent/internal/config"
	"intransparent/internal/export"
	"intransparent/internal/ingest"
)

const testArchive = `{
  "@": {
    "author": "Test Author",
    "title": "Test Disclosures",
    "version": "1.0.0",
    "date": "2024-06-30",
    "url": "https://example.com/data"
  },
  "Automattic": {
    "brands": ["Tumblr"],
    "sources": ["https://example.com/automattic"]
  },
  "Snap": {
    "sources": ["https://example.com/snap"],
    "columns": ["reports"],
    "rows": [
      {"2021 Q1": [10]},
      {"2021 Q2": [10]},
      {"2021 Q3": [10]},
      {"2021 Q4": [10]}
    ]
  },
  "NCMEC": {
    "sources": ["https://example.com/ncmec"],
    "columns": ["platform", "reports"],
    "schema": {"platform": "string"},
    "rows": [
      {"2021": ["Snap", 50]},
      {"2021": ["Discord", 8]}
    ]
  },
  "Telegram": null
}`

func testResult(t *testing.T) *ingest.Result {
	t.Helper()
	col, err := export.Parse(strings.NewReader(testArchive))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	result, err := ingest.NewEngine(logger).IngestCollection(context.Background(), col)
	require.NoError(t, err)
	return result
}

func testHandler(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(config.Default(), logger, testResult(t)).Handler()
}

func get(t *testing.T, handler http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]any
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealthz(t *testing.T) {
	rec, body := get(t, testHandler(t), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestListEntities(t *testing.T) {
	rec, body := get(t, testHandler(t), "/api/entities")
	require.Equal(t, http.StatusOK, rec.Code)

	entities := body["entities"].([]any)
	require.Len(t, entities, 3)
	first := entities[0].(map[string]any)
	assert.Equal(t, "Automattic", first["name"])
	assert.Equal(t, float64(0), first["periods"])
	second := entities[1].(map[string]any)
	assert.Equal(t, "NCMEC", second["name"])
	third := entities[2].(map[string]any)
	assert.Equal(t, "Snap", third["name"])
	assert.Equal(t, float64(4), third["periods"])

	noData := body["no_data"].([]any)
	assert.Equal(t, []any{"Telegram"}, noData)
}

func TestGetEntity(t *testing.T) {
	rec, body := get(t, testHandler(t), "/api/entities/Snap")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "Snap", body["entity"])
	columns := body["columns"].([]any)
	require.Len(t, columns, 1)
	assert.Equal(t, "reports", columns[0].(map[string]any)["name"])

	rows := body["rows"].([]any)
	require.Len(t, rows, 4)
	firstRow := rows[0].(map[string]any)
	assert.Equal(t, "2021 Q1", firstRow["period"])
	assert.Equal(t, []any{float64(10)}, firstRow["cells"])
}

func TestGetEntityProfileOnly(t *testing.T) {
	rec, body := get(t, testHandler(t), "/api/entities/Automattic")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "Automattic", body["entity"])
	assert.Nil(t, body["columns"])
	assert.Nil(t, body["rows"])
	assert.Equal(t, []any{"https://example.com/automattic"}, body["sources"])
}

func TestGetEntityNotFound(t *testing.T) {
	rec, _ := get(t, testHandler(t), "/api/entities/Nobody")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetEntityAnnual(t *testing.T) {
	rec, body := get(t, testHandler(t), "/api/entities/Snap/annual")
	require.Equal(t, http.StatusOK, rec.Code)

	rows := body["rows"].([]any)
	require.Len(t, rows, 1)
	row := rows[0].(map[string]any)
	assert.Equal(t, "2021", row["period"])
	assert.Equal(t, []any{float64(40)}, row["cells"])
}

func TestGetEntityAnnualProfileOnly(t *testing.T) {
	rec, body := get(t, testHandler(t), "/api/entities/Automattic/annual")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Automattic", body["entity"])
	assert.Nil(t, body["rows"])
}

func TestGetComparison(t *testing.T) {
	rec, body := get(t, testHandler(t), "/api/comparisons/Snap")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "Snap", body["platform"])
	assert.Equal(t, "reports", body["topic"])
	rows := body["rows"].([]any)
	require.Len(t, rows, 1)
	row := rows[0].(map[string]any)
	assert.Equal(t, "2021", row["period"])
	assert.Equal(t, float64(40), row["entity_value"])
	assert.Equal(t, float64(50), row["clearing_value"])
	assert.Equal(t, float64(25), row["delta_pct"])
}

func TestGetComparisonUnknownPlatform(t *testing.T) {
	rec, _ := get(t, testHandler(t), "/api/comparisons/Nobody")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	handler := testHandler(t)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
