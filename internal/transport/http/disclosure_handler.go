package http

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"intransparent/internal/disclosure"
	apierrors "intransparent/internal/errors"
	"intransparent/internal/ingest"
	"intransparent/internal/reconcile"
)

// clearinghouseEntity names the entity whose table aggregates reports that
// the platforms themselves also disclose.
const clearinghouseEntity = "NCMEC"

// defaultTopic is the column compared when a request names none.
const defaultTopic = "reports"

// DisclosureHandler serves a normalized ingestion result.
type DisclosureHandler struct {
	result *ingest.Result
	logger *slog.Logger
}

// NewDisclosureHandler creates a handler over one ingestion result.
func NewDisclosureHandler(result *ingest.Result, logger *slog.Logger) *DisclosureHandler {
	return &DisclosureHandler{
		result: result,
		logger: logger.With(slog.String("component", "disclosure_handler")),
	}
}

// Routes returns the disclosure routes.
func (h *DisclosureHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/entities", h.ListEntities)
	r.Route("/entities/{entity}", func(r chi.Router) {
		r.Use(h.EntityCtx)
		r.Get("/", h.GetEntity)
		r.Get("/annual", h.GetEntityAnnual)
	})
	r.Get("/comparisons/{platform}", h.GetComparison)

	return r
}

// EntityCtx validates the entity parameter.
func (h *DisclosureHandler) EntityCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entity := chi.URLParam(r, "entity")
		if _, ok := h.result.Series[entity]; !ok {
			render.Render(w, r, apierrors.ErrNotFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// entitySummary is one row of the entity listing.
type entitySummary struct {
	Name       string   `json:"name"`
	Periods    int      `json:"periods"`
	Brands     []string `json:"brands,omitempty"`
	HasReports bool     `json:"has_reports"`
}

// listResponse is the entity listing response.
type listResponse struct {
	RunID    string          `json:"run_id"`
	Entities []entitySummary `json:"entities"`
	NoData   []string        `json:"no_data,omitempty"`
	Failed   []string        `json:"failed,omitempty"`
}

func (*listResponse) Render(w http.ResponseWriter, r *http.Request) error { return nil }

// ListEntities handles GET /api/entities.
func (h *DisclosureHandler) ListEntities(w http.ResponseWriter, r *http.Request) {
	resp := &listResponse{
		RunID:  h.result.RunID,
		NoData: h.result.NoData,
	}
	for _, name := range h.result.Entities() {
		series := h.result.Series[name]
		periods := 0
		if series.Table != nil {
			periods = len(series.Table.Periods())
		}
		resp.Entities = append(resp.Entities, entitySummary{
			Name:       name,
			Periods:    periods,
			Brands:     h.result.Brands[name],
			HasReports: series.HasReports,
		})
	}
	for name := range h.result.Failures {
		resp.Failed = append(resp.Failed, name)
	}
	sort.Strings(resp.Failed)

	render.Render(w, r, resp)
}

// columnJSON is one table column in a series response.
type columnJSON struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// rowJSON is one table row in a series response.
type rowJSON struct {
	Period    string `json:"period"`
	Cells     []any  `json:"cells"`
	Redundant bool   `json:"redundant,omitempty"`
}

// seriesResponse is a full table response for one entity.
type seriesResponse struct {
	Entity   string               `json:"entity"`
	Columns  []columnJSON         `json:"columns"`
	Rows     []rowJSON            `json:"rows"`
	Sources  []string             `json:"sources,omitempty"`
	Comments []string             `json:"comments,omitempty"`
	Features *disclosure.Features `json:"features,omitempty"`
}

func (*seriesResponse) Render(w http.ResponseWriter, r *http.Request) error { return nil }

func tableJSON(t *disclosure.Table) ([]columnJSON, []rowJSON) {
	columns := make([]columnJSON, 0, len(t.Columns()))
	for _, col := range t.Columns() {
		columns = append(columns, columnJSON{Name: col.Name, Type: string(col.Type)})
	}

	rows := make([]rowJSON, 0, len(t.Rows()))
	for _, row := range t.Rows() {
		cells := make([]any, len(row.Cells))
		for i, cell := range row.Cells {
			switch cell.Kind() {
			case disclosure.KindInt:
				cells[i], _ = cell.AsInt()
			case disclosure.KindFloat:
				cells[i], _ = cell.AsFloat()
			case disclosure.KindString:
				cells[i], _ = cell.AsString()
			default:
				cells[i] = nil
			}
		}
		rows = append(rows, rowJSON{
			Period:    row.Period.Label(),
			Cells:     cells,
			Redundant: row.Redundant,
		})
	}
	return columns, rows
}

// GetEntity handles GET /api/entities/{entity}. Profile-only entities have
// no table and render with empty columns and rows.
func (h *DisclosureHandler) GetEntity(w http.ResponseWriter, r *http.Request) {
	series := h.result.Series[chi.URLParam(r, "entity")]
	var columns []columnJSON
	var rows []rowJSON
	if series.Table != nil {
		columns, rows = tableJSON(series.Table)
	}

	render.Render(w, r, &seriesResponse{
		Entity:   series.Entity,
		Columns:  columns,
		Rows:     rows,
		Sources:  series.Sources,
		Comments: series.Comments,
		Features: series.Features,
	})
}

// GetEntityAnnual handles GET /api/entities/{entity}/annual.
func (h *DisclosureHandler) GetEntityAnnual(w http.ResponseWriter, r *http.Request) {
	series := h.result.Series[chi.URLParam(r, "entity")]
	if series.Table == nil {
		render.Render(w, r, &seriesResponse{Entity: series.Entity})
		return
	}

	annual, err := reconcile.Annualize(series.Table)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "annualization failed",
			"entity", series.Entity, "error", err)
		render.Render(w, r, apierrors.ToAPIError(err))
		return
	}

	columns, rows := tableJSON(annual)
	render.Render(w, r, &seriesResponse{
		Entity:  series.Entity,
		Columns: columns,
		Rows:    rows,
	})
}

// familyTable folds a corporation's brand series into its own before
// comparison, so the entity side counts everything the clearinghouse
// attributes to the family. Falls back to the parent table alone when the
// brand schemas cannot be combined.
func (h *DisclosureHandler) familyTable(r *http.Request, platform string, parent *disclosure.Table) *disclosure.Table {
	var brandTables []*disclosure.Table
	for _, brand := range h.result.Brands[platform] {
		if bs, ok := h.result.Series[brand]; ok && bs.Table != nil {
			brandTables = append(brandTables, bs.Table)
		}
	}
	if len(brandTables) == 0 {
		return parent
	}

	combined, err := reconcile.AnnualizedFamily(parent, brandTables...)
	if err != nil {
		h.logger.WarnContext(r.Context(), "brand combination skipped",
			"platform", platform, "error", err)
		return parent
	}
	return combined
}

// alignedRowJSON is one reconciled period in a comparison response. The
// delta is omitted when the entity disclosed zero, which leaves the relative
// difference undefined.
type alignedRowJSON struct {
	Period        string   `json:"period"`
	EntityValue   int64    `json:"entity_value"`
	ClearingValue int64    `json:"clearing_value"`
	DeltaPct      *float64 `json:"delta_pct,omitempty"`
}

// comparisonResponse reconciles one platform against the clearinghouse.
type comparisonResponse struct {
	Platform string           `json:"platform"`
	Topic    string           `json:"topic"`
	Rows     []alignedRowJSON `json:"rows"`
}

func (*comparisonResponse) Render(w http.ResponseWriter, r *http.Request) error { return nil }

// GetComparison handles GET /api/comparisons/{platform}?topic=reports.
func (h *DisclosureHandler) GetComparison(w http.ResponseWriter, r *http.Request) {
	platform := chi.URLParam(r, "platform")
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		topic = defaultTopic
	}

	series, ok := h.result.Series[platform]
	if !ok {
		render.Render(w, r, apierrors.ErrNotFound)
		return
	}
	clearing, ok := h.result.Series[clearinghouseEntity]
	if !ok || clearing.Table == nil {
		render.Render(w, r, apierrors.ErrNotFound)
		return
	}

	view, err := reconcile.NewClearinghouseView(clearing.Table, topic)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "clearinghouse view failed",
			"topic", topic, "error", err)
		render.Render(w, r, apierrors.ToAPIError(err))
		return
	}
	view = view.CombineBrands(h.result.Brands)

	entityTable := h.familyTable(r, platform, series.Table)
	aligned, err := reconcile.Align(platform, entityTable, view, topic)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "alignment failed",
			"platform", platform, "topic", topic, "error", err)
		render.Render(w, r, apierrors.ToAPIError(err))
		return
	}

	resp := &comparisonResponse{Platform: platform, Topic: topic, Rows: []alignedRowJSON{}}
	for _, row := range aligned {
		out := alignedRowJSON{
			Period:        row.Period.Label(),
			EntityValue:   row.EntityValue,
			ClearingValue: row.ClearingValue,
		}
		if row.DeltaValid {
			delta := row.DeltaPct
			out.DeltaPct = &delta
		}
		resp.Rows = append(resp.Rows, out)
	}
	render.Render(w, r, resp)
}
