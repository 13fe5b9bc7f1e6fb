package ingest

import (
	"context"
	stderrors "errors"
	"log/slog"
	"runtime"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"intransparent/internal/disclosure"
	apperrors "intransparent/internal/errors"
	"intransparent/internal/period"
)

// Engine normalizes raw disclosure records into validated series. Engines are
// safe for concurrent use; they hold no per-ingestion state.
type Engine struct {
	logger      *slog.Logger
	validate    *validator.Validate
	concurrency int
}

// Option configures an Engine.
type Option func(*Engine)

// WithConcurrency bounds the number of entities normalized in parallel by
// IngestCollection. Entity records are independent, so the default is one
// worker per CPU.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// NewEngine creates an ingestion engine.
func NewEngine(logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		logger:      logger.With(slog.String("component", "ingest")),
		validate:    validator.New(),
		concurrency: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ingest normalizes a single entity's raw record. It parses the declared
// schema (defaulting to all-integer), parses every row's period label and
// cells, validates the table invariants, and applies the declared
// sums/products rules. The raw record is never modified; ingesting the same
// record twice produces identical output.
func (e *Engine) Ingest(entity string, rec *disclosure.Record) (*Series, error) {
	if rec == nil {
		return nil, apperrors.NewValidationError(entity, apperrors.NewSchemaError("no record"))
	}

	if err := e.checkFeatures(rec.Features); err != nil {
		return nil, apperrors.NewValidationError(entity, err)
	}

	series := &Series{
		Entity:     entity,
		Brands:     append([]string(nil), rec.Brands...),
		Sources:    append([]string(nil), rec.Sources...),
		Comments:   append([]string(nil), rec.Comments...),
		HasReports: rec.HasReports(),
	}
	if rec.Features != nil {
		features := *rec.Features
		features.Terms = append([]string(nil), rec.Features.Terms...)
		series.Features = &features
	}

	// A record carries either no quantitative data or a complete table.
	if !rec.HasTable() {
		if len(rec.Columns) > 0 || len(rec.Rows) > 0 {
			return nil, apperrors.NewValidationError(entity,
				apperrors.NewSchemaError("record has partial table fields"))
		}
		return series, nil
	}

	table, err := e.buildTable(rec)
	if err != nil {
		return nil, apperrors.NewValidationError(entity, err)
	}

	table, err = applyDerivedColumns(table, rec.Sums, rec.Products)
	if err != nil {
		return nil, apperrors.NewValidationError(entity, err)
	}

	series.Table = table
	return series, nil
}

// buildTable parses and validates the record's quantitative table.
func (e *Engine) buildTable(rec *disclosure.Record) (*disclosure.Table, error) {
	columns, err := disclosure.ElaborateSchema(rec.Columns, rec.Schema)
	if err != nil {
		return nil, err
	}

	rows := make([]disclosure.Row, 0, len(rec.Rows))
	for rowIdx, raw := range rec.Rows {
		p, err := period.Parse(raw.Period)
		if err != nil {
			var de *apperrors.DisclosureError
			if stderrors.As(err, &de) {
				return nil, de.WithLocator(rowIdx, "")
			}
			return nil, err
		}

		if len(raw.Cells) != len(columns) {
			return nil, apperrors.NewSchemaError(
				"row %s has %d cells instead of %d",
				raw.Period, len(raw.Cells), len(columns)).WithLocator(rowIdx, "")
		}

		cells := make([]disclosure.CellValue, len(raw.Cells))
		for colIdx, rawCell := range raw.Cells {
			cell, err := disclosure.ParseCell(rawCell, columns[colIdx].Name, columns[colIdx].Type)
			if err != nil {
				var de *apperrors.DisclosureError
				if stderrors.As(err, &de) {
					return nil, de.WithLocator(rowIdx, columns[colIdx].Name)
				}
				return nil, err
			}
			cells[colIdx] = cell
		}

		rows = append(rows, disclosure.Row{
			Period:    p,
			Cells:     cells,
			Redundant: raw.Redundant,
		})
	}

	return disclosure.Build(columns, rows)
}

// checkFeatures validates the qualitative features descriptor.
func (e *Engine) checkFeatures(features *disclosure.Features) error {
	if features == nil {
		return nil
	}
	if err := e.validate.Struct(features); err != nil {
		return apperrors.NewSchemaError("invalid features descriptor: %v", err)
	}
	if features.History != nil && !disclosure.KnownHistory(*features.History) {
		return apperrors.NewSchemaError("unknown history kind %q", *features.History)
	}
	return nil
}

// IngestCollection normalizes every entity in the collection. Entities are
// independent and are processed in parallel; a malformed entity is recorded
// in Failures and does not abort the others. Brand references are resolved by
// name after all entities are normalized.
func (e *Engine) IngestCollection(ctx context.Context, col *disclosure.Collection) (*Result, error) {
	if err := e.validate.Struct(col.Metadata); err != nil {
		return nil, apperrors.NewSchemaError("invalid collection metadata: %v", err)
	}

	result := &Result{
		RunID:    uuid.NewString(),
		Metadata: col.Metadata,
		Series:   make(map[string]*Series),
		Brands:   make(map[string][]string),
		Failures: make(map[string]error),
	}
	logger := e.logger.With(slog.String("run_id", result.RunID))

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for _, entity := range col.EntityNames() {
		entity := entity
		rec, _ := col.Record(entity)

		if rec == nil {
			logger.Info("entity has no transparency disclosures",
				slog.String("entity", entity))
			mu.Lock()
			result.NoData = append(result.NoData, entity)
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			series, err := e.Ingest(entity, rec)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				validationFailures.Inc()
				logger.Warn("skipping malformed disclosure record",
					slog.String("entity", entity),
					slog.Any("error", err))
				result.Failures[entity] = err
				return nil
			}

			entitiesIngested.Inc()
			result.Series[entity] = series
			if len(series.Brands) > 0 {
				result.Brands[entity] = series.Brands
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Brand references are name lookups against the collection. A brand
	// without its own record is legal; a name outside the collection is
	// likely a typo worth surfacing.
	for entity, brands := range result.Brands {
		for _, brand := range brands {
			if _, ok := col.Record(brand); !ok {
				logger.Warn("brand reference does not resolve",
					slog.String("entity", entity),
					slog.String("brand", brand))
			}
		}
	}

	logger.Info("collection ingested",
		slog.Int("entities", len(result.Series)),
		slog.Int("no_data", len(result.NoData)),
		slog.Int("failures", len(result.Failures)))
	return result, nil
}
