// Command intransparent normalizes a transparency disclosure archive,
// reconciles platform disclosures against the clearinghouse, and writes the
// result as JSON, CSV, or an Excel workbook. With -serve it also exposes the
// normalized data over a read-only HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"intransparent/internal/config"
	"intransparent/internal/country"
	"intransparent/internal/disclosure"
	"intransparent/internal/export"
	"intransparent/internal/infrastructure"
	"intransparent/internal/ingest"
	"intransparent/internal/reconcile"
	"intransparent/internal/store"
	transporthttp "intransparent/internal/transport/http"
)

// clearinghouseEntity is the entity reconciled against platform disclosures.
const clearinghouseEntity = "NCMEC"

func main() {
	configFile := flag.String("config", "", "path to YAML config file")
	dataFile := flag.String("data", "", "disclosure archive JSON (overrides config)")
	countriesFile := flag.String("countries", "", "country reference CSV (optional)")
	outDir := flag.String("out", "", "output directory (overrides config)")
	format := flag.String("format", "json", "output format: json, csv, or xlsx")
	dbFile := flag.String("db", "", "SQLite database to persist the run (optional)")
	serve := flag.Bool("serve", false, "serve the normalized data over HTTP")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *dataFile != "" {
		cfg.Paths.DataFile = *dataFile
	}
	if *countriesFile != "" {
		cfg.Paths.CountriesFile = *countriesFile
	}
	if *outDir != "" {
		cfg.Paths.OutputDir = *outDir
	}
	if *dbFile != "" {
		cfg.Paths.DatabaseFile = *dbFile
	}

	logger, err := infrastructure.NewLogger(cfg.Logging)
	if err != nil {
		slog.Error("failed to initialize logger", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *format, *serve); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, format string, serve bool) error {
	f, err := os.Open(cfg.Paths.DataFile)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	col, err := export.Parse(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("parse archive: %w", err)
	}

	engine := ingest.NewEngine(logger, ingest.WithConcurrency(cfg.Ingest.Concurrency))
	result, err := engine.IngestCollection(ctx, col)
	if err != nil {
		return fmt.Errorf("ingest collection: %w", err)
	}
	for entity, ferr := range result.Failures {
		logger.Warn("entity rejected", "entity", entity, "error", ferr)
	}

	if cfg.Paths.CountriesFile != "" {
		countries, err := country.ReadReferenceFile(cfg.Paths.CountriesFile)
		if err != nil {
			return fmt.Errorf("read country reference: %w", err)
		}
		if err := writeCountries(cfg.Paths.OutputDir, countries); err != nil {
			return err
		}
		logger.Info("country reference normalized",
			"countries", len(countries), "file", "countries.csv")
	}

	if cfg.Paths.DatabaseFile != "" {
		if err := persistRun(cfg.Paths.DatabaseFile, logger, result); err != nil {
			return err
		}
	}

	if err := writeOutput(cfg.Paths.OutputDir, format, col, result); err != nil {
		return err
	}

	if serve {
		server := transporthttp.NewServer(cfg, logger, result)
		return server.ListenAndServe(ctx)
	}
	return nil
}

// persistRun stores the normalized series and, when the clearinghouse is
// present, the per-platform reconciliations.
func persistRun(path string, logger *slog.Logger, result *ingest.Result) error {
	db, err := store.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.SaveResult(result); err != nil {
		return fmt.Errorf("persist run: %w", err)
	}

	clearing, ok := result.Series[clearinghouseEntity]
	if !ok || clearing.Table == nil {
		return nil
	}
	view, err := reconcile.NewClearinghouseView(clearing.Table, "reports")
	if err != nil {
		return fmt.Errorf("clearinghouse view: %w", err)
	}
	view = view.CombineBrands(result.Brands)

	for _, entity := range result.Entities() {
		if entity == clearinghouseEntity {
			continue
		}
		series := result.Series[entity]
		entityTable := series.Table
		if brandTables := familyTables(result, entity); len(brandTables) > 0 {
			combined, err := reconcile.AnnualizedFamily(series.Table, brandTables...)
			if err != nil {
				logger.Warn("brand combination skipped", "entity", entity, "error", err)
			} else {
				entityTable = combined
			}
		}
		aligned, err := reconcile.Align(entity, entityTable, view, "reports")
		if err != nil {
			logger.Warn("alignment skipped", "entity", entity, "error", err)
			continue
		}
		if len(aligned) == 0 {
			continue
		}
		if err := db.SaveAlignments(result.RunID, entity, "reports", aligned); err != nil {
			return fmt.Errorf("persist alignments: %w", err)
		}
	}
	return nil
}

// familyTables collects the tables of an entity's successfully ingested
// brands.
func familyTables(result *ingest.Result, entity string) []*disclosure.Table {
	var tables []*disclosure.Table
	for _, brand := range result.Brands[entity] {
		if bs, ok := result.Series[brand]; ok && bs.Table != nil {
			tables = append(tables, bs.Table)
		}
	}
	return tables
}

// writeCountries emits the normalized country reference alongside the
// disclosure output, with unattributed reports already folded into USA.
func writeCountries(dir string, countries map[string]country.Country) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, "countries.csv"))
	if err != nil {
		return fmt.Errorf("create country output: %w", err)
	}
	defer f.Close()
	if err := country.WriteCSV(f, countries); err != nil {
		return fmt.Errorf("write country output: %w", err)
	}
	return nil
}

func writeOutput(dir, format string, col *disclosure.Collection, result *ingest.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	switch format {
	case "json":
		f, err := os.Create(filepath.Join(dir, "disclosures.json"))
		if err != nil {
			return fmt.Errorf("create JSON output: %w", err)
		}
		defer f.Close()
		return export.Export(f, col)
	case "csv":
		for _, entity := range result.Entities() {
			if result.Series[entity].Table == nil {
				continue
			}
			f, err := os.Create(filepath.Join(dir, entity+".csv"))
			if err != nil {
				return fmt.Errorf("create CSV output: %w", err)
			}
			err = export.WriteSeriesCSV(f, result.Series[entity])
			f.Close()
			if err != nil {
				return fmt.Errorf("write CSV for %s: %w", entity, err)
			}
		}
		return nil
	case "xlsx":
		return export.WriteWorkbook(filepath.Join(dir, "disclosures.xlsx"), result.Series)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
