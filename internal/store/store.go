// Package store persists normalized disclosure series and reconciliation
// results to SQLite so ingestion runs can be compared over time without
// re-parsing the source archive.
package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"intransparent/internal/disclosure"
	"intransparent/internal/ingest"
	"intransparent/internal/reconcile"
)

const migrationsSQL = `
CREATE TABLE IF NOT EXISTS runs (
    id         TEXT PRIMARY KEY,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cells (
    run_id       TEXT NOT NULL REFERENCES runs(id),
    entity       TEXT NOT NULL,
    period       TEXT NOT NULL,
    column_name  TEXT NOT NULL,
    kind         TEXT NOT NULL,
    int_value    INTEGER,
    float_value  REAL,
    string_value TEXT,
    redundant    INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS cells_entity_period
    ON cells (run_id, entity, period);

CREATE TABLE IF NOT EXISTS alignments (
    run_id         TEXT NOT NULL REFERENCES runs(id),
    platform       TEXT NOT NULL,
    topic          TEXT NOT NULL,
    period         TEXT NOT NULL,
    entity_value   INTEGER NOT NULL,
    clearing_value INTEGER NOT NULL,
    delta_pct      REAL
);
`

// Store wraps a SQLite connection with the persistence operations the
// pipeline needs.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and runs migrations.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	for _, stmt := range strings.Split(migrationsSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// SaveResult records one ingestion run: the run row plus every cell of every
// successfully ingested series. The whole run is written in one transaction.
func (s *Store) SaveResult(res *ingest.Result) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO runs (id, created_at) VALUES (?, ?)`,
		res.RunID, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO cells
		(run_id, entity, period, column_name, kind, int_value, float_value, string_value, redundant)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare cell insert: %w", err)
	}
	defer stmt.Close()

	for _, entity := range res.Entities() {
		series := res.Series[entity]
		// Profile-only entities carry no table and nothing to persist.
		if series.Table == nil {
			continue
		}
		columns := series.Table.Columns()
		for _, row := range series.Table.Rows() {
			for i, col := range columns {
				if err := insertCell(stmt, res.RunID, entity, row, col.Name, row.Cells[i]); err != nil {
					return err
				}
			}
		}
	}

	return tx.Commit()
}

func insertCell(stmt *sql.Stmt, runID, entity string, row disclosure.Row, column string, cell disclosure.CellValue) error {
	var (
		intValue    sql.NullInt64
		floatValue  sql.NullFloat64
		stringValue sql.NullString
	)
	switch cell.Kind() {
	case disclosure.KindInt:
		v, _ := cell.AsInt()
		intValue = sql.NullInt64{Int64: v, Valid: true}
	case disclosure.KindFloat:
		v, _ := cell.AsFloat()
		floatValue = sql.NullFloat64{Float64: v, Valid: true}
	case disclosure.KindString:
		v, _ := cell.AsString()
		stringValue = sql.NullString{String: v, Valid: true}
	}

	redundant := 0
	if row.Redundant {
		redundant = 1
	}
	_, err := stmt.Exec(
		runID, entity, row.Period.Label(), column, cell.Kind().String(),
		intValue, floatValue, stringValue, redundant,
	)
	if err != nil {
		return fmt.Errorf("insert cell for %s %s: %w", entity, row.Period.Label(), err)
	}
	return nil
}

// SaveAlignments records the reconciliation rows produced for one platform
// and topic in the given run.
func (s *Store) SaveAlignments(runID, platform, topic string, rows []reconcile.AlignedRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, row := range rows {
		delta := sql.NullFloat64{Float64: row.DeltaPct, Valid: row.DeltaValid}
		if _, err := tx.Exec(
			`INSERT INTO alignments
			 (run_id, platform, topic, period, entity_value, clearing_value, delta_pct)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, platform, topic, row.Period.Label(),
			row.EntityValue, row.ClearingValue, delta,
		); err != nil {
			return fmt.Errorf("insert alignment for %s %s: %w", platform, row.Period.Label(), err)
		}
	}

	return tx.Commit()
}

// StoredCell is one persisted table cell as read back from the database.
type StoredCell struct {
	Entity    string
	Period    string
	Column    string
	Kind      string
	Value     any
	Redundant bool
}

// Cells returns the persisted cells of one entity in a run, ordered by
// period then column.
func (s *Store) Cells(runID, entity string) ([]StoredCell, error) {
	rows, err := s.db.Query(
		`SELECT period, column_name, kind, int_value, float_value, string_value, redundant
		 FROM cells WHERE run_id = ? AND entity = ?
		 ORDER BY period, column_name`,
		runID, entity,
	)
	if err != nil {
		return nil, fmt.Errorf("query cells: %w", err)
	}
	defer rows.Close()

	var cells []StoredCell
	for rows.Next() {
		var (
			c           StoredCell
			intValue    sql.NullInt64
			floatValue  sql.NullFloat64
			stringValue sql.NullString
			redundant   int
		)
		if err := rows.Scan(&c.Period, &c.Column, &c.Kind, &intValue, &floatValue, &stringValue, &redundant); err != nil {
			return nil, fmt.Errorf("scan cell: %w", err)
		}
		c.Entity = entity
		c.Redundant = redundant != 0
		switch {
		case intValue.Valid:
			c.Value = intValue.Int64
		case floatValue.Valid:
			c.Value = floatValue.Float64
		case stringValue.Valid:
			c.Value = stringValue.String
		}
		cells = append(cells, c)
	}
	return cells, rows.Err()
}

// Runs returns the recorded run IDs, newest first.
func (s *Store) Runs() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
