// Package ingest implements the validating ingestion and normalization
// engine. It consumes raw per-entity disclosure records, validates them
// against the table invariants, applies declared sums/products rules to
// synthesize derived columns, and produces immutable normalized series.
//
// Ingestion never mutates its input: re-running the engine on the same raw
// record is idempotent and produces identical output. One entity's malformed
// disclosure never blocks processing of the others.
package ingest
