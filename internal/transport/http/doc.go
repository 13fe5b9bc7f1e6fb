// Package http provides the read-only HTTP API over a normalized disclosure
// collection: entity listings, per-entity series, annualized views, and
// clearinghouse comparisons. Handlers follow Chi router patterns with
// render-based JSON responses.
package http
