// Package disclosure implements the disclosure table data model: the typed
// column schema, the tagged-variant cell value with its percent-of-N
// encoding, the validated period-indexed table with redundancy flags, and the
// raw record/collection forms consumed by the ingestion engine.
//
// All constructed values are immutable. Build validates every table
// invariant eagerly, so a Table that exists is well-formed and downstream
// consumers never re-validate.
package disclosure
