// Package library persists photos, their enrichment results, and the history
// of enrichment runs.
//
// The store speaks database/sql and works against either the embedded
// SQLite driver (default) or PostgreSQL through pgx. Queries are written with
// '?' placeholders and rebound for PostgreSQL at execution time. The schema
// is versioned; a mismatched version is reported as ErrSchemaMismatch rather
// than migrated in place.
//
// Lookups return (nil, nil) when a row does not exist so callers can decide
// whether absence is an error.
package library
