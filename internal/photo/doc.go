// Package photo defines the library record that enrichment units build up
// and the result flags each unit contributes.
//
// Record satisfies enrich.Subject: the scheduler ORs a unit's flag into
// Record.Flags after applying that unit's merge. Source carries the decoded
// bytes and intermediate analysis that units share within one run and that
// are never persisted.
package photo
