// Package pipeline enriches library photos.
//
// A Service loads a photo, works out which units still have to run, builds
// (or reuses) the dependency graph for that unit set, drives the enrich
// executor and persists the outcome together with a run history row.
// Forced re-enrichment runs against a copy of the record and is only
// persisted when every selected unit succeeds.
//
// EnrichBatch and EnrichPending fan photos out across a bounded number of
// concurrent runs.
package pipeline
