// Package enrichers provides the built-in photo enrichment units and the
// registry that turns configuration into the unit list handed to the
// scheduler.
//
// Each unit declares its dependencies and result flag through an
// enrich.Descriptor. Units read the photo through the scheduler's view and
// return a merge closure; they never write to the record directly. The
// preview and analyze units are data providers: their output lives in the
// transient photo.Source and is recomputed on every run that needs it.
//
// Vision-backed units are only registered when an analyzer is configured.
package enrichers
