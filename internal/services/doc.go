// Package services holds helpers shared by the enrichment units and the
// external integrations they call.
//
// It provides context helpers that stamp photo IDs, unit identities, and run
// correlation IDs for logging, plus error markers and the Wrap helper used to
// classify failures so the pipeline can decide between failed and review.
package services
