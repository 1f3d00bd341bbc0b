// Package daemon coordinates the long-running lightbox worker.
//
// It wires configuration, the photo library, the ingest scanner and the
// enrichment pipeline into a single poll loop with flock-based locking to
// prevent multiple instances. Each cycle runs the preflight checks, scans
// the watch directories for new photos and enriches a batch of pending ones.
//
// Keep orchestration logic here: enrichment itself lives in the pipeline
// and enrichers packages while the daemon focuses on startup, shutdown and
// scheduling.
package daemon
