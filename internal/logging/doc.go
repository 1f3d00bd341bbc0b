// Package logging assembles structured slog loggers and formatting helpers used
// across lightbox.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so enrichment code tags log
// lines with photo IDs, unit identities, and run IDs automatically. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail, and the retention sweep the daemon runs over old log files.
package logging
