// Package config loads, normalizes, and validates lightbox configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// GEMINI_API_KEY and LIGHTBOX_DATABASE_DSN. The Config type centralizes every
// knob the daemon and CLI need so the store, blob storage, enrichment units
// and notifications are wired from one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical unit names, and clear validation errors.
package config
