// Command lightbox manages a photo library and its enrichment.
//
// Photos are registered with "lightbox add", enriched on demand with
// "lightbox enrich" or continuously by "lightbox daemon", and inspected with
// "lightbox photos", "lightbox runs" and "lightbox units". Configuration is
// read from ~/.config/lightbox/config.toml (or --config); a .env file in the
// working directory is loaded first so API keys can live outside the config.
package main
