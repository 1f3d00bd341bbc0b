package preflight

import (
	"context"

	"lightbox/internal/blobstore"
	"lightbox/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Pinger is satisfied by the library store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Targets are the live collaborators RunAll probes. Nil targets are skipped.
type Targets struct {
	Database Pinger
	Blobs    blobstore.Store
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, targets Targets) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	for _, dir := range cfg.Paths.WatchDirs {
		results = append(results, CheckDirectoryAccess("Watch directory", dir))
	}
	if cfg.Daemon.MinFreeGiB > 0 {
		results = append(results, CheckFreeSpace("Free space", cfg.Paths.DataDir, uint64(cfg.Daemon.MinFreeGiB)))
	}

	if targets.Database != nil {
		results = append(results, CheckDatabase(ctx, cfg.Database.Driver, targets.Database))
	}
	if targets.Blobs != nil {
		results = append(results, CheckBlobStore(ctx, cfg.Storage.Backend, targets.Blobs))
	}
	results = append(results, CheckVisionConfig(cfg))

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
