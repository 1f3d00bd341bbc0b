package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateEnrichment(); err != nil {
		return err
	}
	if err := c.validateVision(); err != nil {
		return err
	}
	if err := c.validateTimings(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case DriverSQLite:
		return nil
	case DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("database.dsn must be set when database.driver is postgres (or set LIGHTBOX_DATABASE_DSN)")
		}
		return nil
	default:
		return fmt.Errorf("database.driver: unsupported value %q (want sqlite or postgres)", c.Database.Driver)
	}
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case StorageFS:
		if strings.TrimSpace(c.Storage.Dir) == "" {
			return errors.New("storage.dir must be set when storage.backend is fs")
		}
	case StorageS3:
		if c.Storage.Endpoint == "" {
			return errors.New("storage.endpoint must be set when storage.backend is s3")
		}
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket must be set when storage.backend is s3")
		}
	default:
		return fmt.Errorf("storage.backend: unsupported value %q (want fs or s3)", c.Storage.Backend)
	}
	return nil
}

func (c *Config) validateEnrichment() error {
	e := c.Enrichment
	if err := ensurePositiveMap(map[string]int{
		"enrichment.concurrency":       e.Concurrency,
		"enrichment.batch_parallelism": e.BatchParallelism,
		"enrichment.preview_max_px":    e.PreviewMaxPx,
		"enrichment.thumbnail_max_px":  e.ThumbnailMaxPx,
		"enrichment.graph_cache_size":  e.GraphCacheSize,
	}); err != nil {
		return err
	}
	switch e.FailurePolicy {
	case "fail_fast", "continue_on_error":
	default:
		return fmt.Errorf("enrichment.failure_policy: unsupported value %q (want fail_fast or continue_on_error)", e.FailurePolicy)
	}
	if e.ThumbnailMaxPx > e.PreviewMaxPx {
		return errors.New("enrichment.thumbnail_max_px must not exceed enrichment.preview_max_px")
	}
	if e.DuplicateDistance < 0 || e.DuplicateDistance > 64 {
		return errors.New("enrichment.duplicate_distance must be between 0 and 64")
	}
	return nil
}

func (c *Config) validateVision() error {
	if c.Vision.Provider != defaultVisionProvider {
		return fmt.Errorf("vision.provider: unsupported value %q", c.Vision.Provider)
	}
	if c.Vision.MinConfidence < 0 || c.Vision.MinConfidence > 1 {
		return errors.New("vision.min_confidence must be between 0 and 1")
	}
	if c.Vision.TimeoutSeconds <= 0 {
		return errors.New("vision.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateTimings() error {
	if err := ensurePositiveMap(map[string]int{
		"notifications.request_timeout": c.Notifications.RequestTimeout,
		"daemon.poll_interval":          c.Daemon.PollInterval,
		"daemon.error_retry_interval":   c.Daemon.ErrorRetryInterval,
		"daemon.batch_size":             c.Daemon.BatchSize,
	}); err != nil {
		return err
	}
	if c.Daemon.MinFreeGiB < 0 {
		return errors.New("daemon.min_free_gib must be >= 0")
	}
	if c.Notifications.BatchMinPhotos < 0 {
		return errors.New("notifications.batch_min_photos must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
