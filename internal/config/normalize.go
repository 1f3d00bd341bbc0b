package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDatabase()
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeEnrichment()
	c.normalizeVision()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	watch := make([]string, 0, len(c.Paths.WatchDirs))
	seen := make(map[string]struct{}, len(c.Paths.WatchDirs))
	for _, dir := range c.Paths.WatchDirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		expanded, err := expandPath(strings.TrimSpace(dir))
		if err != nil {
			return fmt.Errorf("paths.watch_dirs: %w", err)
		}
		if _, dup := seen[expanded]; dup {
			continue
		}
		seen[expanded] = struct{}{}
		watch = append(watch, expanded)
	}
	c.Paths.WatchDirs = watch
	return nil
}

func (c *Config) normalizeDatabase() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case "", "sqlite3":
		c.Database.Driver = DriverSQLite
	case "postgresql", "pgx":
		c.Database.Driver = DriverPostgres
	}
	if value, ok := os.LookupEnv("LIGHTBOX_DATABASE_DSN"); ok && strings.TrimSpace(value) != "" {
		c.Database.DSN = value
	}
	c.Database.DSN = strings.TrimSpace(c.Database.DSN)
}

func (c *Config) normalizeStorage() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" || c.Storage.Backend == "filesystem" {
		c.Storage.Backend = StorageFS
	}
	if strings.TrimSpace(c.Storage.Dir) == "" {
		c.Storage.Dir = filepath.Join(c.Paths.DataDir, "blobs")
	}
	var err error
	if c.Storage.Dir, err = expandPath(c.Storage.Dir); err != nil {
		return fmt.Errorf("storage.dir: %w", err)
	}
	c.Storage.Endpoint = strings.TrimSpace(c.Storage.Endpoint)
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	c.Storage.Region = strings.TrimSpace(c.Storage.Region)
	if c.Storage.Region == "" {
		c.Storage.Region = defaultS3Region
	}
	if c.Storage.AccessKey == "" {
		if value, ok := os.LookupEnv("LIGHTBOX_S3_ACCESS_KEY"); ok {
			c.Storage.AccessKey = value
		}
	}
	if c.Storage.SecretKey == "" {
		if value, ok := os.LookupEnv("LIGHTBOX_S3_SECRET_KEY"); ok {
			c.Storage.SecretKey = value
		}
	}
	c.Storage.AccessKey = strings.TrimSpace(c.Storage.AccessKey)
	c.Storage.SecretKey = strings.TrimSpace(c.Storage.SecretKey)
	return nil
}

func (c *Config) normalizeEnrichment() {
	c.Enrichment.FailurePolicy = strings.ToLower(strings.TrimSpace(c.Enrichment.FailurePolicy))
	if c.Enrichment.FailurePolicy == "" {
		c.Enrichment.FailurePolicy = defaultFailurePolicy
	}
	if c.Enrichment.Concurrency == 0 {
		c.Enrichment.Concurrency = defaultConcurrency
	}
	if c.Enrichment.BatchParallelism == 0 {
		c.Enrichment.BatchParallelism = defaultBatchParallelism
	}
	if c.Enrichment.GraphCacheSize == 0 {
		c.Enrichment.GraphCacheSize = defaultGraphCacheSize
	}
	c.Enrichment.ActiveUnits = normalizeNames(c.Enrichment.ActiveUnits)
	c.Enrichment.DataProviders = normalizeNames(c.Enrichment.DataProviders)
}

func (c *Config) normalizeVision() {
	c.Vision.Provider = strings.ToLower(strings.TrimSpace(c.Vision.Provider))
	if c.Vision.Provider == "" {
		c.Vision.Provider = defaultVisionProvider
	}
	c.Vision.Model = strings.TrimSpace(c.Vision.Model)
	if c.Vision.Model == "" {
		c.Vision.Model = defaultVisionModel
	}
	c.Vision.APIKey = strings.TrimSpace(c.Vision.APIKey)
	if c.Vision.APIKey == "" {
		for _, key := range []string{"LIGHTBOX_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"} {
			if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
				c.Vision.APIKey = strings.TrimSpace(value)
				break
			}
		}
	}
	if c.Vision.TimeoutSeconds == 0 {
		c.Vision.TimeoutSeconds = defaultVisionTimeout
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("LIGHTBOX_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

// normalizeNames lowercases unit names and drops blanks and duplicates while
// keeping the configured order.
func normalizeNames(values []string) []string {
	if len(values) == 0 {
		return values
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		name := strings.ToLower(strings.TrimSpace(value))
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
