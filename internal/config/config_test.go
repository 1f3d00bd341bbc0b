package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"lightbox/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LIGHTBOX_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY",
		"LIGHTBOX_DATABASE_DSN", "LIGHTBOX_S3_ACCESS_KEY", "LIGHTBOX_S3_SECRET_KEY",
		"LIGHTBOX_NTFY_TOPIC",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "lightbox")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Storage.Dir != filepath.Join(wantData, "blobs") {
		t.Fatalf("unexpected blob dir: %q", cfg.Storage.Dir)
	}
	if cfg.DatabaseDSN() != filepath.Join(wantData, "lightbox.db") {
		t.Fatalf("unexpected sqlite path: %q", cfg.DatabaseDSN())
	}
	if cfg.Database.Driver != config.DriverSQLite {
		t.Fatalf("unexpected driver %q", cfg.Database.Driver)
	}
	if cfg.Enrichment.FailurePolicy != "continue_on_error" {
		t.Fatalf("unexpected failure policy %q", cfg.Enrichment.FailurePolicy)
	}
	if got := strings.Join(cfg.Enrichment.DataProviders, ","); got != "preview,analyze" {
		t.Fatalf("unexpected data providers %q", got)
	}
	if cfg.VisionEnabled() {
		t.Fatal("expected vision disabled without api key")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Storage.Dir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearEnv(t)
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "lightbox.toml")

	type payload struct {
		Paths struct {
			DataDir   string   `toml:"data_dir"`
			WatchDirs []string `toml:"watch_dirs"`
		} `toml:"paths"`
		Enrichment struct {
			Concurrency   int      `toml:"concurrency"`
			FailurePolicy string   `toml:"failure_policy"`
			ActiveUnits   []string `toml:"active_units"`
		} `toml:"enrichment"`
	}
	custom := payload{}
	custom.Paths.DataDir = filepath.Join(tempDir, "data")
	custom.Paths.WatchDirs = []string{filepath.Join(tempDir, "inbox"), filepath.Join(tempDir, "inbox"), " "}
	custom.Enrichment.Concurrency = 8
	custom.Enrichment.FailurePolicy = "FAIL_FAST"
	custom.Enrichment.ActiveUnits = []string{" Preview", "metadata", "preview", ""}
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Enrichment.Concurrency != 8 {
		t.Fatalf("expected concurrency 8, got %d", cfg.Enrichment.Concurrency)
	}
	if cfg.Enrichment.FailurePolicy != "fail_fast" {
		t.Fatalf("expected normalized policy, got %q", cfg.Enrichment.FailurePolicy)
	}
	if got := strings.Join(cfg.Enrichment.ActiveUnits, ","); got != "preview,metadata" {
		t.Fatalf("unexpected active units %q", got)
	}
	if len(cfg.Paths.WatchDirs) != 1 {
		t.Fatalf("expected deduplicated watch dirs, got %v", cfg.Paths.WatchDirs)
	}
	if cfg.Paths.DataDir != filepath.Join(tempDir, "data") {
		t.Fatalf("unexpected data dir %q", cfg.Paths.DataDir)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "lightbox.toml")
	if err := os.WriteFile(configPath, []byte("[enrichment]\nconcurency = 3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected error for misspelled key")
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GEMINI_API_KEY", " env-gemini ")
	t.Setenv("LIGHTBOX_DATABASE_DSN", "postgres://lightbox@localhost/lightbox")
	t.Setenv("LIGHTBOX_S3_ACCESS_KEY", "access")
	t.Setenv("LIGHTBOX_S3_SECRET_KEY", "secret")

	configPath := filepath.Join(t.TempDir(), "lightbox.toml")
	body := "[database]\ndriver = \"postgresql\"\ndsn = \"file-dsn\"\n"
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Vision.APIKey != "env-gemini" || !cfg.VisionEnabled() {
		t.Fatalf("expected vision key from env, got %q", cfg.Vision.APIKey)
	}
	if cfg.Database.Driver != config.DriverPostgres {
		t.Fatalf("expected postgres alias to normalize, got %q", cfg.Database.Driver)
	}
	if cfg.DatabaseDSN() != "postgres://lightbox@localhost/lightbox" {
		t.Fatalf("expected dsn from env, got %q", cfg.DatabaseDSN())
	}
	if cfg.Storage.AccessKey != "access" || cfg.Storage.SecretKey != "secret" {
		t.Fatalf("expected s3 credentials from env, got %q/%q", cfg.Storage.AccessKey, cfg.Storage.SecretKey)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"postgres without dsn", func(c *config.Config) { c.Database.Driver = config.DriverPostgres }, "database.dsn"},
		{"unknown driver", func(c *config.Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"s3 without bucket", func(c *config.Config) {
			c.Storage.Backend = config.StorageS3
			c.Storage.Endpoint = "localhost:9000"
		}, "storage.bucket"},
		{"zero concurrency", func(c *config.Config) { c.Enrichment.Concurrency = 0 }, "enrichment.concurrency"},
		{"bad policy", func(c *config.Config) { c.Enrichment.FailurePolicy = "retry" }, "enrichment.failure_policy"},
		{"thumbnail larger than preview", func(c *config.Config) { c.Enrichment.ThumbnailMaxPx = 4096 }, "thumbnail_max_px"},
		{"confidence out of range", func(c *config.Config) { c.Vision.MinConfidence = 1.5 }, "vision.min_confidence"},
		{"zero poll interval", func(c *config.Config) { c.Daemon.PollInterval = 0 }, "daemon.poll_interval"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Storage.Dir = t.TempDir()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample file to exist")
	}
	if cfg.Enrichment.Concurrency != config.Default().Enrichment.Concurrency {
		t.Fatalf("sample should match defaults, got concurrency %d", cfg.Enrichment.Concurrency)
	}
	if !cfg.Enrichment.HaltOnDuplicate {
		t.Fatal("expected halt_on_duplicate enabled in sample")
	}
}
