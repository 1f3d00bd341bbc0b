package config

const (
	defaultConfigPath          = "~/.config/lightbox/config.toml"
	defaultDataDir             = "~/.local/share/lightbox"
	defaultLogDir              = "~/.local/share/lightbox/logs"
	defaultLogRetentionDays    = 30
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultConcurrency         = 4
	defaultBatchParallelism    = 2
	defaultFailurePolicy       = "continue_on_error"
	defaultPreviewMaxPx        = 1280
	defaultThumbnailMaxPx      = 256
	defaultGraphCacheSize      = 32
	defaultDuplicateDistance   = 4
	defaultVisionProvider      = "gemini"
	defaultVisionModel         = "gemini-2.5-flash"
	defaultVisionTimeout       = 60
	defaultVisionMinConfidence = 0.5
	defaultNotifyTimeout       = 10
	defaultBatchMinPhotos      = 5
	defaultPollInterval        = 30
	defaultErrorRetryInterval  = 120
	defaultDaemonBatchSize     = 25
	defaultMinFreeGiB          = 1
	defaultS3Region            = "us-east-1"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	StorageFS      = "fs"
	StorageS3      = "s3"
)

// defaultDataProviders always re-run because their output is not persisted.
var defaultDataProviders = []string{"preview", "analyze"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Database: Database{
			Driver: DriverSQLite,
		},
		Storage: Storage{
			Backend: StorageFS,
			Region:  defaultS3Region,
			UseSSL:  true,
		},
		Enrichment: Enrichment{
			Concurrency:       defaultConcurrency,
			FailurePolicy:     defaultFailurePolicy,
			BatchParallelism:  defaultBatchParallelism,
			DataProviders:     append([]string(nil), defaultDataProviders...),
			PreviewMaxPx:      defaultPreviewMaxPx,
			ThumbnailMaxPx:    defaultThumbnailMaxPx,
			GraphCacheSize:    defaultGraphCacheSize,
			HaltOnDuplicate:   true,
			DuplicateDistance: defaultDuplicateDistance,
		},
		Vision: Vision{
			Provider:       defaultVisionProvider,
			Model:          defaultVisionModel,
			TimeoutSeconds: defaultVisionTimeout,
			MinConfidence:  defaultVisionMinConfidence,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			RunFailures:    true,
			Duplicates:     true,
			Batch:          true,
			BatchMinPhotos: defaultBatchMinPhotos,
		},
		Daemon: Daemon{
			PollInterval:       defaultPollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			BatchSize:          defaultDaemonBatchSize,
			MinFreeGiB:         defaultMinFreeGiB,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
