package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"lightbox/internal/blobstore"
	"lightbox/internal/config"
	"lightbox/internal/enrichers"
	"lightbox/internal/library"
	"lightbox/internal/logging"
	"lightbox/internal/notifications"
	"lightbox/internal/pipeline"
	"lightbox/internal/services/vision"
)

type commandContext struct {
	configFlag *string
	verbose    *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	app *application
}

// application holds the collaborators shared by commands that touch the library.
type application struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *library.Store
	blobs    blobstore.Store
	registry *enrichers.Registry
	notifier notifications.Service
	pipeline *pipeline.Service
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// cliLogger writes to stderr so command output stays parseable.
func (c *commandContext) cliLogger(cfg *config.Config) (*slog.Logger, error) {
	level := "warn"
	if c.verbose != nil && *c.verbose {
		level = cfg.Logging.Level
	}
	return logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr"},
	})
}

// application opens the store and builds the enrichment stack once per
// process. logger overrides the CLI logger when non-nil.
func (c *commandContext) application(ctx context.Context, logger *slog.Logger) (*application, error) {
	if c.app != nil {
		return c.app, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		if logger, err = c.cliLogger(cfg); err != nil {
			return nil, err
		}
	}

	store, err := library.Open(cfg)
	if err != nil {
		return nil, err
	}
	blobs, err := blobstore.New(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	deps := enrichers.Deps{
		Blobs:             blobs,
		Duplicates:        store,
		Logger:            logger,
		PreviewMaxPx:      cfg.Enrichment.PreviewMaxPx,
		ThumbnailMaxPx:    cfg.Enrichment.ThumbnailMaxPx,
		HaltOnDuplicate:   cfg.Enrichment.HaltOnDuplicate,
		DuplicateDistance: cfg.Enrichment.DuplicateDistance,
	}
	if cfg.VisionEnabled() {
		client, err := vision.NewClient(ctx, vision.Config{
			APIKey:        cfg.Vision.APIKey,
			Model:         cfg.Vision.Model,
			Timeout:       cfg.VisionTimeout(),
			MinConfidence: cfg.Vision.MinConfidence,
		})
		if err != nil {
			store.Close()
			return nil, err
		}
		deps.Analyzer = client
	}
	registry := enrichers.Builtin(deps)

	notifier := notifications.NewService(cfg)
	svc, err := pipeline.NewService(cfg, store, registry, logger, notifications.NewRunNotifier(notifier, logger))
	if err != nil {
		store.Close()
		return nil, err
	}

	c.app = &application{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		blobs:    blobs,
		registry: registry,
		notifier: notifier,
		pipeline: svc,
	}
	return c.app, nil
}

func (c *commandContext) close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.store.Close()
	c.app = nil
	return err
}

func (c *commandContext) withApplication(cmd *cobra.Command, fn func(*application) error) error {
	app, err := c.application(cmd.Context(), nil)
	if err != nil {
		return err
	}
	return fn(app)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(arg), "#"), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid photo id %q", arg)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, errors.New("at least one photo id is required")
	}
	return ids, nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
