package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"lightbox/internal/config"
	"lightbox/internal/ingest"
	"lightbox/internal/logging"
	"lightbox/internal/notifications"
	"lightbox/internal/photo"
	"lightbox/internal/pipeline"
	"lightbox/internal/preflight"
)

// Library is the store surface the daemon uses directly.
type Library interface {
	ResetStuck(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (map[photo.Status]int, error)
	preflight.Pinger
}

// Daemon runs the poll loop and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    Library
	pipeline *pipeline.Service
	scanner  *ingest.Scanner
	notifier notifications.Service
	targets  preflight.Targets

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu        sync.RWMutex
	lastCycle *CycleStats
	lastErr   error
}

// CycleStats summarizes one poll cycle.
type CycleStats struct {
	StartedAt time.Time
	Duration  time.Duration
	Ingested  int
	Batch     pipeline.BatchSummary
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	LockFilePath string
	Photos       map[photo.Status]int
	LastCycle    *CycleStats
	LastError    error
}

// Option configures optional daemon collaborators.
type Option func(*Daemon)

// WithNotifier overrides the notification service built from config.
func WithNotifier(n notifications.Service) Option {
	return func(d *Daemon) { d.notifier = n }
}

// WithPreflightTargets sets the live collaborators probed before each cycle.
func WithPreflightTargets(t preflight.Targets) Option {
	return func(d *Daemon) { d.targets = t }
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store Library, svc *pipeline.Service, scanner *ingest.Scanner, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || svc == nil || scanner == nil {
		return nil, errors.New("daemon requires config, store, pipeline, and scanner")
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		pipeline: svc,
		scanner:  scanner,
		notifier: notifications.NewService(cfg),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.targets.Database == nil {
		d.targets.Database = store
	}
	return d, nil
}

// Start acquires the lock, recovers photos left mid-run and launches the
// poll loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another lightbox daemon instance is already running")
	}

	reset, err := d.store.ResetStuck(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("reset interrupted photos: %w", err)
	}
	if reset > 0 {
		d.logger.Info("interrupted photos returned to pending",
			logging.Int64("count", reset),
			logging.String(logging.FieldEventType, "reset_stuck"),
		)
	}
	d.pruneLogs()

	loopCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running.Store(true)
	d.wg.Add(1)
	go d.loop(loopCtx)

	d.logger.Info("lightbox daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("watch_dirs", len(d.cfg.Paths.WatchDirs)),
	)
	return nil
}

// Stop stops the poll loop, waits for the current cycle and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("lightbox daemon stopped")
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		LockFilePath: d.lockPath,
	}
	if stats, err := d.store.Stats(ctx); err == nil {
		status.Photos = stats
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	status.LastCycle = d.lastCycle
	status.LastError = d.lastErr
	return status
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) error {
	return d.notifier.Publish(ctx, notifications.EventTest, nil)
}

func (d *Daemon) loop(ctx context.Context) {
	defer d.wg.Done()

	poll := time.Duration(d.cfg.Daemon.PollInterval) * time.Second
	retry := time.Duration(d.cfg.Daemon.ErrorRetryInterval) * time.Second
	for {
		wait := poll
		if _, err := d.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			wait = retry
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// RunCycle performs one preflight, ingest and enrichment pass.
func (d *Daemon) RunCycle(ctx context.Context) (*CycleStats, error) {
	stats := &CycleStats{StartedAt: time.Now()}
	err := d.runCycle(ctx, stats)
	stats.Duration = time.Since(stats.StartedAt)

	d.mu.Lock()
	d.lastCycle = stats
	d.lastErr = err
	d.mu.Unlock()
	return stats, err
}

func (d *Daemon) runCycle(ctx context.Context, stats *CycleStats) error {
	results := preflight.RunAll(ctx, d.cfg, d.targets)
	if failed := preflight.Failed(results); len(failed) > 0 {
		attrs := []logging.Attr{
			logging.Int("failed_checks", len(failed)),
			logging.String(logging.FieldErrorHint, "run lightbox check for details"),
			logging.String(logging.FieldImpact, "enrichment paused until the next retry"),
		}
		for _, r := range failed {
			attrs = append(attrs, logging.String(r.Name, r.Detail))
		}
		logging.WarnWithContext(d.logger, "preflight failed", "preflight_failed", attrs...)
		return fmt.Errorf("preflight: %s: %s", failed[0].Name, failed[0].Detail)
	}

	if len(d.cfg.Paths.WatchDirs) > 0 {
		scan, err := d.scanner.Scan(ctx, d.cfg.Paths.WatchDirs...)
		if err != nil {
			return fmt.Errorf("scan watch directories: %w", err)
		}
		stats.Ingested = len(scan.Added)
		for _, scanErr := range scan.Errors {
			d.logger.Warn("ingest error", logging.Error(scanErr))
		}
	}

	batch, err := d.pipeline.EnrichPending(ctx, d.cfg.Daemon.BatchSize, pipeline.Request{})
	if err != nil {
		d.notifyError(ctx, err)
		return fmt.Errorf("enrich pending: %w", err)
	}
	stats.Batch = batch
	if batch.Total() > 0 {
		payload := notifications.Payload{
			"processed": batch.Processed,
			"failed":    batch.Failed,
			"duration":  batch.Duration,
		}
		if err := d.notifier.Publish(ctx, notifications.EventBatchCompleted, payload); err != nil {
			d.logger.Warn("batch notification failed", logging.Error(err))
		}
	}
	return nil
}

func (d *Daemon) notifyError(ctx context.Context, err error) {
	payload := notifications.Payload{"context": "daemon", "error": err}
	if pubErr := d.notifier.Publish(ctx, notifications.EventError, payload); pubErr != nil {
		d.logger.Warn("error notification failed", logging.Error(pubErr))
	}
}

func (d *Daemon) pruneLogs() {
	removed := logging.CleanupOldLogs(d.logger, d.cfg.Logging.RetentionDays, logging.RetentionTarget{
		Dir:     d.cfg.Paths.LogDir,
		Pattern: "*.log",
		Exclude: []string{d.cfg.LogPath()},
	})
	if removed > 0 {
		d.logger.Info("old logs pruned", logging.Int("removed", removed))
	}
}
