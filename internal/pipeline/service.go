package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"lightbox/internal/config"
	"lightbox/internal/enrich"
	"lightbox/internal/enrichers"
	"lightbox/internal/library"
	"lightbox/internal/logging"
	"lightbox/internal/photo"
	"lightbox/internal/services"
)

// Library is the persistence the pipeline needs. *library.Store implements it.
type Library interface {
	GetPhoto(ctx context.Context, id int64) (*photo.Record, error)
	SavePhoto(ctx context.Context, rec *photo.Record) error
	SetStatus(ctx context.Context, id int64, status photo.Status, message string) error
	NextPending(ctx context.Context, limit int) ([]*photo.Record, error)
	RecordRun(ctx context.Context, run *library.RunRecord) error
}

// Observer is told about every finished run after it has been persisted.
type Observer interface {
	OnRunFinished(ctx context.Context, rec *photo.Record, report *enrich.Report, runErr error)
}

// Request tunes a single enrichment.
type Request struct {
	// Units limits the run to these units (plus whatever they need). Empty
	// means every active unit that has not produced a result yet.
	Units []string
	// Force re-runs the selected units and their whole dependency closure,
	// discarding previous output. Empty Units with Force re-runs everything.
	Force           bool
	Concurrency     int
	ContinueOnError bool
}

// Result describes one Enrich call. Report is nil when nothing had to run.
type Result struct {
	Photo      *photo.Record
	Requested  []enrich.Identity
	Selected   []enrich.Identity
	Report     *enrich.Report
	Run        *library.RunRecord
	Err        error
	RolledBack bool
}

// UpToDate reports whether the photo already had every requested result.
func (r *Result) UpToDate() bool {
	return r != nil && r.Report == nil
}

// Service runs enrichment against the library.
type Service struct {
	cfg       *config.Config
	store     Library
	registry  *enrichers.Registry
	active    []enrichers.Unit
	descs     []enrich.Descriptor
	providers enrich.Kind
	policy    enrich.Policy
	logger    *slog.Logger
	graphs    *lru.Cache[string, *enrich.Graph]
	observers []Observer
}

// NewService resolves the active unit set from cfg and prepares the graph cache.
func NewService(cfg *config.Config, store Library, registry *enrichers.Registry, logger *slog.Logger, observers ...Observer) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("pipeline: nil config")
	}
	if store == nil || registry == nil {
		return nil, errors.New("pipeline: store and registry are required")
	}
	active, err := registry.Active(cfg.Enrichment.ActiveUnits)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "active units", "", err)
	}
	policy, err := enrich.ParsePolicy(cfg.Enrichment.FailurePolicy)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "failure policy", "", err)
	}
	size := cfg.Enrichment.GraphCacheSize
	if size <= 0 {
		size = 1
	}
	graphs, err := lru.New[string, *enrich.Graph](size)
	if err != nil {
		return nil, fmt.Errorf("pipeline: graph cache: %w", err)
	}

	svc := &Service{
		cfg:       cfg,
		store:     store,
		registry:  registry,
		active:    active,
		descs:     enrich.Descriptors(active),
		providers: dataProviders(registry, cfg.Enrichment.DataProviders),
		policy:    policy,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
		graphs:    graphs,
	}
	for _, obs := range observers {
		if obs != nil {
			svc.observers = append(svc.observers, obs)
		}
	}
	return svc, nil
}

// dataProviders resolves provider names to kinds. Providers that are not
// registered (vision units without an API key) are ignored.
func dataProviders(registry *enrichers.Registry, names []string) enrich.Kind {
	var kind enrich.Kind
	for _, name := range names {
		if unit, ok := registry.Lookup(enrich.Identity(strings.TrimSpace(name))); ok {
			kind |= unit.Descriptor().Kind
		}
	}
	return kind
}

// ActiveUnits returns the identities of the active units in registration order.
func (s *Service) ActiveUnits() []enrich.Identity {
	ids := make([]enrich.Identity, 0, len(s.descs))
	for _, desc := range s.descs {
		ids = append(ids, desc.ID)
	}
	return ids
}

// Enrich runs the units req selects against photo id. Unit failures are
// reported through Result.Err and the photo status; the returned error is
// reserved for problems loading, selecting or persisting.
func (s *Service) Enrich(ctx context.Context, id int64, req Request) (*Result, error) {
	rec, err := s.store.GetPhoto(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load photo %d: %w", id, err)
	}
	if rec == nil {
		return nil, services.Wrap(services.ErrNotFound, "pipeline", "load photo", fmt.Sprintf("photo %d", id), nil)
	}

	plan, err := s.plan(rec, req)
	if err != nil {
		return nil, err
	}
	result := &Result{Photo: rec, Requested: plan.requested, Selected: plan.selected}
	if len(plan.selected) == 0 {
		s.logger.Debug("photo up to date",
			logging.Int64(logging.FieldPhotoID, id),
			logging.String("flags", photo.FormatFlags(rec.Flags)),
		)
		return result, nil
	}

	runID := uuid.NewString()
	ctx = services.WithRunID(services.WithPhotoID(ctx, id), runID)
	logger := logging.WithContext(ctx, s.logger)

	previous := rec.Status
	if err := s.store.SetStatus(ctx, id, photo.StatusEnriching, ""); err != nil {
		return nil, fmt.Errorf("mark photo %d enriching: %w", id, err)
	}

	subject := rec
	if req.Force {
		subject = rec.Clone()
		enrichers.ResetUnits(subject, plan.units)
	}

	logger.Info("enrichment started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("units", enrich.JoinIdentities(plan.selected)),
		logging.Bool("forced", req.Force),
	)
	report, runErr := enrich.Run(ctx, plan.graph, plan.units, subject, s.runOptions(runID, req, logger))
	if report == nil {
		// Binding failed before anything ran.
		persistCtx := context.WithoutCancel(ctx)
		if err := s.store.SetStatus(persistCtx, id, photo.StatusFailed, runErr.Error()); err != nil {
			logger.Error("failed to persist run failure", logging.Error(err))
		}
		return nil, runErr
	}
	result.Report = report
	result.Err = runErr

	final := subject
	if req.Force && !fullSuccess(report, subject, plan.expected) {
		final = rec
		final.Status = previous
		final.ErrorMessage = "re-enrichment rolled back: " + report.Summary()
		result.RolledBack = true
	} else {
		applyOutcome(final, report, runErr, s.expected())
	}
	result.Photo = final

	persistCtx := context.WithoutCancel(ctx)
	if err := s.store.SavePhoto(persistCtx, final); err != nil {
		return result, fmt.Errorf("save photo %d: %w", id, err)
	}
	run := library.NewRunRecord(id, plan.requested, req.Force, report, runErr)
	if err := s.store.RecordRun(persistCtx, &run); err != nil {
		logging.WarnWithContext(logger, "failed to record run history", "run_history_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run is missing from history"),
		)
	} else {
		result.Run = &run
	}

	s.logRun(logger, final, report, result.RolledBack)
	for _, obs := range s.observers {
		obs.OnRunFinished(persistCtx, final, report, runErr)
	}
	return result, nil
}

func (s *Service) runOptions(runID string, req Request, logger *slog.Logger) enrich.Options {
	opts := enrich.Options{
		Concurrency: s.cfg.Enrichment.Concurrency,
		Policy:      s.policy,
		RunID:       runID,
		Logger:      logger,
	}
	if req.Concurrency > 0 {
		opts.Concurrency = req.Concurrency
	}
	if req.ContinueOnError {
		opts.Policy = enrich.ContinueOnError
	}
	if s.cfg.Enrichment.LogTimings {
		opts.Observer = timingObserver(logger)
	}
	return opts
}

// expected returns the flags of every active unit.
func (s *Service) expected() enrich.Kind {
	var kind enrich.Kind
	for _, desc := range s.descs {
		kind |= desc.Kind
	}
	return kind
}

func fullSuccess(report *enrich.Report, subject *photo.Record, expected enrich.Kind) bool {
	return report.Succeeded() && (expected == 0 || subject.Applied().Has(expected))
}

// applyOutcome sets the status and error message for report on rec.
func applyOutcome(rec *photo.Record, report *enrich.Report, runErr error, expected enrich.Kind) {
	now := time.Now().UTC()
	rec.ErrorMessage = ""
	switch report.Outcome {
	case enrich.OutcomeSucceeded:
		rec.Status = photo.StatusPartial
		if expected == 0 || rec.Applied().Has(expected) {
			rec.Status = photo.StatusEnriched
		}
		rec.EnrichedAt = &now
	case enrich.OutcomeHalted:
		rec.Status = photo.StatusPartial
		if rec.DuplicateOf != 0 {
			rec.Status = photo.StatusDuplicate
		}
		rec.ErrorMessage = report.HaltReason
		rec.EnrichedAt = &now
	case enrich.OutcomeCancelled:
		rec.Status = photo.StatusPending
		rec.ErrorMessage = "enrichment cancelled"
	case enrich.OutcomeFailed:
		rec.Status = photo.StatusFailed
		if len(report.Failed) > 0 {
			rec.Status = photo.FailureStatus(report.Failed[0].Err)
		}
		if runErr != nil {
			rec.ErrorMessage = runErr.Error()
		}
	default:
		rec.Status = photo.StatusFailed
		if runErr != nil {
			rec.ErrorMessage = runErr.Error()
		}
	}
}

func (s *Service) logRun(logger *slog.Logger, rec *photo.Record, report *enrich.Report, rolledBack bool) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("outcome", string(report.Outcome)),
		logging.String("status", string(rec.Status)),
		logging.String("flags", photo.FormatFlags(rec.Flags)),
		logging.Int("completed", len(report.Completed)),
		logging.Int("failed", len(report.Failed)),
		logging.Int("skipped", len(report.Skipped)),
		logging.Duration("duration", report.Duration()),
	}
	if rolledBack {
		attrs = append(attrs,
			logging.Bool("rolled_back", true),
			logging.String(logging.FieldImpact, "previous results kept"),
		)
		logging.WarnWithContext(logger, "forced re-enrichment rolled back", "run_rolled_back", attrs...)
		return
	}
	if report.Outcome == enrich.OutcomeFailed || report.Outcome == enrich.OutcomeCycleDetected {
		logger.Warn("enrichment finished with failures", logging.Args(attrs...)...)
		return
	}
	logger.Info("enrichment finished", logging.Args(attrs...)...)
}

func timingObserver(logger *slog.Logger) func(enrich.Event) {
	return func(ev enrich.Event) {
		switch ev.Type {
		case enrich.EventCompleted, enrich.EventFailed, enrich.EventHalted:
			logger.Info("unit timing",
				logging.String(logging.FieldEventType, "unit_timing"),
				logging.String(logging.FieldUnit, string(ev.Unit)),
				logging.String("result", string(ev.Type)),
				logging.Duration("elapsed", ev.Elapsed),
			)
		}
	}
}

// CachedGraphs returns the number of compiled graphs held in the cache.
func (s *Service) CachedGraphs() int {
	return s.graphs.Len()
}
