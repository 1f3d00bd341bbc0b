package notifications

import (
	"context"
	"log/slog"

	"lightbox/internal/enrich"
	"lightbox/internal/logging"
	"lightbox/internal/photo"
)

// RunNotifier publishes failed runs and duplicate halts.
type RunNotifier struct {
	svc    Service
	logger *slog.Logger
}

// NewRunNotifier wraps svc. Publish errors are logged, never returned.
func NewRunNotifier(svc Service, logger *slog.Logger) *RunNotifier {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &RunNotifier{svc: svc, logger: logger}
}

// OnRunFinished implements the pipeline run observer.
func (n *RunNotifier) OnRunFinished(ctx context.Context, rec *photo.Record, report *enrich.Report, runErr error) {
	if n == nil || n.svc == nil || rec == nil || report == nil {
		return
	}
	var (
		event   Event
		payload Payload
	)
	switch {
	case report.Outcome == enrich.OutcomeFailed || report.Outcome == enrich.OutcomeCycleDetected:
		summary := report.Summary()
		if runErr != nil && report.Outcome == enrich.OutcomeCycleDetected {
			summary = runErr.Error()
		}
		event = EventRunFailed
		payload = Payload{"name": rec.Name, "photoID": rec.ID, "summary": summary}
	case rec.DuplicateOf != 0 && report.Flags.Has(photo.FlagDuplicate):
		event = EventDuplicateFound
		payload = Payload{"name": rec.Name, "photoID": rec.ID, "duplicateOf": rec.DuplicateOf}
	default:
		return
	}
	if err := n.svc.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, n.logger), "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "enrichment result is unaffected"),
		)
	}
}
