package pipeline

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"lightbox/internal/enrich"
	"lightbox/internal/logging"
)

// BatchSummary aggregates the runs of one batch.
type BatchSummary struct {
	Processed int
	Failed    int
	UpToDate  int
	Duration  time.Duration
	Results   map[int64]*Result
	Errors    map[int64]error
}

// Total is the number of photos the batch looked at.
func (b BatchSummary) Total() int {
	return b.Processed + b.Failed + b.UpToDate
}

// EnrichBatch enriches ids with at most [enrichment] batch_parallelism runs in
// flight. A failing photo never stops the others; cancelling ctx stops
// dispatching new photos.
func (s *Service) EnrichBatch(ctx context.Context, ids []int64, req Request) BatchSummary {
	start := time.Now()
	summary := BatchSummary{
		Results: make(map[int64]*Result, len(ids)),
		Errors:  make(map[int64]error),
	}
	limit := s.cfg.Enrichment.BatchParallelism
	if limit < 1 {
		limit = 1
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(limit)
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			result, err := s.Enrich(ctx, id, req)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				summary.Failed++
				summary.Errors[id] = err
			case result.UpToDate():
				summary.UpToDate++
				summary.Results[id] = result
			case failedOutcome(result.Report.Outcome) || result.RolledBack:
				summary.Failed++
				summary.Results[id] = result
			default:
				summary.Processed++
				summary.Results[id] = result
			}
			return nil
		})
	}
	_ = g.Wait()
	summary.Duration = time.Since(start)

	s.logger.Info("batch finished",
		logging.String(logging.FieldEventType, "batch_complete"),
		logging.Int("photos", len(ids)),
		logging.Int("processed", summary.Processed),
		logging.Int("failed", summary.Failed),
		logging.Int("up_to_date", summary.UpToDate),
		logging.Duration("duration", summary.Duration),
	)
	return summary
}

// EnrichPending enriches up to limit pending photos, oldest first.
func (s *Service) EnrichPending(ctx context.Context, limit int, req Request) (BatchSummary, error) {
	pending, err := s.store.NextPending(ctx, limit)
	if err != nil {
		return BatchSummary{}, err
	}
	ids := make([]int64, 0, len(pending))
	for _, rec := range pending {
		ids = append(ids, rec.ID)
	}
	if len(ids) == 0 {
		return BatchSummary{Results: map[int64]*Result{}, Errors: map[int64]error{}}, nil
	}
	return s.EnrichBatch(ctx, ids, req), nil
}

func failedOutcome(outcome enrich.Outcome) bool {
	switch outcome {
	case enrich.OutcomeFailed, enrich.OutcomeCycleDetected, enrich.OutcomeCancelled:
		return true
	default:
		return false
	}
}
