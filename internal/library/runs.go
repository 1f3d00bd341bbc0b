package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lightbox/internal/enrich"
)

// RunRecord is the persisted summary of one enrichment run.
type RunRecord struct {
	ID          int64
	RunID       string
	PhotoID     int64
	Outcome     enrich.Outcome
	Policy      string
	Concurrency int
	Forced      bool
	Requested   []string
	Completed   []string
	Skipped     []string
	Failed      []string
	Flags       enrich.Kind
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Duration returns the wall time of the run.
func (r RunRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// NewRunRecord summarizes report for photoID. runErr is the error returned
// alongside the report, if any.
func NewRunRecord(photoID int64, requested []enrich.Identity, forced bool, report *enrich.Report, runErr error) RunRecord {
	rec := RunRecord{
		RunID:       report.RunID,
		PhotoID:     photoID,
		Outcome:     report.Outcome,
		Policy:      report.Policy.String(),
		Concurrency: report.Concurrency,
		Forced:      forced,
		Requested:   identityStrings(requested),
		Completed:   identityStrings(report.Completed),
		Skipped:     identityStrings(report.SkippedIDs()),
		Failed:      identityStrings(report.FailedIDs()),
		Flags:       report.Flags,
		StartedAt:   report.StartedAt,
		FinishedAt:  report.FinishedAt,
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	} else if report.HaltReason != "" {
		rec.Error = "halted: " + report.HaltReason
	}
	return rec
}

func identityStrings(ids []enrich.Identity) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

const runColumns = "id, run_id, photo_id, outcome, policy, concurrency, forced, requested, completed, skipped, failed, flags, error_message, started_at, finished_at"

// RecordRun stores rec and assigns its ID.
func (s *Store) RecordRun(ctx context.Context, rec *RunRecord) error {
	if rec == nil || rec.RunID == "" || rec.PhotoID == 0 {
		return errors.New("run record requires run id and photo id")
	}
	err := s.queryRow(ctx, s.db,
		`INSERT INTO enrichment_runs (
            run_id, photo_id, outcome, policy, concurrency, forced, requested,
            completed, skipped, failed, flags, error_message, started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		rec.RunID,
		rec.PhotoID,
		string(rec.Outcome),
		rec.Policy,
		rec.Concurrency,
		boolToInt(rec.Forced),
		joinList(rec.Requested),
		joinList(rec.Completed),
		joinList(rec.Skipped),
		joinList(rec.Failed),
		int64(rec.Flags),
		nullableString(rec.Error),
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.FinishedAt.UTC().Format(time.RFC3339Nano),
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs for a photo, newest first.
func (s *Store) ListRuns(ctx context.Context, photoID int64, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.query(ctx, s.db,
		`SELECT `+runColumns+` FROM enrichment_runs WHERE photo_id = ? ORDER BY id DESC LIMIT ?`, photoID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var out []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// GetRun loads a run by its run ID.
func (s *Store) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	row := s.queryRow(ctx, s.db, `SELECT `+runColumns+` FROM enrichment_runs WHERE run_id = ?`, runID)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return rec, nil
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*RunRecord, error) {
	var (
		rec        RunRecord
		outcome    string
		forced     int64
		requested  sql.NullString
		completed  sql.NullString
		skipped    sql.NullString
		failed     sql.NullString
		flags      int64
		errMessage sql.NullString
		startedRaw string
		finishRaw  string
	)
	if err := scanner.Scan(&rec.ID, &rec.RunID, &rec.PhotoID, &outcome, &rec.Policy, &rec.Concurrency,
		&forced, &requested, &completed, &skipped, &failed, &flags, &errMessage, &startedRaw, &finishRaw); err != nil {
		return nil, err
	}
	rec.Outcome = enrich.Outcome(outcome)
	rec.Forced = forced != 0
	rec.Requested = splitList(requested)
	rec.Completed = splitList(completed)
	rec.Skipped = splitList(skipped)
	rec.Failed = splitList(failed)
	rec.Flags = enrich.Kind(flags)
	rec.Error = errMessage.String
	if t, err := parseTimeString(startedRaw); err == nil {
		rec.StartedAt = t
	}
	if t, err := parseTimeString(finishRaw); err == nil {
		rec.FinishedAt = t
	}
	return &rec, nil
}
