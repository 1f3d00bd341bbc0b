package library_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"lightbox/internal/enrich"
	"lightbox/internal/library"
	"lightbox/internal/testsupport"
)

func TestRecordAndListRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	rec, _, err := store.AddPhoto(ctx, "/runs.jpg")
	if err != nil {
		t.Fatalf("AddPhoto: %v", err)
	}
	started := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	report := &enrich.Report{
		RunID:       "run-1",
		Outcome:     enrich.OutcomeFailed,
		Policy:      enrich.ContinueOnError,
		Concurrency: 2,
		Completed:   []enrich.Identity{"preview", "metadata"},
		Skipped:     []enrich.SkipRecord{{ID: "tag", BlockedBy: "analyze"}},
		Failed:      []enrich.FailureRecord{{ID: "analyze", Err: errors.New("boom")}},
		Flags:       3,
		StartedAt:   started,
		FinishedAt:  started.Add(1500 * time.Millisecond),
	}
	run := library.NewRunRecord(rec.ID, []enrich.Identity{"tag"}, true, report, errors.New("unit analyze failed: boom"))
	if err := store.RecordRun(ctx, &run); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if run.ID == 0 {
		t.Fatal("expected run id to be assigned")
	}

	second := library.NewRunRecord(rec.ID, nil, false, &enrich.Report{
		RunID: "run-2", Outcome: enrich.OutcomeSucceeded, Concurrency: 1,
		StartedAt: started.Add(time.Hour), FinishedAt: started.Add(time.Hour),
	}, nil)
	if err := store.RecordRun(ctx, &second); err != nil {
		t.Fatalf("RecordRun second: %v", err)
	}

	runs, err := store.ListRuns(ctx, rec.ID, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "run-2" {
		t.Fatalf("expected newest run first, got %+v", runs)
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil || got == nil {
		t.Fatalf("GetRun: %+v %v", got, err)
	}
	if got.Outcome != enrich.OutcomeFailed || got.Policy != "continue_on_error" || !got.Forced {
		t.Fatalf("unexpected run summary %+v", got)
	}
	if !reflect.DeepEqual(got.Completed, []string{"preview", "metadata"}) ||
		!reflect.DeepEqual(got.Skipped, []string{"tag"}) ||
		!reflect.DeepEqual(got.Failed, []string{"analyze"}) ||
		!reflect.DeepEqual(got.Requested, []string{"tag"}) {
		t.Fatalf("unexpected unit lists %+v", got)
	}
	if got.Duration() != 1500*time.Millisecond || got.Error == "" {
		t.Fatalf("unexpected duration %s or error %q", got.Duration(), got.Error)
	}

	if missing, err := store.GetRun(ctx, "nope"); err != nil || missing != nil {
		t.Fatalf("expected nil for unknown run, got %+v %v", missing, err)
	}
	if err := store.RecordRun(ctx, &library.RunRecord{}); err == nil {
		t.Fatal("expected validation error for empty run")
	}
}

func TestNewRunRecordNotesHalt(t *testing.T) {
	run := library.NewRunRecord(1, nil, false, &enrich.Report{
		RunID: "r", Outcome: enrich.OutcomeHalted, HaltReason: "exact duplicate of photo #3",
	}, nil)
	if run.Error != "halted: exact duplicate of photo #3" {
		t.Fatalf("unexpected error text %q", run.Error)
	}
}
