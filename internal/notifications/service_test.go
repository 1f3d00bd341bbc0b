package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"lightbox/internal/config"
	"lightbox/internal/enrich"
	"lightbox/internal/notifications"
	"lightbox/internal/photo"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newServer(t *testing.T, status int) (*httptest.Server, func() []captured) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []captured
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		seen = append(seen, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, func() []captured {
		mu.Lock()
		defer mu.Unlock()
		return append([]captured(nil), seen...)
	}
}

func configFor(url string) *config.Config {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = url
	cfg.Notifications.RequestTimeout = 5
	cfg.Notifications.BatchMinPhotos = 2
	return &cfg
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:           "run failed",
			event:          notifications.EventRunFailed,
			payload:        notifications.Payload{"name": "beach.jpg", "photoID": int64(12), "summary": "failed: 3 completed"},
			expectTitle:    "Lightbox - Enrichment Failed",
			expectMessage:  "❌ beach.jpg (#12): failed: 3 completed",
			expectTags:     "lightbox,enrich,failed",
			expectPriority: "high",
		},
		{
			name:          "duplicate",
			event:         notifications.EventDuplicateFound,
			payload:       notifications.Payload{"name": "copy.jpg", "photoID": int64(9), "duplicateOf": int64(3)},
			expectTitle:   "Lightbox - Duplicate Photo",
			expectMessage: "🔁 copy.jpg (#9) duplicates photo #3",
			expectTags:    "lightbox,duplicate",
		},
		{
			name:          "batch completed",
			event:         notifications.EventBatchCompleted,
			payload:       notifications.Payload{"processed": 4, "failed": 0, "duration": 90 * time.Second},
			expectTitle:   "Lightbox - Batch Complete",
			expectMessage: "✅ Enriched 4 photos in 1m30s",
			expectTags:    "lightbox,batch,completed",
		},
		{
			name:           "error",
			event:          notifications.EventError,
			payload:        notifications.Payload{"context": "daemon", "error": errors.New("disk full")},
			expectTitle:    "Lightbox - Error",
			expectMessage:  "❌ Error with daemon: disk full",
			expectTags:     "lightbox,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server, seen := newServer(t, http.StatusOK)
			svc := notifications.NewService(configFor(server.URL))
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}
			got := seen()
			if len(got) != 1 {
				t.Fatalf("expected 1 request, got %d", len(got))
			}
			if got[0].title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, got[0].title)
			}
			if got[0].body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, got[0].body)
			}
			if got[0].tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, got[0].tags)
			}
			if got[0].priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, got[0].priority)
			}
		})
	}
}

func TestNtfyServiceSuppressesDisabledEvents(t *testing.T) {
	server, seen := newServer(t, http.StatusOK)
	cfg := configFor(server.URL)
	cfg.Notifications.Duplicates = false
	svc := notifications.NewService(cfg)

	ctx := context.Background()
	_ = svc.Publish(ctx, notifications.EventDuplicateFound, notifications.Payload{"name": "x"})
	_ = svc.Publish(ctx, notifications.EventBatchCompleted, notifications.Payload{"processed": 1})
	_ = svc.Publish(ctx, notifications.Event("unknown"), nil)
	if got := seen(); len(got) != 0 {
		t.Fatalf("expected no requests, got %+v", got)
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server, _ := newServer(t, http.StatusForbidden)
	svc := notifications.NewService(configFor(server.URL))
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err == nil {
		t.Fatal("expected error for 403 response")
	}
}

func TestRunNotifier(t *testing.T) {
	server, seen := newServer(t, http.StatusOK)
	notifier := notifications.NewRunNotifier(notifications.NewService(configFor(server.URL)), nil)
	ctx := context.Background()
	rec := &photo.Record{ID: 5, Name: "dup.jpg", DuplicateOf: 2}

	notifier.OnRunFinished(ctx, rec, &enrich.Report{Outcome: enrich.OutcomeSucceeded}, nil)
	notifier.OnRunFinished(ctx, rec, &enrich.Report{Outcome: enrich.OutcomeHalted, Flags: photo.FlagDuplicate}, nil)
	notifier.OnRunFinished(ctx, &photo.Record{ID: 6, Name: "bad.jpg"},
		&enrich.Report{Outcome: enrich.OutcomeFailed, Failed: []enrich.FailureRecord{{ID: "preview"}}}, errors.New("boom"))

	got := seen()
	if len(got) != 2 {
		t.Fatalf("expected duplicate and failure notifications, got %+v", got)
	}
	if got[0].title != "Lightbox - Duplicate Photo" || got[1].title != "Lightbox - Enrichment Failed" {
		t.Fatalf("unexpected notifications %+v", got)
	}
	if got[1].body != "❌ bad.jpg (#6): failed: 0 completed, 1 failed (preview)" {
		t.Fatalf("unexpected failure body %q", got[1].body)
	}
}
