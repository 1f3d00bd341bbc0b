package photo_test

import (
	"errors"
	"testing"
	"time"

	"lightbox/internal/photo"
	"lightbox/internal/services"
)

func TestRecordFlags(t *testing.T) {
	rec := &photo.Record{}
	rec.MarkApplied(photo.FlagPreview)
	rec.MarkApplied(photo.FlagMetadata | photo.FlagFace)
	if !rec.Applied().Has(photo.FlagPreview | photo.FlagFace) {
		t.Fatalf("expected preview and face applied, got %s", photo.FormatFlags(rec.Flags))
	}
	rec.ClearFlags(photo.FlagFace)
	if rec.Applied().Has(photo.FlagFace) {
		t.Fatal("expected face cleared")
	}
	if got := photo.FormatFlags(rec.Flags); got != "metadata,preview" {
		t.Fatalf("FormatFlags = %q", got)
	}
	if photo.FormatFlags(0) != "none" {
		t.Fatal("expected none for empty flags")
	}
}

func TestRecordCloneIsDeep(t *testing.T) {
	taken := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rec := &photo.Record{
		ID:      7,
		Tags:    []photo.Tag{{Name: "beach", Confidence: 0.9}},
		Faces:   []photo.Face{{Confidence: 0.8}},
		TakenAt: &taken,
	}
	clone := rec.Clone()
	clone.Tags[0].Name = "mountain"
	clone.Faces = append(clone.Faces, photo.Face{})
	*clone.TakenAt = taken.Add(time.Hour)

	if rec.Tags[0].Name != "beach" || len(rec.Faces) != 1 || !rec.TakenAt.Equal(taken) {
		t.Fatalf("clone mutated original: %+v", rec)
	}
}

func TestFailureStatus(t *testing.T) {
	tests := []struct {
		err  error
		want photo.Status
	}{
		{services.Wrap(services.ErrValidation, "metadata", "decode", "unsupported format", nil), photo.StatusReview},
		{services.Wrap(services.ErrNotFound, "preview", "open", "file missing", nil), photo.StatusReview},
		{services.Wrap(services.ErrExternalTool, "analyze", "generate", "503", errors.New("io")), photo.StatusFailed},
		{nil, photo.StatusFailed},
	}
	for _, tc := range tests {
		if got := photo.FailureStatus(tc.err); got != tc.want {
			t.Fatalf("FailureStatus(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if s, ok := photo.ParseStatus("duplicate"); !ok || s != photo.StatusDuplicate {
		t.Fatalf("ParseStatus = %q %v", s, ok)
	}
	if _, ok := photo.ParseStatus("archived"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
}
