package enrichers_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"reflect"
	"testing"

	"lightbox/internal/blobstore"
	"lightbox/internal/enrich"
	"lightbox/internal/enrichers"
	"lightbox/internal/photo"
	"lightbox/internal/services"
)

type fakeAnalyzer struct {
	analysis *photo.Analysis
	faces    []photo.Face
	err      error
}

func (f *fakeAnalyzer) Analyze(context.Context, []byte, string) (*photo.Analysis, error) {
	return f.analysis, f.err
}

func (f *fakeAnalyzer) DetectFaces(context.Context, []byte, string, int, int) ([]photo.Face, error) {
	return f.faces, f.err
}

type fakeDuplicates struct {
	match int64
	exact bool
}

func (f fakeDuplicates) FindDuplicate(context.Context, int64, string, uint64, int) (int64, bool, error) {
	return f.match, f.exact, nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 4), G: 90, B: uint8(y * 4), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func newDeps(t *testing.T) (enrichers.Deps, *blobstore.FSStore) {
	t.Helper()
	blobs, err := blobstore.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	return enrichers.Deps{
		Blobs: blobs,
		Analyzer: &fakeAnalyzer{
			analysis: &photo.Analysis{
				Caption:    "a dog at sunset",
				Tags:       []photo.Tag{{Name: "Sunset  Beach", Confidence: 0.9}, {Name: "sunset beach", Confidence: 0.8}, {Name: "Dog", Confidence: 0.7}},
				Categories: []photo.Tag{{Name: "OUTDOOR", Confidence: 0.8}},
				Objects:    []photo.DetectedObject{{Name: "Dog", Confidence: 0.9, Box: image.Rect(0, 0, 500, 500)}},
				AdultScore: 0.01,
				RacyScore:  0.6,
				Model:      "test",
			},
			faces: []photo.Face{{Box: image.Rect(10, 0, 20, 10), Confidence: 0.9}},
		},
		PreviewMaxPx:      32,
		ThumbnailMaxPx:    16,
		HaltOnDuplicate:   true,
		DuplicateDistance: 4,
	}, blobs
}

func TestBuiltinUnitsEnrichRecord(t *testing.T) {
	deps, blobs := newDeps(t)
	registry := enrichers.Builtin(deps)
	rec := &photo.Record{ID: 7, Source: &photo.Source{Original: pngBytes(t, 64, 48)}}

	report, err := enrich.Execute(context.Background(), registry.Units(), rec, enrich.Options{Concurrency: 3})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !report.Succeeded() {
		t.Fatalf("expected success, got %s", report.Summary())
	}
	if rec.Flags != enrich.Kind(1<<12-1) {
		t.Fatalf("expected every flag set, got %s", photo.FormatFlags(rec.Flags))
	}
	if rec.Width != 64 || rec.Height != 48 || rec.Format != "png" {
		t.Fatalf("unexpected dimensions %dx%d %s", rec.Width, rec.Height, rec.Format)
	}
	if rec.Orientation != 1 || rec.TakenAt != nil {
		t.Fatalf("png without exif should default orientation, got %d %v", rec.Orientation, rec.TakenAt)
	}
	if got := rec.TagNames(); !reflect.DeepEqual(got, []string{"sunset beach", "dog"}) {
		t.Fatalf("unexpected tags %v", got)
	}
	if len(rec.Categories) != 1 || rec.Categories[0].Name != "Outdoor" {
		t.Fatalf("unexpected categories %+v", rec.Categories)
	}
	if rec.Caption != "A dog at sunset" {
		t.Fatalf("unexpected caption %q", rec.Caption)
	}
	if rec.IsAdult || !rec.IsRacy {
		t.Fatalf("unexpected content flags adult=%v racy=%v", rec.IsAdult, rec.IsRacy)
	}
	if len(rec.Objects) != 1 || rec.Objects[0].Name != "dog" || rec.Objects[0].Box != image.Rect(0, 0, 16, 12) {
		t.Fatalf("unexpected objects %+v", rec.Objects)
	}
	if len(rec.Faces) != 1 || rec.Faces[0].Box != image.Rect(10, 0, 20, 10) {
		t.Fatalf("unexpected faces %+v", rec.Faces)
	}
	if rec.SHA256 == "" || rec.DuplicateOf != 0 {
		t.Fatalf("unexpected fingerprint %q dup=%d", rec.SHA256, rec.DuplicateOf)
	}
	if rec.DominantColor == "" || rec.IsBlackWhite {
		t.Fatalf("unexpected color result %q bw=%v", rec.DominantColor, rec.IsBlackWhite)
	}
	for _, key := range []string{rec.PreviewKey, rec.ThumbnailKey} {
		if key == "" {
			t.Fatal("expected blob keys to be recorded")
		}
		if _, err := blobs.Get(context.Background(), key); err != nil {
			t.Fatalf("blob %s missing: %v", key, err)
		}
	}
	if rec.Source.PreviewImage.Bounds().Dx() != 32 {
		t.Fatalf("unexpected preview width %d", rec.Source.PreviewImage.Bounds().Dx())
	}
}

func TestExactDuplicateHaltsRun(t *testing.T) {
	deps, _ := newDeps(t)
	deps.Duplicates = fakeDuplicates{match: 3, exact: true}
	registry := enrichers.Builtin(deps)
	rec := &photo.Record{ID: 9, Source: &photo.Source{Original: pngBytes(t, 20, 20)}}

	report, err := enrich.Execute(context.Background(), registry.Units(), rec, enrich.Options{Concurrency: 1})
	if err != nil {
		t.Fatalf("halted runs should not return an error, got %v", err)
	}
	if report.Outcome != enrich.OutcomeHalted || report.HaltedBy != enrichers.IDDuplicate {
		t.Fatalf("expected halt by duplicate, got %s", report.Summary())
	}
	want := []enrich.Identity{enrichers.IDPreview, enrichers.IDMetadata, enrichers.IDDuplicate}
	if !reflect.DeepEqual(report.Completed, want) {
		t.Fatalf("completed = %v, want %v", report.Completed, want)
	}
	if report.State(enrichers.IDAnalyze) != enrich.StateSkipped {
		t.Fatalf("analysis should be skipped after an exact duplicate, got %s", report.State(enrichers.IDAnalyze))
	}
	if rec.DuplicateOf != 3 || !rec.Applied().Has(photo.FlagDuplicate) {
		t.Fatalf("duplicate result not merged: dup=%d flags=%s", rec.DuplicateOf, photo.FormatFlags(rec.Flags))
	}
}

func TestNearDuplicateDoesNotHalt(t *testing.T) {
	deps, _ := newDeps(t)
	deps.Duplicates = fakeDuplicates{match: 3}
	rec := &photo.Record{ID: 9, Source: &photo.Source{Original: pngBytes(t, 20, 20)}}

	report, err := enrich.Execute(context.Background(), enrichers.Builtin(deps).Units(), rec, enrich.Options{Concurrency: 2})
	if err != nil || !report.Succeeded() {
		t.Fatalf("expected success, got %v %s", err, report.Summary())
	}
	if rec.DuplicateOf != 3 {
		t.Fatalf("expected near duplicate recorded, got %d", rec.DuplicateOf)
	}
}

func TestPreviewFailureClassification(t *testing.T) {
	deps, _ := newDeps(t)
	registry := enrichers.Builtin(deps)
	unit, _ := registry.Lookup(enrichers.IDPreview)

	tests := []struct {
		name   string
		rec    *photo.Record
		marker error
	}{
		{name: "missing file", rec: &photo.Record{Path: "/nonexistent/photo.jpg"}, marker: services.ErrNotFound},
		{name: "no path", rec: &photo.Record{}, marker: services.ErrValidation},
		{name: "corrupt", rec: &photo.Record{Source: &photo.Source{Original: []byte("not an image")}}, marker: services.ErrValidation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := unit.Execute(context.Background(), enrich.NewView(tc.rec))
			if !errors.Is(err, tc.marker) {
				t.Fatalf("expected %v, got %v", tc.marker, err)
			}
			if photo.FailureStatus(err) != photo.StatusReview {
				t.Fatalf("expected review status for %v", err)
			}
		})
	}
}

func TestAnalyzerFailureSkipsDerivedUnits(t *testing.T) {
	deps, _ := newDeps(t)
	deps.Analyzer = &fakeAnalyzer{err: services.Wrap(services.ErrExternalTool, "analyze", "request", "boom", nil)}
	rec := &photo.Record{ID: 1, Source: &photo.Source{Original: pngBytes(t, 20, 20)}}

	report, err := enrich.Execute(context.Background(), enrichers.Builtin(deps).Units(), rec,
		enrich.Options{Concurrency: 4, Policy: enrich.ContinueOnError})
	if !errors.Is(err, enrich.ErrUnitFailed) || !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected unit failure wrapping the analyzer error, got %v", err)
	}
	for _, id := range []enrich.Identity{enrichers.IDTag, enrichers.IDCategory, enrichers.IDCaption, enrichers.IDAdult, enrichers.IDObjects} {
		skip, ok := report.Skip(id)
		if !ok || skip.BlockedBy != enrichers.IDAnalyze {
			t.Fatalf("expected %s skipped by analyze, got %+v", id, skip)
		}
	}
	if !rec.Applied().Has(photo.FlagThumbnail | photo.FlagColor | photo.FlagMetadata) {
		t.Fatalf("independent units should still complete, flags %s", photo.FormatFlags(rec.Flags))
	}
}

func TestRegistryActiveExpandsDependencies(t *testing.T) {
	deps, _ := newDeps(t)
	registry := enrichers.Builtin(deps)

	units, err := registry.Active([]string{"tag", "face"})
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	want := []enrich.Identity{enrichers.IDPreview, enrichers.IDMetadata, enrichers.IDAnalyze, enrichers.IDTag, enrichers.IDFace}
	if got := enrich.Identities(enrich.Descriptors(units)); !reflect.DeepEqual(got, want) {
		t.Fatalf("Active = %v, want %v", got, want)
	}
	if _, err := registry.Active([]string{"bogus"}); err == nil {
		t.Fatal("expected error for unknown unit")
	}
	all, err := registry.Active(nil)
	if err != nil || len(all) != 12 {
		t.Fatalf("expected every unit active, got %d (%v)", len(all), err)
	}

	kinds, err := registry.Kinds([]string{"preview", "analyze"})
	if err != nil || kinds != photo.FlagPreview|photo.FlagAnalyze {
		t.Fatalf("Kinds = %v, %v", kinds, err)
	}
}

func TestBuiltinWithoutAnalyzerOmitsVisionUnits(t *testing.T) {
	deps, _ := newDeps(t)
	deps.Analyzer = nil
	registry := enrichers.Builtin(deps)
	if _, ok := registry.Lookup(enrichers.IDAnalyze); ok {
		t.Fatal("analyze should not be registered without an analyzer")
	}
	if _, err := registry.Active([]string{"face"}); err == nil {
		t.Fatal("expected face to be unavailable")
	}
	if len(registry.Units()) != 5 {
		t.Fatalf("expected 5 local units, got %d", len(registry.Units()))
	}
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	unit := enrich.Func[*photo.Record]{Desc: enrich.Descriptor{ID: "x", Kind: 1}}
	_, err := enrichers.NewRegistry(unit, unit)
	if !errors.Is(err, enrich.ErrDuplicateIdentity) {
		t.Fatalf("expected duplicate identity error, got %v", err)
	}
}

func TestResetUnitsClearsOutputAndFlags(t *testing.T) {
	deps, _ := newDeps(t)
	registry := enrichers.Builtin(deps)
	rec := &photo.Record{
		Flags:         photo.FlagTag | photo.FlagCaption | photo.FlagColor,
		Tags:          []photo.Tag{{Name: "dog"}},
		Caption:       "A dog",
		DominantColor: "#FFFFFF",
	}
	tag, _ := registry.Lookup(enrichers.IDTag)
	caption, _ := registry.Lookup(enrichers.IDCaption)
	enrichers.ResetUnits(rec, []enrichers.Unit{tag, caption})

	if rec.Tags != nil || rec.Caption != "" {
		t.Fatalf("expected tag and caption cleared, got %+v %q", rec.Tags, rec.Caption)
	}
	if rec.Flags != photo.FlagColor || rec.DominantColor != "#FFFFFF" {
		t.Fatalf("unrelated output should be untouched, flags %s", photo.FormatFlags(rec.Flags))
	}
}
