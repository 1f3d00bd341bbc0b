package enrichers

import (
	"context"
	"image"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"lightbox/internal/enrich"
	"lightbox/internal/logging"
	"lightbox/internal/photo"
	"lightbox/internal/services"
)

// Content scores at or above these thresholds set the adult and racy flags.
const (
	adultThreshold = 0.5
	racyThreshold  = 0.5
)

func analyzeUnit(d Deps) *builtin {
	return &builtin{
		desc: enrich.Descriptor{ID: IDAnalyze, Deps: []enrich.Identity{IDPreview}, Kind: photo.FlagAnalyze},
		run: func(ctx context.Context, v *view) (merge, error) {
			in := snapshot(v)
			if len(in.preview) == 0 {
				return nil, services.Wrap(services.ErrValidation, string(IDAnalyze), "input", "preview not available", nil)
			}
			analysis, err := d.Analyzer.Analyze(ctx, in.preview, "image/jpeg")
			if err != nil {
				return nil, err
			}
			logging.WithContext(ctx, d.logger()).Debug("analysis received",
				logging.Int("tags", len(analysis.Tags)),
				logging.Int("objects", len(analysis.Objects)),
				logging.String("model", analysis.Model),
			)
			return func(r *photo.Record) { ensureSource(r).Analysis = analysis }, nil
		},
	}
}

// analysisUnit builds a unit that derives record fields from the shared
// analyzer output.
func analysisUnit(id enrich.Identity, kind enrich.Kind, derive func(in input, a *photo.Analysis) merge, reset func(*photo.Record)) *builtin {
	return &builtin{
		desc: enrich.Descriptor{ID: id, Deps: []enrich.Identity{IDAnalyze}, Kind: kind},
		run: func(_ context.Context, v *view) (merge, error) {
			in := snapshot(v)
			if in.analysis == nil {
				return nil, services.Wrap(services.ErrValidation, string(id), "input", "analysis not available", nil)
			}
			return derive(in, in.analysis), nil
		},
		reset: reset,
	}
}

func tagUnit() *builtin {
	return analysisUnit(IDTag, photo.FlagTag, func(_ input, a *photo.Analysis) merge {
		tags := normalizeLabels(a.Tags, cases.Lower(language.Und))
		return func(r *photo.Record) { r.Tags = tags }
	}, func(r *photo.Record) { r.Tags = nil })
}

func categoryUnit() *builtin {
	return analysisUnit(IDCategory, photo.FlagCategory, func(_ input, a *photo.Analysis) merge {
		categories := normalizeLabels(a.Categories, cases.Title(language.English))
		return func(r *photo.Record) { r.Categories = categories }
	}, func(r *photo.Record) { r.Categories = nil })
}

func captionUnit() *builtin {
	return analysisUnit(IDCaption, photo.FlagCaption, func(_ input, a *photo.Analysis) merge {
		caption := sentenceCase(a.Caption)
		return func(r *photo.Record) { r.Caption = caption }
	}, func(r *photo.Record) { r.Caption = "" })
}

func adultUnit() *builtin {
	return analysisUnit(IDAdult, photo.FlagAdult, func(_ input, a *photo.Analysis) merge {
		adult, racy := a.AdultScore, a.RacyScore
		return func(r *photo.Record) {
			r.AdultScore = adult
			r.RacyScore = racy
			r.IsAdult = adult >= adultThreshold
			r.IsRacy = racy >= racyThreshold
		}
	}, func(r *photo.Record) {
		r.AdultScore, r.RacyScore = 0, 0
		r.IsAdult, r.IsRacy = false, false
	})
}

// objectsUnit rescales analyzer boxes from the 0-1000 grid to preview pixels.
func objectsUnit() *builtin {
	return analysisUnit(IDObjects, photo.FlagObjectProperty, func(in input, a *photo.Analysis) merge {
		bounds := image.Rectangle{}
		if in.previewImage != nil {
			bounds = in.previewImage.Bounds()
		}
		lower := cases.Lower(language.Und)
		objects := make([]photo.DetectedObject, 0, len(a.Objects))
		for _, obj := range a.Objects {
			objects = append(objects, photo.DetectedObject{
				Name:       lower.String(strings.TrimSpace(obj.Name)),
				Confidence: obj.Confidence,
				Box:        rescaleBox(obj.Box, bounds),
			})
		}
		return func(r *photo.Record) { r.Objects = objects }
	}, func(r *photo.Record) { r.Objects = nil })
}

func normalizeLabels(labels []photo.Tag, caser cases.Caser) []photo.Tag {
	seen := make(map[string]struct{}, len(labels))
	out := make([]photo.Tag, 0, len(labels))
	for _, label := range labels {
		name := caser.String(strings.Join(strings.Fields(label.Name), " "))
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, photo.Tag{Name: name, Confidence: label.Confidence})
	}
	return out
}

func sentenceCase(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return ""
	}
	first, rest, _ := strings.Cut(text, " ")
	if rest == "" {
		return cases.Title(language.English).String(first)
	}
	return cases.Title(language.English, cases.NoLower).String(first) + " " + rest
}

func rescaleBox(box image.Rectangle, bounds image.Rectangle) image.Rectangle {
	if bounds.Empty() {
		return box
	}
	w, h := bounds.Dx(), bounds.Dy()
	return image.Rect(box.Min.X*w/1000, box.Min.Y*h/1000, box.Max.X*w/1000, box.Max.Y*h/1000)
}
