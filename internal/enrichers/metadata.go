package enrichers

import (
	"context"
	"errors"
	"strings"

	"lightbox/internal/enrich"
	"lightbox/internal/logging"
	"lightbox/internal/photo"
	"lightbox/internal/services"
)

func metadataUnit(d Deps) *builtin {
	return &builtin{
		desc: enrich.Descriptor{ID: IDMetadata, Deps: []enrich.Identity{IDPreview}, Kind: photo.FlagMetadata},
		run: func(ctx context.Context, v *view) (merge, error) {
			in := snapshot(v)
			if len(in.original) == 0 {
				return nil, services.Wrap(services.ErrValidation, string(IDMetadata), "input", "original image not loaded", nil)
			}
			data, err := readExif(in.original)
			if err != nil {
				if !errors.Is(err, errNoExif) {
					logging.WithContext(ctx, d.logger()).Debug("exif unreadable", logging.Error(err))
				}
				data = exifData{}
			}
			if data.Orientation < 1 || data.Orientation > 8 {
				data.Orientation = 1
			}
			return func(r *photo.Record) {
				r.CameraMake = strings.TrimSpace(data.Make)
				r.CameraModel = strings.TrimSpace(data.Model)
				r.Orientation = data.Orientation
				r.TakenAt = data.TakenAt
			}, nil
		},
		reset: func(r *photo.Record) {
			r.CameraMake = ""
			r.CameraModel = ""
			r.Orientation = 0
			r.TakenAt = nil
		},
	}
}
