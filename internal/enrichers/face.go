package enrichers

import (
	"context"
	"image"

	"lightbox/internal/enrich"
	"lightbox/internal/logging"
	"lightbox/internal/photo"
	"lightbox/internal/services"
)

// faceUnit depends on metadata so detected boxes can be mapped from stored
// pixel order to the upright image using the EXIF orientation.
func faceUnit(d Deps) *builtin {
	return &builtin{
		desc: enrich.Descriptor{ID: IDFace, Deps: []enrich.Identity{IDPreview, IDMetadata}, Kind: photo.FlagFace},
		run: func(ctx context.Context, v *view) (merge, error) {
			in := snapshot(v)
			if len(in.preview) == 0 {
				return nil, services.Wrap(services.ErrValidation, string(IDFace), "input", "preview not available", nil)
			}
			faces, err := d.Analyzer.DetectFaces(ctx, in.preview, "image/jpeg", in.width, in.height)
			if err != nil {
				return nil, err
			}
			for i := range faces {
				faces[i].Box = orientBox(faces[i].Box, in.width, in.height, in.orientation)
			}
			logging.WithContext(ctx, d.logger()).Debug("faces detected", logging.Int("faces", len(faces)))
			return func(r *photo.Record) { r.Faces = faces }, nil
		},
		reset: func(r *photo.Record) { r.Faces = nil },
	}
}

// orientBox maps a box in a stored w x h image to display coordinates for
// EXIF orientation values 1 through 8.
func orientBox(box image.Rectangle, w, h, orientation int) image.Rectangle {
	point := func(x, y int) image.Point {
		switch orientation {
		case 2:
			return image.Pt(w-x, y)
		case 3:
			return image.Pt(w-x, h-y)
		case 4:
			return image.Pt(x, h-y)
		case 5:
			return image.Pt(y, x)
		case 6:
			return image.Pt(h-y, x)
		case 7:
			return image.Pt(h-y, w-x)
		case 8:
			return image.Pt(y, w-x)
		default:
			return image.Pt(x, y)
		}
	}
	a := point(box.Min.X, box.Min.Y)
	b := point(box.Max.X, box.Max.Y)
	return image.Rectangle{Min: a, Max: b}.Canon()
}
