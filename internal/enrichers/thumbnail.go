package enrichers

import (
	"context"

	"lightbox/internal/blobstore"
	"lightbox/internal/enrich"
	"lightbox/internal/photo"
	"lightbox/internal/services"
)

func thumbnailUnit(d Deps) *builtin {
	return &builtin{
		desc: enrich.Descriptor{ID: IDThumbnail, Deps: []enrich.Identity{IDPreview}, Kind: photo.FlagThumbnail},
		run: func(ctx context.Context, v *view) (merge, error) {
			in := snapshot(v)
			if in.previewImage == nil {
				return nil, services.Wrap(services.ErrValidation, string(IDThumbnail), "input", "preview image not available", nil)
			}
			encoded, err := encodeJPEG(fit(in.previewImage, d.ThumbnailMaxPx))
			if err != nil {
				return nil, services.Wrap(services.ErrTransient, string(IDThumbnail), "encode", "encode thumbnail", err)
			}
			if d.Blobs == nil {
				return nil, nil
			}
			key := blobstore.PhotoKey(in.id, "thumbnail")
			if err := d.Blobs.Put(ctx, key, encoded, "image/jpeg"); err != nil {
				return nil, services.Wrap(services.ErrTransient, string(IDThumbnail), "store", "write thumbnail blob", err)
			}
			return func(r *photo.Record) { r.ThumbnailKey = key }, nil
		},
		reset: func(r *photo.Record) {
			r.ThumbnailKey = ""
		},
	}
}
