package enrichers

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"lightbox/internal/blobstore"
	"lightbox/internal/enrich"
	"lightbox/internal/logging"
	"lightbox/internal/photo"
	"lightbox/internal/services"
)

func previewUnit(d Deps) *builtin {
	return &builtin{
		desc: enrich.Descriptor{ID: IDPreview, Kind: photo.FlagPreview},
		run: func(ctx context.Context, v *view) (merge, error) {
			in := snapshot(v)
			original := in.original
			if len(original) == 0 {
				data, err := readOriginal(in.path)
				if err != nil {
					return nil, err
				}
				original = data
			}

			img, format, err := decodeImage(original)
			if err != nil {
				return nil, services.Wrap(services.ErrValidation, string(IDPreview), "decode", "unsupported or corrupt image", err)
			}
			bounds := img.Bounds()
			preview := fit(img, d.PreviewMaxPx)
			encoded, err := encodeJPEG(preview)
			if err != nil {
				return nil, services.Wrap(services.ErrTransient, string(IDPreview), "encode", "encode preview", err)
			}

			var key string
			if d.Blobs != nil {
				key = blobstore.PhotoKey(in.id, "preview")
				if err := d.Blobs.Put(ctx, key, encoded, "image/jpeg"); err != nil {
					return nil, services.Wrap(services.ErrTransient, string(IDPreview), "store", "write preview blob", err)
				}
			}
			logging.WithContext(ctx, d.logger()).Debug("preview rendered",
				logging.Int("width", preview.Bounds().Dx()),
				logging.Int("height", preview.Bounds().Dy()),
				logging.Int("preview_bytes", len(encoded)),
			)

			return func(r *photo.Record) {
				r.Width = bounds.Dx()
				r.Height = bounds.Dy()
				r.Format = format
				r.SizeBytes = int64(len(original))
				if key != "" {
					r.PreviewKey = key
				}
				src := ensureSource(r)
				src.Original = original
				src.Preview = encoded
				src.PreviewImage = preview
			}, nil
		},
	}
}

func readOriginal(path string) ([]byte, error) {
	if path == "" {
		return nil, services.Wrap(services.ErrValidation, string(IDPreview), "read", "photo has no path", nil)
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, services.Wrap(services.ErrNotFound, string(IDPreview), "read", path, err)
	case err != nil:
		return nil, services.Wrap(services.ErrTransient, string(IDPreview), "read", path, err)
	}
	return data, nil
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return logging.NewNop()
	}
	return d.Logger
}
