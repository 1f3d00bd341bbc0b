package enrichers

import (
	"context"
	"image"
	"log/slog"
	"slices"

	"lightbox/internal/blobstore"
	"lightbox/internal/enrich"
	"lightbox/internal/photo"
	"lightbox/internal/services/vision"
)

// Built-in unit identities.
const (
	IDPreview   enrich.Identity = "preview"
	IDMetadata  enrich.Identity = "metadata"
	IDDuplicate enrich.Identity = "duplicate"
	IDThumbnail enrich.Identity = "thumbnail"
	IDColor     enrich.Identity = "color"
	IDAnalyze   enrich.Identity = "analyze"
	IDTag       enrich.Identity = "tag"
	IDCategory  enrich.Identity = "category"
	IDCaption   enrich.Identity = "caption"
	IDAdult     enrich.Identity = "adult"
	IDObjects   enrich.Identity = "objects"
	IDFace      enrich.Identity = "face"
)

// Unit is an enrichment unit over a photo record.
type Unit = enrich.Unit[*photo.Record]

type (
	view  = enrich.View[*photo.Record]
	merge = enrich.Merge[*photo.Record]
)

// Resetter is implemented by units whose previous output must be cleared
// before a forced re-run.
type Resetter interface {
	Reset(r *photo.Record)
}

// DuplicateFinder looks up library photos that share content with a photo.
// It returns 0 when nothing matches; exact is true when the SHA-256 matched.
type DuplicateFinder interface {
	FindDuplicate(ctx context.Context, photoID int64, sha256 string, phash uint64, maxDistance int) (match int64, exact bool, err error)
}

// Deps are the collaborators and tuning knobs shared by the built-in units.
type Deps struct {
	Blobs      blobstore.Store
	Analyzer   vision.Analyzer
	Duplicates DuplicateFinder
	Logger     *slog.Logger

	PreviewMaxPx      int
	ThumbnailMaxPx    int
	HaltOnDuplicate   bool
	DuplicateDistance int
}

type builtin struct {
	desc  enrich.Descriptor
	run   func(ctx context.Context, v *view) (merge, error)
	reset func(r *photo.Record)
}

func (u *builtin) Descriptor() enrich.Descriptor {
	desc := u.desc
	desc.Deps = slices.Clone(u.desc.Deps)
	return desc
}

func (u *builtin) Execute(ctx context.Context, v *view) (merge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return u.run(ctx, v)
}

func (u *builtin) Reset(r *photo.Record) {
	if u.reset != nil {
		u.reset(r)
	}
}

// input is a copy of the record fields units read. Slices and images in
// Source are never mutated after they are merged, so sharing them is safe.
type input struct {
	id           int64
	path         string
	width        int
	height       int
	orientation  int
	original     []byte
	preview      []byte
	previewImage image.Image
	analysis     *photo.Analysis
}

func snapshot(v *view) input {
	var in input
	v.Read(func(r *photo.Record) {
		in.id = r.ID
		in.path = r.Path
		in.width = r.Width
		in.height = r.Height
		in.orientation = r.Orientation
		if r.Source != nil {
			in.original = r.Source.Original
			in.preview = r.Source.Preview
			in.previewImage = r.Source.PreviewImage
			in.analysis = r.Source.Analysis
		}
	})
	return in
}

func ensureSource(r *photo.Record) *photo.Source {
	if r.Source == nil {
		r.Source = &photo.Source{}
	}
	return r.Source
}
