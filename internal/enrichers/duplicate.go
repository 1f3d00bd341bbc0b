package enrichers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"lightbox/internal/enrich"
	"lightbox/internal/logging"
	"lightbox/internal/photo"
	"lightbox/internal/services"
)

// duplicateUnit fingerprints the photo and looks for earlier copies. An exact
// match halts the run when HaltOnDuplicate is set, so no analysis is spent
// on a file the library already has.
func duplicateUnit(d Deps) *builtin {
	return &builtin{
		desc: enrich.Descriptor{ID: IDDuplicate, Deps: []enrich.Identity{IDPreview}, Kind: photo.FlagDuplicate},
		run: func(ctx context.Context, v *view) (merge, error) {
			in := snapshot(v)
			if len(in.original) == 0 || in.previewImage == nil {
				return nil, services.Wrap(services.ErrValidation, string(IDDuplicate), "input", "preview not available", nil)
			}
			sum := sha256.Sum256(in.original)
			digest := hex.EncodeToString(sum[:])
			phash := differenceHash(in.previewImage)

			var match int64
			var exact bool
			if d.Duplicates != nil {
				var err error
				match, exact, err = d.Duplicates.FindDuplicate(ctx, in.id, digest, phash, d.DuplicateDistance)
				if err != nil {
					return nil, services.Wrap(services.ErrTransient, string(IDDuplicate), "lookup", "query library", err)
				}
			}

			m := func(r *photo.Record) {
				r.SHA256 = digest
				r.PerceptualHash = phash
				r.DuplicateOf = match
			}
			if match == 0 {
				return m, nil
			}
			logging.WithContext(ctx, d.logger()).Info("duplicate photo found",
				logging.String(logging.FieldEventType, "duplicate_found"),
				logging.Int64("duplicate_of", match),
				logging.Bool("exact", exact),
			)
			if exact && d.HaltOnDuplicate {
				return m, enrich.Halt(fmt.Sprintf("exact duplicate of photo #%d", match))
			}
			return m, nil
		},
		reset: func(r *photo.Record) {
			r.DuplicateOf = 0
		},
	}
}
