// Package ingest registers image files with the photo library.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"lightbox/internal/logging"
	"lightbox/internal/photo"
)

// Registrar adds a path to the library. *library.Store implements it.
type Registrar interface {
	AddPhoto(ctx context.Context, path string) (*photo.Record, bool, error)
}

var supportedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
}

// Supported reports whether path has an image extension the units can decode.
func Supported(path string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Summary counts what a scan did.
type Summary struct {
	Added    []*photo.Record
	Existing int
	Skipped  int
	Errors   []error
}

// Scanner walks files and directories and registers supported images.
type Scanner struct {
	library Registrar
	logger  *slog.Logger
}

// NewScanner returns a scanner that registers into library.
func NewScanner(library Registrar, logger *slog.Logger) *Scanner {
	return &Scanner{library: library, logger: logging.NewComponentLogger(logger, "ingest")}
}

// Scan registers every supported image under paths. Directories are walked
// recursively; hidden files and directories are ignored. A path that cannot
// be read is recorded in Summary.Errors and does not stop the scan.
func (s *Scanner) Scan(ctx context.Context, paths ...string) (Summary, error) {
	var summary Summary
	for _, root := range paths {
		abs, err := filepath.Abs(root)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Errorf("resolve %s: %w", root, err))
			continue
		}
		info, err := os.Stat(abs)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Errorf("stat %s: %w", abs, err))
			continue
		}
		if !info.IsDir() {
			if err := s.add(ctx, abs, &summary); err != nil {
				return summary, err
			}
			continue
		}
		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				summary.Errors = append(summary.Errors, walkErr)
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if path != abs && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			return s.add(ctx, path, &summary)
		})
		if err != nil {
			return summary, err
		}
	}

	if len(summary.Added) > 0 || len(summary.Errors) > 0 {
		s.logger.Info("scan finished",
			logging.String(logging.FieldEventType, "ingest_complete"),
			logging.Int("added", len(summary.Added)),
			logging.Int("existing", summary.Existing),
			logging.Int("skipped", summary.Skipped),
			logging.Int("errors", len(summary.Errors)),
		)
	}
	return summary, nil
}

// add returns an error only for cancellation; library errors are collected.
func (s *Scanner) add(ctx context.Context, path string, summary *Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !Supported(path) {
		summary.Skipped++
		return nil
	}
	rec, created, err := s.library.AddPhoto(ctx, path)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		summary.Errors = append(summary.Errors, fmt.Errorf("register %s: %w", path, err))
		return nil
	}
	if !created {
		summary.Existing++
		return nil
	}
	summary.Added = append(summary.Added, rec)
	s.logger.Debug("photo registered",
		logging.Int64(logging.FieldPhotoID, rec.ID),
		logging.String("path", path),
	)
	return nil
}
