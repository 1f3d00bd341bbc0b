// Package blobstore persists rendered previews and thumbnails outside the
// library database, on the local filesystem or in an S3-compatible bucket.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"lightbox/internal/config"
)

// ErrNotFound is returned by Get for keys that were never written or were deleted.
var ErrNotFound = errors.New("blob not found")

// Store is the object storage used by the preview and thumbnail units.
type Store interface {
	Put(ctx context.Context, key string, content []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// New builds the store selected by cfg.Storage.
func New(cfg *config.Config) (Store, error) {
	if cfg == nil {
		return nil, errors.New("blobstore: config is required")
	}
	switch cfg.Storage.Backend {
	case config.StorageS3:
		return NewS3Store(S3Config{
			Endpoint:  cfg.Storage.Endpoint,
			Region:    cfg.Storage.Region,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			UseSSL:    cfg.Storage.UseSSL,
		})
	case config.StorageFS, "":
		return NewFSStore(cfg.Storage.Dir)
	default:
		return nil, fmt.Errorf("blobstore: unsupported backend %q", cfg.Storage.Backend)
	}
}

// PhotoKey builds the object key for one rendition of a photo, such as
// "photos/000042/preview.jpg".
func PhotoKey(photoID int64, rendition string) string {
	return fmt.Sprintf("photos/%06d/%s.jpg", photoID, strings.TrimSpace(rendition))
}

// cleanKey rejects keys that are empty or would escape the store root.
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("blob key is required")
	}
	cleaned := path.Clean("/" + key)[1:]
	if cleaned == "" || cleaned != strings.TrimLeft(key, "/") {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return cleaned, nil
}
