package blobstore_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lightbox/internal/blobstore"
	"lightbox/internal/config"
)

func TestFSStoreRoundTrip(t *testing.T) {
	root := t.TempDir()
	store, err := blobstore.NewFSStore(root)
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	ctx := context.Background()
	key := blobstore.PhotoKey(42, "preview")
	if key != "photos/000042/preview.jpg" {
		t.Fatalf("unexpected key %q", key)
	}

	if err := store.Put(ctx, key, []byte("jpeg"), "image/jpeg"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "photos", "000042", "preview.jpg")); err != nil {
		t.Fatalf("expected file on disk: %v", err)
	}
	data, err := store.Get(ctx, key)
	if err != nil || string(data) != "jpeg" {
		t.Fatalf("Get = %q, %v", data, err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, key); !errors.Is(err, blobstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("deleting a missing key should succeed: %v", err)
	}
}

func TestFSStoreRejectsEscapingKeys(t *testing.T) {
	store, err := blobstore.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	for _, key := range []string{"", "../outside.jpg", "photos/../../x"} {
		if err := store.Put(context.Background(), key, []byte("x"), ""); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
}

func TestNewSelectsBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Dir = t.TempDir()
	store, err := blobstore.New(&cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := store.(*blobstore.FSStore); !ok {
		t.Fatalf("expected FSStore, got %T", store)
	}

	cfg.Storage.Backend = config.StorageS3
	cfg.Storage.Endpoint = "localhost:9000"
	cfg.Storage.Bucket = "lightbox"
	if _, err := blobstore.New(&cfg); err == nil || !strings.Contains(err.Error(), "access key") {
		t.Fatalf("expected credential error, got %v", err)
	}

	cfg.Storage.AccessKey = "minio"
	cfg.Storage.SecretKey = "minio123"
	store, err = blobstore.New(&cfg)
	if err != nil {
		t.Fatalf("New s3: %v", err)
	}
	if _, ok := store.(*blobstore.S3Store); !ok {
		t.Fatalf("expected S3Store, got %T", store)
	}
}
