package preflight

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

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("space", dir, 0); !result.Passed {
		t.Fatalf("zero requirement should pass, got: %s", result.Detail)
	}
	result := CheckFreeSpace("space", dir, 1<<30)
	if result.Passed {
		t.Fatalf("an exbibyte should not be free, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "required") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
	if result := CheckFreeSpace("space", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("expected statfs failure for missing path")
	}
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestCheckDatabase(t *testing.T) {
	if result := CheckDatabase(context.Background(), "sqlite", stubPinger{}); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	result := CheckDatabase(context.Background(), "postgres", stubPinger{err: errors.New("connection refused")})
	if result.Passed || !strings.Contains(result.Detail, "connection refused") {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestCheckBlobStore(t *testing.T) {
	store, err := blobstore.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	result := CheckBlobStore(context.Background(), "fs", store)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if _, err := store.Get(context.Background(), probeKey); !errors.Is(err, blobstore.ErrNotFound) {
		t.Fatalf("probe object should be removed, got %v", err)
	}
}

func TestRunAllFlagsMissingWatchDir(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.WatchDirs = []string{filepath.Join(base, "missing")}
	cfg.Daemon.MinFreeGiB = 0
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	results := RunAll(context.Background(), &cfg, Targets{Database: stubPinger{}})
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "Watch directory" {
		t.Fatalf("expected only the watch directory to fail, got %+v", failed)
	}
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
}
