package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"lightbox/internal/blobstore"
	"lightbox/internal/config"
)

const probeKey = "preflight/probe.txt"

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies that the filesystem holding path has at least
// minGiB available to unprivileged users.
func CheckFreeSpace(name, path string, minGiB uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	available := stat.Bavail * uint64(stat.Bsize)
	required := minGiB << 30
	detail := fmt.Sprintf("%s free, %s required", humanize.IBytes(available), humanize.IBytes(required))
	if available < required {
		return Result{Name: name, Detail: detail}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckDatabase pings the library database.
func CheckDatabase(ctx context.Context, driver string, db Pinger) Result {
	const name = "Database"

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s ping failed (%s)", driver, summarizeError(err))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable", driver)}
}

// CheckBlobStore writes, reads back and deletes a probe object.
func CheckBlobStore(ctx context.Context, backend string, store blobstore.Store) Result {
	const name = "Blob storage"

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	payload := []byte("lightbox preflight " + time.Now().UTC().Format(time.RFC3339))
	if err := store.Put(checkCtx, probeKey, payload, "text/plain"); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s write failed (%s)", backend, summarizeError(err))}
	}
	got, err := store.Get(checkCtx, probeKey)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s read failed (%s)", backend, summarizeError(err))}
	}
	if string(got) != string(payload) {
		return Result{Name: name, Detail: fmt.Sprintf("%s read back different content", backend)}
	}
	if err := store.Delete(checkCtx, probeKey); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s delete failed (%s)", backend, summarizeError(err))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s read/write ok", backend)}
}

// CheckVisionConfig reports whether the vision units are enabled. A missing
// API key disables them and is not a failure.
func CheckVisionConfig(cfg *config.Config) Result {
	const name = "Vision"

	if !cfg.VisionEnabled() {
		return Result{Name: name, Passed: true, Detail: "disabled (no API key)"}
	}
	model := strings.TrimSpace(cfg.Vision.Model)
	if model == "" {
		return Result{Name: name, Detail: "missing model"}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s via %s", model, cfg.Vision.Provider)}
}

func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	return err.Error()
}
