package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lightbox/internal/testsupport"
)

type cliEnv struct {
	baseDir    string
	configPath string
	watchDir   string
}

func setupCLIEnv(t *testing.T, extra string) *cliEnv {
	t.Helper()
	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	for _, key := range []string{"LIGHTBOX_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY", "LIGHTBOX_NTFY_TOPIC", "LIGHTBOX_DATABASE_DSN"} {
		t.Setenv(key, "")
	}

	env := &cliEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "config.toml"),
		watchDir:   filepath.Join(base, "incoming"),
	}
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q
watch_dirs = [%q]

[daemon]
min_free_gib = 0
%s`, filepath.Join(base, "data"), filepath.Join(base, "logs"), env.watchDir, extra)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (e *cliEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("lightbox %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestAddEnrichAndInspect(t *testing.T) {
	env := setupCLIEnv(t, "")
	testsupport.WriteImage(t, filepath.Join(env.watchDir, "beach.png"), 40, 30, 3)
	testsupport.WriteFile(t, filepath.Join(env.watchDir, "readme.txt"), 4)

	out := env.mustRun(t, "add", env.watchDir)
	if !strings.Contains(out, "1 added, 0 already in library, 1 skipped") {
		t.Fatalf("unexpected add output:\n%s", out)
	}

	out = env.mustRun(t, "enrich", "1")
	for _, want := range []string{"#1 beach.png: succeeded", "enriched", "preview", "thumbnail"} {
		if !strings.Contains(out, want) {
			t.Fatalf("enrich output missing %q:\n%s", want, out)
		}
	}

	out = env.mustRun(t, "enrich", "1")
	if !strings.Contains(out, "up to date") {
		t.Fatalf("expected up to date:\n%s", out)
	}

	out = env.mustRun(t, "photos", "show", "1")
	for _, want := range []string{"Status:", "enriched", "40x30", "metadata,thumbnail,preview"} {
		if !strings.Contains(out, want) {
			t.Fatalf("show output missing %q:\n%s", want, out)
		}
	}

	out = env.mustRun(t, "photos", "list", "--status", "enriched")
	if !strings.Contains(out, "beach.png") {
		t.Fatalf("list output missing photo:\n%s", out)
	}
	out = env.mustRun(t, "photos", "list", "--status", "failed")
	if !strings.Contains(out, "No photos") {
		t.Fatalf("expected empty list:\n%s", out)
	}

	out = env.mustRun(t, "runs", "1")
	if !strings.Contains(out, "succeeded") {
		t.Fatalf("runs output missing outcome:\n%s", out)
	}
}

func TestEnrichForceWithUnits(t *testing.T) {
	env := setupCLIEnv(t, "")
	testsupport.WriteImage(t, filepath.Join(env.watchDir, "a.png"), 16, 16, 1)
	env.mustRun(t, "add", env.watchDir)
	env.mustRun(t, "enrich", "--all-pending")

	out := env.mustRun(t, "enrich", "1", "--units", "color", "--force")
	if !strings.Contains(out, "color") || !strings.Contains(out, "preview") {
		t.Fatalf("forced color run should include its dependencies:\n%s", out)
	}
	if strings.Contains(out, "thumbnail") {
		t.Fatalf("unrelated units should not run:\n%s", out)
	}
}

func TestEnrichArgumentErrors(t *testing.T) {
	env := setupCLIEnv(t, "")
	if _, err := env.run(t, "enrich", "abc"); err == nil {
		t.Fatal("expected invalid id error")
	}
	if _, err := env.run(t, "enrich", "1", "--all-pending"); err == nil {
		t.Fatal("expected conflicting arguments error")
	}
	if _, err := env.run(t, "enrich", "42"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUnitsListsBuiltins(t *testing.T) {
	env := setupCLIEnv(t, "")
	out := env.mustRun(t, "units")
	for _, want := range []string{"preview", "metadata", "duplicate", "thumbnail", "color", "Vision units are disabled"} {
		if !strings.Contains(out, want) {
			t.Fatalf("units output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "caption") {
		t.Fatalf("vision units should not be registered without a key:\n%s", out)
	}
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	env := setupCLIEnv(t, "\n[vision]\napi_key = \"super-secret\"\n")
	out := env.mustRun(t, "config", "show")
	if strings.Contains(out, "super-secret") {
		t.Fatalf("secret leaked:\n%s", out)
	}
	if !strings.Contains(out, redacted) {
		t.Fatalf("expected redacted key:\n%s", out)
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	env := setupCLIEnv(t, "")
	target := filepath.Join(env.baseDir, "new", "config.toml")
	out := env.mustRun(t, "config", "init", "--path", target)
	if !strings.Contains(out, target) {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if _, err := env.run(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected existing file error")
	}
	out = env.mustRun(t, "--config", target, "config", "validate")
	if !strings.Contains(out, "Configuration valid") {
		t.Fatalf("sample config should validate:\n%s", out)
	}
}

func TestCheckAndDaemonOnce(t *testing.T) {
	env := setupCLIEnv(t, "")
	if err := os.MkdirAll(env.watchDir, 0o755); err != nil {
		t.Fatal(err)
	}
	out := env.mustRun(t, "check")
	if !strings.Contains(out, "Database") || !strings.Contains(out, "Blob storage") {
		t.Fatalf("unexpected check output:\n%s", out)
	}

	testsupport.WriteImage(t, filepath.Join(env.watchDir, "a.png"), 16, 16, 1)
	out = env.mustRun(t, "daemon", "--once")
	if !strings.Contains(out, "1 ingested, 1 enriched, 0 failed") {
		t.Fatalf("unexpected daemon output:\n%s", out)
	}
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"1", "#22"})
	if err != nil || len(ids) != 2 || ids[1] != 22 {
		t.Fatalf("parseIDs = %v, %v", ids, err)
	}
	for _, bad := range []string{"0", "-1", "12abc"} {
		if _, err := parseIDs([]string{bad}); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestRenderTablePadsAndTrimsRows(t *testing.T) {
	out := renderTable([]column{left("Unit"), right("Time")}, [][]string{
		{"preview"},
		{"face", "1.2s", "extra"},
	})
	if !strings.Contains(out, "preview") || !strings.Contains(out, "1.2s") {
		t.Fatalf("missing cells:\n%s", out)
	}
	if strings.Contains(out, "extra") {
		t.Fatalf("cells beyond the header should be dropped:\n%s", out)
	}
	if renderTable(nil, [][]string{{"x"}}) != "" {
		t.Fatal("expected empty output without columns")
	}
}
