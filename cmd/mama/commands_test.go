package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(out, "mama v") {
		t.Errorf("output = %q", out)
	}
}

func TestHealthCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "health", "--data-dir", dir)
	if err != nil {
		t.Fatalf("health failed: %v", err)
	}

	var h map[string]any
	if err := json.Unmarshal([]byte(out), &h); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if h["total_decisions"] != float64(0) {
		t.Errorf("total_decisions = %v", h["total_decisions"])
	}
	if _, err := os.Stat(filepath.Join(dir, "mama.db")); err != nil {
		t.Errorf("store not created: %v", err)
	}
}

func TestSyncModulesCommand(t *testing.T) {
	dataDir := t.TempDir()
	modDir := t.TempDir()
	manifest := "name: chair_lib\ndescription: a four legged chair\n"
	if err := os.WriteFile(filepath.Join(modDir, "chair.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "sync-modules", modDir, "--data-dir", dataDir)
	if err != nil {
		t.Fatalf("sync-modules failed: %v", err)
	}
	var report map[string]any
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if report["upserted"] != float64(1) {
		t.Errorf("report = %v", report)
	}
}

func TestSyncModulesCommand_NoDir(t *testing.T) {
	_, err := run(t, "sync-modules", "--data-dir", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "modules_dir") {
		t.Errorf("err = %v, want missing modules_dir error", err)
	}
}
