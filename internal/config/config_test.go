package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// --- Defaults ---

func TestDefault_SetsDefaults(t *testing.T) {
	cfg := Default("/tmp/mama")

	if cfg.EmbeddingModel != "local:hash-384" {
		t.Errorf("EmbeddingModel = %s, want local:hash-384", cfg.EmbeddingModel)
	}
	if cfg.ContextInjection != InjectionHint {
		t.Errorf("ContextInjection = %s, want hint", cfg.ContextInjection)
	}
	if cfg.Policy.StaleAfterDays != 90 {
		t.Errorf("StaleAfterDays = %d, want 90", cfg.Policy.StaleAfterDays)
	}
	if cfg.Policy.EchoRatioThreshold != 0.10 {
		t.Errorf("EchoRatioThreshold = %v, want 0.10", cfg.Policy.EchoRatioThreshold)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestDefaultDataDir_HonorsEnv(t *testing.T) {
	t.Setenv(HomeEnv, "/srv/mama")
	dir, err := DefaultDataDir()
	if err != nil {
		t.Fatal(err)
	}
	if dir != "/srv/mama" {
		t.Errorf("DefaultDataDir = %s, want /srv/mama", dir)
	}
}

// --- Validation ---

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*MAMAConfig)
	}{
		{"bad injection", func(c *MAMAConfig) { c.ContextInjection = "verbose" }},
		{"empty model", func(c *MAMAConfig) { c.EmbeddingModel = "" }},
		{"unknown provider", func(c *MAMAConfig) { c.EmbeddingModel = "cohere:embed" }},
		{"ratio above one", func(c *MAMAConfig) { c.Policy.EchoRatioThreshold = 1.5 }},
		{"zero stale days", func(c *MAMAConfig) { c.Policy.StaleAfterDays = 0 }},
		{"bad ollama url", func(c *MAMAConfig) { c.OllamaHost = "not a url" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(t.TempDir())
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

// --- Apply ---

func TestApply_MergesOnlyPresentKeys(t *testing.T) {
	cfg := Default(t.TempDir())

	next, err := cfg.Apply([]byte(`{"context_injection":"FULL","policy":{"stale_after_days":30}}`))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if next.ContextInjection != InjectionFull {
		t.Errorf("ContextInjection = %s, want full", next.ContextInjection)
	}
	if next.Policy.StaleAfterDays != 30 {
		t.Errorf("StaleAfterDays = %d, want 30", next.Policy.StaleAfterDays)
	}
	if next.Policy.EchoMinEdges != 10 {
		t.Errorf("untouched policy field changed: EchoMinEdges = %d", next.Policy.EchoMinEdges)
	}
	if cfg.ContextInjection != InjectionHint {
		t.Error("Apply must not modify the receiver")
	}
}

func TestApply_ToolVerbs(t *testing.T) {
	cfg := Default(t.TempDir())
	cfg.ToolVerbs = ToolVerbs{Mutating: []string{"sculpt", "paint"}}

	next, err := cfg.Apply([]byte(`{"tool_verbs":{"mutating":["weld"]}}`))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(next.ToolVerbs.Mutating) != 1 || next.ToolVerbs.Mutating[0] != "weld" {
		t.Errorf("Mutating = %v, want [weld]", next.ToolVerbs.Mutating)
	}
	if cfg.ToolVerbs.Mutating[0] != "sculpt" || len(cfg.ToolVerbs.Mutating) != 2 {
		t.Errorf("Apply modified the receiver's verbs: %v", cfg.ToolVerbs.Mutating)
	}
	if next.ToolVerbs.Equal(cfg.ToolVerbs) {
		t.Error("Equal should see the change")
	}

	for _, bad := range []string{`{"tool_verbs":{"mutating":[""]}}`, `{"tool_verbs":{"read_only":["cad_list"]}}`} {
		if _, err := cfg.Apply([]byte(bad)); err == nil {
			t.Errorf("expected validation error for %s", bad)
		}
	}
}

func TestApply_RejectsUnknownAndInvalid(t *testing.T) {
	cfg := Default(t.TempDir())

	if _, err := cfg.Apply([]byte(`{"embeding_model":"x"}`)); err == nil {
		t.Error("expected error for unknown key")
	}
	if _, err := cfg.Apply([]byte(`{"embedding_model":"cohere:x"}`)); err == nil {
		t.Error("expected error for invalid model")
	}
	if _, err := cfg.Apply([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed patch")
	}
}

// --- FileStore ---

func TestFileStore_LoadMissingReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := NewFileStore().Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != dir || cfg.EmbeddingModel != "local:hash-384" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestFileStore_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore()

	original := Default(dir)
	original.EmbeddingModel = "ollama:nomic-embed-text"
	original.Policy.MaxActionHints = 5

	if err := store.Save(dir, original); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.EmbeddingModel != original.EmbeddingModel {
		t.Errorf("EmbeddingModel = %s, want %s", loaded.EmbeddingModel, original.EmbeddingModel)
	}
	if loaded.Policy.MaxActionHints != 5 {
		t.Errorf("MaxActionHints = %d, want 5", loaded.Policy.MaxActionHints)
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".config-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestFileStore_SaveWritesValidJSON(t *testing.T) {
	dir := t.TempDir()
	if err := NewFileStore().Save(dir, Default(dir)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := raw["policy"]; !ok {
		t.Error("policy block missing from saved config")
	}
}

func TestFileStore_SaveRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	cfg := Default(dir)
	cfg.ContextInjection = "loud"
	if err := NewFileStore().Save(dir, cfg); err == nil {
		t.Error("Save should validate before writing")
	}
}

func TestFileStore_Load_CorruptJSON(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore().Load(dir); err == nil {
		t.Fatal("Load should fail on corrupt JSON")
	}
}

func TestFileStore_Load_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(`{"context_injection":"none"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := NewFileStore().Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ContextInjection != InjectionNone {
		t.Errorf("ContextInjection = %s, want none", cfg.ContextInjection)
	}
	if cfg.Policy.SearchDefaultK != 5 {
		t.Errorf("SearchDefaultK = %d, want default 5", cfg.Policy.SearchDefaultK)
	}
}
