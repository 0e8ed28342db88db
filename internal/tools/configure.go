package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/HendryAvila/mama/internal/config"
	"github.com/HendryAvila/mama/internal/embedding"
	"github.com/HendryAvila/mama/internal/graph"
	"github.com/HendryAvila/mama/internal/hooks"
	"github.com/HendryAvila/mama/internal/recommend"
)

// Runtime groups the live components a configuration change is applied to.
// Nil members are skipped.
type Runtime struct {
	Engine    *embedding.Engine
	Graph     *graph.Service
	Recommend *recommend.Recommender
	Hooks     *hooks.Orchestrator
}

// ConfigureTool handles the configure MCP tool. It owns the in-memory
// config; other tools read settings through it.
type ConfigureTool struct {
	store   config.Store
	dataDir string
	rt      Runtime
	log     *zap.Logger

	mu  sync.Mutex
	cfg *config.MAMAConfig
}

// NewConfigureTool creates a ConfigureTool. dataDir is where the config
// file is persisted; cfg is the config loaded from it.
func NewConfigureTool(store config.Store, dataDir string, cfg *config.MAMAConfig, rt Runtime, log *zap.Logger) *ConfigureTool {
	if log == nil {
		log = zap.NewNop()
	}
	return &ConfigureTool{store: store, dataDir: dataDir, cfg: cfg, rt: rt, log: log.Named("configure")}
}

// Current returns a copy of the config in effect.
func (t *ConfigureTool) Current() config.MAMAConfig {
	t.mu.Lock()
	defer t.mu.Unlock()
	cfg := *t.cfg
	cfg.ToolVerbs = t.cfg.ToolVerbs.Clone()
	return cfg
}

// ModulesDir returns the configured module manifest directory.
func (t *ConfigureTool) ModulesDir() string {
	return t.Current().ModulesDir
}

// Definition returns the MCP tool definition for configure.
func (t *ConfigureTool) Definition() mcp.Tool {
	return mcp.NewTool("configure",
		mcp.WithDescription(
			"Show or change MAMA settings. Without a patch the current config is returned. "+
				"A patch is a partial config object, e.g. {\"context_injection\": \"full\"} or "+
				"{\"embedding_model\": \"ollama:nomic-embed-text\", \"policy\": {\"stale_after_days\": 60}}. "+
				"Keys: embedding_model, context_injection (none|hint|full), data_dir, ollama_host, modules_dir, log_level, policy.",
		),
		mcp.WithObject("patch",
			mcp.Description("Partial config to merge over the current one"),
		),
	)
}

// ConfigureResult is the configure tool's response.
type ConfigureResult struct {
	Config          config.MAMAConfig `json:"config"`
	Changed         []string          `json:"changed"`
	RestartRequired []string          `json:"restart_required,omitempty"`
	EmbeddingState  string            `json:"embedding_state,omitempty"`
}

// Handle processes the configure tool call.
func (t *ConfigureTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	patch, err := patchArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	res := ConfigureResult{Changed: []string{}}
	if patch != nil {
		next, err := t.cfg.Apply(patch)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to apply config patch: %v", err)), nil
		}
		if err := t.store.Save(t.dataDir, next); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to save config: %v", err)), nil
		}
		res.Changed = changedFields(t.cfg, next)
		res.RestartRequired = t.apply(t.cfg, next)
		t.cfg = next
		t.log.Info("config updated", zap.Strings("changed", res.Changed))
	}
	res.Config = *t.cfg
	if t.rt.Engine != nil {
		state, _ := t.rt.Engine.Loader().State()
		res.EmbeddingState = state.String()
	}
	return jsonResult(res), nil
}

// apply pushes a new config into the live components and returns the keys
// that only take effect after a restart.
func (t *ConfigureTool) apply(old, next *config.MAMAConfig) []string {
	var restart []string
	if old.EmbeddingModel != next.EmbeddingModel || old.OllamaHost != next.OllamaHost {
		if t.rt.Engine != nil {
			t.rt.Engine.Reset(next.EmbeddingModel, next.EmbeddingOptions())
		}
	}
	if old.Policy != next.Policy {
		if t.rt.Graph != nil {
			t.rt.Graph.SetPolicy(next.Policy)
		}
		if t.rt.Recommend != nil {
			t.rt.Recommend.SetRecencyHorizon(next.Policy.RecencyHorizonDays)
		}
		if t.rt.Hooks != nil {
			t.rt.Hooks.SetPolicy(next.Policy)
		}
	}
	if !old.ToolVerbs.Equal(next.ToolVerbs) && t.rt.Hooks != nil {
		t.rt.Hooks.SetToolVerbs(next.ToolVerbs)
	}
	if old.ContextInjection != next.ContextInjection && t.rt.Hooks != nil {
		t.rt.Hooks.SetMode(next.ContextInjection)
	}
	if old.DataDir != next.DataDir {
		restart = append(restart, "data_dir")
	}
	if old.LogLevel != next.LogLevel {
		restart = append(restart, "log_level")
	}
	if old.ModulesDir != next.ModulesDir {
		restart = append(restart, "modules_dir")
	}
	return restart
}

func changedFields(old, next *config.MAMAConfig) []string {
	out := []string{}
	add := func(name string, changed bool) {
		if changed {
			out = append(out, name)
		}
	}
	add("embedding_model", old.EmbeddingModel != next.EmbeddingModel)
	add("context_injection", old.ContextInjection != next.ContextInjection)
	add("data_dir", old.DataDir != next.DataDir)
	add("ollama_host", old.OllamaHost != next.OllamaHost)
	add("modules_dir", old.ModulesDir != next.ModulesDir)
	add("log_level", old.LogLevel != next.LogLevel)
	add("policy", old.Policy != next.Policy)
	add("tool_verbs", !old.ToolVerbs.Equal(next.ToolVerbs))
	return out
}

// patchArg returns the patch as JSON, or nil when none was given. A JSON
// string is accepted for clients that cannot send nested objects.
func patchArg(req mcp.CallToolRequest) ([]byte, error) {
	switch v := req.GetArguments()["patch"].(type) {
	case nil:
		return nil, nil
	case map[string]any:
		if len(v) == 0 {
			return nil, nil
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding patch: %w", err)
		}
		return data, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("'patch' must be an object, got %T", v)
	}
}
