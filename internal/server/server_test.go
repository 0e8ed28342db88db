package server

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/HendryAvila/mama/internal/config"
)

func newApp(t *testing.T) *App {
	t.Helper()
	app, err := Open(config.Default(t.TempDir()), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func newServer(t *testing.T, app *App) *server.MCPServer {
	t.Helper()
	s, cleanup, err := New(context.Background(), app)
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return s
}

func send(t *testing.T, s *server.MCPServer, method string, params any) map[string]any {
	t.Helper()
	msg, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	require.NoError(t, err)

	resp := s.HandleMessage(context.Background(), msg)
	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Nil(t, out["error"], "unexpected error: %s", raw)
	result, ok := out["result"].(map[string]any)
	require.True(t, ok, "no result in %s", raw)
	return result
}

func TestNew_RegistersTools(t *testing.T) {
	s := newServer(t, newApp(t))

	result := send(t, s, "tools/list", map[string]any{})
	list, ok := result["tools"].([]any)
	require.True(t, ok)

	names := make(map[string]bool, len(list))
	for _, raw := range list {
		names[raw.(map[string]any)["name"].(string)] = true
	}
	for _, want := range []string{
		"save", "search", "update", "get", "save_checkpoint", "load_checkpoint",
		"configure", "workflow", "graph_health",
		"add_hint", "update_hint", "delete_hint", "list_hints",
		"recommend_modules", "sync_modules", "record_module_use",
		"record_learning", "apply_concept", "record_growth", "skill_profile", "adaptive_hints",
		"session_init", "analyze_tool_result",
	} {
		assert.True(t, names[want], "tool %s not registered", want)
	}
}

func TestNew_InitializeAppendsSessionContext(t *testing.T) {
	s := newServer(t, newApp(t))

	result := send(t, s, "initialize", map[string]any{
		"protocolVersion": mcp.LATEST_PROTOCOL_VERSION,
		"clientInfo":      map[string]any{"name": "test", "version": "1"},
		"capabilities":    map[string]any{},
	})
	instructions, _ := result["instructions"].(string)
	assert.Contains(t, instructions, "You have access to MAMA")
	assert.Contains(t, instructions, "no decisions recorded yet")
}

func TestNew_ListsResources(t *testing.T) {
	s := newServer(t, newApp(t))

	result := send(t, s, "resources/list", map[string]any{})
	raw, err := json.Marshal(result)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "mama://graph/health")
	assert.Contains(t, string(raw), "mama://workflow/status")
}

func TestActionHints(t *testing.T) {
	app := newApp(t)
	mw := actionHints(app.Hooks)

	req := mcp.CallToolRequest{}
	req.Params.Name = "cad_create_part"
	req.Params.Arguments = map[string]any{"name": "leg"}

	t.Run("mutating success gets next steps", func(t *testing.T) {
		h := mw(func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText("Created 3 parts in chair.scad"), nil
		})
		res, err := h(context.Background(), req)
		require.NoError(t, err)
		require.Len(t, res.Content, 2)
		text := res.Content[1].(mcp.TextContent).Text
		assert.True(t, strings.HasPrefix(text, "Next steps:"), text)
	})

	t.Run("errors pass through untouched", func(t *testing.T) {
		h := mw(func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultError("boom"), nil
		})
		res, err := h(context.Background(), req)
		require.NoError(t, err)
		assert.Len(t, res.Content, 1)
	})

	t.Run("read-only calls get nothing", func(t *testing.T) {
		ro := mcp.CallToolRequest{}
		ro.Params.Name = "cad_list_parts"
		h := mw(func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText("3 parts"), nil
		})
		res, err := h(context.Background(), ro)
		require.NoError(t, err)
		assert.Len(t, res.Content, 1)
	})
}

func TestNew_WatchesModulesDir(t *testing.T) {
	app := newApp(t)
	app.Config.ModulesDir = t.TempDir()

	_, cleanup, err := New(context.Background(), app)
	require.NoError(t, err)
	cleanup()
}
