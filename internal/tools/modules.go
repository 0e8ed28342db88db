package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/mama/internal/graph"
	"github.com/HendryAvila/mama/internal/recommend"
)

// GraphHealthTool handles the graph_health MCP tool.
type GraphHealthTool struct {
	graph *graph.Service
}

// NewGraphHealthTool creates a GraphHealthTool.
func NewGraphHealthTool(g *graph.Service) *GraphHealthTool {
	return &GraphHealthTool{graph: g}
}

// Definition returns the MCP tool definition for graph_health.
func (t *GraphHealthTool) Definition() mcp.Tool {
	return mcp.NewTool("graph_health",
		mcp.WithDescription(
			"Report decision-graph health: totals, edge types, orphans, stale decisions and the debate ratio, "+
				"with warnings when the graph looks like an echo chamber.",
		),
	)
}

// Handle processes the graph_health tool call.
func (t *GraphHealthTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h, err := t.graph.Health()
	if err != nil {
		return errorResult("compute graph health", err), nil
	}
	return jsonResult(h), nil
}

// ─── RecommendModulesTool ───────────────────────────────────────────────────

// RecommendModulesTool handles the recommend_modules MCP tool.
type RecommendModulesTool struct {
	rec *recommend.Recommender
}

// NewRecommendModulesTool creates a RecommendModulesTool.
func NewRecommendModulesTool(rec *recommend.Recommender) *RecommendModulesTool {
	return &RecommendModulesTool{rec: rec}
}

// Definition returns the MCP tool definition for recommend_modules.
func (t *RecommendModulesTool) Definition() mcp.Tool {
	return mcp.NewTool("recommend_modules",
		mcp.WithDescription(
			"Suggest reusable modules for a task, scored by similarity (60%), usage (30%) and recency (10%). "+
				"When the embedding model is unavailable only usage and recency count and the result is marked degraded.",
		),
		mcp.WithString("task",
			mcp.Required(),
			mcp.Description("What you are about to build"),
		),
		mcp.WithNumber("k",
			mcp.Description("Maximum modules (default: 5)"),
		),
	)
}

// Handle processes the recommend_modules tool call.
func (t *RecommendModulesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	task := req.GetString("task", "")
	if task == "" {
		return mcp.NewToolResultError("'task' is required"), nil
	}
	rec, err := t.rec.Recommend(ctx, task, intArg(req, "k", recommend.DefaultLimit))
	if err != nil {
		return errorResult("recommend modules", err), nil
	}
	return jsonResult(rec), nil
}

// ─── SyncModulesTool ────────────────────────────────────────────────────────

// SyncModulesTool handles the sync_modules MCP tool.
type SyncModulesTool struct {
	rec        *recommend.Recommender
	defaultDir func() string
}

// NewSyncModulesTool creates a SyncModulesTool. defaultDir supplies the
// configured directory when the call names none.
func NewSyncModulesTool(rec *recommend.Recommender, defaultDir func() string) *SyncModulesTool {
	return &SyncModulesTool{rec: rec, defaultDir: defaultDir}
}

// Definition returns the MCP tool definition for sync_modules.
func (t *SyncModulesTool) Definition() mcp.Tool {
	return mcp.NewTool("sync_modules",
		mcp.WithDescription(
			"Load module manifests (*.yaml, *.yml with name, description, tags, example) from a directory "+
				"into the module library and embed new or changed ones. Usage counts are kept.",
		),
		mcp.WithString("dir",
			mcp.Description("Manifest directory (default: configured modules_dir)"),
		),
	)
}

// Handle processes the sync_modules tool call.
func (t *SyncModulesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir := req.GetString("dir", "")
	if dir == "" && t.defaultDir != nil {
		dir = t.defaultDir()
	}
	if dir == "" {
		return mcp.NewToolResultError("'dir' is required when no modules_dir is configured"), nil
	}

	report, err := t.rec.SyncDir(ctx, dir)
	if err != nil {
		return errorResult(fmt.Sprintf("sync modules from %s", dir), err), nil
	}
	return jsonResult(report), nil
}

// ─── RecordModuleUseTool ────────────────────────────────────────────────────

// RecordModuleUseTool handles the record_module_use MCP tool.
type RecordModuleUseTool struct {
	rec *recommend.Recommender
}

// NewRecordModuleUseTool creates a RecordModuleUseTool.
func NewRecordModuleUseTool(rec *recommend.Recommender) *RecordModuleUseTool {
	return &RecordModuleUseTool{rec: rec}
}

// Definition returns the MCP tool definition for record_module_use.
func (t *RecordModuleUseTool) Definition() mcp.Tool {
	return mcp.NewTool("record_module_use",
		mcp.WithDescription("Record that a module was used, so it ranks higher in future recommendations."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Module name"),
		),
	)
}

// Handle processes the record_module_use tool call.
func (t *RecordModuleUseTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return mcp.NewToolResultError("'name' is required"), nil
	}
	m, err := t.rec.RecordUse(name)
	if err != nil {
		return errorResult(fmt.Sprintf("record use of %s", name), err), nil
	}
	return jsonResult(m), nil
}
