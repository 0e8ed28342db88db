package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/mama/internal/graph"
)

// SaveCheckpointTool handles the save_checkpoint MCP tool.
type SaveCheckpointTool struct {
	graph *graph.Service
}

// NewSaveCheckpointTool creates a SaveCheckpointTool.
func NewSaveCheckpointTool(g *graph.Service) *SaveCheckpointTool {
	return &SaveCheckpointTool{graph: g}
}

// Definition returns the MCP tool definition for save_checkpoint.
func (t *SaveCheckpointTool) Definition() mcp.Tool {
	return mcp.NewTool("save_checkpoint",
		mcp.WithDescription(
			"Save a session snapshot so the next session can resume. Call this before ending a session "+
				"or when switching to different work.",
		),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description("What was done and where things stand"),
		),
		mcp.WithArray("related_decision_ids",
			mcp.Description("Decision ids this session touched"),
			mcp.WithStringItems(),
		),
		mcp.WithString("next_steps",
			mcp.Description("What to do next"),
		),
	)
}

// Handle processes the save_checkpoint tool call.
func (t *SaveCheckpointTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary := req.GetString("summary", "")
	if summary == "" {
		return mcp.NewToolResultError("'summary' is required"), nil
	}

	cp, err := t.graph.SaveCheckpoint(summary, stringsArg(req, "related_decision_ids"), req.GetString("next_steps", ""))
	if err != nil {
		return errorResult("save checkpoint", err), nil
	}
	return jsonResult(cp), nil
}

// ─── LoadCheckpointTool ─────────────────────────────────────────────────────

// LoadCheckpointTool handles the load_checkpoint MCP tool.
type LoadCheckpointTool struct {
	graph *graph.Service
}

// NewLoadCheckpointTool creates a LoadCheckpointTool.
func NewLoadCheckpointTool(g *graph.Service) *LoadCheckpointTool {
	return &LoadCheckpointTool{graph: g}
}

// Definition returns the MCP tool definition for load_checkpoint.
func (t *LoadCheckpointTool) Definition() mcp.Tool {
	return mcp.NewTool("load_checkpoint",
		mcp.WithDescription(
			"Load a checkpoint and the decisions it references. Without an id the latest checkpoint is loaded. "+
				"Referenced decisions that no longer exist are listed as missing.",
		),
		mcp.WithString("id",
			mcp.Description("Checkpoint id (default: latest)"),
		),
	)
}

// Handle processes the load_checkpoint tool call.
func (t *LoadCheckpointTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := t.graph.LoadCheckpoint(req.GetString("id", ""))
	if err != nil {
		return errorResult("load checkpoint", err), nil
	}
	return jsonResult(res), nil
}
