package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/mama/internal/hooks"
)

// SessionInitTool handles the session_init MCP tool.
type SessionInitTool struct {
	hooks *hooks.Orchestrator
}

// NewSessionInitTool creates a SessionInitTool.
func NewSessionInitTool(o *hooks.Orchestrator) *SessionInitTool {
	return &SessionInitTool{hooks: o}
}

// Definition returns the MCP tool definition for session_init.
func (t *SessionInitTool) Definition() mcp.Tool {
	return mcp.NewTool("session_init",
		mcp.WithDescription(
			"Get session-start context: the latest checkpoint, recent decisions, graph health and workflow status. "+
				"Call this first in a new session when your client does not show MAMA's server instructions.",
		),
	)
}

// Handle processes the session_init tool call.
func (t *SessionInitTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res := t.hooks.SessionInit(ctx)
	if res.Text == "" {
		return jsonResult(res), nil
	}
	return mcp.NewToolResultText(res.Text), nil
}

// ─── AnalyzeToolResultTool ──────────────────────────────────────────────────

// AnalyzeToolResultTool handles the analyze_tool_result MCP tool.
type AnalyzeToolResultTool struct {
	hooks *hooks.Orchestrator
}

// NewAnalyzeToolResultTool creates an AnalyzeToolResultTool.
func NewAnalyzeToolResultTool(o *hooks.Orchestrator) *AnalyzeToolResultTool {
	return &AnalyzeToolResultTool{hooks: o}
}

// Definition returns the MCP tool definition for analyze_tool_result.
func (t *AnalyzeToolResultTool) Definition() mcp.Tool {
	return mcp.NewTool("analyze_tool_result",
		mcp.WithDescription(
			"Get next-step hints for a tool call made outside MAMA (e.g. a CAD or code tool). "+
				"Only successful calls that change something produce hints.",
		),
		mcp.WithString("tool_name",
			mcp.Required(),
			mcp.Description("Name of the tool that ran, e.g. cad_create_part"),
		),
		mcp.WithString("result",
			mcp.Description("The tool's text output"),
		),
		mcp.WithBoolean("is_error",
			mcp.Description("Whether the call failed (default: false)"),
		),
		mcp.WithBoolean("saved",
			mcp.Description("Whether the produced file is already saved (default: false)"),
		),
		withUserID(),
	)
}

// Handle processes the analyze_tool_result tool call.
func (t *AnalyzeToolResultTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("tool_name", "")
	if name == "" {
		return mcp.NewToolResultError("'tool_name' is required"), nil
	}
	hints := t.hooks.PostExecute(ctx, hooks.ToolCallContext{
		ToolName: name,
		Result:   req.GetString("result", ""),
		IsError:  boolArg(req, "is_error", false),
		Saved:    boolArg(req, "saved", false),
		UserID:   req.GetString("user_id", ""),
	})
	return jsonResult(hints), nil
}
