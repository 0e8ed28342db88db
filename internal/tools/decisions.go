package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/mama/internal/graph"
)

// SaveTool handles the save MCP tool.
type SaveTool struct {
	graph *graph.Service
}

// NewSaveTool creates a SaveTool.
func NewSaveTool(g *graph.Service) *SaveTool {
	return &SaveTool{graph: g}
}

// Definition returns the MCP tool definition for save.
func (t *SaveTool) Definition() mcp.Tool {
	return mcp.NewTool("save",
		mcp.WithDescription(
			"Record a design decision and the reasoning behind it. Link it to earlier decisions by writing "+
				"'builds_on: <topic or id>', 'debates: <id>' or 'synthesizes: <id>, <id>' as lines in the reasoning. "+
				"Unresolved references and similar or stale topics come back as warnings; the decision is saved anyway.",
		),
		mcp.WithString("topic",
			mcp.Required(),
			mcp.Description("Namespaced topic, e.g. 'cad:chair:legs' or 'auth_strategy'"),
		),
		mcp.WithString("reasoning",
			mcp.Description("Why this choice was made, including rejected alternatives and edge lines"),
		),
		mcp.WithString("outcome",
			mcp.Description("What happened as a result, if already known"),
		),
		mcp.WithString("user_id",
			mcp.Description("Author id (default: default)"),
		),
	)
}

// Handle processes the save tool call.
func (t *SaveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topic := req.GetString("topic", "")
	if topic == "" {
		return mcp.NewToolResultError("'topic' is required"), nil
	}

	res, err := t.graph.Save(ctx, graph.SaveInput{
		Topic:     topic,
		Reasoning: req.GetString("reasoning", ""),
		Outcome:   req.GetString("outcome", ""),
		UserID:    req.GetString("user_id", ""),
	})
	if err != nil {
		return errorResult("save decision", err), nil
	}
	return jsonResult(res), nil
}

// ─── SearchTool ─────────────────────────────────────────────────────────────

// SearchTool handles the search MCP tool.
type SearchTool struct {
	graph *graph.Service
}

// NewSearchTool creates a SearchTool.
func NewSearchTool(g *graph.Service) *SearchTool {
	return &SearchTool{graph: g}
}

// Definition returns the MCP tool definition for search.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("search",
		mcp.WithDescription(
			"Find past decisions by meaning. Results are ranked by similarity, best first. "+
				"When the embedding model is unavailable a keyword match is used and the result is marked degraded.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("What you are about to decide or want to recall"),
		),
		mcp.WithNumber("k",
			mcp.Description("Maximum results (default from policy, 5)"),
		),
		mcp.WithNumber("min_score",
			mcp.Description("Minimum similarity in [-1,1] (default from policy, 0.2)"),
		),
	)
}

// Handle processes the search tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}

	res, err := t.graph.Search(ctx, query, intArg(req, "k", 0), floatPtrArg(req, "min_score"))
	if err != nil {
		return errorResult("search decisions", err), nil
	}
	return jsonResult(res), nil
}

// ─── UpdateTool ─────────────────────────────────────────────────────────────

// UpdateTool handles the update MCP tool.
type UpdateTool struct {
	graph *graph.Service
}

// NewUpdateTool creates an UpdateTool.
func NewUpdateTool(g *graph.Service) *UpdateTool {
	return &UpdateTool{graph: g}
}

// Definition returns the MCP tool definition for update.
func (t *UpdateTool) Definition() mcp.Tool {
	return mcp.NewTool("update",
		mcp.WithDescription("Record the outcome of an earlier decision. Topic and reasoning are immutable."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Decision id (decision_...)"),
		),
		mcp.WithString("outcome",
			mcp.Required(),
			mcp.Description("What happened as a result of the decision"),
		),
	)
}

// Handle processes the update tool call.
func (t *UpdateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	outcome := req.GetString("outcome", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	if outcome == "" {
		return mcp.NewToolResultError("'outcome' is required"), nil
	}

	if err := t.graph.UpdateOutcome(id, outcome); err != nil {
		return errorResult("update decision", err), nil
	}
	return jsonResult(map[string]any{"ok": true, "id": id}), nil
}

// ─── GetTool ────────────────────────────────────────────────────────────────

// GetTool handles the get MCP tool.
type GetTool struct {
	graph *graph.Service
}

// NewGetTool creates a GetTool.
func NewGetTool(g *graph.Service) *GetTool {
	return &GetTool{graph: g}
}

// Definition returns the MCP tool definition for get.
func (t *GetTool) Definition() mcp.Tool {
	return mcp.NewTool("get",
		mcp.WithDescription("Show one decision with the decisions it builds on, debates or synthesizes, and those that point back at it."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Decision id (decision_...)"),
		),
	)
}

// Handle processes the get tool call.
func (t *GetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	dc, err := t.graph.Get(id)
	if err != nil {
		return errorResult(fmt.Sprintf("get decision %s", id), err), nil
	}
	return jsonResult(dc), nil
}
