package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/mama/internal/memory"
)

// AddHintTool handles the add_hint MCP tool.
type AddHintTool struct {
	store *memory.Store
}

// NewAddHintTool creates an AddHintTool.
func NewAddHintTool(store *memory.Store) *AddHintTool {
	return &AddHintTool{store: store}
}

// Definition returns the MCP tool definition for add_hint.
func (t *AddHintTool) Definition() mcp.Tool {
	return mcp.NewTool("add_hint",
		mcp.WithDescription(
			"Add guidance that is shown alongside every tool in a domain. The domain is the tool-name prefix "+
				"before '_' or '.', e.g. 'cad' for cad_create_part.",
		),
		mcp.WithString("domain",
			mcp.Required(),
			mcp.Description("Tool domain, e.g. 'cad'"),
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The hint text"),
		),
	)
}

// Handle processes the add_hint tool call.
func (t *AddHintTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	domain := req.GetString("domain", "")
	text := req.GetString("text", "")
	if domain == "" {
		return mcp.NewToolResultError("'domain' is required"), nil
	}
	if text == "" {
		return mcp.NewToolResultError("'text' is required"), nil
	}

	h, err := t.store.AddHint(domain, text)
	if err != nil {
		return errorResult("add hint", err), nil
	}
	return jsonResult(h), nil
}

// ─── UpdateHintTool ─────────────────────────────────────────────────────────

// UpdateHintTool handles the update_hint MCP tool.
type UpdateHintTool struct {
	store *memory.Store
}

// NewUpdateHintTool creates an UpdateHintTool.
func NewUpdateHintTool(store *memory.Store) *UpdateHintTool {
	return &UpdateHintTool{store: store}
}

// Definition returns the MCP tool definition for update_hint.
func (t *UpdateHintTool) Definition() mcp.Tool {
	return mcp.NewTool("update_hint",
		mcp.WithDescription("Change a hint's domain, text or status. Disabled hints are kept but no longer shown."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Hint id"),
		),
		mcp.WithString("domain",
			mcp.Description("New domain"),
		),
		mcp.WithString("text",
			mcp.Description("New text"),
		),
		mcp.WithString("status",
			mcp.Description("active or disabled"),
			mcp.Enum(memory.HintActive, memory.HintDisabled),
		),
	)
}

// Handle processes the update_hint tool call.
func (t *UpdateHintTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	var p memory.HintPatch
	args := req.GetArguments()
	if v, ok := args["domain"].(string); ok {
		p.Domain = &v
	}
	if v, ok := args["text"].(string); ok {
		p.Text = &v
	}
	if v, ok := args["status"].(string); ok {
		p.Status = &v
	}
	if p.Domain == nil && p.Text == nil && p.Status == nil {
		return mcp.NewToolResultError("nothing to update: pass domain, text or status"), nil
	}

	h, err := t.store.UpdateHint(id, p)
	if err != nil {
		return errorResult(fmt.Sprintf("update hint %s", id), err), nil
	}
	return jsonResult(h), nil
}

// ─── DeleteHintTool ─────────────────────────────────────────────────────────

// DeleteHintTool handles the delete_hint MCP tool.
type DeleteHintTool struct {
	store *memory.Store
}

// NewDeleteHintTool creates a DeleteHintTool.
func NewDeleteHintTool(store *memory.Store) *DeleteHintTool {
	return &DeleteHintTool{store: store}
}

// Definition returns the MCP tool definition for delete_hint.
func (t *DeleteHintTool) Definition() mcp.Tool {
	return mcp.NewTool("delete_hint",
		mcp.WithDescription("Delete a hint permanently. Use update_hint with status=disabled to keep it."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Hint id"),
		),
	)
}

// Handle processes the delete_hint tool call.
func (t *DeleteHintTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	if err := t.store.DeleteHint(id); err != nil {
		return errorResult(fmt.Sprintf("delete hint %s", id), err), nil
	}
	return jsonResult(map[string]any{"ok": true, "id": id}), nil
}

// ─── ListHintsTool ──────────────────────────────────────────────────────────

// ListHintsTool handles the list_hints MCP tool.
type ListHintsTool struct {
	store *memory.Store
}

// NewListHintsTool creates a ListHintsTool.
func NewListHintsTool(store *memory.Store) *ListHintsTool {
	return &ListHintsTool{store: store}
}

// Definition returns the MCP tool definition for list_hints.
func (t *ListHintsTool) Definition() mcp.Tool {
	return mcp.NewTool("list_hints",
		mcp.WithDescription("List hints, optionally for one domain or only active ones."),
		mcp.WithString("domain",
			mcp.Description("Only hints for this domain"),
		),
		mcp.WithBoolean("active_only",
			mcp.Description("Hide disabled hints (default: false)"),
		),
	)
}

// Handle processes the list_hints tool call.
func (t *ListHintsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hints, err := t.store.ListHints(req.GetString("domain", ""), boolArg(req, "active_only", false))
	if err != nil {
		return errorResult("list hints", err), nil
	}
	if hints == nil {
		hints = []memory.Hint{}
	}
	return jsonResult(map[string]any{"hints": hints, "count": len(hints)}), nil
}
