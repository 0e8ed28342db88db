package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/mama/internal/workflow"
)

// Workflow actions.
const (
	actionStart    = "start"
	actionStatus   = "status"
	actionNext     = "next"
	actionGoto     = "goto"
	actionList     = "list"
	actionArtifact = "artifact"
	actionComplete = "complete"
	actionArchive  = "archive"
)

// WorkflowTool handles the workflow MCP tool.
type WorkflowTool struct {
	mgr *workflow.Manager
}

// NewWorkflowTool creates a WorkflowTool.
func NewWorkflowTool(mgr *workflow.Manager) *WorkflowTool {
	return &WorkflowTool{mgr: mgr}
}

// Definition returns the MCP tool definition for workflow.
func (t *WorkflowTool) Definition() mcp.Tool {
	return mcp.NewTool("workflow",
		mcp.WithDescription(
			"Drive a project through discovery → planning → architecture → creation. "+
				"Actions: start (name), status, next, goto (phase), list, artifact (name, content; with id updates an existing one), "+
				"complete (mark the current phase done without moving), archive (close the active project).",
		),
		mcp.WithString("action",
			mcp.Required(),
			mcp.Description("Workflow action"),
			mcp.Enum(actionStart, actionStatus, actionNext, actionGoto, actionList, actionArtifact, actionComplete, actionArchive),
		),
		mcp.WithString("name",
			mcp.Description("Project name (start) or artifact name (artifact)"),
		),
		mcp.WithString("phase",
			mcp.Description("Target phase (goto) or artifact phase (default: current)"),
			mcp.Enum(workflow.PhaseNames()...),
		),
		mcp.WithString("content",
			mcp.Description("Artifact content"),
		),
		mcp.WithString("id",
			mcp.Description("Artifact id to update"),
		),
	)
}

// Handle processes the workflow tool call.
func (t *WorkflowTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action := strings.ToLower(strings.TrimSpace(req.GetString("action", "")))

	var (
		st  *workflow.Status
		err error
		op  string
	)
	switch action {
	case actionStart:
		name := req.GetString("name", "")
		if name == "" {
			return mcp.NewToolResultError("'name' is required to start a project"), nil
		}
		op = "start project"
		st, err = t.mgr.Start(name)
	case actionStatus:
		op = "read workflow status"
		st, err = t.mgr.Status()
	case actionNext:
		op = "advance phase"
		st, err = t.mgr.Next()
	case actionGoto:
		phase := req.GetString("phase", "")
		if phase == "" {
			return mcp.NewToolResultError("'phase' is required for goto"), nil
		}
		op = "go to phase"
		st, err = t.mgr.GoTo(phase)
	case actionComplete:
		op = "complete phase"
		st, err = t.mgr.Complete()
	case actionArchive:
		op = "archive project"
		st, err = t.mgr.Archive()
	case actionList:
		projects, err := t.mgr.List()
		if err != nil {
			return workflowError("list projects", err), nil
		}
		return jsonResult(map[string]any{"projects": projects}), nil
	case actionArtifact:
		return t.artifact(req), nil
	case "":
		return mcp.NewToolResultError("'action' is required"), nil
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown action %q", action)), nil
	}
	if err != nil {
		return workflowError(op, err), nil
	}
	return jsonResult(st), nil
}

func (t *WorkflowTool) artifact(req mcp.CallToolRequest) *mcp.CallToolResult {
	content := req.GetString("content", "")
	if id := req.GetString("id", ""); id != "" {
		if err := t.mgr.UpdateArtifact(id, content); err != nil {
			return workflowError("update artifact", err)
		}
		return jsonResult(map[string]any{"ok": true, "id": id})
	}

	name := req.GetString("name", "")
	if name == "" {
		return mcp.NewToolResultError("'name' is required to add an artifact")
	}
	a, err := t.mgr.AddArtifact(req.GetString("phase", ""), name, content)
	if err != nil {
		return workflowError("add artifact", err)
	}
	return jsonResult(a)
}

// workflowError adds a hint for the terminal-phase error.
func workflowError(action string, err error) *mcp.CallToolResult {
	if errors.Is(err, workflow.ErrFinalPhase) {
		return mcp.NewToolResultError(fmt.Sprintf("failed to %s: %v. Use goto to revisit an earlier phase or archive to finish.", action, err))
	}
	return errorResult(action, err)
}
