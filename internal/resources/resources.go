// Package resources implements MCP resource handlers for MAMA.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (mama://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/mama/internal/graph"
	"github.com/HendryAvila/mama/internal/workflow"
)

// Resource URIs.
const (
	HealthURI   = "mama://graph/health"
	WorkflowURI = "mama://workflow/status"
)

// Handler manages MAMA resource endpoints.
type Handler struct {
	graph    *graph.Service
	workflow *workflow.Manager
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(g *graph.Service, wf *workflow.Manager) *Handler {
	return &Handler{graph: g, workflow: wf}
}

// HealthResource returns the MCP resource definition for graph health.
func (h *Handler) HealthResource() mcp.Resource {
	return mcp.NewResource(
		HealthURI,
		"Decision Graph Health",
		mcp.WithResourceDescription("Decision and edge totals, orphans, stale decisions, debate ratio and warnings"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleHealth returns graph health as JSON.
func (h *Handler) HandleHealth(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	health, err := h.graph.Health()
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	return jsonResource(req.Params.URI, health)
}

// WorkflowResource returns the MCP resource definition for workflow status.
func (h *Handler) WorkflowResource() mcp.Resource {
	return mcp.NewResource(
		WorkflowURI,
		"Workflow Status",
		mcp.WithResourceDescription("Active project phase, completed phases, artifacts and the next step"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleWorkflow returns the active project's status as JSON.
func (h *Handler) HandleWorkflow(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	st, err := h.workflow.Status()
	if errors.Is(err, workflow.ErrNoActiveProject) {
		return jsonResource(req.Params.URI, map[string]any{"active": false, "message": err.Error()})
	}
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	return jsonResource(req.Params.URI, st)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
