// Package prompts implements MCP prompt handlers for MAMA.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// ResumePrompt handles the mama-resume MCP prompt.
// It walks the AI through restoring context at the start of a session.
type ResumePrompt struct{}

// NewResumePrompt creates a ResumePrompt.
func NewResumePrompt() *ResumePrompt {
	return &ResumePrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *ResumePrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("mama-resume",
		mcp.WithPromptDescription(
			"Pick up where the last session stopped: load the latest checkpoint, "+
				"review related decisions and graph health, and propose the next step.",
		),
		mcp.WithArgument("focus",
			mcp.ArgumentDescription("Optional topic to concentrate on, e.g. 'cad:chair'"),
		),
	)
}

// Handle processes the mama-resume prompt request.
func (p *ResumePrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	focus := ""
	if args := req.Params.Arguments; args != nil {
		focus = strings.TrimSpace(args["focus"])
	}

	var b strings.Builder
	b.WriteString("I'm resuming work. Please:\n" +
		"1. Run `load_checkpoint` to get the latest checkpoint and the decisions it references\n" +
		"2. Run `workflow` with action=status to see which phase the active project is in\n" +
		"3. Run `graph_health` and mention any warnings (stale decisions, echo-chamber risk, orphans)\n")
	if focus != "" {
		fmt.Fprintf(&b, "4. Run `search` with query=%q and summarize what was decided and why\n", focus)
		b.WriteString("5. ")
	} else {
		b.WriteString("4. ")
	}
	b.WriteString("Summarize where things stand in a few lines and propose the next concrete step. " +
		"When I make a new decision, record it with `save`, linking it with builds_on: <topic>.")

	desc := "Resume from the latest checkpoint"
	if focus != "" {
		desc = fmt.Sprintf("Resume work on %s", focus)
	}
	return &mcp.GetPromptResult{
		Description: desc,
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.NewTextContent(b.String()),
			},
		},
	}, nil
}
