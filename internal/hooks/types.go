// Package hooks attaches decision memory to the tool-call lifecycle: session
// start context, tool-list decoration, and next-step hints after mutating
// calls. Every entry point degrades to a pass-through on internal failure.
package hooks

import (
	"github.com/HendryAvila/mama/internal/graph"
	"github.com/HendryAvila/mama/internal/memory"
	"github.com/HendryAvila/mama/internal/mentor"
	"github.com/HendryAvila/mama/internal/workflow"
)

// SessionInitResult is the context injected at session start.
type SessionInitResult struct {
	Mode            string                  `json:"mode"`
	Text            string                  `json:"text"`
	Checkpoint      *memory.Checkpoint      `json:"checkpoint,omitempty"`
	RecentDecisions []memory.Decision       `json:"recent_decisions,omitempty"`
	Health          *graph.Health           `json:"health,omitempty"`
	Workflow        *workflow.SessionStatus `json:"workflow,omitempty"`
	Degraded        []string                `json:"degraded,omitempty"`
}

// ToolCallContext describes a tool call that just finished.
type ToolCallContext struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Result    string         `json:"result"`
	IsError   bool           `json:"is_error"`
	// Saved reports whether the caller already persisted the produced file.
	Saved  bool   `json:"saved"`
	UserID string `json:"user_id,omitempty"`
}

// ActionHints are the suggestions produced after a mutating call. A zero
// value (no hints) is returned for read-only or failed calls.
type ActionHints struct {
	ToolName       string              `json:"tool_name"`
	Domain         string              `json:"domain,omitempty"`
	Mutating       bool                `json:"mutating"`
	Entities       map[string]int      `json:"entities,omitempty"`
	Suggestions    []string            `json:"suggestions"`
	SaveSuggestion string              `json:"save_suggestion,omitempty"`
	ModuleHints    []string            `json:"module_hints,omitempty"`
	Skill          *mentor.DomainSkill `json:"skill,omitempty"`
}

// Empty reports whether there is nothing to show.
func (a *ActionHints) Empty() bool {
	return a == nil || len(a.Suggestions) == 0 && a.SaveSuggestion == "" && len(a.ModuleHints) == 0
}
