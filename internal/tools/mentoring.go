package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/mama/internal/memory"
	"github.com/HendryAvila/mama/internal/mentor"
)

func withUserID() mcp.ToolOption {
	return mcp.WithString("user_id",
		mcp.Description("User id (default: default)"),
	)
}

// RecordLearningTool handles the record_learning MCP tool.
type RecordLearningTool struct {
	mentor *mentor.Mentor
}

// NewRecordLearningTool creates a RecordLearningTool.
func NewRecordLearningTool(m *mentor.Mentor) *RecordLearningTool {
	return &RecordLearningTool{mentor: m}
}

// Definition returns the MCP tool definition for record_learning.
func (t *RecordLearningTool) Definition() mcp.Tool {
	return mcp.NewTool("record_learning",
		mcp.WithDescription(
			"Record how well the user understands a concept, 1 (heard of it) to 4 (mastered). "+
				"Levels never go down.",
		),
		mcp.WithString("concept",
			mcp.Required(),
			mcp.Description("Concept name, e.g. 'boolean union'"),
		),
		mcp.WithNumber("level",
			mcp.Required(),
			mcp.Description("Understanding level 1-4"),
		),
		withUserID(),
	)
}

// Handle processes the record_learning tool call.
func (t *RecordLearningTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	concept := req.GetString("concept", "")
	if concept == "" {
		return mcp.NewToolResultError("'concept' is required"), nil
	}
	level := intArg(req, "level", 0)
	if level < 1 || level > memory.MasteryLevel {
		return mcp.NewToolResultError(fmt.Sprintf("'level' must be between 1 and %d", memory.MasteryLevel)), nil
	}

	l, err := t.mentor.RecordLearning(req.GetString("user_id", ""), concept, level)
	if err != nil {
		return errorResult("record learning", err), nil
	}
	return jsonResult(l), nil
}

// ─── ApplyConceptTool ───────────────────────────────────────────────────────

// ApplyConceptTool handles the apply_concept MCP tool.
type ApplyConceptTool struct {
	mentor *mentor.Mentor
}

// NewApplyConceptTool creates an ApplyConceptTool.
func NewApplyConceptTool(m *mentor.Mentor) *ApplyConceptTool {
	return &ApplyConceptTool{mentor: m}
}

// Definition returns the MCP tool definition for apply_concept.
func (t *ApplyConceptTool) Definition() mcp.Tool {
	return mcp.NewTool("apply_concept",
		mcp.WithDescription(
			"Record that the user applied a concept on their own. The third application marks it mastered.",
		),
		mcp.WithString("concept",
			mcp.Required(),
			mcp.Description("Concept name"),
		),
		withUserID(),
	)
}

// Handle processes the apply_concept tool call.
func (t *ApplyConceptTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	concept := req.GetString("concept", "")
	if concept == "" {
		return mcp.NewToolResultError("'concept' is required"), nil
	}
	l, err := t.mentor.ApplyConcept(req.GetString("user_id", ""), concept)
	if err != nil {
		return errorResult("apply concept", err), nil
	}
	return jsonResult(l), nil
}

// ─── RecordGrowthTool ───────────────────────────────────────────────────────

// RecordGrowthTool handles the record_growth MCP tool.
type RecordGrowthTool struct {
	mentor *mentor.Mentor
}

// NewRecordGrowthTool creates a RecordGrowthTool.
func NewRecordGrowthTool(m *mentor.Mentor) *RecordGrowthTool {
	return &RecordGrowthTool{mentor: m}
}

// Definition returns the MCP tool definition for record_growth.
func (t *RecordGrowthTool) Definition() mcp.Tool {
	return mcp.NewTool("record_growth",
		mcp.WithDescription("Log a growth signal. independent_decision events raise the independence ratio used for skill levels."),
		mcp.WithString("type",
			mcp.Required(),
			mcp.Description("Growth event type"),
			mcp.Enum(
				string(memory.GrowthIndependentDecision),
				string(memory.GrowthConceptApplied),
				string(memory.GrowthTradeoffPredicted),
				string(memory.GrowthTerminologyUsed),
			),
		),
		withUserID(),
	)
}

// Handle processes the record_growth tool call.
func (t *RecordGrowthTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ := req.GetString("type", "")
	if typ == "" {
		return mcp.NewToolResultError("'type' is required"), nil
	}
	gt, err := t.mentor.RecordGrowth(req.GetString("user_id", ""), typ)
	if err != nil {
		return errorResult("record growth", err), nil
	}
	return jsonResult(map[string]any{"ok": true, "type": gt}), nil
}

// ─── SkillProfileTool ───────────────────────────────────────────────────────

// SkillProfileTool handles the skill_profile MCP tool.
type SkillProfileTool struct {
	mentor *mentor.Mentor
}

// NewSkillProfileTool creates a SkillProfileTool.
func NewSkillProfileTool(m *mentor.Mentor) *SkillProfileTool {
	return &SkillProfileTool{mentor: m}
}

// Definition returns the MCP tool definition for skill_profile.
func (t *SkillProfileTool) Definition() mcp.Tool {
	return mcp.NewTool("skill_profile",
		mcp.WithDescription("Show per-domain skill levels, growth counts and learned concepts for a user."),
		withUserID(),
	)
}

// Handle processes the skill_profile tool call.
func (t *SkillProfileTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := t.mentor.Profile(req.GetString("user_id", ""))
	if err != nil {
		return errorResult("build skill profile", err), nil
	}
	return jsonResult(p), nil
}

// ─── AdaptiveHintsTool ──────────────────────────────────────────────────────

// AdaptiveHintsTool handles the adaptive_hints MCP tool.
type AdaptiveHintsTool struct {
	mentor *mentor.Mentor
}

// NewAdaptiveHintsTool creates an AdaptiveHintsTool.
func NewAdaptiveHintsTool(m *mentor.Mentor) *AdaptiveHintsTool {
	return &AdaptiveHintsTool{mentor: m}
}

// Definition returns the MCP tool definition for adaptive_hints.
func (t *AdaptiveHintsTool) Definition() mcp.Tool {
	return mcp.NewTool("adaptive_hints",
		mcp.WithDescription("Guidance for a domain, detailed for beginners and terse for experienced users."),
		mcp.WithString("domain",
			mcp.Required(),
			mcp.Description("Skill domain, e.g. 'cad'"),
		),
		withUserID(),
	)
}

// Handle processes the adaptive_hints tool call.
func (t *AdaptiveHintsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	domain := req.GetString("domain", "")
	if domain == "" {
		return mcp.NewToolResultError("'domain' is required"), nil
	}
	h, err := t.mentor.AdaptiveHints(req.GetString("user_id", ""), domain)
	if err != nil {
		return errorResult("build adaptive hints", err), nil
	}
	return jsonResult(h), nil
}
