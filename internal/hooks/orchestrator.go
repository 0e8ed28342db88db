package hooks

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/HendryAvila/mama/internal/config"
	"github.com/HendryAvila/mama/internal/graph"
	"github.com/HendryAvila/mama/internal/memory"
	"github.com/HendryAvila/mama/internal/mentor"
	"github.com/HendryAvila/mama/internal/recommend"
	"github.com/HendryAvila/mama/internal/workflow"
)

// moduleHintMinSimilarity filters recommender matches used as module hints.
const moduleHintMinSimilarity = 0.3

// Deps are the components the orchestrator reads from.
type Deps struct {
	Store     *memory.Store
	Graph     *graph.Service
	Workflow  *workflow.Manager
	Mentor    *mentor.Mentor
	Recommend *recommend.Recommender
	Policy    config.Policy
	Mode      string
	ToolVerbs config.ToolVerbs
	Rules     []Rule
	Logger    *zap.Logger
}

// Orchestrator implements the three hook entry points.
type Orchestrator struct {
	store     *memory.Store
	graph     *graph.Service
	workflow  *workflow.Manager
	mentor    *mentor.Mentor
	recommend *recommend.Recommender
	rules     []Rule
	log       *zap.Logger

	mu     sync.RWMutex
	mode   string
	policy config.Policy
	verbs  *Verbs
}

// New creates an Orchestrator. Empty Rules means DefaultRules.
func New(d Deps) *Orchestrator {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Rules == nil {
		d.Rules = DefaultRules
	}
	if d.Mode == "" {
		d.Mode = config.InjectionHint
	}
	return &Orchestrator{
		store:     d.Store,
		graph:     d.Graph,
		workflow:  d.Workflow,
		mentor:    d.Mentor,
		recommend: d.Recommend,
		rules:     d.Rules,
		log:       d.Logger.Named("hooks"),
		mode:      d.Mode,
		policy:    d.Policy,
		verbs:     NewVerbs(d.ToolVerbs),
	}
}

// SetMode changes the session injection mode.
func (o *Orchestrator) SetMode(mode string) {
	o.mu.Lock()
	o.mode = mode
	o.mu.Unlock()
}

// SetPolicy replaces the thresholds used for capping and listing.
func (o *Orchestrator) SetPolicy(p config.Policy) {
	o.mu.Lock()
	o.policy = p
	o.mu.Unlock()
}

// SetToolVerbs replaces the dispatcher-declared verbs used by PostExecute.
func (o *Orchestrator) SetToolVerbs(tv config.ToolVerbs) {
	v := NewVerbs(tv)
	o.mu.Lock()
	o.verbs = v
	o.mu.Unlock()
}

func (o *Orchestrator) settings() (string, config.Policy) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.mode, o.policy
}

func (o *Orchestrator) toolVerbs() *Verbs {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.verbs
}

// recovered logs a panic caught at a hook boundary.
func (o *Orchestrator) recovered(hook string, r any) {
	o.log.Warn("hook failed; passing through", zap.String("hook", hook), zap.Any("panic", r))
}

// ─── Session init ────────────────────────────────────────────────────────────

// SessionInit gathers the latest checkpoint, recent decisions, graph health
// and workflow status, formatted for the configured mode. A failing source
// is skipped and listed in Degraded.
func (o *Orchestrator) SessionInit(ctx context.Context) (res *SessionInitResult) {
	mode, policy := o.settings()
	res = &SessionInitResult{Mode: mode}
	defer func() {
		if r := recover(); r != nil {
			o.recovered("session_init", r)
			res = &SessionInitResult{Mode: mode, Degraded: []string{"session_init"}}
		}
	}()
	if mode == config.InjectionNone {
		return res
	}

	if cp, err := o.store.LatestCheckpoint(); err == nil {
		res.Checkpoint = cp
	} else if !memory.IsNotFound(err) {
		o.degrade(res, "checkpoint", err)
	}
	if ds, err := o.store.RecentDecisions(policy.RecentDecisions); err == nil {
		res.RecentDecisions = ds
	} else {
		o.degrade(res, "recent_decisions", err)
	}
	if h, err := o.graph.Health(); err == nil {
		res.Health = h
	} else {
		o.degrade(res, "health", err)
	}
	if ws, err := o.workflow.SessionStatus(); err == nil {
		res.Workflow = ws
	} else {
		o.degrade(res, "workflow", err)
	}

	if mode == config.InjectionFull {
		res.Text = formatFull(res)
	} else {
		res.Text = formatHint(res)
	}
	return res
}

func (o *Orchestrator) degrade(res *SessionInitResult, part string, err error) {
	o.log.Warn("session context source failed", zap.String("source", part), zap.Error(err))
	res.Degraded = append(res.Degraded, part)
}

func formatHint(res *SessionInitResult) string {
	var lines []string
	if n := len(res.RecentDecisions); n > 0 {
		topics := make([]string, 0, n)
		for _, d := range res.RecentDecisions {
			topics = append(topics, d.Topic)
		}
		lines = append(lines, fmt.Sprintf("MAMA: %d recent decision(s): %s.", n, strings.Join(topics, ", ")))
	} else {
		lines = append(lines, "MAMA: no decisions recorded yet. Use save to record design choices and their reasoning.")
	}
	if cp := res.Checkpoint; cp != nil {
		line := "Last checkpoint: " + memory.Truncate(cp.Summary, hintSnippetLen)
		if cp.NextSteps != "" {
			line += " (next: " + memory.Truncate(cp.NextSteps, hintSnippetLen) + ")"
		}
		lines = append(lines, line)
	}
	if h := res.Health; h != nil && len(h.Warnings) > 0 {
		lines = append(lines, fmt.Sprintf("Graph: %d warning(s): %s", len(h.Warnings), h.Warnings[0]))
	}
	if res.Workflow != nil {
		lines = append(lines, "Workflow: "+res.Workflow.String())
	}
	lines = append(lines, "Search past decisions before deciding; load_checkpoint for full context.")
	return strings.Join(lines, "\n")
}

func formatFull(res *SessionInitResult) string {
	var b strings.Builder
	b.WriteString("# MAMA session context\n")

	if cp := res.Checkpoint; cp != nil {
		b.WriteString("\n## Last checkpoint\n")
		fmt.Fprintf(&b, "%s (%s)\n", cp.Summary, cp.CreatedAt.Format("2006-01-02 15:04"))
		if cp.NextSteps != "" {
			fmt.Fprintf(&b, "Next steps: %s\n", cp.NextSteps)
		}
		if len(cp.RelatedDecisionIDs) > 0 {
			fmt.Fprintf(&b, "Related: %s\n", strings.Join(cp.RelatedDecisionIDs, ", "))
		}
	}

	b.WriteString("\n## Recent decisions\n")
	if len(res.RecentDecisions) == 0 {
		b.WriteString("None yet.\n")
	}
	for _, d := range res.RecentDecisions {
		b.WriteString(formatDecisionLine(d, fullSnippetLen) + "\n")
	}
	if h := res.Health; h != nil {
		if nav := navigationHint(len(res.RecentDecisions), h.TotalDecisions, "Use search to find older ones."); nav != "" {
			b.WriteString(nav + "\n")
		}
		b.WriteString("\n## Graph health\n")
		fmt.Fprintf(&b, "%d decisions, %d edges (builds_on %d, debates %d, synthesizes %d), %d orphan(s), %d stale, debate ratio %.2f\n",
			h.TotalDecisions, h.TotalEdges,
			h.EdgeTypeCounts[memory.EdgeBuildsOn], h.EdgeTypeCounts[memory.EdgeDebates], h.EdgeTypeCounts[memory.EdgeSynthesizes],
			h.OrphanCount, h.StaleCount, h.EchoChamberRatio)
		for _, w := range h.Warnings {
			b.WriteString("- " + w + "\n")
		}
	}
	if ws := res.Workflow; ws != nil {
		b.WriteString("\n## Workflow\n")
		b.WriteString(ws.String() + "\n")
	}
	if len(res.Degraded) > 0 {
		fmt.Fprintf(&b, "\n(unavailable: %s)\n", strings.Join(res.Degraded, ", "))
	}
	text := b.String()
	return text + fmt.Sprintf("\n~%d tokens", EstimateTokens(text))
}

// ─── Pre tool list ───────────────────────────────────────────────────────────

// PreToolList appends active hints for each tool's domain to its
// description. The input slice is never modified; on any failure the
// original list is returned.
func (o *Orchestrator) PreToolList(ctx context.Context, tools []mcp.Tool) (out []mcp.Tool) {
	defer func() {
		if r := recover(); r != nil {
			o.recovered("pre_tool_list", r)
			out = tools
		}
	}()

	hints, err := o.store.ListHints("", true)
	if err != nil {
		o.log.Warn("listing hints failed; tools undecorated", zap.Error(err))
		return tools
	}
	if len(hints) == 0 {
		return tools
	}
	byDomain := make(map[string][]string)
	for _, h := range hints {
		byDomain[h.Domain] = append(byDomain[h.Domain], h.Text)
	}

	out = make([]mcp.Tool, len(tools))
	copy(out, tools)
	for i := range out {
		texts := byDomain[ToolDomain(out[i].Name)]
		if len(texts) == 0 {
			continue
		}
		out[i].Description = strings.TrimRight(out[i].Description, "\n") + "\n\nHints:\n- " + strings.Join(texts, "\n- ")
	}
	return out
}

// ToolDomain is the tool name's prefix before the first '_' or '.', or the
// whole name when it has neither.
func ToolDomain(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if i := strings.IndexAny(name, "_."); i > 0 {
		return name[:i]
	}
	return name
}

// ─── Post execute ────────────────────────────────────────────────────────────

// PostExecute counts the action toward the user's skill in its domain and
// returns next-step hints. Read-only and failed calls return empty hints.
func (o *Orchestrator) PostExecute(ctx context.Context, tc ToolCallContext) (hints *ActionHints) {
	hints = &ActionHints{ToolName: tc.ToolName, Suggestions: []string{}}
	defer func() {
		if r := recover(); r != nil {
			o.recovered("post_execute", r)
			hints = &ActionHints{ToolName: tc.ToolName, Suggestions: []string{}}
		}
	}()

	verbs := o.toolVerbs()
	if tc.IsError || !verbs.IsMutating(tc.ToolName, tc.Arguments) {
		return hints
	}
	_, policy := o.settings()
	hints.Mutating = true
	hints.Domain = verbs.ActionDomain(tc.ToolName, tc.Arguments)

	limit := policy.MaxActionHints
	if skill, err := o.mentor.RecordAction(tc.UserID, hints.Domain); err != nil {
		o.log.Warn("action count not recorded", zap.String("domain", hints.Domain), zap.Error(err))
	} else {
		hints.Skill = &skill
		if skill.Level >= mentor.LevelAdvanced && limit > 1 {
			limit = 1
		}
	}

	obs := Classify(tc.ToolName, tc.Result)
	if len(obs.Entities) > 0 {
		hints.Entities = obs.Entities
	}
	hints.Suggestions = Evaluate(o.rules, obs, limit)
	if !tc.Saved && len(obs.Files) > 0 {
		hints.SaveSuggestion = fmt.Sprintf("%s is not saved yet; save it so this work is not lost.", obs.Files[0])
	}
	hints.ModuleHints = o.moduleHints(ctx, obs.Imports, limit)
	return hints
}

// moduleHints maps detected imports to known modules, directly by name or
// through the recommender.
func (o *Orchestrator) moduleHints(ctx context.Context, imports []string, limit int) []string {
	if len(imports) == 0 {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	add := func(name, why string) {
		if seen[name] || limit > 0 && len(out) >= limit {
			return
		}
		seen[name] = true
		out = append(out, fmt.Sprintf("Module %s %s; record_module_use when you use it.", name, why))
	}
	for _, imp := range imports {
		if m, err := o.store.GetModule(imp); err == nil {
			add(m.Name, "is already in your library")
		}
	}
	if o.recommend == nil {
		return out
	}
	rec, err := o.recommend.Recommend(ctx, strings.Join(imports, " "), limit)
	if err != nil || rec.Degraded {
		return out
	}
	for _, m := range rec.Modules {
		if m.Similarity >= moduleHintMinSimilarity {
			add(m.Module.Name, "looks related to what you imported")
		}
	}
	return out
}

// builtinReadOnly mark a tool as read-only when they appear as a name segment.
var builtinReadOnly = []string{
	"get", "list", "search", "find", "load", "read",
	"status", "health", "recommend", "describe", "profile",
	"hints", "analyze", "init", "query", "show", "view",
	"configure", "inspect", "measure", "preview",
}

// builtinMutating mark a tool as mutating when no read-only verb is present.
// They cover memory tools, geometry engines and code runners.
var builtinMutating = []string{
	"save", "update", "create", "add", "delete", "remove",
	"set", "apply", "record", "move", "write", "generate",
	"build", "insert", "modify", "edit", "rename", "group",
	"import", "sync", "scale", "rotate",
	"draw", "transform", "translate", "extrude", "revolve", "sweep", "loft",
	"fillet", "chamfer", "union", "subtract", "difference", "intersect",
	"mirror", "place", "export", "cut", "boolean",
	"run", "execute", "exec", "eval",
}

// readOnlyWorkflowActions never change workflow state.
var readOnlyWorkflowActions = map[string]bool{"status": true, "list": true}

// Verbs classifies tool calls by the verbs in their names.
type Verbs struct {
	readOnly map[string]bool
	mutating map[string]bool
}

// NewVerbs returns the built-in verb sets extended with extra. A verb listed
// in extra moves out of the opposite built-in set.
func NewVerbs(extra config.ToolVerbs) *Verbs {
	v := &Verbs{readOnly: make(map[string]bool), mutating: make(map[string]bool)}
	for _, w := range builtinReadOnly {
		v.readOnly[w] = true
	}
	for _, w := range builtinMutating {
		v.mutating[w] = true
	}
	for _, w := range extra.Mutating {
		w = strings.ToLower(strings.TrimSpace(w))
		delete(v.readOnly, w)
		v.mutating[w] = true
	}
	for _, w := range extra.ReadOnly {
		w = strings.ToLower(strings.TrimSpace(w))
		delete(v.mutating, w)
		v.readOnly[w] = true
	}
	return v
}

var defaultVerbs = NewVerbs(config.ToolVerbs{})

// IsMutating classifies a tool call with the built-in verbs.
func IsMutating(toolName string, args map[string]any) bool {
	return defaultVerbs.IsMutating(toolName, args)
}

// ActionDomain resolves a call's skill domain with the built-in verbs.
func ActionDomain(toolName string, args map[string]any) string {
	return defaultVerbs.ActionDomain(toolName, args)
}

// IsMutating reports whether a call changes state: any read-only verb in the
// name wins, otherwise one mutating verb is enough.
func (v *Verbs) IsMutating(toolName string, args map[string]any) bool {
	if toolName == "workflow" {
		action, _ := args["action"].(string)
		return action != "" && !readOnlyWorkflowActions[strings.ToLower(action)]
	}
	mutating := false
	for _, seg := range nameSegments(toolName) {
		if v.readOnly[seg] {
			return false
		}
		if v.mutating[seg] {
			mutating = true
		}
	}
	return mutating
}

// ActionDomain is the skill domain a call counts toward: the topic's
// namespace when a topic is given, otherwise the tool's domain prefix
// unless that prefix is itself a verb.
func (v *Verbs) ActionDomain(toolName string, args map[string]any) string {
	if topic, ok := args["topic"].(string); ok && strings.TrimSpace(topic) != "" {
		return memory.TopicDomain(topic)
	}
	if toolName == "workflow" {
		return "workflow"
	}
	segs := nameSegments(toolName)
	if len(segs) > 1 && !v.mutating[segs[0]] && !v.readOnly[segs[0]] {
		return segs[0]
	}
	return "general"
}

func nameSegments(name string) []string {
	return strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == '_' || r == '.' || r == '-'
	})
}
