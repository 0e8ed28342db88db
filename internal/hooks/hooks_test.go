package hooks

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/HendryAvila/mama/internal/config"
	"github.com/HendryAvila/mama/internal/embedding"
	"github.com/HendryAvila/mama/internal/graph"
	"github.com/HendryAvila/mama/internal/memory"
	"github.com/HendryAvila/mama/internal/mentor"
	"github.com/HendryAvila/mama/internal/recommend"
	"github.com/HendryAvila/mama/internal/workflow"
)

type fixture struct {
	store *memory.Store
	graph *graph.Service
	wf    *workflow.Manager
	orch  *Orchestrator
}

func newFixture(t *testing.T, mode string) *fixture {
	t.Helper()
	log := zaptest.NewLogger(t)
	s, err := memory.New(memory.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	engine := embedding.NewEngineForModel(embedding.DefaultModel, embedding.Options{}, log)
	policy := config.DefaultPolicy()
	g := graph.NewService(s, engine, policy, log)
	wf := workflow.NewManager(s, log)
	return &fixture{
		store: s,
		graph: g,
		wf:    wf,
		orch: New(Deps{
			Store:     s,
			Graph:     g,
			Workflow:  wf,
			Mentor:    mentor.New(s, log),
			Recommend: recommend.New(s, engine, policy.RecencyHorizonDays, log),
			Policy:    policy,
			Mode:      mode,
			Logger:    log,
		}),
	}
}

// --- Session init ---

func TestSessionInit_NoneModeIsEmpty(t *testing.T) {
	f := newFixture(t, config.InjectionNone)
	_, err := f.graph.Save(context.Background(), graph.SaveInput{Topic: "db", Reasoning: "sqlite"})
	require.NoError(t, err)

	res := f.orch.SessionInit(context.Background())
	assert.Equal(t, config.InjectionNone, res.Mode)
	assert.Empty(t, res.Text)
	assert.Empty(t, res.RecentDecisions)
}

func TestSessionInit_HintMode(t *testing.T) {
	f := newFixture(t, config.InjectionHint)
	ctx := context.Background()

	d, err := f.graph.Save(ctx, graph.SaveInput{Topic: "db", Reasoning: "sqlite"})
	require.NoError(t, err)
	_, err = f.graph.SaveCheckpoint("schema drafted", []string{d.ID}, "write migrations")
	require.NoError(t, err)
	_, err = f.wf.Start("chair")
	require.NoError(t, err)

	res := f.orch.SessionInit(ctx)
	assert.Empty(t, res.Degraded)
	require.NotNil(t, res.Checkpoint)
	require.NotNil(t, res.Workflow)
	assert.Contains(t, res.Text, "1 recent decision(s): db")
	assert.Contains(t, res.Text, "schema drafted")
	assert.Contains(t, res.Text, "write migrations")
	assert.Contains(t, res.Text, `"chair"`)
}

func TestSessionInit_FullModeIsMoreDetailed(t *testing.T) {
	f := newFixture(t, config.InjectionHint)
	ctx := context.Background()
	_, err := f.graph.Save(ctx, graph.SaveInput{Topic: "db", Reasoning: "sqlite because it is embedded and needs no server"})
	require.NoError(t, err)

	hint := f.orch.SessionInit(ctx)
	f.orch.SetMode(config.InjectionFull)
	full := f.orch.SessionInit(ctx)

	assert.Equal(t, config.InjectionFull, full.Mode)
	assert.Greater(t, len(full.Text), len(hint.Text))
	assert.Contains(t, full.Text, "## Graph health")
	assert.Contains(t, full.Text, "needs no server")
	assert.Contains(t, full.Text, "tokens")
}

func TestSessionInit_EmptyStore(t *testing.T) {
	f := newFixture(t, config.InjectionHint)
	res := f.orch.SessionInit(context.Background())
	assert.Nil(t, res.Checkpoint)
	assert.Nil(t, res.Workflow)
	assert.Contains(t, res.Text, "no decisions recorded yet")
}

func TestSessionInit_RecoversFromFault(t *testing.T) {
	f := newFixture(t, config.InjectionHint)
	broken := New(Deps{Store: f.store, Workflow: f.wf, Mode: config.InjectionHint, Logger: zaptest.NewLogger(t)})

	var res *SessionInitResult
	assert.NotPanics(t, func() { res = broken.SessionInit(context.Background()) })
	require.NotNil(t, res)
	assert.Equal(t, []string{"session_init"}, res.Degraded)
}

// --- Pre tool list ---

func TestPreToolList_DecoratesByDomain(t *testing.T) {
	f := newFixture(t, config.InjectionHint)
	_, err := f.store.AddHint("cad", "Units are millimetres.")
	require.NoError(t, err)
	h, err := f.store.AddHint("cad", "disabled hint")
	require.NoError(t, err)
	disabled := memory.HintDisabled
	_, err = f.store.UpdateHint(h.ID, memory.HintPatch{Status: &disabled})
	require.NoError(t, err)

	tools := []mcp.Tool{
		mcp.NewTool("cad_create_part", mcp.WithDescription("Create a part.")),
		mcp.NewTool("cad.scale", mcp.WithDescription("Scale.")),
		mcp.NewTool("search", mcp.WithDescription("Search decisions.")),
	}
	out := f.orch.PreToolList(context.Background(), tools)

	require.Len(t, out, 3)
	assert.Contains(t, out[0].Description, "Units are millimetres.")
	assert.NotContains(t, out[0].Description, "disabled hint")
	assert.Contains(t, out[1].Description, "Units are millimetres.")
	assert.Equal(t, "Search decisions.", out[2].Description)
	assert.Equal(t, "Create a part.", tools[0].Description, "input must not be modified")
}

func TestPreToolList_RecoversFromFault(t *testing.T) {
	broken := New(Deps{Logger: zaptest.NewLogger(t)})
	tools := []mcp.Tool{mcp.NewTool("cad_create_part")}
	assert.Equal(t, tools, broken.PreToolList(context.Background(), tools))
}

func TestToolDomain(t *testing.T) {
	assert.Equal(t, "cad", ToolDomain("cad_create_part"))
	assert.Equal(t, "blender", ToolDomain("Blender.add_mesh"))
	assert.Equal(t, "search", ToolDomain("search"))
}

// --- Post execute ---

func TestPostExecute_ReadOnlyAndFailedCallsGetNoHints(t *testing.T) {
	f := newFixture(t, config.InjectionHint)
	ctx := context.Background()

	read := f.orch.PostExecute(ctx, ToolCallContext{ToolName: "cad_list_parts", Result: "created 3 parts"})
	assert.True(t, read.Empty())
	assert.False(t, read.Mutating)

	failed := f.orch.PostExecute(ctx, ToolCallContext{ToolName: "cad_create_part", Result: "created 3 parts", IsError: true})
	assert.True(t, failed.Empty())

	counts, err := f.store.ActionCounts("")
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestPostExecute_CharacterPartsSuggestGrouping(t *testing.T) {
	f := newFixture(t, config.InjectionHint)

	hints := f.orch.PostExecute(context.Background(), ToolCallContext{
		ToolName: "cad_create_part",
		Result:   "Created 3 parts for the chicken and wrote chicken.scad",
	})
	assert.True(t, hints.Mutating)
	assert.Equal(t, "cad", hints.Domain)
	assert.Equal(t, 3, hints.Entities["part"])
	require.NotEmpty(t, hints.Suggestions)
	assert.Contains(t, hints.Suggestions[0], "group them")
	assert.LessOrEqual(t, len(hints.Suggestions), config.DefaultPolicy().MaxActionHints)
	assert.Contains(t, hints.SaveSuggestion, "chicken.scad")
	require.NotNil(t, hints.Skill)
	assert.Equal(t, 1, hints.Skill.Actions)

	saved := f.orch.PostExecute(context.Background(), ToolCallContext{
		ToolName: "cad_create_part",
		Result:   "Created 3 parts and wrote chicken.scad",
		Saved:    true,
	})
	assert.Empty(t, saved.SaveSuggestion)
	assert.Equal(t, 2, saved.Skill.Actions)
}

func TestPostExecute_ModuleHintsFromImports(t *testing.T) {
	f := newFixture(t, config.InjectionHint)
	require.NoError(t, f.store.UpsertModuleMetadata(memory.Module{Name: "chicken_lib", Description: "low poly chicken"}))

	hints := f.orch.PostExecute(context.Background(), ToolCallContext{
		ToolName: "code_write_file",
		Result:   "import chicken_lib\nfrom house_lib import walls\n",
	})
	require.NotEmpty(t, hints.ModuleHints)
	assert.Contains(t, hints.ModuleHints[0], "chicken_lib")
	assert.Contains(t, FormatActionHints(hints), "chicken_lib")
}

func TestPostExecute_RecoversFromFault(t *testing.T) {
	broken := New(Deps{Logger: zaptest.NewLogger(t)})
	var hints *ActionHints
	assert.NotPanics(t, func() {
		hints = broken.PostExecute(context.Background(), ToolCallContext{ToolName: "cad_create_part", Result: "created a part"})
	})
	require.NotNil(t, hints)
	assert.True(t, hints.Empty())
}

func TestPostExecute_SaveCountsTowardTopicDomain(t *testing.T) {
	f := newFixture(t, config.InjectionHint)
	hints := f.orch.PostExecute(context.Background(), ToolCallContext{
		ToolName:  "save",
		Arguments: map[string]any{"topic": "cad:chair:legs"},
		Result:    "{\n  \"id\": \"decision_x\",\n  \"parsed_edges\": []\n}",
	})
	assert.Equal(t, "cad", hints.Domain)
	require.Len(t, hints.Suggestions, 1)
	assert.Contains(t, hints.Suggestions[0], "builds_on")
}

func TestIsMutating(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		want bool
	}{
		{"save", nil, true},
		{"save_checkpoint", nil, true},
		{"search", nil, false},
		{"list_hints", nil, false},
		{"add_hint", nil, true},
		{"cad_create_part", nil, true},
		{"cad_get_part", nil, false},
		{"graph_health", nil, false},
		{"workflow", map[string]any{"action": "next"}, true},
		{"workflow", map[string]any{"action": "status"}, false},
		{"workflow", nil, false},
		{"ping", nil, false},
		{"draw_circle", nil, true},
		{"transform", nil, true},
		{"translate_entity", nil, true},
		{"extrude", nil, true},
		{"cad.extrude_face", nil, true},
		{"revolve_profile", nil, true},
		{"fillet_edges", nil, true},
		{"boolean_union", nil, true},
		{"export_stl", nil, true},
		{"run_cad_code", nil, true},
		{"execute_code", nil, true},
		{"code_exec", nil, true},
		{"cad_inspect_part", nil, false},
		{"cad_measure_distance", nil, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsMutating(tt.name, tt.args), tt.name)
	}
}

func TestVerbs_DeclaredByDispatcher(t *testing.T) {
	v := NewVerbs(config.ToolVerbs{
		Mutating: []string{"Sculpt", "load"},
		ReadOnly: []string{"export"},
	})

	assert.True(t, v.IsMutating("blender_sculpt_mesh", nil))
	assert.True(t, v.IsMutating("load_scene", nil), "declared mutating verb leaves the read-only set")
	assert.False(t, v.IsMutating("export_stl", nil), "declared read-only verb leaves the mutating set")
	assert.Equal(t, "blender", v.ActionDomain("blender_sculpt_mesh", nil))
	assert.Equal(t, "general", v.ActionDomain("sculpt_mesh", nil))

	// The built-in sets are untouched.
	assert.False(t, IsMutating("blender_sculpt_mesh", nil))
	assert.True(t, IsMutating("export_stl", nil))
}

func TestPostExecute_CADEngineCalls(t *testing.T) {
	f := newFixture(t, config.InjectionHint)
	ctx := context.Background()

	for _, name := range []string{"draw_circle", "run_cad_code", "translate_entity"} {
		hints := f.orch.PostExecute(ctx, ToolCallContext{ToolName: name, Result: "Created 2 parts"})
		assert.True(t, hints.Mutating, name)
		assert.NotEmpty(t, hints.Suggestions, name)
	}
	counts, err := f.store.ActionCounts("")
	require.NoError(t, err)
	assert.Equal(t, 3, counts["general"])

	custom := f.orch.PostExecute(ctx, ToolCallContext{ToolName: "blender_sculpt_mesh", Result: "done"})
	assert.False(t, custom.Mutating)

	f.orch.SetToolVerbs(config.ToolVerbs{Mutating: []string{"sculpt"}})
	custom = f.orch.PostExecute(ctx, ToolCallContext{ToolName: "blender_sculpt_mesh", Result: "done"})
	assert.True(t, custom.Mutating)
	assert.Equal(t, "blender", custom.Domain)
}

// --- Rules ---

func TestEvaluate_CapsAndKeepsOrder(t *testing.T) {
	obs := Classify("cad_add_mesh", `created a character; {"type": "mesh"}; added 2 parts`)
	all := Evaluate(DefaultRules, obs, 0)
	capped := Evaluate(DefaultRules, obs, 2)

	require.Greater(t, len(all), 2)
	assert.Equal(t, all[:2], capped)
}

func TestClassify(t *testing.T) {
	obs := Classify("x", "Created 2 new meshes\nadded a class\nimport numpy\nrequire('lodash')\nsee out/model.stl")
	assert.Equal(t, 2, obs.Entities["mesh"])
	assert.Equal(t, 1, obs.Entities["class"])
	assert.Equal(t, []string{"numpy", "lodash"}, obs.Imports)
	assert.Equal(t, []string{"out/model.stl"}, obs.Files)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("ab"))
	assert.Equal(t, 25, EstimateTokens(strings.Repeat("x", 100)))
}

func TestNavigationHint(t *testing.T) {
	assert.Empty(t, navigationHint(5, 5, ""))
	assert.Empty(t, navigationHint(0, 0, ""))
	assert.Equal(t, "Showing 5 of 9. more", navigationHint(5, 9, "more"))
}
