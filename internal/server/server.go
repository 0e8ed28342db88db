// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates concrete implementations and
// injects them into the tools, prompts and resources that depend on them.
// No business logic lives here, only wiring.
package server

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/HendryAvila/mama/internal/config"
	"github.com/HendryAvila/mama/internal/hooks"
	"github.com/HendryAvila/mama/internal/prompts"
	"github.com/HendryAvila/mama/internal/recommend"
	"github.com/HendryAvila/mama/internal/resources"
	"github.com/HendryAvila/mama/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Name is the MCP server name.
const Name = "mama"

// New creates and configures the MCP server with all tools, prompts and
// resources registered, and starts the module watcher when a modules
// directory is configured.
//
// The returned cleanup function stops the watcher. It is always non-nil.
// Closing the App stays with the caller.
func New(ctx context.Context, app *App) (*server.MCPServer, func(), error) {
	log := app.log

	lifecycle := &server.Hooks{}
	lifecycle.AddAfterInitialize(afterInitialize(app.Hooks))

	s := server.NewMCPServer(
		Name,
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
		server.WithHooks(lifecycle),
		server.WithToolFilter(app.Hooks.PreToolList),
		server.WithToolHandlerMiddleware(actionHints(app.Hooks)),
	)

	configure := tools.NewConfigureTool(config.NewFileStore(), app.Config.DataDir, app.Config, tools.Runtime{
		Engine:    app.Engine,
		Graph:     app.Graph,
		Recommend: app.Recommend,
		Hooks:     app.Hooks,
	}, log)

	registerDecisionTools(s, app, configure)
	registerGuidanceTools(s, app, configure)

	// --- Register prompts ---

	resume := prompts.NewResumePrompt()
	s.AddPrompt(resume.Definition(), resume.Handle)

	// --- Register resources ---

	rh := resources.NewHandler(app.Graph, app.Workflow)
	s.AddResource(rh.HealthResource(), rh.HandleHealth)
	s.AddResource(rh.WorkflowResource(), rh.HandleWorkflow)

	cleanup := noop
	if dir := app.Config.ModulesDir; dir != "" {
		w, err := startWatcher(ctx, dir, app.Recommend, log)
		if err != nil {
			// Module recommendations still work from whatever was synced before.
			log.Warn("module watcher disabled", zap.String("dir", dir), zap.Error(err))
		} else {
			cleanup = w.Stop
		}
	}

	return s, cleanup, nil
}

// noop is the cleanup used when nothing needs stopping.
func noop() {}

func startWatcher(ctx context.Context, dir string, rec *recommend.Recommender, log *zap.Logger) (*recommend.Watcher, error) {
	if report, err := rec.SyncDir(ctx, dir); err != nil {
		log.Warn("initial module sync failed", zap.String("dir", dir), zap.Error(err))
	} else {
		log.Info("modules synced", zap.String("dir", dir), zap.Int("upserted", report.Upserted))
	}
	w, err := recommend.NewWatcher(dir, rec.SyncDir, log)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// registerDecisionTools registers the decision graph, checkpoint, config and
// workflow tools.
func registerDecisionTools(s *server.MCPServer, app *App, configure *tools.ConfigureTool) {
	// --- Decisions ---
	save := tools.NewSaveTool(app.Graph)
	s.AddTool(save.Definition(), save.Handle)

	search := tools.NewSearchTool(app.Graph)
	s.AddTool(search.Definition(), search.Handle)

	update := tools.NewUpdateTool(app.Graph)
	s.AddTool(update.Definition(), update.Handle)

	get := tools.NewGetTool(app.Graph)
	s.AddTool(get.Definition(), get.Handle)

	// --- Checkpoints ---
	saveCheckpoint := tools.NewSaveCheckpointTool(app.Graph)
	s.AddTool(saveCheckpoint.Definition(), saveCheckpoint.Handle)

	loadCheckpoint := tools.NewLoadCheckpointTool(app.Graph)
	s.AddTool(loadCheckpoint.Definition(), loadCheckpoint.Handle)

	// --- Configuration & workflow ---
	s.AddTool(configure.Definition(), configure.Handle)

	wf := tools.NewWorkflowTool(app.Workflow)
	s.AddTool(wf.Definition(), wf.Handle)

	health := tools.NewGraphHealthTool(app.Graph)
	s.AddTool(health.Definition(), health.Handle)
}

// registerGuidanceTools registers hints, module, mentoring and session tools.
func registerGuidanceTools(s *server.MCPServer, app *App, configure *tools.ConfigureTool) {
	// --- Tool hints ---
	addHint := tools.NewAddHintTool(app.Store)
	s.AddTool(addHint.Definition(), addHint.Handle)

	updateHint := tools.NewUpdateHintTool(app.Store)
	s.AddTool(updateHint.Definition(), updateHint.Handle)

	deleteHint := tools.NewDeleteHintTool(app.Store)
	s.AddTool(deleteHint.Definition(), deleteHint.Handle)

	listHints := tools.NewListHintsTool(app.Store)
	s.AddTool(listHints.Definition(), listHints.Handle)

	// --- Modules ---
	recommendModules := tools.NewRecommendModulesTool(app.Recommend)
	s.AddTool(recommendModules.Definition(), recommendModules.Handle)

	syncModules := tools.NewSyncModulesTool(app.Recommend, configure.ModulesDir)
	s.AddTool(syncModules.Definition(), syncModules.Handle)

	recordUse := tools.NewRecordModuleUseTool(app.Recommend)
	s.AddTool(recordUse.Definition(), recordUse.Handle)

	// --- Mentoring ---
	recordLearning := tools.NewRecordLearningTool(app.Mentor)
	s.AddTool(recordLearning.Definition(), recordLearning.Handle)

	applyConcept := tools.NewApplyConceptTool(app.Mentor)
	s.AddTool(applyConcept.Definition(), applyConcept.Handle)

	recordGrowth := tools.NewRecordGrowthTool(app.Mentor)
	s.AddTool(recordGrowth.Definition(), recordGrowth.Handle)

	profile := tools.NewSkillProfileTool(app.Mentor)
	s.AddTool(profile.Definition(), profile.Handle)

	adaptive := tools.NewAdaptiveHintsTool(app.Mentor)
	s.AddTool(adaptive.Definition(), adaptive.Handle)

	// --- Session ---
	sessionInit := tools.NewSessionInitTool(app.Hooks)
	s.AddTool(sessionInit.Definition(), sessionInit.Handle)

	analyze := tools.NewAnalyzeToolResultTool(app.Hooks)
	s.AddTool(analyze.Definition(), analyze.Handle)
}

// afterInitialize appends session-start context to the instructions the
// client receives in the initialize response.
func afterInitialize(o *hooks.Orchestrator) func(context.Context, any, *mcp.InitializeRequest, *mcp.InitializeResult) {
	return func(ctx context.Context, id any, req *mcp.InitializeRequest, res *mcp.InitializeResult) {
		if res == nil {
			return
		}
		sess := o.SessionInit(ctx)
		if sess == nil || sess.Text == "" {
			return
		}
		res.Instructions = strings.TrimSpace(res.Instructions + "\n\n" + sess.Text)
	}
}

// actionHints runs the post-execute hook after every successful tool call
// and appends its suggestions to the result.
func actionHints(o *hooks.Orchestrator) server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			res, err := next(ctx, req)
			if err != nil || res == nil || res.IsError {
				return res, err
			}
			args := req.GetArguments()
			hints := o.PostExecute(ctx, hooks.ToolCallContext{
				ToolName:  req.Params.Name,
				Arguments: args,
				Result:    resultText(res),
				UserID:    req.GetString("user_id", ""),
			})
			if text := hooks.FormatActionHints(hints); text != "" {
				res.Content = append(res.Content, mcp.NewTextContent(text))
			}
			return res, nil
		}
	}
}

func resultText(res *mcp.CallToolResult) string {
	var b strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// serverInstructions returns the system instructions that tell the AI
// how to use MAMA effectively.
func serverInstructions() string {
	return `You have access to MAMA, a decision memory for long-running work.

## WHAT MAMA REMEMBERS
- Decisions: a topic, the reasoning behind it, and later its outcome.
- Relationships between decisions, written inside the reasoning text.
- Checkpoints: where a session stopped and what comes next.
- Workflow state, tool hints, reusable modules, and the user's skill growth.

## SAVING DECISIONS
Call save whenever a choice is made that someone might question later.
Name topics with colon-separated scopes, e.g. "cad:chair:legs".
Link the new decision to older ones with one relation per line:

    builds_on: decision_<id>
    debates: <topic>
    synthesizes: [decision_<id>, <topic>]

A target can be a decision id or a topic. A topic resolves to the most
recent decision with that exact topic. Unresolved targets are reported
back, never fatal.

## DISAGREEMENT IS HEALTHY
If save warns that a very similar decision exists, either link to it with
builds_on or argue with it using debates. graph_health flags a graph where
almost nothing is ever debated.

## SESSIONS
- At the start: session_init (or read the instructions below, if present).
- Before stopping: save_checkpoint with a summary and next steps.
- Returning later: load_checkpoint, or use the mama-resume prompt.

## AFTER OTHER TOOLS
Successful calls that change something get a "Next steps" block appended.
Follow it when it makes sense. Clients that run tools outside this server
can call analyze_tool_result for the same suggestions.

## WORKFLOW
workflow tracks a project through discovery, planning, architecture and
creation. Use action=next to advance and action=goto to jump.

## SETTINGS
configure without a patch shows the current settings. Changes to data_dir,
log_level or modules_dir take effect after a restart.`
}
