package server

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/HendryAvila/mama/internal/config"
	"github.com/HendryAvila/mama/internal/embedding"
	"github.com/HendryAvila/mama/internal/graph"
	"github.com/HendryAvila/mama/internal/hooks"
	"github.com/HendryAvila/mama/internal/logging"
	"github.com/HendryAvila/mama/internal/memory"
	"github.com/HendryAvila/mama/internal/mentor"
	"github.com/HendryAvila/mama/internal/recommend"
	"github.com/HendryAvila/mama/internal/workflow"
)

// App holds the long-lived components shared by the MCP server and the CLI.
type App struct {
	Config    *config.MAMAConfig
	Store     *memory.Store
	Engine    *embedding.Engine
	Graph     *graph.Service
	Recommend *recommend.Recommender
	Workflow  *workflow.Manager
	Mentor    *mentor.Mentor
	Hooks     *hooks.Orchestrator

	log *zap.Logger
}

// Open creates every component from cfg. The embedding model is not loaded
// here; the first call that needs a vector loads it.
func Open(cfg *config.MAMAConfig, log *zap.Logger) (*App, error) {
	log = logging.OrNop(log)

	storeCfg := memory.DefaultConfig(cfg.DataDir)
	storeCfg.Logger = log
	store, err := memory.New(storeCfg)
	if err != nil {
		return nil, fmt.Errorf("opening decision store: %w", err)
	}

	engine := embedding.NewEngineForModel(cfg.EmbeddingModel, cfg.EmbeddingOptions(), log)
	g := graph.NewService(store, engine, cfg.Policy, log)
	rec := recommend.New(store, engine, cfg.Policy.RecencyHorizonDays, log)
	wf := workflow.NewManager(store, log)
	m := mentor.New(store, log)

	return &App{
		Config:    cfg,
		Store:     store,
		Engine:    engine,
		Graph:     g,
		Recommend: rec,
		Workflow:  wf,
		Mentor:    m,
		Hooks: hooks.New(hooks.Deps{
			Store:     store,
			Graph:     g,
			Workflow:  wf,
			Mentor:    m,
			Recommend: rec,
			Policy:    cfg.Policy,
			Mode:      cfg.ContextInjection,
			ToolVerbs: cfg.ToolVerbs,
			Logger:    log,
		}),
		log: log,
	}, nil
}

// Close releases the decision store.
func (a *App) Close() error {
	return a.Store.Close()
}
