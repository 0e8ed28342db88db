package resources

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap/zaptest"

	"github.com/HendryAvila/mama/internal/config"
	"github.com/HendryAvila/mama/internal/embedding"
	"github.com/HendryAvila/mama/internal/graph"
	"github.com/HendryAvila/mama/internal/memory"
	"github.com/HendryAvila/mama/internal/workflow"
)

func newHandler(t *testing.T) (*Handler, *graph.Service, *workflow.Manager) {
	t.Helper()
	log := zaptest.NewLogger(t)
	store, err := memory.New(memory.DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	engine := embedding.NewEngineForModel(embedding.DefaultModel, embedding.Options{}, log)
	g := graph.NewService(store, engine, config.DefaultPolicy(), log)
	wf := workflow.NewManager(store, log)
	return NewHandler(g, wf), g, wf
}

func readJSON(t *testing.T, contents []mcp.ResourceContents, out any) {
	t.Helper()
	if len(contents) != 1 {
		t.Fatalf("contents = %d, want 1", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("content is %T, want TextResourceContents", contents[0])
	}
	if tc.MIMEType != "application/json" {
		t.Fatalf("mime = %s: %s", tc.MIMEType, tc.Text)
	}
	if err := json.Unmarshal([]byte(tc.Text), out); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
}

func readReq(uri string) mcp.ReadResourceRequest {
	req := mcp.ReadResourceRequest{}
	req.Params.URI = uri
	return req
}

func TestHandleHealth(t *testing.T) {
	h, g, _ := newHandler(t)
	if h.HealthResource().URI != HealthURI {
		t.Errorf("URI = %s, want %s", h.HealthResource().URI, HealthURI)
	}
	if _, err := g.Save(context.Background(), graph.SaveInput{Topic: "db", Reasoning: "sqlite"}); err != nil {
		t.Fatal(err)
	}

	contents, err := h.HandleHealth(context.Background(), readReq(HealthURI))
	if err != nil {
		t.Fatalf("HandleHealth failed: %v", err)
	}
	var health graph.Health
	readJSON(t, contents, &health)
	if health.TotalDecisions != 1 || health.OrphanCount != 1 {
		t.Errorf("health = %+v", health)
	}
}

func TestHandleWorkflow(t *testing.T) {
	h, _, wf := newHandler(t)

	contents, err := h.HandleWorkflow(context.Background(), readReq(WorkflowURI))
	if err != nil {
		t.Fatalf("HandleWorkflow failed: %v", err)
	}
	var idle map[string]any
	readJSON(t, contents, &idle)
	if idle["active"] != false {
		t.Errorf("idle status = %v", idle)
	}

	if _, err := wf.Start("chair"); err != nil {
		t.Fatal(err)
	}
	contents, err = h.HandleWorkflow(context.Background(), readReq(WorkflowURI))
	if err != nil {
		t.Fatalf("HandleWorkflow failed: %v", err)
	}
	var st workflow.Status
	readJSON(t, contents, &st)
	if st.Project.Name != "chair" || st.Phase != workflow.PhaseDiscovery {
		t.Errorf("status = %+v", st)
	}
}
