package prompts

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func promptText(t *testing.T, res *mcp.GetPromptResult) string {
	t.Helper()
	if len(res.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(res.Messages))
	}
	tc, ok := res.Messages[0].Content.(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Messages[0].Content)
	}
	return tc.Text
}

func TestResumePrompt_Definition(t *testing.T) {
	def := NewResumePrompt().Definition()
	if def.Name != "mama-resume" {
		t.Errorf("prompt name = %q, want %q", def.Name, "mama-resume")
	}
	if len(def.Arguments) != 1 || def.Arguments[0].Name != "focus" {
		t.Errorf("arguments = %+v, want a single focus argument", def.Arguments)
	}
}

func TestResumePrompt_WithoutFocus(t *testing.T) {
	res, err := NewResumePrompt().Handle(context.Background(), mcp.GetPromptRequest{})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	text := promptText(t, res)
	if !strings.Contains(text, "load_checkpoint") || !strings.Contains(text, "graph_health") {
		t.Errorf("prompt should name the resume tools:\n%s", text)
	}
	if strings.Contains(text, "`search`") {
		t.Error("search step should only appear with a focus")
	}
}

func TestResumePrompt_WithFocus(t *testing.T) {
	req := mcp.GetPromptRequest{}
	req.Params.Arguments = map[string]string{"focus": "cad:chair"}

	res, err := NewResumePrompt().Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if res.Description != "Resume work on cad:chair" {
		t.Errorf("description = %q", res.Description)
	}
	if text := promptText(t, res); !strings.Contains(text, `query="cad:chair"`) {
		t.Errorf("prompt should search the focus topic:\n%s", text)
	}
}
