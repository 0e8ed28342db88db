package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
)

// DefaultOllamaHost is used when no host is configured.
const DefaultOllamaHost = "http://localhost:11434"

// OllamaEmbedder generates embeddings through a local Ollama server.
type OllamaEmbedder struct {
	client *api.Client
	model  string
	dims   int
}

// NewOllamaEmbedder connects to host and probes the model once, which both
// loads it into memory and records its dimension.
func NewOllamaEmbedder(ctx context.Context, host, model string) (*OllamaEmbedder, error) {
	if host == "" {
		host = DefaultOllamaHost
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	e := &OllamaEmbedder{
		client: api.NewClient(u, http.DefaultClient),
		model:  model,
	}
	probe, err := e.embed(ctx, "dimension probe")
	if err != nil {
		return nil, fmt.Errorf("load ollama model %s: %w", model, err)
	}
	e.dims = len(probe)
	return e, nil
}

func (e *OllamaEmbedder) Dimensions() int { return e.dims }

func (e *OllamaEmbedder) Name() string { return "ollama:" + e.model }

// Embed generates an embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := e.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if e.dims > 0 && len(v) != e.dims {
		return nil, fmt.Errorf("ollama returned %d dimensions, expected %d", len(v), e.dims)
	}
	return v, nil
}

func (e *OllamaEmbedder) embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embed(ctx, &api.EmbedRequest{Model: e.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("ollama embed: empty response for model %s", e.model)
	}
	return resp.Embeddings[0], nil
}
