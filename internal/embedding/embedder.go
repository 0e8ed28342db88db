// Package embedding turns decision and module text into fixed-length vectors.
//
// Providers (local feature hashing, Ollama, OpenAI) sit behind the Embedder
// interface. The Engine adds a process-wide model loader that initializes at
// most once at a time and a content-hash keyed vector cache.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed returns the vector for a single text. Same text, same vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the fixed vector length.
	Dimensions() int

	// Name returns the configured model spec, e.g. "ollama:nomic-embed-text".
	Name() string
}

// DefaultModel needs no network and no model download.
const DefaultModel = "local:hash-384"

// Options carries provider settings that are not part of the model spec.
type Options struct {
	OllamaHost string
	OpenAIKey  string
	// OpenAIBaseURL overrides the API endpoint; empty uses the default.
	OpenAIBaseURL string
}

// ModelSpec is a parsed "provider:model" string.
type ModelSpec struct {
	Provider string
	Model    string
}

func (m ModelSpec) String() string { return m.Provider + ":" + m.Model }

// ParseModel splits a model spec. A bare name is treated as an Ollama model.
func ParseModel(spec string) (ModelSpec, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return ModelSpec{}, fmt.Errorf("embedding model must not be empty")
	}
	provider, model, ok := strings.Cut(spec, ":")
	if !ok {
		provider, model = "ollama", spec
	}
	provider = strings.ToLower(provider)
	switch provider {
	case "local", "ollama", "openai":
	default:
		return ModelSpec{}, fmt.Errorf("unsupported embedding provider %q (use local, ollama or openai)", provider)
	}
	if model == "" {
		return ModelSpec{}, fmt.Errorf("embedding model name missing in %q", spec)
	}
	return ModelSpec{Provider: provider, Model: model}, nil
}

// NewEmbedder builds the provider for a model spec and checks that it is usable.
// For remote providers this performs a probe request to learn the dimension.
func NewEmbedder(ctx context.Context, spec string, opts Options) (Embedder, error) {
	ms, err := ParseModel(spec)
	if err != nil {
		return nil, err
	}
	switch ms.Provider {
	case "local":
		return newLocalFromModel(ms.Model)
	case "ollama":
		return NewOllamaEmbedder(ctx, opts.OllamaHost, ms.Model)
	default:
		return NewOpenAIEmbedder(ctx, opts.OpenAIKey, opts.OpenAIBaseURL, ms.Model)
	}
}

func newLocalFromModel(model string) (Embedder, error) {
	// "hash-384" → 384 dimensions
	dims := defaultLocalDims
	if rest, ok := strings.CutPrefix(model, "hash-"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid local model %q: dimension must be a positive integer", model)
		}
		dims = n
	} else if model != "hash" {
		return nil, fmt.Errorf("unknown local model %q (use hash-<dims>)", model)
	}
	return NewHashEmbedder(dims), nil
}

// ContentHash is the cache key for a text's embedding.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Cosine returns the cosine similarity of two vectors in [-1, 1]. Vectors of
// different length or zero magnitude score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// Rounding can push identical vectors just past 1.
	return math.Max(-1, math.Min(1, s))
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}
