package embedding

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// DefaultCacheSize bounds the number of cached vectors.
const DefaultCacheSize = 4096

// Engine is the embedding entry point used by search and the recommender.
// Vectors are cached by model and content hash, so identical text is never
// embedded twice by the same model.
type Engine struct {
	loader *Loader
	cache  *lru.Cache[string, []float32]
	log    *zap.Logger
}

// NewEngine wraps a loader with a vector cache of the given size.
func NewEngine(loader *Loader, cacheSize int, log *zap.Logger) *Engine {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[string, []float32](cacheSize)
	return &Engine{loader: loader, cache: cache, log: log.Named("embedding")}
}

// NewEngineForModel builds a loader for a model spec with NewEmbedder as factory.
func NewEngineForModel(model string, opts Options, log *zap.Logger) *Engine {
	return NewEngine(NewLoader(model, FactoryFor(model, opts), log), DefaultCacheSize, log)
}

// FactoryFor returns a Factory that builds the provider for model.
func FactoryFor(model string, opts Options) Factory {
	return func(ctx context.Context) (Embedder, error) {
		return NewEmbedder(ctx, model, opts)
	}
}

// Model returns the configured model spec.
func (e *Engine) Model() string { return e.loader.Model() }

// Loader exposes the underlying loader for status reporting.
func (e *Engine) Loader() *Loader { return e.loader }

// Embed returns the vector for text and the content hash it is keyed by.
// Any load or provider failure is an *UnavailableError.
func (e *Engine) Embed(ctx context.Context, text string) (vec []float32, hash string, err error) {
	hash = ContentHash(text)
	model := e.loader.Model()
	key := model + "|" + hash
	if v, ok := e.cache.Get(key); ok {
		return v, hash, nil
	}

	emb, err := e.loader.Get(ctx)
	if err != nil {
		return nil, hash, err
	}
	v, err := emb.Embed(ctx, text)
	if err != nil {
		e.log.Warn("embed failed", zap.String("model", model), zap.Error(err))
		return nil, hash, &UnavailableError{Model: model, Err: err}
	}
	e.cache.Add(key, v)
	return v, hash, nil
}

// Reset switches model, dropping cached vectors.
func (e *Engine) Reset(model string, opts Options) {
	e.loader.Reset(model, FactoryFor(model, opts))
	e.cache.Purge()
}
