package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// UnavailableError reports that the embedding model could not be loaded or
// could not serve a request. Callers degrade instead of failing.
type UnavailableError struct {
	Model string
	Err   error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("embedding model %s unavailable: %v", e.Model, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// IsUnavailable reports whether err is (or wraps) an UnavailableError.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// LoadState is the model loader's lifecycle state.
type LoadState int

const (
	StateUninitialized LoadState = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s LoadState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Factory constructs an embedder. It may block (model download, probe request).
type Factory func(ctx context.Context) (Embedder, error)

// Loader owns the single embedder instance for a process. Concurrent first
// calls share one in-flight initialization; a failure is recorded but not
// cached, so the next call retries.
type Loader struct {
	model   string
	factory Factory
	log     *zap.Logger

	mu      sync.Mutex
	state   LoadState
	ready   Embedder
	lastErr error
	gen     uint64 // bumped by Reset so stale loads are discarded

	group singleflight.Group
}

// NewLoader returns a loader in the Uninitialized state.
func NewLoader(model string, factory Factory, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{model: model, factory: factory, log: log.Named("embedding")}
}

// Model returns the configured model spec.
func (l *Loader) Model() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.model
}

// State returns the current lifecycle state and the last load error, if any.
func (l *Loader) State() (LoadState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state, l.lastErr
}

// Get returns the ready embedder, initializing it if needed. Failures are
// returned as *UnavailableError.
func (l *Loader) Get(ctx context.Context) (Embedder, error) {
	l.mu.Lock()
	if l.state == StateReady {
		e := l.ready
		l.mu.Unlock()
		return e, nil
	}
	gen, model, factory := l.gen, l.model, l.factory
	l.state = StateInitializing
	l.mu.Unlock()

	key := fmt.Sprintf("%d:%s", gen, model)
	// The load outlives any single caller's cancellation since others share it.
	loadCtx := context.WithoutCancel(ctx)
	v, err, shared := l.group.Do(key, func() (any, error) {
		// A caller that missed the previous flight finds the model ready here.
		l.mu.Lock()
		if l.gen == gen && l.state == StateReady {
			e := l.ready
			l.mu.Unlock()
			return e, nil
		}
		l.mu.Unlock()

		l.log.Info("loading embedding model", zap.String("model", model))
		e, err := factory(loadCtx)
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.gen != gen {
			// Reset happened mid-load; report but do not install.
			if err == nil {
				err = errors.New("model changed during load")
			}
			return nil, err
		}
		if err != nil {
			l.state = StateFailed
			l.lastErr = err
			l.log.Warn("embedding model failed to load", zap.String("model", model), zap.Error(err))
			return nil, err
		}
		l.state = StateReady
		l.ready = e
		l.lastErr = nil
		l.log.Info("embedding model ready", zap.String("model", model), zap.Int("dimensions", e.Dimensions()))
		return e, nil
	})
	if err != nil {
		return nil, &UnavailableError{Model: model, Err: err}
	}
	if shared {
		l.log.Debug("embedding load shared", zap.String("model", model))
	}
	return v.(Embedder), nil
}

// Reset switches to a new model and factory. The next Get loads it.
func (l *Loader) Reset(model string, factory Factory) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	l.model = model
	l.factory = factory
	l.state = StateUninitialized
	l.ready = nil
	l.lastErr = nil
}
