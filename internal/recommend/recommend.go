// Package recommend ranks reusable modules for a task by blending semantic
// similarity with how often and how recently each module was used.
package recommend

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/HendryAvila/mama/internal/embedding"
	"github.com/HendryAvila/mama/internal/memory"
)

// Score weights. They sum to 1, so a score is in [0,1] when every input is.
const (
	WeightSimilarity = 0.6
	WeightUsage      = 0.3
	WeightRecency    = 0.1
)

// DefaultLimit is used when a caller asks for k <= 0.
const DefaultLimit = 5

// Vectorizer is the part of the embedding engine the recommender needs.
type Vectorizer interface {
	Embed(ctx context.Context, text string) ([]float32, string, error)
	Model() string
}

// RankedModule is a module with its blended score and the inputs behind it.
type RankedModule struct {
	Module     memory.Module `json:"module"`
	Score      float64       `json:"score"`
	Similarity float64       `json:"similarity"`
	Usage      float64       `json:"usage"`
	Recency    float64       `json:"recency"`
}

// Recommendation is the result of a recommend call. Degraded means the
// embedding model was unavailable and only usage and recency were scored.
type Recommendation struct {
	Task     string         `json:"task"`
	Modules  []RankedModule `json:"modules"`
	Degraded bool           `json:"degraded,omitempty"`
	Reason   string         `json:"reason,omitempty"`
}

// Recommender scores modules from the store.
type Recommender struct {
	store   *memory.Store
	vec     Vectorizer
	horizon atomic.Int64
	now     func() time.Time
	log     *zap.Logger
}

// New creates a Recommender. recencyHorizonDays bounds the linear recency decay.
func New(store *memory.Store, vec Vectorizer, recencyHorizonDays int, log *zap.Logger) *Recommender {
	if recencyHorizonDays <= 0 {
		recencyHorizonDays = 30
	}
	if log == nil {
		log = zap.NewNop()
	}
	r := &Recommender{
		store: store,
		vec:   vec,
		now:   store.Now,
		log:   log.Named("recommend"),
	}
	r.SetRecencyHorizon(recencyHorizonDays)
	return r
}

// SetRecencyHorizon changes the recency decay window. Non-positive values are ignored.
func (r *Recommender) SetRecencyHorizon(days int) {
	if days > 0 {
		r.horizon.Store(int64(time.Duration(days) * 24 * time.Hour))
	}
}

// Recommend returns up to k modules for a task description, best first.
// Modules whose cached vector is missing or out of date are embedded first.
func (r *Recommender) Recommend(ctx context.Context, task string, k int) (*Recommendation, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return nil, &memory.ValidationError{Field: "task", Reason: "must not be empty"}
	}
	if k <= 0 {
		k = DefaultLimit
	}

	mods, err := r.store.ListModules()
	if err != nil {
		return nil, err
	}
	out := &Recommendation{Task: task, Modules: []RankedModule{}}
	if len(mods) == 0 {
		return out, nil
	}

	qv, _, err := r.vec.Embed(ctx, task)
	if err != nil {
		if !embedding.IsUnavailable(err) {
			return nil, err
		}
		r.log.Warn("recommendation degraded to usage and recency", zap.Error(err))
		out.Degraded, out.Reason = true, err.Error()
	} else if err := r.refresh(ctx, mods); err != nil {
		if !embedding.IsUnavailable(err) {
			return nil, err
		}
		out.Degraded, out.Reason, qv = true, err.Error(), nil
	}

	out.Modules = Rank(qv, mods, r.now(), time.Duration(r.horizon.Load()))
	filtered := out.Modules[:0]
	for _, m := range out.Modules {
		if m.Score > 0 {
			filtered = append(filtered, m)
		}
	}
	out.Modules = filtered
	if len(out.Modules) > k {
		out.Modules = out.Modules[:k]
	}
	return out, nil
}

// refresh embeds every module whose vector does not match its current
// metadata and model, updating mods in place and persisting the result.
func (r *Recommender) refresh(ctx context.Context, mods []memory.Module) error {
	model := r.vec.Model()
	for i := range mods {
		m := &mods[i]
		if m.HasFreshEmbedding(model) {
			continue
		}
		key := m.EmbeddingKey(model)
		v, _, err := r.vec.Embed(ctx, m.EmbeddingText())
		if err != nil {
			return err
		}
		if err := r.store.SetModuleEmbedding(m.Name, v, key); err != nil {
			r.log.Warn("caching module embedding failed", zap.String("module", m.Name), zap.Error(err))
		}
		m.Embedding, m.EmbeddingMetadataHash = v, key
	}
	return nil
}


// Rank scores every module and sorts best first; ties go to the lexically
// smaller name. A nil query scores similarity as zero.
func Rank(query []float32, mods []memory.Module, now time.Time, horizon time.Duration) []RankedModule {
	maxUsage := 0
	for _, m := range mods {
		if m.UsageCount > maxUsage {
			maxUsage = m.UsageCount
		}
	}

	ranked := make([]RankedModule, 0, len(mods))
	for _, m := range mods {
		rm := RankedModule{Module: m}
		if query != nil && len(m.Embedding) > 0 {
			rm.Similarity = clamp01(embedding.Cosine(query, m.Embedding))
		}
		if maxUsage > 0 {
			rm.Usage = float64(m.UsageCount) / float64(maxUsage)
		}
		rm.Recency = Recency(m.LastUsedAt, now, horizon)
		rm.Score = WeightSimilarity*rm.Similarity + WeightUsage*rm.Usage + WeightRecency*rm.Recency
		ranked = append(ranked, rm)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Module.Name < ranked[j].Module.Name
	})
	return ranked
}

// Recency decays linearly from 1 (used now) to 0 (unused, or used at or
// beyond the horizon).
func Recency(lastUsed *time.Time, now time.Time, horizon time.Duration) float64 {
	if lastUsed == nil || horizon <= 0 {
		return 0
	}
	age := now.Sub(*lastUsed)
	if age < 0 {
		age = 0
	}
	return clamp01(1 - float64(age)/float64(horizon))
}

// RecordUse bumps a module's usage statistics.
func (r *Recommender) RecordUse(name string) (*memory.Module, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &memory.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	return r.store.RecordModuleUse(name)
}

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
