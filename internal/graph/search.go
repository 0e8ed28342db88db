// Package graph ranks, analyzes and mutates the decision graph: semantic
// search with keyword fallback, health metrics, the anti-echo advisor, and
// the Service that ties them to the save/search/update tool surface.
package graph

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/HendryAvila/mama/internal/embedding"
	"github.com/HendryAvila/mama/internal/memory"
)

// Vectorizer is the part of the embedding engine search needs.
type Vectorizer interface {
	Embed(ctx context.Context, text string) ([]float32, string, error)
	Model() string
}

// RankedDecision is a decision with its similarity to the query.
type RankedDecision struct {
	Decision memory.Decision `json:"decision"`
	Score    float64         `json:"score"`
}

// SearchResult holds ranked matches. Degraded is set when the embedding model
// was unavailable and keyword matching was used instead.
type SearchResult struct {
	Query    string           `json:"query"`
	Results  []RankedDecision `json:"results"`
	Degraded bool             `json:"degraded,omitempty"`
	Reason   string           `json:"reason,omitempty"`
}

// Searcher ranks stored decisions against a query embedding.
type Searcher struct {
	store *memory.Store
	vec   Vectorizer
	log   *zap.Logger
}

// NewSearcher creates a Searcher.
func NewSearcher(store *memory.Store, vec Vectorizer, log *zap.Logger) *Searcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Searcher{store: store, vec: vec, log: log.Named("search")}
}

// Search embeds the query and returns the top k decisions scoring at least
// minScore. When the model is unavailable it falls back to keyword matching
// and marks the result degraded.
func (s *Searcher) Search(ctx context.Context, query string, k int, minScore float64) (*SearchResult, error) {
	out := &SearchResult{Query: query}
	qv, _, err := s.vec.Embed(ctx, query)
	if err != nil {
		if !embedding.IsUnavailable(err) {
			return nil, err
		}
		s.log.Warn("semantic search degraded to keyword match", zap.Error(err))
		ds, kerr := s.store.KeywordSearch(query, k)
		if kerr != nil {
			return nil, kerr
		}
		out.Degraded = true
		out.Reason = err.Error()
		out.Results = make([]RankedDecision, 0, len(ds))
		for _, d := range ds {
			out.Results = append(out.Results, RankedDecision{Decision: d})
		}
		return out, nil
	}

	ds, err := s.embeddedDecisions(ctx)
	if err != nil {
		return nil, err
	}
	out.Results = Rank(qv, ds, k, minScore)
	return out, nil
}

// embeddedDecisions loads all decisions, computing vectors for any that are
// missing or were embedded from different text or by a different model.
// Decisions that still lack a vector are returned without one and skipped
// by Rank.
func (s *Searcher) embeddedDecisions(ctx context.Context) ([]memory.Decision, error) {
	ds, err := s.store.AllDecisions()
	if err != nil {
		return nil, err
	}
	model := s.vec.Model()
	for i := range ds {
		d := &ds[i]
		text := d.EmbeddingText()
		if d.HasEmbedding() && d.EmbeddingHash == embedding.ContentHash(text) && d.EmbeddingModel == model {
			continue
		}
		v, hash, err := s.vec.Embed(ctx, text)
		if err != nil {
			s.log.Debug("backfill skipped", zap.String("id", d.ID), zap.Error(err))
			if !d.HasEmbedding() || d.EmbeddingModel != model {
				d.Embedding = nil
			}
			continue
		}
		if err := s.store.SetDecisionEmbedding(d.ID, v, hash, model); err != nil {
			s.log.Warn("backfill persist failed", zap.String("id", d.ID), zap.Error(err))
		}
		d.Embedding, d.EmbeddingHash, d.EmbeddingModel = v, hash, model
	}
	return ds, nil
}

// Rank scores every decision that has a vector, keeps those at or above
// minScore, and returns the top k. Ties go to the more recent decision.
func Rank(query []float32, ds []memory.Decision, k int, minScore float64) []RankedDecision {
	ranked := make([]RankedDecision, 0, len(ds))
	for _, d := range ds {
		if !d.HasEmbedding() {
			continue
		}
		score := embedding.Cosine(query, d.Embedding)
		if score < minScore {
			continue
		}
		ranked = append(ranked, RankedDecision{Decision: d, Score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if !ranked[i].Decision.CreatedAt.Equal(ranked[j].Decision.CreatedAt) {
			return ranked[i].Decision.CreatedAt.After(ranked[j].Decision.CreatedAt)
		}
		return ranked[i].Decision.ID < ranked[j].Decision.ID
	})
	if k > 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}
