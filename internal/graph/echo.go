package graph

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/HendryAvila/mama/internal/config"
	"github.com/HendryAvila/mama/internal/memory"
)

// Advisory kinds.
const (
	AdvisorySimilar = "similar_decision"
	AdvisoryStale   = "stale_topic"
)

// Advisory is a non-blocking warning attached to a save.
type Advisory struct {
	Kind       string  `json:"kind"`
	DecisionID string  `json:"decision_id"`
	Score      float64 `json:"score,omitempty"`
	Message    string  `json:"message"`
}

// Advisor warns about near-duplicate recent decisions and stale topics.
type Advisor struct {
	store    *memory.Store
	searcher *Searcher
	policy   config.Policy
	now      func() time.Time
	log      *zap.Logger
}

// NewAdvisor creates an Advisor.
func NewAdvisor(store *memory.Store, searcher *Searcher, policy config.Policy, now func() time.Time, log *zap.Logger) *Advisor {
	if now == nil {
		now = store.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Advisor{store: store, searcher: searcher, policy: policy, now: now, log: log.Named("advisor")}
}

// checkSimilar compares the vector of a not-yet-persisted decision against
// stored ones. It returns an advisory when the best match scores above the
// similarity threshold and was created within the recency window.
func (a *Advisor) checkSimilar(ctx context.Context, qv []float32) (*Advisory, error) {
	ds, err := a.searcher.embeddedDecisions(ctx)
	if err != nil {
		return nil, err
	}
	top := Rank(qv, ds, 1, a.policy.SimilarityThreshold)
	if len(top) == 0 {
		return nil, nil
	}
	m := top[0]
	if m.Score <= a.policy.SimilarityThreshold {
		return nil, nil
	}
	window := time.Duration(a.policy.SimilarityWindowHours) * time.Hour
	if a.now().Sub(m.Decision.CreatedAt) > window {
		return nil, nil
	}
	return &Advisory{
		Kind:       AdvisorySimilar,
		DecisionID: m.Decision.ID,
		Score:      m.Score,
		Message: fmt.Sprintf("a similar decision exists (%s, %q, similarity %.2f); consider builds_on: %s or debates: %s",
			m.Decision.ID, m.Decision.Topic, m.Score, m.Decision.ID, m.Decision.ID),
	}, nil
}

// StaleWarning returns an advisory when the most recent decision on topic is
// stale, prompting re-validation instead of blind reuse.
func (a *Advisor) StaleWarning(topic string) (*Advisory, error) {
	d, err := a.store.FindDecisionByTopic(topic)
	if err != nil {
		if memory.IsNotFound(err) || memory.IsValidation(err) {
			return nil, nil
		}
		return nil, err
	}
	edges, err := a.store.ListEdgesFor(d.ID)
	if err != nil {
		return nil, err
	}
	if !IsStale(*d, edges, a.policy, a.now()) {
		return nil, nil
	}
	age := int(a.now().Sub(d.CreatedAt).Hours() / 24)
	return &Advisory{
		Kind:       AdvisoryStale,
		DecisionID: d.ID,
		Message: fmt.Sprintf("the last decision on %q (%s) is %d days old with no recent links; re-validate it before building on it",
			d.Topic, d.ID, age),
	}, nil
}
