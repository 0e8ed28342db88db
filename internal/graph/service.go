package graph

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HendryAvila/mama/internal/config"
	"github.com/HendryAvila/mama/internal/embedding"
	"github.com/HendryAvila/mama/internal/memory"
	"github.com/HendryAvila/mama/internal/reasoning"
)

// Service is the decision-graph API behind the save/search/update tools.
type Service struct {
	store    *memory.Store
	vec      Vectorizer
	searcher *Searcher
	log      *zap.Logger

	mu      sync.RWMutex
	advisor *Advisor
	health  *Analyzer
	policy  config.Policy
}

// NewService wires search, health and the advisor around a store.
func NewService(store *memory.Store, vec Vectorizer, policy config.Policy, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	searcher := NewSearcher(store, vec, log)
	return &Service{
		store:    store,
		vec:      vec,
		searcher: searcher,
		advisor:  NewAdvisor(store, searcher, policy, nil, log),
		health:   NewAnalyzer(store, policy, nil),
		policy:   policy,
		log:      log.Named("graph"),
	}
}

// Store returns the underlying Decision Store.
func (s *Service) Store() *memory.Store { return s.store }

// Policy returns the thresholds in effect.
func (s *Service) Policy() config.Policy {
	_, _, p := s.parts()
	return p
}

// SetPolicy swaps the thresholds used by the advisor, health and search.
func (s *Service) SetPolicy(p config.Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy = p
	s.advisor = NewAdvisor(s.store, s.searcher, p, nil, s.log)
	s.health = NewAnalyzer(s.store, p, nil)
}

func (s *Service) parts() (*Advisor, *Analyzer, config.Policy) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.advisor, s.health, s.policy
}

// SaveInput is the input for recording a decision.
type SaveInput struct {
	Topic     string
	Reasoning string
	Outcome   string
	UserID    string
}

// SaveResult reports the new id, the edges created from the reasoning text,
// and non-fatal warnings (unresolved references, advisories).
type SaveResult struct {
	ID          string                   `json:"id"`
	Topic       string                   `json:"topic"`
	ParsedEdges []reasoning.ResolvedEdge `json:"parsed_edges"`
	Warnings    []string                 `json:"warnings"`
	Advisories  []Advisory               `json:"advisories,omitempty"`
}

// Save records a decision. References in the reasoning are resolved against
// decisions that existed before this save, so a topic reference never binds
// to the new decision itself. Advisories and unresolved references become
// warnings; only validation and storage failures fail the call.
func (s *Service) Save(ctx context.Context, in SaveInput) (*SaveResult, error) {
	topic := strings.TrimSpace(in.Topic)
	if topic == "" {
		return nil, &memory.ValidationError{Field: "topic", Reason: "must not be empty"}
	}

	advisor, _, _ := s.parts()
	res := &SaveResult{Topic: topic, ParsedEdges: []reasoning.ResolvedEdge{}, Warnings: []string{}}

	if adv, err := advisor.StaleWarning(topic); err != nil {
		s.log.Warn("stale check failed", zap.Error(err))
	} else if adv != nil {
		res.Advisories = append(res.Advisories, *adv)
		res.Warnings = append(res.Warnings, adv.Message)
	}

	params := memory.SaveDecisionParams{
		Topic:     topic,
		Reasoning: in.Reasoning,
		Outcome:   in.Outcome,
		UserID:    in.UserID,
	}
	vec, hash, err := s.vec.Embed(ctx, memory.DecisionText(topic, strings.TrimSpace(in.Reasoning)))
	switch {
	case err == nil:
		params.Embedding, params.EmbeddingHash, params.EmbeddingModel = vec, hash, s.vec.Model()
		if adv, err := advisor.checkSimilar(ctx, vec); err != nil {
			s.log.Warn("similarity check failed", zap.Error(err))
		} else if adv != nil {
			res.Advisories = append(res.Advisories, *adv)
			res.Warnings = append(res.Warnings, adv.Message)
		}
	case embedding.IsUnavailable(err):
		res.Warnings = append(res.Warnings, "embedding unavailable; decision saved without a vector and will be embedded on next search")
	default:
		return nil, err
	}

	resolved, unresolved := reasoning.Resolve(s.store, reasoning.Parse(in.Reasoning))
	res.Warnings = append(res.Warnings, unresolved...)

	d, err := s.store.SaveDecision(params)
	if err != nil {
		return nil, err
	}
	res.ID = d.ID

	for _, e := range resolved {
		inserted, err := s.store.InsertEdge(d.ID, e.TargetID, e.Type)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: edge to %s not created: %v", e.Type, e.TargetID, err))
			continue
		}
		if inserted {
			res.ParsedEdges = append(res.ParsedEdges, e)
		}
	}

	s.log.Info("decision recorded",
		zap.String("id", d.ID),
		zap.String("topic", d.Topic),
		zap.Int("edges", len(res.ParsedEdges)),
		zap.Int("warnings", len(res.Warnings)),
	)
	return res, nil
}

// Search ranks decisions against a query. Zero k or minScore use policy defaults.
func (s *Service) Search(ctx context.Context, query string, k int, minScore *float64) (*SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &memory.ValidationError{Field: "query", Reason: "must not be empty"}
	}
	_, _, policy := s.parts()
	if k <= 0 {
		k = policy.SearchDefaultK
	}
	ms := policy.SearchDefaultMinScore
	if minScore != nil {
		ms = *minScore
	}
	return s.searcher.Search(ctx, query, k, ms)
}

// UpdateOutcome records what happened after a decision was made.
func (s *Service) UpdateOutcome(id, outcome string) error {
	return s.store.UpdateOutcome(strings.TrimSpace(id), outcome)
}

// EdgeView is an edge seen from one decision.
type EdgeView struct {
	Type       memory.EdgeType `json:"type"`
	DecisionID string          `json:"decision_id"`
	Topic      string          `json:"topic,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// DecisionContext is a decision with its incoming and outgoing edges.
type DecisionContext struct {
	Decision memory.Decision `json:"decision"`
	Outgoing []EdgeView      `json:"outgoing"`
	Incoming []EdgeView      `json:"incoming"`
}

// Get returns a decision and its neighborhood.
func (s *Service) Get(id string) (*DecisionContext, error) {
	d, err := s.store.GetDecision(id)
	if err != nil {
		return nil, err
	}
	edges, err := s.store.ListEdgesFor(d.ID)
	if err != nil {
		return nil, err
	}
	dc := &DecisionContext{Decision: *d, Outgoing: []EdgeView{}, Incoming: []EdgeView{}}
	for _, e := range edges {
		other := e.ToID
		if e.ToID == d.ID {
			other = e.FromID
		}
		v := EdgeView{Type: e.Type, DecisionID: other, CreatedAt: e.CreatedAt}
		if od, err := s.store.GetDecision(other); err == nil {
			v.Topic = od.Topic
		}
		if e.FromID == d.ID {
			dc.Outgoing = append(dc.Outgoing, v)
		} else {
			dc.Incoming = append(dc.Incoming, v)
		}
	}
	return dc, nil
}

// Health computes graph health now.
func (s *Service) Health() (*Health, error) {
	_, health, _ := s.parts()
	return health.Calculate()
}

// StaleWarning exposes the advisor's stale-topic check.
func (s *Service) StaleWarning(topic string) (*Advisory, error) {
	advisor, _, _ := s.parts()
	return advisor.StaleWarning(topic)
}

// CheckpointResult is a checkpoint with its related decisions loaded.
// Related ids that no longer resolve are listed in Missing.
type CheckpointResult struct {
	Checkpoint memory.Checkpoint `json:"checkpoint"`
	Decisions  []memory.Decision `json:"decisions"`
	Missing    []string          `json:"missing,omitempty"`
}

// LoadCheckpoint loads a checkpoint by id, or the latest when id is empty.
func (s *Service) LoadCheckpoint(id string) (*CheckpointResult, error) {
	var (
		cp  *memory.Checkpoint
		err error
	)
	if strings.TrimSpace(id) == "" {
		cp, err = s.store.LatestCheckpoint()
	} else {
		cp, err = s.store.GetCheckpoint(strings.TrimSpace(id))
	}
	if err != nil {
		return nil, err
	}
	res := &CheckpointResult{Checkpoint: *cp, Decisions: []memory.Decision{}}
	for _, did := range cp.RelatedDecisionIDs {
		d, err := s.store.GetDecision(did)
		if err != nil {
			if memory.IsNotFound(err) {
				res.Missing = append(res.Missing, did)
				continue
			}
			return nil, err
		}
		res.Decisions = append(res.Decisions, *d)
	}
	return res, nil
}

// SaveCheckpoint records a resumption point.
func (s *Service) SaveCheckpoint(summary string, related []string, nextSteps string) (*memory.Checkpoint, error) {
	return s.store.SaveCheckpoint(summary, related, nextSteps)
}
