package graph

import (
	"fmt"
	"time"

	"github.com/HendryAvila/mama/internal/config"
	"github.com/HendryAvila/mama/internal/memory"
)

// Health is an on-demand snapshot of graph metrics.
type Health struct {
	TotalDecisions   int                     `json:"total_decisions"`
	TotalEdges       int                     `json:"total_edges"`
	EdgeTypeCounts   map[memory.EdgeType]int `json:"edge_type_counts"`
	OrphanCount      int                     `json:"orphan_count"`
	StaleCount       int                     `json:"stale_count"`
	EchoChamberRatio float64                 `json:"echo_chamber_ratio"`
	Warnings         []string                `json:"warnings"`

	OrphanIDs []string `json:"orphan_ids,omitempty"`
	StaleIDs  []string `json:"stale_ids,omitempty"`
}

// Analyzer computes graph health from the store. Nothing is cached.
type Analyzer struct {
	store  *memory.Store
	policy config.Policy
	now    func() time.Time
}

// NewAnalyzer creates an Analyzer. now defaults to the store clock.
func NewAnalyzer(store *memory.Store, policy config.Policy, now func() time.Time) *Analyzer {
	if now == nil {
		now = store.Now
	}
	return &Analyzer{store: store, policy: policy, now: now}
}

// Calculate reads every decision and edge once.
func (a *Analyzer) Calculate() (*Health, error) {
	ds, err := a.store.AllDecisions()
	if err != nil {
		return nil, err
	}
	edges, err := a.store.AllEdges()
	if err != nil {
		return nil, err
	}
	return Compute(ds, edges, a.policy, a.now()), nil
}

// Compute derives health from decisions and edges. It is O(decisions + edges).
func Compute(ds []memory.Decision, edges []memory.Edge, policy config.Policy, now time.Time) *Health {
	h := &Health{
		TotalDecisions: len(ds),
		TotalEdges:     len(edges),
		EdgeTypeCounts: make(map[memory.EdgeType]int, 3),
		Warnings:       []string{},
	}
	for _, t := range memory.EdgeTypes() {
		h.EdgeTypeCounts[t] = 0
	}

	threshold := staleThreshold(now, policy)
	touched := make(map[string]bool, len(edges)*2)
	recent := make(map[string]bool)
	for _, e := range edges {
		h.EdgeTypeCounts[e.Type]++
		touched[e.FromID] = true
		touched[e.ToID] = true
		if e.CreatedAt.After(threshold) {
			recent[e.FromID] = true
			recent[e.ToID] = true
		}
	}

	for _, d := range ds {
		if !touched[d.ID] {
			h.OrphanCount++
			h.OrphanIDs = append(h.OrphanIDs, d.ID)
		}
		if !d.CreatedAt.After(threshold) && !recent[d.ID] {
			h.StaleCount++
			h.StaleIDs = append(h.StaleIDs, d.ID)
		}
	}

	if h.TotalEdges > 0 {
		h.EchoChamberRatio = float64(h.EdgeTypeCounts[memory.EdgeDebates]) / float64(h.TotalEdges)
	}
	if h.TotalEdges >= policy.EchoMinEdges && h.TotalEdges > 0 && h.EchoChamberRatio < policy.EchoRatioThreshold {
		h.Warnings = append(h.Warnings, fmt.Sprintf(
			"echo chamber risk: only %.0f%% of %d edges are debates; challenge an existing decision with debates: <id>",
			h.EchoChamberRatio*100, h.TotalEdges))
	}
	if h.StaleCount > 0 {
		h.Warnings = append(h.Warnings, fmt.Sprintf(
			"%d decision(s) untouched for %d+ days; re-validate before relying on them",
			h.StaleCount, policy.StaleAfterDays))
	}
	if h.TotalDecisions >= 5 && h.OrphanCount*2 > h.TotalDecisions {
		h.Warnings = append(h.Warnings, fmt.Sprintf(
			"%d of %d decisions are orphans; link new decisions with builds_on: <topic>",
			h.OrphanCount, h.TotalDecisions))
	}
	return h
}

// IsStale reports whether a decision is at least StaleAfterDays old and no
// incident edge was added since that threshold.
func IsStale(d memory.Decision, edges []memory.Edge, policy config.Policy, now time.Time) bool {
	threshold := staleThreshold(now, policy)
	if d.CreatedAt.After(threshold) {
		return false
	}
	for _, e := range edges {
		if (e.FromID == d.ID || e.ToID == d.ID) && e.CreatedAt.After(threshold) {
			return false
		}
	}
	return true
}

func staleThreshold(now time.Time, policy config.Policy) time.Time {
	return now.Add(-time.Duration(policy.StaleAfterDays) * 24 * time.Hour)
}
