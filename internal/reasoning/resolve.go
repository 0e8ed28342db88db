package reasoning

import (
	"errors"
	"fmt"

	"github.com/HendryAvila/mama/internal/memory"
)

var errNoMatch = errors.New("no decision with that id or topic")

// Lookup is the subset of the Decision Store the resolver reads.
type Lookup interface {
	GetDecision(id string) (*memory.Decision, error)
	FindDecisionByTopic(topic string) (*memory.Decision, error)
}

// ResolvedEdge is a relation bound to an existing decision id.
type ResolvedEdge struct {
	Type     memory.EdgeType `json:"type"`
	Target   string          `json:"target"`
	TargetID string          `json:"target_id"`
}

// Resolve binds each relation to a decision: an id target binds directly when
// it exists, anything else goes through topic lookup. Relations that do not
// resolve are dropped with a warning; Resolve itself never fails.
func Resolve(l Lookup, rels []Relation) (edges []ResolvedEdge, warnings []string) {
	for _, r := range rels {
		id, err := resolveTarget(l, r)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: could not resolve %q: %v", r.Type, r.Target, err))
			continue
		}
		edges = append(edges, ResolvedEdge{Type: r.Type, Target: r.Target, TargetID: id})
	}
	return edges, warnings
}

func resolveTarget(l Lookup, r Relation) (string, error) {
	if r.IsDecisionID() {
		d, err := l.GetDecision(r.Target)
		if err == nil {
			return d.ID, nil
		}
		if !memory.IsNotFound(err) {
			return "", err
		}
	}
	d, err := l.FindDecisionByTopic(r.Target)
	if err != nil {
		if memory.IsNotFound(err) {
			return "", errNoMatch
		}
		return "", err
	}
	return d.ID, nil
}
