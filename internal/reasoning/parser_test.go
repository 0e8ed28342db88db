package reasoning

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/mama/internal/memory"
)

func TestParse_BuildsOn(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []Relation
	}{
		{"plain", "builds_on: topic_x", []Relation{{memory.EdgeBuildsOn, "topic_x"}}},
		{"upper case keyword", "BUILDS_ON: cad:chair", []Relation{{memory.EdgeBuildsOn, "cad:chair"}}},
		{"space before colon", "builds_on : decision_ab12", []Relation{{memory.EdgeBuildsOn, "decision_ab12"}}},
		{"trailing prose", "builds_on: auth:jwt because tokens work", []Relation{{memory.EdgeBuildsOn, "auth:jwt"}}},
		{"trailing punctuation", "builds_on: auth:jwt.", []Relation{{memory.EdgeBuildsOn, "auth:jwt"}}},
		{"bullet", "- builds_on: layout", []Relation{{memory.EdgeBuildsOn, "layout"}}},
		{"quoted", `builds_on: "layout:grid"`, []Relation{{memory.EdgeBuildsOn, "layout:grid"}}},
		{"missing target", "builds_on:", nil},
		{"no colon", "this builds_on earlier work", nil},
		{"embedded word", "rebuilds_on: x", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.in))
		})
	}
}

func TestParse_Debates(t *testing.T) {
	got := Parse("We reconsidered.\ndebates: decision_1f2e\n")
	assert.Equal(t, []Relation{{memory.EdgeDebates, "decision_1f2e"}}, got)
}

func TestParse_Synthesizes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []Relation
	}{
		{"bracketed", "synthesizes: [a, b, c]", []Relation{
			{memory.EdgeSynthesizes, "a"}, {memory.EdgeSynthesizes, "b"}, {memory.EdgeSynthesizes, "c"},
		}},
		{"unbracketed", "Synthesizes: cad:legs, cad:top", []Relation{
			{memory.EdgeSynthesizes, "cad:legs"}, {memory.EdgeSynthesizes, "cad:top"},
		}},
		{"empty list", "synthesizes: []", nil},
		{"text after bracket", "synthesizes: [x, y] into one plan", []Relation{
			{memory.EdgeSynthesizes, "x"}, {memory.EdgeSynthesizes, "y"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.in))
		})
	}
}

func TestParse_MixedAndDeduplicated(t *testing.T) {
	in := "builds_on: a\ndebates: b\nbuilds_on: a\nsynthesizes: [a, c]"
	want := []Relation{
		{memory.EdgeBuildsOn, "a"},
		{memory.EdgeDebates, "b"},
		{memory.EdgeSynthesizes, "a"},
		{memory.EdgeSynthesizes, "c"},
	}
	assert.Equal(t, want, Parse(in))
}

func TestParse_NoRelations(t *testing.T) {
	assert.Empty(t, Parse(""))
	assert.Empty(t, Parse("just a normal reasoning paragraph"))
}

// fakeLookup resolves ids and topics from in-memory maps.
type fakeLookup struct {
	byID    map[string]*memory.Decision
	byTopic map[string]*memory.Decision
	err     error
}

func (f fakeLookup) GetDecision(id string) (*memory.Decision, error) {
	if f.err != nil {
		return nil, f.err
	}
	if d, ok := f.byID[id]; ok {
		return d, nil
	}
	return nil, &memory.NotFoundError{Kind: "decision", Key: id}
}

func (f fakeLookup) FindDecisionByTopic(topic string) (*memory.Decision, error) {
	if f.err != nil {
		return nil, f.err
	}
	if d, ok := f.byTopic[topic]; ok {
		return d, nil
	}
	return nil, &memory.NotFoundError{Kind: "topic", Key: topic}
}

func TestResolve(t *testing.T) {
	x := &memory.Decision{ID: "decision_x", Topic: "topic_x"}
	l := fakeLookup{
		byID:    map[string]*memory.Decision{x.ID: x},
		byTopic: map[string]*memory.Decision{x.Topic: x},
	}

	t.Run("topic resolves", func(t *testing.T) {
		edges, warnings := Resolve(l, Parse("builds_on: topic_x"))
		require.Len(t, edges, 1)
		assert.Empty(t, warnings)
		assert.Equal(t, ResolvedEdge{Type: memory.EdgeBuildsOn, Target: "topic_x", TargetID: "decision_x"}, edges[0])
	})

	t.Run("id binds directly", func(t *testing.T) {
		edges, warnings := Resolve(l, Parse("debates: decision_x"))
		require.Len(t, edges, 1)
		assert.Empty(t, warnings)
		assert.Equal(t, "decision_x", edges[0].TargetID)
	})

	t.Run("unknown target warns", func(t *testing.T) {
		edges, warnings := Resolve(l, Parse("builds_on: topic_y"))
		assert.Empty(t, edges)
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0], "topic_y")
	})

	t.Run("partial synthesis", func(t *testing.T) {
		edges, warnings := Resolve(l, Parse("synthesizes: [topic_x, ghost]"))
		assert.Len(t, edges, 1)
		assert.Len(t, warnings, 1)
	})

	t.Run("storage failure becomes warning", func(t *testing.T) {
		broken := fakeLookup{err: errors.New("disk gone")}
		edges, warnings := Resolve(broken, Parse("builds_on: topic_x"))
		assert.Empty(t, edges)
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0], "disk gone")
	})
}
