package mentor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/HendryAvila/mama/internal/memory"
)

func newMentor(t *testing.T) (*Mentor, *memory.Store) {
	t.Helper()
	s, err := memory.New(memory.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, zaptest.NewLogger(t)), s
}

func TestComputeLevel(t *testing.T) {
	tests := []struct {
		actions int
		ratio   float64
		want    int
	}{
		{0, 0, LevelNovice},
		{4, 0, LevelNovice},
		{5, 0, LevelIntermediate},
		{19, 0, LevelIntermediate},
		{20, 0, LevelProficient},
		{50, 0, LevelAdvanced},
		{9, 1, LevelIntermediate},
		{10, 0.5, LevelProficient},
		{10, 0.49, LevelIntermediate},
		{60, 1, LevelAdvanced},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ComputeLevel(tt.actions, tt.ratio), "actions=%d ratio=%v", tt.actions, tt.ratio)
	}
}

func TestIndependentRatio(t *testing.T) {
	assert.Zero(t, IndependentRatio(3, 0))
	assert.InDelta(t, 0.25, IndependentRatio(1, 4), 1e-9)
	assert.Equal(t, 1.0, IndependentRatio(9, 4))
}

func TestRecordAction_PromotesWithActivity(t *testing.T) {
	m, _ := newMentor(t)

	var skill DomainSkill
	var err error
	for i := 0; i < 5; i++ {
		skill, err = m.RecordAction("", "cad")
		require.NoError(t, err)
	}
	assert.Equal(t, 5, skill.Actions)
	assert.Equal(t, LevelIntermediate, skill.Level)
	assert.Equal(t, "intermediate", skill.LevelName)
}

func TestProfile_LevelsNeverDrop(t *testing.T) {
	m, s := newMentor(t)

	// 10 actions and every decision independent: intermediate + bonus.
	for i := 0; i < 10; i++ {
		_, err := m.RecordAction("u1", "cad")
		require.NoError(t, err)
	}
	_, err := s.SaveDecision(memory.SaveDecisionParams{Topic: "cad:legs", Reasoning: "four legs", UserID: "u1"})
	require.NoError(t, err)
	_, err = m.RecordGrowth("u1", "independent_decision")
	require.NoError(t, err)

	p, err := m.Profile("u1")
	require.NoError(t, err)
	assert.Equal(t, LevelProficient, p.Level("cad"))

	// More decisions without independence lower the ratio; the level stays.
	for i := 0; i < 3; i++ {
		_, err := s.SaveDecision(memory.SaveDecisionParams{Topic: "cad:seat", Reasoning: "flat", UserID: "u1"})
		require.NoError(t, err)
	}
	p, err = m.Profile("u1")
	require.NoError(t, err)
	assert.InDelta(t, 0.25, p.IndependentRatio, 1e-9)
	assert.Equal(t, LevelProficient, p.Level("cad"))
}

func TestProfile_UnknownDomainIsNovice(t *testing.T) {
	m, _ := newMentor(t)
	p, err := m.Profile("")
	require.NoError(t, err)
	assert.Empty(t, p.Domains)
	assert.Equal(t, LevelNovice, p.Level("anything"))
	assert.Len(t, p.Growth, 4)
}

func TestApplyConcept_RecordsGrowthAndMastery(t *testing.T) {
	m, s := newMentor(t)

	_, err := m.RecordLearning("", "Extrusion", 2)
	require.NoError(t, err)
	var l *memory.Learning
	for i := 0; i < 3; i++ {
		l, err = m.ApplyConcept("", "extrusion")
		require.NoError(t, err)
	}
	assert.Equal(t, memory.MasteryLevel, l.UnderstandingLevel)

	growth, err := s.GrowthCounts("")
	require.NoError(t, err)
	assert.Equal(t, 3, growth[memory.GrowthConceptApplied])
}

func TestRecordGrowth_RejectsUnknownType(t *testing.T) {
	m, _ := newMentor(t)
	_, err := m.RecordGrowth("", "vibes")
	assert.True(t, memory.IsValidation(err))
}

func TestScaleHints(t *testing.T) {
	stored := []string{"Group parts before scaling.\nThen position them."}

	novice := ScaleHints(LevelNovice, stored)
	assert.Len(t, novice, len(baseHints)+1)
	assert.Equal(t, stored[0], novice[len(novice)-1])

	guided := ScaleHints(LevelIntermediate, stored)
	assert.Len(t, guided, 3)

	concise := ScaleHints(LevelProficient, stored)
	require.Len(t, concise, 2)
	assert.Equal(t, "Group parts before scaling.", concise[1])

	terse := ScaleHints(LevelAdvanced, stored)
	assert.Len(t, terse, 1)
	assert.Less(t, len(terse[0]), len(baseHints[0]))
}

func TestAdaptiveHints_UsesDomainHintsAndLevel(t *testing.T) {
	m, s := newMentor(t)

	_, err := s.AddHint("cad", "Name parts after their function.")
	require.NoError(t, err)
	_, err = s.AddHint("web", "unrelated")
	require.NoError(t, err)

	h, err := m.AdaptiveHints("", "CAD")
	require.NoError(t, err)
	assert.Equal(t, "cad", h.Domain)
	assert.Equal(t, VerbosityDetailed, h.Verbosity)
	assert.Contains(t, h.Hints, "Name parts after their function.")
	assert.NotContains(t, h.Hints, "unrelated")

	for i := 0; i < 50; i++ {
		_, err := m.RecordAction("", "cad")
		require.NoError(t, err)
	}
	h, err = m.AdaptiveHints("", "cad")
	require.NoError(t, err)
	assert.Equal(t, LevelAdvanced, h.Level)
	assert.Equal(t, VerbosityTerse, h.Verbosity)
	assert.Len(t, h.Hints, 1)
}

func TestAdaptiveHints_EmptyDomain(t *testing.T) {
	m, _ := newMentor(t)
	_, err := m.AdaptiveHints("", " ")
	assert.True(t, memory.IsValidation(err))
}
