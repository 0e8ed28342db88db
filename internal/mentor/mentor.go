// Package mentor derives per-domain skill levels from a user's activity and
// scales guidance to them.
//
// Four levels drive progressive disclosure:
//   - novice: explicit next-step suggestions
//   - intermediate: suggestions plus stored hints
//   - proficient: short reminders
//   - advanced: terse prompts only
package mentor

import (
	"strings"

	"go.uber.org/zap"

	"github.com/HendryAvila/mama/internal/memory"
)

// Skill levels.
const (
	LevelNovice       = 1
	LevelIntermediate = 2
	LevelProficient   = 3
	LevelAdvanced     = 4
)

// Action-count thresholds for each level above novice.
const (
	intermediateActions = 5
	proficientActions   = 20
	advancedActions     = 50
)

// Independence bonus: one extra level once at least half of a user's
// decisions were made independently, after a minimum amount of activity.
const (
	independenceRatio      = 0.5
	independenceMinActions = 10
)

// LevelName returns the label for a level.
func LevelName(level int) string {
	switch level {
	case LevelIntermediate:
		return "intermediate"
	case LevelProficient:
		return "proficient"
	case LevelAdvanced:
		return "advanced"
	default:
		return "novice"
	}
}

// ComputeLevel maps activity in a domain to a level. It is a pure function of
// its inputs so profiles can be recomputed from scratch at any time.
func ComputeLevel(actions int, independentRatio float64) int {
	level := LevelNovice
	switch {
	case actions >= advancedActions:
		level = LevelAdvanced
	case actions >= proficientActions:
		level = LevelProficient
	case actions >= intermediateActions:
		level = LevelIntermediate
	}
	if independentRatio >= independenceRatio && actions >= independenceMinActions && level < LevelAdvanced {
		level++
	}
	return level
}

// DomainSkill is one domain's entry in a profile.
type DomainSkill struct {
	Domain    string `json:"domain"`
	Actions   int    `json:"actions"`
	Level     int    `json:"level"`
	LevelName string `json:"level_name"`
}

// SkillProfile is a user's recomputed skill picture.
type SkillProfile struct {
	UserID           string                    `json:"user_id"`
	Domains          []DomainSkill             `json:"domains"`
	IndependentRatio float64                   `json:"independent_ratio"`
	Growth           map[memory.GrowthType]int `json:"growth"`
	Learnings        []memory.Learning         `json:"learnings"`
}

// Level returns the level for a domain, or novice when it has no activity.
func (p *SkillProfile) Level(domain string) int {
	domain = strings.ToLower(strings.TrimSpace(domain))
	for _, d := range p.Domains {
		if d.Domain == domain {
			return d.Level
		}
	}
	return LevelNovice
}

// Mentor tracks learning, growth and skill for users.
type Mentor struct {
	store *memory.Store
	log   *zap.Logger
}

// New creates a Mentor.
func New(store *memory.Store, log *zap.Logger) *Mentor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mentor{store: store, log: log.Named("mentor")}
}

// RecordAction counts one mutating action in a domain and returns the
// recomputed level for it.
func (m *Mentor) RecordAction(userID, domain string) (DomainSkill, error) {
	if _, err := m.store.IncrementActionCount(userID, domain); err != nil {
		return DomainSkill{}, err
	}
	p, err := m.Profile(userID)
	if err != nil {
		return DomainSkill{}, err
	}
	domain = strings.ToLower(strings.TrimSpace(domain))
	for _, d := range p.Domains {
		if d.Domain == domain {
			return d, nil
		}
	}
	return DomainSkill{Domain: domain, Level: LevelNovice, LevelName: LevelName(LevelNovice)}, nil
}

// Profile recomputes every domain level from raw counts and stores the
// result. Stored levels never go down: a recomputed level lower than the
// stored one keeps the stored one.
func (m *Mentor) Profile(userID string) (*SkillProfile, error) {
	counts, err := m.store.ActionCounts(userID)
	if err != nil {
		return nil, err
	}
	growth, err := m.store.GrowthCounts(userID)
	if err != nil {
		return nil, err
	}
	decisions, err := m.store.CountDecisions(userID)
	if err != nil {
		return nil, err
	}
	learnings, err := m.store.ListLearnings(userID)
	if err != nil {
		return nil, err
	}
	if learnings == nil {
		learnings = []memory.Learning{}
	}

	p := &SkillProfile{
		UserID:           userOrDefault(userID),
		Domains:          []DomainSkill{},
		IndependentRatio: IndependentRatio(growth[memory.GrowthIndependentDecision], decisions),
		Growth:           growth,
		Learnings:        learnings,
	}
	for _, domain := range sortedKeys(counts) {
		n := counts[domain]
		level, err := m.store.SaveSkillLevel(userID, domain, ComputeLevel(n, p.IndependentRatio))
		if err != nil {
			return nil, err
		}
		p.Domains = append(p.Domains, DomainSkill{Domain: domain, Actions: n, Level: level, LevelName: LevelName(level)})
	}
	return p, nil
}

// IndependentRatio is independent-decision events over total decisions,
// capped at 1. It is 0 with no decisions.
func IndependentRatio(independent, decisions int) float64 {
	if decisions <= 0 || independent <= 0 {
		return 0
	}
	r := float64(independent) / float64(decisions)
	if r > 1 {
		return 1
	}
	return r
}

// RecordLearning sets a concept's understanding level (never lowering it).
func (m *Mentor) RecordLearning(userID, concept string, level int) (*memory.Learning, error) {
	return m.store.RecordLearning(userID, concept, level)
}

// ApplyConcept counts an application of a concept and logs a concept_applied
// growth event. The third application promotes the concept to mastery.
func (m *Mentor) ApplyConcept(userID, concept string) (*memory.Learning, error) {
	l, err := m.store.ApplyConcept(userID, concept)
	if err != nil {
		return nil, err
	}
	if err := m.store.AddGrowthMetric(userID, memory.GrowthConceptApplied); err != nil {
		m.log.Warn("growth event not recorded", zap.String("concept", l.Concept), zap.Error(err))
	}
	return l, nil
}

// RecordGrowth appends a growth event of the given type.
func (m *Mentor) RecordGrowth(userID, typ string) (memory.GrowthType, error) {
	t, err := memory.ParseGrowthType(typ)
	if err != nil {
		return "", err
	}
	return t, m.store.AddGrowthMetric(userID, t)
}

func userOrDefault(userID string) string {
	if u := strings.TrimSpace(userID); u != "" {
		return u
	}
	return memory.DefaultUserID
}
