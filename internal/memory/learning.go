package memory

import (
	"strings"
	"time"
)

// MasteryLevel is the understanding level at which a concept counts as mastered.
const MasteryLevel = 4

// MasteryApplications is the applied_count that auto-upgrades a learning to MasteryLevel.
const MasteryApplications = 3

// Learning tracks how well a user understands a concept.
type Learning struct {
	UserID             string    `json:"user_id"`
	Concept            string    `json:"concept"`
	UnderstandingLevel int       `json:"understanding_level"`
	AppliedCount       int       `json:"applied_count"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// GrowthType is the kind of an append-only growth event.
type GrowthType string

const (
	GrowthIndependentDecision GrowthType = "independent_decision"
	GrowthConceptApplied      GrowthType = "concept_applied"
	GrowthTradeoffPredicted   GrowthType = "tradeoff_predicted"
	GrowthTerminologyUsed     GrowthType = "terminology_used"
)

// ParseGrowthType validates a growth metric type.
func ParseGrowthType(s string) (GrowthType, error) {
	t := GrowthType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case GrowthIndependentDecision, GrowthConceptApplied, GrowthTradeoffPredicted, GrowthTerminologyUsed:
		return t, nil
	}
	return "", invalid("growth type", "must be one of: independent_decision, concept_applied, tradeoff_predicted, terminology_used")
}

// ─── Learnings ───────────────────────────────────────────────────────────────

// RecordLearning sets a concept's understanding level. The stored level never
// decreases: a lower level than the current one is ignored.
func (s *Store) RecordLearning(userID, concept string, level int) (*Learning, error) {
	userID, concept = userOrDefault(userID), normalizeConcept(concept)
	if concept == "" {
		return nil, invalid("concept", "must not be empty")
	}
	if level < 1 || level > MasteryLevel {
		return nil, invalid("understanding_level", "must be between 1 and 4")
	}

	if _, err := s.execHook("record learning",
		`INSERT INTO learnings (user_id, concept, understanding_level, applied_count, updated_at)
		 VALUES (?, ?, ?, 0, ?)
		 ON CONFLICT(user_id, concept) DO UPDATE SET
		   understanding_level = MAX(learnings.understanding_level, excluded.understanding_level),
		   updated_at = excluded.updated_at`,
		userID, concept, level, s.stamp(),
	); err != nil {
		return nil, err
	}
	return s.GetLearning(userID, concept)
}

// ApplyConcept increments a concept's applied_count, creating the record at
// level 1 when it does not exist. Reaching MasteryApplications upgrades the
// level to MasteryLevel.
func (s *Store) ApplyConcept(userID, concept string) (*Learning, error) {
	userID, concept = userOrDefault(userID), normalizeConcept(concept)
	if concept == "" {
		return nil, invalid("concept", "must not be empty")
	}

	if _, err := s.execHook("apply concept",
		`INSERT INTO learnings (user_id, concept, understanding_level, applied_count, updated_at)
		 VALUES (?, ?, 1, 1, ?)
		 ON CONFLICT(user_id, concept) DO UPDATE SET
		   applied_count = learnings.applied_count + 1,
		   understanding_level = CASE
		     WHEN learnings.applied_count + 1 >= ? THEN ?
		     ELSE learnings.understanding_level
		   END,
		   updated_at = excluded.updated_at`,
		userID, concept, s.stamp(), MasteryApplications, MasteryLevel,
	); err != nil {
		return nil, err
	}
	return s.GetLearning(userID, concept)
}

// GetLearning retrieves a single learning record.
func (s *Store) GetLearning(userID, concept string) (*Learning, error) {
	userID, concept = userOrDefault(userID), normalizeConcept(concept)
	ls, err := s.queryLearnings("get learning",
		`SELECT user_id, concept, understanding_level, applied_count, updated_at
		 FROM learnings WHERE user_id = ? AND concept = ?`, userID, concept)
	if err != nil {
		return nil, err
	}
	if len(ls) == 0 {
		return nil, notFound("learning", concept)
	}
	return &ls[0], nil
}

// ListLearnings returns a user's learnings, most advanced first.
func (s *Store) ListLearnings(userID string) ([]Learning, error) {
	return s.queryLearnings("list learnings",
		`SELECT user_id, concept, understanding_level, applied_count, updated_at
		 FROM learnings WHERE user_id = ?
		 ORDER BY understanding_level DESC, concept ASC`, userOrDefault(userID))
}

func (s *Store) queryLearnings(op, query string, args ...any) ([]Learning, error) {
	rows, err := s.queryItHook(op, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []Learning
	for rows.Next() {
		var (
			l         Learning
			updatedAt string
		)
		if err := rows.Scan(&l.UserID, &l.Concept, &l.UnderstandingLevel, &l.AppliedCount, &updatedAt); err != nil {
			return nil, storageErr(op, err)
		}
		l.UpdatedAt = parseTime(updatedAt)
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return result, nil
}

// ─── Growth metrics ──────────────────────────────────────────────────────────

// AddGrowthMetric appends a growth event.
func (s *Store) AddGrowthMetric(userID string, typ GrowthType) error {
	t, err := ParseGrowthType(string(typ))
	if err != nil {
		return err
	}
	_, err = s.execHook("add growth metric",
		`INSERT INTO growth_metrics (user_id, type, created_at) VALUES (?, ?, ?)`,
		userOrDefault(userID), string(t), s.stamp(),
	)
	return err
}

// GrowthCounts returns the number of events per type for a user. Types with
// no events are present with a zero count.
func (s *Store) GrowthCounts(userID string) (map[GrowthType]int, error) {
	rows, err := s.queryItHook("growth counts",
		`SELECT type, COUNT(*) FROM growth_metrics WHERE user_id = ? GROUP BY type`, userOrDefault(userID))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	counts := map[GrowthType]int{
		GrowthIndependentDecision: 0,
		GrowthConceptApplied:      0,
		GrowthTradeoffPredicted:   0,
		GrowthTerminologyUsed:     0,
	}
	for rows.Next() {
		var (
			typ string
			n   int
		)
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, storageErr("growth counts", err)
		}
		counts[GrowthType(typ)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("growth counts", err)
	}
	return counts, nil
}

// ─── Action counts & skill levels ────────────────────────────────────────────

// IncrementActionCount bumps a user's action counter for a domain and returns
// the new count.
func (s *Store) IncrementActionCount(userID, domain string) (int, error) {
	userID, domain = userOrDefault(userID), normalizeDomain(domain)
	if domain == "" {
		return 0, invalid("domain", "must not be empty")
	}
	if _, err := s.execHook("increment action count",
		`INSERT INTO action_counts (user_id, domain, count, updated_at) VALUES (?, ?, 1, ?)
		 ON CONFLICT(user_id, domain) DO UPDATE SET count = action_counts.count + 1, updated_at = excluded.updated_at`,
		userID, domain, s.stamp(),
	); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRow(`SELECT count FROM action_counts WHERE user_id = ? AND domain = ?`, userID, domain).Scan(&n); err != nil {
		return 0, storageErr("increment action count", err)
	}
	return n, nil
}

// ActionCounts returns per-domain action counts for a user.
func (s *Store) ActionCounts(userID string) (map[string]int, error) {
	return s.queryDomainInts("action counts",
		`SELECT domain, count FROM action_counts WHERE user_id = ?`, userOrDefault(userID))
}

// SkillLevels returns the cached per-domain skill levels for a user.
func (s *Store) SkillLevels(userID string) (map[string]int, error) {
	return s.queryDomainInts("skill levels",
		`SELECT domain, level FROM skill_levels WHERE user_id = ?`, userOrDefault(userID))
}

// SaveSkillLevel stores a domain's skill level, keeping the higher of the
// stored and given level. It returns the level now stored.
func (s *Store) SaveSkillLevel(userID, domain string, level int) (int, error) {
	userID, domain = userOrDefault(userID), normalizeDomain(domain)
	if domain == "" {
		return 0, invalid("domain", "must not be empty")
	}
	if level < 1 || level > MasteryLevel {
		return 0, invalid("level", "must be between 1 and 4")
	}
	if _, err := s.execHook("save skill level",
		`INSERT INTO skill_levels (user_id, domain, level, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, domain) DO UPDATE SET
		   level = MAX(skill_levels.level, excluded.level),
		   updated_at = excluded.updated_at`,
		userID, domain, level, s.stamp(),
	); err != nil {
		return 0, err
	}
	var stored int
	if err := s.db.QueryRow(`SELECT level FROM skill_levels WHERE user_id = ? AND domain = ?`, userID, domain).Scan(&stored); err != nil {
		return 0, storageErr("save skill level", err)
	}
	return stored, nil
}

func (s *Store) queryDomainInts(op, query string, args ...any) (map[string]int, error) {
	rows, err := s.queryItHook(op, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]int)
	for rows.Next() {
		var (
			domain string
			n      int
		)
		if err := rows.Scan(&domain, &n); err != nil {
			return nil, storageErr(op, err)
		}
		result[domain] = n
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return result, nil
}

func userOrDefault(userID string) string {
	if u := strings.TrimSpace(userID); u != "" {
		return u
	}
	return DefaultUserID
}

func normalizeConcept(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}
