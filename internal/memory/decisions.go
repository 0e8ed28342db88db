package memory

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DecisionIDPrefix starts every decision id. The reasoning parser relies on it
// to tell ids apart from bare topics.
const DecisionIDPrefix = "decision_"

// Decision is a recorded design choice with its free-text justification.
// Immutable once created except Outcome and the embedding columns.
type Decision struct {
	ID             string    `json:"id"`
	Topic          string    `json:"topic"`
	Reasoning      string    `json:"reasoning"`
	Outcome        *string   `json:"outcome,omitempty"`
	Embedding      []float32 `json:"-"`
	EmbeddingHash  string    `json:"-"`
	EmbeddingModel string    `json:"embedding_model,omitempty"`
	UserID         string    `json:"user_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// Domain returns the first segment of a namespaced topic ("cad:chair:legs" → "cad").
func (d Decision) Domain() string {
	return TopicDomain(d.Topic)
}

// HasEmbedding reports whether a vector has been computed for the decision.
func (d Decision) HasEmbedding() bool {
	return len(d.Embedding) > 0
}

// EmbeddingText is the text the embedding engine sees for a decision.
func (d Decision) EmbeddingText() string {
	return DecisionText(d.Topic, d.Reasoning)
}

// DecisionText joins topic and reasoning the same way for stored and
// not-yet-persisted decisions.
func DecisionText(topic, reasoning string) string {
	return strings.TrimSpace(topic + "\n" + reasoning)
}

// TopicDomain returns the namespace prefix of a topic, or "general".
func TopicDomain(topic string) string {
	t := strings.TrimSpace(strings.ToLower(topic))
	if i := strings.IndexByte(t, ':'); i > 0 {
		return t[:i]
	}
	return "general"
}

// SaveDecisionParams holds the input for persisting a new decision.
type SaveDecisionParams struct {
	Topic          string
	Reasoning      string
	Outcome        string
	UserID         string
	Embedding      []float32
	EmbeddingHash  string
	EmbeddingModel string
}

// NewDecisionID returns a fresh id matching the decision_<token> pattern.
func NewDecisionID() string {
	return DecisionIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

const decisionCols = `id, topic, reasoning, outcome, embedding, embedding_hash, embedding_model, user_id, created_at`

// SaveDecision validates and inserts a decision, returning it with the
// server-assigned id and created_at.
func (s *Store) SaveDecision(p SaveDecisionParams) (*Decision, error) {
	topic := normalizeTopic(p.Topic)
	if topic == "" {
		return nil, invalid("topic", "must not be empty")
	}
	reasoning := strings.TrimSpace(p.Reasoning)
	if len(reasoning) > s.cfg.MaxReasoningLength {
		reasoning = cutRunes(reasoning, s.cfg.MaxReasoningLength) + "... [truncated]"
	}
	userID := p.UserID
	if userID == "" {
		userID = DefaultUserID
	}

	now := s.Now()
	d := &Decision{
		ID:             NewDecisionID(),
		Topic:          topic,
		Reasoning:      reasoning,
		Outcome:        nullableString(strings.TrimSpace(p.Outcome)),
		Embedding:      p.Embedding,
		EmbeddingHash:  p.EmbeddingHash,
		EmbeddingModel: p.EmbeddingModel,
		UserID:         userID,
		CreatedAt:      parseTime(formatTime(now)),
	}

	if _, err := s.execHook("save decision",
		`INSERT INTO decisions (id, topic, reasoning, outcome, embedding, embedding_hash, embedding_model, user_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Topic, d.Reasoning, d.Outcome,
		EncodeVector(d.Embedding), nullableString(d.EmbeddingHash), nullableString(d.EmbeddingModel),
		d.UserID, formatTime(now), formatTime(now),
	); err != nil {
		return nil, err
	}

	s.log.Debug("decision saved", zap.String("id", d.ID), zap.String("topic", d.Topic))
	return d, nil
}

// GetDecision retrieves a decision by id.
func (s *Store) GetDecision(id string) (*Decision, error) {
	ds, err := s.queryDecisions("get decision",
		`SELECT `+decisionCols+` FROM decisions WHERE id = ?`, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if len(ds) == 0 {
		return nil, notFound("decision", id)
	}
	return &ds[0], nil
}

// FindDecisionByTopic returns the most recent decision on a topic.
func (s *Store) FindDecisionByTopic(topic string) (*Decision, error) {
	t := normalizeTopic(topic)
	if t == "" {
		return nil, invalid("topic", "must not be empty")
	}
	ds, err := s.queryDecisions("find decision by topic",
		`SELECT `+decisionCols+` FROM decisions WHERE topic = ? COLLATE NOCASE
		 ORDER BY created_at DESC LIMIT 1`, t)
	if err != nil {
		return nil, err
	}
	if len(ds) == 0 {
		return nil, notFound("topic", t)
	}
	return &ds[0], nil
}

// UpdateOutcome records the outcome of an existing decision.
func (s *Store) UpdateOutcome(id, outcome string) error {
	outcome = strings.TrimSpace(outcome)
	if outcome == "" {
		return invalid("outcome", "must not be empty")
	}
	res, err := s.execHook("update outcome",
		`UPDATE decisions SET outcome = ?, updated_at = ? WHERE id = ?`,
		outcome, s.stamp(), id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("decision", id)
	}
	return nil
}

// SetDecisionEmbedding stores (or refreshes) a decision's vector and the
// content hash it was computed from.
func (s *Store) SetDecisionEmbedding(id string, vec []float32, hash, model string) error {
	res, err := s.execHook("set decision embedding",
		`UPDATE decisions SET embedding = ?, embedding_hash = ?, embedding_model = ? WHERE id = ?`,
		EncodeVector(vec), nullableString(hash), nullableString(model), id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("decision", id)
	}
	return nil
}

// RecentDecisions returns the newest decisions first.
func (s *Store) RecentDecisions(limit int) ([]Decision, error) {
	if limit <= 0 {
		limit = s.cfg.MaxRecentResults
	}
	return s.queryDecisions("recent decisions",
		`SELECT `+decisionCols+` FROM decisions ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
}

// AllDecisions returns every decision, newest first.
func (s *Store) AllDecisions() ([]Decision, error) {
	return s.queryDecisions("all decisions",
		`SELECT `+decisionCols+` FROM decisions ORDER BY created_at DESC, rowid DESC`)
}

// KeywordSearch runs an FTS5 match over topic, reasoning and outcome.
// Used when semantic search is unavailable.
func (s *Store) KeywordSearch(query string, limit int) ([]Decision, error) {
	q := sanitizeFTS(query)
	if q == "" {
		return s.RecentDecisions(limit)
	}
	if limit <= 0 {
		limit = s.cfg.MaxRecentResults
	}
	return s.queryDecisions("keyword search",
		`SELECT d.id, d.topic, d.reasoning, d.outcome, d.embedding, d.embedding_hash, d.embedding_model, d.user_id, d.created_at
		 FROM decisions_fts f
		 JOIN decisions d ON d.rowid = f.rowid
		 WHERE decisions_fts MATCH ?
		 ORDER BY f.rank, d.created_at DESC
		 LIMIT ?`, q, limit)
}

// CountDecisions returns the number of decisions a user has recorded.
func (s *Store) CountDecisions(userID string) (int, error) {
	if userID == "" {
		userID = DefaultUserID
	}
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM decisions WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, storageErr("count decisions", err)
	}
	return n, nil
}

func (s *Store) queryDecisions(op, query string, args ...any) ([]Decision, error) {
	rows, err := s.queryItHook(op, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []Decision
	for rows.Next() {
		var (
			d         Decision
			blob      []byte
			hash      sql.NullString
			model     sql.NullString
			createdAt string
		)
		if err := rows.Scan(&d.ID, &d.Topic, &d.Reasoning, &d.Outcome, &blob, &hash, &model, &d.UserID, &createdAt); err != nil {
			return nil, storageErr(op, err)
		}
		vec, err := DecodeVector(blob)
		if err != nil {
			s.log.Warn("corrupt decision embedding ignored", zap.String("id", d.ID), zap.Error(err))
			vec = nil
		}
		d.Embedding = vec
		d.EmbeddingHash = hash.String
		d.EmbeddingModel = model.String
		d.CreatedAt = parseTime(createdAt)
		results = append(results, d)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return results, nil
}

func normalizeTopic(topic string) string {
	return strings.TrimSpace(topic)
}
