package memory

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Checkpoint is a named save-point for session resumption.
type Checkpoint struct {
	ID                 string    `json:"id"`
	Summary            string    `json:"summary"`
	RelatedDecisionIDs []string  `json:"related_decision_ids"`
	NextSteps          string    `json:"next_steps,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// SaveCheckpoint persists a checkpoint. Related ids are stored as given;
// loaders report missing ones instead of failing.
func (s *Store) SaveCheckpoint(summary string, relatedIDs []string, nextSteps string) (*Checkpoint, error) {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return nil, invalid("summary", "must not be empty")
	}
	ids := make([]string, 0, len(relatedIDs))
	for _, id := range relatedIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return nil, invalid("related_decision_ids", err.Error())
	}

	now := s.Now()
	cp := &Checkpoint{
		ID:                 "checkpoint_" + uuid.NewString(),
		Summary:            summary,
		RelatedDecisionIDs: ids,
		NextSteps:          strings.TrimSpace(nextSteps),
		CreatedAt:          parseTime(formatTime(now)),
	}
	if _, err := s.execHook("save checkpoint",
		`INSERT INTO checkpoints (id, summary, related_decision_ids, next_steps, created_at) VALUES (?, ?, ?, ?, ?)`,
		cp.ID, cp.Summary, string(raw), nullableString(cp.NextSteps), formatTime(now),
	); err != nil {
		return nil, err
	}
	return cp, nil
}

// GetCheckpoint retrieves a checkpoint by id.
func (s *Store) GetCheckpoint(id string) (*Checkpoint, error) {
	cps, err := s.queryCheckpoints("get checkpoint",
		`SELECT id, summary, related_decision_ids, next_steps, created_at FROM checkpoints WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(cps) == 0 {
		return nil, notFound("checkpoint", id)
	}
	return &cps[0], nil
}

// LatestCheckpoint returns the newest checkpoint, or NotFoundError when none exist.
func (s *Store) LatestCheckpoint() (*Checkpoint, error) {
	cps, err := s.queryCheckpoints("latest checkpoint",
		`SELECT id, summary, related_decision_ids, next_steps, created_at FROM checkpoints
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`)
	if err != nil {
		return nil, err
	}
	if len(cps) == 0 {
		return nil, notFound("checkpoint", "latest")
	}
	return &cps[0], nil
}

func (s *Store) queryCheckpoints(op, query string, args ...any) ([]Checkpoint, error) {
	rows, err := s.queryItHook(op, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []Checkpoint
	for rows.Next() {
		var (
			cp        Checkpoint
			raw       string
			next      *string
			createdAt string
		)
		if err := rows.Scan(&cp.ID, &cp.Summary, &raw, &next, &createdAt); err != nil {
			return nil, storageErr(op, err)
		}
		if err := json.Unmarshal([]byte(raw), &cp.RelatedDecisionIDs); err != nil {
			cp.RelatedDecisionIDs = nil
		}
		cp.NextSteps = derefString(next)
		cp.CreatedAt = parseTime(createdAt)
		result = append(result, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return result, nil
}
