package memory

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Hint status values.
const (
	HintActive   = "active"
	HintDisabled = "disabled"
)

// Hint is user-editable guidance injected alongside tool listings.
type Hint struct {
	ID        string    `json:"id"`
	Domain    string    `json:"domain"`
	Text      string    `json:"text"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HintPatch holds partial update fields for a hint.
type HintPatch struct {
	Domain *string
	Text   *string
	Status *string
}

// AddHint creates an active hint for a domain.
func (s *Store) AddHint(domain, text string) (*Hint, error) {
	domain = normalizeDomain(domain)
	text = strings.TrimSpace(text)
	if domain == "" {
		return nil, invalid("domain", "must not be empty")
	}
	if text == "" {
		return nil, invalid("text", "must not be empty")
	}

	now := s.stamp()
	h := &Hint{ID: "hint_" + uuid.NewString(), Domain: domain, Text: text, Status: HintActive}
	if _, err := s.execHook("add hint",
		`INSERT INTO hints (id, domain, text, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		h.ID, h.Domain, h.Text, h.Status, now, now,
	); err != nil {
		return nil, err
	}
	h.CreatedAt = parseTime(now)
	h.UpdatedAt = h.CreatedAt
	return h, nil
}

// GetHint retrieves a hint by id.
func (s *Store) GetHint(id string) (*Hint, error) {
	hs, err := s.queryHints("get hint",
		`SELECT id, domain, text, status, created_at, updated_at FROM hints WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(hs) == 0 {
		return nil, notFound("hint", id)
	}
	return &hs[0], nil
}

// UpdateHint applies a partial update in a single statement.
func (s *Store) UpdateHint(id string, p HintPatch) (*Hint, error) {
	current, err := s.GetHint(id)
	if err != nil {
		return nil, err
	}
	domain, text, status := current.Domain, current.Text, current.Status
	if p.Domain != nil {
		if domain = normalizeDomain(*p.Domain); domain == "" {
			return nil, invalid("domain", "must not be empty")
		}
	}
	if p.Text != nil {
		if text = strings.TrimSpace(*p.Text); text == "" {
			return nil, invalid("text", "must not be empty")
		}
	}
	if p.Status != nil {
		status = strings.ToLower(strings.TrimSpace(*p.Status))
		if status != HintActive && status != HintDisabled {
			return nil, invalid("status", "must be active or disabled")
		}
	}

	if _, err := s.execHook("update hint",
		`UPDATE hints SET domain = ?, text = ?, status = ?, updated_at = ? WHERE id = ?`,
		domain, text, status, s.stamp(), id,
	); err != nil {
		return nil, err
	}
	return s.GetHint(id)
}

// DeleteHint removes a hint permanently.
func (s *Store) DeleteHint(id string) error {
	res, err := s.execHook("delete hint", `DELETE FROM hints WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("hint", id)
	}
	return nil
}

// ListHints returns hints, optionally filtered by domain and active status.
func (s *Store) ListHints(domain string, activeOnly bool) ([]Hint, error) {
	query := `SELECT id, domain, text, status, created_at, updated_at FROM hints WHERE 1=1`
	args := []any{}
	if d := normalizeDomain(domain); d != "" {
		query += " AND domain = ?"
		args = append(args, d)
	}
	if activeOnly {
		query += " AND status = ?"
		args = append(args, HintActive)
	}
	query += " ORDER BY created_at ASC, rowid ASC"
	return s.queryHints("list hints", query, args...)
}

func (s *Store) queryHints(op, query string, args ...any) ([]Hint, error) {
	rows, err := s.queryItHook(op, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []Hint
	for rows.Next() {
		var (
			h                    Hint
			createdAt, updatedAt string
		)
		if err := rows.Scan(&h.ID, &h.Domain, &h.Text, &h.Status, &createdAt, &updatedAt); err != nil {
			return nil, storageErr(op, err)
		}
		h.CreatedAt = parseTime(createdAt)
		h.UpdatedAt = parseTime(updatedAt)
		result = append(result, h)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return result, nil
}

func normalizeDomain(d string) string {
	return strings.ToLower(strings.TrimSpace(d))
}
