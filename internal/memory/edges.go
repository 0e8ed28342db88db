package memory

import (
	"strings"
	"time"
)

// EdgeType is a typed relationship between two decisions.
type EdgeType string

const (
	EdgeBuildsOn    EdgeType = "builds_on"
	EdgeDebates     EdgeType = "debates"
	EdgeSynthesizes EdgeType = "synthesizes"
)

// EdgeTypes lists every valid edge type in a stable order.
func EdgeTypes() []EdgeType {
	return []EdgeType{EdgeBuildsOn, EdgeDebates, EdgeSynthesizes}
}

// ParseEdgeType normalizes and validates an edge type string.
func ParseEdgeType(s string) (EdgeType, error) {
	t := EdgeType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case EdgeBuildsOn, EdgeDebates, EdgeSynthesizes:
		return t, nil
	}
	return "", invalid("edge type", "must be one of: builds_on, debates, synthesizes")
}

// Edge is a directed, typed link from one decision to another.
type Edge struct {
	ID        int64     `json:"id"`
	FromID    string    `json:"from_id"`
	ToID      string    `json:"to_id"`
	Type      EdgeType  `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// InsertEdge creates an edge between two existing decisions. Identical edges
// are not re-inserted; inserted reports whether a new row was written.
func (s *Store) InsertEdge(fromID, toID string, typ EdgeType) (inserted bool, err error) {
	t, err := ParseEdgeType(string(typ))
	if err != nil {
		return false, err
	}
	fromID, toID = strings.TrimSpace(fromID), strings.TrimSpace(toID)
	if fromID == "" || toID == "" {
		return false, invalid("edge", "both endpoints are required")
	}
	if fromID == toID {
		return false, invalid("edge", "a decision cannot reference itself")
	}

	for _, id := range []string{fromID, toID} {
		exists, err := s.decisionExists(id)
		if err != nil {
			return false, err
		}
		if !exists {
			return false, notFound("decision", id)
		}
	}

	res, err := s.execHook("insert edge",
		`INSERT OR IGNORE INTO edges (from_id, to_id, type, created_at) VALUES (?, ?, ?, ?)`,
		fromID, toID, string(t), s.stamp(),
	)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListEdgesFor returns all edges where the decision is either endpoint.
func (s *Store) ListEdgesFor(id string) ([]Edge, error) {
	return s.queryEdges("list edges for decision",
		`SELECT id, from_id, to_id, type, created_at FROM edges
		 WHERE from_id = ? OR to_id = ?
		 ORDER BY created_at ASC, id ASC`, id, id)
}

// AllEdges returns every edge in insertion order.
func (s *Store) AllEdges() ([]Edge, error) {
	return s.queryEdges("all edges",
		`SELECT id, from_id, to_id, type, created_at FROM edges ORDER BY id ASC`)
}

func (s *Store) decisionExists(id string) (bool, error) {
	rows, err := s.queryItHook("check decision", `SELECT 1 FROM decisions WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	defer func() { _ = rows.Close() }()
	return rows.Next(), nil
}

func (s *Store) queryEdges(op, query string, args ...any) ([]Edge, error) {
	rows, err := s.queryItHook(op, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []Edge
	for rows.Next() {
		var (
			e         Edge
			typ       string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.FromID, &e.ToID, &typ, &createdAt); err != nil {
			return nil, storageErr(op, err)
		}
		e.Type = EdgeType(typ)
		e.CreatedAt = parseTime(createdAt)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return result, nil
}
