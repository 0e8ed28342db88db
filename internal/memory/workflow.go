package memory

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WorkflowProject is the persisted state of a phased project. Phase order and
// transition rules live in the workflow package; the store only persists.
type WorkflowProject struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Phase           string    `json:"phase"`
	Active          bool      `json:"active"`
	CompletedPhases []string  `json:"completed_phases"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// WorkflowArtifact is a phase-scoped output attached to a project.
type WorkflowArtifact struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Phase     string    `json:"phase"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrActiveProjectExists is returned by CreateProject when another project is active.
var ErrActiveProjectExists = invalid("workflow", "a project is already active")

const projectCols = `id, name, phase, active, completed_phases, created_at, updated_at`

// CreateProject inserts a new active project. The partial unique index on
// active rows rejects a second active project.
func (s *Store) CreateProject(name, phase string) (*WorkflowProject, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "must not be empty")
	}
	now := s.stamp()
	p := &WorkflowProject{
		ID:              "project_" + uuid.NewString(),
		Name:            name,
		Phase:           phase,
		Active:          true,
		CompletedPhases: []string{},
	}
	_, err := s.execHook("create project",
		`INSERT INTO workflow_projects (id, name, phase, active, completed_phases, created_at, updated_at)
		 VALUES (?, ?, ?, 1, '[]', ?, ?)`,
		p.ID, p.Name, p.Phase, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrActiveProjectExists
		}
		return nil, err
	}
	p.CreatedAt = parseTime(now)
	p.UpdatedAt = p.CreatedAt
	return p, nil
}

// ActiveProject returns the active project, or nil when there is none.
func (s *Store) ActiveProject() (*WorkflowProject, error) {
	ps, err := s.queryProjects("active project",
		`SELECT `+projectCols+` FROM workflow_projects WHERE active = 1 LIMIT 1`)
	if err != nil {
		return nil, err
	}
	if len(ps) == 0 {
		return nil, nil
	}
	return &ps[0], nil
}

// GetProject retrieves a project by id.
func (s *Store) GetProject(id string) (*WorkflowProject, error) {
	ps, err := s.queryProjects("get project", `SELECT `+projectCols+` FROM workflow_projects WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(ps) == 0 {
		return nil, notFound("project", id)
	}
	return &ps[0], nil
}

// SaveProject writes a project's phase, active flag and completed phases.
func (s *Store) SaveProject(p *WorkflowProject) error {
	completed := p.CompletedPhases
	if completed == nil {
		completed = []string{}
	}
	raw, err := json.Marshal(completed)
	if err != nil {
		return invalid("completed_phases", err.Error())
	}
	now := s.stamp()
	res, err := s.execHook("save project",
		`UPDATE workflow_projects SET phase = ?, active = ?, completed_phases = ?, updated_at = ? WHERE id = ?`,
		p.Phase, boolToInt(p.Active), string(raw), now, p.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("project", p.ID)
	}
	p.UpdatedAt = parseTime(now)
	return nil
}

// ListProjects returns all projects, active first then newest.
func (s *Store) ListProjects() ([]WorkflowProject, error) {
	return s.queryProjects("list projects",
		`SELECT `+projectCols+` FROM workflow_projects ORDER BY active DESC, created_at DESC, rowid DESC`)
}

// AddArtifact attaches a phase-scoped artifact to a project.
func (s *Store) AddArtifact(projectID, phase, name, content string) (*WorkflowArtifact, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("artifact name", "must not be empty")
	}
	if _, err := s.GetProject(projectID); err != nil {
		return nil, err
	}
	now := s.stamp()
	a := &WorkflowArtifact{
		ID:        "artifact_" + uuid.NewString(),
		ProjectID: projectID,
		Phase:     phase,
		Name:      name,
		Content:   content,
	}
	if _, err := s.execHook("add artifact",
		`INSERT INTO workflow_artifacts (id, project_id, phase, name, content, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ProjectID, a.Phase, a.Name, a.Content, now, now,
	); err != nil {
		return nil, err
	}
	a.CreatedAt = parseTime(now)
	a.UpdatedAt = a.CreatedAt
	return a, nil
}

// UpdateArtifactContent replaces an artifact's content.
func (s *Store) UpdateArtifactContent(id, content string) error {
	res, err := s.execHook("update artifact",
		`UPDATE workflow_artifacts SET content = ?, updated_at = ? WHERE id = ?`,
		content, s.stamp(), id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("artifact", id)
	}
	return nil
}

// ListArtifacts returns a project's artifacts; an empty phase means all phases.
func (s *Store) ListArtifacts(projectID, phase string) ([]WorkflowArtifact, error) {
	query := `SELECT id, project_id, phase, name, content, created_at, updated_at
		FROM workflow_artifacts WHERE project_id = ?`
	args := []any{projectID}
	if phase != "" {
		query += " AND phase = ?"
		args = append(args, phase)
	}
	query += " ORDER BY created_at ASC, rowid ASC"

	rows, err := s.queryItHook("list artifacts", query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []WorkflowArtifact
	for rows.Next() {
		var (
			a                    WorkflowArtifact
			createdAt, updatedAt string
		)
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.Phase, &a.Name, &a.Content, &createdAt, &updatedAt); err != nil {
			return nil, storageErr("list artifacts", err)
		}
		a.CreatedAt = parseTime(createdAt)
		a.UpdatedAt = parseTime(updatedAt)
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list artifacts", err)
	}
	return result, nil
}

func (s *Store) queryProjects(op, query string, args ...any) ([]WorkflowProject, error) {
	rows, err := s.queryItHook(op, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []WorkflowProject
	for rows.Next() {
		var (
			p                    WorkflowProject
			active               int
			completed            string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Phase, &active, &completed, &createdAt, &updatedAt); err != nil {
			return nil, storageErr(op, err)
		}
		p.Active = active == 1
		if err := json.Unmarshal([]byte(completed), &p.CompletedPhases); err != nil || p.CompletedPhases == nil {
			p.CompletedPhases = []string{}
		}
		p.CreatedAt = parseTime(createdAt)
		p.UpdatedAt = parseTime(updatedAt)
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return result, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
