package workflow

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/HendryAvila/mama/internal/memory"
)

// ErrNoActiveProject is returned when an action needs an active project.
var ErrNoActiveProject = errors.New("no active project; start one with action=start")

// Status is the full view of a project.
type Status struct {
	Project   memory.WorkflowProject    `json:"project"`
	Phase     Phase                     `json:"phase"`
	Step      int                       `json:"step"`
	Steps     int                       `json:"steps"`
	Goal      string                    `json:"goal"`
	Completed []string                  `json:"completed"`
	Remaining []string                  `json:"remaining"`
	Artifacts []memory.WorkflowArtifact `json:"artifacts"`
	Next      string                    `json:"next"`
}

// SessionStatus is the read-only projection used by session-start context.
type SessionStatus struct {
	ProjectID string `json:"project_id"`
	Project   string `json:"project"`
	Phase     Phase  `json:"phase"`
	Step      int    `json:"step"`
	Steps     int    `json:"steps"`
	Artifacts int    `json:"artifacts"`
	Goal      string `json:"goal"`
}

// String renders the projection on one line.
func (s *SessionStatus) String() string {
	return fmt.Sprintf("Project %q is in %s (%d/%d), %d artifact(s). %s",
		s.Project, s.Phase, s.Step, s.Steps, s.Artifacts, s.Goal)
}

// Manager applies transitions to the active project and persists them.
type Manager struct {
	store *memory.Store
	log   *zap.Logger
}

// NewManager creates a Manager.
func NewManager(store *memory.Store, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{store: store, log: log.Named("workflow")}
}

// Start creates a project in discovery. It fails if a project is already active.
func (m *Manager) Start(name string) (*Status, error) {
	p, err := m.store.CreateProject(name, string(PhaseDiscovery))
	if err != nil {
		if errors.Is(err, memory.ErrActiveProjectExists) {
			if cur, aerr := m.store.ActiveProject(); aerr == nil && cur != nil {
				return nil, fmt.Errorf("project %q is already active; archive it first", cur.Name)
			}
		}
		return nil, err
	}
	m.log.Info("project started", zap.String("id", p.ID), zap.String("name", p.Name))
	return m.status(p)
}

// Next advances the active project one phase.
func (m *Manager) Next() (*Status, error) {
	return m.mutate("next", Advance)
}

// GoTo jumps the active project to a phase.
func (m *Manager) GoTo(phase string) (*Status, error) {
	target, err := ParsePhase(phase)
	if err != nil {
		return nil, err
	}
	return m.mutate("goto", func(p *memory.WorkflowProject) error { return GoTo(p, target) })
}

// Complete marks the current phase done without advancing.
func (m *Manager) Complete() (*Status, error) {
	return m.mutate("complete", CompletePhase)
}

// Archive deactivates the active project so another can start.
func (m *Manager) Archive() (*Status, error) {
	return m.mutate("archive", func(p *memory.WorkflowProject) error {
		p.Active = false
		return nil
	})
}

// AddArtifact attaches an output to the active project. An empty phase
// means the current one.
func (m *Manager) AddArtifact(phase, name, content string) (*memory.WorkflowArtifact, error) {
	p, err := m.active()
	if err != nil {
		return nil, err
	}
	ph := Phase(p.Phase)
	if strings.TrimSpace(phase) != "" {
		if ph, err = ParsePhase(phase); err != nil {
			return nil, err
		}
	}
	return m.store.AddArtifact(p.ID, string(ph), name, content)
}

// UpdateArtifact replaces an artifact's content.
func (m *Manager) UpdateArtifact(id, content string) error {
	return m.store.UpdateArtifactContent(strings.TrimSpace(id), content)
}

// List returns all projects, active first.
func (m *Manager) List() ([]memory.WorkflowProject, error) {
	ps, err := m.store.ListProjects()
	if ps == nil && err == nil {
		ps = []memory.WorkflowProject{}
	}
	return ps, err
}

// Status returns the active project's full status.
func (m *Manager) Status() (*Status, error) {
	p, err := m.active()
	if err != nil {
		return nil, err
	}
	return m.status(p)
}

// SessionStatus returns the active project's projection, or nil when no
// project is active. It never writes.
func (m *Manager) SessionStatus() (*SessionStatus, error) {
	p, err := m.store.ActiveProject()
	if err != nil || p == nil {
		return nil, err
	}
	arts, err := m.store.ListArtifacts(p.ID, "")
	if err != nil {
		return nil, err
	}
	return &SessionStatus{
		ProjectID: p.ID,
		Project:   p.Name,
		Phase:     Phase(p.Phase),
		Step:      CurrentPhaseIndex(p) + 1,
		Steps:     len(phaseOrder),
		Artifacts: len(arts),
		Goal:      Goal(Phase(p.Phase)),
	}, nil
}

func (m *Manager) active() (*memory.WorkflowProject, error) {
	p, err := m.store.ActiveProject()
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNoActiveProject
	}
	return p, nil
}

func (m *Manager) mutate(action string, fn func(*memory.WorkflowProject) error) (*Status, error) {
	p, err := m.active()
	if err != nil {
		return nil, err
	}
	from := p.Phase
	if err := fn(p); err != nil {
		return nil, err
	}
	if err := m.store.SaveProject(p); err != nil {
		return nil, err
	}
	m.log.Info("workflow transition",
		zap.String("action", action),
		zap.String("project", p.Name),
		zap.String("from", from),
		zap.String("to", p.Phase),
	)
	return m.status(p)
}

func (m *Manager) status(p *memory.WorkflowProject) (*Status, error) {
	arts, err := m.store.ListArtifacts(p.ID, "")
	if err != nil {
		return nil, err
	}
	if arts == nil {
		arts = []memory.WorkflowArtifact{}
	}
	st := &Status{
		Project:   *p,
		Phase:     Phase(p.Phase),
		Step:      CurrentPhaseIndex(p) + 1,
		Steps:     len(phaseOrder),
		Goal:      Goal(Phase(p.Phase)),
		Completed: append([]string{}, p.CompletedPhases...),
		Remaining: []string{},
		Artifacts: arts,
	}
	for _, ph := range phaseOrder {
		if string(ph) != p.Phase && !IsCompleted(p, ph) {
			st.Remaining = append(st.Remaining, string(ph))
		}
	}
	switch {
	case !p.Active:
		st.Next = "Project archived. Start a new one with action=start."
	case IsFinalPhase(p):
		st.Next = "Final phase. Use action=complete when done, then action=archive."
	default:
		st.Next = fmt.Sprintf("When %s is done, use action=next to move to %s.",
			p.Phase, phaseOrder[CurrentPhaseIndex(p)+1])
	}
	return st, nil
}
