// Package workflow runs the phased project state machine:
// discovery → planning → architecture → creation.
//
// Transition rules are pure functions over memory.WorkflowProject so they can
// be tested without a store; Manager persists the results.
package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/HendryAvila/mama/internal/memory"
)

// Phase is a step of a project.
type Phase string

const (
	PhaseDiscovery    Phase = "discovery"
	PhasePlanning     Phase = "planning"
	PhaseArchitecture Phase = "architecture"
	PhaseCreation     Phase = "creation"
)

// phaseOrder is the fixed sequence; the last entry is terminal.
var phaseOrder = []Phase{PhaseDiscovery, PhasePlanning, PhaseArchitecture, PhaseCreation}

// phaseGoals describe what each phase should produce.
var phaseGoals = map[Phase]string{
	PhaseDiscovery:    "Explore the problem: who it is for, what exists, what constraints apply.",
	PhasePlanning:     "Decide scope and sequence; record the key decisions with save.",
	PhaseArchitecture: "Choose structure and modules; run recommend_modules before building from scratch.",
	PhaseCreation:     "Build it, linking implementation choices to earlier decisions with builds_on.",
}

// Errors returned by transitions.
var (
	ErrFinalPhase   = errors.New("already at the final phase")
	ErrInactive     = errors.New("project is not active")
	ErrUnknownPhase = errors.New("unknown phase")
)

// Phases returns the phase order.
func Phases() []Phase {
	return append([]Phase(nil), phaseOrder...)
}

// PhaseNames returns phase names for tool enums.
func PhaseNames() []string {
	names := make([]string, len(phaseOrder))
	for i, p := range phaseOrder {
		names[i] = string(p)
	}
	return names
}

// ParsePhase normalizes a phase name.
func ParsePhase(s string) (Phase, error) {
	p := Phase(strings.ToLower(strings.TrimSpace(s)))
	if phaseIndex(p) < 0 {
		return "", fmt.Errorf("%w %q: must be one of: %s", ErrUnknownPhase, s, strings.Join(PhaseNames(), ", "))
	}
	return p, nil
}

// Goal returns the guidance text for a phase.
func Goal(p Phase) string { return phaseGoals[p] }

func phaseIndex(p Phase) int {
	for i, q := range phaseOrder {
		if q == p {
			return i
		}
	}
	return -1
}

// CurrentPhaseIndex returns the ordinal of the project's phase, or -1.
func CurrentPhaseIndex(p *memory.WorkflowProject) int {
	return phaseIndex(Phase(p.Phase))
}

// IsFinalPhase reports whether the project is in the terminal phase.
func IsFinalPhase(p *memory.WorkflowProject) bool {
	return CurrentPhaseIndex(p) == len(phaseOrder)-1
}

// CanAdvance checks whether next() is allowed.
func CanAdvance(p *memory.WorkflowProject) error {
	if !p.Active {
		return fmt.Errorf("project %q: %w", p.Name, ErrInactive)
	}
	idx := CurrentPhaseIndex(p)
	if idx < 0 {
		return fmt.Errorf("project %q: %w %q", p.Name, ErrUnknownPhase, p.Phase)
	}
	if idx >= len(phaseOrder)-1 {
		return fmt.Errorf("project %q is in %s: %w", p.Name, p.Phase, ErrFinalPhase)
	}
	return nil
}

// Advance completes the current phase and moves exactly one phase forward.
func Advance(p *memory.WorkflowProject) error {
	if err := CanAdvance(p); err != nil {
		return err
	}
	idx := CurrentPhaseIndex(p)
	markCompleted(p, phaseOrder[idx])
	p.Phase = string(phaseOrder[idx+1])
	return nil
}

// GoTo jumps to target in either direction. The phase being left and every
// phase strictly between it and target are recorded as completed; target
// itself is reopened.
func GoTo(p *memory.WorkflowProject, target Phase) error {
	if !p.Active {
		return fmt.Errorf("project %q: %w", p.Name, ErrInactive)
	}
	to := phaseIndex(target)
	if to < 0 {
		return fmt.Errorf("%w %q", ErrUnknownPhase, target)
	}
	from := CurrentPhaseIndex(p)
	if from < 0 {
		return fmt.Errorf("project %q: %w %q", p.Name, ErrUnknownPhase, p.Phase)
	}
	if from == to {
		return nil
	}
	markCompleted(p, phaseOrder[from])
	lo, hi := from, to
	if lo > hi {
		lo, hi = hi, lo
	}
	for i := lo + 1; i < hi; i++ {
		markCompleted(p, phaseOrder[i])
	}
	unmarkCompleted(p, target)
	p.Phase = string(target)
	return nil
}

// CompletePhase marks the current phase done without moving.
func CompletePhase(p *memory.WorkflowProject) error {
	if !p.Active {
		return fmt.Errorf("project %q: %w", p.Name, ErrInactive)
	}
	idx := CurrentPhaseIndex(p)
	if idx < 0 {
		return fmt.Errorf("project %q: %w %q", p.Name, ErrUnknownPhase, p.Phase)
	}
	markCompleted(p, phaseOrder[idx])
	return nil
}

// IsCompleted reports whether phase is in the project's completed set.
func IsCompleted(p *memory.WorkflowProject, phase Phase) bool {
	for _, c := range p.CompletedPhases {
		if c == string(phase) {
			return true
		}
	}
	return false
}

// markCompleted adds phase and keeps the list in phase order.
func markCompleted(p *memory.WorkflowProject, phase Phase) {
	if IsCompleted(p, phase) {
		return
	}
	set := map[string]bool{string(phase): true}
	for _, c := range p.CompletedPhases {
		set[c] = true
	}
	p.CompletedPhases = p.CompletedPhases[:0]
	for _, q := range phaseOrder {
		if set[string(q)] {
			p.CompletedPhases = append(p.CompletedPhases, string(q))
		}
	}
}

func unmarkCompleted(p *memory.WorkflowProject, phase Phase) {
	out := p.CompletedPhases[:0]
	for _, c := range p.CompletedPhases {
		if c != string(phase) {
			out = append(out, c)
		}
	}
	p.CompletedPhases = out
}
