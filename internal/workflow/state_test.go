package workflow

import (
	"errors"
	"reflect"
	"testing"

	"github.com/HendryAvila/mama/internal/memory"
)

// --- Helper ---

func testProject(phase Phase) *memory.WorkflowProject {
	return &memory.WorkflowProject{
		ID:              "project_test",
		Name:            "chair",
		Phase:           string(phase),
		Active:          true,
		CompletedPhases: []string{},
	}
}

// --- ParsePhase ---

func TestParsePhase(t *testing.T) {
	got, err := ParsePhase("  Architecture ")
	if err != nil || got != PhaseArchitecture {
		t.Errorf("ParsePhase = %q, %v; want architecture", got, err)
	}
	if _, err := ParsePhase("deploy"); !errors.Is(err, ErrUnknownPhase) {
		t.Errorf("ParsePhase(deploy) err = %v, want ErrUnknownPhase", err)
	}
}

// --- Advance ---

func TestAdvance_MovesOnePhase(t *testing.T) {
	p := testProject(PhaseDiscovery)
	if err := Advance(p); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if p.Phase != string(PhasePlanning) {
		t.Errorf("Phase = %s, want planning", p.Phase)
	}
	if !IsCompleted(p, PhaseDiscovery) {
		t.Error("discovery should be completed")
	}
}

func TestAdvance_FailsAtFinalPhase(t *testing.T) {
	p := testProject(PhaseCreation)
	err := Advance(p)
	if !errors.Is(err, ErrFinalPhase) {
		t.Fatalf("Advance at creation err = %v, want ErrFinalPhase", err)
	}
	if p.Phase != string(PhaseCreation) {
		t.Error("failed Advance must not change the phase")
	}
}

func TestAdvance_FailsWhenInactive(t *testing.T) {
	p := testProject(PhaseDiscovery)
	p.Active = false
	if err := Advance(p); !errors.Is(err, ErrInactive) {
		t.Errorf("err = %v, want ErrInactive", err)
	}
}

// --- GoTo ---

func TestGoTo_ForwardMarksSkipped(t *testing.T) {
	p := testProject(PhaseDiscovery)
	if err := GoTo(p, PhaseCreation); err != nil {
		t.Fatalf("GoTo: %v", err)
	}
	want := []string{"discovery", "planning", "architecture"}
	if !reflect.DeepEqual(p.CompletedPhases, want) {
		t.Errorf("CompletedPhases = %v, want %v", p.CompletedPhases, want)
	}
}

func TestGoTo_BackwardFromFinal(t *testing.T) {
	p := testProject(PhaseDiscovery)
	for i := 0; i < 3; i++ {
		if err := Advance(p); err != nil {
			t.Fatalf("Advance %d: %v", i, err)
		}
	}
	if err := Advance(p); !errors.Is(err, ErrFinalPhase) {
		t.Fatalf("fourth Advance err = %v, want ErrFinalPhase", err)
	}

	if err := GoTo(p, PhaseDiscovery); err != nil {
		t.Fatalf("GoTo: %v", err)
	}
	if p.Phase != string(PhaseDiscovery) {
		t.Errorf("Phase = %s, want discovery", p.Phase)
	}
	want := []string{"planning", "architecture", "creation"}
	if !reflect.DeepEqual(p.CompletedPhases, want) {
		t.Errorf("CompletedPhases = %v, want %v", p.CompletedPhases, want)
	}
}

func TestGoTo_SamePhaseIsNoop(t *testing.T) {
	p := testProject(PhasePlanning)
	if err := GoTo(p, PhasePlanning); err != nil {
		t.Fatal(err)
	}
	if len(p.CompletedPhases) != 0 {
		t.Errorf("CompletedPhases = %v, want none", p.CompletedPhases)
	}
}

// --- CompletePhase ---

func TestCompletePhase_DoesNotAdvance(t *testing.T) {
	p := testProject(PhaseArchitecture)
	if err := CompletePhase(p); err != nil {
		t.Fatal(err)
	}
	if p.Phase != string(PhaseArchitecture) || !IsCompleted(p, PhaseArchitecture) {
		t.Errorf("got phase %s completed %v", p.Phase, p.CompletedPhases)
	}
	// Idempotent.
	if err := CompletePhase(p); err != nil {
		t.Fatal(err)
	}
	if len(p.CompletedPhases) != 1 {
		t.Errorf("CompletedPhases = %v, want one entry", p.CompletedPhases)
	}
}
