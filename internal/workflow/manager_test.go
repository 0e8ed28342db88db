package workflow

import (
	"errors"
	"strings"
	"testing"

	"github.com/HendryAvila/mama/internal/memory"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	s, err := memory.New(memory.DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("memory.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewManager(s, nil)
}

func TestManager_FullLifecycle(t *testing.T) {
	m := newManager(t)

	st, err := m.Start("p1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if st.Phase != PhaseDiscovery || st.Step != 1 || st.Steps != 4 {
		t.Errorf("start status = %s %d/%d", st.Phase, st.Step, st.Steps)
	}

	for i := 0; i < 3; i++ {
		if st, err = m.Next(); err != nil {
			t.Fatalf("Next %d: %v", i, err)
		}
	}
	if st.Phase != PhaseCreation {
		t.Fatalf("Phase after 3 next = %s, want creation", st.Phase)
	}
	if _, err := m.Next(); !errors.Is(err, ErrFinalPhase) {
		t.Fatalf("fourth Next err = %v, want ErrFinalPhase", err)
	}

	st, err = m.GoTo("discovery")
	if err != nil {
		t.Fatalf("GoTo: %v", err)
	}
	if strings.Join(st.Completed, ",") != "planning,architecture,creation" {
		t.Errorf("Completed = %v", st.Completed)
	}

	// Persisted, not just returned.
	again, err := m.Status()
	if err != nil {
		t.Fatal(err)
	}
	if again.Phase != PhaseDiscovery || len(again.Project.CompletedPhases) != 3 {
		t.Errorf("reloaded status = %s %v", again.Phase, again.Project.CompletedPhases)
	}
}

func TestManager_StartFailsWhileActive(t *testing.T) {
	m := newManager(t)
	if _, err := m.Start("p1"); err != nil {
		t.Fatal(err)
	}
	_, err := m.Start("p2")
	if err == nil || !strings.Contains(err.Error(), "p1") {
		t.Fatalf("second Start err = %v, want mention of active project", err)
	}

	if _, err := m.Archive(); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if _, err := m.Start("p2"); err != nil {
		t.Fatalf("Start after archive: %v", err)
	}

	ps, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(ps) != 2 || ps[0].Name != "p2" || !ps[0].Active {
		t.Errorf("List = %+v, want p2 active first", ps)
	}
}

func TestManager_NoActiveProject(t *testing.T) {
	m := newManager(t)
	if _, err := m.Next(); !errors.Is(err, ErrNoActiveProject) {
		t.Errorf("Next err = %v, want ErrNoActiveProject", err)
	}
	if _, err := m.Status(); !errors.Is(err, ErrNoActiveProject) {
		t.Errorf("Status err = %v, want ErrNoActiveProject", err)
	}
	ss, err := m.SessionStatus()
	if err != nil || ss != nil {
		t.Errorf("SessionStatus = %v, %v; want nil, nil", ss, err)
	}
}

func TestManager_Artifacts(t *testing.T) {
	m := newManager(t)
	if _, err := m.Start("p1"); err != nil {
		t.Fatal(err)
	}

	a, err := m.AddArtifact("", "personas", "makers who 3D print")
	if err != nil {
		t.Fatalf("AddArtifact: %v", err)
	}
	if a.Phase != string(PhaseDiscovery) {
		t.Errorf("artifact phase = %s, want current phase", a.Phase)
	}
	if _, err := m.AddArtifact("creation", "notes", "later"); err != nil {
		t.Fatalf("AddArtifact with phase: %v", err)
	}
	if _, err := m.AddArtifact("shipping", "x", "y"); !errors.Is(err, ErrUnknownPhase) {
		t.Errorf("unknown phase err = %v", err)
	}
	if err := m.UpdateArtifact(a.ID, "makers and teachers"); err != nil {
		t.Fatalf("UpdateArtifact: %v", err)
	}
	if err := m.UpdateArtifact("artifact_missing", "x"); !memory.IsNotFound(err) {
		t.Errorf("UpdateArtifact missing err = %v", err)
	}

	st, err := m.Status()
	if err != nil {
		t.Fatal(err)
	}
	if len(st.Artifacts) != 2 || st.Artifacts[0].Content != "makers and teachers" {
		t.Errorf("Artifacts = %+v", st.Artifacts)
	}

	ss, err := m.SessionStatus()
	if err != nil {
		t.Fatal(err)
	}
	if ss.Artifacts != 2 || ss.Phase != PhaseDiscovery || !strings.Contains(ss.String(), "p1") {
		t.Errorf("SessionStatus = %+v", ss)
	}
}

func TestManager_CompleteKeepsPhase(t *testing.T) {
	m := newManager(t)
	if _, err := m.Start("p1"); err != nil {
		t.Fatal(err)
	}
	st, err := m.Complete()
	if err != nil {
		t.Fatal(err)
	}
	if st.Phase != PhaseDiscovery || len(st.Completed) != 1 {
		t.Errorf("after complete: %s %v", st.Phase, st.Completed)
	}
}
