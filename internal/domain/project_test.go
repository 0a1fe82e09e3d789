package domain

import "testing"

func testProject(t *testing.T, creator *User) *Project {
	t.Helper()
	creator.SetEntityID(1)
	p, err := NewProject("Website refresh", "", PriorityMedium, creator)
	if err != nil {
		t.Fatalf("new project: %v", err)
	}
	return p
}

func TestProjectLifecycle(t *testing.T) {
	mgr := testUser(t, "mgr", RoleManager)
	p := testProject(t, mgr)
	if p.CurrentStatus() != ProjectPlanning {
		t.Fatalf("new project status %s", p.CurrentStatus())
	}
	if len(p.History()) != 1 || p.History()[0].Event != EventCreated {
		t.Fatalf("expected single created entry, got %+v", p.History())
	}

	steps := []Status{ProjectActive, ProjectOnHold, ProjectActive, ProjectCompleted}
	for _, s := range steps {
		if err := p.Transition(s, mgr, ""); err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}
	if p.IsTransitionable() {
		t.Fatalf("completed project should not be transitionable")
	}
	if err := p.Transition(ProjectActive, mgr, ""); err == nil {
		t.Fatalf("expected reopen of completed project to fail")
	}
	if got := len(p.History()); got != 5 {
		t.Fatalf("history length %d, want 5", got)
	}
}

func TestProjectIllegalTransition(t *testing.T) {
	mgr := testUser(t, "mgr", RoleManager)
	p := testProject(t, mgr)
	if err := p.Transition(ProjectCompleted, mgr, ""); err == nil {
		t.Fatalf("planning -> completed should fail")
	}
	var se StateError
	err := p.Transition(ProjectCompleted, mgr, "")
	if se, _ = err.(StateError); se.Current != ProjectPlanning || se.Attempted != ProjectCompleted {
		t.Fatalf("state error should carry both statuses, got %v", err)
	}
	if p.CurrentStatus() != ProjectPlanning || len(p.History()) != 1 {
		t.Fatalf("failed transition must not mutate project")
	}
}

func TestProjectCancelFromAnyNonTerminal(t *testing.T) {
	mgr := testUser(t, "mgr", RoleManager)
	for _, start := range []Status{ProjectPlanning, ProjectActive, ProjectOnHold} {
		p := testProject(t, mgr)
		p.Status = start
		if err := p.Transition(ProjectCancelled, mgr, "dropped"); err != nil {
			t.Fatalf("cancel from %s: %v", start, err)
		}
	}
}

func TestProjectTransitionNoop(t *testing.T) {
	mgr := testUser(t, "mgr", RoleManager)
	p := testProject(t, mgr)
	before := p.UpdatedAt
	if err := p.Transition(ProjectPlanning, mgr, ""); err != nil {
		t.Fatalf("same-status transition should be a no-op success: %v", err)
	}
	if len(p.History()) != 1 {
		t.Fatalf("no-op transition must not append history")
	}
	if !p.UpdatedAt.Equal(before) {
		t.Fatalf("no-op transition must not touch timestamps")
	}
}
