package domain

import "testing"

func TestRoleRanking(t *testing.T) {
	cases := []struct {
		actor, target Role
		want          bool
	}{
		{RoleAdmin, RoleAdmin, true},
		{RoleAdmin, RoleManager, true},
		{RoleAdmin, RoleEmployee, true},
		{RoleManager, RoleAdmin, false},
		{RoleManager, RoleManager, true},
		{RoleManager, RoleEmployee, true},
		{RoleEmployee, RoleAdmin, false},
		{RoleEmployee, RoleManager, false},
		{RoleEmployee, RoleEmployee, true},
	}
	for _, c := range cases {
		if got := c.actor.CanActOn(c.target); got != c.want {
			t.Errorf("CanActOn(%s, %s) = %v, want %v", c.actor, c.target, got, c.want)
		}
		if got := c.actor.Rank() >= c.target.Rank(); got != c.actor.CanActOn(c.target) {
			t.Errorf("CanActOn(%s, %s) disagrees with rank comparison", c.actor, c.target)
		}
	}
}

func TestParseRole(t *testing.T) {
	if r, err := ParseRole("manager"); err != nil || r != RoleManager {
		t.Fatalf("ParseRole(manager) = %v, %v", r, err)
	}
	if _, err := ParseRole("superuser"); err == nil {
		t.Fatalf("expected error for unknown role")
	}
	if Role("").Valid() {
		t.Fatalf("empty role should be invalid")
	}
}
