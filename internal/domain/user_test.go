package domain

import "testing"

func testUser(t *testing.T, username string, role Role) *User {
	t.Helper()
	u, err := NewUser(username, username+"@example.com", username, role, "secret123")
	if err != nil {
		t.Fatalf("new user %s: %v", username, err)
	}
	return u
}

func TestUserValidation(t *testing.T) {
	cases := []struct {
		name     string
		username string
		email    string
		display  string
		role     Role
		ok       bool
	}{
		{"valid", "alice_01", "alice@example.com", "Alice", RoleEmployee, true},
		{"username too short", "al", "alice@example.com", "Alice", RoleEmployee, false},
		{"username too long", "a123456789012345678901", "alice@example.com", "Alice", RoleEmployee, false},
		{"username bad chars", "alice!", "alice@example.com", "Alice", RoleEmployee, false},
		{"bad email", "alice", "not-an-email", "Alice", RoleEmployee, false},
		{"missing display name", "alice", "alice@example.com", "", RoleEmployee, false},
		{"bad role", "alice", "alice@example.com", "Alice", Role("root"), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			u, err := NewUser(c.username, c.email, c.display, c.role, "secret123")
			if c.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !c.ok {
				if err == nil {
					t.Fatalf("expected validation error")
				}
				return
			}
			if !u.IsValid() {
				t.Fatalf("IsValid false for valid user")
			}
		})
	}
}

func TestPasswordDigest(t *testing.T) {
	u := testUser(t, "bob", RoleEmployee)
	if u.PasswordHash == "secret123" || u.PasswordHash == "" {
		t.Fatalf("password stored in clear or missing")
	}
	if !u.CheckPassword("secret123") {
		t.Fatalf("correct password rejected")
	}
	if u.CheckPassword("wrong") {
		t.Fatalf("wrong password accepted")
	}
	if err := u.SetPassword("short"); err == nil {
		t.Fatalf("expected rejection of short password")
	}
}
