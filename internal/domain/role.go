package domain

import "fmt"

// Role is a ranked permission level. Higher ranks may act on lower ones.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// Rank returns the numeric rank of the role. Unknown roles rank 0,
// below every valid role.
func (r Role) Rank() int {
	switch r {
	case RoleEmployee:
		return 1
	case RoleManager:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}

func (r Role) Valid() bool {
	return r.Rank() > 0
}

// CanActOn reports whether an actor holding role r may assign, reassign or
// edit entities belonging to a target holding the given role.
func (r Role) CanActOn(target Role) bool {
	return r.Rank() >= target.Rank()
}

// ParseRole converts a string into a Role, rejecting unknown values.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
