package domain

import "fmt"

// ValidationError reports a malformed or missing field, caught before any
// persistence attempt.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AuthorizationError reports an actor lacking the rank or identity an
// operation requires. Distinct from ValidationError so callers can render
// "not permitted" rather than "bad input".
type AuthorizationError struct {
	Actor  string
	Action string
}

func (e AuthorizationError) Error() string {
	return fmt.Sprintf("%s is not permitted to %s", e.Actor, e.Action)
}

// StateError reports an illegal status transition or a mutation attempted on
// a terminal entity. Carries both statuses for diagnostics.
type StateError struct {
	Current   Status
	Attempted Status
}

func (e StateError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s", e.Current, e.Attempted)
}
