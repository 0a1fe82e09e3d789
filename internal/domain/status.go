package domain

import "time"

// Status is a member of an entity's status enumeration. Task and Project
// each define their own closed set.
type Status string

// History event kinds. Status changes record the old/new pair; assignment
// events are status-adjacent and leave the status untouched.
const (
	EventCreated       = "created"
	EventStatusChanged = "status_changed"
	EventAssigned      = "assigned"
	EventUnassigned    = "unassigned"
)

// TransitionTable maps each status to the statuses it may move to. A status
// with no outgoing transitions is terminal.
type TransitionTable map[Status][]Status

func (t TransitionTable) Allows(from, to Status) bool {
	for _, s := range t[from] {
		if s == to {
			return true
		}
	}
	return false
}

// HistoryEntry is one immutable record in an entity's append-only audit
// trail. The core only ever creates these; it never mutates or deletes them.
type HistoryEntry struct {
	ID         int64     `json:"id,omitempty"`
	EntityKind string    `json:"entity_kind"`
	EntityID   int64     `json:"entity_id"`
	Event      string    `json:"event"`
	OldStatus  Status    `json:"old_status,omitempty"`
	NewStatus  Status    `json:"new_status,omitempty"`
	ActorID    int64     `json:"actor_id,omitempty"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Trackable is the capability of exposing a status, a guarded transition and
// an append-only history. Project and Task opt in.
type Trackable interface {
	CurrentStatus() Status
	Transition(to Status, actor *User, note string) error
	History() []HistoryEntry
	IsTransitionable() bool
}

// Assignable is the capability of carrying a responsible user, rank-gated.
// Only Task opts in.
type Assignable interface {
	Assign(user, assigner *User) error
	Unassign(actor *User) error
	AssignedUser() int64
	AssignedBy() int64
	IsAssigned() bool
}

// tracker holds the status and owned history log shared by trackable
// entities. Entities embed it and wrap transition with their own table and
// side effects.
type tracker struct {
	Status Status         `json:"status"`
	Log    []HistoryEntry `json:"history,omitempty"`
}

func (t *tracker) CurrentStatus() Status   { return t.Status }
func (t *tracker) History() []HistoryEntry { return t.Log }

func (t *tracker) record(kind string, id int64, event string, old, new Status, actor *User, note string) {
	entry := HistoryEntry{
		EntityKind: kind,
		EntityID:   id,
		Event:      event,
		OldStatus:  old,
		NewStatus:  new,
		Note:       note,
		CreatedAt:  time.Now().UTC(),
	}
	if actor != nil {
		entry.ActorID = actor.ID
	}
	t.Log = append(t.Log, entry)
}

// transition applies the shared algorithm: same-status requests are no-op
// successes with no history entry; anything outside the table is a
// StateError. On acceptance the status moves and an entry is appended.
func (t *tracker) transition(kind string, e *Entity, table TransitionTable, known func(Status) bool, to Status, actor *User, note string) (bool, error) {
	if to == t.Status {
		return false, nil
	}
	if !known(to) {
		return false, ValidationError{Field: "status", Reason: "unknown status " + string(to)}
	}
	if len(table[t.Status]) == 0 {
		return false, StateError{Current: t.Status, Attempted: to}
	}
	if !table.Allows(t.Status, to) {
		return false, StateError{Current: t.Status, Attempted: to}
	}
	old := t.Status
	t.Status = to
	e.Touch()
	t.record(kind, e.ID, EventStatusChanged, old, to, actor, note)
	return true, nil
}
