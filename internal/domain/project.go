package domain

import "time"

// Project statuses.
const (
	ProjectPlanning  Status = "planning"
	ProjectActive    Status = "active"
	ProjectOnHold    Status = "on_hold"
	ProjectCompleted Status = "completed"
	ProjectCancelled Status = "cancelled"
)

// Priority levels shared by projects and tasks.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// projectTransitions is the canonical project table: planning starts the
// lifecycle, active and on_hold swap freely, completed and cancelled are
// terminal with no reopen.
var projectTransitions = TransitionTable{
	ProjectPlanning: {ProjectActive, ProjectCancelled},
	ProjectActive:   {ProjectOnHold, ProjectCompleted, ProjectCancelled},
	ProjectOnHold:   {ProjectActive, ProjectCompleted, ProjectCancelled},
}

func knownProjectStatus(s Status) bool {
	switch s {
	case ProjectPlanning, ProjectActive, ProjectOnHold, ProjectCompleted, ProjectCancelled:
		return true
	}
	return false
}

// Project groups tasks under a creator. It owns its status history; the
// creator and tasks are non-owning references.
type Project struct {
	Entity
	tracker
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Priority    Priority `json:"priority"`
	CreatorID   int64    `json:"creator_id"`
}

// NewProject builds an unsaved project in planning with its initial history
// entry already recorded.
func NewProject(name, description string, priority Priority, creator *User) (*Project, error) {
	if creator == nil {
		return nil, ValidationError{Field: "creator", Reason: "required"}
	}
	p := &Project{
		Entity:      newEntity(time.Now().UTC()),
		tracker:     tracker{Status: ProjectPlanning},
		Name:        name,
		Description: description,
		Priority:    priority,
		CreatorID:   creator.ID,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.record("project", p.ID, EventCreated, "", ProjectPlanning, creator, "")
	return p, nil
}

func (p *Project) Validate() error {
	if p.Name == "" {
		return ValidationError{Field: "name", Reason: "required"}
	}
	if len(p.Name) > 100 {
		return ValidationError{Field: "name", Reason: "longer than 100 characters"}
	}
	if !p.Priority.Valid() {
		return ValidationError{Field: "priority", Reason: "unknown priority " + string(p.Priority)}
	}
	if !knownProjectStatus(p.Status) {
		return ValidationError{Field: "status", Reason: "unknown status " + string(p.Status)}
	}
	if p.CreatorID == 0 {
		return ValidationError{Field: "creator", Reason: "required"}
	}
	return nil
}

func (p *Project) IsValid() bool { return p.Validate() == nil }

// Transition moves the project through the canonical table. Same-status
// requests succeed without side effects.
func (p *Project) Transition(to Status, actor *User, note string) error {
	_, err := p.transition("project", &p.Entity, projectTransitions, knownProjectStatus, to, actor, note)
	return err
}

func (p *Project) IsTransitionable() bool {
	return len(projectTransitions[p.Status]) > 0
}

// IsTerminal reports whether the project has reached a final status.
func (p *Project) IsTerminal() bool {
	return p.Status == ProjectCompleted || p.Status == ProjectCancelled
}
