package domain

import "time"

// Task statuses.
const (
	TaskTodo       Status = "todo"
	TaskInProgress Status = "in_progress"
	TaskReview     Status = "review"
	TaskDone       Status = "done"
	TaskCancelled  Status = "cancelled"
)

// taskTransitions returns the task table. Review may be skipped
// (in_progress -> done). When reopenable, done and cancelled may return to
// todo or in_progress; otherwise both are hard-terminal.
func taskTransitions(reopenable bool) TransitionTable {
	t := TransitionTable{
		TaskTodo:       {TaskInProgress, TaskCancelled},
		TaskInProgress: {TaskReview, TaskDone, TaskTodo, TaskCancelled},
		TaskReview:     {TaskDone, TaskInProgress, TaskCancelled},
	}
	if reopenable {
		t[TaskDone] = []Status{TaskTodo, TaskInProgress}
		t[TaskCancelled] = []Status{TaskTodo, TaskInProgress}
	}
	return t
}

func knownTaskStatus(s Status) bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskReview, TaskDone, TaskCancelled:
		return true
	}
	return false
}

// Task is a unit of work, optionally parented to a project and assigned to a
// user. Assignee and assigner are non-owning references; zero means unset.
type Task struct {
	Entity
	tracker
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    Priority   `json:"priority"`
	ProjectID   int64      `json:"project_id,omitempty"`
	AssigneeID  int64      `json:"assignee_id,omitempty"`
	AssignerID  int64      `json:"assigner_id,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Reopenable  bool       `json:"reopenable"`
}

// TaskOptions are the construction parameters for a task.
type TaskOptions struct {
	Title       string
	Description string
	Priority    Priority
	ProjectID   int64
	DueDate     *time.Time
	Reopenable  bool
}

// NewTask builds an unsaved task in todo with its initial history entry
// already recorded by the given actor.
func NewTask(opts TaskOptions, actor *User) (*Task, error) {
	t := &Task{
		Entity:      newEntity(time.Now().UTC()),
		tracker:     tracker{Status: TaskTodo},
		Title:       opts.Title,
		Description: opts.Description,
		Priority:    opts.Priority,
		ProjectID:   opts.ProjectID,
		DueDate:     opts.DueDate,
		Reopenable:  opts.Reopenable,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	t.record("task", t.ID, EventCreated, "", TaskTodo, actor, "")
	return t, nil
}

func (t *Task) Validate() error {
	if t.Title == "" {
		return ValidationError{Field: "title", Reason: "required"}
	}
	if len(t.Title) > 200 {
		return ValidationError{Field: "title", Reason: "longer than 200 characters"}
	}
	if !t.Priority.Valid() {
		return ValidationError{Field: "priority", Reason: "unknown priority " + string(t.Priority)}
	}
	if !knownTaskStatus(t.Status) {
		return ValidationError{Field: "status", Reason: "unknown status " + string(t.Status)}
	}
	return nil
}

func (t *Task) IsValid() bool { return t.Validate() == nil }

// Transition moves the task through its table. Entering done stamps the
// completion timestamp; leaving done clears it.
func (t *Task) Transition(to Status, actor *User, note string) error {
	changed, err := t.transition("task", &t.Entity, taskTransitions(t.Reopenable), knownTaskStatus, to, actor, note)
	if err != nil || !changed {
		return err
	}
	if to == TaskDone {
		now := time.Now().UTC()
		t.CompletedAt = &now
	} else {
		t.CompletedAt = nil
	}
	return nil
}

func (t *Task) IsTransitionable() bool {
	return len(taskTransitions(t.Reopenable)[t.Status]) > 0
}

// IsTerminal reports whether the task sits in a final status, regardless of
// whether the reopen policy could take it out again.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskDone || t.Status == TaskCancelled
}

// Assign attaches a responsible user. The assigner must out-rank or match
// the assignee's role and the task must not be terminal. Appends an
// "assigned" history event; persistence stays with the caller.
func (t *Task) Assign(user, assigner *User) error {
	if user == nil {
		return ValidationError{Field: "assignee", Reason: "required"}
	}
	if assigner == nil {
		return ValidationError{Field: "assigner", Reason: "required"}
	}
	if !assigner.Role.CanActOn(user.Role) {
		return AuthorizationError{Actor: assigner.Username, Action: "assign " + user.Username}
	}
	if t.IsTerminal() {
		return StateError{Current: t.Status, Attempted: t.Status}
	}
	t.AssigneeID = user.ID
	t.AssignerID = assigner.ID
	t.Touch()
	t.record("task", t.ID, EventAssigned, t.Status, t.Status, assigner, user.Username)
	return nil
}

// Unassign detaches the responsible user. Allowed for the current assignee
// or any actor ranked manager and above, while the task is not terminal.
func (t *Task) Unassign(actor *User) error {
	if actor == nil {
		return ValidationError{Field: "actor", Reason: "required"}
	}
	if actor.ID != t.AssigneeID && actor.Role.Rank() < RoleManager.Rank() {
		return AuthorizationError{Actor: actor.Username, Action: "unassign this task"}
	}
	if t.IsTerminal() {
		return StateError{Current: t.Status, Attempted: t.Status}
	}
	t.AssigneeID = 0
	t.AssignerID = 0
	t.Touch()
	t.record("task", t.ID, EventUnassigned, t.Status, t.Status, actor, "")
	return nil
}

func (t *Task) AssignedUser() int64 { return t.AssigneeID }
func (t *Task) AssignedBy() int64   { return t.AssignerID }
func (t *Task) IsAssigned() bool    { return t.AssigneeID != 0 }
