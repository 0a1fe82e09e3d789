// Package engine implements the application operations on top of the domain
// model and the persistence layer. Every mutating operation runs in one
// transaction: the entity row and the history entries it produced land or
// roll back together.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"taskman/internal/dao"
	"taskman/internal/domain"
)

type Engine struct {
	DB       *sql.DB
	Users    *dao.UserDAO
	Projects *dao.ProjectDAO
	Tasks    *dao.TaskDAO
	History  *dao.HistoryDAO
	Log      zerolog.Logger
	Now      func() time.Time
}

func New(conn *sql.DB, log zerolog.Logger) *Engine {
	return &Engine{
		DB:       conn,
		Users:    dao.NewUserDAO(conn),
		Projects: dao.NewProjectDAO(conn),
		Tasks:    dao.NewTaskDAO(conn),
		History:  dao.NewHistoryDAO(conn),
		Log:      log,
		Now:      time.Now,
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// trackable is what the history-persisting save path needs from an entity.
type trackable interface {
	dao.Entity
	History() []domain.HistoryEntry
}

// appendHistoryTx persists the history entries recorded since the before
// mark, fixing up the entity id on entries recorded before the first insert.
func (e *Engine) appendHistoryTx(ctx context.Context, tx *sql.Tx, ent trackable, before int) error {
	trail := ent.History()
	for i := before; i < len(trail); i++ {
		entry := trail[i]
		entry.EntityID = ent.EntityID()
		if err := e.History.AppendTx(ctx, tx, &entry); err != nil {
			return err
		}
	}
	return nil
}

// --- users ---

type RegisterUserOptions struct {
	Username    string
	Email       string
	DisplayName string
	Role        domain.Role
	Password    string
	// Actor is optional for local CLI use; when set, the actor's role must
	// cover the new user's role.
	Actor *domain.User
}

func (e *Engine) RegisterUser(ctx context.Context, opts RegisterUserOptions) (*domain.User, error) {
	if opts.Actor != nil && !opts.Actor.Role.CanActOn(opts.Role) {
		return nil, domain.AuthorizationError{Actor: opts.Actor.Username, Action: "create a " + string(opts.Role) + " user"}
	}
	u, err := domain.NewUser(opts.Username, opts.Email, opts.DisplayName, opts.Role, opts.Password)
	if err != nil {
		return nil, err
	}
	if err := e.Users.Save(ctx, u); err != nil {
		return nil, err
	}
	e.Log.Info().Str("username", u.Username).Str("role", string(u.Role)).Msg("user registered")
	return u, nil
}

// Authenticate resolves a username/password pair to a user. Unknown users
// and wrong passwords fail identically.
func (e *Engine) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	u, err := e.Users.FindByUsername(ctx, username)
	if err != nil || !u.CheckPassword(password) {
		return nil, domain.AuthorizationError{Actor: username, Action: "authenticate"}
	}
	return u, nil
}

func (e *Engine) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return e.Users.FindByID(ctx, id)
}

func (e *Engine) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return e.Users.FindByUsername(ctx, username)
}

func (e *Engine) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return e.Users.FindAll(ctx)
}

// --- projects ---

type CreateProjectOptions struct {
	Name        string
	Description string
	Priority    domain.Priority
	Actor       *domain.User
}

func (e *Engine) CreateProject(ctx context.Context, opts CreateProjectOptions) (*domain.Project, error) {
	if opts.Priority == "" {
		opts.Priority = domain.PriorityMedium
	}
	p, err := domain.NewProject(opts.Name, opts.Description, opts.Priority, opts.Actor)
	if err != nil {
		return nil, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := e.Projects.SaveTx(ctx, tx, p); err != nil {
		return nil, err
	}
	if err := e.appendHistoryTx(ctx, tx, p, 0); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	e.Log.Info().Int64("project", p.ID).Str("name", p.Name).Msg("project created")
	return p, nil
}

func (e *Engine) GetProject(ctx context.Context, id int64) (*domain.Project, error) {
	return e.Projects.FindByID(ctx, id)
}

func (e *Engine) ListProjects(ctx context.Context) ([]*domain.Project, error) {
	return e.Projects.FindAll(ctx)
}

// projectGuard admits the creator and any actor whose role covers the
// creator's role.
func (e *Engine) projectGuard(ctx context.Context, p *domain.Project, actor *domain.User, action string) error {
	if actor == nil {
		return domain.ValidationError{Field: "actor", Reason: "required"}
	}
	if actor.ID == p.CreatorID {
		return nil
	}
	creator, err := e.Users.FindByID(ctx, p.CreatorID)
	if err != nil {
		return err
	}
	if !actor.Role.CanActOn(creator.Role) {
		return domain.AuthorizationError{Actor: actor.Username, Action: action}
	}
	return nil
}

func (e *Engine) TransitionProject(ctx context.Context, id int64, to domain.Status, actor *domain.User, note string) (*domain.Project, error) {
	p, err := e.Projects.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := e.projectGuard(ctx, p, actor, "change this project's status"); err != nil {
		return nil, err
	}
	before := len(p.History())
	if err := p.Transition(to, actor, note); err != nil {
		return nil, err
	}
	if len(p.History()) == before {
		return p, nil
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := e.Projects.SaveTx(ctx, tx, p); err != nil {
		return nil, err
	}
	if err := e.appendHistoryTx(ctx, tx, p, before); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	e.Log.Info().Int64("project", p.ID).Str("status", string(to)).Msg("project status changed")
	return p, nil
}

// DeleteProject removes the project row. Its tasks survive detached and its
// history stays in the trail.
func (e *Engine) DeleteProject(ctx context.Context, id int64, actor *domain.User) error {
	p, err := e.Projects.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := e.projectGuard(ctx, p, actor, "delete this project"); err != nil {
		return err
	}
	if err := e.Projects.DeleteByID(ctx, id); err != nil {
		return err
	}
	e.Log.Info().Int64("project", id).Msg("project deleted")
	return nil
}

func (e *Engine) ProjectHistory(ctx context.Context, id int64) ([]domain.HistoryEntry, error) {
	if _, err := e.Projects.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return e.History.ListByEntity(ctx, "project", id)
}

// StatusSummary tallies a project's tasks per status.
func (e *Engine) StatusSummary(ctx context.Context, projectID int64) (map[domain.Status]int, error) {
	if projectID != 0 {
		if _, err := e.Projects.FindByID(ctx, projectID); err != nil {
			return nil, err
		}
	}
	return e.Tasks.CountByStatus(ctx, projectID)
}

// --- tasks ---

type CreateTaskOptions struct {
	Title       string
	Description string
	Priority    domain.Priority
	ProjectID   int64
	DueDate     *time.Time
	Reopenable  bool
	// AssigneeID optionally assigns on creation, rank-checked against Actor.
	AssigneeID int64
	Actor      *domain.User
}

func (e *Engine) CreateTask(ctx context.Context, opts CreateTaskOptions) (*domain.Task, error) {
	if opts.Actor == nil {
		return nil, domain.ValidationError{Field: "actor", Reason: "required"}
	}
	if opts.Priority == "" {
		opts.Priority = domain.PriorityMedium
	}
	if opts.ProjectID != 0 {
		p, err := e.Projects.FindByID(ctx, opts.ProjectID)
		if err != nil {
			return nil, err
		}
		if p.IsTerminal() {
			return nil, domain.StateError{Current: p.CurrentStatus(), Attempted: p.CurrentStatus()}
		}
	}
	t, err := domain.NewTask(domain.TaskOptions{
		Title:       opts.Title,
		Description: opts.Description,
		Priority:    opts.Priority,
		ProjectID:   opts.ProjectID,
		DueDate:     opts.DueDate,
		Reopenable:  opts.Reopenable,
	}, opts.Actor)
	if err != nil {
		return nil, err
	}
	if opts.AssigneeID != 0 {
		assignee, err := e.Users.FindByID(ctx, opts.AssigneeID)
		if err != nil {
			return nil, err
		}
		if err := t.Assign(assignee, opts.Actor); err != nil {
			return nil, err
		}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := e.Tasks.SaveTx(ctx, tx, t); err != nil {
		return nil, err
	}
	if err := e.appendHistoryTx(ctx, tx, t, 0); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	e.Log.Info().Int64("task", t.ID).Str("title", t.Title).Msg("task created")
	return t, nil
}

func (e *Engine) GetTask(ctx context.Context, id int64) (*domain.Task, error) {
	return e.Tasks.FindByID(ctx, id)
}

// TaskFilter narrows ListTasks. Zero values mean no filtering.
type TaskFilter struct {
	ProjectID  int64
	AssigneeID int64
	Status     domain.Status
}

func (e *Engine) ListTasks(ctx context.Context, f TaskFilter) ([]*domain.Task, error) {
	switch {
	case f.ProjectID != 0:
		tasks, err := e.Tasks.FindByProject(ctx, f.ProjectID)
		return filterStatus(tasks, f.Status), err
	case f.AssigneeID != 0:
		tasks, err := e.Tasks.FindByAssignee(ctx, f.AssigneeID)
		return filterStatus(tasks, f.Status), err
	case f.Status != "":
		return e.Tasks.FindByStatus(ctx, f.Status)
	default:
		return e.Tasks.FindAll(ctx)
	}
}

func filterStatus(tasks []*domain.Task, status domain.Status) []*domain.Task {
	if status == "" {
		return tasks
	}
	var out []*domain.Task
	for _, t := range tasks {
		if t.CurrentStatus() == status {
			out = append(out, t)
		}
	}
	return out
}

// OverdueTasks lists open tasks whose due date has passed.
func (e *Engine) OverdueTasks(ctx context.Context) ([]*domain.Task, error) {
	tasks, err := e.Tasks.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	now := e.now().UTC()
	var out []*domain.Task
	for _, t := range tasks {
		if t.IsTerminal() || t.DueDate == nil {
			continue
		}
		if t.DueDate.Before(now) {
			out = append(out, t)
		}
	}
	return out, nil
}

// taskGuard admits the assignee, the assigner and any actor ranked manager
// or above. Unassigned tasks are open to everyone.
func taskGuard(t *domain.Task, actor *domain.User, action string) error {
	if actor == nil {
		return domain.ValidationError{Field: "actor", Reason: "required"}
	}
	if !t.IsAssigned() {
		return nil
	}
	if actor.ID == t.AssigneeID || actor.ID == t.AssignerID {
		return nil
	}
	if actor.Role.Rank() >= domain.RoleManager.Rank() {
		return nil
	}
	return domain.AuthorizationError{Actor: actor.Username, Action: action}
}

type UpdateTaskOptions struct {
	ID int64
	// Nil pointer fields keep their current value.
	Title       *string
	Description *string
	Priority    *domain.Priority
	DueDate     *time.Time
	ClearDue    bool
	Actor       *domain.User
}

func (e *Engine) UpdateTask(ctx context.Context, opts UpdateTaskOptions) (*domain.Task, error) {
	t, err := e.Tasks.FindByID(ctx, opts.ID)
	if err != nil {
		return nil, err
	}
	if err := taskGuard(t, opts.Actor, "edit this task"); err != nil {
		return nil, err
	}
	if opts.Title != nil {
		t.Title = *opts.Title
	}
	if opts.Description != nil {
		t.Description = *opts.Description
	}
	if opts.Priority != nil {
		t.Priority = *opts.Priority
	}
	if opts.DueDate != nil {
		t.DueDate = opts.DueDate
	}
	if opts.ClearDue {
		t.DueDate = nil
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	t.Touch()
	if err := e.Tasks.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (e *Engine) TransitionTask(ctx context.Context, id int64, to domain.Status, actor *domain.User, note string) (*domain.Task, error) {
	t, err := e.Tasks.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := taskGuard(t, actor, "change this task's status"); err != nil {
		return nil, err
	}
	before := len(t.History())
	if err := t.Transition(to, actor, note); err != nil {
		return nil, err
	}
	if len(t.History()) == before {
		return t, nil
	}
	if err := e.saveTaskWithHistory(ctx, t, before); err != nil {
		return nil, err
	}
	e.Log.Info().Int64("task", t.ID).Str("status", string(to)).Msg("task status changed")
	return t, nil
}

func (e *Engine) AssignTask(ctx context.Context, taskID, assigneeID int64, actor *domain.User) (*domain.Task, error) {
	t, err := e.Tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	assignee, err := e.Users.FindByID(ctx, assigneeID)
	if err != nil {
		return nil, err
	}
	before := len(t.History())
	if err := t.Assign(assignee, actor); err != nil {
		return nil, err
	}
	if err := e.saveTaskWithHistory(ctx, t, before); err != nil {
		return nil, err
	}
	e.Log.Info().Int64("task", t.ID).Str("assignee", assignee.Username).Msg("task assigned")
	return t, nil
}

func (e *Engine) UnassignTask(ctx context.Context, taskID int64, actor *domain.User) (*domain.Task, error) {
	t, err := e.Tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	before := len(t.History())
	if err := t.Unassign(actor); err != nil {
		return nil, err
	}
	if err := e.saveTaskWithHistory(ctx, t, before); err != nil {
		return nil, err
	}
	e.Log.Info().Int64("task", t.ID).Msg("task unassigned")
	return t, nil
}

// DeleteTask removes a task row; its history stays in the trail. Restricted
// to the task guard.
func (e *Engine) DeleteTask(ctx context.Context, id int64, actor *domain.User) error {
	t, err := e.Tasks.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := taskGuard(t, actor, "delete this task"); err != nil {
		return err
	}
	if err := e.Tasks.DeleteByID(ctx, id); err != nil {
		return err
	}
	e.Log.Info().Int64("task", id).Msg("task deleted")
	return nil
}

func (e *Engine) TaskHistory(ctx context.Context, id int64) ([]domain.HistoryEntry, error) {
	if _, err := e.Tasks.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return e.History.ListByEntity(ctx, "task", id)
}

func (e *Engine) saveTaskWithHistory(ctx context.Context, t *domain.Task, before int) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Tasks.SaveTx(ctx, tx, t); err != nil {
		return fmt.Errorf("save task %d: %w", t.ID, err)
	}
	if err := e.appendHistoryTx(ctx, tx, t, before); err != nil {
		return err
	}
	return tx.Commit()
}
