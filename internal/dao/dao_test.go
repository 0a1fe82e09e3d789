package dao

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"taskman/internal/db"
	"taskman/internal/domain"
	"taskman/internal/migrate"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func seedUser(t *testing.T, users *UserDAO, username string, role domain.Role) *domain.User {
	t.Helper()
	u, err := domain.NewUser(username, username+"@example.com", username, role, "secret123")
	if err != nil {
		t.Fatalf("new user: %v", err)
	}
	if err := users.Save(context.Background(), u); err != nil {
		t.Fatalf("save user: %v", err)
	}
	return u
}

func TestUserSaveInsertThenUpdate(t *testing.T) {
	conn := openTestDB(t)
	users := NewUserDAO(conn)
	ctx := context.Background()

	u := seedUser(t, users, "alice", domain.RoleEmployee)
	if u.ID == 0 {
		t.Fatalf("insert did not capture generated id")
	}

	u.DisplayName = "Alice A."
	u.Role = domain.RoleManager
	if err := users.Save(ctx, u); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := users.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.DisplayName != "Alice A." || got.Role != domain.RoleManager {
		t.Fatalf("update not persisted: %+v", got)
	}
	if !got.CheckPassword("secret123") {
		t.Fatalf("password hash lost in round trip")
	}
	if n, _ := users.Count(ctx); n != 1 {
		t.Fatalf("count %d after insert+update, want 1", n)
	}
}

func TestUserLookups(t *testing.T) {
	conn := openTestDB(t)
	users := NewUserDAO(conn)
	ctx := context.Background()

	seedUser(t, users, "bob", domain.RoleEmployee)

	if _, err := users.FindByUsername(ctx, "bob"); err != nil {
		t.Fatalf("find by username: %v", err)
	}
	if _, err := users.FindByEmail(ctx, "bob@example.com"); err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if _, err := users.FindByUsername(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing user: got %v, want ErrNotFound", err)
	}
	if _, err := users.FindByID(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing id: got %v, want ErrNotFound", err)
	}
}

func TestUserUniqueUsername(t *testing.T) {
	conn := openTestDB(t)
	users := NewUserDAO(conn)

	seedUser(t, users, "carol", domain.RoleEmployee)
	dup, err := domain.NewUser("carol", "other@example.com", "Carol 2", domain.RoleEmployee, "secret123")
	if err != nil {
		t.Fatalf("new user: %v", err)
	}
	if err := users.Save(context.Background(), dup); err == nil {
		t.Fatalf("duplicate username accepted")
	}
}

func TestTaskRoundTrip(t *testing.T) {
	conn := openTestDB(t)
	users := NewUserDAO(conn)
	tasks := NewTaskDAO(conn)
	ctx := context.Background()

	mgr := seedUser(t, users, "mgr", domain.RoleManager)
	emp := seedUser(t, users, "emp", domain.RoleEmployee)

	task, err := domain.NewTask(domain.TaskOptions{
		Title:      "Ship release",
		Priority:   domain.PriorityHigh,
		Reopenable: true,
	}, mgr)
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if err := task.Assign(emp, mgr); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := tasks.Save(ctx, task); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := tasks.FindByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Title != task.Title || got.Status != domain.TaskTodo {
		t.Fatalf("round trip mangled task: %+v", got)
	}
	if got.AssigneeID != emp.ID || got.AssignerID != mgr.ID {
		t.Fatalf("assignment columns not persisted")
	}
	if got.ProjectID != 0 || got.DueDate != nil || got.CompletedAt != nil {
		t.Fatalf("null columns should scan to zero values")
	}
	if !got.Reopenable {
		t.Fatalf("reopenable flag lost")
	}
}

func TestTaskFindersAndCounts(t *testing.T) {
	conn := openTestDB(t)
	users := NewUserDAO(conn)
	projects := NewProjectDAO(conn)
	tasks := NewTaskDAO(conn)
	ctx := context.Background()

	mgr := seedUser(t, users, "mgr", domain.RoleManager)
	emp := seedUser(t, users, "emp", domain.RoleEmployee)

	proj, err := domain.NewProject("Launch", "", domain.PriorityMedium, mgr)
	if err != nil {
		t.Fatalf("new project: %v", err)
	}
	if err := projects.Save(ctx, proj); err != nil {
		t.Fatalf("save project: %v", err)
	}

	mk := func(title string, status domain.Status, assignee *domain.User) {
		task, err := domain.NewTask(domain.TaskOptions{
			Title:     title,
			Priority:  domain.PriorityLow,
			ProjectID: proj.ID,
		}, mgr)
		if err != nil {
			t.Fatalf("new task: %v", err)
		}
		if assignee != nil {
			if err := task.Assign(assignee, mgr); err != nil {
				t.Fatalf("assign: %v", err)
			}
		}
		task.Status = status
		if err := tasks.Save(ctx, task); err != nil {
			t.Fatalf("save task: %v", err)
		}
	}
	mk("a", domain.TaskTodo, emp)
	mk("b", domain.TaskTodo, nil)
	mk("c", domain.TaskInProgress, emp)

	byProject, err := tasks.FindByProject(ctx, proj.ID)
	if err != nil || len(byProject) != 3 {
		t.Fatalf("find by project: %d tasks, err %v", len(byProject), err)
	}
	byAssignee, err := tasks.FindByAssignee(ctx, emp.ID)
	if err != nil || len(byAssignee) != 2 {
		t.Fatalf("find by assignee: %d tasks, err %v", len(byAssignee), err)
	}
	counts, err := tasks.CountByStatus(ctx, proj.ID)
	if err != nil {
		t.Fatalf("count by status: %v", err)
	}
	if counts[domain.TaskTodo] != 2 || counts[domain.TaskInProgress] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestProjectRoundTripAndDelete(t *testing.T) {
	conn := openTestDB(t)
	users := NewUserDAO(conn)
	projects := NewProjectDAO(conn)
	ctx := context.Background()

	mgr := seedUser(t, users, "mgr", domain.RoleManager)
	proj, err := domain.NewProject("Migration", "move everything", domain.PriorityHigh, mgr)
	if err != nil {
		t.Fatalf("new project: %v", err)
	}
	if err := projects.Save(ctx, proj); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := projects.FindByID(ctx, proj.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Name != proj.Name || got.Description != proj.Description || got.CreatorID != mgr.ID {
		t.Fatalf("round trip mangled project: %+v", got)
	}
	if got.Status != domain.ProjectPlanning {
		t.Fatalf("status %s, want planning", got.Status)
	}

	byCreator, err := projects.FindByCreator(ctx, mgr.ID)
	if err != nil || len(byCreator) != 1 {
		t.Fatalf("find by creator: %d, err %v", len(byCreator), err)
	}

	if err := projects.DeleteByID(ctx, proj.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := projects.DeleteByID(ctx, proj.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: got %v, want ErrNotFound", err)
	}
}

func TestUpdateMissingRowIsNotFound(t *testing.T) {
	conn := openTestDB(t)
	users := NewUserDAO(conn)

	u, err := domain.NewUser("ghost", "ghost@example.com", "Ghost", domain.RoleEmployee, "secret123")
	if err != nil {
		t.Fatalf("new user: %v", err)
	}
	u.SetEntityID(404)
	if err := users.Save(context.Background(), u); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update of missing row: got %v, want ErrNotFound", err)
	}
}

func TestHistoryAppendAndList(t *testing.T) {
	conn := openTestDB(t)
	users := NewUserDAO(conn)
	history := NewHistoryDAO(conn)
	ctx := context.Background()

	mgr := seedUser(t, users, "mgr", domain.RoleManager)
	task, err := domain.NewTask(domain.TaskOptions{Title: "x", Priority: domain.PriorityLow}, mgr)
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if err := task.Transition(domain.TaskInProgress, mgr, "picked up"); err != nil {
		t.Fatalf("transition: %v", err)
	}

	for i := range task.History() {
		entry := task.History()[i]
		entry.EntityID = 1
		if err := history.Append(ctx, &entry); err != nil {
			t.Fatalf("append: %v", err)
		}
		if entry.ID == 0 {
			t.Fatalf("append did not capture generated id")
		}
	}

	trail, err := history.ListByEntity(ctx, "task", 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(trail) != 2 {
		t.Fatalf("trail length %d, want 2", len(trail))
	}
	if trail[0].Event != domain.EventCreated || trail[1].Event != domain.EventStatusChanged {
		t.Fatalf("trail out of order: %+v", trail)
	}
	if trail[1].OldStatus != domain.TaskTodo || trail[1].NewStatus != domain.TaskInProgress {
		t.Fatalf("status pair lost: %+v", trail[1])
	}
	if trail[1].ActorID != mgr.ID || trail[1].Note != "picked up" {
		t.Fatalf("actor or note lost: %+v", trail[1])
	}
}
