package dao

import (
	"context"
	"database/sql"
	"fmt"

	"taskman/internal/domain"
)

const taskColumns = `SELECT id,title,COALESCE(description,''),priority,status,project_id,assignee_id,assigner_id,due_date,completed_at,reopenable,created_at,updated_at FROM tasks`

type TaskDAO struct {
	*DAO[*domain.Task]
}

func NewTaskDAO(db *sql.DB) *TaskDAO {
	return &TaskDAO{New(db, Hooks[*domain.Task]{
		Table:     "tasks",
		SelectSQL: taskColumns,
		InsertSQL: `INSERT INTO tasks(title,description,priority,status,project_id,assignee_id,assigner_id,due_date,completed_at,reopenable,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		UpdateSQL: `UPDATE tasks SET title=?, description=?, priority=?, status=?, project_id=?, assignee_id=?, assigner_id=?, due_date=?, completed_at=?, reopenable=?, updated_at=? WHERE id=?`,
		InsertArgs: func(t *domain.Task) []any {
			return []any{
				t.Title, nullable(t.Description), string(t.Priority), string(t.Status),
				nullableID(t.ProjectID), nullableID(t.AssigneeID), nullableID(t.AssignerID),
				nullableTime(t.DueDate), nullableTime(t.CompletedAt), t.Reopenable,
				formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
			}
		},
		UpdateArgs: func(t *domain.Task) []any {
			return []any{
				t.Title, nullable(t.Description), string(t.Priority), string(t.Status),
				nullableID(t.ProjectID), nullableID(t.AssigneeID), nullableID(t.AssignerID),
				nullableTime(t.DueDate), nullableTime(t.CompletedAt), t.Reopenable,
				formatTime(t.UpdatedAt),
			}
		},
		ScanRow: scanTask,
	})}
}

func scanTask(s Scanner) (*domain.Task, error) {
	var t domain.Task
	var priority, status, createdAt, updatedAt string
	var projectID, assigneeID, assignerID sql.NullInt64
	var dueDate, completedAt sql.NullString
	err := s.Scan(
		&t.ID, &t.Title, &t.Description, &priority, &status,
		&projectID, &assigneeID, &assignerID,
		&dueDate, &completedAt, &t.Reopenable,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Priority = domain.Priority(priority)
	t.Status = domain.Status(status)
	t.ProjectID = projectID.Int64
	t.AssigneeID = assigneeID.Int64
	t.AssignerID = assignerID.Int64
	if t.DueDate, err = parseNullTime(dueDate); err != nil {
		return nil, fmt.Errorf("tasks.due_date: %w", err)
	}
	if t.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, fmt.Errorf("tasks.completed_at: %w", err)
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("tasks.created_at: %w", err)
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("tasks.updated_at: %w", err)
	}
	return &t, nil
}

// FindByProject lists a project's tasks, newest first.
func (d *TaskDAO) FindByProject(ctx context.Context, projectID int64) ([]*domain.Task, error) {
	return d.query(ctx, taskColumns+` WHERE project_id=? ORDER BY created_at DESC, id DESC`, projectID)
}

// FindByAssignee lists the tasks currently assigned to a user, newest first.
func (d *TaskDAO) FindByAssignee(ctx context.Context, userID int64) ([]*domain.Task, error) {
	return d.query(ctx, taskColumns+` WHERE assignee_id=? ORDER BY created_at DESC, id DESC`, userID)
}

// FindByStatus lists tasks in one status, newest first.
func (d *TaskDAO) FindByStatus(ctx context.Context, status domain.Status) ([]*domain.Task, error) {
	return d.query(ctx, taskColumns+` WHERE status=? ORDER BY created_at DESC, id DESC`, string(status))
}

// CountByStatus tallies a project's tasks per status. A projectID of zero
// tallies tasks with no project.
func (d *TaskDAO) CountByStatus(ctx context.Context, projectID int64) (map[domain.Status]int, error) {
	q := `SELECT status, count(*) FROM tasks WHERE project_id=? GROUP BY status`
	args := []any{projectID}
	if projectID == 0 {
		q = `SELECT status, count(*) FROM tasks WHERE project_id IS NULL GROUP BY status`
		args = nil
	}
	rows, err := d.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("count tasks by status: %w", err)
	}
	defer rows.Close()
	counts := make(map[domain.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("count tasks by status: %w", err)
		}
		counts[domain.Status(status)] = n
	}
	return counts, rows.Err()
}
