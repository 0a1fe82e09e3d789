package dao

import (
	"context"
	"database/sql"
	"fmt"

	"taskman/internal/domain"
)

const projectColumns = `SELECT id,name,COALESCE(description,''),priority,status,creator_id,created_at,updated_at FROM projects`

type ProjectDAO struct {
	*DAO[*domain.Project]
}

func NewProjectDAO(db *sql.DB) *ProjectDAO {
	return &ProjectDAO{New(db, Hooks[*domain.Project]{
		Table:     "projects",
		SelectSQL: projectColumns,
		InsertSQL: `INSERT INTO projects(name,description,priority,status,creator_id,created_at,updated_at) VALUES (?,?,?,?,?,?,?)`,
		UpdateSQL: `UPDATE projects SET name=?, description=?, priority=?, status=?, updated_at=? WHERE id=?`,
		InsertArgs: func(p *domain.Project) []any {
			return []any{p.Name, nullable(p.Description), string(p.Priority), string(p.Status), p.CreatorID, formatTime(p.CreatedAt), formatTime(p.UpdatedAt)}
		},
		UpdateArgs: func(p *domain.Project) []any {
			return []any{p.Name, nullable(p.Description), string(p.Priority), string(p.Status), formatTime(p.UpdatedAt)}
		},
		ScanRow: scanProject,
	})}
}

func scanProject(s Scanner) (*domain.Project, error) {
	var p domain.Project
	var priority, status, createdAt, updatedAt string
	if err := s.Scan(&p.ID, &p.Name, &p.Description, &priority, &status, &p.CreatorID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.Priority = domain.Priority(priority)
	p.Status = domain.Status(status)
	var err error
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("projects.created_at: %w", err)
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("projects.updated_at: %w", err)
	}
	return &p, nil
}

// FindByCreator lists a user's projects, newest first.
func (d *ProjectDAO) FindByCreator(ctx context.Context, creatorID int64) ([]*domain.Project, error) {
	return d.query(ctx, projectColumns+` WHERE creator_id=? ORDER BY created_at DESC, id DESC`, creatorID)
}

// FindByStatus lists projects in one status, newest first.
func (d *ProjectDAO) FindByStatus(ctx context.Context, status domain.Status) ([]*domain.Project, error) {
	return d.query(ctx, projectColumns+` WHERE status=? ORDER BY created_at DESC, id DESC`, string(status))
}
