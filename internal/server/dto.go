package server

import (
	"time"

	"taskman/internal/domain"
)

type UserResponse struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	CreatedAt   string `json:"created_at"`
}

func userResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        string(u.Role),
		CreatedAt:   u.CreatedAt.Format(time.RFC3339),
	}
}

func mapUsers(users []*domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userResponse(u))
	}
	return out
}

type CreateUserRequest struct {
	Username    string `json:"username" minLength:"3" maxLength:"20"`
	Email       string `json:"email" format:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role" enum:"employee,manager,admin"`
	Password    string `json:"password" minLength:"6"`
}

type ProjectResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
	CreatorID   int64  `json:"creator_id"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func projectResponse(p *domain.Project) ProjectResponse {
	return ProjectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Priority:    string(p.Priority),
		Status:      string(p.CurrentStatus()),
		CreatorID:   p.CreatorID,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   p.UpdatedAt.Format(time.RFC3339),
	}
}

func mapProjects(projects []*domain.Project) []ProjectResponse {
	out := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, projectResponse(p))
	}
	return out
}

type CreateProjectRequest struct {
	Name        string `json:"name" minLength:"1" maxLength:"100"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty" enum:"low,medium,high"`
}

type TaskResponse struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
	ProjectID   int64  `json:"project_id,omitempty"`
	AssigneeID  int64  `json:"assignee_id,omitempty"`
	AssignerID  int64  `json:"assigner_id,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
	Reopenable  bool   `json:"reopenable"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func taskResponse(t *domain.Task) TaskResponse {
	r := TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    string(t.Priority),
		Status:      string(t.CurrentStatus()),
		ProjectID:   t.ProjectID,
		AssigneeID:  t.AssigneeID,
		AssignerID:  t.AssignerID,
		Reopenable:  t.Reopenable,
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.Format(time.RFC3339),
	}
	if t.DueDate != nil {
		r.DueDate = t.DueDate.Format(time.RFC3339)
	}
	if t.CompletedAt != nil {
		r.CompletedAt = t.CompletedAt.Format(time.RFC3339)
	}
	return r
}

func mapTasks(tasks []*domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskResponse(t))
	}
	return out
}

type CreateTaskRequest struct {
	Title       string `json:"title" minLength:"1" maxLength:"200"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty" enum:"low,medium,high"`
	ProjectID   int64  `json:"project_id,omitempty"`
	AssigneeID  int64  `json:"assignee_id,omitempty"`
	DueDate     string `json:"due_date,omitempty" format:"date-time"`
	Reopenable  bool   `json:"reopenable,omitempty"`
}

type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Priority    *string `json:"priority,omitempty" enum:"low,medium,high"`
	DueDate     *string `json:"due_date,omitempty" format:"date-time"`
}

type SetStatusRequest struct {
	Status string `json:"status" minLength:"1"`
	Note   string `json:"note,omitempty"`
}

type AssignRequest struct {
	AssigneeID int64 `json:"assignee_id"`
}

type HistoryEntryResponse struct {
	ID        int64  `json:"id"`
	Event     string `json:"event"`
	OldStatus string `json:"old_status,omitempty"`
	NewStatus string `json:"new_status,omitempty"`
	ActorID   int64  `json:"actor_id,omitempty"`
	Note      string `json:"note,omitempty"`
	CreatedAt string `json:"created_at"`
}

func mapHistory(entries []domain.HistoryEntry) []HistoryEntryResponse {
	out := make([]HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryEntryResponse{
			ID:        e.ID,
			Event:     e.Event,
			OldStatus: string(e.OldStatus),
			NewStatus: string(e.NewStatus),
			ActorID:   e.ActorID,
			Note:      e.Note,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		})
	}
	return out
}

type LoginRequest struct {
	Username string `json:"username" minLength:"1"`
	Password string `json:"password" minLength:"1"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type SummaryResponse struct {
	ProjectID int64          `json:"project_id,omitempty"`
	Counts    map[string]int `json:"counts"`
}
