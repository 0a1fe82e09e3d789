// Package taskmansdk is a small typed client for the Taskman HTTP API.
package taskmansdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a Taskman server. Call Login first, or set BearerToken
// yourself if you already hold one.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "v1",
		Timeout:  10 * time.Second,
	}
}

// User mirrors the API user model.
type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	CreatedAt   string `json:"created_at"`
}

// Project mirrors the API project model.
type Project struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
	CreatorID   int64  `json:"creator_id"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Task mirrors the API task model.
type Task struct {
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

// HistoryEntry is one record of an entity's audit trail.
type HistoryEntry struct {
	ID        int64  `json:"id"`
	Event     string `json:"event"`
	OldStatus string `json:"old_status,omitempty"`
	NewStatus string `json:"new_status,omitempty"`
	ActorID   int64  `json:"actor_id,omitempty"`
	Note      string `json:"note,omitempty"`
	CreatedAt string `json:"created_at"`
}

// Summary is the per-status task count for a project.
type Summary struct {
	ProjectID int64          `json:"project_id,omitempty"`
	Counts    map[string]int `json:"counts"`
}

// CreateTaskInput carries the optional fields of task creation.
type CreateTaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
	ProjectID   int64  `json:"project_id,omitempty"`
	AssigneeID  int64  `json:"assignee_id,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
	Reopenable  bool   `json:"reopenable,omitempty"`
}

// UpdateTaskInput carries partial task edits. Nil fields are left unchanged.
type UpdateTaskInput struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
}

// TaskFilter narrows task listings. Zero values are ignored.
type TaskFilter struct {
	ProjectID  int64
	AssigneeID int64
	Status     string
}

// APIError wraps non-2xx responses, exposing the server's error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Login exchanges credentials for a token and stores it on the client.
func (c *Client) Login(ctx context.Context, username, password string) (User, error) {
	var resp struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "auth/login", body, &resp); err != nil {
		return User{}, err
	}
	c.BearerToken = resp.Token
	return resp.User, nil
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodGet, "me", nil, &resp)
	return resp, err
}

// CreateUser registers a user. The caller's rank must cover the new role.
func (c *Client) CreateUser(ctx context.Context, username, email, displayName, role, password string) (User, error) {
	body := map[string]string{
		"username":     username,
		"email":        email,
		"display_name": displayName,
		"role":         role,
		"password":     password,
	}
	var resp User
	err := c.do(ctx, http.MethodPost, "users", body, &resp)
	return resp, err
}

// ListUsers returns all users.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var resp []User
	err := c.do(ctx, http.MethodGet, "users", nil, &resp)
	return resp, err
}

// GetUser fetches a user by id.
func (c *Client) GetUser(ctx context.Context, id int64) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("users/%d", id), nil, &resp)
	return resp, err
}

// CreateProject creates a project owned by the caller.
func (c *Client) CreateProject(ctx context.Context, name, description, priority string) (Project, error) {
	body := map[string]string{"name": name, "description": description, "priority": priority}
	var resp Project
	err := c.do(ctx, http.MethodPost, "projects", body, &resp)
	return resp, err
}

// ListProjects returns all projects, newest first.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var resp []Project
	err := c.do(ctx, http.MethodGet, "projects", nil, &resp)
	return resp, err
}

// GetProject fetches a project by id.
func (c *Client) GetProject(ctx context.Context, id int64) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("projects/%d", id), nil, &resp)
	return resp, err
}

// SetProjectStatus moves a project through its lifecycle.
func (c *Client) SetProjectStatus(ctx context.Context, id int64, status, note string) (Project, error) {
	body := map[string]string{"status": status, "note": note}
	var resp Project
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("projects/%d/status", id), body, &resp)
	return resp, err
}

// DeleteProject removes a project. Its tasks survive, detached.
func (c *Client) DeleteProject(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("projects/%d", id), nil, nil)
}

// ProjectHistory returns a project's audit trail, oldest first.
func (c *Client) ProjectHistory(ctx context.Context, id int64) ([]HistoryEntry, error) {
	var resp []HistoryEntry
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("projects/%d/history", id), nil, &resp)
	return resp, err
}

// ProjectSummary returns per-status task counts for a project.
func (c *Client) ProjectSummary(ctx context.Context, id int64) (Summary, error) {
	var resp Summary
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("projects/%d/summary", id), nil, &resp)
	return resp, err
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, in CreateTaskInput) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", in, &resp)
	return resp, err
}

// ListTasks returns tasks matching the filter, newest first.
func (c *Client) ListTasks(ctx context.Context, f TaskFilter) ([]Task, error) {
	q := url.Values{}
	if f.ProjectID > 0 {
		q.Set("project_id", fmt.Sprintf("%d", f.ProjectID))
	}
	if f.AssigneeID > 0 {
		q.Set("assignee_id", fmt.Sprintf("%d", f.AssigneeID))
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	endpoint := "tasks"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp []Task
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetTask fetches a task by id.
func (c *Client) GetTask(ctx context.Context, id int64) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("tasks/%d", id), nil, &resp)
	return resp, err
}

// UpdateTask applies a partial edit to a task.
func (c *Client) UpdateTask(ctx context.Context, id int64, in UpdateTaskInput) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("tasks/%d", id), in, &resp)
	return resp, err
}

// SetTaskStatus moves a task through its lifecycle.
func (c *Client) SetTaskStatus(ctx context.Context, id int64, status, note string) (Task, error) {
	body := map[string]string{"status": status, "note": note}
	var resp Task
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("tasks/%d/status", id), body, &resp)
	return resp, err
}

// AssignTask hands a task to a user.
func (c *Client) AssignTask(ctx context.Context, id, assigneeID int64) (Task, error) {
	body := map[string]int64{"assignee_id": assigneeID}
	var resp Task
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("tasks/%d/assign", id), body, &resp)
	return resp, err
}

// UnassignTask clears a task's assignee.
func (c *Client) UnassignTask(ctx context.Context, id int64) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("tasks/%d/unassign", id), nil, &resp)
	return resp, err
}

// TaskHistory returns a task's audit trail, oldest first.
func (c *Client) TaskHistory(ctx context.Context, id int64) ([]HistoryEntry, error) {
	var resp []HistoryEntry
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("tasks/%d/history", id), nil, &resp)
	return resp, err
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("tasks/%d", id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	u := c.base() + "/" + strings.Trim(c.BasePath, "/") + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
