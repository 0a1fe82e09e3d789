package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"testing"

	"taskman/internal/db"
	"taskman/internal/domain"
	"taskman/internal/engine"
	"taskman/internal/logger"
	"taskman/internal/migrate"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	Engine *engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, logger.Nop())
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v1",
		Auth:     AuthConfig{JWTSecret: testSecret},
		Log:      logger.Nop(),
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	ts := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(ts.Close)
	return ts
}

func seedUser(t *testing.T, e *engine.Engine, username string, role domain.Role) *domain.User {
	t.Helper()
	u, err := e.RegisterUser(context.Background(), engine.RegisterUserOptions{
		Username:    username,
		Email:       username + "@example.com",
		DisplayName: username,
		Role:        role,
		Password:    "secret123",
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return u
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, token string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func login(t *testing.T, ts *testServer, username string) string {
	t.Helper()
	resp, data := doJSON(t, ts.Client(), http.MethodPost, ts.URL+"/v1/auth/login",
		map[string]string{"username": username, "password": "secret123"}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", username, resp.StatusCode, data)
	}
	var out LoginResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if out.Token == "" {
		t.Fatalf("empty token")
	}
	return out.Token
}

func TestHealthNeedsNoAuth(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := doJSON(t, ts.Client(), http.MethodGet, ts.URL+"/v1/health", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", resp.StatusCode)
	}
}

func TestUnauthenticatedRejected(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := doJSON(t, ts.Client(), http.MethodGet, ts.URL+"/v1/tasks", nil, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated list: status %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, ts.Client(), http.MethodGet, ts.URL+"/v1/tasks", nil, "not-a-jwt")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage token: status %d", resp.StatusCode)
	}
}

func TestLoginAndMe(t *testing.T) {
	ts := newTestServer(t)
	seedUser(t, ts.Engine, "alice", domain.RoleEmployee)
	token := login(t, ts, "alice")

	resp, data := doJSON(t, ts.Client(), http.MethodGet, ts.URL+"/v1/me", nil, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: status %d body %s", resp.StatusCode, data)
	}
	var me UserResponse
	if err := json.Unmarshal(data, &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.Username != "alice" || me.Role != "employee" {
		t.Fatalf("me mismatch: %+v", me)
	}

	resp, _ = doJSON(t, ts.Client(), http.MethodPost, ts.URL+"/v1/auth/login",
		map[string]string{"username": "alice", "password": "wrong"}, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad password: status %d", resp.StatusCode)
	}
}

func TestTaskEndpointsRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	seedUser(t, ts.Engine, "mgr", domain.RoleManager)
	emp := seedUser(t, ts.Engine, "emp", domain.RoleEmployee)
	token := login(t, ts, "mgr")

	resp, data := doJSON(t, ts.Client(), http.MethodPost, ts.URL+"/v1/tasks",
		map[string]any{"title": "Ship it", "priority": "high"}, token)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create task: status %d body %s", resp.StatusCode, data)
	}
	var task TaskResponse
	if err := json.Unmarshal(data, &task); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	if task.Status != "todo" {
		t.Fatalf("new task status %s", task.Status)
	}

	url := ts.URL + "/v1/tasks/" + itoa(task.ID)
	resp, data = doJSON(t, ts.Client(), http.MethodPost, url+"/assign",
		map[string]any{"assignee_id": emp.ID}, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("assign: status %d body %s", resp.StatusCode, data)
	}

	resp, data = doJSON(t, ts.Client(), http.MethodPost, url+"/status",
		map[string]any{"status": "in_progress"}, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("transition: status %d body %s", resp.StatusCode, data)
	}

	resp, data = doJSON(t, ts.Client(), http.MethodGet, url+"/history", nil, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history: status %d", resp.StatusCode)
	}
	var trail []HistoryEntryResponse
	if err := json.Unmarshal(data, &trail); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(trail) != 3 {
		t.Fatalf("trail length %d, want 3", len(trail))
	}
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	seedUser(t, ts.Engine, "mgr", domain.RoleManager)
	seedUser(t, ts.Engine, "emp", domain.RoleEmployee)
	mgrToken := login(t, ts, "mgr")
	empToken := login(t, ts, "emp")

	// Unknown task is 404.
	resp, _ := doJSON(t, ts.Client(), http.MethodGet, ts.URL+"/v1/tasks/9999", nil, mgrToken)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing task: status %d", resp.StatusCode)
	}

	// Illegal transition is 409 with the state_conflict envelope.
	_, data := doJSON(t, ts.Client(), http.MethodPost, ts.URL+"/v1/tasks",
		map[string]any{"title": "x"}, mgrToken)
	var task TaskResponse
	if err := json.Unmarshal(data, &task); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	resp, data = doJSON(t, ts.Client(), http.MethodPost, ts.URL+"/v1/tasks/"+itoa(task.ID)+"/status",
		map[string]any{"status": "review"}, mgrToken)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("illegal transition: status %d body %s", resp.StatusCode, data)
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if envelope.Error.Code != "state_conflict" {
		t.Fatalf("error code %q", envelope.Error.Code)
	}

	// An employee creating an admin is 403.
	resp, _ = doJSON(t, ts.Client(), http.MethodPost, ts.URL+"/v1/users", map[string]any{
		"username": "boss_new", "email": "b@example.com", "display_name": "B",
		"role": "admin", "password": "secret123",
	}, empToken)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("employee creating admin: status %d", resp.StatusCode)
	}

	// Duplicate username is 409.
	resp, _ = doJSON(t, ts.Client(), http.MethodPost, ts.URL+"/v1/users", map[string]any{
		"username": "emp", "email": "other@example.com", "display_name": "E",
		"role": "employee", "password": "secret123",
	}, mgrToken)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate username: status %d", resp.StatusCode)
	}
}

func TestProjectEndpoints(t *testing.T) {
	ts := newTestServer(t)
	seedUser(t, ts.Engine, "mgr", domain.RoleManager)
	token := login(t, ts, "mgr")

	resp, data := doJSON(t, ts.Client(), http.MethodPost, ts.URL+"/v1/projects",
		map[string]any{"name": "Launch", "priority": "high"}, token)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create project: status %d body %s", resp.StatusCode, data)
	}
	var proj ProjectResponse
	if err := json.Unmarshal(data, &proj); err != nil {
		t.Fatalf("decode project: %v", err)
	}
	if proj.Status != "planning" {
		t.Fatalf("new project status %s", proj.Status)
	}

	url := ts.URL + "/v1/projects/" + itoa(proj.ID)
	resp, data = doJSON(t, ts.Client(), http.MethodPost, url+"/status",
		map[string]any{"status": "active"}, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("activate: status %d body %s", resp.StatusCode, data)
	}

	doJSON(t, ts.Client(), http.MethodPost, ts.URL+"/v1/tasks",
		map[string]any{"title": "a", "project_id": proj.ID}, token)

	resp, data = doJSON(t, ts.Client(), http.MethodGet, url+"/summary", nil, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("summary: status %d", resp.StatusCode)
	}
	var summary SummaryResponse
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Counts["todo"] != 1 {
		t.Fatalf("summary counts %v", summary.Counts)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
