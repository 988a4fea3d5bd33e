package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/Fallenproud/create.xyzdashboard/internal/domain"
	"github.com/Fallenproud/create.xyzdashboard/internal/repository/kvstore"
	"github.com/Fallenproud/create.xyzdashboard/internal/service/assistant"
	"github.com/Fallenproud/create.xyzdashboard/internal/service/auth"
	"github.com/Fallenproud/create.xyzdashboard/internal/service/collab"
	"github.com/Fallenproud/create.xyzdashboard/internal/service/deploy"
	"github.com/Fallenproud/create.xyzdashboard/internal/service/mockapi"
	"github.com/Fallenproud/create.xyzdashboard/internal/service/project"
	"github.com/Fallenproud/create.xyzdashboard/internal/storage/memory"
	"github.com/Fallenproud/create.xyzdashboard/internal/ws"
	"github.com/Fallenproud/create.xyzdashboard/pkg/clock"
)

type testServer struct {
	router *Router
	clock  *clock.Fake
	hub    *ws.Hub
}

type routerOption func(*routerConfig)

type routerConfig struct {
	storeHealth func(context.Context) error
	limiter     RateLimiter
}

func withStoreHealth(fn func(context.Context) error) routerOption {
	return func(c *routerConfig) { c.storeHealth = fn }
}

func newTestServer(t *testing.T, opts ...routerOption) testServer {
	t.Helper()
	cfg := routerConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fake := clock.NewFake(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	hub := ws.NewHub()
	t.Cleanup(hub.Close)

	repo := kvstore.New(memory.New(), logger)
	pipeline := deploy.NewPipeline(fake, logger, deploy.WithNotifier(hub))
	mock, err := mockapi.New(mockapi.Repositories{Projects: repo, Files: repo, Deployments: repo, Sessions: repo},
		pipeline, fake, logger, mockapi.Config{JWTSecret: "test-secret", BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("mockapi: %v", err)
	}
	session := auth.NewSession(mock, repo, fake, logger)
	projects, err := project.New(context.Background(), repo, repo, repo, pipeline, fake, logger,
		project.WithOwnerResolver(OwnerResolver(session.CurrentUserID)))
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	container := collab.New(mock, fake, logger, collab.WithNotifier(hub))
	t.Cleanup(container.EndCollaborationSession)

	router := NewRouter(logger, fake, Services{
		Session:   session,
		Projects:  projects,
		Mock:      mock,
		Collab:    container,
		Assistant: assistant.New(fake, 0),
		Hub:       hub,
	}, cfg.limiter, cfg.storeHealth)
	t.Cleanup(router.Close)
	return testServer{router: router, clock: fake, hub: hub}
}

func (s testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s testServer) signIn(t *testing.T) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auth/demo", "", map[string]string{"role": domain.RoleAdmin})
	if rec.Code != http.StatusOK {
		t.Fatalf("demo login status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		User  domain.User `json:"user"`
		Token string      `json:"token"`
	}
	decode(t, rec, &resp)
	if resp.Token == "" || resp.User.ID != "admin-1" {
		t.Fatalf("unexpected sign in response %+v", resp)
	}
	return resp.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func (s testServer) createProject(t *testing.T, token, name string) domain.Project {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/projects", token, map[string]string{"name": name, "description": "demo"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create project status %d: %s", rec.Code, rec.Body.String())
	}
	var p domain.Project
	decode(t, rec, &p)
	return p
}

func TestProtectedRoutesRequireBearerToken(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/projects", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	rec = srv.do(t, http.MethodGet, "/projects", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token, got %d", rec.Code)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "admin@example.com", "password": "nope"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["error"] != auth.MessageInvalidCredentials {
		t.Fatalf("unexpected error message %q", body["error"])
	}

	rec = srv.do(t, http.MethodGet, "/auth/session", "", nil)
	var state sessionResponse
	decode(t, rec, &state)
	if state.Authenticated || state.Error != auth.MessageInvalidCredentials {
		t.Fatalf("unexpected session state %+v", state)
	}
}

func TestLoginWithPasswordIssuesUsableToken(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "user@example.com", "password": mockapi.DemoPassword})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	decode(t, rec, &resp)
	if resp.Token != mockapi.TokenUser {
		t.Fatalf("unexpected token %q", resp.Token)
	}
	if rec := srv.do(t, http.MethodGet, "/projects", resp.Token, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected token to authorize, got %d", rec.Code)
	}

	if rec := srv.do(t, http.MethodPost, "/auth/logout", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous logout must be rejected, got %d", rec.Code)
	}
	rec = srv.do(t, http.MethodGet, "/auth/session", "", nil)
	var before sessionResponse
	decode(t, rec, &before)
	if !before.Authenticated {
		t.Fatal("anonymous logout cleared the session")
	}

	if rec := srv.do(t, http.MethodPost, "/auth/logout", resp.Token, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("logout status %d", rec.Code)
	}
	rec = srv.do(t, http.MethodGet, "/auth/session", "", nil)
	var state sessionResponse
	decode(t, rec, &state)
	if state.Authenticated {
		t.Fatal("expected session cleared after logout")
	}
}

func TestCreateProjectOwnedByBearer(t *testing.T) {
	srv := newTestServer(t)
	adminToken := srv.signIn(t)

	mine := srv.createProject(t, mockapi.TokenUser, "User Site")
	if mine.OwnerID != "user-1" {
		t.Fatalf("expected project owned by the bearer, got %q", mine.OwnerID)
	}
	theirs := srv.createProject(t, adminToken, "Admin Site")
	if theirs.OwnerID != "admin-1" {
		t.Fatalf("expected admin owner, got %q", theirs.OwnerID)
	}

	if rec := srv.do(t, http.MethodPost, "/auth/logout", adminToken, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("logout status %d", rec.Code)
	}
	after := srv.createProject(t, mockapi.TokenUser, "After Logout")
	if after.OwnerID != "user-1" {
		t.Fatalf("expected bearer owner after logout, got %q", after.OwnerID)
	}
}

func TestProjectLifecycle(t *testing.T) {
	srv := newTestServer(t)
	token := srv.signIn(t)

	p := srv.createProject(t, token, "My Portfolio")
	if p.OwnerID != "admin-1" || p.Status != domain.ProjectStatusDraft {
		t.Fatalf("unexpected project %+v", p)
	}

	rec := srv.do(t, http.MethodGet, "/projects", token, nil)
	var list []domain.Project
	decode(t, rec, &list)
	if len(list) != 1 || list[0].ID != p.ID {
		t.Fatalf("unexpected list %+v", list)
	}

	rec = srv.do(t, http.MethodPatch, "/projects/"+p.ID, token, map[string]string{"name": "Renamed", "status": domain.ProjectStatusActive})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status %d: %s", rec.Code, rec.Body.String())
	}
	var updated domain.Project
	decode(t, rec, &updated)
	if updated.Name != "Renamed" || !updated.UpdatedAt.After(p.UpdatedAt) {
		t.Fatalf("unexpected update %+v", updated)
	}

	rec = srv.do(t, http.MethodPatch, "/projects/"+p.ID, token, map[string]string{"status": "archived-forever"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad status, got %d", rec.Code)
	}

	rec = srv.do(t, http.MethodPost, "/projects/"+p.ID+"/files", token, map[string]string{"name": "index.html", "content": "<h1>hi</h1>"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create file status %d: %s", rec.Code, rec.Body.String())
	}
	var f domain.ProjectFile
	decode(t, rec, &f)
	if f.Type != domain.FileTypeHTML || f.Path != "/index.html" || f.Size != 11 {
		t.Fatalf("unexpected file %+v", f)
	}

	rec = srv.do(t, http.MethodPatch, "/files/"+f.ID, token, map[string]string{"content": "<p>x</p>"})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch file status %d", rec.Code)
	}
	decode(t, rec, &f)
	if f.Size != 8 {
		t.Fatalf("expected size recomputed, got %d", f.Size)
	}

	if rec := srv.do(t, http.MethodDelete, "/projects/"+p.ID, token, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status %d", rec.Code)
	}
	if rec := srv.do(t, http.MethodGet, "/projects/"+p.ID, token, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
	if rec := srv.do(t, http.MethodGet, "/files/"+f.ID, token, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected file cascade delete, got %d", rec.Code)
	}
}

func TestUploadFile(t *testing.T) {
	srv := newTestServer(t)
	token := srv.signIn(t)
	p := srv.createProject(t, token, "Uploads")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "styles.css")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = part.Write([]byte("body { color: red; }"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/projects/"+p.ID+"/files/upload", &body)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status %d: %s", rec.Code, rec.Body.String())
	}
	var f domain.ProjectFile
	decode(t, rec, &f)
	if f.Name != "styles.css" || f.Type != domain.FileTypeCSS {
		t.Fatalf("unexpected file %+v", f)
	}
}

func TestDeploymentProgressesWithClock(t *testing.T) {
	srv := newTestServer(t)
	token := srv.signIn(t)
	p := srv.createProject(t, token, "Shop")

	rec := srv.do(t, http.MethodPost, "/projects/"+p.ID+"/deployments", token, map[string]string{"environment": domain.EnvironmentStaging})
	if rec.Code != http.StatusCreated {
		t.Fatalf("deploy status %d: %s", rec.Code, rec.Body.String())
	}
	var d domain.Deployment
	decode(t, rec, &d)
	if d.Status != domain.DeploymentStatusPending {
		t.Fatalf("expected pending, got %s", d.Status)
	}

	srv.clock.Advance(2 * time.Second)
	rec = srv.do(t, http.MethodGet, "/deployments/"+d.ID, token, nil)
	decode(t, rec, &d)
	if d.Status != domain.DeploymentStatusInProgress {
		t.Fatalf("expected in_progress, got %s", d.Status)
	}

	srv.clock.Advance(3 * time.Second)
	rec = srv.do(t, http.MethodGet, "/projects/"+p.ID+"/deployments", token, nil)
	var list []domain.Deployment
	decode(t, rec, &list)
	if len(list) != 1 || list[0].Status != domain.DeploymentStatusSuccess || list[0].CompletedAt == nil {
		t.Fatalf("unexpected deployments %+v", list)
	}

	rec = srv.do(t, http.MethodGet, "/projects/"+p.ID, token, nil)
	decode(t, rec, &p)
	if p.DeploymentURL != list[0].URL {
		t.Fatalf("expected project url %q, got %q", list[0].URL, p.DeploymentURL)
	}

	rec = srv.do(t, http.MethodPost, "/projects/missing/deployments", token, map[string]string{"environment": domain.EnvironmentProduction})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown project, got %d", rec.Code)
	}
	rec = srv.do(t, http.MethodPost, "/projects/"+p.ID+"/deployments", token, map[string]string{"environment": "qa"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown environment, got %d", rec.Code)
	}
}

func TestExportDownload(t *testing.T) {
	srv := newTestServer(t)
	token := srv.signIn(t)
	p := srv.createProject(t, token, "My Portfolio")

	rec := srv.do(t, http.MethodGet, "/projects/"+p.ID+"/export", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export status %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="my-portfolio-export.json"` {
		t.Fatalf("unexpected disposition %q", got)
	}
	var doc struct {
		Project struct {
			Name string `json:"name"`
		} `json:"project"`
		Files []any `json:"files"`
	}
	decode(t, rec, &doc)
	if doc.Project.Name != "My Portfolio" || len(doc.Files) != 0 {
		t.Fatalf("unexpected export %+v", doc)
	}

	rec = srv.do(t, http.MethodGet, "/projects/"+p.ID+"/export?format=tar", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown format, got %d", rec.Code)
	}
}

func TestCollaborationRoutes(t *testing.T) {
	srv := newTestServer(t)
	token := srv.signIn(t)
	p := srv.createProject(t, token, "Team")

	rec := srv.do(t, http.MethodPost, "/projects/"+p.ID+"/collaboration", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("start status %d: %s", rec.Code, rec.Body.String())
	}
	var state collab.State
	decode(t, rec, &state)
	if !state.Active || len(state.Collaborators) != 2 {
		t.Fatalf("unexpected state %+v", state)
	}

	rec = srv.do(t, http.MethodPost, "/projects/"+p.ID+"/collaborators", token, map[string]string{"email": "jane@example.com"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status %d: %s", rec.Code, rec.Body.String())
	}
	var added domain.User
	decode(t, rec, &added)

	rec = srv.do(t, http.MethodDelete, "/projects/"+p.ID+"/collaborators/"+added.ID, token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("remove status %d", rec.Code)
	}

	rec = srv.do(t, http.MethodGet, "/projects/"+p.ID+"/collaboration", token, nil)
	decode(t, rec, &state)
	if len(state.Collaborators) != 2 {
		t.Fatalf("expected 2 collaborators, got %+v", state.Collaborators)
	}

	if rec := srv.do(t, http.MethodDelete, "/projects/"+p.ID+"/collaboration", token, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("end status %d", rec.Code)
	}
	rec = srv.do(t, http.MethodGet, "/projects/"+p.ID+"/collaboration", token, nil)
	decode(t, rec, &state)
	if state.Active {
		t.Fatal("expected session ended")
	}
}

func TestAssistantReply(t *testing.T) {
	srv := newTestServer(t)
	token := srv.signIn(t)

	rec := srv.do(t, http.MethodPost, "/assistant", token, map[string]string{"message": "   "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty prompt, got %d", rec.Code)
	}
	rec = srv.do(t, http.MethodPost, "/assistant", token, map[string]string{"message": "help me build a landing page"})
	if rec.Code != http.StatusOK {
		t.Fatalf("reply status %d: %s", rec.Code, rec.Body.String())
	}
	var msg domain.ChatMessage
	decode(t, rec, &msg)
	if msg.Sender != domain.SenderAssistant || msg.Content == "" {
		t.Fatalf("unexpected reply %+v", msg)
	}
}

func TestMockRoutesMirrorBackend(t *testing.T) {
	srv := newTestServer(t)
	token := srv.signIn(t)

	rec := srv.do(t, http.MethodPost, "/mock/projects", token, map[string]string{"name": "Direct"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("mock create status %d: %s", rec.Code, rec.Body.String())
	}
	var p domain.Project
	decode(t, rec, &p)
	if p.OwnerID != "admin-1" {
		t.Fatalf("expected owner from auth context, got %q", p.OwnerID)
	}

	if rec := srv.do(t, http.MethodGet, "/mock/projects/"+p.ID, token, nil); rec.Code != http.StatusOK {
		t.Fatalf("mock get status %d", rec.Code)
	}
	if rec := srv.do(t, http.MethodGet, "/mock/projects/nope", token, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := srv.do(t, http.MethodPatch, "/mock/projects/nope", token, map[string]string{"name": "x"}); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for mock update, got %d", rec.Code)
	}
	rec = srv.do(t, http.MethodGet, "/mock/projects/"+p.ID+"/online", token, nil)
	var online []domain.User
	decode(t, rec, &online)
	if len(online) != 1 {
		t.Fatalf("expected one online user, got %+v", online)
	}
}

func TestHealthzReportsStore(t *testing.T) {
	srv := newTestServer(t, withStoreHealth(func(context.Context) error { return errors.New("disk gone") }))

	rec := srv.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var body struct {
		Status     string                    `json:"status"`
		Components map[string]map[string]any `json:"components"`
	}
	decode(t, rec, &body)
	if body.Status != "degraded" || body.Components["store"]["status"] != "down" {
		t.Fatalf("unexpected health %+v", body)
	}
}

func TestLoginRoutesAreRateLimited(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < rateLimitLogin; i++ {
		rec := srv.do(t, http.MethodPost, "/auth/demo", "", map[string]string{"role": domain.RoleUser})
		if rec.Code != http.StatusOK {
			t.Fatalf("attempt %d: status %d", i, rec.Code)
		}
	}
	rec := srv.do(t, http.MethodPost, "/auth/demo", "", map[string]string{"role": domain.RoleUser})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("unexpected remaining header %q", rec.Header().Get("X-RateLimit-Remaining"))
	}

	srv.clock.Advance(rateWindowDefault + time.Second)
	if rec := srv.do(t, http.MethodPost, "/auth/demo", "", map[string]string{"role": domain.RoleUser}); rec.Code != http.StatusOK {
		t.Fatalf("expected window reset, got %d", rec.Code)
	}
}

func TestDeploymentWebsocketStream(t *testing.T) {
	srv := newTestServer(t)
	token := srv.signIn(t)
	p := srv.createProject(t, token, "Live")

	server := httptest.NewServer(srv.router)
	defer server.Close()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/deployments?project_id=" + p.ID
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	topic := ws.DeploymentTopic(p.ID)
	deadline := time.Now().Add(2 * time.Second)
	for srv.hub.Subscribers(topic) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("websocket never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec := srv.do(t, http.MethodPost, "/projects/"+p.ID+"/deployments", token, map[string]string{"environment": domain.EnvironmentProduction})
	if rec.Code != http.StatusCreated {
		t.Fatalf("deploy status %d", rec.Code)
	}
	srv.clock.Advance(2 * time.Second)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var evt struct {
		Type string            `json:"type"`
		Data domain.Deployment `json:"data"`
	}
	if err := json.Unmarshal(payload, &evt); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if evt.Type != ws.EventDeployment || evt.Data.ProjectID != p.ID {
		t.Fatalf("unexpected event %+v", evt)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]bool{
		"Bearer abc":     true,
		"bearer abc":     true,
		"":               false,
		"Basic abc":      false,
		"Bearer":         false,
		"Bearer a b":     false,
		"  Bearer  abc ": true,
	}
	for header, ok := range cases {
		_, err := bearerToken(header)
		if (err == nil) != ok {
			t.Fatalf("bearerToken(%q) err=%v, want ok=%v", header, err, ok)
		}
	}
}

func TestStatusForMapsServiceErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{project.ErrInvalidName, http.StatusBadRequest},
		{project.ErrContentTooLarge, http.StatusRequestEntityTooLarge},
		{mockapi.ErrInvalidCredentials, http.StatusUnauthorized},
		{deploy.ErrInvalidTransition, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
