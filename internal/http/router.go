package httpx

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Fallenproud/create.xyzdashboard/internal/service/assistant"
	"github.com/Fallenproud/create.xyzdashboard/internal/service/auth"
	"github.com/Fallenproud/create.xyzdashboard/internal/service/collab"
	"github.com/Fallenproud/create.xyzdashboard/internal/service/mockapi"
	"github.com/Fallenproud/create.xyzdashboard/internal/service/project"
	"github.com/Fallenproud/create.xyzdashboard/internal/ws"
	"github.com/Fallenproud/create.xyzdashboard/pkg/clock"
)

// Services groups the application components exposed over HTTP.
type Services struct {
	Session   *auth.Session
	Projects  *project.Service
	Mock      *mockapi.Service
	Collab    *collab.Container
	Assistant *assistant.Assistant
	Hub       *ws.Hub
}

// Router wires HTTP endpoints to services.
type Router struct {
	mux         *http.ServeMux
	logger      *slog.Logger
	clock       clock.Clock
	authz       Authorizer
	session     *auth.Session
	projects    *project.Service
	mock        *mockapi.Service
	collab      *collab.Container
	assistant   *assistant.Assistant
	hub         *ws.Hub
	upgrader    websocket.Upgrader
	limiter     RateLimiter
	storeHealth func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
	streamClients      *prometheus.GaugeVec
}

const (
	rateWindowDefault  = time.Minute
	rateWindowRealtime = 30 * time.Second
	rateLimitLogin     = 12
	rateLimitUserWrite = 60
	rateLimitUserRead  = 120
	rateLimitWebsocket = 30
	rateLimitAssistant = 30
	healthCheckTimeout = 2 * time.Second
	sseHeartbeat       = 15 * time.Second
)

// NewRouter assembles routes with dependencies. A nil limiter selects the
// in-memory limiter; a nil storeHealth skips the store component of /healthz.
func NewRouter(logger *slog.Logger, clk clock.Clock, svcs Services, limiter RateLimiter, storeHealth func(context.Context) error) *Router {
	if clk == nil {
		clk = clock.Real()
	}
	r := &Router{
		mux:       http.NewServeMux(),
		logger:    logger,
		clock:     clk,
		authz:     svcs.Session,
		session:   svcs.Session,
		projects:  svcs.Projects,
		mock:      svcs.Mock,
		collab:    svcs.Collab,
		assistant: svcs.Assistant,
		hub:       svcs.Hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:     limiter,
		storeHealth: storeHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter(clk)
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, r.audit(h))
}

func (r *Router) read(route string, h http.HandlerFunc) http.HandlerFunc {
	return r.handlerAuthRate(route, rateLimitUserRead, rateWindowDefault, h)
}

func (r *Router) write(route string, h http.HandlerFunc) http.HandlerFunc {
	return r.handlerAuthRate(route, rateLimitUserWrite, rateWindowDefault, h)
}

func (r *Router) login(route string, h http.HandlerFunc) http.HandlerFunc {
	return r.withRateLimit(route, rateLimitLogin, rateWindowDefault, rateLimitKeyIP, h)
}

func (r *Router) register() {
	r.handle("GET /healthz", r.handleHealthz)
	r.mux.Handle("GET /metrics", promhttp.Handler())

	r.handle("POST /auth/login", r.login("auth_login", r.handleLogin))
	r.handle("POST /auth/demo", r.login("auth_demo", r.handleDemoLogin))
	r.handle("POST /auth/oauth", r.login("auth_oauth", r.handleOAuthLogin))
	r.handle("POST /auth/magic-link", r.login("auth_magic_link", r.handleMagicLinkRequest))
	r.handle("POST /auth/magic-link/verify", r.login("auth_magic_link_verify", r.handleMagicLinkVerify))
	r.handle("POST /auth/logout", r.write("auth_logout", r.handleLogout))
	r.handle("GET /auth/session", r.handleSession)

	r.handle("GET /projects", r.read("projects", r.handleListProjects))
	r.handle("POST /projects", r.write("projects", r.handleCreateProject))
	r.handle("GET /projects/{id}", r.read("project", r.handleGetProject))
	r.handle("PATCH /projects/{id}", r.write("project", r.handleUpdateProject))
	r.handle("DELETE /projects/{id}", r.write("project", r.handleDeleteProject))
	r.handle("GET /projects/{id}/files", r.read("project_files", r.handleListFiles))
	r.handle("POST /projects/{id}/files", r.write("project_files", r.handleCreateFile))
	r.handle("POST /projects/{id}/files/upload", r.write("project_files_upload", r.handleUploadFile))
	r.handle("GET /files/{id}", r.read("file", r.handleGetFile))
	r.handle("PATCH /files/{id}", r.write("file", r.handleUpdateFile))
	r.handle("DELETE /files/{id}", r.write("file", r.handleDeleteFile))
	r.handle("GET /projects/{id}/deployments", r.read("project_deployments", r.handleListDeployments))
	r.handle("POST /projects/{id}/deployments", r.write("project_deployments", r.handleCreateDeployment))
	r.handle("GET /deployments/{id}", r.read("deployment", r.handleGetDeployment))
	r.handle("GET /projects/{id}/export", r.read("project_export", r.handleExport))

	r.handle("GET /projects/{id}/collaboration", r.read("collaboration", r.handleCollaborationState))
	r.handle("POST /projects/{id}/collaboration", r.write("collaboration", r.handleStartCollaboration))
	r.handle("DELETE /projects/{id}/collaboration", r.write("collaboration", r.handleEndCollaboration))
	r.handle("GET /projects/{id}/collaborators", r.read("collaborators", r.handleListCollaborators))
	r.handle("POST /projects/{id}/collaborators", r.write("collaborators", r.handleAddCollaborator))
	r.handle("DELETE /projects/{id}/collaborators/{userID}", r.write("collaborators", r.handleRemoveCollaborator))

	r.handle("GET /assistant", r.read("assistant", r.handleAssistantGreeting))
	r.handle("POST /assistant", r.handlerAuthRate("assistant", rateLimitAssistant, rateWindowDefault, r.handleAssistantReply))

	r.handle("GET /ws/deployments", r.handlerAuthRate("ws_deployments", rateLimitWebsocket, rateWindowRealtime, r.streamWS(ws.DeploymentTopic)))
	r.handle("GET /ws/presence", r.handlerAuthRate("ws_presence", rateLimitWebsocket, rateWindowRealtime, r.streamWS(ws.PresenceTopic)))
	r.handle("GET /events/deployments", r.handlerAuthRate("sse_deployments", rateLimitWebsocket, rateWindowRealtime, r.handleDeploymentEvents))

	r.registerMock()
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	components := make(map[string]any)
	status := "ok"
	if r.storeHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.storeHealth(ctx); err != nil {
			status = "degraded"
			components["store"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["store"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  r.clock.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) audit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		route := req.Pattern
		if route == "" {
			route = req.URL.Path
		}
		r.recordRequestMetrics(req.Method, route, status, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = info.Role
			fields = append(fields, "user_id", info.UserID)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status == 0 {
		sr.status = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		if sr.status == 0 {
			sr.status = http.StatusSwitchingProtocols
		}
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}
