package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Fallenproud/create.xyzdashboard/internal/domain"
)

// DefaultBaseURL is used when no API address is configured.
const DefaultBaseURL = "http://localhost:4000"

// Client provides typed access to the studio API for interactive tools.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithToken authenticates every request with token.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("perform request: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		return nil, APIError{Status: resp.StatusCode, Message: extractError(resp.Body)}
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(body io.Reader) string {
	if body == nil {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return ""
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	return strings.TrimSpace(payload.Error)
}

// LoginResponse captures the signed-in user and bearer token.
type LoginResponse struct {
	User  domain.User `json:"user"`
	Token string      `json:"token"`
}

// Login signs in with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResponse, error) {
	var resp LoginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password}, &resp)
	return resp, err
}

// LoginDemo signs in as the admin or user fixture account.
func (c *Client) LoginDemo(ctx context.Context, role string) (LoginResponse, error) {
	var resp LoginResponse
	err := c.do(ctx, http.MethodPost, "/auth/demo", map[string]string{"role": role}, &resp)
	return resp, err
}

// LoginOAuth signs in through a simulated provider.
func (c *Client) LoginOAuth(ctx context.Context, provider string) (LoginResponse, error) {
	var resp LoginResponse
	err := c.do(ctx, http.MethodPost, "/auth/oauth", map[string]string{"provider": provider}, &resp)
	return resp, err
}

// RequestMagicLink asks the server to issue a sign-in link for email.
func (c *Client) RequestMagicLink(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/magic-link", map[string]string{"email": email}, nil)
}

// VerifyMagicLink exchanges a magic link token for a session.
func (c *Client) VerifyMagicLink(ctx context.Context, token string) (LoginResponse, error) {
	var resp LoginResponse
	err := c.do(ctx, http.MethodPost, "/auth/magic-link/verify", map[string]string{"token": token}, &resp)
	return resp, err
}

// Logout ends the server session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// Session describes the server's current sign-in state.
type Session struct {
	Authenticated bool         `json:"authenticated"`
	User          *domain.User `json:"user,omitempty"`
	Error         string       `json:"error,omitempty"`
}

// Session returns the server's current sign-in state.
func (c *Client) Session(ctx context.Context) (Session, error) {
	var s Session
	err := c.do(ctx, http.MethodGet, "/auth/session", nil, &s)
	return s, err
}

// ListProjects returns every project.
func (c *Client) ListProjects(ctx context.Context) ([]domain.Project, error) {
	var projects []domain.Project
	err := c.do(ctx, http.MethodGet, "/projects", nil, &projects)
	return projects, err
}

// GetProject fetches a project by ID.
func (c *Client) GetProject(ctx context.Context, projectID string) (domain.Project, error) {
	var p domain.Project
	err := c.do(ctx, http.MethodGet, "/projects/"+url.PathEscape(projectID), nil, &p)
	return p, err
}

// CreateProject creates a draft project.
func (c *Client) CreateProject(ctx context.Context, name, description string) (domain.Project, error) {
	var p domain.Project
	err := c.do(ctx, http.MethodPost, "/projects", map[string]string{"name": name, "description": description}, &p)
	return p, err
}

// DeleteProject removes a project with its files and deployments.
func (c *Client) DeleteProject(ctx context.Context, projectID string) error {
	return c.do(ctx, http.MethodDelete, "/projects/"+url.PathEscape(projectID), nil, nil)
}

// ListFiles returns the files of a project.
func (c *Client) ListFiles(ctx context.Context, projectID string) ([]domain.ProjectFile, error) {
	var files []domain.ProjectFile
	err := c.do(ctx, http.MethodGet, "/projects/"+url.PathEscape(projectID)+"/files", nil, &files)
	return files, err
}

// UploadFile sends content as a multipart upload named name.
func (c *Client) UploadFile(ctx context.Context, projectID, name string, content io.Reader) (domain.ProjectFile, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return domain.ProjectFile{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return domain.ProjectFile{}, fmt.Errorf("copy upload: %w", err)
	}
	if err := mw.WriteField("name", name); err != nil {
		return domain.ProjectFile{}, fmt.Errorf("write name field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return domain.ProjectFile{}, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/projects/"+url.PathEscape(projectID)+"/files/upload", &body)
	if err != nil {
		return domain.ProjectFile{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.send(req)
	if err != nil {
		return domain.ProjectFile{}, err
	}
	defer resp.Body.Close()

	var f domain.ProjectFile
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		return domain.ProjectFile{}, fmt.Errorf("decode response: %w", err)
	}
	return f, nil
}

// CreateDeployment starts a simulated deployment of the project.
func (c *Client) CreateDeployment(ctx context.Context, projectID, environment string) (domain.Deployment, error) {
	var d domain.Deployment
	err := c.do(ctx, http.MethodPost, "/projects/"+url.PathEscape(projectID)+"/deployments", map[string]string{"environment": environment}, &d)
	return d, err
}

// GetDeployment fetches a deployment by ID.
func (c *Client) GetDeployment(ctx context.Context, deploymentID string) (domain.Deployment, error) {
	var d domain.Deployment
	err := c.do(ctx, http.MethodGet, "/deployments/"+url.PathEscape(deploymentID), nil, &d)
	return d, err
}

// ListDeployments returns the deployments of a project.
func (c *Client) ListDeployments(ctx context.Context, projectID string) ([]domain.Deployment, error) {
	var deployments []domain.Deployment
	err := c.do(ctx, http.MethodGet, "/projects/"+url.PathEscape(projectID)+"/deployments", nil, &deployments)
	return deployments, err
}

// WaitForDeployment polls until the deployment reaches a terminal status or ctx ends.
func (c *Client) WaitForDeployment(ctx context.Context, deploymentID string, every time.Duration, onChange func(domain.Deployment)) (domain.Deployment, error) {
	if every <= 0 {
		every = time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	last := ""
	for {
		d, err := c.GetDeployment(ctx, deploymentID)
		if err != nil {
			return domain.Deployment{}, err
		}
		if d.Status != last && onChange != nil {
			onChange(d)
		}
		last = d.Status
		if d.Terminal() {
			return d, nil
		}
		select {
		case <-ctx.Done():
			return d, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Export is a downloaded project archive.
type Export struct {
	Filename string
	Data     []byte
}

// ExportProject downloads the project in format ("json" or "zip").
func (c *Client) ExportProject(ctx context.Context, projectID, format string) (Export, error) {
	path := "/projects/" + url.PathEscape(projectID) + "/export"
	if format != "" {
		path += "?format=" + url.QueryEscape(format)
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return Export{}, err
	}
	resp, err := c.send(req)
	if err != nil {
		return Export{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Export{}, fmt.Errorf("read export: %w", err)
	}
	name := projectID + "-export." + format
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = params["filename"]
	}
	return Export{Filename: name, Data: data}, nil
}
