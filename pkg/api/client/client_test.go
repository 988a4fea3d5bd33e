package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Fallenproud/create.xyzdashboard/internal/domain"
)

func TestNewNormalisesBaseURL(t *testing.T) {
	c, err := New("localhost:4000/")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if c.baseURL != "http://localhost:4000" {
		t.Fatalf("unexpected base url %q", c.baseURL)
	}
	c, _ = New("")
	if c.baseURL != DefaultBaseURL {
		t.Fatalf("expected default base url, got %q", c.baseURL)
	}
}

func TestRequestsCarryBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"authentication required"}`)
			return
		}
		_ = json.NewEncoder(w).Encode([]domain.Project{{ID: "p1", Name: "Site"}})
	}))
	defer srv.Close()

	c, _ := New(srv.URL, WithToken("tok"))
	projects, err := c.ListProjects(context.Background())
	if err != nil || len(projects) != 1 || projects[0].ID != "p1" {
		t.Fatalf("list = %+v, %v", projects, err)
	}

	anon, _ := New(srv.URL)
	_, err = anon.ListProjects(context.Background())
	var apiErr APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized || apiErr.Message != "authentication required" {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestUploadFileSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/projects/p1/files/upload" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		content, _ := io.ReadAll(file)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(domain.ProjectFile{ID: "f1", Name: header.Filename, Content: string(content)})
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	f, err := c.UploadFile(context.Background(), "p1", "app.js", strings.NewReader("console.log(1)"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if f.Name != "app.js" || f.Content != "console.log(1)" {
		t.Fatalf("unexpected file %+v", f)
	}
}

func TestWaitForDeploymentStopsAtTerminalStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := domain.DeploymentStatusPending
		switch n := calls.Add(1); {
		case n == 2:
			status = domain.DeploymentStatusInProgress
		case n >= 3:
			status = domain.DeploymentStatusSuccess
		}
		_ = json.NewEncoder(w).Encode(domain.Deployment{ID: "d1", Status: status})
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	var seen []string
	d, err := c.WaitForDeployment(context.Background(), "d1", time.Millisecond, func(d domain.Deployment) {
		seen = append(seen, d.Status)
	})
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if d.Status != domain.DeploymentStatusSuccess || len(seen) != 3 {
		t.Fatalf("unexpected result %s, transitions %v", d.Status, seen)
	}
}

func TestExportProjectUsesServerFilename(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("format") != "zip" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Disposition", `attachment; filename="my-site-export.zip"`)
		_, _ = w.Write([]byte("PK"))
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	export, err := c.ExportProject(context.Background(), "p1", "zip")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if export.Filename != "my-site-export.zip" || string(export.Data) != "PK" {
		t.Fatalf("unexpected export %+v", export)
	}
}
