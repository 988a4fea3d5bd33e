package filestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Fallenproud/create.xyzdashboard/internal/storage"
)

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "studio.json")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Set(ctx, "projects", []byte(`[{"id":"p1"}]`)); err != nil {
		t.Fatalf("set projects: %v", err)
	}
	if err := s.Set(ctx, "auth_token", []byte("simulated-jwt-token-admin")); err != nil {
		t.Fatalf("set token: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.Get(ctx, "projects")
	if err != nil {
		t.Fatalf("get projects: %v", err)
	}
	if string(got) != `[{"id":"p1"}]` {
		t.Fatalf("unexpected projects value %s", got)
	}
	token, err := reopened.Get(ctx, "auth_token")
	if err != nil {
		t.Fatalf("get token: %v", err)
	}
	if string(token) != "simulated-jwt-token-admin" {
		t.Fatalf("unexpected token %q", token)
	}

	if err := reopened.Delete(ctx, "auth_token"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := reopened.Get(ctx, "auth_token"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestStoreReturnsExactBytes(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "studio.json")

	values := map[string]string{
		"html":     `[{"content":"<div>&amp;</div>"}]`,
		"indented": "[\n  {\"id\": \"p1\"}\n]",
		"padded":   ` {"id":"p1"} `,
		"quoted":   `"already a string"`,
		"plain":    "not json at all",
	}
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for key, value := range values {
		if err := s.Set(ctx, key, []byte(value)); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	for key, want := range values {
		got, err := reopened.Get(ctx, key)
		if err != nil {
			t.Fatalf("get %s: %v", key, err)
		}
		if string(got) != want {
			t.Fatalf("%s: expected %q, got %q", key, want, got)
		}
	}
}

func TestOpenRejectsCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studio.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Open(path); err == nil {
		t.Fatalf("expected error for corrupt document")
	}
}
