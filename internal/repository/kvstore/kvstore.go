// Package kvstore maps the persisted collections onto a storage.Store using
// the browser-compatible key layout.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Fallenproud/create.xyzdashboard/internal/domain"
	"github.com/Fallenproud/create.xyzdashboard/internal/repository"
	"github.com/Fallenproud/create.xyzdashboard/internal/storage"
)

// Storage keys.
const (
	KeyProjects    = "projects"
	KeyFiles       = "projectFiles"
	KeyDeployments = "deployments"
	KeyUser        = "user"
	KeyAuthToken   = "auth_token"
)

// Repository implements the collection and session repositories over a storage.Store.
type Repository struct {
	store storage.Store
	log   *slog.Logger
	mu    sync.Mutex
}

var (
	_ repository.ProjectRepository    = (*Repository)(nil)
	_ repository.FileRepository       = (*Repository)(nil)
	_ repository.DeploymentRepository = (*Repository)(nil)
	_ repository.SessionRepository    = (*Repository)(nil)
)

// New constructs a Repository.
func New(store storage.Store, log *slog.Logger) *Repository {
	if log == nil {
		log = slog.Default()
	}
	return &Repository{store: store, log: log.With("component", "kvstore")}
}

func (r *Repository) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return loadCollection[domain.Project](ctx, r, KeyProjects)
}

func (r *Repository) ReplaceProjects(ctx context.Context, projects []domain.Project) error {
	return saveCollection(ctx, r, KeyProjects, projects)
}

func (r *Repository) UpdateProjects(ctx context.Context, fn func([]domain.Project) ([]domain.Project, error)) error {
	return updateCollection(ctx, r, KeyProjects, fn)
}

func (r *Repository) ListFiles(ctx context.Context) ([]domain.ProjectFile, error) {
	return loadCollection[domain.ProjectFile](ctx, r, KeyFiles)
}

func (r *Repository) ReplaceFiles(ctx context.Context, files []domain.ProjectFile) error {
	return saveCollection(ctx, r, KeyFiles, files)
}

func (r *Repository) UpdateFiles(ctx context.Context, fn func([]domain.ProjectFile) ([]domain.ProjectFile, error)) error {
	return updateCollection(ctx, r, KeyFiles, fn)
}

func (r *Repository) ListDeployments(ctx context.Context) ([]domain.Deployment, error) {
	return loadCollection[domain.Deployment](ctx, r, KeyDeployments)
}

func (r *Repository) ReplaceDeployments(ctx context.Context, deployments []domain.Deployment) error {
	return saveCollection(ctx, r, KeyDeployments, deployments)
}

func (r *Repository) UpdateDeployments(ctx context.Context, fn func([]domain.Deployment) ([]domain.Deployment, error)) error {
	return updateCollection(ctx, r, KeyDeployments, fn)
}

// LoadUser returns repository.ErrNotFound when no session blob is stored or it cannot be parsed.
func (r *Repository) LoadUser(ctx context.Context) (*domain.User, error) {
	raw, err := r.store.Get(ctx, KeyUser)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", KeyUser, err)
	}
	var user domain.User
	if err := json.Unmarshal(raw, &user); err != nil {
		r.log.Warn("discarding malformed session blob", "key", KeyUser, "error", err)
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (r *Repository) SaveUser(ctx context.Context, user domain.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode %s: %w", KeyUser, err)
	}
	if err := r.store.Set(ctx, KeyUser, raw); err != nil {
		return fmt.Errorf("save %s: %w", KeyUser, err)
	}
	return nil
}

func (r *Repository) ClearUser(ctx context.Context) error {
	return r.store.Delete(ctx, KeyUser)
}

// LoadToken returns repository.ErrNotFound when no token is stored.
func (r *Repository) LoadToken(ctx context.Context) (string, error) {
	raw, err := r.store.Get(ctx, KeyAuthToken)
	if errors.Is(err, storage.ErrNotFound) {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load %s: %w", KeyAuthToken, err)
	}
	if len(raw) == 0 {
		return "", repository.ErrNotFound
	}
	return string(raw), nil
}

func (r *Repository) SaveToken(ctx context.Context, token string) error {
	if err := r.store.Set(ctx, KeyAuthToken, []byte(token)); err != nil {
		return fmt.Errorf("save %s: %w", KeyAuthToken, err)
	}
	return nil
}

func (r *Repository) ClearToken(ctx context.Context) error {
	return r.store.Delete(ctx, KeyAuthToken)
}

// loadCollection decodes the collection at key. Missing keys and malformed
// documents both yield an empty collection; the latter is logged.
func loadCollection[T any](ctx context.Context, r *Repository, key string) ([]T, error) {
	raw, err := r.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		r.log.Warn("discarding malformed collection", "key", key, "error", err)
		return []T{}, nil
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func saveCollection[T any](ctx context.Context, r *Repository, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.store.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func updateCollection[T any](ctx context.Context, r *Repository, key string, fn func([]T) ([]T, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	items, err := loadCollection[T](ctx, r, key)
	if err != nil {
		return err
	}
	next, err := fn(items)
	if err != nil {
		return err
	}
	return saveCollection(ctx, r, key, next)
}
