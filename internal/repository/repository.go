package repository

import (
	"context"

	"github.com/Fallenproud/create.xyzdashboard/internal/domain"
)

// ProjectRepository persists the project collection as a whole.
type ProjectRepository interface {
	ListProjects(ctx context.Context) ([]domain.Project, error)
	ReplaceProjects(ctx context.Context, projects []domain.Project) error
	// UpdateProjects runs fn over the stored collection and persists its result
	// without interleaving with other updates issued through the same repository.
	UpdateProjects(ctx context.Context, fn func([]domain.Project) ([]domain.Project, error)) error
}

// FileRepository persists the file collection as a whole.
type FileRepository interface {
	ListFiles(ctx context.Context) ([]domain.ProjectFile, error)
	ReplaceFiles(ctx context.Context, files []domain.ProjectFile) error
	UpdateFiles(ctx context.Context, fn func([]domain.ProjectFile) ([]domain.ProjectFile, error)) error
}

// DeploymentRepository persists the deployment collection as a whole.
type DeploymentRepository interface {
	ListDeployments(ctx context.Context) ([]domain.Deployment, error)
	ReplaceDeployments(ctx context.Context, deployments []domain.Deployment) error
	UpdateDeployments(ctx context.Context, fn func([]domain.Deployment) ([]domain.Deployment, error)) error
}

// SessionRepository stores the signed-in user blob and the raw auth token.
type SessionRepository interface {
	LoadUser(ctx context.Context) (*domain.User, error)
	SaveUser(ctx context.Context, user domain.User) error
	ClearUser(ctx context.Context) error
	LoadToken(ctx context.Context) (string, error)
	SaveToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}
