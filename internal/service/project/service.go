package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Fallenproud/create.xyzdashboard/internal/domain"
	"github.com/Fallenproud/create.xyzdashboard/internal/repository"
	"github.com/Fallenproud/create.xyzdashboard/internal/service/deploy"
	"github.com/Fallenproud/create.xyzdashboard/pkg/clock"
)

// Validation errors returned by the container.
var (
	ErrInvalidName        = errors.New("name is required")
	ErrInvalidStatus      = errors.New("status must be draft, active or archived")
	ErrInvalidFileType    = errors.New("unsupported file type")
	ErrInvalidEnvironment = errors.New("environment must be development, staging or production")
	ErrInvalidFormat      = errors.New("export format must be json or zip")
	ErrBinaryContent      = errors.New("file content must be UTF-8 text")
	ErrContentTooLarge    = errors.New("file content too large")
)

// IsValidation reports whether err was caused by invalid input.
func IsValidation(err error) bool {
	for _, target := range []error{ErrInvalidName, ErrInvalidStatus, ErrInvalidFileType, ErrInvalidEnvironment, ErrInvalidFormat, ErrBinaryContent, ErrContentTooLarge} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Service is the in-process owner of the project, file and deployment
// collections. Collections are loaded once and the affected collection is
// written back after every mutation.
type Service struct {
	mu          sync.RWMutex
	projects    []domain.Project
	files       []domain.ProjectFile
	deployments []domain.Deployment

	projectRepo    repository.ProjectRepository
	fileRepo       repository.FileRepository
	deploymentRepo repository.DeploymentRepository
	pipeline       *deploy.Pipeline
	clock          clock.Clock
	logger         *slog.Logger
	owner          func(context.Context) string
	newID          func() string
}

// Option customises the Service.
type Option func(*Service)

// WithOwnerResolver supplies the acting user ID for new projects from the
// request context. An empty result falls back to domain.PlaceholderOwnerID.
func WithOwnerResolver(fn func(context.Context) string) Option {
	return func(s *Service) { s.owner = fn }
}

// WithIDGenerator overrides ID generation for projects and files.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// New loads the persisted collections and returns a ready container.
func New(ctx context.Context, projects repository.ProjectRepository, files repository.FileRepository, deployments repository.DeploymentRepository, pipeline *deploy.Pipeline, clk clock.Clock, logger *slog.Logger, opts ...Option) (*Service, error) {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		projectRepo:    projects,
		fileRepo:       files,
		deploymentRepo: deployments,
		pipeline:       pipeline,
		clock:          clk,
		logger:         logger.With("component", "project_store"),
		owner:          func(context.Context) string { return "" },
		newID:          uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	if s.projects, err = projects.ListProjects(ctx); err != nil {
		return nil, fmt.Errorf("load projects: %w", err)
	}
	if s.files, err = files.ListFiles(ctx); err != nil {
		return nil, fmt.Errorf("load files: %w", err)
	}
	if s.deployments, err = deployments.ListDeployments(ctx); err != nil {
		return nil, fmt.Errorf("load deployments: %w", err)
	}
	s.logger.Info("collections loaded", "projects", len(s.projects), "files", len(s.files), "deployments", len(s.deployments))
	return s, nil
}

// CreateProject adds a draft project owned by the current user.
func (s *Service) CreateProject(ctx context.Context, name, description string) (domain.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Project{}, ErrInvalidName
	}
	owner := s.owner(ctx)
	if owner == "" {
		owner = domain.PlaceholderOwnerID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().UTC()
	project := domain.Project{
		ID:          s.newID(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
		Status:      domain.ProjectStatusDraft,
		OwnerID:     owner,
	}
	s.projects = append(s.projects, project)
	if err := s.persistProjectsLocked(ctx); err != nil {
		return project, err
	}
	s.logger.Info("project created", "project_id", project.ID)
	return project, nil
}

// UpdateProject merges update into the project and bumps its updatedAt.
// Unknown IDs are ignored.
func (s *Service) UpdateProject(ctx context.Context, id string, update domain.ProjectUpdate) error {
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return ErrInvalidName
	}
	if update.Status != nil && !domain.ValidProjectStatus(*update.Status) {
		return ErrInvalidStatus
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.projectIndexLocked(id)
	if idx < 0 {
		return nil
	}
	p := &s.projects[idx]
	update.Apply(p)
	p.UpdatedAt = s.stamp(p.UpdatedAt)
	return s.persistProjectsLocked(ctx)
}

// DeleteProject removes the project along with its files and deployments.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.projectIndexLocked(id)
	if idx >= 0 {
		s.projects = append(s.projects[:idx], s.projects[idx+1:]...)
		if err := s.persistProjectsLocked(ctx); err != nil {
			return err
		}
	}

	files := s.files[:0:0]
	for _, f := range s.files {
		if f.ProjectID != id {
			files = append(files, f)
		}
	}
	if len(files) != len(s.files) {
		s.files = files
		if err := s.persistFilesLocked(ctx); err != nil {
			return err
		}
	}

	deployments := s.deployments[:0:0]
	for _, d := range s.deployments {
		if d.ProjectID != id {
			deployments = append(deployments, d)
		}
	}
	if len(deployments) != len(s.deployments) {
		s.deployments = deployments
		if err := s.persistDeploymentsLocked(ctx); err != nil {
			return err
		}
	}
	if idx >= 0 {
		s.logger.Info("project deleted", "project_id", id)
	}
	return nil
}

// GetProjectByID returns the project with id.
func (s *Service) GetProjectByID(id string) (domain.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.projectIndexLocked(id)
	if idx < 0 {
		return domain.Project{}, false
	}
	return s.projects[idx], true
}

// ListProjects returns every project in insertion order.
func (s *Service) ListProjects() []domain.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Project(nil), s.projects...)
}

func (s *Service) projectIndexLocked(id string) int {
	for i := range s.projects {
		if s.projects[i].ID == id {
			return i
		}
	}
	return -1
}

// bumpProjectLocked refreshes updatedAt on the owning project. It reports
// whether the project exists.
func (s *Service) bumpProjectLocked(projectID string) bool {
	idx := s.projectIndexLocked(projectID)
	if idx < 0 {
		return false
	}
	s.projects[idx].UpdatedAt = s.stamp(s.projects[idx].UpdatedAt)
	return true
}

// stamp returns the current time, nudged past prev so successive mutations
// always produce strictly increasing timestamps.
func (s *Service) stamp(prev time.Time) time.Time {
	return domain.Touch(prev, s.clock.Now().UTC())
}

func (s *Service) persistProjectsLocked(ctx context.Context) error {
	if err := s.projectRepo.ReplaceProjects(ctx, append([]domain.Project(nil), s.projects...)); err != nil {
		s.logger.Error("failed to persist projects", "error", err)
		return fmt.Errorf("persist projects: %w", err)
	}
	return nil
}

func (s *Service) persistFilesLocked(ctx context.Context) error {
	if err := s.fileRepo.ReplaceFiles(ctx, append([]domain.ProjectFile(nil), s.files...)); err != nil {
		s.logger.Error("failed to persist files", "error", err)
		return fmt.Errorf("persist files: %w", err)
	}
	return nil
}

func (s *Service) persistDeploymentsLocked(ctx context.Context) error {
	snapshot := make([]domain.Deployment, len(s.deployments))
	for i, d := range s.deployments {
		snapshot[i] = cloneDeployment(d)
	}
	if err := s.deploymentRepo.ReplaceDeployments(ctx, snapshot); err != nil {
		s.logger.Error("failed to persist deployments", "error", err)
		return fmt.Errorf("persist deployments: %w", err)
	}
	return nil
}
