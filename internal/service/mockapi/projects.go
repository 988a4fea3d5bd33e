package mockapi

import (
	"context"
	"strings"
	"time"

	"github.com/Fallenproud/create.xyzdashboard/internal/domain"
	"github.com/Fallenproud/create.xyzdashboard/internal/repository"
)

// NewProject holds the caller-supplied fields of a project.
type NewProject struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
	OwnerID     string `json:"ownerId"`
}

// NewFile holds the caller-supplied fields of a file.
type NewFile struct {
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	Content   string `json:"content"`
	Type      string `json:"type"`
}

// GetProjects lists every project.
func (s *Service) GetProjects(ctx context.Context) ([]domain.Project, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.repos.Projects.ListProjects(ctx)
}

// GetProject returns nil when the project does not exist.
func (s *Service) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	projects, err := s.repos.Projects.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	for i := range projects {
		if projects[i].ID == id {
			return &projects[i], nil
		}
	}
	return nil, nil
}

// CreateProject stores a new project, defaulting status to draft.
func (s *Service) CreateProject(ctx context.Context, in NewProject) (domain.Project, error) {
	if err := s.wait(ctx); err != nil {
		return domain.Project{}, err
	}
	now := s.now()
	project := domain.Project{
		ID:          s.newID(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
		Status:      in.Status,
		OwnerID:     in.OwnerID,
	}
	if project.Status == "" {
		project.Status = domain.ProjectStatusDraft
	}
	if project.OwnerID == "" {
		project.OwnerID = domain.PlaceholderOwnerID
	}
	err := s.repos.Projects.UpdateProjects(ctx, func(projects []domain.Project) ([]domain.Project, error) {
		return append(projects, project), nil
	})
	if err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

// UpdateProject merges update into the stored project. Missing projects yield repository.ErrNotFound.
func (s *Service) UpdateProject(ctx context.Context, id string, update domain.ProjectUpdate) (domain.Project, error) {
	if err := s.wait(ctx); err != nil {
		return domain.Project{}, err
	}
	var updated domain.Project
	err := s.repos.Projects.UpdateProjects(ctx, func(projects []domain.Project) ([]domain.Project, error) {
		for i := range projects {
			if projects[i].ID == id {
				update.Apply(&projects[i])
				projects[i].UpdatedAt = domain.Touch(projects[i].UpdatedAt, s.now())
				updated = projects[i]
				return projects, nil
			}
		}
		return nil, repository.ErrNotFound
	})
	return updated, err
}

// DeleteProject removes the project with its files and deployments.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.repos.Projects.UpdateProjects(ctx, func(projects []domain.Project) ([]domain.Project, error) {
		out := projects[:0]
		for _, p := range projects {
			if p.ID != id {
				out = append(out, p)
			}
		}
		return out, nil
	})
	if err != nil {
		return err
	}
	err = s.repos.Files.UpdateFiles(ctx, func(files []domain.ProjectFile) ([]domain.ProjectFile, error) {
		out := files[:0]
		for _, f := range files {
			if f.ProjectID != id {
				out = append(out, f)
			}
		}
		return out, nil
	})
	if err != nil {
		return err
	}
	return s.repos.Deployments.UpdateDeployments(ctx, func(deployments []domain.Deployment) ([]domain.Deployment, error) {
		out := deployments[:0]
		for _, d := range deployments {
			if d.ProjectID != id {
				out = append(out, d)
			}
		}
		return out, nil
	})
}

// GetProjectFiles lists the files of a project.
func (s *Service) GetProjectFiles(ctx context.Context, projectID string) ([]domain.ProjectFile, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	files, err := s.repos.Files.ListFiles(ctx)
	if err != nil {
		return nil, err
	}
	out := []domain.ProjectFile{}
	for _, f := range files {
		if f.ProjectID == projectID {
			out = append(out, f)
		}
	}
	return out, nil
}

// CreateFile stores a file and bumps its project.
func (s *Service) CreateFile(ctx context.Context, in NewFile) (domain.ProjectFile, error) {
	if err := s.wait(ctx); err != nil {
		return domain.ProjectFile{}, err
	}
	fileType := in.Type
	if fileType == "" {
		fileType = domain.FileTypeFor(in.Name)
	}
	now := s.now()
	file := domain.ProjectFile{
		ID:        s.newID(),
		Name:      in.Name,
		Path:      domain.FilePath(in.Name),
		Content:   in.Content,
		Type:      fileType,
		ProjectID: in.ProjectID,
		CreatedAt: now,
		UpdatedAt: now,
		Size:      domain.ContentSize(in.Content),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.repos.Files.UpdateFiles(ctx, func(files []domain.ProjectFile) ([]domain.ProjectFile, error) {
		return append(files, file), nil
	})
	if err != nil {
		return domain.ProjectFile{}, err
	}
	return file, s.bumpProject(ctx, in.ProjectID, now)
}

// UpdateFile merges update into the stored file and bumps its project.
// Missing files yield repository.ErrNotFound.
func (s *Service) UpdateFile(ctx context.Context, id string, update domain.FileUpdate) (domain.ProjectFile, error) {
	if err := s.wait(ctx); err != nil {
		return domain.ProjectFile{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var updated domain.ProjectFile
	err := s.repos.Files.UpdateFiles(ctx, func(files []domain.ProjectFile) ([]domain.ProjectFile, error) {
		for i := range files {
			if files[i].ID == id {
				update.Apply(&files[i])
				files[i].UpdatedAt = domain.Touch(files[i].UpdatedAt, now)
				updated = files[i]
				return files, nil
			}
		}
		return nil, repository.ErrNotFound
	})
	if err != nil {
		return domain.ProjectFile{}, err
	}
	return updated, s.bumpProject(ctx, updated.ProjectID, now)
}

// DeleteFile removes the file and bumps its project when it existed.
func (s *Service) DeleteFile(ctx context.Context, id string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	projectID := ""
	err := s.repos.Files.UpdateFiles(ctx, func(files []domain.ProjectFile) ([]domain.ProjectFile, error) {
		out := files[:0]
		for _, f := range files {
			if f.ID == id {
				projectID = f.ProjectID
				continue
			}
			out = append(out, f)
		}
		return out, nil
	})
	if err != nil || projectID == "" {
		return err
	}
	return s.bumpProject(ctx, projectID, s.now())
}

func (s *Service) bumpProject(ctx context.Context, projectID string, now time.Time) error {
	return s.repos.Projects.UpdateProjects(ctx, func(projects []domain.Project) ([]domain.Project, error) {
		for i := range projects {
			if projects[i].ID == projectID {
				projects[i].UpdatedAt = domain.Touch(projects[i].UpdatedAt, now)
			}
		}
		return projects, nil
	})
}
