package mockapi

import (
	"context"
	"time"

	"github.com/Fallenproud/create.xyzdashboard/internal/domain"
	"github.com/Fallenproud/create.xyzdashboard/internal/repository"
)

// GetProjectDeployments lists the deployments of a project.
func (s *Service) GetProjectDeployments(ctx context.Context, projectID string) ([]domain.Deployment, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	deployments, err := s.repos.Deployments.ListDeployments(ctx)
	if err != nil {
		return nil, err
	}
	out := []domain.Deployment{}
	for _, d := range deployments {
		if d.ProjectID == projectID {
			out = append(out, d)
		}
	}
	return out, nil
}

// CreateDeployment stores a pending deployment and runs the simulated pipeline against the store.
func (s *Service) CreateDeployment(ctx context.Context, projectID, environment string) (domain.Deployment, error) {
	if err := s.wait(ctx); err != nil {
		return domain.Deployment{}, err
	}
	if !domain.ValidEnvironment(environment) {
		return domain.Deployment{}, ErrInvalidEnvironment
	}
	project, err := s.findProject(ctx, projectID)
	if err != nil {
		return domain.Deployment{}, err
	}

	deployment := s.pipeline.New(project.ID, environment)
	err = s.repos.Deployments.UpdateDeployments(ctx, func(deployments []domain.Deployment) ([]domain.Deployment, error) {
		return append(deployments, deployment), nil
	})
	if err != nil {
		return domain.Deployment{}, err
	}
	s.pipeline.Start(storeTarget{s: s}, deployment)
	return deployment, nil
}

func (s *Service) findProject(ctx context.Context, id string) (domain.Project, error) {
	projects, err := s.repos.Projects.ListProjects(ctx)
	if err != nil {
		return domain.Project{}, err
	}
	for _, p := range projects {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Project{}, repository.ErrNotFound
}

// storeTarget applies pipeline steps directly to the persisted collections.
type storeTarget struct {
	s *Service
}

func (t storeTarget) MutateDeployment(ctx context.Context, id string, fn func(*domain.Deployment)) (domain.Deployment, bool, error) {
	var (
		updated domain.Deployment
		found   bool
	)
	err := t.s.repos.Deployments.UpdateDeployments(ctx, func(deployments []domain.Deployment) ([]domain.Deployment, error) {
		for i := range deployments {
			if deployments[i].ID == id {
				fn(&deployments[i])
				updated = deployments[i]
				found = true
				break
			}
		}
		return deployments, nil
	})
	return updated, found, err
}

func (t storeTarget) MarkDeployed(ctx context.Context, projectID, url string, at time.Time) error {
	return t.s.repos.Projects.UpdateProjects(ctx, func(projects []domain.Project) ([]domain.Project, error) {
		for i := range projects {
			if projects[i].ID == projectID {
				projects[i].DeploymentURL = url
				projects[i].UpdatedAt = domain.Touch(projects[i].UpdatedAt, at)
			}
		}
		return projects, nil
	})
}
