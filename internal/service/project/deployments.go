package project

import (
	"context"
	"time"

	"github.com/Fallenproud/create.xyzdashboard/internal/domain"
	"github.com/Fallenproud/create.xyzdashboard/internal/repository"
)

// CreateDeployment records a pending deployment for the project and starts
// its simulated pipeline. The project itself is untouched until the
// deployment succeeds.
func (s *Service) CreateDeployment(ctx context.Context, projectID, environment string) (domain.Deployment, error) {
	if !domain.ValidEnvironment(environment) {
		return domain.Deployment{}, ErrInvalidEnvironment
	}

	s.mu.Lock()
	if s.projectIndexLocked(projectID) < 0 {
		s.mu.Unlock()
		return domain.Deployment{}, repository.ErrNotFound
	}
	deployment := s.pipeline.New(projectID, environment)
	s.deployments = append(s.deployments, deployment)
	err := s.persistDeploymentsLocked(ctx)
	s.mu.Unlock()
	if err != nil {
		return domain.Deployment{}, err
	}

	s.logger.Info("deployment created", "deployment_id", deployment.ID, "project_id", projectID, "environment", environment)
	s.pipeline.Start(pipelineTarget{s: s}, cloneDeployment(deployment))
	return cloneDeployment(deployment), nil
}

// GetDeploymentByID returns the deployment with id.
func (s *Service) GetDeploymentByID(id string) (domain.Deployment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.deploymentIndexLocked(id)
	if idx < 0 {
		return domain.Deployment{}, false
	}
	return cloneDeployment(s.deployments[idx]), true
}

// GetDeploymentsByProjectID returns the project's deployments in creation order.
func (s *Service) GetDeploymentsByProjectID(projectID string) []domain.Deployment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Deployment{}
	for _, d := range s.deployments {
		if d.ProjectID == projectID {
			out = append(out, cloneDeployment(d))
		}
	}
	return out
}

// ListDeployments returns every deployment.
func (s *Service) ListDeployments() []domain.Deployment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Deployment, len(s.deployments))
	for i, d := range s.deployments {
		out[i] = cloneDeployment(d)
	}
	return out
}

func (s *Service) deploymentIndexLocked(id string) int {
	for i := range s.deployments {
		if s.deployments[i].ID == id {
			return i
		}
	}
	return -1
}

// pipelineTarget lets the deployment pipeline mutate the container's state.
type pipelineTarget struct {
	s *Service
}

func (t pipelineTarget) MutateDeployment(ctx context.Context, id string, fn func(*domain.Deployment)) (domain.Deployment, bool, error) {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.deploymentIndexLocked(id)
	if idx < 0 {
		return domain.Deployment{}, false, nil
	}
	fn(&s.deployments[idx])
	updated := cloneDeployment(s.deployments[idx])
	if err := s.persistDeploymentsLocked(ctx); err != nil {
		return updated, true, err
	}
	return updated, true, nil
}

func (t pipelineTarget) MarkDeployed(ctx context.Context, projectID, url string, at time.Time) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.projectIndexLocked(projectID)
	if idx < 0 {
		return nil
	}
	p := &s.projects[idx]
	p.DeploymentURL = url
	if at.After(p.UpdatedAt) {
		p.UpdatedAt = at
	} else {
		p.UpdatedAt = s.stamp(p.UpdatedAt)
	}
	return s.persistProjectsLocked(ctx)
}

func cloneDeployment(d domain.Deployment) domain.Deployment {
	d.Logs = append([]string(nil), d.Logs...)
	if d.CompletedAt != nil {
		completed := *d.CompletedAt
		d.CompletedAt = &completed
	}
	return d
}
