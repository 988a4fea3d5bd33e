package mockapi

import (
	"context"
	"strings"

	"github.com/Fallenproud/create.xyzdashboard/internal/domain"
)

func collaboratorFixture() []domain.User {
	return []domain.User{
		{ID: "user-1", Email: "user@example.com", Name: "Regular User", Role: domain.RoleUser},
		{ID: "user-2", Email: "collaborator@example.com", Name: "Collaborator", Role: domain.RoleUser},
	}
}

// GetCollaborators returns the collaborators of a project.
func (s *Service) GetCollaborators(ctx context.Context, projectID string) ([]domain.User, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return collaboratorFixture(), nil
}

// AddCollaborator invites email to the project.
func (s *Service) AddCollaborator(ctx context.Context, projectID, email string) (domain.User, error) {
	if err := s.wait(ctx); err != nil {
		return domain.User{}, err
	}
	email = strings.TrimSpace(email)
	if !validEmail(email) {
		return domain.User{}, ErrInvalidEmail
	}
	user := domain.User{ID: s.newID(), Email: email, Name: localPart(email), Role: domain.RoleUser}
	s.logger.Info("collaborator added", "project_id", projectID, "user_id", user.ID)
	return user, nil
}

// RemoveCollaborator revokes a collaborator.
func (s *Service) RemoveCollaborator(ctx context.Context, projectID, userID string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.logger.Info("collaborator removed", "project_id", projectID, "user_id", userID)
	return nil
}

// GetOnlineUsers reports who is currently viewing the project.
func (s *Service) GetOnlineUsers(ctx context.Context, projectID string) ([]domain.User, error) {
	if err := s.waitFast(ctx); err != nil {
		return nil, err
	}
	return collaboratorFixture()[:1], nil
}
