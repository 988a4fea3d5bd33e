package domain

import "time"

// Project statuses.
const (
	ProjectStatusDraft    = "draft"
	ProjectStatusActive   = "active"
	ProjectStatusArchived = "archived"
)

// PlaceholderOwnerID is assigned to projects created without a resolved session user.
const PlaceholderOwnerID = "current-user-id"

// Project is a named container of files and deployments.
type Project struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	Status        string    `json:"status"`
	OwnerID       string    `json:"ownerId"`
	DeploymentURL string    `json:"deploymentUrl,omitempty"`
}

// ProjectUpdate carries a partial project mutation. Nil fields are left untouched.
// UpdatedAt is accepted for wire compatibility and always overridden.
type ProjectUpdate struct {
	Name          *string    `json:"name,omitempty"`
	Description   *string    `json:"description,omitempty"`
	Status        *string    `json:"status,omitempty"`
	DeploymentURL *string    `json:"deploymentUrl,omitempty"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
}

// Apply merges the update into p. It does not touch UpdatedAt.
func (u ProjectUpdate) Apply(p *Project) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Status != nil {
		p.Status = *u.Status
	}
	if u.DeploymentURL != nil {
		p.DeploymentURL = *u.DeploymentURL
	}
}

// ValidProjectStatus reports whether status is a known project status.
func ValidProjectStatus(status string) bool {
	switch status {
	case ProjectStatusDraft, ProjectStatusActive, ProjectStatusArchived:
		return true
	}
	return false
}

// Touch returns the timestamp a mutation at now should record, given the
// previous value prev. The result is always strictly after prev.
func Touch(prev, now time.Time) time.Time {
	if !now.After(prev) {
		return prev.Add(time.Nanosecond)
	}
	return now
}
