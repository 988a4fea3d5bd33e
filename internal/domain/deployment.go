package domain

import "time"

// Deployment environments.
const (
	EnvironmentDevelopment = "development"
	EnvironmentStaging     = "staging"
	EnvironmentProduction  = "production"
)

// Deployment statuses.
const (
	DeploymentStatusPending    = "pending"
	DeploymentStatusInProgress = "in_progress"
	DeploymentStatusSuccess    = "success"
	DeploymentStatusFailed     = "failed"
)

// Deployment captures a single simulated deployment attempt.
type Deployment struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"projectId"`
	Environment string     `json:"environment"`
	Status      string     `json:"status"`
	URL         string     `json:"url"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Logs        []string   `json:"logs"`
}

// Terminal reports whether the deployment reached a final status.
func (d Deployment) Terminal() bool {
	return d.Status == DeploymentStatusSuccess || d.Status == DeploymentStatusFailed
}

// ValidEnvironment reports whether env is a known deployment environment.
func ValidEnvironment(env string) bool {
	switch env {
	case EnvironmentDevelopment, EnvironmentStaging, EnvironmentProduction:
		return true
	}
	return false
}
