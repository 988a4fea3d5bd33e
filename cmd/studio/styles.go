package main

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Fallenproud/create.xyzdashboard/internal/domain"
)

var (
	colorSuccess = lipgloss.Color("#50FA7B")
	colorError   = lipgloss.Color("#FF5555")
	colorWarning = lipgloss.Color("#FFB86C")
	colorMuted   = lipgloss.Color("#6272A4")
	colorAccent  = lipgloss.Color("#8BE9FD")
)

var (
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
)

// statusLabel colours project and deployment statuses.
func statusLabel(status string) string {
	switch status {
	case domain.DeploymentStatusSuccess, domain.ProjectStatusActive:
		return successStyle.Render(status)
	case domain.DeploymentStatusFailed:
		return errorStyle.Render(status)
	case domain.DeploymentStatusPending, domain.DeploymentStatusInProgress, domain.ProjectStatusDraft:
		return warningStyle.Render(status)
	}
	return mutedStyle.Render(status)
}
