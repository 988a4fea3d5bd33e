package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Fallenproud/create.xyzdashboard/internal/domain"
	"github.com/Fallenproud/create.xyzdashboard/pkg/clock"
)

// Log lines appended as a deployment advances.
const (
	LogInitialized = "Deployment initialized"
	LogBuilding    = "Building project..."
	LogCompleted   = "Deployment completed successfully"
)

// DefaultHostSuffix is appended to every derived deployment host.
const DefaultHostSuffix = "create.xyz"

const stepTimeout = 10 * time.Second

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = errors.New("invalid deployment transition")

var transitions = map[string][]string{
	domain.DeploymentStatusPending:    {domain.DeploymentStatusInProgress},
	domain.DeploymentStatusInProgress: {domain.DeploymentStatusSuccess, domain.DeploymentStatusFailed},
}

// Step is one timed transition of the simulated pipeline.
type Step struct {
	After time.Duration
	To    string
	Log   string
}

// DefaultSteps is pending -> in_progress after 2s, then success 3s later.
var DefaultSteps = []Step{
	{After: 2 * time.Second, To: domain.DeploymentStatusInProgress, Log: LogBuilding},
	{After: 3 * time.Second, To: domain.DeploymentStatusSuccess, Log: LogCompleted},
}

// Target is the store a pipeline run mutates.
type Target interface {
	// MutateDeployment applies fn to the stored deployment and persists it.
	// The boolean is false when the deployment no longer exists.
	MutateDeployment(ctx context.Context, id string, fn func(*domain.Deployment)) (domain.Deployment, bool, error)
	// MarkDeployed records a successful deployment on its project, if the project still exists.
	MarkDeployed(ctx context.Context, projectID, url string, at time.Time) error
}

// Notifier observes deployment changes.
type Notifier interface {
	DeploymentUpdated(deployment domain.Deployment)
}

// Pipeline drives deployments through their simulated lifecycle.
type Pipeline struct {
	clock      clock.Clock
	logger     *slog.Logger
	hostSuffix string
	steps      []Step
	notifier   Notifier
	newID      func() string
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithHostSuffix overrides the deployment host suffix.
func WithHostSuffix(suffix string) Option {
	return func(p *Pipeline) {
		if suffix != "" {
			p.hostSuffix = suffix
		}
	}
}

// WithNotifier registers an observer for every persisted transition.
func WithNotifier(n Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithSteps replaces the step table.
func WithSteps(steps []Step) Option {
	return func(p *Pipeline) { p.steps = steps }
}

// WithIDGenerator overrides deployment ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(p *Pipeline) { p.newID = fn }
}

// NewPipeline constructs a Pipeline.
func NewPipeline(clk clock.Clock, logger *slog.Logger, opts ...Option) *Pipeline {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		clock:      clk,
		logger:     logger.With("component", "deploy_pipeline"),
		hostSuffix: DefaultHostSuffix,
		steps:      DefaultSteps,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// URL derives the public address of a deployment. Production omits the environment label.
func URL(environment, projectID, hostSuffix string) string {
	short := projectID
	if len(short) > 8 {
		short = short[:8]
	}
	label := ""
	if environment != domain.EnvironmentProduction {
		label = environment + "."
	}
	return fmt.Sprintf("https://%s%s.%s", label, short, hostSuffix)
}

// Transition moves d to status `to`, appending line to its logs. Terminal
// statuses stamp CompletedAt with at.
func Transition(d *domain.Deployment, to string, at time.Time, line string) error {
	allowed := false
	for _, next := range transitions[d.Status] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, to)
	}
	d.Status = to
	if line != "" {
		d.Logs = append(d.Logs, line)
	}
	if d.Terminal() {
		completed := at
		d.CompletedAt = &completed
	}
	return nil
}

// New builds the pending record for a deployment. Nothing is persisted or scheduled.
func (p *Pipeline) New(projectID, environment string) domain.Deployment {
	return domain.Deployment{
		ID:          p.newID(),
		ProjectID:   projectID,
		Environment: environment,
		Status:      domain.DeploymentStatusPending,
		URL:         URL(environment, projectID, p.hostSuffix),
		CreatedAt:   p.clock.Now().UTC(),
		Logs:        []string{LogInitialized},
	}
}

// Start schedules the remaining transitions of deployment against target.
// Scheduled steps cannot be cancelled; each one re-reads the deployment and
// stops silently if it has been removed.
func (p *Pipeline) Start(target Target, deployment domain.Deployment) {
	deploymentsStarted(deployment.Environment)
	p.notify(deployment)
	if len(p.steps) == 0 {
		return
	}
	p.schedule(target, deployment.ID, 0)
}

func (p *Pipeline) schedule(target Target, deploymentID string, idx int) {
	step := p.steps[idx]
	p.clock.AfterFunc(step.After, func() {
		p.advance(target, deploymentID, idx)
	})
}

func (p *Pipeline) advance(target Target, deploymentID string, idx int) {
	ctx, cancel := context.WithTimeout(context.Background(), stepTimeout)
	defer cancel()

	step := p.steps[idx]
	now := p.clock.Now().UTC()
	var transitionErr error
	updated, ok, err := target.MutateDeployment(ctx, deploymentID, func(d *domain.Deployment) {
		transitionErr = Transition(d, step.To, now, step.Log)
	})
	if err != nil {
		p.logger.Error("failed to persist deployment transition", "deployment_id", deploymentID, "status", step.To, "error", err)
		return
	}
	if !ok {
		p.logger.Debug("deployment removed before transition", "deployment_id", deploymentID, "status", step.To)
		return
	}
	if transitionErr != nil {
		p.logger.Warn("skipping deployment transition", "deployment_id", deploymentID, "error", transitionErr)
		return
	}

	transitionObserved(updated.Environment, updated.Status)
	p.logger.Info("deployment transitioned", "deployment_id", deploymentID, "project_id", updated.ProjectID, "status", updated.Status)
	p.notify(updated)

	if updated.Status == domain.DeploymentStatusSuccess && updated.CompletedAt != nil {
		if err := target.MarkDeployed(ctx, updated.ProjectID, updated.URL, *updated.CompletedAt); err != nil {
			p.logger.Error("failed to record deployment on project", "project_id", updated.ProjectID, "error", err)
		}
	}
	if updated.Terminal() || idx+1 >= len(p.steps) {
		return
	}
	p.schedule(target, deploymentID, idx+1)
}

func (p *Pipeline) notify(deployment domain.Deployment) {
	if p.notifier == nil {
		return
	}
	p.notifier.DeploymentUpdated(deployment)
}
