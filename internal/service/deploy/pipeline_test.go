package deploy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Fallenproud/create.xyzdashboard/internal/domain"
	"github.com/Fallenproud/create.xyzdashboard/pkg/clock"
)

type fakeTarget struct {
	mu          sync.Mutex
	deployments map[string]domain.Deployment
	deployed    map[string]string
	deployedAt  time.Time
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{deployments: map[string]domain.Deployment{}, deployed: map[string]string{}}
}

func (f *fakeTarget) MutateDeployment(_ context.Context, id string, fn func(*domain.Deployment)) (domain.Deployment, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.deployments[id]
	if !ok {
		return domain.Deployment{}, false, nil
	}
	fn(&d)
	f.deployments[id] = d
	return d, true, nil
}

func (f *fakeTarget) MarkDeployed(_ context.Context, projectID, url string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deployed[projectID] = url
	f.deployedAt = at
	return nil
}

func (f *fakeTarget) get(id string) (domain.Deployment, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.deployments[id]
	return d, ok
}

type recordingNotifier struct {
	statuses []string
}

func (r *recordingNotifier) DeploymentUpdated(d domain.Deployment) {
	r.statuses = append(r.statuses, d.Status)
}

func newTestPipeline(opts ...Option) (*Pipeline, *clock.Fake) {
	fake := clock.NewFake(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPipeline(fake, logger, opts...), fake
}

func TestURLDerivation(t *testing.T) {
	cases := []struct {
		env, projectID, want string
	}{
		{domain.EnvironmentProduction, "abcdefgh-1234", "https://abcdefgh.create.xyz"},
		{domain.EnvironmentStaging, "abcdefgh-1234", "https://staging.abcdefgh.create.xyz"},
		{domain.EnvironmentDevelopment, "abc", "https://development.abc.create.xyz"},
	}
	for _, tc := range cases {
		if got := URL(tc.env, tc.projectID, DefaultHostSuffix); got != tc.want {
			t.Fatalf("URL(%q, %q) = %q, want %q", tc.env, tc.projectID, got, tc.want)
		}
	}
}

func TestPipelineRunsToSuccess(t *testing.T) {
	notifier := &recordingNotifier{}
	p, fake := newTestPipeline(WithNotifier(notifier))
	target := newFakeTarget()

	d := p.New("project-1", domain.EnvironmentStaging)
	if d.Status != domain.DeploymentStatusPending || len(d.Logs) != 1 || d.Logs[0] != LogInitialized {
		t.Fatalf("unexpected initial deployment %+v", d)
	}
	target.deployments[d.ID] = d
	p.Start(target, d)

	fake.Advance(1999 * time.Millisecond)
	if got, _ := target.get(d.ID); got.Status != domain.DeploymentStatusPending {
		t.Fatalf("expected pending before 2s, got %s", got.Status)
	}

	fake.Advance(time.Millisecond)
	got, _ := target.get(d.ID)
	if got.Status != domain.DeploymentStatusInProgress {
		t.Fatalf("expected in_progress at 2s, got %s", got.Status)
	}
	if len(got.Logs) != 2 || got.Logs[1] != LogBuilding {
		t.Fatalf("unexpected logs %v", got.Logs)
	}

	fake.Advance(3 * time.Second)
	got, _ = target.get(d.ID)
	if got.Status != domain.DeploymentStatusSuccess {
		t.Fatalf("expected success at 5s, got %s", got.Status)
	}
	want := []string{LogInitialized, LogBuilding, LogCompleted}
	if len(got.Logs) != len(want) {
		t.Fatalf("expected logs %v, got %v", want, got.Logs)
	}
	for i := range want {
		if got.Logs[i] != want[i] {
			t.Fatalf("expected logs %v, got %v", want, got.Logs)
		}
	}
	if got.CompletedAt == nil || got.CompletedAt.Before(got.CreatedAt) {
		t.Fatalf("expected completedAt after createdAt, got %v", got.CompletedAt)
	}
	if url := target.deployed["project-1"]; url != "https://staging.project-.create.xyz" {
		t.Fatalf("unexpected project deployment url %q", url)
	}
	if !target.deployedAt.Equal(*got.CompletedAt) {
		t.Fatalf("project should be stamped with completion time")
	}
	if len(notifier.statuses) != 3 {
		t.Fatalf("expected 3 notifications, got %v", notifier.statuses)
	}
	if fake.Pending() != 0 {
		t.Fatalf("expected no timers left, got %d", fake.Pending())
	}
}

func TestPipelineStopsWhenDeploymentRemoved(t *testing.T) {
	p, fake := newTestPipeline()
	target := newFakeTarget()

	d := p.New("project-1", domain.EnvironmentProduction)
	target.deployments[d.ID] = d
	p.Start(target, d)

	fake.Advance(2 * time.Second)
	target.mu.Lock()
	delete(target.deployments, d.ID)
	target.mu.Unlock()

	fake.Advance(10 * time.Second)
	if _, ok := target.get(d.ID); ok {
		t.Fatalf("deployment was recreated by a late step")
	}
	if len(target.deployed) != 0 {
		t.Fatalf("project should not be touched, got %v", target.deployed)
	}
}

func TestTransitionRejectsIllegalMoves(t *testing.T) {
	d := domain.Deployment{Status: domain.DeploymentStatusPending}
	err := Transition(&d, domain.DeploymentStatusSuccess, time.Now(), "")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if d.Status != domain.DeploymentStatusPending {
		t.Fatalf("status changed on rejected transition")
	}

	d.Status = domain.DeploymentStatusInProgress
	if err := Transition(&d, domain.DeploymentStatusFailed, time.Now(), "boom"); err != nil {
		t.Fatalf("in_progress -> failed should be legal: %v", err)
	}
	if d.CompletedAt == nil {
		t.Fatalf("terminal transition must stamp completedAt")
	}
	if err := Transition(&d, domain.DeploymentStatusSuccess, time.Now(), ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("terminal states must not transition, got %v", err)
	}
}
