package collab

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

type stubAPI struct {
	mu            sync.Mutex
	collaborators []domain.User
	online        []domain.User
	onlineErr     error
	addErr        error
	removeErr     error
	loadErr       error
	onlineCalls   int
}

func (s *stubAPI) GetCollaborators(context.Context, string) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collaborators, s.loadErr
}

func (s *stubAPI) AddCollaborator(_ context.Context, _ string, email string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addErr != nil {
		return domain.User{}, s.addErr
	}
	return domain.User{ID: "new", Email: email, Role: domain.RoleUser}, nil
}

func (s *stubAPI) RemoveCollaborator(context.Context, string, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeErr
}

func (s *stubAPI) GetOnlineUsers(context.Context, string) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onlineCalls++
	return s.online, s.onlineErr
}

func (s *stubAPI) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onlineCalls
}

type presenceRecorder struct {
	updates int
}

func (p *presenceRecorder) PresenceChanged(string, []domain.User) { p.updates++ }

func newTestContainer(api *stubAPI, opts ...Option) (*Container, *clock.Fake) {
	fake := clock.NewFake(time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(api, fake, logger, opts...), fake
}

func fixture() []domain.User {
	return []domain.User{
		{ID: "user-1", Email: "user@example.com", Name: "Regular User", Role: domain.RoleUser},
		{ID: "user-2", Email: "collaborator@example.com", Name: "Collaborator", Role: domain.RoleUser},
	}
}

func TestSessionLoadsAndPolls(t *testing.T) {
	api := &stubAPI{collaborators: fixture(), online: fixture()[:1]}
	recorder := &presenceRecorder{}
	c, fake := newTestContainer(api, WithNotifier(recorder))

	if err := c.StartCollaborationSession(context.Background(), "p1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	state := c.Snapshot()
	if !state.Active || len(state.Collaborators) != 2 || len(state.OnlineUsers) != 0 {
		t.Fatalf("unexpected initial state %+v", state)
	}

	fake.Advance(9 * time.Second)
	if api.calls() != 0 {
		t.Fatalf("polled before the interval elapsed")
	}
	fake.Advance(time.Second)
	if api.calls() != 1 {
		t.Fatalf("expected one poll at 10s, got %d", api.calls())
	}
	if got := c.Snapshot().OnlineUsers; len(got) != 1 || got[0].ID != "user-1" {
		t.Fatalf("unexpected online users %+v", got)
	}
	fake.Advance(20 * time.Second)
	if api.calls() != 3 {
		t.Fatalf("expected 3 polls after 30s, got %d", api.calls())
	}
	if recorder.updates != 3 {
		t.Fatalf("expected 3 presence notifications, got %d", recorder.updates)
	}
}

func TestEndStopsPollingAndIsIdempotent(t *testing.T) {
	api := &stubAPI{collaborators: fixture(), online: fixture()[:1]}
	c, fake := newTestContainer(api)

	c.EndCollaborationSession()
	if err := c.StartCollaborationSession(context.Background(), "p1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	fake.Advance(10 * time.Second)
	c.EndCollaborationSession()
	c.EndCollaborationSession()

	fake.Advance(time.Minute)
	if api.calls() != 1 {
		t.Fatalf("polling continued after end: %d calls", api.calls())
	}
	if fake.Pending() != 0 {
		t.Fatalf("timer left scheduled")
	}
	if c.Snapshot().Active {
		t.Fatalf("session still active")
	}
}

func TestRestartReplacesPreviousSession(t *testing.T) {
	api := &stubAPI{collaborators: fixture(), online: fixture()[:1]}
	c, fake := newTestContainer(api)
	ctx := context.Background()

	if err := c.StartCollaborationSession(ctx, "p1"); err != nil {
		t.Fatalf("start p1: %v", err)
	}
	if err := c.StartCollaborationSession(ctx, "p2"); err != nil {
		t.Fatalf("start p2: %v", err)
	}
	if fake.Pending() != 1 {
		t.Fatalf("expected a single poll timer, got %d", fake.Pending())
	}
	fake.Advance(10 * time.Second)
	if api.calls() != 1 {
		t.Fatalf("expected one poll, got %d", api.calls())
	}
	if c.Snapshot().ProjectID != "p2" {
		t.Fatalf("expected active project p2")
	}
}

func TestPollFailureKeepsPolling(t *testing.T) {
	api := &stubAPI{collaborators: fixture(), onlineErr: errors.New("offline")}
	c, fake := newTestContainer(api)
	if err := c.StartCollaborationSession(context.Background(), "p1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	fake.Advance(10 * time.Second)
	if c.Snapshot().Error != MessagePollFailed {
		t.Fatalf("expected poll error, got %q", c.Snapshot().Error)
	}

	api.mu.Lock()
	api.onlineErr = nil
	api.online = fixture()[:1]
	api.mu.Unlock()

	fake.Advance(10 * time.Second)
	state := c.Snapshot()
	if state.Error != "" || len(state.OnlineUsers) != 1 {
		t.Fatalf("expected recovery, got %+v", state)
	}
}

func TestInitialLoadFailure(t *testing.T) {
	api := &stubAPI{loadErr: errors.New("boom")}
	c, fake := newTestContainer(api)
	if err := c.StartCollaborationSession(context.Background(), "p1"); err == nil {
		t.Fatalf("expected load error")
	}
	if c.Snapshot().Error != MessageLoadFailed {
		t.Fatalf("unexpected error %q", c.Snapshot().Error)
	}
	if fake.Pending() != 1 {
		t.Fatalf("polling should start despite load failure")
	}
}

func TestAddAndRemoveCollaborator(t *testing.T) {
	api := &stubAPI{collaborators: fixture()}
	c, _ := newTestContainer(api)
	ctx := context.Background()
	if err := c.StartCollaborationSession(ctx, "p1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := c.AddCollaborator(ctx, "p1", "x@example.com"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if got := len(c.Snapshot().Collaborators); got != 3 {
		t.Fatalf("expected 3 collaborators, got %d", got)
	}

	api.addErr = errors.New("rejected")
	if _, err := c.AddCollaborator(ctx, "p1", "y@example.com"); err == nil {
		t.Fatalf("expected add failure")
	}
	state := c.Snapshot()
	if len(state.Collaborators) != 3 || state.Error != MessageAddFailed {
		t.Fatalf("failed add must not change the list: %+v", state)
	}

	if err := c.RemoveCollaborator(ctx, "p1", "user-2"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := len(c.Snapshot().Collaborators); got != 2 {
		t.Fatalf("expected 2 collaborators, got %d", got)
	}

	api.removeErr = errors.New("rejected")
	if err := c.RemoveCollaborator(ctx, "p1", "user-1"); err == nil {
		t.Fatalf("expected remove failure")
	}
	state = c.Snapshot()
	if len(state.Collaborators) != 2 || state.Error != MessageRemoveFailed {
		t.Fatalf("failed remove must not change the list: %+v", state)
	}
}

func TestChangesToOtherProjectsLeaveActiveListAlone(t *testing.T) {
	api := &stubAPI{collaborators: fixture()}
	c, _ := newTestContainer(api)
	ctx := context.Background()
	if err := c.StartCollaborationSession(ctx, "project-a"); err != nil {
		t.Fatalf("start: %v", err)
	}

	added, err := c.AddCollaborator(ctx, "project-b", "b@example.com")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if added.Email != "b@example.com" {
		t.Fatalf("expected invited user to be returned, got %+v", added)
	}
	if err := c.RemoveCollaborator(ctx, "project-b", "user-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	state := c.Snapshot()
	if state.ProjectID != "project-a" || !state.Active {
		t.Fatalf("unexpected session: %+v", state)
	}
	if len(state.Collaborators) != 2 || state.Collaborators[0].ID != "user-1" || state.Collaborators[1].ID != "user-2" {
		t.Fatalf("project-a collaborators changed: %+v", state.Collaborators)
	}
}
