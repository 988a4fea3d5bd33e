// Package collab tracks project collaborators and polls who is online.
package collab

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Fallenproud/create.xyzdashboard/internal/domain"
	"github.com/Fallenproud/create.xyzdashboard/pkg/clock"
)

// DefaultPollInterval is how often online users are refreshed.
const DefaultPollInterval = 10 * time.Second

// User-visible failure messages.
const (
	MessageLoadFailed   = "Failed to load collaborators"
	MessageAddFailed    = "Failed to add collaborator"
	MessageRemoveFailed = "Failed to remove collaborator"
	MessagePollFailed   = "Failed to fetch online users"
)

// API is the remote collaboration surface.
type API interface {
	GetCollaborators(ctx context.Context, projectID string) ([]domain.User, error)
	AddCollaborator(ctx context.Context, projectID, email string) (domain.User, error)
	RemoveCollaborator(ctx context.Context, projectID, userID string) error
	GetOnlineUsers(ctx context.Context, projectID string) ([]domain.User, error)
}

// Notifier observes presence refreshes.
type Notifier interface {
	PresenceChanged(projectID string, online []domain.User)
}

// State is a point-in-time view of the container.
type State struct {
	ProjectID     string        `json:"projectId,omitempty"`
	Active        bool          `json:"active"`
	Collaborators []domain.User `json:"collaborators"`
	OnlineUsers   []domain.User `json:"onlineUsers"`
	Loading       bool          `json:"isLoading"`
	Error         string        `json:"error,omitempty"`
}

// Container holds collaboration state for at most one active project session.
type Container struct {
	api      API
	clock    clock.Clock
	logger   *slog.Logger
	interval time.Duration
	notifier Notifier

	mu            sync.Mutex
	projectID     string
	active        bool
	collaborators []domain.User
	online        []domain.User
	loading       bool
	errMsg        string
	timer         clock.Timer
	generation    uint64
}

// Option customises a Container.
type Option func(*Container)

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Container) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithNotifier registers a presence observer.
func WithNotifier(n Notifier) Option {
	return func(c *Container) { c.notifier = n }
}

// New returns an idle container.
func New(api API, clk clock.Clock, logger *slog.Logger, opts ...Option) *Container {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{
		api:      api,
		clock:    clk,
		logger:   logger.With("component", "collaboration"),
		interval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartCollaborationSession ends any running session, starts polling online
// users for projectID and loads its collaborators once. Polling keeps running
// even if the initial load fails; that error is returned.
func (c *Container) StartCollaborationSession(ctx context.Context, projectID string) error {
	c.EndCollaborationSession()

	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.projectID = projectID
	c.active = true
	c.collaborators = nil
	c.online = nil
	c.errMsg = ""
	c.timer = c.clock.AfterFunc(c.interval, func() { c.tick(gen) })
	c.mu.Unlock()

	c.logger.Info("collaboration session started", "project_id", projectID)
	return c.LoadCollaborators(ctx, projectID)
}

// EndCollaborationSession stops polling. Calling it without a session is a no-op.
func (c *Container) EndCollaborationSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.generation++
	c.active = false
	c.logger.Info("collaboration session ended", "project_id", c.projectID)
}

// LoadCollaborators refreshes the collaborator list of projectID.
func (c *Container) LoadCollaborators(ctx context.Context, projectID string) error {
	c.begin()
	users, err := c.api.GetCollaborators(ctx, projectID)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if err != nil {
		c.errMsg = MessageLoadFailed
		c.logger.Warn("failed to load collaborators", "project_id", projectID, "error", err)
		return err
	}
	if !c.tracksLocked(projectID) {
		return nil
	}
	c.collaborators = append([]domain.User(nil), users...)
	return nil
}

// AddCollaborator invites email and appends the result once the call succeeds.
func (c *Container) AddCollaborator(ctx context.Context, projectID, email string) (domain.User, error) {
	c.begin()
	user, err := c.api.AddCollaborator(ctx, projectID, email)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if err != nil {
		c.errMsg = MessageAddFailed
		c.logger.Warn("failed to add collaborator", "project_id", projectID, "error", err)
		return domain.User{}, err
	}
	if c.tracksLocked(projectID) {
		c.collaborators = append(c.collaborators, user)
	}
	return user, nil
}

// RemoveCollaborator revokes userID and drops it from the list once the call succeeds.
func (c *Container) RemoveCollaborator(ctx context.Context, projectID, userID string) error {
	c.begin()
	err := c.api.RemoveCollaborator(ctx, projectID, userID)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if err != nil {
		c.errMsg = MessageRemoveFailed
		c.logger.Warn("failed to remove collaborator", "project_id", projectID, "error", err)
		return err
	}
	if !c.tracksLocked(projectID) {
		return nil
	}
	kept := c.collaborators[:0]
	for _, u := range c.collaborators {
		if u.ID != userID {
			kept = append(kept, u)
		}
	}
	c.collaborators = kept
	return nil
}

// Snapshot returns the current state.
func (c *Container) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		ProjectID:     c.projectID,
		Active:        c.active,
		Collaborators: append([]domain.User{}, c.collaborators...),
		OnlineUsers:   append([]domain.User{}, c.online...),
		Loading:       c.loading,
		Error:         c.errMsg,
	}
}

// tracksLocked reports whether the local list belongs to projectID. While a
// session is active only that project's changes are mirrored.
func (c *Container) tracksLocked(projectID string) bool {
	return !c.active || c.projectID == projectID
}

func (c *Container) begin() {
	c.mu.Lock()
	c.loading = true
	c.errMsg = ""
	c.mu.Unlock()
}

// tick reschedules itself before polling so the cadence does not drift with call latency.
func (c *Container) tick(gen uint64) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	projectID := c.projectID
	c.timer = c.clock.AfterFunc(c.interval, func() { c.tick(gen) })
	c.mu.Unlock()

	c.poll(gen, projectID)
}

func (c *Container) poll(gen uint64, projectID string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.interval)
	defer cancel()

	online, err := c.api.GetOnlineUsers(ctx, projectID)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.errMsg = MessagePollFailed
		c.mu.Unlock()
		c.logger.Warn("failed to fetch online users", "project_id", projectID, "error", err)
		return
	}
	if c.errMsg == MessagePollFailed {
		c.errMsg = ""
	}
	c.online = append([]domain.User(nil), online...)
	snapshot := append([]domain.User(nil), online...)
	c.mu.Unlock()

	if c.notifier != nil {
		c.notifier.PresenceChanged(projectID, snapshot)
	}
}
