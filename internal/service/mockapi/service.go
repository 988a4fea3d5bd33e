// Package mockapi simulates the remote backend: every call waits an
// artificial latency before touching the shared persisted collections.
package mockapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Fallenproud/create.xyzdashboard/internal/domain"
	"github.com/Fallenproud/create.xyzdashboard/internal/repository"
	"github.com/Fallenproud/create.xyzdashboard/internal/service/deploy"
	"github.com/Fallenproud/create.xyzdashboard/pkg/clock"
	"github.com/Fallenproud/create.xyzdashboard/pkg/crypto"
)

// DefaultDelay is the simulated round-trip of a regular call. Session checks take half.
const DefaultDelay = 800 * time.Millisecond

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("a valid email address is required")
	ErrInvalidProvider    = errors.New("oauth provider is required")
	ErrInvalidMagicLink   = errors.New("magic link is invalid or expired")
	ErrInvalidEnvironment = errors.New("environment must be development, staging or production")
)

// Config tunes the simulation.
type Config struct {
	Delay            time.Duration
	JWTSecret        string
	MagicLinkTTL     time.Duration
	MagicLinkBaseURL string
	// BcryptCost applies to the demo account hashes; zero means bcrypt.DefaultCost.
	BcryptCost int
}

// Repositories groups the stores the mock backend reads and writes.
type Repositories struct {
	Projects    repository.ProjectRepository
	Files       repository.FileRepository
	Deployments repository.DeploymentRepository
	Sessions    repository.SessionRepository
}

type account struct {
	hash []byte
	user domain.User
}

// Service is the simulated backend.
type Service struct {
	repos    Repositories
	pipeline *deploy.Pipeline
	clock    clock.Clock
	logger   *slog.Logger
	cfg      Config
	accounts map[string]account
	newID    func() string

	// mu serializes multi-collection writes (cascades and project bumps).
	mu sync.Mutex
}

// New hashes the demo credentials and returns the service.
func New(repos Repositories, pipeline *deploy.Pipeline, clk clock.Clock, logger *slog.Logger, cfg Config) (*Service, error) {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MagicLinkTTL <= 0 {
		cfg.MagicLinkTTL = 15 * time.Minute
	}
	if cfg.MagicLinkBaseURL == "" {
		cfg.MagicLinkBaseURL = "https://create.xyz/auth/magic"
	}
	s := &Service{
		repos:    repos,
		pipeline: pipeline,
		clock:    clk,
		logger:   logger.With("component", "mock_api"),
		cfg:      cfg,
		accounts: make(map[string]account),
		newID:    uuid.NewString,
	}
	for _, role := range []string{domain.RoleAdmin, domain.RoleUser} {
		user, _ := domain.DemoUser(role)
		hash, err := crypto.HashPassword(DemoPassword, cfg.BcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash demo password: %w", err)
		}
		s.accounts[user.Email] = account{hash: hash, user: user}
	}
	return s, nil
}

func (s *Service) wait(ctx context.Context) error {
	return s.clock.Sleep(ctx, s.cfg.Delay)
}

func (s *Service) waitFast(ctx context.Context) error {
	return s.clock.Sleep(ctx, s.cfg.Delay/2)
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

func localPart(email string) string {
	name, _, _ := strings.Cut(email, "@")
	return name
}

func validEmail(email string) bool {
	name, domainPart, ok := strings.Cut(strings.TrimSpace(email), "@")
	return ok && name != "" && domainPart != ""
}
