package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Fallenproud/create.xyzdashboard/internal/domain"
	"github.com/Fallenproud/create.xyzdashboard/internal/repository"
	"github.com/Fallenproud/create.xyzdashboard/internal/service/mockapi"
	"github.com/Fallenproud/create.xyzdashboard/pkg/clock"
)

// User-visible failure messages.
const (
	MessageInvalidCredentials = "Invalid credentials"
	MessageLoginFailed        = "Login failed"
	MessageInvalidMagicLink   = "Magic link is invalid or expired"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrUnknownRole      = errors.New("unknown demo role")
	ErrInvalidEmail     = errors.New("a valid email address is required")
)

// Backend is the remote authentication surface.
type Backend interface {
	Login(ctx context.Context, email, password string) (domain.User, error)
	LoginWithOAuth(ctx context.Context, provider string) (domain.User, error)
	RequestMagicLink(ctx context.Context, email string) (bool, error)
	VerifyMagicLink(ctx context.Context, token string) (domain.User, error)
	Logout(ctx context.Context) error
	CheckAuth(ctx context.Context) (*domain.User, error)
	ResolveToken(token string) (domain.User, bool)
}

// Session holds the signed-in user of this process.
type Session struct {
	mu        sync.RWMutex
	user      *domain.User
	lastError string
	loading   bool

	backend  Backend
	sessions repository.SessionRepository
	clock    clock.Clock
	logger   *slog.Logger
}

// NewSession returns an unauthenticated session. Call Restore to pick up a stored one.
func NewSession(backend Backend, sessions repository.SessionRepository, clk clock.Clock, logger *slog.Logger) *Session {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{backend: backend, sessions: sessions, clock: clk, logger: logger.With("component", "auth_session")}
}

// Restore reloads the session from the stored user blob, falling back to the stored token.
func (s *Session) Restore(ctx context.Context) error {
	user, err := s.sessions.LoadUser(ctx)
	switch {
	case err == nil:
		s.set(user)
		s.logger.Info("session restored", "user_id", user.ID)
		return nil
	case !errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("load session: %w", err)
	}

	checked, err := s.backend.CheckAuth(ctx)
	if err != nil {
		return fmt.Errorf("check auth: %w", err)
	}
	if checked == nil {
		return nil
	}
	if err := s.sessions.SaveUser(ctx, *checked); err != nil {
		return err
	}
	s.set(checked)
	s.logger.Info("session restored from token", "user_id", checked.ID)
	return nil
}

// Login authenticates with email and password.
func (s *Session) Login(ctx context.Context, email, password string) (domain.User, error) {
	return s.attempt(ctx, func() (domain.User, error) {
		return s.backend.Login(ctx, email, password)
	})
}

// LoginWithEmail signs in with an email address only, fabricating a regular user.
func (s *Session) LoginWithEmail(ctx context.Context, email string) (domain.User, error) {
	return s.attempt(ctx, func() (domain.User, error) {
		email = strings.TrimSpace(email)
		name, host, ok := strings.Cut(email, "@")
		if !ok || name == "" || host == "" {
			return domain.User{}, ErrInvalidEmail
		}
		return domain.User{
			ID:    fmt.Sprintf("user-%d", s.clock.Now().UnixMilli()),
			Email: email,
			Name:  name,
			Role:  domain.RoleUser,
		}, nil
	})
}

// LoginWithDemo signs in as one of the fixture accounts.
func (s *Session) LoginWithDemo(ctx context.Context, role string) (domain.User, error) {
	return s.attempt(ctx, func() (domain.User, error) {
		user, ok := domain.DemoUser(role)
		if !ok {
			return domain.User{}, ErrUnknownRole
		}
		user.Token = mockapi.TokenPrefix + user.Role
		if err := s.sessions.SaveToken(ctx, user.Token); err != nil {
			return domain.User{}, err
		}
		return user, nil
	})
}

// LoginWithOAuth signs in through a simulated provider.
func (s *Session) LoginWithOAuth(ctx context.Context, provider string) (domain.User, error) {
	return s.attempt(ctx, func() (domain.User, error) {
		return s.backend.LoginWithOAuth(ctx, provider)
	})
}

// RequestMagicLink asks the backend to send a sign-in link. The session is unchanged.
func (s *Session) RequestMagicLink(ctx context.Context, email string) error {
	_, err := s.backend.RequestMagicLink(ctx, email)
	if err != nil {
		s.setError(MessageLoginFailed)
	}
	return err
}

// CompleteMagicLink exchanges a magic link token for a session.
func (s *Session) CompleteMagicLink(ctx context.Context, token string) (domain.User, error) {
	return s.attempt(ctx, func() (domain.User, error) {
		return s.backend.VerifyMagicLink(ctx, token)
	})
}

// Logout clears the session blob and token.
func (s *Session) Logout(ctx context.Context) error {
	var errs []error
	if err := s.backend.Logout(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.sessions.ClearUser(ctx); err != nil {
		errs = append(errs, err)
	}
	s.mu.Lock()
	s.user = nil
	s.lastError = ""
	s.mu.Unlock()
	s.logger.Info("session cleared")
	return errors.Join(errs...)
}

// Current returns the signed-in user.
func (s *Session) Current() (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return domain.User{}, false
	}
	return *s.user, true
}

// CurrentUserID returns the signed-in user's ID, or "" when signed out.
func (s *Session) CurrentUserID() string {
	user, _ := s.Current()
	return user.ID
}

// IsAuthenticated reports whether a user is signed in.
func (s *Session) IsAuthenticated() bool {
	_, ok := s.Current()
	return ok
}

// Loading reports whether a login attempt is in flight.
func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// LastError returns the message of the most recent failed attempt.
func (s *Session) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// Authorize resolves a bearer token to a user. The current session's own
// token is always accepted.
func (s *Session) Authorize(token string) (domain.User, error) {
	if token == "" {
		return domain.User{}, ErrNotAuthenticated
	}
	if current, ok := s.Current(); ok && current.Token != "" && current.Token == token {
		return current, nil
	}
	if user, ok := s.backend.ResolveToken(token); ok {
		return user, nil
	}
	return domain.User{}, ErrNotAuthenticated
}

func (s *Session) attempt(ctx context.Context, fn func() (domain.User, error)) (domain.User, error) {
	s.mu.Lock()
	s.loading = true
	s.lastError = ""
	s.mu.Unlock()

	user, err := fn()

	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()

	if err != nil {
		s.setError(messageFor(err))
		s.logger.Info("login attempt failed", "error", err)
		return domain.User{}, err
	}
	if err := s.sessions.SaveUser(ctx, user); err != nil {
		s.setError(MessageLoginFailed)
		return domain.User{}, fmt.Errorf("save session: %w", err)
	}
	s.set(&user)
	s.logger.Info("signed in", "user_id", user.ID, "role", user.Role)
	return user, nil
}

func (s *Session) set(user *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *user
	s.user = &copied
	s.lastError = ""
}

func (s *Session) setError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = msg
}

func messageFor(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return MessageLoginFailed
	case errors.Is(err, mockapi.ErrInvalidMagicLink):
		return MessageInvalidMagicLink
	case errors.Is(err, mockapi.ErrInvalidCredentials):
		return MessageInvalidCredentials
	}
	return MessageLoginFailed
}
