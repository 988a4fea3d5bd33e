package mockapi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/Fallenproud/create.xyzdashboard/internal/domain"
	"github.com/Fallenproud/create.xyzdashboard/internal/repository"
	"github.com/Fallenproud/create.xyzdashboard/pkg/crypto"
	"github.com/Fallenproud/create.xyzdashboard/pkg/jwt"
)

// Simulated token scheme.
const (
	DemoPassword = "password"
	TokenPrefix  = "simulated-jwt-token-"
	TokenAdmin   = TokenPrefix + domain.RoleAdmin
	TokenUser    = TokenPrefix + domain.RoleUser
)

// Login checks the demo credentials and stores the issued token. The email
// must match a demo account exactly.
func (s *Service) Login(ctx context.Context, email, password string) (domain.User, error) {
	if err := s.wait(ctx); err != nil {
		return domain.User{}, err
	}
	acct, ok := s.accounts[email]
	if !ok || crypto.ComparePassword(acct.hash, password) != nil {
		s.logger.Info("login rejected", "email", email)
		return domain.User{}, ErrInvalidCredentials
	}
	user := acct.user
	user.Token = TokenPrefix + user.Role
	if err := s.repos.Sessions.SaveToken(ctx, user.Token); err != nil {
		return domain.User{}, err
	}
	s.logger.Info("login succeeded", "user_id", user.ID)
	return user, nil
}

// MagicLink mints a signed sign-in link for email.
func (s *Service) MagicLink(email string) (string, error) {
	if !validEmail(email) {
		return "", ErrInvalidEmail
	}
	token, err := jwt.GenerateMagicLinkToken(strings.TrimSpace(email), s.cfg.JWTSecret, s.now(), s.cfg.MagicLinkTTL)
	if err != nil {
		return "", fmt.Errorf("sign magic link: %w", err)
	}
	return s.cfg.MagicLinkBaseURL + "?token=" + url.QueryEscape(token), nil
}

// RequestMagicLink pretends to email a sign-in link. The link is logged instead.
func (s *Service) RequestMagicLink(ctx context.Context, email string) (bool, error) {
	if err := s.wait(ctx); err != nil {
		return false, err
	}
	link, err := s.MagicLink(email)
	if err != nil {
		return false, err
	}
	s.logger.Info("magic link issued", "email", email, "link", link)
	return true, nil
}

// VerifyMagicLink exchanges a magic link token for a session.
func (s *Service) VerifyMagicLink(ctx context.Context, token string) (domain.User, error) {
	if err := s.wait(ctx); err != nil {
		return domain.User{}, err
	}
	user, ok := s.magicLinkUser(token)
	if !ok {
		return domain.User{}, ErrInvalidMagicLink
	}
	if err := s.repos.Sessions.SaveToken(ctx, user.Token); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// LoginWithOAuth fabricates a provider account. It never fails for a named provider.
func (s *Service) LoginWithOAuth(ctx context.Context, provider string) (domain.User, error) {
	if err := s.wait(ctx); err != nil {
		return domain.User{}, err
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return domain.User{}, ErrInvalidProvider
	}
	user := oauthUser(provider)
	if err := s.repos.Sessions.SaveToken(ctx, user.Token); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// Logout forgets the stored token.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	return s.repos.Sessions.ClearToken(ctx)
}

// CheckAuth rebuilds the user behind the stored token. A nil user means signed out.
func (s *Service) CheckAuth(ctx context.Context) (*domain.User, error) {
	if err := s.waitFast(ctx); err != nil {
		return nil, err
	}
	token, err := s.repos.Sessions.LoadToken(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	user, ok := s.ResolveToken(token)
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// ResolveToken maps a token onto its user without any delay.
func (s *Service) ResolveToken(token string) (domain.User, bool) {
	switch token {
	case TokenAdmin, TokenUser:
		user, _ := domain.DemoUser(strings.TrimPrefix(token, TokenPrefix))
		user.Token = token
		return user, true
	}
	if provider, ok := strings.CutPrefix(token, TokenPrefix); ok && provider != "" {
		return oauthUser(provider), true
	}
	return s.magicLinkUser(token)
}

func (s *Service) magicLinkUser(token string) (domain.User, bool) {
	if token == "" || s.cfg.JWTSecret == "" {
		return domain.User{}, false
	}
	claims, err := jwt.ParseMagicLinkToken(token, s.cfg.JWTSecret, s.now())
	if err != nil {
		s.logger.Debug("magic link rejected", "error", err)
		return domain.User{}, false
	}
	issued := s.now()
	if claims.IssuedAt != nil {
		issued = claims.IssuedAt.Time
	}
	return domain.User{
		ID:    fmt.Sprintf("user-%d", issued.UnixMilli()),
		Email: claims.Email,
		Name:  localPart(claims.Email),
		Role:  domain.RoleUser,
		Token: token,
	}, true
}

func oauthUser(provider string) domain.User {
	return domain.User{
		ID:    provider + "-user-1",
		Email: "user@" + provider + ".com",
		Name:  capitalize(provider) + " User",
		Role:  domain.RoleUser,
		Token: TokenPrefix + provider,
	}
}

func capitalize(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
