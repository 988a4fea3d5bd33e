package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	httpx "github.com/Fallenproud/create.xyzdashboard/internal/http"
	"github.com/Fallenproud/create.xyzdashboard/internal/repository/kvstore"
	"github.com/Fallenproud/create.xyzdashboard/internal/service/assistant"
	"github.com/Fallenproud/create.xyzdashboard/internal/service/auth"
	"github.com/Fallenproud/create.xyzdashboard/internal/service/collab"
	"github.com/Fallenproud/create.xyzdashboard/internal/service/deploy"
	"github.com/Fallenproud/create.xyzdashboard/internal/service/mockapi"
	"github.com/Fallenproud/create.xyzdashboard/internal/service/project"
	"github.com/Fallenproud/create.xyzdashboard/internal/storage"
	"github.com/Fallenproud/create.xyzdashboard/internal/ws"
	"github.com/Fallenproud/create.xyzdashboard/pkg/clock"
	"github.com/Fallenproud/create.xyzdashboard/pkg/config"
)

// App is the assembled API process.
type App struct {
	Router   *httpx.Router
	Store    storage.Store
	Hub      *ws.Hub
	Session  *auth.Session
	Projects *project.Service
	Collab   *collab.Container
}

// Options overrides process-wide dependencies, mostly for tests.
type Options struct {
	Clock   clock.Clock
	Store   storage.Store
	Limiter httpx.RateLimiter
	// BcryptCost applies to the demo account hashes; zero means the default cost.
	BcryptCost int
}

// New wires storage, services and the router. The stored session is
// restored before the router is returned.
func New(ctx context.Context, cfg config.APIConfig, log *slog.Logger, opts Options) (*App, error) {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	store := opts.Store
	if store == nil {
		var err error
		store, err = OpenStore(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
	}

	repo := kvstore.New(store, log)
	hub := ws.NewHub()
	pipeline := deploy.NewPipeline(clk, log,
		deploy.WithHostSuffix(cfg.DeployHostSuffix),
		deploy.WithNotifier(hub),
	)

	mock, err := mockapi.New(mockapi.Repositories{Projects: repo, Files: repo, Deployments: repo, Sessions: repo},
		pipeline, clk, log, mockapi.Config{
			Delay:            cfg.SimulatedDelay,
			JWTSecret:        cfg.JWTSecret,
			MagicLinkTTL:     cfg.MagicLinkTTL,
			MagicLinkBaseURL: cfg.MagicLinkBaseURL,
			BcryptCost:       opts.BcryptCost,
		})
	if err != nil {
		hub.Close()
		return nil, fmt.Errorf("mock api: %w", err)
	}

	session := auth.NewSession(mock, repo, clk, log)
	if err := session.Restore(ctx); err != nil {
		log.Warn("session restore failed", "error", err)
	}

	projects, err := project.New(ctx, repo, repo, repo, pipeline, clk, log,
		project.WithOwnerResolver(httpx.OwnerResolver(session.CurrentUserID)))
	if err != nil {
		hub.Close()
		return nil, fmt.Errorf("load projects: %w", err)
	}

	container := collab.New(mock, clk, log,
		collab.WithPollInterval(cfg.CollabPollInterval),
		collab.WithNotifier(hub),
	)

	limiter := opts.Limiter
	if limiter == nil {
		if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
			redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
			if err != nil {
				log.Warn("redis rate limiter unavailable", "error", err)
			} else {
				limiter = redisLimiter
			}
		}
	}

	router := httpx.NewRouter(log, clk, httpx.Services{
		Session:   session,
		Projects:  projects,
		Mock:      mock,
		Collab:    container,
		Assistant: assistant.New(clk, assistant.DefaultTypingDelay),
		Hub:       hub,
	}, limiter, store.Ping)

	return &App{
		Router:   router,
		Store:    store,
		Hub:      hub,
		Session:  session,
		Projects: projects,
		Collab:   container,
	}, nil
}

// Close stops background work and releases the store.
func (a *App) Close() error {
	a.Collab.EndCollaborationSession()
	a.Router.Close()
	a.Hub.Close()
	return a.Store.Close()
}
