package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bixapp/bix/internal/accounts"
	"github.com/bixapp/bix/internal/auth"
	"github.com/bixapp/bix/internal/catalog"
	"github.com/bixapp/bix/internal/config"
	"github.com/bixapp/bix/internal/db"
	"github.com/bixapp/bix/internal/handlers"
	"github.com/bixapp/bix/internal/inbox"
	"github.com/bixapp/bix/internal/middleware"
	"github.com/bixapp/bix/internal/repositories"
	"github.com/bixapp/bix/internal/storage"
	"github.com/bixapp/bix/internal/upload"
)

const sessionSweepInterval = time.Hour

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The returned cleanup stops background work.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, func(context.Context) error, error) {
	sessionStore := repositories.NewPostgresSessionStore(pool)
	users := repositories.NewPostgresUserRepository(pool)
	videos := repositories.NewPostgresVideoRepository(pool)

	sessions := auth.NewManager([]byte(cfg.JWTSecret), cfg.AccessTokenTTL, cfg.RefreshTokenTTL, sessionStore)

	seed, err := catalog.Seed()
	if err != nil {
		return handlers.Dependencies{}, nil, err
	}
	profiles, err := catalog.SeedProfiles()
	if err != nil {
		return handlers.Dependencies{}, nil, err
	}

	objects, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
	if err != nil {
		return handlers.Dependencies{}, nil, fmt.Errorf("configure object storage: %w", err)
	}

	deps := handlers.Dependencies{
		Logger: logger,
		Accounts: &accounts.Service{
			Users:         users,
			Tokens:        sessions,
			SignupEnabled: cfg.SignupEnabled,
		},
		Sessions:    sessions,
		AuthLimiter: middleware.NewIPRateLimiter(cfg.AuthRateLimit.Requests, cfg.AuthRateLimit.Window, cfg.AuthRateLimit.Burst, 10*time.Minute),
		Library:     catalog.NewLibrary(seed, videos, 0),
		Profiles:    profiles,
		Uploads: &upload.Service{
			Objects:  objects,
			Videos:   videos,
			MaxBytes: cfg.MaxUploadBytes,
		},
		MaxUploadBytes: cfg.MaxUploadBytes,
		Inbox:          &inbox.Service{Store: repositories.NewPostgresInboxRepository(pool)},
	}
	if pinger, ok := pool.(handlers.Pinger); ok {
		deps.DB = pinger
	}

	sweeper := newSessionSweeper(sessionStore, sessionSweepInterval, logger)
	sweeper.Start()

	return deps, sweeper.Stop, nil
}
