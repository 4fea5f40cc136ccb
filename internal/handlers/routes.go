package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bixapp/bix/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Logger         *slog.Logger
	DB             Pinger
	Accounts       AccountService
	Sessions       SessionManager
	AuthLimiter    middleware.RateLimiter
	Library        CatalogSource
	Profiles       ProfileDirectory
	Uploads        VideoUploader
	MaxUploadBytes int64
	Inbox          InboxService
}

// NewRouter wires every HTTP endpoint.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	health := HealthHandler{DB: deps.DB}
	authn := AuthHandler{Accounts: deps.Accounts, Sessions: deps.Sessions}
	videos := VideoHandler{Library: deps.Library, Accounts: deps.Accounts, Uploads: deps.Uploads, MaxUploadBytes: deps.MaxUploadBytes}
	profiles := ProfileHandler{Library: deps.Library, Profiles: deps.Profiles}
	inbox := InboxHandler{Inbox: deps.Inbox}

	requireUser := func(next http.Handler) http.Handler {
		if deps.Sessions == nil {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				respondError(r.Context(), w, http.StatusInternalServerError, "session service unavailable")
			})
		}
		return middleware.Authenticate(deps.Sessions)(next)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(logger))

	r.Get("/healthz", health.Handle)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(deps.AuthLimiter, "auth"))
				r.Post("/signup", authn.SignUp)
				r.Post("/login", authn.Login)
				r.Post("/password-reset", authn.RequestPasswordReset)
			})
			r.Post("/refresh", authn.Refresh)
			r.Post("/logout", authn.Logout)
			r.With(requireUser).Get("/me", authn.Me)
		})

		r.Route("/videos", func(r chi.Router) {
			r.Get("/", videos.Feed)
			r.Get("/search", videos.Search)
			r.Get("/discover", videos.Discover)
			r.Get("/{id}", videos.Get)
			r.With(requireUser).Post("/", videos.Upload)
		})

		r.Get("/profiles/{handle}", profiles.Get)

		r.Route("/inbox", func(r chi.Router) {
			r.Use(requireUser)
			r.Get("/conversations", inbox.Conversations)
			r.Get("/conversations/{id}/messages", inbox.Messages)
			r.Post("/conversations/{id}/messages", inbox.Send)
			r.Get("/notifications", inbox.Notifications)
		})
	})

	return r
}
