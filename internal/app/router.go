package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sentimentplus/gateway/internal/auth"
	"github.com/sentimentplus/gateway/internal/observability"
	"github.com/sentimentplus/gateway/internal/platform/httpx"
	"github.com/sentimentplus/gateway/internal/sentiment"
	"github.com/sentimentplus/gateway/internal/users"
	"github.com/sentimentplus/gateway/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Tokens           *auth.TokenManager
	AuthHandler      *auth.Handler
	UsersHandler     *users.Handler
	SentimentHandler *sentiment.Handler
	JobsHandler      *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter assembles the gateway's HTTP surface.
func NewRouter(params RouterParams) chi.Router {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// JSON API. Claims are decoded once for the subtree; each group layers
	// its own requirement on top.
	r.Route("/api", func(r chi.Router) {
		r.Use(params.Tokens.Authenticate)
		params.AuthHandler.MountAPIRoutes(r)

		r.Route("/sentiment", func(r chi.Router) {
			r.Use(auth.RequireSession)
			params.SentimentHandler.MountAPIRoutes(r)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Route("/users", params.UsersHandler.MountRoutes)
			params.SentimentHandler.MountAdminAPIRoutes(r)
			if params.JobsHandler != nil {
				r.Route("/jobs", params.JobsHandler.MountRoutes)
			}
		})
	})

	// Browser-facing provider flow.
	r.Route("/auth", params.AuthHandler.MountOAuthRoutes)

	// Page-area data endpoints go through the redirect guard, so an
	// anonymous navigation lands on /login and a wrong-role navigation
	// lands on the caller's own dashboard.
	r.Group(func(r chi.Router) {
		r.Use(params.Tokens.Guard)
		// The auth pages themselves are client-rendered; registering them
		// here puts an authenticated navigation to /login or /register
		// through the guard, which bounces it to the caller's dashboard.
		r.Get("/login", pageHandler("login"))
		r.Get("/register", pageHandler("register"))
		r.Route("/user", params.SentimentHandler.MountUserPages)
		r.Route("/admin", params.SentimentHandler.MountAdminPages)
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}

func pageHandler(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"page": name})
	}
}
