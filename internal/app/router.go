package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/cloven/rbac-admin/internal/auth"
	"github.com/cloven/rbac-admin/internal/observability"
	"github.com/cloven/rbac-admin/internal/platform/httpx"
	"github.com/cloven/rbac-admin/internal/rbac"
	"github.com/cloven/rbac-admin/internal/roles"
	"github.com/cloven/rbac-admin/internal/users"
)

// HealthCheck probes a backing service. A nil check always passes.
type HealthCheck func(ctx context.Context) error

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	AuthHandler        *auth.Handler
	Authenticator      auth.Authenticator
	UsersHandler       *users.Handler
	RolesHandler       *roles.Handler
	PermissionsHandler *rbac.PermissionsHandler
	Metrics            *observability.Metrics
	Health             map[string]HealthCheck
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	if !InTestMode() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", healthHandler(params.Logger, params.Health))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Post("/api/auth/signin", params.AuthHandler.HandleLogin)

	r.Route("/api", func(r chi.Router) {
		r.Use(params.Authenticator.Middleware)
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.RolesHandler != nil {
			r.Route("/roles", params.RolesHandler.MountRoutes)
		}
		if params.PermissionsHandler != nil {
			r.Route("/permissions", params.PermissionsHandler.MountPermissionRoutes)
			r.Route("/resources", params.PermissionsHandler.MountResourceRoutes)
			r.Route("/actions", params.PermissionsHandler.MountActionRoutes)
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpx.Fail(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpx.Fail(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

// healthHandler reports each dependency as "ok" or "down". Failure details go to
// the log only.
func healthHandler(logger *slog.Logger, checks map[string]HealthCheck) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := http.StatusOK
		report := map[string]string{"status": "ok"}
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				report["status"] = "degraded"
				report[name] = "down"
				logger.Error("health check failed", slog.String("dependency", name), slog.Any("error", err))
				continue
			}
			report[name] = "ok"
		}
		httpx.JSON(w, status, report)
	}
}
