package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/modelforge/waitlist/internal/middleware"
)

// RouterConfig collects everything the HTTP surface is built from.
type RouterConfig struct {
	Logger       *slog.Logger
	Handler      *Handler
	Health       *HealthHandler
	Metrics      *MetricsHandler
	Signups      *SignupHandler
	Broadcast    http.Handler
	Security     middleware.SecurityConfig
	CORS         middleware.CORSConfig
	MaxBodyBytes int64
	RateLimit    middleware.RateLimitConfig
	AdminAuth    middleware.AdminAuthConfig
}

// NewRouter wires handlers and middleware into a chi router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.Security(cfg.Security))
	r.Use(middleware.CORS(cfg.CORS))

	r.Get("/healthz", cfg.Health.Healthz)
	r.Get("/readyz", cfg.Health.Readyz)
	if cfg.Metrics != nil {
		r.Get("/metrics", cfg.Metrics.Metrics)
	}
	r.Get("/", cfg.Handler.Hello)

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 10
	}

	r.With(
		middleware.MaxBodySize(maxBody),
		middleware.RateLimitSignup(cfg.RateLimit),
	).Post("/signups", cfg.Signups.Submit)
	r.Get("/count", cfg.Signups.Count)
	r.With(middleware.AdminAuth(cfg.AdminAuth)).Get("/signups", cfg.Signups.List)

	if cfg.Broadcast != nil {
		r.Method(http.MethodGet, "/ws", cfg.Broadcast)
	}

	r.NotFound(cfg.Handler.NotFound)
	r.MethodNotAllowed(cfg.Handler.MethodNotAllowed)

	return r
}
