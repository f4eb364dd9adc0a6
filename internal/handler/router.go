package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/fitmeta/fitmeta-api/internal/metrics"
	"github.com/fitmeta/fitmeta-api/internal/middleware"
)

// RouterConfig wires the HTTP surface. When Auth is nil the auth routes are
// not mounted and only /health and /metrics are served.
type RouterConfig struct {
	Auth    *AuthHandler
	Tokens  middleware.TokenValidator
	Limiter middleware.Limiter
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// NewRouter builds the chi router for the API.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics(cfg.Metrics))
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	if cfg.Auth == nil {
		return r
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if cfg.Limiter != nil {
				r.Use(middleware.RateLimit(cfg.Limiter, cfg.Metrics, logger))
			}
			r.Post("/register", cfg.Auth.HandleRegister)
			r.Post("/login", cfg.Auth.HandleLogin)
			r.Post("/forgot-password", cfg.Auth.HandleForgotPassword)
			r.Post("/reset-password", cfg.Auth.HandleResetPassword)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTAuth(cfg.Tokens))
			r.Get("/profile", cfg.Auth.HandleProfile)
		})
	})

	return r
}
