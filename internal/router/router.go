package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/FACorreiaa/go-blogr-api/internal/api"
	"github.com/FACorreiaa/go-blogr-api/internal/api/auth"
	"github.com/FACorreiaa/go-blogr-api/internal/api/user"
)

// Config contains dependencies needed for the router setup
type Config struct {
	AuthHandler *auth.AuthHandler
	UserHandler user.Handler
	// AuthenticateMiddleware resolves bearer tokens on every API route.
	AuthenticateMiddleware func(http.Handler) http.Handler
	AllowedOrigins         []string
	// OTPRateLimit caps forgot/reset-password requests per client IP.
	// Zero disables the limit.
	OTPRateLimit  int
	OTPRateWindow time.Duration
}

// SetupRouter initializes and configures the main application router.
// Server-wide middleware (logger, request id, recoverer) is applied in
// main.go before mounting this router.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.ErrorResponse(w, r, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		api.ErrorResponse(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api/v1/accounts", func(r chi.Router) {
		if cfg.AuthenticateMiddleware != nil {
			r.Use(cfg.AuthenticateMiddleware)
		}

		// --- Public Routes ---
		r.Group(func(r chi.Router) {
			r.Post("/register", cfg.AuthHandler.Register)
			r.Post("/login", cfg.AuthHandler.Login)
		})

		// --- One-time code routes, rate limited per IP ---
		r.Group(func(r chi.Router) {
			if cfg.OTPRateLimit > 0 {
				r.Use(httprate.Limit(cfg.OTPRateLimit, cfg.OTPRateWindow,
					httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
					httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
						api.ErrorResponse(w, r, http.StatusTooManyRequests, "too many requests")
					}),
				))
			}
			r.Post("/forgot-password", cfg.AuthHandler.ForgotPassword)
			r.Post("/reset-password", cfg.AuthHandler.ResetPassword)
		})

		// --- Protected Routes ---
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth)

			r.Get("/account", cfg.UserHandler.GetAccount)
			r.Put("/account", cfg.UserHandler.UpdateAccount)
			r.Delete("/account", cfg.UserHandler.DeleteAccount)
			r.Get("/follow/{username}", cfg.UserHandler.Follow)
			r.Get("/unfollow/{username}", cfg.UserHandler.Unfollow)
		})
	})

	return r
}
