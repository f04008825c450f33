package main

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/user/ficticia-go/apperror"
	"github.com/user/ficticia-go/auth"
	"github.com/user/ficticia-go/config"
	"github.com/user/ficticia-go/logging"
	"github.com/user/ficticia-go/observability"
	"github.com/user/ficticia-go/users"
)

// routerDeps are the already-built components the HTTP layer is assembled from.
type routerDeps struct {
	Server   config.ServerConfig
	Logger   *slog.Logger
	Auth     *auth.Handlers
	Users    *users.UserHandlers
	Codec    auth.TokenCodec
	Resolver auth.PrincipalResolver
	Metrics  *observability.Metrics
	Registry *prometheus.Registry
}

// newRouter wires middleware and routes.
// Chi requires all middleware to be registered before any routes.
func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(d.Logger))
	r.Use(recoverer(d.Logger))
	if d.Server.RequestTimeout > 0 {
		r.Use(middleware.Timeout(d.Server.RequestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	// Identity is resolved for every request; individual routes decide whether it is required.
	r.Use(auth.Authenticator(d.Codec, d.Resolver, d.Logger))

	if d.Registry != nil {
		r.Handle("/metrics", observability.Handler(d.Registry))
	}

	// The web client calls /api/auth/..., older clients call /auth/...; both are served.
	api := func(r chi.Router) {
		r.Get("/health", handleHealth)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", d.Auth.HandleLogin())
			r.Post("/register", d.Auth.HandleRegister())
			r.Post("/password/forgot", d.Auth.HandleForgotPassword())
			r.Post("/password/reset", d.Auth.HandleResetPassword())
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(auth.RequireAuth(d.Metrics))
			r.Get("/me", d.Users.HandleGetProfile())
			r.Put("/me", d.Users.HandleUpdateProfile())
		})
	}
	r.Group(api)
	r.Route("/api", api)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		auth.WriteError(w, r, apperror.NewNotFoundError("resource not found", nil))
	})
	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	auth.WriteJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}

// recoverer turns a handler panic into the standard 500 error body.
func recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				logger.ErrorContext(r.Context(), "panic recovered",
					"panic", rvr,
					"path", r.URL.Path,
					"request_id", middleware.GetReqID(r.Context()),
					"stack", string(debug.Stack()),
				)
				auth.WriteError(w, r, apperror.NewInternalError("an unexpected error occurred", nil))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
