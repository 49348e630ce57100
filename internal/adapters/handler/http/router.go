package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vncsmyrnk/jessica-auth/internal/core/domain"
	"github.com/vncsmyrnk/jessica-auth/internal/core/ports"
	"github.com/vncsmyrnk/jessica-auth/internal/metrics"
)

func NewHandler(authService ports.AuthService, authHandler *AuthHandler, userHandler *UserHandler, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(CORS(allowedOrigins))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", Health)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.Post("/register", authHandler.Register)
			r.Post("/refresh", authHandler.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(Authenticator(authService))

				r.Get("/user-info", authHandler.UserInfo)
				r.Get("/logout", authHandler.Logout)
				r.Post("/logout", authHandler.Logout)
				r.Get("/roles", authHandler.Roles)

				r.Group(func(r chi.Router) {
					r.Use(RequireRole(domain.RoleAdmin))

					r.Post("/users/{id}/deactivate", userHandler.Deactivate)
					r.Post("/users/{id}/roles", userHandler.AssignRole)
				})
			})
		})
	})

	return r
}
