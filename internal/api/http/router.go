package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-portal/internal/api/http/handlers"
	"github.com/spec-kit/ticket-portal/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Admin          *handlers.AdminTicketsHandler
	AuthMiddleware *auth.AuthMiddleware
	// LoginLimiter guards the login endpoint. Nil disables it.
	LoginLimiter fiber.Handler
}

// RegisterRoutes wires the health probes and the JSON API.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	health := app.Group("/health")
	health.Get("/live", cfg.Health.Live)
	health.Get("/ready", cfg.Health.Ready)
	health.Get("/metrics", cfg.Health.Metrics)

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/signup", cfg.Auth.Signup)
	if cfg.LoginLimiter != nil {
		authGroup.Post("/login", cfg.LoginLimiter, cfg.Auth.Login)
	} else {
		authGroup.Post("/login", cfg.Auth.Login)
	}
	authGroup.Post("/logout", cfg.AuthMiddleware.Handle, cfg.Auth.Logout)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, auth.RequireAnyRole(), cfg.Auth.Me)

	tickets := api.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequireUser())
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/reopen", cfg.Tickets.ReopenTicket)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)

	admin := api.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireAdmin())
	admin.Get("/stats", cfg.Admin.Stats)
	admin.Get("/dashboard", cfg.Admin.Dashboard)
	admin.Get("/tickets", cfg.Admin.ListTickets)
	admin.Get("/tickets/:id", cfg.Admin.GetTicket)
	admin.Post("/tickets/:id/resolve", cfg.Admin.Resolve)
	admin.Post("/tickets/:id/discard", cfg.Admin.Discard)
	admin.Post("/tickets/:id/replies", cfg.Admin.Reply)
}
