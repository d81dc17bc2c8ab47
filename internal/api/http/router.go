package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/studio-desk/internal/api/http/handlers"
	"github.com/spec-kit/studio-desk/internal/auth"
	"github.com/spec-kit/studio-desk/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Files          *handlers.FilesHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Role checks beyond authentication live in
// the services; the admin group is additionally guarded here.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/password/reset/request", cfg.Auth.RequestPasswordReset)
	authGroup.Post("/password/reset/confirm", cfg.Auth.ConfirmPasswordReset)

	authenticated := cfg.AuthMiddleware.Handle
	authGroup.Get("/me", authenticated, cfg.Auth.Me)
	authGroup.Post("/password/change", authenticated, cfg.Auth.ChangePassword)

	tickets := app.Group("/tickets", authenticated)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Delete("/:id", cfg.Tickets.DeleteTicket)
	tickets.Get("/:id/history", cfg.Tickets.History)
	tickets.Post("/:id/claim", auth.RequireRole(domain.RoleEditor), cfg.Tickets.ClaimTicket)
	tickets.Put("/:id/assignee", auth.RequireRole(domain.RoleAdmin, domain.RoleEditor), cfg.Tickets.AssignTicket)
	tickets.Get("/:id/files", cfg.Files.List)
	tickets.Post("/:id/files", cfg.Files.Upload)

	files := app.Group("/files", authenticated)
	files.Get("/:id/download", cfg.Files.Download)
	files.Delete("/:id", cfg.Files.Delete)

	app.Get("/dashboard", authenticated, cfg.Tickets.Dashboard)

	admin := app.Group("/admin", authenticated, auth.RequireRole(domain.RoleAdmin))
	admin.Get("/users", cfg.Users.ListUsers)
	admin.Post("/users", cfg.Users.CreateUser)
	admin.Get("/users/:id", cfg.Users.GetUser)
	admin.Patch("/users/:id", cfg.Users.UpdateUser)
	admin.Delete("/users/:id", cfg.Users.DeleteUser)
	admin.Get("/roles", cfg.Users.ListRoles)
	admin.Post("/roles", cfg.Users.CreateRole)
	admin.Patch("/roles/:id", cfg.Users.UpdateRole)
	admin.Delete("/roles/:id", cfg.Users.DeleteRole)
}
