package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/api/http/handlers"
	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Auth    *handlers.AuthHandler
	Users   *handlers.UsersHandler
	Session *auth.SessionResolver
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/request-password-reset", cfg.Auth.RequestPasswordReset)
	authGroup.Post("/reset-password", cfg.Auth.ResetPassword)
	authGroup.Get("/verify-email", cfg.Auth.VerifyEmail)
	authGroup.Post("/resend-verification",
		cfg.Session.Handle, auth.RequireAuthenticated(), cfg.Auth.ResendVerification)

	users := app.Group("/users", cfg.Session.Handle, auth.RequireAuthenticated())
	users.Get("/", auth.RequireRole(domain.RoleAdmin), cfg.Users.List)
	users.Get("/:id", auth.RequireSelfOrAdmin("id"), cfg.Users.Get)
	users.Patch("/:id", auth.RequireSelfOrAdmin("id"), cfg.Users.Update)
	users.Delete("/:id", auth.RequireSelfOrAdmin("id"), cfg.Users.Delete)
	users.Delete("/:id/identity", auth.RequireRole(domain.RoleAdmin), cfg.Users.DeleteIdentity)
	users.Put("/:id/role", auth.RequireRole(domain.RoleAdmin), cfg.Users.SetRole)
	users.Put("/:id/status", auth.RequireRole(domain.RoleAdmin), cfg.Users.SetStatus)
	users.Post("/:id/password", cfg.Users.ChangePassword)
}
