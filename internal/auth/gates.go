package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/domain"
	apperrors "github.com/spec-kit/account-service/pkg/util"
)

// Gates are pure allow/deny predicates over the resolved Principal and
// request metadata. They never mutate state and evaluate after the session
// resolver, short-circuiting on the first denial.

// RequireAuthenticated ensures a Principal is attached to the request.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewAuthFailure(apperrors.CodeUnauthenticated, "unauthorized",
				"authentication required", http.StatusUnauthorized)
		}
		return c.Next()
	}
}

// RequireRole ensures the principal holds one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewAuthFailure(apperrors.CodeUnauthenticated, "unauthorized",
				"authentication required", http.StatusUnauthorized)
		}
		if _, exists := allowedSet[principal.Role]; !exists {
			return apperrors.NewAuthFailure(apperrors.CodeForbiddenRole, "forbidden",
				"role is not permitted for this resource", http.StatusForbidden).
				WithDetails(map[string]any{"role": string(principal.Role)})
		}
		return c.Next()
	}
}

// RequireSelfOrAdmin passes admins through and otherwise requires the route
// parameter to match the principal's own id.
func RequireSelfOrAdmin(param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewAuthFailure(apperrors.CodeUnauthenticated, "unauthorized",
				"authentication required", http.StatusUnauthorized)
		}
		if principal.IsAdmin() || principal.ID == c.Params(param) {
			return c.Next()
		}
		return apperrors.NewAuthFailure(apperrors.CodeForbiddenOwnership, "forbidden",
			"resource belongs to another account", http.StatusForbidden)
	}
}
