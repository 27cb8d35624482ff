package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/domain"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller for the lifetime of one
// request. Identity-bearing fields (ID, Email, EmailVerified) always come
// from the verified token; the rest is hydrated from the stored profile.
type Principal struct {
	ID            string
	Email         string
	EmailVerified bool
	Name          string
	Role          domain.Role
	Status        domain.Status
	Profile       *domain.Profile
}

// IsAdmin reports whether the principal holds the admin role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == domain.RoleAdmin
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

func setPrincipal(c *fiber.Ctx, p *Principal) {
	c.Locals(principalKey, p)
}
