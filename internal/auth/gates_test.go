package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/account-service/internal/api/http"
	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/identity"
	"github.com/spec-kit/account-service/internal/identity/identitytest"
	"github.com/spec-kit/account-service/internal/repository/repositorytest"
)

type gateFixture struct {
	app      *fiber.App
	provider *identitytest.FakeProvider
	profiles *repositorytest.FakeProfiles
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	provider := identitytest.NewFakeProvider()
	profiles := repositorytest.NewFakeProfiles()
	resolver := auth.NewSessionResolver(provider, profiles, zap.NewNop(), time.Second, time.Second)

	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) }

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, zap.NewNop(), nil, 0)
	app.Get("/open", auth.RequireAuthenticated(), ok)
	app.Get("/admin", resolver.Handle, auth.RequireAuthenticated(), auth.RequireRole(domain.RoleAdmin), ok)
	app.Get("/staff", resolver.Handle, auth.RequireAuthenticated(), auth.RequireRole(domain.RoleAdmin, domain.RoleDoctor), ok)
	app.Get("/users/:id", resolver.Handle, auth.RequireAuthenticated(), auth.RequireSelfOrAdmin("id"), ok)

	return &gateFixture{app: app, provider: provider, profiles: profiles}
}

func (f *gateFixture) login(t *testing.T, id string, role domain.Role) string {
	t.Helper()
	f.profiles.Seed(&domain.Profile{
		ID:     id,
		Email:  id + "@example.com",
		Role:   role,
		Status: domain.StatusActive,
	})
	token := "bearer-" + id
	f.provider.AddToken(token, identity.Claims{UserID: id, Email: id + "@example.com"})
	return token
}

func (f *gateFixture) get(t *testing.T, path, token string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestRequireAuthenticatedWithoutResolver(t *testing.T) {
	f := newGateFixture(t)

	// no resolver ran on this route, so no principal is present
	require.Equal(t, http.StatusUnauthorized, f.get(t, "/open", ""))
}

func TestRequireRole(t *testing.T) {
	f := newGateFixture(t)
	admin := f.login(t, "adm", domain.RoleAdmin)
	doctor := f.login(t, "doc", domain.RoleDoctor)
	patient := f.login(t, "pat", domain.RolePatient)

	require.Equal(t, http.StatusNoContent, f.get(t, "/admin", admin))
	require.Equal(t, http.StatusForbidden, f.get(t, "/admin", doctor))
	require.Equal(t, http.StatusForbidden, f.get(t, "/admin", patient))

	require.Equal(t, http.StatusNoContent, f.get(t, "/staff", admin))
	require.Equal(t, http.StatusNoContent, f.get(t, "/staff", doctor))
	require.Equal(t, http.StatusForbidden, f.get(t, "/staff", patient))
}

func TestRequireSelfOrAdmin(t *testing.T) {
	f := newGateFixture(t)
	admin := f.login(t, "adm", domain.RoleAdmin)
	patient := f.login(t, "pat", domain.RolePatient)

	require.Equal(t, http.StatusNoContent, f.get(t, "/users/pat", patient))
	require.Equal(t, http.StatusForbidden, f.get(t, "/users/other", patient))
	require.Equal(t, http.StatusNoContent, f.get(t, "/users/pat", admin))
	require.Equal(t, http.StatusNoContent, f.get(t, "/users/adm", admin))
}
