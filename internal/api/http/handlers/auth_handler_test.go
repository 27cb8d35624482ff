package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/account-service/internal/api/http"
	"github.com/spec-kit/account-service/internal/api/http/handlers"
	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/identity/identitytest"
	"github.com/spec-kit/account-service/internal/persistence"
	"github.com/spec-kit/account-service/internal/repository/repositorytest"
	"github.com/spec-kit/account-service/internal/service"
)

type apiFixture struct {
	app      *fiber.App
	provider *identitytest.FakeProvider
	profiles *repositorytest.FakeProfiles
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	logger := zap.NewNop()
	provider := identitytest.NewFakeProvider()
	profiles := repositorytest.NewFakeProfiles()

	tokens := service.NewSecurityTokenService(profiles, config.TokenConfig{
		VerifyEmailTTLHours:   24,
		ResetPasswordTTLHours: 1,
	}, logger)
	accounts := service.NewAccountService(service.AccountDependencies{
		Profiles:   profiles,
		Provider:   provider,
		Tokens:     tokens,
		Dispatcher: events.NewInMemoryDispatcher(),
		Logger:     logger,
	})

	resolver := auth.NewSessionResolver(provider, profiles, logger, time.Second, time.Second)
	resetRate := persistence.NewRateLimiter(nil, logger, 5, time.Minute)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, nil, 0)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler("account-service", "test", nil, nil),
		Auth:    handlers.NewAuthHandler(accounts, resetRate),
		Users:   handlers.NewUsersHandler(accounts),
		Session: resolver,
	})

	return &apiFixture{app: app, provider: provider, profiles: profiles}
}

func (f *apiFixture) do(t *testing.T, method, path string, payload any, bearer string) (*http.Response, []byte) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, raw
}

func (f *apiFixture) register(t *testing.T, name, email, password string) (string, string) {
	t.Helper()
	resp, raw := f.do(t, http.MethodPost, "/auth/register", fiber.Map{
		"name": name, "email": email, "password": password,
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	var out struct {
		Data struct {
			User struct {
				ID string `json:"id"`
			} `json:"user"`
			Auth struct {
				Token string `json:"token"`
			} `json:"auth"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out.Data.User.ID, out.Data.Auth.Token
}

func TestRegisterThenLogin(t *testing.T) {
	f := newAPIFixture(t)
	id, _ := f.register(t, "Ada", "ada@example.com", "s3cretpass")
	require.NotEmpty(t, id)

	resp, raw := f.do(t, http.MethodPost, "/auth/login", fiber.Map{
		"email": "Ada@Example.com", "password": "s3cretpass",
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	resp, _ = f.do(t, http.MethodPost, "/auth/login", fiber.Map{
		"email": "ada@example.com", "password": "wrong",
	}, "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRegisterValidation(t *testing.T) {
	f := newAPIFixture(t)

	resp, raw := f.do(t, http.MethodPost, "/auth/register", fiber.Map{
		"name": "Ada", "email": "not-an-email", "password": "s3cretpass",
	}, "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	require.Equal(t, "VALIDATION_FAILED", body.Error.Code)
}

func TestResetRequestIsEnumerationResistant(t *testing.T) {
	f := newAPIFixture(t)
	f.register(t, "Ada", "ada@example.com", "s3cretpass")

	known, knownRaw := f.do(t, http.MethodPost, "/auth/request-password-reset",
		fiber.Map{"email": "ada@example.com"}, "")
	unknown, unknownRaw := f.do(t, http.MethodPost, "/auth/request-password-reset",
		fiber.Map{"email": "nobody@example.com"}, "")

	require.Equal(t, http.StatusOK, known.StatusCode)
	require.Equal(t, known.StatusCode, unknown.StatusCode)
	require.Equal(t, string(knownRaw), string(unknownRaw))
}

func TestResetPasswordInvalidToken(t *testing.T) {
	f := newAPIFixture(t)

	resp, raw := f.do(t, http.MethodPost, "/auth/reset-password", fiber.Map{
		"token": "not-a-real-token", "newPassword": "an0therpass",
	}, "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Success bool   `json:"success"`
		Code    string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	require.False(t, body.Success)
	require.Equal(t, "INVALID_OR_EXPIRED_TOKEN", body.Code)
}

func TestVerifyEmailFlow(t *testing.T) {
	f := newAPIFixture(t)
	id, _ := f.register(t, "Ada", "ada@example.com", "s3cretpass")

	profile, ok := f.profiles.Snapshot(id)
	require.True(t, ok)
	require.NotNil(t, profile.EmailVerificationToken)
	token := *profile.EmailVerificationToken

	resp, _ := f.do(t, http.MethodGet, "/auth/verify-email?token="+token, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	profile, _ = f.profiles.Snapshot(id)
	require.True(t, profile.EmailVerified)

	// single use
	resp, _ = f.do(t, http.MethodGet, "/auth/verify-email?token="+token, nil, "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestVerifyEmailRequiresToken(t *testing.T) {
	f := newAPIFixture(t)

	resp, raw := f.do(t, http.MethodGet, "/auth/verify-email", nil, "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	require.Equal(t, "BAD_REQUEST", body.Error.Code)
}

func TestResendVerificationRequiresSession(t *testing.T) {
	f := newAPIFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/auth/resend-verification", fiber.Map{}, "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestResendVerificationConflictWhenVerified(t *testing.T) {
	f := newAPIFixture(t)
	id, bearer := f.register(t, "Ada", "ada@example.com", "s3cretpass")

	profile, _ := f.profiles.Snapshot(id)
	resp, _ := f.do(t, http.MethodGet, "/auth/verify-email?token="+*profile.EmailVerificationToken, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/auth/resend-verification", fiber.Map{}, bearer)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}
