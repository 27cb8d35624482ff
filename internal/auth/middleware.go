package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/identity"
	"github.com/spec-kit/account-service/internal/repository"
	apperrors "github.com/spec-kit/account-service/pkg/util"
)

const bearerScheme = "Bearer"

// SessionResolver turns a bearer Authorization header into a Principal, or a
// typed failure. Verification and the profile lookup are single-attempt;
// transient faults surface to the caller, never retried here.
type SessionResolver struct {
	provider      identity.Provider
	profiles      repository.ProfileRepository
	logger        *zap.Logger
	verifyTimeout time.Duration
	lookupTimeout time.Duration
}

// NewSessionResolver constructs the middleware.
func NewSessionResolver(provider identity.Provider, profiles repository.ProfileRepository, logger *zap.Logger, verifyTimeout, lookupTimeout time.Duration) *SessionResolver {
	if verifyTimeout <= 0 {
		verifyTimeout = 5 * time.Second
	}
	if lookupTimeout <= 0 {
		lookupTimeout = 5 * time.Second
	}
	return &SessionResolver{
		provider:      provider,
		profiles:      profiles,
		logger:        logger,
		verifyTimeout: verifyTimeout,
		lookupTimeout: lookupTimeout,
	}
}

// Handle enforces authentication for protected routes.
func (m *SessionResolver) Handle(c *fiber.Ctx) error {
	// Trailing whitespace in header values is trimmed in transit, so
	// "Bearer " arrives as the bare scheme word. Match the scheme on its
	// own and classify an empty remainder separately.
	scheme, rest, _ := strings.Cut(c.Get(fiber.HeaderAuthorization), " ")
	if scheme != bearerScheme {
		return m.reject(c, apperrors.CodeMissingAuthToken, "unauthorized",
			"authorization bearer token required", http.StatusUnauthorized, nil)
	}

	token := strings.TrimSpace(rest)
	if token == "" {
		return m.reject(c, apperrors.CodeEmptyAuthToken, "unauthorized",
			"authorization token is empty", http.StatusUnauthorized, nil)
	}

	verifyCtx, cancel := context.WithTimeout(c.UserContext(), m.verifyTimeout)
	claims, err := m.provider.VerifyToken(verifyCtx, token)
	cancel()
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrTokenExpired):
			return m.reject(c, apperrors.CodeTokenExpired, "unauthorized",
				"token has expired", http.StatusUnauthorized, nil)
		case errors.Is(err, identity.ErrTokenInvalid):
			return m.reject(c, apperrors.CodeInvalidToken, "unauthorized",
				"token is invalid", http.StatusUnauthorized, nil)
		default:
			// Includes verification timeouts: fail closed.
			return m.reject(c, apperrors.CodeAuthError, "authentication error",
				"could not verify token", http.StatusInternalServerError, nil)
		}
	}

	lookupCtx, cancel := context.WithTimeout(c.UserContext(), m.lookupTimeout)
	profile, err := m.profiles.GetByID(lookupCtx, claims.UserID)
	cancel()
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return m.reject(c, apperrors.CodeUserNotFound, "not found",
				"no profile exists for this account", http.StatusNotFound,
				map[string]any{"user_id": claims.UserID})
		}
		return m.reject(c, apperrors.CodeUserFetchError, "lookup failed",
			"could not load account profile", http.StatusInternalServerError, nil)
	}

	if profile.Status != domain.StatusActive {
		return m.reject(c, apperrors.CodeAccountInactive, "forbidden",
			"account is not active", http.StatusForbidden,
			map[string]any{"status": string(profile.Status)})
	}

	principal := merge(claims, profile)
	m.logger.Info("session resolved",
		zap.String("user_id", principal.ID),
		zap.String("role", string(principal.Role)),
		zap.String("path", c.Path()))

	setPrincipal(c, principal)
	return c.Next()
}

// merge builds the Principal from verified claims and the stored profile.
// Profile fields win for overlapping keys except the identity-bearing trio,
// which never trusts a possibly stale profile copy.
func merge(claims *identity.Claims, profile *domain.Profile) *Principal {
	return &Principal{
		ID:            claims.UserID,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          profile.Name,
		Role:          profile.Role,
		Status:        profile.Status,
		Profile:       profile,
	}
}

func (m *SessionResolver) reject(c *fiber.Ctx, code, summary, message string, status int, details map[string]any) error {
	m.logger.Warn("session rejected",
		zap.String("code", code),
		zap.String("path", c.Path()),
		zap.String("ip", c.IP()))
	failure := apperrors.NewAuthFailure(code, summary, message, status)
	if details != nil {
		failure.WithDetails(details)
	}
	return failure
}
