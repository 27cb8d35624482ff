package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/api/dto"
	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/persistence"
	"github.com/spec-kit/account-service/internal/service"
	apperrors "github.com/spec-kit/account-service/pkg/util"
)

// genericResetMessage is returned for every reset request, existing account
// or not.
const genericResetMessage = "If an account exists for that email, a password reset link has been sent."

// AuthHandler exposes registration, login, and the token side-channel flows.
type AuthHandler struct {
	accounts  *service.AccountService
	resetRate *persistence.RateLimiter
}

// NewAuthHandler constructs handler.
func NewAuthHandler(accounts *service.AccountService, resetRate *persistence.RateLimiter) *AuthHandler {
	return &AuthHandler{accounts: accounts, resetRate: resetRate}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}
	if err := req.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	profile, token, exp, err := h.accounts.Register(c.UserContext(), req.Name, strings.ToLower(req.Email), req.Password)
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{
			"user": dto.FromProfile(profile),
			"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}
	if err := req.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	profile, token, exp, err := h.accounts.Login(c.UserContext(), strings.ToLower(req.Email), req.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"user": dto.FromProfile(profile),
			"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}

// RequestPasswordReset handles POST /auth/request-password-reset. The
// response is identical whether or not the account exists.
func (h *AuthHandler) RequestPasswordReset(c *fiber.Ctx) error {
	var req dto.RequestPasswordResetRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}
	if err := req.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	email := strings.ToLower(req.Email)
	if h.resetRate.Allow(c.UserContext(), "reset:"+email) {
		if err := h.accounts.RequestPasswordReset(c.UserContext(), email); err != nil {
			return err
		}
	}

	return c.JSON(fiber.Map{"data": fiber.Map{"message": genericResetMessage}})
}

// ResetPassword handles POST /auth/reset-password.
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}
	if err := req.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	if err := h.accounts.ResetPassword(c.UserContext(), req.Token, req.NewPassword); err != nil {
		return mapTokenError(err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "password_reset"}})
}

// VerifyEmail handles GET /auth/verify-email?token=.
func (h *AuthHandler) VerifyEmail(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return apperrors.NewBadRequest("token query parameter required")
	}

	if err := h.accounts.VerifyEmail(c.UserContext(), token); err != nil {
		return mapTokenError(err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "email_verified"}})
}

// ResendVerification handles POST /auth/resend-verification for the caller's
// own account.
func (h *AuthHandler) ResendVerification(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewAuthFailure(apperrors.CodeUnauthenticated, "unauthorized",
			"authentication required", http.StatusUnauthorized)
	}

	if err := h.accounts.ResendVerification(c.UserContext(), principal.ID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "verification_sent"}})
}

// mapTokenError collapses all token validation failures into one
// indistinguishable 400 so responses cannot be used as an oracle.
func mapTokenError(err error) error {
	if errors.Is(err, service.ErrInvalidToken) {
		return apperrors.NewAuthFailure(apperrors.CodeInvalidOrExpiredToken, "bad request",
			"token is invalid or has expired", http.StatusBadRequest)
	}
	return err
}
