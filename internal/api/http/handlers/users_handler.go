package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/api/dto"
	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/service"
	apperrors "github.com/spec-kit/account-service/pkg/util"
)

// UsersHandler exposes account CRUD and administration endpoints.
type UsersHandler struct {
	accounts *service.AccountService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(accounts *service.AccountService) *UsersHandler {
	return &UsersHandler{accounts: accounts}
}

// List handles GET /users (admin).
func (h *UsersHandler) List(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	perPage := c.QueryInt("per_page", 20)

	summaries, total, err := h.accounts.List(c.UserContext(), page, perPage)
	if err != nil {
		return err
	}

	users := make([]dto.UserSummaryResponse, 0, len(summaries))
	for _, summary := range summaries {
		users = append(users, dto.FromSummary(summary))
	}

	return c.JSON(fiber.Map{"data": dto.ListUsersResponse{
		Users:   users,
		Total:   total,
		Page:    page,
		PerPage: perPage,
	}})
}

// Get handles GET /users/:id (self or admin).
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	profile, err := h.accounts.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromProfile(profile)})
}

// Update handles PATCH /users/:id (self or admin).
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}
	if err := req.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	profile, err := h.accounts.UpdateName(c.UserContext(), c.Params("id"), req.Name)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromProfile(profile)})
}

// Delete handles DELETE /users/:id (self or admin). Soft delete.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	if err := h.accounts.SoftDelete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "deleted"}})
}

// DeleteIdentity handles DELETE /users/:id/identity (admin). Hard-deletes the
// identity-provider record only.
func (h *UsersHandler) DeleteIdentity(c *fiber.Ctx) error {
	if err := h.accounts.HardDeleteIdentity(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "identity_deleted"}})
}

// SetRole handles PUT /users/:id/role (admin).
func (h *UsersHandler) SetRole(c *fiber.Ctx) error {
	var req dto.SetRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}
	if err := req.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	if err := h.accounts.SetRole(c.UserContext(), c.Params("id"), domain.Role(req.Role)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "role_updated"}})
}

// SetStatus handles PUT /users/:id/status (admin).
func (h *UsersHandler) SetStatus(c *fiber.Ctx) error {
	var req dto.SetStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}
	if err := req.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	if err := h.accounts.SetStatus(c.UserContext(), c.Params("id"), domain.Status(req.Status)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "status_updated"}})
}

// ChangePassword handles POST /users/:id/password. Self only: the current
// password is required as step-up proof, which only the owner can supply.
func (h *UsersHandler) ChangePassword(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewAuthFailure(apperrors.CodeUnauthenticated, "unauthorized",
			"authentication required", http.StatusUnauthorized)
	}
	if principal.ID != c.Params("id") {
		return apperrors.NewAuthFailure(apperrors.CodeForbiddenOwnership, "forbidden",
			"password can only be changed by the account owner", http.StatusForbidden)
	}

	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}
	if err := req.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	err := h.accounts.ChangePassword(c.UserContext(), principal.ID, principal.Email, req.CurrentPassword, req.NewPassword)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "password_changed"}})
}
