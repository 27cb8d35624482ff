package dto

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/service"
)

// UpdateUserRequest payload for profile edits.
type UpdateUserRequest struct {
	Name string `json:"name"`
}

func (r UpdateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 128)),
	)
}

// ChangePasswordRequest payload for authenticated password changes.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (r ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(8, 128)),
	)
}

// SetRoleRequest payload.
type SetRoleRequest struct {
	Role string `json:"role"`
}

func (r SetRoleRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Role, validation.Required),
	)
}

// SetStatusRequest payload.
type SetStatusRequest struct {
	Status string `json:"status"`
}

func (r SetStatusRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.Required),
	)
}

// UserResponse is the external view of a profile.
type UserResponse struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	Role          string     `json:"role"`
	Status        string     `json:"status"`
	EmailVerified bool       `json:"email_verified"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

// IdentityMeta is the provider-side metadata attached to listings.
type IdentityMeta struct {
	EmailVerified bool `json:"email_verified"`
	Disabled      bool `json:"disabled"`
}

// UserSummaryResponse pairs a profile with identity metadata.
type UserSummaryResponse struct {
	UserResponse
	Identity *IdentityMeta `json:"identity,omitempty"`
}

// ListUsersResponse is a page of accounts.
type ListUsersResponse struct {
	Users   []UserSummaryResponse `json:"users"`
	Total   int                   `json:"total"`
	Page    int                   `json:"page"`
	PerPage int                   `json:"per_page"`
}

// FromProfile maps a domain profile to its response shape.
func FromProfile(p *domain.Profile) UserResponse {
	return UserResponse{
		ID:            p.ID,
		Email:         p.Email,
		Name:          p.Name,
		Role:          string(p.Role),
		Status:        string(p.Status),
		EmailVerified: p.EmailVerified,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
		DeletedAt:     p.DeletedAt,
	}
}

// FromSummary maps an enriched account summary.
func FromSummary(s service.AccountSummary) UserSummaryResponse {
	resp := UserSummaryResponse{UserResponse: FromProfile(s.Profile)}
	if s.Identity != nil {
		resp.Identity = &IdentityMeta{
			EmailVerified: s.Identity.EmailVerified,
			Disabled:      s.Identity.Disabled,
		}
	}
	return resp
}
