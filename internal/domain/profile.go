package domain

import "time"

// Role classifies what an account is allowed to do.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// ValidRole reports whether the value is a known role.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleDoctor, RolePatient:
		return true
	}
	return false
}

// Status represents lifecycle states for an account.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
	StatusDeleted   Status = "deleted"
)

// ValidStatus reports whether the value is a known status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended, StatusDeleted:
		return true
	}
	return false
}

// CanTransitionTo enforces the legal status transitions. Accounts only move
// out of active; there is no path back.
func (s Status) CanTransitionTo(next Status) bool {
	if s != StatusActive {
		return false
	}
	switch next {
	case StatusInactive, StatusSuspended, StatusDeleted:
		return true
	}
	return false
}

// TokenPurpose scopes a security token to the state change it gates.
type TokenPurpose string

const (
	PurposeVerifyEmail   TokenPurpose = "verify-email"
	PurposeResetPassword TokenPurpose = "reset-password"
)

// Profile is the stored account record. The verification and reset token
// field pairs hold at most one live token per purpose; consuming a token
// nulls the pair in the same update as the change it authorizes.
type Profile struct {
	ID                       string
	Email                    string
	Name                     string
	Role                     Role
	Status                   Status
	EmailVerified            bool
	EmailVerificationToken   *string
	EmailVerificationExpires *time.Time
	ResetToken               *string
	ResetTokenExpiry         *int64 // epoch millis
	CreatedAt                time.Time
	UpdatedAt                time.Time
	DeletedAt                *time.Time
}
