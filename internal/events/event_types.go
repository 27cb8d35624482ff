package events

import (
	"time"

	"github.com/spec-kit/account-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered        EventType = "user_registered"
	EventVerificationRequested EventType = "verification_requested"
	EventEmailVerified         EventType = "email_verified"
	EventPasswordResetIssued   EventType = "password_reset_issued"
	EventPasswordChanged       EventType = "password_changed"
	EventAccountDeactivated    EventType = "account_deactivated"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// UserRegisteredPayload payload.
type UserRegisteredPayload struct {
	Email             string      `json:"email"`
	Name              string      `json:"name"`
	Role              domain.Role `json:"role"`
	VerificationToken string      `json:"verification_token"`
}

// VerificationRequestedPayload payload.
type VerificationRequestedPayload struct {
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PasswordResetIssuedPayload payload.
type PasswordResetIssuedPayload struct {
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PasswordChangedPayload payload.
type PasswordChangedPayload struct {
	Email string `json:"email"`
}

// AccountDeactivatedPayload payload.
type AccountDeactivatedPayload struct {
	Email  string        `json:"email"`
	Status domain.Status `json:"status"`
}
