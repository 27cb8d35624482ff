package identity

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by providers. Callers branch on these to decide
// the failure reason; anything else is an infrastructure fault.
var (
	ErrTokenExpired   = errors.New("identity: token expired")
	ErrTokenInvalid   = errors.New("identity: token invalid")
	ErrNotFound       = errors.New("identity: record not found")
	ErrEmailTaken     = errors.New("identity: email already registered")
	ErrBadCredentials = errors.New("identity: invalid credentials")
)

// Claims carries the identity-bearing fields extracted from a verified token.
type Claims struct {
	UserID        string
	Email         string
	EmailVerified bool
	ExpiresAt     time.Time
}

// NewIdentity describes a record to create.
type NewIdentity struct {
	ID       string
	Email    string
	Password string
}

// Update mutates selected auth-record fields; nil fields are untouched.
type Update struct {
	Email         *string
	Password      *string
	EmailVerified *bool
	Disabled      *bool
}

// Record is the provider's view of an identity, used to enrich profile
// listings with auth metadata.
type Record struct {
	ID            string
	Email         string
	EmailVerified bool
	Disabled      bool
	Claims        map[string]any
	CreatedAt     time.Time
}

// Provider manages auth records and bearer tokens.
type Provider interface {
	VerifyToken(ctx context.Context, token string) (*Claims, error)
	CreateIdentity(ctx context.Context, n NewIdentity) error
	UpdateIdentity(ctx context.Context, id string, upd Update) error
	DeleteIdentity(ctx context.Context, id string) error
	SetClaims(ctx context.Context, id string, claims map[string]any) error
	GetIdentity(ctx context.Context, id string) (*Record, error)
	CheckPassword(ctx context.Context, email, password string) (string, error)
	IssueToken(ctx context.Context, id string) (string, time.Time, error)
}
