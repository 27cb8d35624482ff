// Package identitytest provides an in-memory identity.Provider for tests.
package identitytest

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/account-service/internal/identity"
)

// FakeProvider keeps identities and tokens in maps and lets tests force
// failures on specific calls.
type FakeProvider struct {
	mu         sync.Mutex
	identities map[string]*identity.Record
	passwords  map[string]string
	tokens     map[string]identity.Claims

	// VerifyErr, when set, is returned by VerifyToken.
	VerifyErr error
	// UpdateErr, when set, is returned by UpdateIdentity.
	UpdateErr error

	// UpdateCalls counts UpdateIdentity invocations.
	UpdateCalls int
}

var _ identity.Provider = (*FakeProvider)(nil)

// NewFakeProvider creates an empty provider.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		identities: make(map[string]*identity.Record),
		passwords:  make(map[string]string),
		tokens:     make(map[string]identity.Claims),
	}
}

// AddIdentity seeds an identity record with a plaintext password.
func (f *FakeProvider) AddIdentity(id, email, password string, verified bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identities[id] = &identity.Record{
		ID:            id,
		Email:         email,
		EmailVerified: verified,
		CreatedAt:     time.Now().UTC(),
	}
	f.passwords[id] = password
}

// AddToken registers a bearer token resolving to the given claims.
func (f *FakeProvider) AddToken(token string, claims identity.Claims) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[token] = claims
}

// Password returns the current plaintext password for an identity.
func (f *FakeProvider) Password(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.passwords[id]
}

// Record returns a copy of the stored identity.
func (f *FakeProvider) Record(id string) (*identity.Record, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.identities[id]
	if !ok {
		return nil, false
	}
	cp := *rec
	return &cp, true
}

func (f *FakeProvider) VerifyToken(_ context.Context, token string) (*identity.Claims, error) {
	if f.VerifyErr != nil {
		return nil, f.VerifyErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	claims, ok := f.tokens[token]
	if !ok {
		return nil, identity.ErrTokenInvalid
	}
	if !claims.ExpiresAt.IsZero() && time.Now().After(claims.ExpiresAt) {
		return nil, identity.ErrTokenExpired
	}
	cp := claims
	return &cp, nil
}

func (f *FakeProvider) CreateIdentity(_ context.Context, n identity.NewIdentity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.identities {
		if rec.Email == n.Email {
			return identity.ErrEmailTaken
		}
	}
	f.identities[n.ID] = &identity.Record{
		ID:        n.ID,
		Email:     n.Email,
		CreatedAt: time.Now().UTC(),
	}
	f.passwords[n.ID] = n.Password
	return nil
}

func (f *FakeProvider) UpdateIdentity(_ context.Context, id string, upd identity.Update) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UpdateCalls++
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	rec, ok := f.identities[id]
	if !ok {
		return identity.ErrNotFound
	}
	if upd.Email != nil {
		rec.Email = *upd.Email
	}
	if upd.Password != nil {
		f.passwords[id] = *upd.Password
	}
	if upd.EmailVerified != nil {
		rec.EmailVerified = *upd.EmailVerified
	}
	if upd.Disabled != nil {
		rec.Disabled = *upd.Disabled
	}
	return nil
}

func (f *FakeProvider) DeleteIdentity(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.identities[id]; !ok {
		return identity.ErrNotFound
	}
	delete(f.identities, id)
	delete(f.passwords, id)
	return nil
}

func (f *FakeProvider) SetClaims(_ context.Context, id string, claims map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.identities[id]
	if !ok {
		return identity.ErrNotFound
	}
	rec.Claims = claims
	return nil
}

func (f *FakeProvider) GetIdentity(_ context.Context, id string) (*identity.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.identities[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *FakeProvider) CheckPassword(_ context.Context, email, password string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, rec := range f.identities {
		if rec.Email != email {
			continue
		}
		if rec.Disabled || f.passwords[id] != password {
			return "", identity.ErrBadCredentials
		}
		return id, nil
	}
	return "", identity.ErrBadCredentials
}

func (f *FakeProvider) IssueToken(_ context.Context, id string) (string, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.identities[id]
	if !ok {
		return "", time.Time{}, identity.ErrNotFound
	}
	token := "bearer-" + id
	exp := time.Now().Add(time.Hour)
	f.tokens[token] = identity.Claims{
		UserID:        rec.ID,
		Email:         rec.Email,
		EmailVerified: rec.EmailVerified,
		ExpiresAt:     exp,
	}
	return token, exp, nil
}
