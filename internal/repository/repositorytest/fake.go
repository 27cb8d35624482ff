// Package repositorytest provides an in-memory ProfileRepository for tests.
// It mirrors the store semantics the token workflow depends on: strict expiry
// comparison, token uniqueness across profiles, and an atomic
// compare-and-clear.
package repositorytest

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/repository"
)

// FakeProfiles is a mutex-guarded map-backed ProfileRepository.
type FakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]*domain.Profile

	// FailWith, when set, is returned by every call.
	FailWith error
	// FailClearWith, when set, is returned by CompareAndClearToken only.
	FailClearWith error
}

var _ repository.ProfileRepository = (*FakeProfiles)(nil)

// NewFakeProfiles creates an empty store.
func NewFakeProfiles() *FakeProfiles {
	return &FakeProfiles{profiles: make(map[string]*domain.Profile)}
}

// Seed inserts a profile directly.
func (f *FakeProfiles) Seed(p *domain.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.profiles[p.ID] = &cp
}

// Snapshot returns a copy of the stored profile.
func (f *FakeProfiles) Snapshot(id string) (*domain.Profile, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return nil, false
	}
	cp := *p
	return &cp, true
}

func (f *FakeProfiles) Create(_ context.Context, p *domain.Profile) error {
	if f.FailWith != nil {
		return f.FailWith
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	cp := *p
	f.profiles[p.ID] = &cp
	return nil
}

func (f *FakeProfiles) GetByID(_ context.Context, id string) (*domain.Profile, error) {
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *FakeProfiles) GetByEmail(_ context.Context, email string) (*domain.Profile, error) {
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.profiles {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrProfileNotFound
}

func (f *FakeProfiles) UpdateName(_ context.Context, id, name string) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	p.Name = name
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	return &cp, nil
}

func (f *FakeProfiles) SetRole(_ context.Context, id string, role domain.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return repository.ErrProfileNotFound
	}
	p.Role = role
	return nil
}

func (f *FakeProfiles) SetStatus(_ context.Context, id string, status domain.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return repository.ErrProfileNotFound
	}
	p.Status = status
	if status == domain.StatusDeleted {
		now := time.Now().UTC()
		p.DeletedAt = &now
	}
	return nil
}

func (f *FakeProfiles) List(_ context.Context, limit, offset int) ([]*domain.Profile, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := make([]*domain.Profile, 0, len(f.profiles))
	for _, p := range f.profiles {
		cp := *p
		all = append(all, &cp)
	}
	total := len(all)
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (f *FakeProfiles) SetToken(_ context.Context, id string, purpose domain.TokenPurpose, token string, expiresAt time.Time) error {
	if f.FailWith != nil {
		return f.FailWith
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	// token uniqueness across profiles, like the partial unique index
	for otherID, other := range f.profiles {
		if otherID == id {
			continue
		}
		if tok, _ := tokenFields(other, purpose); tok != nil && *tok == token {
			return &pgconn.PgError{Code: "23505"}
		}
	}

	p, ok := f.profiles[id]
	if !ok {
		return repository.ErrProfileNotFound
	}
	switch purpose {
	case domain.PurposeVerifyEmail:
		exp := expiresAt
		p.EmailVerificationToken = &token
		p.EmailVerificationExpires = &exp
	case domain.PurposeResetPassword:
		millis := expiresAt.UnixMilli()
		p.ResetToken = &token
		p.ResetTokenExpiry = &millis
	}
	return nil
}

func (f *FakeProfiles) FindByToken(_ context.Context, purpose domain.TokenPurpose, token string, now time.Time) (*domain.Profile, error) {
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.profiles {
		tok, live := tokenFields(p, purpose)
		if tok == nil || *tok != token {
			continue
		}
		if !live(now) {
			continue
		}
		cp := *p
		return &cp, nil
	}
	return nil, repository.ErrProfileNotFound
}

func (f *FakeProfiles) CompareAndClearToken(_ context.Context, id string, purpose domain.TokenPurpose, expected string) (bool, error) {
	if f.FailClearWith != nil {
		return false, f.FailClearWith
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return false, nil
	}
	switch purpose {
	case domain.PurposeVerifyEmail:
		if p.EmailVerificationToken == nil || *p.EmailVerificationToken != expected {
			return false, nil
		}
		p.EmailVerified = true
		p.EmailVerificationToken = nil
		p.EmailVerificationExpires = nil
	case domain.PurposeResetPassword:
		if p.ResetToken == nil || *p.ResetToken != expected {
			return false, nil
		}
		p.ResetToken = nil
		p.ResetTokenExpiry = nil
	}
	return true, nil
}

// tokenFields returns the live token pointer for the purpose and a predicate
// reporting whether it is unexpired at the given instant.
func tokenFields(p *domain.Profile, purpose domain.TokenPurpose) (*string, func(time.Time) bool) {
	switch purpose {
	case domain.PurposeVerifyEmail:
		return p.EmailVerificationToken, func(now time.Time) bool {
			return p.EmailVerificationExpires != nil && p.EmailVerificationExpires.After(now)
		}
	case domain.PurposeResetPassword:
		return p.ResetToken, func(now time.Time) bool {
			return p.ResetTokenExpiry != nil && *p.ResetTokenExpiry > now.UnixMilli()
		}
	}
	return nil, func(time.Time) bool { return false }
}
