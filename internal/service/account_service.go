package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/identity"
	"github.com/spec-kit/account-service/internal/repository"
	apperrors "github.com/spec-kit/account-service/pkg/util"
)

// AccountService coordinates account lifecycle operations between the
// identity provider, the profile store, and the token workflow.
type AccountService struct {
	profiles   repository.ProfileRepository
	provider   identity.Provider
	tokens     *SecurityTokenService
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// AccountDependencies encapsulates collaborator requirements.
type AccountDependencies struct {
	Profiles   repository.ProfileRepository
	Provider   identity.Provider
	Tokens     *SecurityTokenService
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAccountService builds the service.
func NewAccountService(deps AccountDependencies) *AccountService {
	return &AccountService{
		profiles:   deps.Profiles,
		provider:   deps.Provider,
		tokens:     deps.Tokens,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// Register creates the identity record and profile, issues a verification
// token, and returns a bearer token for the fresh account.
func (s *AccountService) Register(ctx context.Context, name, email, password string) (*domain.Profile, string, time.Time, error) {
	id := uuid.NewString()

	if err := s.provider.CreateIdentity(ctx, identity.NewIdentity{ID: id, Email: email, Password: password}); err != nil {
		if errors.Is(err, identity.ErrEmailTaken) {
			return nil, "", time.Time{}, apperrors.NewConflict("email already registered", nil)
		}
		return nil, "", time.Time{}, err
	}

	profile := &domain.Profile{
		ID:     id,
		Email:  email,
		Name:   name,
		Role:   domain.RolePatient,
		Status: domain.StatusActive,
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		// compensate for the identity created above; a failed cleanup
		// leaves an orphan, so mark it loudly
		if delErr := s.provider.DeleteIdentity(ctx, id); delErr != nil {
			s.logger.Error("orphaned identity after profile create failure",
				zap.String("user_id", id), zap.Error(delErr))
		}
		return nil, "", time.Time{}, err
	}

	verification, _, err := s.tokens.Issue(ctx, id, domain.PurposeVerifyEmail)
	if err != nil {
		// the account exists; verification can be re-requested later
		s.logger.Warn("verification token issue failed", zap.String("user_id", id), zap.Error(err))
	}

	s.publish(ctx, events.NewEvent(events.EventUserRegistered, id, events.UserRegisteredPayload{
		Email:             email,
		Name:              name,
		Role:              profile.Role,
		VerificationToken: verification,
	}))

	token, exp, err := s.provider.IssueToken(ctx, id)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return profile, token, exp, nil
}

// Login authenticates against the identity provider and mints a bearer token.
func (s *AccountService) Login(ctx context.Context, email, password string) (*domain.Profile, string, time.Time, error) {
	id, err := s.provider.CheckPassword(ctx, email, password)
	if err != nil {
		if errors.Is(err, identity.ErrBadCredentials) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, err
	}

	profile, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	token, exp, err := s.provider.IssueToken(ctx, id)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return profile, token, exp, nil
}

// RequestPasswordReset issues a reset token and fires the reset email. The
// caller-facing outcome is identical whether or not the email exists; an
// unknown or non-active account is a silent no-op.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	profile, err := s.profiles.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		return err
	}
	if profile.Status != domain.StatusActive {
		s.logger.Info("password reset requested for non-active account",
			zap.String("user_id", profile.ID))
		return nil
	}

	token, expiresAt, err := s.tokens.Issue(ctx, profile.ID, domain.PurposeResetPassword)
	if err != nil {
		return err
	}

	s.publish(ctx, events.NewEvent(events.EventPasswordResetIssued, profile.ID, events.PasswordResetIssuedPayload{
		Email:     profile.Email,
		Token:     token,
		ExpiresAt: expiresAt,
	}))
	return nil
}

// ResetPassword consumes a reset token and sets the new password.
func (s *AccountService) ResetPassword(ctx context.Context, token, newPassword string) error {
	profile, err := s.tokens.Validate(ctx, token, domain.PurposeResetPassword)
	if err != nil {
		return err
	}

	err = s.tokens.Consume(ctx, profile.ID, domain.PurposeResetPassword, token, func(ctx context.Context) error {
		return s.provider.UpdateIdentity(ctx, profile.ID, identity.Update{Password: &newPassword})
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events.NewEvent(events.EventPasswordChanged, profile.ID, events.PasswordChangedPayload{
		Email: profile.Email,
	}))
	return nil
}

// VerifyEmail consumes a verification token and marks the email verified on
// both the identity record and the profile.
func (s *AccountService) VerifyEmail(ctx context.Context, token string) error {
	profile, err := s.tokens.Validate(ctx, token, domain.PurposeVerifyEmail)
	if err != nil {
		return err
	}

	verified := true
	err = s.tokens.Consume(ctx, profile.ID, domain.PurposeVerifyEmail, token, func(ctx context.Context) error {
		return s.provider.UpdateIdentity(ctx, profile.ID, identity.Update{EmailVerified: &verified})
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events.NewEvent(events.EventEmailVerified, profile.ID, nil))
	return nil
}

// ResendVerification re-issues the verification token for an account.
func (s *AccountService) ResendVerification(ctx context.Context, userID string) error {
	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if profile.EmailVerified {
		return apperrors.NewConflict("email is already verified", nil)
	}

	token, expiresAt, err := s.tokens.Issue(ctx, profile.ID, domain.PurposeVerifyEmail)
	if err != nil {
		return err
	}

	s.publish(ctx, events.NewEvent(events.EventVerificationRequested, profile.ID, events.VerificationRequestedPayload{
		Email:     profile.Email,
		Token:     token,
		ExpiresAt: expiresAt,
	}))
	return nil
}

// ChangePassword requires the current password as step-up proof before
// setting the new one.
func (s *AccountService) ChangePassword(ctx context.Context, userID, email, currentPassword, newPassword string) error {
	if _, err := s.provider.CheckPassword(ctx, email, currentPassword); err != nil {
		if errors.Is(err, identity.ErrBadCredentials) {
			return apperrors.NewUnauthorized("current password is incorrect")
		}
		return err
	}

	if err := s.provider.UpdateIdentity(ctx, userID, identity.Update{Password: &newPassword}); err != nil {
		return err
	}

	s.publish(ctx, events.NewEvent(events.EventPasswordChanged, userID, events.PasswordChangedPayload{
		Email: email,
	}))
	return nil
}

// Get fetches one profile.
func (s *AccountService) Get(ctx context.Context, id string) (*domain.Profile, error) {
	profile, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return nil, err
	}
	return profile, nil
}

// AccountSummary pairs a profile with its identity-provider metadata.
type AccountSummary struct {
	Profile  *domain.Profile
	Identity *identity.Record
}

// List returns a page of profiles, each enriched with provider metadata. The
// enrichment fans out concurrently per item and joins before returning; a
// failed enrichment leaves the Identity field nil rather than failing the
// page.
func (s *AccountService) List(ctx context.Context, page, perPage int) ([]AccountSummary, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	profiles, total, err := s.profiles.List(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]AccountSummary, len(profiles))
	var wg sync.WaitGroup
	for i, profile := range profiles {
		wg.Add(1)
		go func(i int, profile *domain.Profile) {
			defer wg.Done()
			rec, err := s.provider.GetIdentity(ctx, profile.ID)
			if err != nil {
				s.logger.Warn("identity enrichment failed",
					zap.String("user_id", profile.ID), zap.Error(err))
			}
			summaries[i] = AccountSummary{Profile: profile, Identity: rec}
		}(i, profile)
	}
	wg.Wait()

	return summaries, total, nil
}

// UpdateName updates mutable profile fields.
func (s *AccountService) UpdateName(ctx context.Context, id, name string) (*domain.Profile, error) {
	profile, err := s.profiles.UpdateName(ctx, id, name)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return nil, err
	}
	return profile, nil
}

// SetRole updates the role on the profile and mirrors it into the provider's
// custom claims.
func (s *AccountService) SetRole(ctx context.Context, id string, role domain.Role) error {
	if !domain.ValidRole(role) {
		return apperrors.NewValidationError("unknown role", map[string]any{"role": string(role)})
	}
	if err := s.profiles.SetRole(ctx, id, role); err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return err
	}
	return s.provider.SetClaims(ctx, id, map[string]any{"role": string(role)})
}

// SetStatus applies a lifecycle transition. Any move out of active disables
// the identity record so existing bearer tokens stop resolving.
func (s *AccountService) SetStatus(ctx context.Context, id string, status domain.Status) error {
	if !domain.ValidStatus(status) {
		return apperrors.NewValidationError("unknown status", map[string]any{"status": string(status)})
	}

	profile, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !profile.Status.CanTransitionTo(status) {
		return apperrors.NewConflict("illegal status transition", map[string]any{
			"from": string(profile.Status),
			"to":   string(status),
		})
	}

	if err := s.profiles.SetStatus(ctx, id, status); err != nil {
		return err
	}

	disabled := true
	if err := s.provider.UpdateIdentity(ctx, id, identity.Update{Disabled: &disabled}); err != nil {
		s.logger.Error("identity disable failed after status change",
			zap.String("user_id", id), zap.Error(err))
		return apperrors.NewConsistencyError(err)
	}

	s.publish(ctx, events.NewEvent(events.EventAccountDeactivated, id, events.AccountDeactivatedPayload{
		Email:  profile.Email,
		Status: status,
	}))
	return nil
}

// SoftDelete marks the account deleted; the stored record remains.
func (s *AccountService) SoftDelete(ctx context.Context, id string) error {
	return s.SetStatus(ctx, id, domain.StatusDeleted)
}

// HardDeleteIdentity removes the provider record. Explicit admin action,
// independent of the soft delete.
func (s *AccountService) HardDeleteIdentity(ctx context.Context, id string) error {
	if err := s.provider.DeleteIdentity(ctx, id); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return apperrors.NewNotFound("identity", map[string]any{"id": id})
		}
		return err
	}
	return nil
}

func (s *AccountService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}
