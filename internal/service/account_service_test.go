package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/identity/identitytest"
	"github.com/spec-kit/account-service/internal/repository/repositorytest"
	apperrors "github.com/spec-kit/account-service/pkg/util"
)

type accountFixture struct {
	profiles *repositorytest.FakeProfiles
	provider *identitytest.FakeProvider
	tokens   *SecurityTokenService
	accounts *AccountService
	events   *[]events.Event
}

func newAccountFixture(t *testing.T) *accountFixture {
	t.Helper()
	profiles := repositorytest.NewFakeProfiles()
	provider := identitytest.NewFakeProvider()
	tokens := newTokenService(profiles)

	var published []events.Event
	dispatcher := events.NewInMemoryDispatcher()
	for _, eventType := range []events.EventType{
		events.EventUserRegistered,
		events.EventVerificationRequested,
		events.EventEmailVerified,
		events.EventPasswordResetIssued,
		events.EventPasswordChanged,
		events.EventAccountDeactivated,
	} {
		dispatcher.Subscribe(eventType, func(_ context.Context, event events.Event) error {
			published = append(published, event)
			return nil
		})
	}

	accounts := NewAccountService(AccountDependencies{
		Profiles:   profiles,
		Provider:   provider,
		Tokens:     tokens,
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
	})
	return &accountFixture{
		profiles: profiles,
		provider: provider,
		tokens:   tokens,
		accounts: accounts,
		events:   &published,
	}
}

func (f *accountFixture) seedAccount(t *testing.T, id, email, password string) {
	t.Helper()
	f.provider.AddIdentity(id, email, password, false)
	f.profiles.Seed(&domain.Profile{
		ID:     id,
		Email:  email,
		Name:   "Seed User",
		Role:   domain.RolePatient,
		Status: domain.StatusActive,
	})
}

func (f *accountFixture) eventTypes() []events.EventType {
	out := make([]events.EventType, 0, len(*f.events))
	for _, e := range *f.events {
		out = append(out, e.Type)
	}
	return out
}

func TestRegisterCreatesIdentityProfileAndToken(t *testing.T) {
	f := newAccountFixture(t)

	profile, token, _, err := f.accounts.Register(context.Background(), "Ada", "ada@example.com", "s3cr3tpass")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, domain.RolePatient, profile.Role)
	require.Equal(t, domain.StatusActive, profile.Status)

	rec, ok := f.provider.Record(profile.ID)
	require.True(t, ok)
	require.Equal(t, "ada@example.com", rec.Email)

	stored, ok := f.profiles.Snapshot(profile.ID)
	require.True(t, ok)
	require.NotNil(t, stored.EmailVerificationToken)
	require.Contains(t, f.eventTypes(), events.EventUserRegistered)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newAccountFixture(t)
	f.seedAccount(t, "u1", "taken@example.com", "password1")

	_, _, _, err := f.accounts.Register(context.Background(), "Ada", "taken@example.com", "s3cr3tpass")
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, "CONFLICT", domainErr.Code)
}

func TestRegisterProfileFailureRemovesIdentity(t *testing.T) {
	f := newAccountFixture(t)
	f.profiles.FailWith = errors.New("store offline")

	_, _, _, err := f.accounts.Register(context.Background(), "Ada", "ada@example.com", "s3cr3tpass")
	require.Error(t, err)
	require.Empty(t, *f.events)

	// the identity created before the profile write must be compensated,
	// so the email is free to register again
	f.profiles.FailWith = nil
	_, _, _, err = f.accounts.Register(context.Background(), "Ada", "ada@example.com", "s3cr3tpass")
	require.NoError(t, err)
}

func TestRequestPasswordResetUnknownEmailIsSilentNoop(t *testing.T) {
	f := newAccountFixture(t)

	require.NoError(t, f.accounts.RequestPasswordReset(context.Background(), "ghost@example.com"))
	require.Empty(t, *f.events)
}

func TestRequestPasswordResetNonActiveIsSilentNoop(t *testing.T) {
	f := newAccountFixture(t)
	f.seedAccount(t, "u1", "gone@example.com", "password1")
	require.NoError(t, f.profiles.SetStatus(context.Background(), "u1", domain.StatusSuspended))

	require.NoError(t, f.accounts.RequestPasswordReset(context.Background(), "gone@example.com"))
	require.Empty(t, *f.events)

	stored, _ := f.profiles.Snapshot("u1")
	require.Nil(t, stored.ResetToken)
}

func TestPasswordResetFlow(t *testing.T) {
	f := newAccountFixture(t)
	f.seedAccount(t, "u1", "ada@example.com", "oldpassword")

	require.NoError(t, f.accounts.RequestPasswordReset(context.Background(), "ada@example.com"))
	require.Equal(t, []events.EventType{events.EventPasswordResetIssued}, f.eventTypes())

	payload := (*f.events)[0].Payload.(events.PasswordResetIssuedPayload)
	require.NotEmpty(t, payload.Token)

	require.NoError(t, f.accounts.ResetPassword(context.Background(), payload.Token, "newpassword"))
	require.Equal(t, "newpassword", f.provider.Password("u1"))

	// consumed token is rejected on replay, with no double side effect
	calls := f.provider.UpdateCalls
	err := f.accounts.ResetPassword(context.Background(), payload.Token, "evilpassword")
	require.ErrorIs(t, err, ErrInvalidToken)
	require.Equal(t, calls, f.provider.UpdateCalls)
	require.Equal(t, "newpassword", f.provider.Password("u1"))
}

func TestVerifyEmailExpiredToken(t *testing.T) {
	f := newAccountFixture(t)
	f.seedAccount(t, "u1", "ada@example.com", "password1")

	issuedAt := time.Now().UTC()
	f.tokens.now = func() time.Time { return issuedAt }
	token, _, err := f.tokens.Issue(context.Background(), "u1", domain.PurposeVerifyEmail)
	require.NoError(t, err)

	// 25 hours later the 24h token is dead
	f.tokens.now = func() time.Time { return issuedAt.Add(25 * time.Hour) }
	err = f.accounts.VerifyEmail(context.Background(), token)
	require.ErrorIs(t, err, ErrInvalidToken)

	stored, _ := f.profiles.Snapshot("u1")
	require.False(t, stored.EmailVerified)
}

func TestVerifyEmailFlow(t *testing.T) {
	f := newAccountFixture(t)
	f.seedAccount(t, "u1", "ada@example.com", "password1")

	token, _, err := f.tokens.Issue(context.Background(), "u1", domain.PurposeVerifyEmail)
	require.NoError(t, err)

	require.NoError(t, f.accounts.VerifyEmail(context.Background(), token))

	stored, _ := f.profiles.Snapshot("u1")
	require.True(t, stored.EmailVerified)
	rec, _ := f.provider.Record("u1")
	require.True(t, rec.EmailVerified)

	err = f.accounts.VerifyEmail(context.Background(), token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestResetPasswordConsistencyFault(t *testing.T) {
	f := newAccountFixture(t)
	f.seedAccount(t, "u1", "ada@example.com", "oldpassword")

	token, _, err := f.tokens.Issue(context.Background(), "u1", domain.PurposeResetPassword)
	require.NoError(t, err)

	f.profiles.FailClearWith = errors.New("store down")
	err = f.accounts.ResetPassword(context.Background(), token, "newpassword")

	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, "STATE_CONSISTENCY_ERROR", domainErr.Code)
	// the provider-side effect already happened
	require.Equal(t, "newpassword", f.provider.Password("u1"))
}

func TestChangePasswordRequiresCurrentPassword(t *testing.T) {
	f := newAccountFixture(t)
	f.seedAccount(t, "u1", "ada@example.com", "rightpass")

	err := f.accounts.ChangePassword(context.Background(), "u1", "ada@example.com", "wrongpass", "newpassword")
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, "UNAUTHORIZED", domainErr.Code)
	require.Equal(t, "rightpass", f.provider.Password("u1"))

	require.NoError(t, f.accounts.ChangePassword(context.Background(), "u1", "ada@example.com", "rightpass", "newpassword"))
	require.Equal(t, "newpassword", f.provider.Password("u1"))
	require.Contains(t, f.eventTypes(), events.EventPasswordChanged)
}

func TestSetStatusEnforcesTransitionsAndDisablesIdentity(t *testing.T) {
	f := newAccountFixture(t)
	f.seedAccount(t, "u1", "ada@example.com", "password1")

	require.NoError(t, f.accounts.SetStatus(context.Background(), "u1", domain.StatusSuspended))
	stored, _ := f.profiles.Snapshot("u1")
	require.Equal(t, domain.StatusSuspended, stored.Status)
	rec, _ := f.provider.Record("u1")
	require.True(t, rec.Disabled)

	// suspended accounts have no further transitions
	err := f.accounts.SetStatus(context.Background(), "u1", domain.StatusActive)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, "CONFLICT", domainErr.Code)
}

func TestSoftDeleteKeepsRecord(t *testing.T) {
	f := newAccountFixture(t)
	f.seedAccount(t, "u1", "ada@example.com", "password1")

	require.NoError(t, f.accounts.SoftDelete(context.Background(), "u1"))

	stored, ok := f.profiles.Snapshot("u1")
	require.True(t, ok)
	require.Equal(t, domain.StatusDeleted, stored.Status)
	require.NotNil(t, stored.DeletedAt)

	// identity record still exists until an explicit hard delete
	_, ok = f.provider.Record("u1")
	require.True(t, ok)

	require.NoError(t, f.accounts.HardDeleteIdentity(context.Background(), "u1"))
	_, ok = f.provider.Record("u1")
	require.False(t, ok)
}

func TestListEnrichesWithIdentityMetadata(t *testing.T) {
	f := newAccountFixture(t)
	f.seedAccount(t, "u1", "a@example.com", "password1")
	f.seedAccount(t, "u2", "b@example.com", "password2")
	// u3 has a profile but no identity record; enrichment degrades to nil
	f.profiles.Seed(&domain.Profile{
		ID: "u3", Email: "c@example.com", Name: "Orphan",
		Role: domain.RolePatient, Status: domain.StatusActive,
	})

	summaries, total, err := f.accounts.List(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, summaries, 3)

	withIdentity := 0
	for _, summary := range summaries {
		if summary.Identity != nil {
			withIdentity++
		}
	}
	require.Equal(t, 2, withIdentity)
}

func TestSetRoleMirrorsClaims(t *testing.T) {
	f := newAccountFixture(t)
	f.seedAccount(t, "u1", "ada@example.com", "password1")

	require.NoError(t, f.accounts.SetRole(context.Background(), "u1", domain.RoleDoctor))

	stored, _ := f.profiles.Snapshot("u1")
	require.Equal(t, domain.RoleDoctor, stored.Role)
	rec, _ := f.provider.Record("u1")
	require.Equal(t, "doctor", rec.Claims["role"])

	err := f.accounts.SetRole(context.Background(), "u1", domain.Role("superuser"))
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, "VALIDATION_FAILED", domainErr.Code)
}
