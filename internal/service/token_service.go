package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/repository"
	apperrors "github.com/spec-kit/account-service/pkg/util"
)

// ErrInvalidToken covers every validation failure: unknown token, expired
// token, or a token already consumed by a concurrent caller. Callers must not
// tell these apart in responses.
var ErrInvalidToken = errors.New("invalid or expired token")

const (
	tokenBytes    = 32 // 256 bits of entropy
	issueAttempts = 3
)

// SecurityTokenService drives the single-use token workflow for email
// verification and password reset. All single-use guarantees rest on the
// store's conditional update, not on in-process locking.
type SecurityTokenService struct {
	profiles  repository.ProfileRepository
	logger    *zap.Logger
	verifyTTL time.Duration
	resetTTL  time.Duration
	now       func() time.Time
}

// NewSecurityTokenService builds the service.
func NewSecurityTokenService(profiles repository.ProfileRepository, cfg config.TokenConfig, logger *zap.Logger) *SecurityTokenService {
	return &SecurityTokenService{
		profiles:  profiles,
		logger:    logger,
		verifyTTL: cfg.VerifyEmailTTL(),
		resetTTL:  cfg.ResetPasswordTTL(),
		now:       time.Now,
	}
}

func (s *SecurityTokenService) ttl(purpose domain.TokenPurpose) time.Duration {
	if purpose == domain.PurposeResetPassword {
		return s.resetTTL
	}
	return s.verifyTTL
}

// Issue generates and persists a fresh token for the profile and purpose,
// overwriting any prior live token. A unique-index conflict on the token
// column regenerates and retries.
func (s *SecurityTokenService) Issue(ctx context.Context, profileID string, purpose domain.TokenPurpose) (string, time.Time, error) {
	var lastErr error
	for attempt := 0; attempt < issueAttempts; attempt++ {
		token, err := generateToken()
		if err != nil {
			return "", time.Time{}, err
		}
		expiresAt := s.now().Add(s.ttl(purpose))

		err = s.profiles.SetToken(ctx, profileID, purpose, token, expiresAt)
		if err == nil {
			s.logger.Info("security token issued",
				zap.String("user_id", profileID),
				zap.String("purpose", string(purpose)),
				zap.Time("expires_at", expiresAt))
			return token, expiresAt, nil
		}
		if !repository.IsUniqueViolation(err) {
			return "", time.Time{}, err
		}
		lastErr = err
	}
	return "", time.Time{}, lastErr
}

// Validate resolves a token to its owning profile. The predicate is
// token == stored AND now strictly before expiry; anything else is
// ErrInvalidToken with no further distinction.
func (s *SecurityTokenService) Validate(ctx context.Context, token string, purpose domain.TokenPurpose) (*domain.Profile, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	profile, err := s.profiles.FindByToken(ctx, purpose, token, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return profile, nil
}

// Consume applies the gated side effect and then clears the token in one
// conditional store update. Ordering is fixed: the identity-side effect
// first, the clear after, so a failed effect leaves the token live for a
// retry. The side effect must be idempotent; when two consumers race, both
// may apply it but only the one whose compare-and-clear matches wins, and the
// loser gets ErrInvalidToken. A store failure after a successful side effect
// is surfaced as a consistency fault, never silently retried.
func (s *SecurityTokenService) Consume(ctx context.Context, profileID string, purpose domain.TokenPurpose, token string, sideEffect func(context.Context) error) error {
	if err := sideEffect(ctx); err != nil {
		return err
	}

	cleared, err := s.profiles.CompareAndClearToken(ctx, profileID, purpose, token)
	if err != nil {
		s.logger.Error("token clear failed after side effect",
			zap.String("user_id", profileID),
			zap.String("purpose", string(purpose)),
			zap.Error(err))
		return apperrors.NewConsistencyError(err)
	}
	if !cleared {
		return ErrInvalidToken
	}

	s.logger.Info("security token consumed",
		zap.String("user_id", profileID),
		zap.String("purpose", string(purpose)))
	return nil
}

func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
