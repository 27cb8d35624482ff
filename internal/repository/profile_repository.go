package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/account-service/internal/domain"
)

// ErrProfileNotFound is returned when no profile matches the lookup.
var ErrProfileNotFound = errors.New("profile not found")

const profileColumns = `
        id, email, name, role, status, email_verified,
        email_verification_token, email_verification_expires,
        reset_token, reset_token_expiry,
        created_at, updated_at, deleted_at`

// ProfileRepository defines persistence access for account profiles.
//
// CompareAndClearToken is the contract the single-use token guarantee rests
// on: the clear is conditional on the stored token still matching, so of two
// racing consumers exactly one observes cleared=true.
type ProfileRepository interface {
	Create(ctx context.Context, profile *domain.Profile) error
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	GetByEmail(ctx context.Context, email string) (*domain.Profile, error)
	UpdateName(ctx context.Context, id, name string) (*domain.Profile, error)
	SetRole(ctx context.Context, id string, role domain.Role) error
	SetStatus(ctx context.Context, id string, status domain.Status) error
	List(ctx context.Context, limit, offset int) ([]*domain.Profile, int, error)
	SetToken(ctx context.Context, id string, purpose domain.TokenPurpose, token string, expiresAt time.Time) error
	FindByToken(ctx context.Context, purpose domain.TokenPurpose, token string, now time.Time) (*domain.Profile, error)
	CompareAndClearToken(ctx context.Context, id string, purpose domain.TokenPurpose, expected string) (bool, error)
}

type profileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository returns a Postgres-backed implementation.
func NewProfileRepository(pool *pgxpool.Pool) ProfileRepository {
	return &profileRepository{pool: pool}
}

func (r *profileRepository) Create(ctx context.Context, profile *domain.Profile) error {
	const query = `
        INSERT INTO profiles (id, email, name, role, status)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		profile.ID,
		profile.Email,
		profile.Name,
		profile.Role,
		profile.Status,
	).Scan(&profile.CreatedAt, &profile.UpdatedAt)
}

func (r *profileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id=$1`
	return r.scanOne(ctx, query, id)
}

func (r *profileRepository) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE email=$1`
	return r.scanOne(ctx, query, email)
}

func (r *profileRepository) UpdateName(ctx context.Context, id, name string) (*domain.Profile, error) {
	query := `
        UPDATE profiles SET name=$1, updated_at=NOW()
        WHERE id=$2
        RETURNING ` + profileColumns
	return r.scanOne(ctx, query, name, id)
}

func (r *profileRepository) SetRole(ctx context.Context, id string, role domain.Role) error {
	return r.exec(ctx, `UPDATE profiles SET role=$1, updated_at=NOW() WHERE id=$2`, role, id)
}

func (r *profileRepository) SetStatus(ctx context.Context, id string, status domain.Status) error {
	if status == domain.StatusDeleted {
		return r.exec(ctx,
			`UPDATE profiles SET status=$1, deleted_at=NOW(), updated_at=NOW() WHERE id=$2`,
			status, id)
	}
	return r.exec(ctx, `UPDATE profiles SET status=$1, updated_at=NOW() WHERE id=$2`, status, id)
}

func (r *profileRepository) List(ctx context.Context, limit, offset int) ([]*domain.Profile, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + profileColumns + ` FROM profiles ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var profiles []*domain.Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, 0, err
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return profiles, total, nil
}

func (r *profileRepository) SetToken(ctx context.Context, id string, purpose domain.TokenPurpose, token string, expiresAt time.Time) error {
	switch purpose {
	case domain.PurposeVerifyEmail:
		return r.exec(ctx, `
            UPDATE profiles SET
                email_verification_token=$1,
                email_verification_expires=$2,
                updated_at=NOW()
            WHERE id=$3`, token, expiresAt, id)
	case domain.PurposeResetPassword:
		return r.exec(ctx, `
            UPDATE profiles SET
                reset_token=$1,
                reset_token_expiry=$2,
                updated_at=NOW()
            WHERE id=$3`, token, expiresAt.UnixMilli(), id)
	default:
		return fmt.Errorf("unknown token purpose %q", purpose)
	}
}

func (r *profileRepository) FindByToken(ctx context.Context, purpose domain.TokenPurpose, token string, now time.Time) (*domain.Profile, error) {
	switch purpose {
	case domain.PurposeVerifyEmail:
		query := `SELECT ` + profileColumns + `
            FROM profiles
            WHERE email_verification_token=$1 AND email_verification_expires > $2`
		return r.scanOne(ctx, query, token, now)
	case domain.PurposeResetPassword:
		query := `SELECT ` + profileColumns + `
            FROM profiles
            WHERE reset_token=$1 AND reset_token_expiry > $2`
		return r.scanOne(ctx, query, token, now.UnixMilli())
	default:
		return nil, fmt.Errorf("unknown token purpose %q", purpose)
	}
}

func (r *profileRepository) CompareAndClearToken(ctx context.Context, id string, purpose domain.TokenPurpose, expected string) (bool, error) {
	var query string
	switch purpose {
	case domain.PurposeVerifyEmail:
		// Marking the email verified and clearing the token is one update.
		query = `
            UPDATE profiles SET
                email_verified=TRUE,
                email_verification_token=NULL,
                email_verification_expires=NULL,
                updated_at=NOW()
            WHERE id=$1 AND email_verification_token=$2`
	case domain.PurposeResetPassword:
		query = `
            UPDATE profiles SET
                reset_token=NULL,
                reset_token_expiry=NULL,
                updated_at=NOW()
            WHERE id=$1 AND reset_token=$2`
	default:
		return false, fmt.Errorf("unknown token purpose %q", purpose)
	}

	cmd, err := r.pool.Exec(ctx, query, id, expected)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *profileRepository) exec(ctx context.Context, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *profileRepository) scanOne(ctx context.Context, query string, args ...any) (*domain.Profile, error) {
	profile, err := scanProfile(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return profile, nil
}

func scanProfile(row rowScanner) (*domain.Profile, error) {
	var p domain.Profile
	if err := row.Scan(
		&p.ID,
		&p.Email,
		&p.Name,
		&p.Role,
		&p.Status,
		&p.EmailVerified,
		&p.EmailVerificationToken,
		&p.EmailVerificationExpires,
		&p.ResetToken,
		&p.ResetTokenExpiry,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.DeletedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

// IsUniqueViolation reports whether err is a Postgres unique-index conflict.
// Token issuance uses it to regenerate on the (astronomically rare) collision.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
