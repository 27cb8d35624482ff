package identity

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/account-service/internal/config"
)

// LocalProvider is a Postgres-backed identity provider: auth records live in
// the identities table and bearer tokens are HS256 JWTs. It is constructed
// once in main and injected everywhere a Provider is needed.
type LocalProvider struct {
	pool        *pgxpool.Pool
	tokens      *TokenManager
	bcryptCost  int
	callTimeout time.Duration
}

// NewLocalProvider builds the provider from config.
func NewLocalProvider(pool *pgxpool.Pool, cfg config.IdentityConfig) *LocalProvider {
	return &LocalProvider{
		pool:        pool,
		tokens:      NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		bcryptCost:  cfg.BcryptCost,
		callTimeout: cfg.CallTimeout(),
	}
}

// VerifyToken validates a bearer token and returns its claims.
func (p *LocalProvider) VerifyToken(ctx context.Context, token string) (*Claims, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.tokens.Parse(token)
}

// CreateIdentity inserts a new auth record.
func (p *LocalProvider) CreateIdentity(ctx context.Context, n NewIdentity) error {
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	hash, err := bcrypt.GenerateFromPassword([]byte(n.Password), p.bcryptCost)
	if err != nil {
		return err
	}

	const query = `
        INSERT INTO identities (id, email, password_hash)
        VALUES ($1, $2, $3)`
	if _, err := p.pool.Exec(ctx, query, n.ID, n.Email, string(hash)); err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

// UpdateIdentity applies the non-nil fields of upd to the record.
func (p *LocalProvider) UpdateIdentity(ctx context.Context, id string, upd Update) error {
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	const query = `
        UPDATE identities SET
            email          = COALESCE($1, email),
            password_hash  = COALESCE($2, password_hash),
            email_verified = COALESCE($3, email_verified),
            disabled       = COALESCE($4, disabled),
            updated_at     = NOW()
        WHERE id=$5`

	var passwordHash *string
	if upd.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*upd.Password), p.bcryptCost)
		if err != nil {
			return err
		}
		s := string(hash)
		passwordHash = &s
	}

	cmd, err := p.pool.Exec(ctx, query, upd.Email, passwordHash, upd.EmailVerified, upd.Disabled, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteIdentity hard-deletes the auth record.
func (p *LocalProvider) DeleteIdentity(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	cmd, err := p.pool.Exec(ctx, `DELETE FROM identities WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetClaims replaces the record's custom claims.
func (p *LocalProvider) SetClaims(ctx context.Context, id string, claims map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	encoded, err := json.Marshal(claims)
	if err != nil {
		return err
	}

	cmd, err := p.pool.Exec(ctx,
		`UPDATE identities SET custom_claims=$1, updated_at=NOW() WHERE id=$2`, encoded, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetIdentity fetches the auth record.
func (p *LocalProvider) GetIdentity(ctx context.Context, id string) (*Record, error) {
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	const query = `
        SELECT id, email, email_verified, disabled, custom_claims, created_at
        FROM identities WHERE id=$1`

	var rec Record
	var claims []byte
	if err := p.pool.QueryRow(ctx, query, id).Scan(
		&rec.ID,
		&rec.Email,
		&rec.EmailVerified,
		&rec.Disabled,
		&claims,
		&rec.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(claims) > 0 {
		_ = json.Unmarshal(claims, &rec.Claims)
	}
	return &rec, nil
}

// CheckPassword verifies the password for the email and returns the identity id.
func (p *LocalProvider) CheckPassword(ctx context.Context, email, password string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	const query = `
        SELECT id, password_hash, disabled FROM identities WHERE email=$1`

	var id, hash string
	var disabled bool
	if err := p.pool.QueryRow(ctx, query, email).Scan(&id, &hash, &disabled); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrBadCredentials
		}
		return "", err
	}
	if disabled {
		return "", ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", ErrBadCredentials
	}
	return id, nil
}

// IssueToken mints a bearer token for the identity.
func (p *LocalProvider) IssueToken(ctx context.Context, id string) (string, time.Time, error) {
	rec, err := p.GetIdentity(ctx, id)
	if err != nil {
		return "", time.Time{}, err
	}
	return p.tokens.Generate(rec.ID, rec.Email, rec.EmailVerified)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
