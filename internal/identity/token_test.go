package identity

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestGenerateParseRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)

	token, exp, err := tm.Generate("u1", "ada@example.com", true)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := tm.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.UserID)
	require.Equal(t, "ada@example.com", claims.Email)
	require.True(t, claims.EmailVerified)
	require.WithinDuration(t, exp, claims.ExpiresAt, time.Second)
}

func TestParseExpiredToken(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)

	stale := jwt.NewWithClaims(jwt.SigningMethodHS256, &tokenClaims{
		Email: "ada@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := stale.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = tm.Parse(signed)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	minted := NewTokenManager("secret-a", 60)
	verifier := NewTokenManager("secret-b", 60)

	token, _, err := minted.Generate("u1", "ada@example.com", false)
	require.NoError(t, err)

	_, err = verifier.Parse(token)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestParseRejectsGarbage(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)

	for _, token := range []string{"", "garbage", "a.b.c"} {
		_, err := tm.Parse(token)
		require.ErrorIs(t, err, ErrTokenInvalid)
	}
}

func TestParseRejectsUnsignedToken(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = tm.Parse(signed)
	require.ErrorIs(t, err, ErrTokenInvalid)
}
