package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, userID int, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  userID,
		"exp": expires.Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestVerifierUserID(t *testing.T) {
	v := NewVerifier("secret")

	token := signToken(t, "secret", 42, time.Now().Add(time.Hour))
	id, err := v.UserID(token)
	require.NoError(t, err)
	require.Equal(t, 42, id)
}

func TestVerifierRejectsWrongSecret(t *testing.T) {
	v := NewVerifier("secret")

	token := signToken(t, "other-secret", 42, time.Now().Add(time.Hour))
	_, err := v.UserID(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifierRejectsExpiredToken(t *testing.T) {
	v := NewVerifier("secret")

	token := signToken(t, "secret", 42, time.Now().Add(-time.Hour))
	_, err := v.UserID(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifierRejectsMissingIdentity(t *testing.T) {
	v := NewVerifier("secret")

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = v.UserID(signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifierRejectsGarbage(t *testing.T) {
	v := NewVerifier("secret")

	_, err := v.UserID("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenFromRequestPrecedence(t *testing.T) {
	req := httptest.NewRequest("GET", "/ws?token=from-query", nil)
	req.Header.Set("Authorization", "Bearer from-header")
	req.Header.Set("Cookie", "jwt=from-cookie")

	require.Equal(t, "from-header", TokenFromRequest(req))

	req.Header.Del("Authorization")
	require.Equal(t, "from-query", TokenFromRequest(req))
}

func TestTokenFromRequestCookieFallback(t *testing.T) {
	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Cookie", "jwt=from-cookie")

	require.Equal(t, "from-cookie", TokenFromRequest(req))
}

func TestTokenFromRequestEmpty(t *testing.T) {
	req := httptest.NewRequest("GET", "/ws", nil)
	require.Empty(t, TokenFromRequest(req))
}
