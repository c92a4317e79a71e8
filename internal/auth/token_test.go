package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret []byte, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func validClaims(issuer string) Claims {
	now := time.Now()
	return Claims{
		UserID:      uuid.New(),
		DisplayName: "tester",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
}

func TestVerifyValidToken(t *testing.T) {
	secret := []byte("test-secret")
	verifier := NewVerifier(secret, "identity-svc")

	want := validClaims("identity-svc")
	claims, err := verifier.Verify(signToken(t, secret, want))
	require.NoError(t, err)
	assert.Equal(t, want.UserID, claims.UserID)
	assert.Equal(t, "tester", claims.DisplayName)
}

func TestVerifyWrongSecret(t *testing.T) {
	verifier := NewVerifier([]byte("right-secret"), "")

	_, err := verifier.Verify(signToken(t, []byte("wrong-secret"), validClaims("")))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyExpiredToken(t *testing.T) {
	secret := []byte("test-secret")
	verifier := NewVerifier(secret, "")

	claims := validClaims("")
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	_, err := verifier.Verify(signToken(t, secret, claims))
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerifyWrongIssuer(t *testing.T) {
	secret := []byte("test-secret")
	verifier := NewVerifier(secret, "identity-svc")

	_, err := verifier.Verify(signToken(t, secret, validClaims("someone-else")))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyGarbage(t *testing.T) {
	verifier := NewVerifier([]byte("test-secret"), "")

	_, err := verifier.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
