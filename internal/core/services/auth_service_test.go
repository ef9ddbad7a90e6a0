package services

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"streamgate/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_RoundTrip(t *testing.T) {
	svc := NewAuthService("test-secret")

	token, err := svc.GenerateToken(domain.Broadcaster{ID: "alice", DisplayName: "Alice"}, time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, domain.Broadcaster{ID: "alice", DisplayName: "Alice"}, claims.Broadcaster())
}

func TestAuthService_Rejects(t *testing.T) {
	svc := NewAuthService("test-secret")

	expired, err := svc.GenerateToken(domain.Broadcaster{ID: "alice"}, -time.Minute)
	require.NoError(t, err)
	_, err = svc.ValidateToken(expired)
	assert.ErrorIs(t, err, ErrExpiredToken)

	foreign, err := NewAuthService("other-secret").GenerateToken(domain.Broadcaster{ID: "alice"}, time.Hour)
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "alice"})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateToken(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_SubjectFallbackAndBlankIdentity(t *testing.T) {
	svc := NewAuthService("test-secret")

	sign := func(c *Claims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		return s
	}

	claims, err := svc.ValidateToken(sign(&Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "bob"}}))
	require.NoError(t, err)
	assert.Equal(t, "bob", claims.UserID)

	_, err = svc.ValidateToken(sign(&Claims{UserID: "  "}))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_RepairsDisplayName(t *testing.T) {
	svc := NewAuthService("test-secret")

	long := strings.Repeat("é", 150)
	token, err := svc.GenerateToken(domain.Broadcaster{ID: "alice", DisplayName: "  Al\x07ice " + long}, time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(claims.DisplayName, "Alice "))
	assert.Equal(t, 100, utf8.RuneCountInString(claims.DisplayName))
}
