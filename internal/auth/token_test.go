// ABOUTME: Tests for JWT token issuing and verification
// ABOUTME: Covers roundtrips, expiry, wrong secrets and refresh/access separation

package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTVerifier_RoundTrip(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))

	token, err := v.Generate("user-123", time.Hour)
	require.NoError(t, err)

	userID, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", userID)
}

func TestJWTVerifier_ExpiredToken(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))

	token, err := v.Generate("user-123", -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTVerifier_WrongSecret(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))
	other := NewJWTVerifier([]byte("other-secret"))

	token, err := v.Generate("user-123", time.Hour)
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTVerifier_GarbageToken(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))

	_, err := v.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTVerifier_RefreshTokenRejectedAsAccess(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))

	refresh, err := v.GenerateRefresh("user-123", time.Hour)
	require.NoError(t, err)

	_, err = v.Verify(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)

	userID, err := v.VerifyRefresh(refresh)
	require.NoError(t, err)
	assert.Equal(t, "user-123", userID)
}

func TestJWTVerifier_AccessTokenRejectedAsRefresh(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))

	access, err := v.Generate("user-123", time.Hour)
	require.NoError(t, err)

	_, err = v.VerifyRefresh(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExtractBearerToken(t *testing.T) {
	token, errMsg := ExtractBearerToken("Bearer abc123")
	assert.Empty(t, errMsg)
	assert.Equal(t, "abc123", token)

	_, errMsg = ExtractBearerToken("")
	assert.Equal(t, "missing authorization header", errMsg)

	_, errMsg = ExtractBearerToken("Basic abc123")
	assert.Equal(t, "invalid authorization header format", errMsg)

	_, errMsg = ExtractBearerToken("Bearer ")
	assert.Equal(t, "empty token", errMsg)
}

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)

	assert.True(t, ComparePassword("hunter22", hash))
	assert.False(t, ComparePassword("hunter23", hash))
}
