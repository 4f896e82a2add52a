package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)

	token, err := issuer.CreateAccessToken(42, "alice")
	require.NoError(t, err)

	claims, err := issuer.ParseToken(token)
	require.NoError(t, err)
	assert.EqualValues(t, 42, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestTokenExpired(t *testing.T) {
	issuer := NewTokenIssuer("secret", -time.Minute)

	token, err := issuer.CreateAccessToken(42, "alice")
	require.NoError(t, err)

	_, err = issuer.ParseToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := NewTokenIssuer("secret-a", time.Hour).CreateAccessToken(1, "alice")
	require.NoError(t, err)

	_, err = NewTokenIssuer("secret-b", time.Hour).ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
