package jwt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_RoundTrip(t *testing.T) {
	m := NewManager("secret", 3600, 7200)

	token, err := m.GenerateAccessToken(42, "neo", 3)
	require.NoError(t, err)

	claims, err := m.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), claims.UserID)
	assert.Equal(t, "neo", claims.Nickname)
	assert.Equal(t, 3, claims.Level)
}

func TestManager_WrongSecret(t *testing.T) {
	token, err := NewManager("a", 3600, 0).GenerateAccessToken(1, "x", 1)
	require.NoError(t, err)

	_, err = NewManager("b", 3600, 0).VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManager_Expired(t *testing.T) {
	m := NewManager("secret", -10, 0)
	token, err := m.GenerateAccessToken(1, "x", 1)
	require.NoError(t, err)

	_, err = m.VerifyToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}
