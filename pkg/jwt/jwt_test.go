package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerifyToken(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)

	token, err := m.GenerateToken(7, 3, "ayse", "admin", false)
	require.NoError(t, err)

	claims, err := m.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, uint(3), claims.TenantID)
	assert.Equal(t, "admin", claims.Role)
	assert.False(t, claims.IsPlatformAdmin)
}

func TestVerifyTokenRejectsForeignKey(t *testing.T) {
	token, err := NewJWTManager("one", time.Hour).GenerateToken(1, 1, "u", "user", false)
	require.NoError(t, err)

	_, err = NewJWTManager("two", time.Hour).VerifyToken(token)
	assert.Error(t, err)
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	m := NewJWTManager("secret", -time.Minute)
	token, err := m.GenerateToken(1, 1, "u", "user", false)
	require.NoError(t, err)

	_, err = m.VerifyToken(token)
	assert.Error(t, err)
}
