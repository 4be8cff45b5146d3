package jwttoken

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	service := NewJWTService("test-signing-key", "passgate", "passgate-api")
	userID := uuid.New()

	token, err := service.GenerateAccessToken(userID, "gate_staff", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "gate_staff", claims.Role)
}

func TestValidateExpiredToken(t *testing.T) {
	service := NewJWTService("test-signing-key", "passgate", "passgate-api")

	token, err := service.GenerateAccessToken(uuid.New(), "resident", -time.Minute)
	require.NoError(t, err)

	_, err = service.ValidateToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestValidateWrongKey(t *testing.T) {
	service := NewJWTService("key-one", "passgate", "passgate-api")
	other := NewJWTService("key-two", "passgate", "passgate-api")

	token, err := service.GenerateAccessToken(uuid.New(), "resident", time.Hour)
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	require.Error(t, err)
}
