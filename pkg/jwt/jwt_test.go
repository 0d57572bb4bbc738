package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-access-secret-key-for-testing-purposes"

func TestGenerateAndValidateAccessToken(t *testing.T) {
	service := NewService(testSecret, time.Hour)
	userID := uuid.New()

	token, err := service.GenerateAccessToken(userID, "guest@example.com", "Ada", []string{"guest"})
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := service.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "guest@example.com", claims.Email)
	assert.Equal(t, "Ada", claims.Name)
	assert.True(t, claims.HasRole("guest"))
	assert.False(t, claims.HasRole("admin"))
	assert.Equal(t, Issuer, claims.Issuer)
}

func TestValidateAccessToken_Rejects(t *testing.T) {
	service := NewService(testSecret, time.Hour)
	userID := uuid.New()

	t.Run("Wrong secret", func(t *testing.T) {
		other := NewService("another-secret", time.Hour)
		token, err := other.GenerateAccessToken(userID, "", "", nil)
		require.NoError(t, err)

		_, err = service.ValidateAccessToken(token)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("Expired", func(t *testing.T) {
		expired := NewService(testSecret, -time.Minute)
		token, err := expired.GenerateAccessToken(userID, "", "", nil)
		require.NoError(t, err)

		_, err = service.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("Wrong issuer", func(t *testing.T) {
		claims := Claims{
			UserID: userID,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "someone-else",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = service.ValidateAccessToken(token)
		assert.Error(t, err)
	})

	t.Run("None algorithm", func(t *testing.T) {
		claims := Claims{UserID: userID, RegisteredClaims: jwt.RegisteredClaims{Issuer: Issuer}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = service.ValidateAccessToken(token)
		assert.Error(t, err)
	})

	t.Run("Missing user id", func(t *testing.T) {
		token, err := service.GenerateAccessToken(uuid.Nil, "", "", nil)
		require.NoError(t, err)

		_, err = service.ValidateAccessToken(token)
		assert.Error(t, err)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := service.ValidateAccessToken("not.a.token")
		assert.Error(t, err)
	})
}
