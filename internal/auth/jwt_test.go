package auth

import (
	"testing"
	"time"

	"github.com/safar/go-shop-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func TestTokenRoundTrip(t *testing.T) {
	user := &models.User{
		ID:       42,
		Username: "alice",
		Email:    "alice@example.com",
		Role:     models.RoleAdmin,
	}

	token, err := GenerateAccessToken(user, testSecret, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateAccessToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestExpiredTokenRejected(t *testing.T) {
	user := &models.User{ID: 1, Role: models.RoleUser}

	token, err := GenerateAccessToken(user, testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = ValidateAccessToken(token, testSecret)
	assert.Error(t, err)
}

func TestWrongSecretRejected(t *testing.T) {
	user := &models.User{ID: 1, Role: models.RoleUser}

	token, err := GenerateAccessToken(user, testSecret, time.Hour)
	require.NoError(t, err)

	_, err = ValidateAccessToken(token, []byte("other-secret"))
	assert.Error(t, err)
}

func TestGarbageTokenRejected(t *testing.T) {
	_, err := ValidateAccessToken("not.a.token", testSecret)
	assert.Error(t, err)
}
