package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&APICredential{}))

	svc := NewService("test-secret", db)
	require.NoError(t, svc.RegisterAPICredentials("test-key", "test-secret-value"))
	return svc
}

func TestGenerateTokenValidCredentials(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.GenerateToken(Credentials{
		APIKey:    "test-key",
		APISecret: "test-secret-value",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, token.Token)

	claims, err := svc.ValidateToken(token.Token)
	require.NoError(t, err)
	assert.Equal(t, "test-key", claims.ClientID)
	assert.Contains(t, claims.Permissions, "transfer-agent")
}

func TestGenerateTokenInvalidCredentials(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.GenerateToken(Credentials{
		APIKey:    "test-key",
		APISecret: "wrong",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.GenerateToken(Credentials{
		APIKey:    "unknown",
		APISecret: "whatever",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.GenerateToken(Credentials{
		APIKey:    "test-key",
		APISecret: "test-secret-value",
	})
	require.NoError(t, err)

	other := NewService("different-secret", nil)
	_, err = other.ValidateToken(token.Token)
	assert.Error(t, err)
}
