package security_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/successplus/membership-backend/pkg/config"
	"github.com/successplus/membership-backend/pkg/security"
)

func fastParams() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    8 * 1024,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := security.HashPassword("very-secure-password", fastParams())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

	ok, err := security.VerifyPassword("very-secure-password", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = security.VerifyPassword("bogus-password", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPasswordBadHash(t *testing.T) {
	_, err := security.VerifyPassword("irrelevant", "not-a-hash")
	require.ErrorIs(t, err, security.ErrInvalidHash)
}

func TestPlaceholderHashIsUniqueAndWellFormed(t *testing.T) {
	first, err := security.PlaceholderHash(fastParams())
	require.NoError(t, err)
	second, err := security.PlaceholderHash(fastParams())
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	ok, err := security.VerifyPassword("", first)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRandomSecret(t *testing.T) {
	secret, err := security.RandomSecret(32)
	require.NoError(t, err)
	assert.Len(t, secret, 32)
	for _, r := range secret {
		assert.True(t, (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
	}

	_, err = security.RandomSecret(0)
	require.Error(t, err)
}
