package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/successplus/membership-backend/pkg/config"
	"github.com/successplus/membership-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "successplus", ExpirationMinutes: 30}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()

	token, err := MintAccessToken(cfg, time.Now().UTC(), AccessTokenPayload{
		UserID: userID,
		Email:  " Reader@Example.com ",
		Role:   enums.UserRoleSubscriber,
	})
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "reader@example.com", claims.Email)
	assert.Equal(t, enums.UserRoleSubscriber, claims.Role)
	assert.Equal(t, cfg.Issuer, claims.Issuer)
	assert.NotEmpty(t, claims.ID)

	identity := claims.Identity()
	require.NotNil(t, identity)
	assert.Equal(t, userID, identity.UserID)
}

func TestParseAccessTokenRejectsWrongSecretAndIssuer(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New()})
	require.NoError(t, err)

	_, err = ParseAccessToken(config.JWTConfig{Secret: "other", Issuer: cfg.Issuer}, token)
	require.Error(t, err)

	_, err = ParseAccessToken(config.JWTConfig{Secret: cfg.Secret, Issuer: "someone-else"}, token)
	require.Error(t, err)
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), AccessTokenPayload{UserID: uuid.New()})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "expired"))
}

func TestMintAccessTokenValidation(t *testing.T) {
	_, err := MintAccessToken(config.JWTConfig{Issuer: "x", ExpirationMinutes: 1}, time.Now(), AccessTokenPayload{UserID: uuid.New()})
	require.Error(t, err)

	_, err = MintAccessToken(testJWTConfig(), time.Now(), AccessTokenPayload{})
	require.Error(t, err)

	_, err = MintAccessToken(testJWTConfig(), time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: "owner"})
	require.Error(t, err)
}

func TestIdentityFromNilClaims(t *testing.T) {
	var claims *AccessTokenClaims
	assert.Nil(t, claims.Identity())
}
