package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "https://auth.example.com"}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()
	userID := uuid.New()

	token, err := MintAccessToken(cfg, now, 30*time.Minute, AccessTokenPayload{
		UserID: userID,
		Email:  "owner@example.com",
		Role:   "authenticated",
		JTI:    "tok-1",
	})
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)

	got, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, userID, got)
	assert.Equal(t, "owner@example.com", claims.Email)
	assert.Equal(t, "tok-1", claims.ID)
	assert.Equal(t, cfg.Issuer, claims.Issuer)
	assert.WithinDuration(t, now.Add(30*time.Minute), claims.ExpiresAt.Time, time.Second)
}

func TestParseAccessTokenRejectsBadTokens(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now()
	valid, err := MintAccessToken(cfg, now, time.Minute, AccessTokenPayload{UserID: uuid.New()})
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		other := cfg
		other.Secret = "other"
		_, err := ParseAccessToken(other, valid)
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := cfg
		other.Issuer = "someone-else"
		_, err := ParseAccessToken(other, valid)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		expired, err := MintAccessToken(cfg, now.Add(-2*time.Hour), time.Minute, AccessTokenPayload{UserID: uuid.New()})
		require.NoError(t, err)
		_, err = ParseAccessToken(cfg, expired)
		assert.Error(t, err)
	})

	t.Run("issued in the future", func(t *testing.T) {
		future, err := MintAccessToken(cfg, now.Add(time.Hour), 2*time.Hour, AccessTokenPayload{UserID: uuid.New()})
		require.NoError(t, err)
		_, err = ParseAccessToken(cfg, future)
		assert.Error(t, err)
	})

	t.Run("audience mismatch", func(t *testing.T) {
		other := cfg
		other.Audience = "marketplace"
		_, err := ParseAccessToken(other, valid)
		assert.Error(t, err)
	})

	t.Run("tampered", func(t *testing.T) {
		parts := strings.Split(valid, ".")
		require.Len(t, parts, 3)
		_, err := ParseAccessToken(cfg, parts[0]+"."+parts[1]+".AAAA")
		assert.Error(t, err)
	})

	t.Run("non uuid subject", func(t *testing.T) {
		claims := AccessTokenClaims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "not-a-uuid",
			Issuer:    cfg.Issuer,
			ID:        "x",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		}}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
		require.NoError(t, err)
		_, err = ParseAccessToken(cfg, signed)
		assert.Error(t, err)
	})
}

func TestMintAccessTokenValidatesInput(t *testing.T) {
	_, err := MintAccessToken(config.JWTConfig{}, time.Now(), time.Minute, AccessTokenPayload{UserID: uuid.New()})
	assert.Error(t, err)
	_, err = MintAccessToken(testJWTConfig(), time.Now(), 0, AccessTokenPayload{UserID: uuid.New()})
	assert.Error(t, err)
	_, err = MintAccessToken(testJWTConfig(), time.Now(), time.Minute, AccessTokenPayload{})
	assert.Error(t, err)
}

func TestParseAccessTokenAllowsLeeway(t *testing.T) {
	cfg := testJWTConfig()
	cfg.Leeway = time.Minute
	token, err := MintAccessToken(cfg, time.Now().Add(-90*time.Second), time.Minute, AccessTokenPayload{UserID: uuid.New()})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token)
	assert.NoError(t, err)

	cfg.Leeway = 0
	_, err = ParseAccessToken(cfg, token)
	assert.Error(t, err)
}
