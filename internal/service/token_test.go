package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ludo-arena-backend/internal/config"
	"ludo-arena-backend/internal/model"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService(config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour})

	user := &model.User{ID: 42, Role: model.RoleFinance}
	token, err := svc.Generate(user)
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, model.RoleFinance, claims.Role)
}

func TestTokenWrongSecretRejected(t *testing.T) {
	issuer := NewTokenService(config.AuthConfig{JWTSecret: "secret-a", TokenTTL: time.Hour})
	verifier := NewTokenService(config.AuthConfig{JWTSecret: "secret-b", TokenTTL: time.Hour})

	token, err := issuer.Generate(&model.User{ID: 1, Role: model.RoleNone})
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenExpiredRejected(t *testing.T) {
	svc := NewTokenService(config.AuthConfig{JWTSecret: "test-secret", TokenTTL: -time.Minute})

	token, err := svc.Generate(&model.User{ID: 1, Role: model.RoleNone})
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenGarbageRejected(t *testing.T) {
	svc := NewTokenService(config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour})

	_, err := svc.Validate("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
