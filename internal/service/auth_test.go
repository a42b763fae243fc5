package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService() (*AuthService, *fakeUserRepo) {
	repo := newFakeUserRepo()
	return NewAuthService(repo, "test-secret", time.Hour), repo
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	token, user, err := svc.Register(ctx, "a@example.com", "password123", "Yamada", "09012345678")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "customer", user.Role)
	assert.NotEqual(t, "password123", user.Password)

	token, _, err = svc.Login(ctx, "a@example.com", "password123")
	require.NoError(t, err)

	parsed, err := jwt.Parse(token, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, user.ID.String(), claims["sub"])
	assert.Equal(t, "customer", claims["role"])
}

func TestAuthService_Register_Duplicate(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "a@example.com", "password123", "Yamada", "")
	require.NoError(t, err)

	_, _, err = svc.Register(ctx, "a@example.com", "password456", "Tanaka", "")
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "a@example.com", "password123", "Yamada", "")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "a@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
