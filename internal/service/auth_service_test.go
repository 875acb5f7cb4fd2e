package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"dashchat/internal/auth"
	apperrors "dashchat/internal/errors"
	"dashchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestAuthService(t *testing.T, users UserLookup) (*AuthService, *auth.TokenIssuer) {
	t.Helper()
	issuer, err := auth.NewTokenIssuer("0123456789abcdef0123456789abcdef", "dashchat", time.Hour)
	require.NoError(t, err)
	return NewAuthService(users, issuer, testLogger()), issuer
}

func TestAuthService_Login(t *testing.T) {
	hash, err := auth.HashPassword("correct horse")
	require.NoError(t, err)
	owner := &models.User{ID: "o1", Name: "Olga", Email: "olga@example.com", Role: models.RoleOwner, PasswordHash: hash}

	users := &mockUserLookup{}
	users.On("GetUserByEmail", mock.Anything, "olga@example.com").Return(owner, nil)
	users.On("GetUserByEmail", mock.Anything, "nobody@example.com").Return(nil, nil)

	svc, issuer := newTestAuthService(t, users)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: " olga@example.com ", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "o1", resp.User.ID)
	assert.True(t, resp.ExpiresAt.After(time.Now()))

	identity, err := issuer.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.Identity{UserID: "o1", Role: models.RoleOwner}, identity)
	assert.Equal(t, identity, auth.Decode(resp.Token))

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "olga@example.com", Password: "wrong"})
	assert.Equal(t, apperrors.ErrCodeAuthentication, apperrors.GetCode(err))

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "x"})
	assert.Equal(t, apperrors.ErrCodeAuthentication, apperrors.GetCode(err))
}

func TestAuthService_LoginValidation(t *testing.T) {
	users := &mockUserLookup{}
	svc, _ := newTestAuthService(t, users)

	_, err := svc.Login(context.Background(), models.LoginRequest{Password: "x"})
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.GetCode(err))

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "a@example.com"})
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.GetCode(err))

	users.AssertNotCalled(t, "GetUserByEmail", mock.Anything, mock.Anything)
}

func TestAuthService_LookupFailure(t *testing.T) {
	users := &mockUserLookup{}
	dbErr := apperrors.NewDatabaseError("get user by email", errors.New("disk I/O error"))
	users.On("GetUserByEmail", mock.Anything, "a@example.com").Return(nil, dbErr)

	svc, _ := newTestAuthService(t, users)
	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "a@example.com", Password: "x"})
	assert.Equal(t, apperrors.ErrCodeDatabaseQuery, apperrors.GetCode(err))
}
