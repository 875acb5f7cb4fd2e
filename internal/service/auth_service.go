package service

import (
	"context"
	"strings"

	"dashchat/internal/auth"
	apperrors "dashchat/internal/errors"
	"dashchat/internal/metrics"
	"dashchat/internal/models"

	"github.com/sirupsen/logrus"
)

// UserLookup finds accounts for login and directory listing.
type UserLookup interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// AuthService exchanges email and password for a signed token.
type AuthService struct {
	users  UserLookup
	issuer *auth.TokenIssuer
	logger *logrus.Logger
	errLog *apperrors.Logger
}

func NewAuthService(users UserLookup, issuer *auth.TokenIssuer, logger *logrus.Logger) *AuthService {
	return &AuthService{
		users:  users,
		issuer: issuer,
		logger: logger,
		errLog: apperrors.WrapLogger(logger),
	}
}

// Login checks the credentials and issues a token. Unknown email and wrong
// password fail the same way.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return nil, apperrors.NewValidationError("email", "", "email is required")
	}
	if req.Password == "" {
		return nil, apperrors.NewValidationError("password", "", "password is required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		s.errLog.LogError(err, "Failed to look up user for login")
		return nil, err
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		metrics.IncrementCounter(metrics.LoginAttempts, map[string]string{"result": "failure"}, "Login attempts")
		s.logger.WithFields(LogFields(ctx, logrus.Fields{
			LogFieldOperation: "login",
		})).Warn("Login rejected")
		return nil, apperrors.NewAuthError("invalid credentials")
	}

	token, expiresAt, err := s.issuer.Issue(user)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternalError, "failed to issue token")
	}

	metrics.IncrementCounter(metrics.LoginAttempts, map[string]string{"result": "success"}, "Login attempts")
	s.logger.WithFields(LogFields(ctx, logrus.Fields{
		LogFieldUserID: user.ID,
		LogFieldRole:   user.Role,
	})).Info("User logged in")

	return &models.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      *user,
	}, nil
}
