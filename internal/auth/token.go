package auth

import (
	"time"

	apperrors "dashchat/internal/errors"
	"dashchat/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload of a dashchat token.
type Claims struct {
	UserID string `json:"id"`
	Role   string `json:"role"`
	Name   string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an issuer for the given secret. A non-positive ttl is an error.
func NewTokenIssuer(secret, issuer string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, apperrors.NewConfigError("auth.jwt_secret", "secret is required")
	}
	if ttl <= 0 {
		return nil, apperrors.NewConfigError("auth.token_ttl_hours", "ttl must be positive")
	}
	return &TokenIssuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue returns a signed token for user and its expiry.
func (ti *TokenIssuer) Issue(user *models.User) (string, time.Time, error) {
	now := ti.now()
	expiresAt := now.Add(ti.ttl)
	claims := Claims{
		UserID: user.ID,
		Role:   user.Role,
		Name:   user.GetDisplayName(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    ti.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", time.Time{}, apperrors.Wrap(err, apperrors.ErrCodeInternalError, "failed to sign token")
	}
	return signed, expiresAt, nil
}

// Verify checks the token's signature, issuer and expiry and returns its identity.
func (ti *TokenIssuer) Verify(token string) (Identity, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ti.now),
	}
	if ti.issuer != "" {
		opts = append(opts, jwt.WithIssuer(ti.issuer))
	}

	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return ti.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, apperrors.Wrap(err, apperrors.ErrCodeAuthentication, "invalid token").
			WithUserMessage("Authentication failed")
	}

	id := claims.UserID
	if id == "" {
		id = claims.Subject
	}
	if id == "" {
		return Identity{}, apperrors.NewAuthError("token has no subject")
	}
	return Identity{UserID: id, Role: claims.Role}, nil
}
