package middleware

import (
	"net/http"

	"dashchat/internal/auth"
	apperrors "dashchat/internal/errors"
	"dashchat/internal/httputil"
	"dashchat/internal/service"
	"dashchat/internal/tracing"

	"github.com/sirupsen/logrus"
)

// TokenVerifier checks a bearer token's signature and expiry.
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// verified identity in the request context.
func RequireAuth(verifier TokenVerifier, logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := tracing.GetRequestID(r.Context())

			token := httputil.BearerToken(r)
			if token == "" {
				httputil.WriteError(w, apperrors.NewAuthError("missing bearer token"), requestID)
				return
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				logger.WithFields(logrus.Fields{
					service.LogFieldRequestID: requestID,
					service.LogFieldRemoteIP:  httputil.GetClientIP(r),
					service.LogFieldURL:       r.URL.Path,
				}).WithError(err).Warn("Rejected bearer token")
				httputil.WriteError(w, err, requestID)
				return
			}

			ctx := auth.WithIdentity(r.Context(), identity)
			ctx = apperrors.WithUserID(ctx, identity.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
