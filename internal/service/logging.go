package service

import (
	"context"

	"dashchat/internal/privacy"

	"github.com/sirupsen/logrus"
)

// ContextKey is a package-local type to prevent context key collisions
type ContextKey string

// VerboseContextKey is the strongly-typed context key for verbose logging flag
const VerboseContextKey ContextKey = "verbose"

// WithVerbose marks ctx so log helpers emit unmasked identifiers.
func WithVerbose(ctx context.Context, verbose bool) context.Context {
	return context.WithValue(ctx, VerboseContextKey, verbose)
}

// IsVerboseLogging checks if verbose logging is enabled from context
func IsVerboseLogging(ctx context.Context) bool {
	if verbose, ok := ctx.Value(VerboseContextKey).(bool); ok {
		return verbose
	}
	return false
}

// LogFields masks sensitive values in fields unless ctx is verbose.
func LogFields(ctx context.Context, fields logrus.Fields) logrus.Fields {
	if IsVerboseLogging(ctx) {
		return fields
	}
	masked := privacy.MaskSensitiveFields(fields)
	out := make(logrus.Fields, len(masked))
	for k, v := range masked {
		out[k] = v
	}
	return out
}

// LogWithContext returns an entry carrying the masked fields.
func LogWithContext(ctx context.Context, logger *logrus.Logger, fields logrus.Fields) *logrus.Entry {
	return logger.WithFields(LogFields(ctx, fields))
}
