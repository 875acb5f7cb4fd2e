package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"dashchat/internal/constants"
	"dashchat/internal/models"
	"dashchat/internal/validation"

	"github.com/joho/godotenv"
)

var (
	ErrMissingDBPath    = models.ConfigError{Message: "missing database path"}
	ErrMissingJWTSecret = models.ConfigError{Message: "missing JWT secret (set auth.jwt_secret or DASHCHAT_JWT_SECRET)"}
)

// EnvironmentVar selects production checks when set to "production".
const EnvironmentVar = "DASHCHAT_ENV"

// LoadDotEnv loads variables from the given .env files, skipping files that do not
// exist. Variables already present in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

func LoadConfig(path string) (*models.Config, error) {
	if err := validation.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)
	applyDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	if err := validateSecurity(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyDefaults(c *models.Config) {
	setDefault(&c.Server.Port, constants.DefaultServerPort)
	setDefault(&c.Server.ReadTimeoutSec, constants.DefaultServerReadTimeoutSec)
	setDefault(&c.Server.WriteTimeoutSec, constants.DefaultServerWriteTimeoutSec)
	setDefault(&c.Server.IdleTimeoutSec, constants.DefaultServerIdleTimeoutSec)
	setDefault(&c.Server.CleanupIntervalHours, constants.CleanupSchedulerIntervalHours)
	setDefault(&c.Server.RateLimitPerMinute, constants.DefaultRateLimitPerMinute)
	setDefault(&c.Server.RateLimitBurst, constants.DefaultRateLimitBurst)
	setDefault(&c.Server.DeliveryCheckIntervalSec, constants.DefaultDeliveryCheckIntervalSec)
	setDefault(&c.Server.DeliveryStaleMinutes, constants.DefaultDeliveryStaleMinutes)

	setDefault(&c.Auth.TokenTTLHours, constants.DefaultTokenTTLHours)
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = constants.DefaultJWTIssuer
	}

	setDefault(&c.Database.MaxOpenConnections, constants.DefaultMaxOpenConnections)
	setDefault(&c.Database.MaxIdleConnections, constants.DefaultMaxIdleConnections)

	setDefault(&c.Messages.MaxContentLength, constants.DefaultMaxContentLength)
	setDefault(&c.Messages.DefaultPageSize, constants.DefaultMessagePageSize)

	setDefault(&c.Documents.MaxSizeMB, constants.DefaultMaxDocumentSizeMB)
	if len(c.Documents.AllowedMimeTypes) == 0 {
		c.Documents.AllowedMimeTypes = constants.DefaultDocumentMimeTypes
	}

	setDefault(&c.Retry.InitialBackoffMs, constants.DefaultRetryBackoffMs)
	setDefault(&c.Retry.MaxBackoffMs, constants.DefaultMaxBackoffMs)
	setDefault(&c.Retry.MaxAttempts, constants.DefaultMaxAttempts)

	setDefault(&c.RetentionDays, constants.DefaultRetentionDays)
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "dashchat"
	}
	if c.Tracing.SampleRate <= 0 {
		c.Tracing.SampleRate = 1.0
	}
}

func setDefault(field *int, value int) {
	if *field <= 0 {
		*field = value
	}
}

func validate(c *models.Config) error {
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}
	if c.Auth.JWTSecret == "" {
		return ErrMissingJWTSecret
	}

	if err := validation.ValidateNumericRange(c.Server.Port, "server port", 1, 65535); err != nil {
		return models.ConfigError{Message: err.Error()}
	}
	for name, v := range map[string]int{
		"read timeout":  c.Server.ReadTimeoutSec,
		"write timeout": c.Server.WriteTimeoutSec,
		"idle timeout":  c.Server.IdleTimeoutSec,
	} {
		if err := validation.ValidateTimeout(v, name); err != nil {
			return models.ConfigError{Message: err.Error()}
		}
	}
	if err := validation.ValidateConnectionPool(c.Database.MaxOpenConnections, c.Database.MaxIdleConnections); err != nil {
		return models.ConfigError{Message: err.Error()}
	}
	if err := validation.ValidateRetentionDays(c.RetentionDays); err != nil {
		return models.ConfigError{Message: err.Error()}
	}
	if c.Tracing.SampleRate > 1 {
		return models.ConfigError{Message: "tracing sample rate must be between 0 and 1"}
	}

	if c.Storage.Endpoint != "" && c.Storage.Bucket == "" {
		return models.ConfigError{Message: "storage bucket is required when a storage endpoint is set"}
	}
	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	overrideString(&c.Database.Path, "DASHCHAT_DB_PATH")
	overrideString(&c.Auth.JWTSecret, "DASHCHAT_JWT_SECRET")
	overrideString(&c.LogLevel, "DASHCHAT_LOG_LEVEL")
	overrideString(&c.Storage.Endpoint, "DASHCHAT_STORAGE_ENDPOINT")
	overrideString(&c.Storage.AccessKey, "DASHCHAT_STORAGE_ACCESS_KEY")
	overrideString(&c.Storage.SecretKey, "DASHCHAT_STORAGE_SECRET_KEY")
	overrideString(&c.Storage.Bucket, "DASHCHAT_STORAGE_BUCKET")
	overrideString(&c.Tracing.OTLPEndpoint, "DASHCHAT_OTLP_ENDPOINT")

	if port, err := strconv.Atoi(os.Getenv("DASHCHAT_PORT")); err == nil && port > 0 {
		c.Server.Port = port
	}
}

func overrideString(field *string, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		*field = v
	}
}

// IsProduction reports whether production checks are active.
func IsProduction() bool {
	return os.Getenv(EnvironmentVar) == "production"
}

// validateSecurity performs security-specific validation
func validateSecurity(c *models.Config) error {
	if IsProduction() {
		if len(c.Auth.JWTSecret) < constants.MinJWTSecretLength {
			return models.ConfigError{Message: fmt.Sprintf("JWT secret must be at least %d characters long in production", constants.MinJWTSecretLength)}
		}

		if c.LogLevel == "debug" {
			return models.ConfigError{Message: "debug logging should not be used in production (security risk)"}
		}
		return nil
	}

	if len(c.Auth.JWTSecret) < constants.MinJWTSecretLength {
		fmt.Fprintf(os.Stderr, "WARNING: JWT secret is shorter than %d characters. Set DASHCHAT_JWT_SECRET to a strong value.\n", constants.MinJWTSecretLength)
	}
	return nil
}
