package models

// Config holds the application configuration
type Config struct {
	Server        ServerConfig   `json:"server"`
	Auth          AuthConfig     `json:"auth"`
	Database      DatabaseConfig `json:"database"`
	Messages      MessagesConfig `json:"messages"`
	Documents     DocumentConfig `json:"documents"`
	Storage       StorageConfig  `json:"storage"`
	Retry         RetryConfig    `json:"retry"`
	Tracing       TracingConfig  `json:"tracing"`
	LogLevel      string         `json:"log_level"`
	RetentionDays int            `json:"retentionDays"`
}

// ServerConfig holds HTTP server related configurations
type ServerConfig struct {
	Port                     int `json:"port"`
	ReadTimeoutSec           int `json:"readTimeoutSec"`
	WriteTimeoutSec          int `json:"writeTimeoutSec"`
	IdleTimeoutSec           int `json:"idleTimeoutSec"`
	CleanupIntervalHours     int `json:"cleanupIntervalHours"`
	RateLimitPerMinute       int `json:"rateLimitPerMinute"`
	RateLimitBurst           int `json:"rateLimitBurst"`
	DeliveryCheckIntervalSec int `json:"deliveryCheckIntervalSec"`
	DeliveryStaleMinutes     int `json:"deliveryStaleMinutes"`
}

// AuthConfig holds token issuing configuration
type AuthConfig struct {
	JWTSecret     string `json:"jwt_secret"`
	TokenTTLHours int    `json:"tokenTTLHours"`
	Issuer        string `json:"issuer"`
}

// DatabaseConfig holds database related configurations
type DatabaseConfig struct {
	Path               string `json:"path"`
	MaxOpenConnections int    `json:"maxOpenConnections"`
	MaxIdleConnections int    `json:"maxIdleConnections"`
}

// MessagesConfig holds limits applied to chat messages
type MessagesConfig struct {
	MaxContentLength int `json:"maxContentLength"`
	DefaultPageSize  int `json:"defaultPageSize"`
}

// DocumentConfig holds limits applied to task document uploads
type DocumentConfig struct {
	MaxSizeMB        int      `json:"maxSizeMB"`
	AllowedMimeTypes []string `json:"allowedMimeTypes"`
}

// StorageConfig holds object storage configuration for task documents
type StorageConfig struct {
	Endpoint      string `json:"endpoint"`
	UseSSL        bool   `json:"use_ssl"`
	AccessKey     string `json:"access_key"`
	SecretKey     string `json:"secret_key"`
	Bucket        string `json:"bucket"`
	PublicBaseURL string `json:"public_base_url"`
}

// Enabled reports whether object storage has been configured.
func (s StorageConfig) Enabled() bool {
	return s.Endpoint != "" && s.Bucket != ""
}

// RetryConfig holds retry related configurations
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	UseStdout      bool    `json:"use_stdout"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
