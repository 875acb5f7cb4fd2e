package constants

// Default server configuration values
const (
	DefaultServerPort             = 8082
	DefaultRetryBackoffMs         = 1000
	DefaultMaxBackoffMs           = 60000
	DefaultMaxAttempts            = 5
	DefaultRetentionDays          = 365
	DefaultTokenTTLHours          = 24
	DefaultJWTIssuer              = "dashchat"
	MinJWTSecretLength            = 32
	DefaultRateLimitPerMinute     = 120
	DefaultRateLimitBurst         = 20
	DefaultMaxContentLength       = 4000
	DefaultMessagePageSize        = 500
	DefaultMaxDocumentSizeMB      = 25
	BytesPerMegabyte              = 1024 * 1024
	CleanupSchedulerIntervalHours = 24
)

// Default timeout values
const (
	DefaultDatabaseRetryAttempts    = 3
	DefaultGracefulShutdownSec      = 30
	DefaultServerReadTimeoutSec     = 15
	DefaultServerWriteTimeoutSec    = 15
	DefaultServerIdleTimeoutSec     = 60
	DefaultDeliveryCheckIntervalSec = 60
	DefaultDeliveryStaleMinutes     = 10
	DefaultConfigPollIntervalSec    = 5
)

// Live channel settings
const (
	WebSocketSendBufferSize  = 64
	WebSocketWriteTimeoutSec = 10
	WebSocketMaxFrameBytes   = 64 * 1024
	ServerErrorChannelSize   = 1
)

// Database connection pool defaults
const (
	DefaultMaxOpenConnections = 1
	DefaultMaxIdleConnections = 1
)

// Encryption salts. Changing these invalidates previously encrypted content.
const (
	EncryptionSalt = "dashchat-content-salt-v1"
)

// Privacy settings
const (
	DefaultUserIDMaskLength = 4
	DefaultContentPreview   = 12
)

// Input limits
const (
	MaxIDLength          = 128
	MaxDisplayNameLength = 200
	MaxDescriptionLength = 1000
	MaxFilenameLength    = 255
	MaxRequestBodyBytes  = 1024 * 1024
)
