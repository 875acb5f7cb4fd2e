package constants

// Default timeout values used by client packages
const (
	DefaultHTTPTimeoutSec     = 30
	DefaultDialTimeoutSec     = 10
	DefaultBackoffInitialMs   = 500
	DefaultBackoffMaxSec      = 5
	DefaultFetchRetryAttempts = 3
)

// Circuit breaker settings for the message store client
const (
	DefaultBreakerMaxFailures = 5
	DefaultBreakerTimeoutSec  = 30
)

// Credential storage
const (
	TokenKey                    = "token"
	DefaultDirectoryPermissions = 0750
)

// Grouping keys accepted by conversation aggregation
const (
	GroupBySentDate    = "sent_date"
	GroupBySender      = "sender_id"
	GroupByRecipient   = "recipient_id"
	GroupByTask        = "task_id"
	GroupByMessageType = "message_type"
	GroupByStatus      = "status"
)

// WithUserAll asks the store for every conversation of the caller.
const WithUserAll = "all"
