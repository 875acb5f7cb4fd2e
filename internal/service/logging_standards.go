package service

// Logging Standards for dashchat
//
// Standard field names used by every logging call so log queries stay stable
// across the server, the client library and the CLI.
const (
	// Core identifiers
	LogFieldRequestID     = "request_id"
	LogFieldTraceID       = "trace_id"
	LogFieldMessageID     = "message_id"
	LogFieldUserID        = "user_id"
	LogFieldSenderID      = "sender_id"
	LogFieldRecipientID   = "recipient_id"
	LogFieldCounterpartID = "counterpart_id"
	LogFieldTaskID        = "task_id"
	LogFieldRole          = "role"

	// Service and operation fields
	LogFieldService   = "service"
	LogFieldOperation = "operation"
	LogFieldComponent = "component"
	LogFieldMethod    = "method"
	LogFieldTransport = "transport" // "live" or "store"

	// Message fields
	LogFieldStatus      = "status"
	LogFieldFromStatus  = "from_status"
	LogFieldMessageType = "message_type"
	LogFieldContent     = "content"

	// Performance and metrics
	LogFieldDuration = "duration_ms"
	LogFieldCount    = "count"
	LogFieldSize     = "size_bytes"

	// Network and external services
	LogFieldURL        = "url"
	LogFieldEndpoint   = "endpoint"
	LogFieldStatusCode = "status_code"
	LogFieldRemoteIP   = "remote_ip"
	LogFieldUserAgent  = "user_agent"

	// Documents
	LogFieldFileName  = "file_name"
	LogFieldMimeType  = "mime_type"
	LogFieldObjectKey = "object_key"

	// Error and debugging
	LogFieldErrorCode = "error_code"
	LogFieldAttempt   = "attempt"
)

// Log Level Usage
//
// DEBUG: per-message flow, raw (masked) payloads. Verbose mode only.
// INFO: startup/shutdown, logins, messages stored, background jobs completed.
// WARN: fallback used (live channel to store), 403 from the store, contact
//   resolution degraded to an empty list, rate limiting, stale deliveries.
// ERROR: failed operations the caller sees: send failures, database errors.
// FATAL: startup requirements missing (config, database, JWT secret).

// Message patterns
//
// Starting operations: "Starting [operation]"
// Failed operations: "Failed to [operation]"
// Skipping operations: "Skipping [operation]: [reason]"
// External services: "[Service] request completed" / "Failed to connect to [service]"
