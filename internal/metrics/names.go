package metrics

// Metric names shared by the server and the client library.
const (
	MessagesStored       = "messages_stored_total"
	MessagesRejected     = "messages_rejected_total"
	MessageStatusUpdates = "message_status_updates_total"
	MessagesByStatus     = "messages_by_status"
	StaleMessages        = "messages_stale"
	MessagesCleanedUp    = "messages_cleaned_up_total"

	SendAttempts = "composer_send_attempts_total"
	SendFailures = "composer_send_failures_total"
	SendLatency  = "composer_send_duration"

	StoreRequests        = "store_requests_total"
	StoreRequestFailures = "store_request_failures_total"
	StoreForbidden       = "store_forbidden_total"

	ContactResolutions    = "contact_resolutions_total"
	ContactResolutionFail = "contact_resolution_failures_total"

	LiveConnections     = "live_connections"
	LiveFramesReceived  = "live_frames_received_total"
	LiveFramesDelivered = "live_frames_delivered_total"

	DocumentsUploaded = "documents_uploaded_total"
	DocumentBytes     = "document_bytes_total"

	LoginAttempts = "login_attempts_total"
	RateLimited   = "rate_limited_total"

	HTTPRequests        = "http_requests_total"
	HTTPRequestDuration = "http_request_duration"
	HTTPErrors          = "http_errors_total"
)
