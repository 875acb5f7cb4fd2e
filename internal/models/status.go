package models

import "strings"

// DeliveryStatus describes where a message is in transit.
type DeliveryStatus string

const (
	DeliveryStatusSending   DeliveryStatus = "sending"
	DeliveryStatusSent      DeliveryStatus = "sent"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusRead      DeliveryStatus = "read"
	DeliveryStatusError     DeliveryStatus = "error"
	DeliveryStatusReceived  DeliveryStatus = "received"
)

// AllDeliveryStatuses lists the closed set of statuses in display order.
var AllDeliveryStatuses = []DeliveryStatus{
	DeliveryStatusSending,
	DeliveryStatusSent,
	DeliveryStatusDelivered,
	DeliveryStatusRead,
	DeliveryStatusError,
	DeliveryStatusReceived,
}

// StatusIndicator is what a client renders next to a message.
type StatusIndicator struct {
	Label string `json:"label"`
	Icon  string `json:"icon"`
}

var statusIndicators = map[DeliveryStatus]StatusIndicator{
	DeliveryStatusSending:   {Label: "Sending", Icon: "clock"},
	DeliveryStatusSent:      {Label: "Sent", Icon: "check"},
	DeliveryStatusDelivered: {Label: "Delivered", Icon: "check-double"},
	DeliveryStatusRead:      {Label: "Read", Icon: "check-double-filled"},
	DeliveryStatusError:     {Label: "Failed", Icon: "alert-circle"},
	DeliveryStatusReceived:  {Label: "Received", Icon: "inbox"},
}

// ParseDeliveryStatus maps any string onto the closed status set.
// Unknown or empty values resolve to sent.
func ParseDeliveryStatus(s string) DeliveryStatus {
	status := DeliveryStatus(strings.ToLower(strings.TrimSpace(s)))
	if status.IsValid() {
		return status
	}
	return DeliveryStatusSent
}

// IsValid reports whether s is one of the six known statuses.
func (s DeliveryStatus) IsValid() bool {
	_, ok := statusIndicators[s]
	return ok
}

// Indicator returns the label and icon for the status; unknown values render as sent.
func (s DeliveryStatus) Indicator() StatusIndicator {
	if ind, ok := statusIndicators[s]; ok {
		return ind
	}
	return statusIndicators[DeliveryStatusSent]
}

var allowedTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryStatusSending:   {DeliveryStatusSent, DeliveryStatusError},
	DeliveryStatusSent:      {DeliveryStatusDelivered, DeliveryStatusRead},
	DeliveryStatusDelivered: {DeliveryStatusRead},
	DeliveryStatusReceived:  {DeliveryStatusRead},
}

// CanTransitionTo reports whether moving from s to next keeps the status monotonic.
// Re-applying the current status is allowed so updates stay idempotent.
func (s DeliveryStatus) CanTransitionTo(next DeliveryStatus) bool {
	if s == next {
		return s.IsValid()
	}
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s DeliveryStatus) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0
}
