package models

import "time"

// Message types understood by clients.
const (
	MessageTypeText = "text"
	MessageTypeFile = "file"
)

// SentDateLayout is the calendar-day format used for sent_date.
const SentDateLayout = "2006-01-02"

// Message is a single chat message as persisted by the store and returned to clients.
type Message struct {
	ID          string         `json:"id"`
	SenderID    string         `json:"sender_id"`
	RecipientID string         `json:"recipient_id,omitempty"`
	TaskID      string         `json:"task_id,omitempty"`
	Content     string         `json:"content"`
	MessageType string         `json:"message_type"`
	SentDate    string         `json:"sent_date"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Status      DeliveryStatus `json:"status"`
	Unread      bool           `json:"unread"`
}

// Day returns the calendar day the message belongs to, falling back to CreatedAt.
func (m *Message) Day() string {
	if m.SentDate != "" {
		return m.SentDate
	}
	if m.CreatedAt.IsZero() {
		return ""
	}
	return m.CreatedAt.Format(SentDateLayout)
}

// Counterpart returns the conversation key for the message as seen by selfID.
// Task channel messages are keyed by task so every participant shares one thread.
func (m *Message) Counterpart(selfID string) string {
	if m.TaskID != "" {
		return "task:" + m.TaskID
	}
	if m.SenderID == selfID {
		return m.RecipientID
	}
	return m.SenderID
}

// SendMessageRequest is the body of POST /messages.
type SendMessageRequest struct {
	TaskID      string `json:"taskId,omitempty"`
	RecipientID string `json:"recipientId"`
	Content     string `json:"content"`
}

// StatusUpdateRequest is the body of PATCH /messages/{id}/status.
type StatusUpdateRequest struct {
	Status DeliveryStatus `json:"status"`
}

// MarkReadRequest is the body of POST /messages/read.
type MarkReadRequest struct {
	WithUser string `json:"withUser"`
}

// MarkReadResponse reports how many messages a mark-read call changed.
type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}

// DateGroup holds the messages that share one grouping key, usually a calendar day.
type DateGroup struct {
	Key      string    `json:"key"`
	Messages []Message `json:"messages"`
}

// Conversation is the read-side projection of the messages exchanged with one counterpart.
type Conversation struct {
	CounterpartID string    `json:"counterpart_id"`
	Messages      []Message `json:"messages"`
	UnreadCount   int       `json:"unread_count"`
}

// LastMessage returns the most recently appended message, or nil for an empty conversation.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

// IsTaskChannel reports whether the conversation is a task channel rather than a direct chat.
func (c *Conversation) IsTaskChannel() bool {
	return len(c.CounterpartID) > 5 && c.CounterpartID[:5] == "task:"
}
