package models

// Live channel frame types.
const (
	FrameSend    = "send"
	FrameAck     = "ack"
	FrameMessage = "message"
	FrameStatus  = "status"
	FrameError   = "error"
	FramePing    = "ping"
	FramePong    = "pong"
)

// LiveFrame is one JSON frame on the /ws live channel. Which fields are set
// depends on Type.
type LiveFrame struct {
	Type        string         `json:"type"`
	ClientID    string         `json:"client_id,omitempty"`
	RecipientID string         `json:"recipientId,omitempty"`
	TaskID      string         `json:"taskId,omitempty"`
	Content     string         `json:"content,omitempty"`
	Message     *Message       `json:"message,omitempty"`
	ID          string         `json:"id,omitempty"`
	Status      DeliveryStatus `json:"status,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// SendRequest returns the message request carried by a send frame.
func (f *LiveFrame) SendRequest() SendMessageRequest {
	return SendMessageRequest{
		TaskID:      f.TaskID,
		RecipientID: f.RecipientID,
		Content:     f.Content,
	}
}
