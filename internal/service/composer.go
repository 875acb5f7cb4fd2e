package service

import (
	"context"
	"strings"
	"sync"
	"time"

	apperrors "dashchat/internal/errors"
	"dashchat/internal/metrics"
	"dashchat/internal/models"

	"github.com/sirupsen/logrus"
)

// Transports a composer can send through.
const (
	TransportLive  = "live"
	TransportStore = "store"
)

// MessageAppender appends a message through the message store API.
type MessageAppender interface {
	SendMessage(ctx context.Context, req models.SendMessageRequest) (*models.Message, error)
}

// LiveChannel is the realtime transport a composer prefers when it is connected.
type LiveChannel interface {
	SendContent(ctx context.Context, req models.SendMessageRequest) (*models.Message, error)
	Connected() bool
}

// SendResult reports what a Send call did. Skipped sends made no transport call.
type SendResult struct {
	Skipped   bool
	Transport string
	Message   *models.Message
	Err       error
}

// OK reports whether the message was handed to a transport successfully.
func (r SendResult) OK() bool {
	return !r.Skipped && r.Err == nil
}

// Composer holds the outgoing draft for one conversation.
type Composer struct {
	mu          sync.Mutex
	draft       string
	recipientID string
	taskID      string

	store  MessageAppender
	live   LiveChannel
	logger *logrus.Logger
	errLog *apperrors.Logger
}

// NewComposer creates a composer. live may be nil.
func NewComposer(store MessageAppender, live LiveChannel, logger *logrus.Logger) *Composer {
	return &Composer{
		store:  store,
		live:   live,
		logger: logger,
		errLog: apperrors.WrapLogger(logger),
	}
}

// SetDraft replaces the draft. The last write wins.
func (c *Composer) SetDraft(draft string) {
	c.mu.Lock()
	c.draft = draft
	c.mu.Unlock()
}

// Draft returns the current draft.
func (c *Composer) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// SetTarget selects the recipient and, for task channels, the task.
func (c *Composer) SetTarget(recipientID, taskID string) {
	c.mu.Lock()
	c.recipientID = strings.TrimSpace(recipientID)
	c.taskID = strings.TrimSpace(taskID)
	c.mu.Unlock()
}

// Send delivers the trimmed draft. An empty draft or a missing recipient is a
// no-op. The draft is cleared up front and restored if delivery fails.
func (c *Composer) Send(ctx context.Context) SendResult {
	c.mu.Lock()
	original := c.draft
	content := strings.TrimSpace(original)
	req := models.SendMessageRequest{
		RecipientID: c.recipientID,
		TaskID:      c.taskID,
		Content:     content,
	}
	if content == "" || req.RecipientID == "" {
		c.mu.Unlock()
		return SendResult{Skipped: true}
	}
	c.draft = ""
	c.mu.Unlock()

	transport := TransportStore
	if c.live != nil {
		if c.live.Connected() {
			transport = TransportLive
		} else {
			c.logger.WithField(LogFieldTransport, TransportStore).Warn("Live channel disconnected, sending through the store")
		}
	}

	labels := map[string]string{LogFieldTransport: transport}
	metrics.IncrementCounter(metrics.SendAttempts, labels, "Composer send attempts")
	start := time.Now()

	var (
		msg *models.Message
		err error
	)
	if transport == TransportLive {
		msg, err = c.live.SendContent(ctx, req)
	} else {
		msg, err = c.store.SendMessage(ctx, req)
	}
	metrics.RecordTimer(metrics.SendLatency, time.Since(start), labels, "Composer send latency")

	if err != nil {
		c.restore(original)
		metrics.IncrementCounter(metrics.SendFailures, labels, "Composer send failures")
		c.errLog.LogError(err, "Failed to send message", LogFields(ctx, logrus.Fields{
			LogFieldTransport:   transport,
			LogFieldRecipientID: req.RecipientID,
			LogFieldTaskID:      req.TaskID,
		}))
		return SendResult{Transport: transport, Err: err}
	}

	return SendResult{Transport: transport, Message: msg}
}

// restore puts the failed draft back unless the user has already typed a new one.
func (c *Composer) restore(original string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft == "" {
		c.draft = original
	}
}
