package service

import (
	"context"
	"strings"

	"dashchat/internal/constants"
	"dashchat/internal/database"
	apperrors "dashchat/internal/errors"
	"dashchat/internal/metrics"
	"dashchat/internal/models"
	"dashchat/internal/validation"
	pkgconstants "dashchat/pkg/constants"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MessageDatabase is the persistence MessageService needs.
type MessageDatabase interface {
	SaveMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	ListMessages(ctx context.Context, filter database.MessageFilter) ([]models.Message, error)
	CompareAndSetStatus(ctx context.Context, id string, from, to models.DeliveryStatus) (bool, error)
	MarkDeliveredTo(ctx context.Context, recipientID string) (int64, error)
	MarkConversationRead(ctx context.Context, viewerID, withUser string) (int64, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// MessageService owns the server-side message lifecycle: append, list and
// delivery status changes.
type MessageService struct {
	db     MessageDatabase
	config models.MessagesConfig
	logger *logrus.Logger
	errLog *apperrors.Logger
	newID  func() string
}

// NewMessageService creates a message service; zero limits fall back to the defaults.
func NewMessageService(db MessageDatabase, config models.MessagesConfig, logger *logrus.Logger) *MessageService {
	if config.MaxContentLength <= 0 {
		config.MaxContentLength = constants.DefaultMaxContentLength
	}
	if config.DefaultPageSize <= 0 {
		config.DefaultPageSize = constants.DefaultMessagePageSize
	}
	return &MessageService{
		db:     db,
		config: config,
		logger: logger,
		errLog: apperrors.WrapLogger(logger),
		newID:  uuid.NewString,
	}
}

// Send validates and stores a message from senderID. The returned message is
// already in the sender's view.
func (s *MessageService) Send(ctx context.Context, senderID string, req models.SendMessageRequest) (*models.Message, error) {
	msg, err := s.buildMessage(ctx, senderID, req)
	if err != nil {
		metrics.IncrementCounter(metrics.MessagesRejected, map[string]string{
			"code": string(apperrors.GetCode(err)),
		}, "Messages rejected by validation")
		return nil, err
	}

	if err := s.db.SaveMessage(ctx, msg); err != nil {
		s.errLog.LogError(err, "Failed to store message", logrus.Fields{
			LogFieldOperation: "send_message",
		})
		return nil, err
	}

	metrics.IncrementCounter(metrics.MessagesStored, map[string]string{
		"message_type": msg.MessageType,
	}, "Messages stored")

	LogWithContext(ctx, s.logger, logrus.Fields{
		LogFieldMessageID:   msg.ID,
		LogFieldSenderID:    msg.SenderID,
		LogFieldRecipientID: msg.RecipientID,
		LogFieldTaskID:      msg.TaskID,
	}).Info("Message stored")

	return ViewFor(*msg, senderID), nil
}

func (s *MessageService) buildMessage(ctx context.Context, senderID string, req models.SendMessageRequest) (*models.Message, error) {
	content := strings.TrimSpace(req.Content)
	recipientID := strings.TrimSpace(req.RecipientID)
	taskID := strings.TrimSpace(req.TaskID)

	if err := validation.ValidateID(senderID, "sender_id"); err != nil {
		return nil, err
	}
	if recipientID == "" && taskID == "" {
		return nil, apperrors.NewValidationError("recipientId", "", "a recipient or a task is required")
	}
	if recipientID != "" {
		if err := validation.ValidateID(recipientID, "recipientId"); err != nil {
			return nil, err
		}
		if recipientID == senderID {
			return nil, apperrors.NewValidationError("recipientId", recipientID, "cannot send a message to yourself")
		}
		recipient, err := s.db.GetUser(ctx, recipientID)
		if err != nil {
			return nil, err
		}
		if recipient == nil {
			return nil, apperrors.NewNotFoundError("recipient", recipientID)
		}
	}
	if taskID != "" {
		if err := validation.ValidateID(taskID, "taskId"); err != nil {
			return nil, err
		}
	}
	if err := validation.ValidateContent(content, s.config.MaxContentLength); err != nil {
		return nil, err
	}

	return &models.Message{
		ID:          s.newID(),
		SenderID:    senderID,
		RecipientID: recipientID,
		TaskID:      taskID,
		Content:     content,
		MessageType: models.MessageTypeText,
		Status:      models.DeliveryStatusSent,
	}, nil
}

// List returns the viewer's messages for withUser ("all", a user id or "task:<id>"),
// oldest first. Listing confirms delivery of everything addressed to the viewer.
func (s *MessageService) List(ctx context.Context, viewerID, withUser string, limit int) ([]models.Message, error) {
	if withUser == "" {
		withUser = pkgconstants.WithUserAll
	}
	if limit <= 0 || limit > s.config.DefaultPageSize {
		limit = s.config.DefaultPageSize
	}

	delivered, err := s.db.MarkDeliveredTo(ctx, viewerID)
	if err != nil {
		s.errLog.LogWarn(err, "Failed to confirm delivery", logrus.Fields{LogFieldOperation: "list_messages"})
	} else if delivered > 0 {
		metrics.AddToCounter(metrics.MessageStatusUpdates, float64(delivered), map[string]string{
			LogFieldStatus: string(models.DeliveryStatusDelivered),
		}, "Delivery status changes")
	}

	messages, err := s.db.ListMessages(ctx, database.MessageFilter{
		ViewerID: viewerID,
		WithUser: withUser,
		Limit:    limit,
	})
	if err != nil {
		return nil, err
	}

	for i := range messages {
		messages[i] = *ViewFor(messages[i], viewerID)
	}
	return messages, nil
}

// UpdateStatus applies a delivery status change reported by viewerID. Recipients
// report delivered and read; senders report sent and error.
func (s *MessageService) UpdateStatus(ctx context.Context, viewerID, messageID string, next models.DeliveryStatus) (*models.Message, error) {
	if !next.IsValid() || next == models.DeliveryStatusReceived {
		return nil, apperrors.NewValidationError("status", string(next), "unsupported status")
	}

	msg, err := s.db.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, apperrors.NewNotFoundError("message", messageID)
	}
	if err := authorizeStatusChange(msg, viewerID, next); err != nil {
		return nil, err
	}

	current := msg.Status
	if current == next {
		return msg, nil
	}
	if !current.CanTransitionTo(next) {
		return nil, apperrors.NewTransitionError(string(current), string(next))
	}

	ok, err := s.db.CompareAndSetStatus(ctx, messageID, current, next)
	if err != nil {
		return nil, err
	}
	if !ok {
		// lost a race with another update; report against the stored status
		latest, err := s.db.GetMessage(ctx, messageID)
		if err != nil {
			return nil, err
		}
		if latest != nil && latest.Status == next {
			return latest, nil
		}
		return nil, apperrors.NewTransitionError(string(current), string(next))
	}

	msg.Status = next
	metrics.IncrementCounter(metrics.MessageStatusUpdates, map[string]string{
		LogFieldStatus: string(next),
	}, "Delivery status changes")

	LogWithContext(ctx, s.logger, logrus.Fields{
		LogFieldMessageID:  msg.ID,
		LogFieldUserID:     viewerID,
		LogFieldFromStatus: string(current),
		LogFieldStatus:     string(next),
	}).Debug("Message status updated")

	return msg, nil
}

func authorizeStatusChange(msg *models.Message, viewerID string, next models.DeliveryStatus) error {
	switch next {
	case models.DeliveryStatusDelivered, models.DeliveryStatusRead:
		if msg.SenderID == viewerID {
			return apperrors.NewForbiddenError("confirm delivery of your own message")
		}
		if msg.RecipientID != "" && msg.RecipientID != viewerID {
			return apperrors.NewForbiddenError("update a message addressed to someone else")
		}
	default:
		if msg.SenderID != viewerID {
			return apperrors.NewForbiddenError("update a message you did not send")
		}
	}
	return nil
}

// MarkRead marks every message viewerID received in the conversation with withUser as read.
func (s *MessageService) MarkRead(ctx context.Context, viewerID, withUser string) (int64, error) {
	withUser = strings.TrimSpace(withUser)
	if withUser == "" {
		return 0, apperrors.NewValidationError("withUser", "", "required")
	}

	updated, err := s.db.MarkConversationRead(ctx, viewerID, withUser)
	if err != nil {
		return 0, err
	}
	if updated > 0 {
		metrics.AddToCounter(metrics.MessageStatusUpdates, float64(updated), map[string]string{
			LogFieldStatus: string(models.DeliveryStatusRead),
		}, "Delivery status changes")
	}
	return updated, nil
}

// ViewFor returns msg as viewerID sees it. Messages the viewer received report
// received until read, and only those can be unread.
func ViewFor(msg models.Message, viewerID string) *models.Message {
	if msg.SenderID == viewerID {
		msg.Unread = false
		return &msg
	}
	if msg.Status != models.DeliveryStatusRead {
		msg.Status = models.DeliveryStatusReceived
	}
	msg.Unread = msg.Status != models.DeliveryStatusRead
	return &msg
}
