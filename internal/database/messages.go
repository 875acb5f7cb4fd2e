package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	apperrors "dashchat/internal/errors"
	"dashchat/internal/models"
	"dashchat/pkg/constants"
)

const messageColumns = `id, sender_id, recipient_id, task_id, content, message_type,
	sent_date, status, created_at, updated_at`

// taskParticipant matches task channels the viewer has sent to or been addressed in.
const taskParticipant = `task_id IN (
	SELECT task_id FROM messages
	WHERE task_id IS NOT NULL AND (sender_id = ? OR recipient_id = ?))`

// MessageFilter selects the messages visible to one viewer.
type MessageFilter struct {
	ViewerID string
	// WithUser is "all" (or empty) for every conversation of the viewer, a user id
	// for the direct conversation with that user, or "task:<id>" for a task channel.
	WithUser string
	// Limit keeps the most recent messages. Zero means no limit.
	Limit int
}

// SaveMessage inserts a new message. CreatedAt, UpdatedAt and SentDate are filled
// in when unset.
func (d *Database) SaveMessage(ctx context.Context, msg *models.Message) error {
	now := d.timestamp()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	msg.CreatedAt = msg.CreatedAt.UTC()
	if msg.UpdatedAt.IsZero() {
		msg.UpdatedAt = msg.CreatedAt
	}
	if msg.SentDate == "" {
		msg.SentDate = msg.CreatedAt.Format(models.SentDateLayout)
	}
	if msg.MessageType == "" {
		msg.MessageType = models.MessageTypeText
	}
	if msg.Status == "" {
		msg.Status = models.DeliveryStatusSent
	}

	content, err := d.encryptor.Encrypt(msg.Content)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternalError, "failed to encrypt message content")
	}

	err = retryableDBOperationNoReturn(ctx, func() error {
		_, err := d.db.ExecContext(ctx, `
			INSERT INTO messages (`+messageColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			msg.ID, msg.SenderID, nullString(msg.RecipientID), nullString(msg.TaskID),
			content, msg.MessageType, msg.SentDate, string(msg.Status),
			msg.CreatedAt, msg.UpdatedAt.UTC(),
		)
		return err
	}, "save message")
	if err != nil {
		return apperrors.NewDatabaseError("save message", err)
	}
	return nil
}

// GetMessage returns the message with id, or nil when it does not exist.
func (d *Database) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	msg, err := d.scanMessage(row)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get message", err)
	}
	return msg, nil
}

// ListMessages returns the messages matching filter, oldest first.
func (d *Database) ListMessages(ctx context.Context, filter MessageFilter) ([]models.Message, error) {
	where, args := messageScope(filter)

	query := `SELECT ` + messageColumns + ` FROM (
		SELECT ` + messageColumns + `, rowid AS seq FROM messages
		WHERE (` + where + `)
		ORDER BY created_at DESC, seq DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	query += `) ORDER BY created_at ASC, seq ASC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list messages", err)
	}
	defer func() { _ = rows.Close() }()

	messages := make([]models.Message, 0)
	for rows.Next() {
		msg, err := d.scanMessage(rows)
		if err != nil {
			return nil, apperrors.NewDatabaseError("list messages", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("list messages", err)
	}
	return messages, nil
}

func messageScope(filter MessageFilter) (string, []interface{}) {
	viewer := filter.ViewerID
	switch {
	case filter.WithUser == "" || filter.WithUser == constants.WithUserAll:
		return `sender_id = ? OR recipient_id = ? OR ` + taskParticipant,
			[]interface{}{viewer, viewer, viewer, viewer}
	case strings.HasPrefix(filter.WithUser, "task:"):
		taskID := strings.TrimPrefix(filter.WithUser, "task:")
		return `task_id = ? AND ` + taskParticipant,
			[]interface{}{taskID, viewer, viewer}
	default:
		other := filter.WithUser
		return `task_id IS NULL AND ((sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?))`,
			[]interface{}{viewer, other, other, viewer}
	}
}

// CompareAndSetStatus moves message id from one status to another. It reports
// false when the message does not exist or its status is no longer from.
func (d *Database) CompareAndSetStatus(ctx context.Context, id string, from, to models.DeliveryStatus) (bool, error) {
	affected, err := retryableDBOperation(ctx, func() (int64, error) {
		res, err := d.db.ExecContext(ctx,
			`UPDATE messages SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			string(to), d.timestamp(), id, string(from))
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	}, "update message status")
	if err != nil {
		return false, apperrors.NewDatabaseError("update message status", err)
	}
	return affected == 1, nil
}

// MarkDeliveredTo moves every sent message addressed to recipientID to delivered.
func (d *Database) MarkDeliveredTo(ctx context.Context, recipientID string) (int64, error) {
	affected, err := retryableDBOperation(ctx, func() (int64, error) {
		res, err := d.db.ExecContext(ctx,
			`UPDATE messages SET status = ?, updated_at = ? WHERE recipient_id = ? AND status = ?`,
			string(models.DeliveryStatusDelivered), d.timestamp(), recipientID, string(models.DeliveryStatusSent))
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	}, "mark delivered")
	if err != nil {
		return 0, apperrors.NewDatabaseError("mark delivered", err)
	}
	return affected, nil
}

// MarkConversationRead marks the messages viewerID received in a conversation as
// read. withUser follows MessageFilter.WithUser.
func (d *Database) MarkConversationRead(ctx context.Context, viewerID, withUser string) (int64, error) {
	query := `UPDATE messages SET status = ?, updated_at = ?
		WHERE recipient_id = ? AND status IN (?, ?)`
	args := []interface{}{
		string(models.DeliveryStatusRead), d.timestamp(), viewerID,
		string(models.DeliveryStatusSent), string(models.DeliveryStatusDelivered),
	}

	switch {
	case withUser == "" || withUser == constants.WithUserAll:
	case strings.HasPrefix(withUser, "task:"):
		query += ` AND task_id = ?`
		args = append(args, strings.TrimPrefix(withUser, "task:"))
	default:
		query += ` AND task_id IS NULL AND sender_id = ?`
		args = append(args, withUser)
	}

	affected, err := retryableDBOperation(ctx, func() (int64, error) {
		res, err := d.db.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	}, "mark read")
	if err != nil {
		return 0, apperrors.NewDatabaseError("mark read", err)
	}
	return affected, nil
}

// CountStaleMessages counts messages still in status that were created before cutoff.
func (d *Database) CountStaleMessages(ctx context.Context, status models.DeliveryStatus, cutoff time.Time) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE status = ? AND created_at < ?`,
		string(status), cutoff.UTC()).Scan(&count)
	if err != nil {
		return 0, apperrors.NewDatabaseError("count stale messages", err)
	}
	return count, nil
}

// CountMessagesByStatus returns the number of stored messages per status.
func (d *Database) CountMessagesByStatus(ctx context.Context) (map[models.DeliveryStatus]int, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM messages GROUP BY status`)
	if err != nil {
		return nil, apperrors.NewDatabaseError("count messages", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[models.DeliveryStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, apperrors.NewDatabaseError("count messages", err)
		}
		counts[models.DeliveryStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("count messages", err)
	}
	return counts, nil
}

// CleanupOldRecords deletes messages older than retentionDays and returns how many were removed.
func (d *Database) CleanupOldRecords(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays < 1 {
		return 0, apperrors.NewValidationError("retention_days", fmt.Sprint(retentionDays), "must be at least 1")
	}
	cutoff := d.timestamp().AddDate(0, 0, -retentionDays)

	deleted, err := retryableDBOperation(ctx, func() (int64, error) {
		res, err := d.db.ExecContext(ctx, `DELETE FROM messages WHERE created_at < ?`, cutoff)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	}, "cleanup old records")
	if err != nil {
		return 0, apperrors.NewDatabaseError("cleanup old records", err)
	}
	return deleted, nil
}

func (d *Database) scanMessage(row scanner) (*models.Message, error) {
	var msg models.Message
	var recipient, task sql.NullString
	var content, status string

	if err := row.Scan(&msg.ID, &msg.SenderID, &recipient, &task, &content, &msg.MessageType,
		&msg.SentDate, &status, &msg.CreatedAt, &msg.UpdatedAt); err != nil {
		return nil, err
	}

	plain, err := d.encryptor.Decrypt(content)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt content of message %s: %w", msg.ID, err)
	}

	msg.RecipientID = recipient.String
	msg.TaskID = task.String
	msg.Content = plain
	msg.Status = models.DeliveryStatus(status)
	return &msg, nil
}
