package database

import (
	"context"
	"fmt"

	apperrors "dashchat/internal/errors"
	"dashchat/internal/models"
)

const documentColumns = `id, filename, original_filename, mime_type, size, storage_path,
	task_id, uploaded_by, description, created_at, updated_at`

// SaveDocument inserts task document metadata.
func (d *Database) SaveDocument(ctx context.Context, doc *models.TaskDocument) error {
	now := d.timestamp()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}

	description, err := d.encryptor.Encrypt(doc.Description)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternalError, "failed to encrypt document description")
	}

	err = retryableDBOperationNoReturn(ctx, func() error {
		_, err := d.db.ExecContext(ctx, `
			INSERT INTO task_documents (`+documentColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			doc.ID, doc.Filename, doc.OriginalFilename, doc.MimeType, doc.Size, doc.StoragePath,
			doc.TaskID, doc.UploadedBy, description, doc.CreatedAt.UTC(), doc.UpdatedAt.UTC(),
		)
		return err
	}, "save document")
	if err != nil {
		return apperrors.NewDatabaseError("save document", err)
	}
	return nil
}

// ListDocuments returns the documents attached to taskID, oldest first.
func (d *Database) ListDocuments(ctx context.Context, taskID string) ([]models.TaskDocument, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM task_documents WHERE task_id = ? ORDER BY created_at, id`, taskID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list documents", err)
	}
	defer func() { _ = rows.Close() }()

	docs := make([]models.TaskDocument, 0)
	for rows.Next() {
		var doc models.TaskDocument
		var description string
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.OriginalFilename, &doc.MimeType, &doc.Size,
			&doc.StoragePath, &doc.TaskID, &doc.UploadedBy, &description, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, apperrors.NewDatabaseError("list documents", err)
		}
		doc.Description, err = d.encryptor.Decrypt(description)
		if err != nil {
			return nil, apperrors.NewDatabaseError("list documents", fmt.Errorf("document %s: %w", doc.ID, err))
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("list documents", err)
	}
	return docs, nil
}
