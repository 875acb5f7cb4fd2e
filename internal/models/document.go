package models

import "time"

// TaskDocument is the metadata of a file attached to a task. The bytes live in object storage.
type TaskDocument struct {
	ID               string    `json:"id"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"original_filename"`
	MimeType         string    `json:"mime_type"`
	Size             int64     `json:"size"`
	StoragePath      string    `json:"storage_path"`
	TaskID           string    `json:"task_id"`
	UploadedBy       string    `json:"uploaded_by"`
	Description      string    `json:"description,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
