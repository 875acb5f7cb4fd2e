package service

import (
	"context"
	"io"
	"path"
	"path/filepath"
	"strings"

	"dashchat/internal/constants"
	apperrors "dashchat/internal/errors"
	"dashchat/internal/metrics"
	"dashchat/internal/models"
	"dashchat/internal/validation"
	"dashchat/pkg/objectstore"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DocumentDatabase persists task document metadata.
type DocumentDatabase interface {
	SaveDocument(ctx context.Context, doc *models.TaskDocument) error
	ListDocuments(ctx context.Context, taskID string) ([]models.TaskDocument, error)
}

// DocumentUpload is one file attached to a task.
type DocumentUpload struct {
	TaskID      string
	UploaderID  string
	Filename    string
	MimeType    string
	Size        int64
	Description string
	Body        io.Reader
}

// DocumentService stores task document blobs in object storage and their
// metadata in the database.
type DocumentService struct {
	db     DocumentDatabase
	store  objectstore.Uploader
	config models.DocumentConfig
	logger *logrus.Logger
	errLog *apperrors.Logger
	newID  func() string
}

func NewDocumentService(db DocumentDatabase, store objectstore.Uploader, config models.DocumentConfig, logger *logrus.Logger) *DocumentService {
	if config.MaxSizeMB <= 0 {
		config.MaxSizeMB = constants.DefaultMaxDocumentSizeMB
	}
	if len(config.AllowedMimeTypes) == 0 {
		config.AllowedMimeTypes = constants.DefaultDocumentMimeTypes
	}
	return &DocumentService{
		db:     db,
		store:  store,
		config: config,
		logger: logger,
		errLog: apperrors.WrapLogger(logger),
		newID:  uuid.NewString,
	}
}

// MaxSizeBytes is the largest accepted upload.
func (s *DocumentService) MaxSizeBytes() int64 {
	return int64(s.config.MaxSizeMB) * constants.BytesPerMegabyte
}

// Upload validates and stores one document. The blob is removed again when the
// metadata cannot be saved.
func (s *DocumentService) Upload(ctx context.Context, up DocumentUpload) (*models.TaskDocument, error) {
	if err := validation.ValidateID(up.TaskID, "taskId"); err != nil {
		return nil, err
	}
	original := strings.TrimSpace(up.Filename)
	safeName := validation.SanitizeFilename(original)
	if safeName == "" {
		return nil, apperrors.NewValidationError("file", original, "invalid file name")
	}
	mimeType := detectMimeType(safeName, up.MimeType)
	if err := validation.ValidateMimeType(mimeType, s.config.AllowedMimeTypes); err != nil {
		return nil, err
	}
	if err := validation.ValidateDocumentSize(up.Size, s.config.MaxSizeMB); err != nil {
		return nil, err
	}
	description := strings.TrimSpace(up.Description)
	if err := validation.ValidateStringLength(description, "description", 0, constants.MaxDescriptionLength); err != nil {
		return nil, err
	}

	id := s.newID()
	key := path.Join("tasks", up.TaskID, id+strings.ToLower(filepath.Ext(safeName)))

	location, err := s.store.Upload(ctx, key, io.LimitReader(up.Body, up.Size), up.Size, mimeType)
	if err != nil {
		s.errLog.LogError(err, "Failed to upload document", logrus.Fields{
			LogFieldTaskID:    up.TaskID,
			LogFieldObjectKey: key,
		})
		return nil, err
	}

	doc := &models.TaskDocument{
		ID:               id,
		Filename:         safeName,
		OriginalFilename: original,
		MimeType:         mimeType,
		Size:             up.Size,
		StoragePath:      location,
		TaskID:           up.TaskID,
		UploadedBy:       up.UploaderID,
		Description:      description,
	}
	if err := s.db.SaveDocument(ctx, doc); err != nil {
		if rmErr := s.store.Remove(ctx, key); rmErr != nil {
			s.errLog.LogWarn(rmErr, "Failed to remove orphaned document", logrus.Fields{LogFieldObjectKey: key})
		}
		return nil, err
	}

	metrics.IncrementCounter(metrics.DocumentsUploaded, map[string]string{"mime_type": mimeType}, "Task documents uploaded")
	metrics.AddToCounter(metrics.DocumentBytes, float64(up.Size), nil, "Bytes of task documents uploaded")

	s.logger.WithFields(logrus.Fields{
		LogFieldTaskID:   up.TaskID,
		LogFieldFileName: safeName,
		LogFieldMimeType: mimeType,
		LogFieldSize:     up.Size,
	}).Info("Task document stored")

	return doc, nil
}

// List returns the documents attached to taskID.
func (s *DocumentService) List(ctx context.Context, taskID string) ([]models.TaskDocument, error) {
	if err := validation.ValidateID(taskID, "taskId"); err != nil {
		return nil, err
	}
	return s.db.ListDocuments(ctx, taskID)
}

// detectMimeType prefers the declared type and falls back to the extension.
func detectMimeType(filename, declared string) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != constants.DefaultMimeType {
		return declared
	}
	if mt, ok := constants.MimeTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return mt
	}
	return constants.DefaultMimeType
}
