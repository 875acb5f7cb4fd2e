package service

import (
	"context"
	"strings"
	"testing"

	apperrors "dashchat/internal/errors"
	"dashchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestDocumentService(db DocumentDatabase, store *mockUploader) *DocumentService {
	s := NewDocumentService(db, store, models.DocumentConfig{MaxSizeMB: 1}, testLogger())
	s.newID = func() string { return "doc-1" }
	return s
}

func TestDocumentService_Upload(t *testing.T) {
	ctx := context.Background()
	db := &mockDocumentDB{}
	store := &mockUploader{}
	store.On("Upload", ctx, "tasks/t1/doc-1.pdf", int64(7), "application/pdf").
		Return("http://minio/docs/tasks/t1/doc-1.pdf", nil).Once()
	db.On("SaveDocument", ctx, mock.MatchedBy(func(d *models.TaskDocument) bool {
		return d.ID == "doc-1" && d.Filename == "Q3_report.pdf" && d.OriginalFilename == "Q3 report.pdf" &&
			d.UploadedBy == "u1" && d.Description == "numbers"
	})).Return(nil).Once()

	doc, err := newTestDocumentService(db, store).Upload(ctx, DocumentUpload{
		TaskID:      "t1",
		UploaderID:  "u1",
		Filename:    "Q3 report.pdf",
		Size:        7,
		Description: " numbers ",
		Body:        strings.NewReader("%PDF-1.7 and more"),
	})

	require.NoError(t, err)
	assert.Equal(t, "http://minio/docs/tasks/t1/doc-1.pdf", doc.StoragePath)
	assert.Equal(t, "%PDF-1.", string(store.received), "body is capped at the declared size")
	db.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestDocumentService_UploadValidation(t *testing.T) {
	tests := []struct {
		name string
		up   DocumentUpload
	}{
		{"no task", DocumentUpload{Filename: "a.pdf", Size: 1}},
		{"bad name", DocumentUpload{TaskID: "t1", Filename: "...", Size: 1}},
		{"disallowed type", DocumentUpload{TaskID: "t1", Filename: "run.exe", Size: 1}},
		{"empty file", DocumentUpload{TaskID: "t1", Filename: "a.pdf", Size: 0}},
		{"too large", DocumentUpload{TaskID: "t1", Filename: "a.pdf", Size: 2 << 20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockUploader{}
			tt.up.Body = strings.NewReader("x")
			_, err := newTestDocumentService(&mockDocumentDB{}, store).Upload(context.Background(), tt.up)
			require.Error(t, err)
			assert.Equal(t, 400, apperrors.HTTPStatusCode(err))
			store.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestDocumentService_SaveFailureRemovesBlob(t *testing.T) {
	ctx := context.Background()
	db := &mockDocumentDB{}
	store := &mockUploader{}
	store.On("Upload", ctx, "tasks/t1/doc-1.txt", int64(2), "text/plain").Return("loc", nil).Once()
	store.On("Remove", ctx, "tasks/t1/doc-1.txt").Return(nil).Once()
	db.On("SaveDocument", ctx, mock.Anything).Return(apperrors.NewDatabaseError("save document", assert.AnError)).Once()

	_, err := newTestDocumentService(db, store).Upload(ctx, DocumentUpload{
		TaskID: "t1", Filename: "notes.txt", MimeType: "text/plain", Size: 2, Body: strings.NewReader("hi"),
	})
	require.Error(t, err)
	store.AssertExpectations(t)
}

func TestDetectMimeType(t *testing.T) {
	assert.Equal(t, "image/png", detectMimeType("a.PNG", ""))
	assert.Equal(t, "image/png", detectMimeType("a.png", "application/octet-stream"))
	assert.Equal(t, "text/csv", detectMimeType("a.png", "text/csv"))
	assert.Equal(t, "application/octet-stream", detectMimeType("a.unknown", ""))
}
