package service

import (
	"context"
	"io"
	"time"

	"dashchat/internal/database"
	"dashchat/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

type mockMessageDB struct {
	mock.Mock
}

func (m *mockMessageDB) SaveMessage(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *mockMessageDB) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *mockMessageDB) ListMessages(ctx context.Context, filter database.MessageFilter) ([]models.Message, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *mockMessageDB) CompareAndSetStatus(ctx context.Context, id string, from, to models.DeliveryStatus) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *mockMessageDB) MarkDeliveredTo(ctx context.Context, recipientID string) (int64, error) {
	args := m.Called(ctx, recipientID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockMessageDB) MarkConversationRead(ctx context.Context, viewerID, withUser string) (int64, error) {
	args := m.Called(ctx, viewerID, withUser)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockMessageDB) GetUser(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) ListCompanies(ctx context.Context) ([]models.Company, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Company), args.Error(1)
}

func (m *mockDirectory) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

type mockAppender struct {
	mock.Mock
}

func (m *mockAppender) SendMessage(ctx context.Context, req models.SendMessageRequest) (*models.Message, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

type mockLive struct {
	mock.Mock
	connected bool
}

func (m *mockLive) SendContent(ctx context.Context, req models.SendMessageRequest) (*models.Message, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *mockLive) Connected() bool {
	return m.connected
}

type mockCleaner struct {
	mock.Mock
}

func (m *mockCleaner) CleanupOldRecords(ctx context.Context, retentionDays int) (int64, error) {
	args := m.Called(ctx, retentionDays)
	return args.Get(0).(int64), args.Error(1)
}

type mockStaleCounter struct {
	mock.Mock
}

func (m *mockStaleCounter) CountStaleMessages(ctx context.Context, status models.DeliveryStatus, cutoff time.Time) (int, error) {
	args := m.Called(ctx, status, cutoff)
	return args.Int(0), args.Error(1)
}

func (m *mockStaleCounter) CountMessagesByStatus(ctx context.Context) (map[models.DeliveryStatus]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[models.DeliveryStatus]int), args.Error(1)
}

type mockDocumentDB struct {
	mock.Mock
}

func (m *mockDocumentDB) SaveDocument(ctx context.Context, doc *models.TaskDocument) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *mockDocumentDB) ListDocuments(ctx context.Context, taskID string) ([]models.TaskDocument, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TaskDocument), args.Error(1)
}

type mockUploader struct {
	mock.Mock
	received []byte
}

func (m *mockUploader) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	m.received, _ = io.ReadAll(reader)
	args := m.Called(ctx, key, size, contentType)
	return args.String(0), args.Error(1)
}

func (m *mockUploader) Remove(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type mockUserLookup struct {
	mock.Mock
}

func (m *mockUserLookup) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
