package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"dashchat/internal/auth"
	"dashchat/internal/database"
	apperrors "dashchat/internal/errors"
	"dashchat/internal/models"
	"dashchat/internal/service"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type memoryUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memoryUploader) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[key] = data
	return "mem://" + key, nil
}

func (m *memoryUploader) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

type testEnv struct {
	server   *httptest.Server
	db       *database.Database
	issuer   *auth.TokenIssuer
	uploader *memoryUploader
	hub      *service.Hub
}

func testConfig() *models.Config {
	return &models.Config{
		Server: models.ServerConfig{
			Port:               8082,
			ReadTimeoutSec:     5,
			WriteTimeoutSec:    5,
			IdleTimeoutSec:     5,
			RateLimitPerMinute: 6000,
			RateLimitBurst:     1000,
		},
		Auth:     models.AuthConfig{JWTSecret: testSecret, TokenTTLHours: 1, Issuer: "dashchat"},
		Messages: models.MessagesConfig{MaxContentLength: 100, DefaultPageSize: 50},
	}
}

func newTestEnv(t *testing.T, cfg *models.Config) *testEnv {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	db, err := database.New(filepath.Join(t.TempDir(), "dashchat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	issuer, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, time.Hour)
	require.NoError(t, err)

	seedDirectory(t, db)

	uploader := &memoryUploader{}
	messages := service.NewMessageService(db, cfg.Messages, logger)
	hub := service.NewHub(messages, logger)
	srv := NewServer(Dependencies{
		Config:    cfg,
		Logger:    logger,
		Store:     db,
		Tokens:    issuer,
		Auth:      service.NewAuthService(db, issuer, logger),
		Messages:  messages,
		Documents: service.NewDocumentService(db, uploader, cfg.Documents, logger),
		Hub:       hub,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		hub.Close()
		ts.Close()
	})
	return &testEnv{server: ts, db: db, issuer: issuer, uploader: uploader, hub: hub}
}

func seedDirectory(t *testing.T, db *database.Database) {
	t.Helper()
	ctx := context.Background()
	hash, err := auth.HashPassword("pw")
	require.NoError(t, err)

	for _, u := range []models.User{
		{ID: "admin", Name: "Ada", Email: "ada@example.com", Role: models.RoleAdmin},
		{ID: "alice", Name: "Alice", Email: "alice@example.com", Role: models.RoleOwner},
		{ID: "bob", Name: "Bob", Email: "bob@example.com", Role: models.RoleAccountant},
	} {
		u.PasswordHash = hash
		require.NoError(t, db.SaveUser(ctx, &u))
	}
	require.NoError(t, db.SaveCompany(ctx, &models.Company{ID: "c1", Name: "Acme", OwnerID: "alice", AccountantIDs: []string{"bob"}}))
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	user, err := e.db.GetUser(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, user)
	token, _, err := e.issuer.Issue(user)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t, testConfig())
	resp := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	body := decodeBody[map[string]interface{}](t, resp)
	assert.Equal(t, "healthy", body["status"])
}

func TestServer_Metrics(t *testing.T) {
	env := newTestEnv(t, testConfig())
	resp := env.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestServer_Login(t *testing.T) {
	env := newTestEnv(t, testConfig())

	resp := env.do(t, http.MethodPost, "/auth/login", "", models.LoginRequest{Email: "alice@example.com", Password: "pw"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	login := decodeBody[models.LoginResponse](t, resp)
	assert.Equal(t, auth.Identity{UserID: "alice", Role: models.RoleOwner}, auth.Decode(login.Token))

	resp = env.do(t, http.MethodPost, "/auth/login", "", models.LoginRequest{Email: "alice@example.com", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"user": "alice"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_RequiresBearerToken(t *testing.T) {
	env := newTestEnv(t, testConfig())

	for _, path := range []string{"/companies", "/users", "/messages?withUser=all", "/tasks/t1/documents"} {
		resp := env.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}

	resp := env.do(t, http.MethodGet, "/users", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	envelope := decodeBody[apperrors.HTTPErrorResponse](t, resp)
	assert.Equal(t, apperrors.ErrCodeAuthentication, envelope.Error.Code)
	assert.NotEmpty(t, envelope.RequestID)
}

func TestServer_Directory(t *testing.T) {
	env := newTestEnv(t, testConfig())
	token := env.token(t, "alice")

	resp := env.do(t, http.MethodGet, "/companies", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	companies := decodeBody[[]models.Company](t, resp)
	require.Len(t, companies, 1)
	assert.Equal(t, []string{"bob"}, companies[0].AccountantIDs)

	resp = env.do(t, http.MethodGet, "/users", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "$2a$", "password hashes must not leave the server")

	var users []models.User
	require.NoError(t, json.Unmarshal(raw, &users))
	assert.Len(t, users, 3)
}

func TestServer_MessageLifecycle(t *testing.T) {
	env := newTestEnv(t, testConfig())
	alice, bob := env.token(t, "alice"), env.token(t, "bob")

	resp := env.do(t, http.MethodPost, "/messages", alice, models.SendMessageRequest{RecipientID: "bob", Content: "  invoice ready  "})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sent := decodeBody[models.Message](t, resp)
	assert.Equal(t, "invoice ready", sent.Content)
	assert.Equal(t, models.DeliveryStatusSent, sent.Status)
	assert.False(t, sent.Unread)

	resp = env.do(t, http.MethodGet, "/messages?withUser=alice", bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	inbox := decodeBody[[]models.Message](t, resp)
	require.Len(t, inbox, 1)
	assert.Equal(t, models.DeliveryStatusReceived, inbox[0].Status)
	assert.True(t, inbox[0].Unread)

	// listing confirmed delivery
	resp = env.do(t, http.MethodGet, "/messages", alice, nil)
	outbox := decodeBody[[]models.Message](t, resp)
	require.Len(t, outbox, 1)
	assert.Equal(t, models.DeliveryStatusDelivered, outbox[0].Status)

	resp = env.do(t, http.MethodPatch, "/messages/"+sent.ID+"/status", alice, models.StatusUpdateRequest{Status: models.DeliveryStatusRead})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodPatch, "/messages/"+sent.ID+"/status", bob, models.StatusUpdateRequest{Status: models.DeliveryStatusRead})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	read := decodeBody[models.Message](t, resp)
	assert.Equal(t, models.DeliveryStatusRead, read.Status)
	assert.False(t, read.Unread)

	resp = env.do(t, http.MethodPatch, "/messages/"+sent.ID+"/status", bob, models.StatusUpdateRequest{Status: models.DeliveryStatusDelivered})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.do(t, http.MethodPatch, "/messages/missing/status", bob, models.StatusUpdateRequest{Status: models.DeliveryStatusRead})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_SendValidation(t *testing.T) {
	env := newTestEnv(t, testConfig())
	alice := env.token(t, "alice")

	tests := []struct {
		name string
		req  models.SendMessageRequest
		code int
	}{
		{"empty content", models.SendMessageRequest{RecipientID: "bob", Content: "   "}, http.StatusBadRequest},
		{"no recipient or task", models.SendMessageRequest{Content: "hi"}, http.StatusBadRequest},
		{"self", models.SendMessageRequest{RecipientID: "alice", Content: "hi"}, http.StatusBadRequest},
		{"too long", models.SendMessageRequest{RecipientID: "bob", Content: strings.Repeat("x", 101)}, http.StatusBadRequest},
		{"unknown recipient", models.SendMessageRequest{RecipientID: "zed", Content: "hi"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/messages", alice, tt.req)
			assert.Equal(t, tt.code, resp.StatusCode)
		})
	}
}

func TestServer_MarkRead(t *testing.T) {
	env := newTestEnv(t, testConfig())
	alice, bob := env.token(t, "alice"), env.token(t, "bob")

	for _, content := range []string{"one", "two"} {
		resp := env.do(t, http.MethodPost, "/messages", alice, models.SendMessageRequest{RecipientID: "bob", Content: content})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := env.do(t, http.MethodPost, "/messages/read", bob, models.MarkReadRequest{WithUser: "alice"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(2), decodeBody[models.MarkReadResponse](t, resp).Updated)

	resp = env.do(t, http.MethodPost, "/messages/read", bob, models.MarkReadRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_Documents(t *testing.T) {
	env := newTestEnv(t, testConfig())
	alice := env.token(t, "alice")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "q1 report.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 test"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("description", "Q1 numbers"))
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/tasks/t1/documents", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+alice)
	resp, err := env.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	doc := decodeBody[models.TaskDocument](t, resp)
	assert.Equal(t, "application/pdf", doc.MimeType)
	assert.Equal(t, "q1 report.pdf", doc.OriginalFilename)
	assert.Equal(t, "alice", doc.UploadedBy)
	assert.Equal(t, int64(13), doc.Size)
	assert.True(t, strings.HasPrefix(doc.StoragePath, "mem://tasks/t1/"))

	resp = env.do(t, http.MethodGet, "/tasks/t1/documents", alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	docs := decodeBody[[]models.TaskDocument](t, resp)
	require.Len(t, docs, 1)
	assert.Equal(t, doc.ID, docs[0].ID)

	resp = env.do(t, http.MethodPost, "/tasks/t1/documents", alice, map[string]string{"file": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RateLimitPerMinute = 1
	cfg.Server.RateLimitBurst = 2
	env := newTestEnv(t, cfg)
	token := env.token(t, "alice")

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/users", token, nil).StatusCode)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/companies", token, nil).StatusCode)

	resp := env.do(t, http.MethodGet, "/users", token, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	// health checks are not limited
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health", "", nil).StatusCode)
}

func TestServer_LiveChannel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	env := newTestEnv(t, testConfig())
	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws"

	_, resp, err := websocket.Dial(ctx, wsURL, nil)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	bob, _, err := websocket.Dial(ctx, wsURL+"?token="+env.token(t, "bob"), nil)
	require.NoError(t, err)
	defer bob.CloseNow()

	alice, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + env.token(t, "alice")}},
	})
	require.NoError(t, err)
	defer alice.CloseNow()

	require.Eventually(t, func() bool { return env.hub.Online("alice") && env.hub.Online("bob") }, 2*time.Second, 10*time.Millisecond)

	// an HTTP send is pushed to the recipient's live connection
	httpResp := env.do(t, http.MethodPost, "/messages", env.token(t, "alice"), models.SendMessageRequest{RecipientID: "bob", Content: "via http"})
	require.Equal(t, http.StatusCreated, httpResp.StatusCode)

	var frame models.LiveFrame
	require.NoError(t, wsjson.Read(ctx, bob, &frame))
	assert.Equal(t, models.FrameMessage, frame.Type)
	require.NotNil(t, frame.Message)
	assert.Equal(t, "via http", frame.Message.Content)
	assert.Equal(t, models.DeliveryStatusReceived, frame.Message.Status)

	require.NoError(t, wsjson.Read(ctx, alice, &frame))
	assert.Equal(t, models.FrameStatus, frame.Type)
	assert.Equal(t, models.DeliveryStatusDelivered, frame.Status)
}
