package chatapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"dashchat/internal/credentials"
	apperrors "dashchat/internal/errors"
	"dashchat/internal/httputil"
	"dashchat/internal/metrics"
	"dashchat/internal/models"
	"dashchat/internal/retry"
	"dashchat/pkg/circuitbreaker"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) retry.BackoffConfig {
	return retry.BackoffConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
		MaxAttempts:  attempts,
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *test.Hook) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	c := NewClientWithLogger(server.URL+"/", credentials.Static("tok-123"), server.Client(), logger)
	c.SetRetryConfig(fastRetry(3))
	return c, hook
}

func TestListMessages_SendsBearerAndDefaultsToAll(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "all", r.URL.Query().Get("withUser"))
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		_ = httputil.WriteJSON(w, http.StatusOK, []models.Message{
			{ID: "m1", SenderID: "a", RecipientID: "b", Content: "hi", Status: models.DeliveryStatusSent},
		})
	})

	msgs, err := c.ListMessages(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
}

func TestListMessages_EscapesCounterpart(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "a&b=c", r.URL.Query().Get("withUser"))
		_ = httputil.WriteJSON(w, http.StatusOK, []models.Message{})
	})

	msgs, err := c.ListMessages(context.Background(), "a&b=c")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestDirectory(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/companies":
			_ = httputil.WriteJSON(w, http.StatusOK, []models.Company{{ID: "c1", OwnerID: "o1", AccountantIDs: []string{"a1"}}})
		case "/users":
			_ = httputil.WriteJSON(w, http.StatusOK, []models.User{{ID: "o1", Role: models.RoleOwner}, {ID: "a1", Role: models.RoleAccountant}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	companies, err := c.ListCompanies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, companies[0].AccountantIDs)

	users, err := c.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestSendMessage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req models.SendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "bob", req.RecipientID)
		assert.Equal(t, "t1", req.TaskID)
		assert.Equal(t, "hello", req.Content)

		_ = httputil.WriteJSON(w, http.StatusCreated, models.Message{
			ID: "m1", SenderID: "alice", RecipientID: req.RecipientID, Content: req.Content, Status: models.DeliveryStatusSent,
		})
	})

	msg, err := c.SendMessage(context.Background(), models.SendMessageRequest{RecipientID: "bob", TaskID: "t1", Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, models.DeliveryStatusSent, msg.Status)
}

func TestForbiddenIsLoggedAsWarning(t *testing.T) {
	metrics.GetRegistry().Reset()
	c, hook := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, apperrors.NewForbiddenError("list users"), "")
	})

	_, err := c.ListUsers(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeAuthorization, apperrors.GetCode(err))
	assert.False(t, apperrors.IsRetryable(err))

	var warned bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel && entry.Message == "Message store denied access" {
			warned = true
			assert.Equal(t, "/users", entry.Data["endpoint"])
		}
	}
	assert.True(t, warned)
	assert.Equal(t, 1.0, metrics.GetRegistry().CounterValue(metrics.StoreForbidden,
		map[string]string{"method": http.MethodGet, "endpoint": "/users"}))
}

func TestErrorEnvelopeMessageIsKept(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, apperrors.NewValidationError("content", "", "content is required"), "req_1")
	})

	_, err := c.SendMessage(context.Background(), models.SendMessageRequest{RecipientID: "bob"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid content: content is required")
}

func TestReadsAreRetried(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = httputil.WriteJSON(w, http.StatusOK, []models.Company{})
	})

	companies, err := c.ListCompanies(context.Background())
	require.NoError(t, err)
	assert.Empty(t, companies)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestWritesAreNotRetried(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.SendMessage(context.Background(), models.SendMessageRequest{RecipientID: "bob", Content: "x"})
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.ListUsers(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeAuthentication, apperrors.GetCode(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	c.SetRetryConfig(fastRetry(1))

	for i := 0; i < 5; i++ {
		_, err := c.ListUsers(context.Background())
		require.Error(t, err)
	}
	assert.Equal(t, circuitbreaker.StateOpen, c.BreakerState())

	_, err := c.ListUsers(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, circuitbreaker.ErrOpen))
	assert.Equal(t, apperrors.ErrCodeStoreAPI, apperrors.GetCode(err))
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))
}

func TestMissingTokenFailsWithoutRequest(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	for _, tokens := range []credentials.TokenSource{nil, credentials.Static("")} {
		c := NewClient(server.URL, tokens, server.Client())
		_, err := c.ListUsers(context.Background())
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeAuthentication, apperrors.GetCode(err))
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestLoginIsAnonymous(t *testing.T) {
	expires := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var req models.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "owner@example.com", req.Email)
		assert.Equal(t, "secret", req.Password)

		_ = httputil.WriteJSON(w, http.StatusOK, models.LoginResponse{
			Token:     "jwt",
			ExpiresAt: expires,
			User:      models.User{ID: "o1", Role: models.RoleOwner},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, server.Client())
	resp, err := c.Login(context.Background(), "owner@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "jwt", resp.Token)
	assert.True(t, expires.Equal(resp.ExpiresAt))
	assert.Equal(t, "o1", resp.User.ID)
}

func TestUpdateStatusAndMarkRead(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPatch && r.URL.Path == "/messages/m1/status":
			var req models.StatusUpdateRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, models.DeliveryStatusRead, req.Status)
			_ = httputil.WriteJSON(w, http.StatusOK, models.Message{ID: "m1", Status: req.Status})
		case r.Method == http.MethodPost && r.URL.Path == "/messages/read":
			var req models.MarkReadRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "alice", req.WithUser)
			_ = httputil.WriteJSON(w, http.StatusOK, models.MarkReadResponse{Updated: 4})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	msg, err := c.UpdateStatus(context.Background(), "m1", models.DeliveryStatusRead)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusRead, msg.Status)

	n, err := c.MarkRead(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestDocuments(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tasks/t1/documents", r.URL.Path)
		if r.Method == http.MethodGet {
			_ = httputil.WriteJSON(w, http.StatusOK, []models.TaskDocument{{ID: "d1", TaskID: "t1"}})
			return
		}

		require.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "quarterly", r.FormValue("description"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "report.pdf", header.Filename)
		assert.Equal(t, "%PDF-1.4", string(data))

		_ = httputil.WriteJSON(w, http.StatusCreated, models.TaskDocument{
			ID: "d2", TaskID: "t1", OriginalFilename: header.Filename, Size: int64(len(data)),
		})
	})

	doc, err := c.UploadDocument(context.Background(), "t1", "report.pdf", "quarterly", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "d2", doc.ID)
	assert.Equal(t, int64(8), doc.Size)

	docs, err := c.ListDocuments(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "d1", docs[0].ID)
}
