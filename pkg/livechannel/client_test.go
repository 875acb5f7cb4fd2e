package livechannel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dashchat/internal/credentials"
	apperrors "dashchat/internal/errors"
	"dashchat/internal/httputil"
	"dashchat/internal/models"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServer acks every send frame, rejects empty content and pushes one
// message and one status frame right after connecting.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if httputil.BearerToken(r) != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		ctx := r.Context()

		_ = wsjson.Write(ctx, conn, models.LiveFrame{
			Type:    models.FrameMessage,
			Message: &models.Message{ID: "in-1", SenderID: "bob", Content: "hey"},
		})
		_ = wsjson.Write(ctx, conn, models.LiveFrame{Type: models.FrameStatus, ID: "m-0", Status: models.DeliveryStatusDelivered})

		for {
			var frame models.LiveFrame
			if err := wsjson.Read(ctx, conn, &frame); err != nil {
				return
			}
			if frame.Content == "" {
				_ = wsjson.Write(ctx, conn, models.LiveFrame{Type: models.FrameError, ClientID: frame.ClientID, Error: "Invalid content: content is required"})
				continue
			}
			_ = wsjson.Write(ctx, conn, models.LiveFrame{
				Type:     models.FrameAck,
				ClientID: frame.ClientID,
				Message: &models.Message{
					ID: "m-1", SenderID: "alice", RecipientID: frame.RecipientID, TaskID: frame.TaskID,
					Content: frame.Content, Status: models.DeliveryStatusSent,
				},
			})
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWebSocketURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:8080/ws", WebSocketURL("http://localhost:8080/"))
	assert.Equal(t, "wss://chat.example.com/ws", WebSocketURL("https://chat.example.com"))
}

func TestClient_SendContentWaitsForAck(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv := echoServer(t)
	c := New(srv.URL, credentials.Static("tok"), nil)

	received := make(chan models.Message, 1)
	statuses := make(chan models.DeliveryStatus, 1)
	c.OnMessage(func(msg models.Message) { received <- msg })
	c.OnStatus(func(id string, status models.DeliveryStatus) {
		assert.Equal(t, "m-0", id)
		statuses <- status
	})

	require.False(t, c.Connected())
	require.NoError(t, c.Connect(ctx))
	require.True(t, c.Connected())
	defer c.Close()

	msg, err := c.SendContent(ctx, models.SendMessageRequest{RecipientID: "bob", TaskID: "t1", Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "m-1", msg.ID)
	assert.Equal(t, "bob", msg.RecipientID)
	assert.Equal(t, "t1", msg.TaskID)

	select {
	case in := <-received:
		assert.Equal(t, "in-1", in.ID)
	case <-ctx.Done():
		t.Fatal("message frame not dispatched")
	}
	select {
	case status := <-statuses:
		assert.Equal(t, models.DeliveryStatusDelivered, status)
	case <-ctx.Done():
		t.Fatal("status frame not dispatched")
	}
}

func TestClient_ErrorFrameFailsSend(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := New(echoServer(t).URL, credentials.Static("tok"), nil)
	require.NoError(t, c.Connect(ctx))
	defer c.Close()

	_, err := c.SendContent(ctx, models.SendMessageRequest{RecipientID: "bob"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeLiveChannel, apperrors.GetCode(err))
	assert.Equal(t, "Invalid content: content is required", apperrors.GetUserMessage(err))
}

func TestClient_SendWithoutConnection(t *testing.T) {
	c := New("http://127.0.0.1:1", credentials.Static("tok"), nil)
	_, err := c.SendContent(context.Background(), models.SendMessageRequest{RecipientID: "bob", Content: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.True(t, apperrors.IsRetryable(err))
}

func TestClient_ConnectRejectsBadToken(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := New(echoServer(t).URL, credentials.Static("wrong"), nil)
	err := c.Connect(ctx)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeAuthentication, apperrors.GetCode(err))
	assert.False(t, c.Connected())

	c = New(echoServer(t).URL, credentials.Static(""), nil)
	err = c.Connect(ctx)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeAuthentication, apperrors.GetCode(err))
}

func TestClient_CloseDisconnects(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := New(echoServer(t).URL, credentials.Static("tok"), nil)
	require.NoError(t, c.Connect(ctx))
	require.NoError(t, c.Close())
	assert.False(t, c.Connected())
	assert.NoError(t, c.Close())
}
