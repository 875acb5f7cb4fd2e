// Package livechannel is the client side of the /ws live channel.
package livechannel

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"dashchat/internal/credentials"
	apperrors "dashchat/internal/errors"
	"dashchat/internal/models"
	"dashchat/pkg/constants"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const maxFrameBytes = 64 * 1024

// ErrNotConnected is returned by SendContent when no connection is open.
var ErrNotConnected = errors.New("live channel not connected")

// MessageHandler receives messages pushed to this user.
type MessageHandler func(msg models.Message)

// StatusHandler receives delivery status changes of messages this user sent.
type StatusHandler func(id string, status models.DeliveryStatus)

// Client holds one websocket connection to the server. Sends are correlated
// with their ack by client id.
type Client struct {
	url    string
	tokens credentials.TokenSource
	logger *logrus.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	cancel    context.CancelFunc
	done      chan struct{}
	pending   map[string]chan models.LiveFrame
	onMessage MessageHandler
	onStatus  StatusHandler
}

// New creates a client for the server at baseURL (http or https).
func New(baseURL string, tokens credentials.TokenSource, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	return &Client{
		url:     WebSocketURL(baseURL),
		tokens:  tokens,
		logger:  logger,
		pending: make(map[string]chan models.LiveFrame),
	}
}

// WebSocketURL maps an http(s) base URL to the ws(s) live channel endpoint.
func WebSocketURL(baseURL string) string {
	u := strings.TrimSuffix(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

// OnMessage registers the handler for incoming messages.
func (c *Client) OnMessage(fn MessageHandler) {
	c.mu.Lock()
	c.onMessage = fn
	c.mu.Unlock()
}

// OnStatus registers the handler for delivery status frames.
func (c *Client) OnStatus(fn StatusHandler) {
	c.mu.Lock()
	c.onStatus = fn
	c.mu.Unlock()
}

// Connect dials the live channel. It is a no-op when already connected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}

	if c.tokens == nil {
		return apperrors.NewAuthError("no credentials configured")
	}
	token, err := c.tokens.Token()
	if err != nil {
		return err
	}
	if token == "" {
		return apperrors.NewAuthError("not logged in")
	}

	dialCtx, cancelDial := context.WithTimeout(ctx, constants.DefaultDialTimeoutSec*time.Second)
	defer cancelDial()

	conn, resp, err := websocket.Dial(dialCtx, c.url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + token}},
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return apperrors.NewAuthError("live channel rejected token")
		}
		return apperrors.NewLiveChannelError("dial", err)
	}
	conn.SetReadLimit(maxFrameBytes)

	readCtx, cancel := context.WithCancel(context.Background())
	c.conn = conn
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.readLoop(readCtx, conn, c.done)

	c.logger.WithField("url", c.url).Debug("Live channel connected")
	return nil
}

// Connected reports whether a connection is open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// SendContent sends a message over the live channel and waits for the server's ack.
func (c *Client) SendContent(ctx context.Context, req models.SendMessageRequest) (*models.Message, error) {
	clientID := uuid.NewString()
	ack := make(chan models.LiveFrame, 1)

	c.mu.Lock()
	conn, done := c.conn, c.done
	if conn == nil {
		c.mu.Unlock()
		return nil, apperrors.NewLiveChannelError("send", ErrNotConnected)
	}
	c.pending[clientID] = ack
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, clientID)
		c.mu.Unlock()
	}()

	frame := models.LiveFrame{
		Type:        models.FrameSend,
		ClientID:    clientID,
		RecipientID: req.RecipientID,
		TaskID:      req.TaskID,
		Content:     req.Content,
	}
	if err := wsjson.Write(ctx, conn, frame); err != nil {
		return nil, apperrors.NewLiveChannelError("send", err)
	}

	select {
	case reply := <-ack:
		if reply.Type == models.FrameError {
			return nil, apperrors.New(apperrors.ErrCodeLiveChannel, "live channel rejected message").
				WithContext("reason", reply.Error).
				WithUserMessage(reply.Error)
		}
		if reply.Message == nil {
			return nil, apperrors.New(apperrors.ErrCodeLiveChannel, "ack without message")
		}
		return reply.Message, nil
	case <-done:
		return nil, apperrors.NewLiveChannelError("send", ErrNotConnected)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	conn, cancel, done := c.conn, c.cancel, c.done
	c.mu.Unlock()
	if conn == nil {
		return nil
	}

	err := conn.Close(websocket.StatusNormalClosure, "")
	cancel()
	<-done
	return err
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
			c.cancel = nil
		}
		c.mu.Unlock()
		close(done)
	}()

	for {
		var frame models.LiveFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				c.logger.WithError(err).Warn("Live channel connection lost")
			}
			return
		}
		c.dispatch(frame)
	}
}

func (c *Client) dispatch(frame models.LiveFrame) {
	c.mu.Lock()
	onMessage, onStatus := c.onMessage, c.onStatus
	var waiter chan models.LiveFrame
	if frame.ClientID != "" {
		waiter = c.pending[frame.ClientID]
	}
	c.mu.Unlock()

	switch frame.Type {
	case models.FrameAck, models.FrameError:
		if waiter != nil {
			waiter <- frame
			return
		}
		if frame.Type == models.FrameError {
			c.logger.WithField("error", frame.Error).Warn("Live channel reported an error")
		}
	case models.FrameMessage:
		if frame.Message != nil && onMessage != nil {
			onMessage(*frame.Message)
		}
	case models.FrameStatus:
		if onStatus != nil {
			onStatus(frame.ID, frame.Status)
		}
	case models.FramePong:
	default:
		c.logger.WithField("type", frame.Type).Debug("Ignoring unknown live frame")
	}
}
