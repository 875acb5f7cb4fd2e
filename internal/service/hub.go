package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"dashchat/internal/auth"
	"dashchat/internal/constants"
	apperrors "dashchat/internal/errors"
	"dashchat/internal/metrics"
	"dashchat/internal/models"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"
)

type liveClient struct {
	userID string
	conn   *websocket.Conn
	send   chan models.LiveFrame
}

// Hub tracks live channel connections per user and routes frames between them.
type Hub struct {
	messages *MessageService
	logger   *logrus.Logger
	errLog   *apperrors.Logger

	mu      sync.RWMutex
	clients map[string]map[*liveClient]struct{}
}

func NewHub(messages *MessageService, logger *logrus.Logger) *Hub {
	return &Hub{
		messages: messages,
		logger:   logger,
		errLog:   apperrors.WrapLogger(logger),
		clients:  make(map[string]map[*liveClient]struct{}),
	}
}

// Serve runs one accepted connection for identity until it closes or ctx ends.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, identity auth.Identity) {
	conn.SetReadLimit(constants.WebSocketMaxFrameBytes)
	c := &liveClient{
		userID: identity.UserID,
		conn:   conn,
		send:   make(chan models.LiveFrame, constants.WebSocketSendBufferSize),
	}

	h.register(c)
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(ctx, c)
	}()

	h.readPump(ctx, c)

	h.unregister(c)
	<-done
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Hub) register(c *liveClient) {
	h.mu.Lock()
	conns, ok := h.clients[c.userID]
	if !ok {
		conns = make(map[*liveClient]struct{})
		h.clients[c.userID] = conns
	}
	conns[c] = struct{}{}
	total := h.countLocked()
	h.mu.Unlock()

	metrics.SetGauge(metrics.LiveConnections, float64(total), nil, "Open live channel connections")
	h.logger.WithField(LogFieldUserID, c.userID).Debug("Live client registered")
}

func (h *Hub) unregister(c *liveClient) {
	h.mu.Lock()
	if conns, ok := h.clients[c.userID]; ok {
		if _, exists := conns[c]; exists {
			delete(conns, c)
			close(c.send)
		}
		if len(conns) == 0 {
			delete(h.clients, c.userID)
		}
	}
	total := h.countLocked()
	h.mu.Unlock()

	metrics.SetGauge(metrics.LiveConnections, float64(total), nil, "Open live channel connections")
}

func (h *Hub) countLocked() int {
	n := 0
	for _, conns := range h.clients {
		n += len(conns)
	}
	return n
}

// ConnectionCount returns the number of open connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.countLocked()
}

// Online reports whether userID has at least one open connection.
func (h *Hub) Online(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

func (h *Hub) readPump(ctx context.Context, c *liveClient) {
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				h.logger.WithError(err).WithField(LogFieldUserID, c.userID).Debug("Live channel read ended")
			}
			return
		}
		if typ != websocket.MessageText {
			h.enqueue(c, models.LiveFrame{Type: models.FrameError, Error: "text frames only"})
			continue
		}

		var frame models.LiveFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.enqueue(c, models.LiveFrame{Type: models.FrameError, Error: "invalid JSON"})
			continue
		}
		metrics.IncrementCounter(metrics.LiveFramesReceived, map[string]string{"type": frame.Type}, "Live channel frames received")
		h.handleFrame(ctx, c, frame)
	}
}

func (h *Hub) handleFrame(ctx context.Context, c *liveClient, frame models.LiveFrame) {
	switch frame.Type {
	case models.FrameSend:
		msg, err := h.messages.Send(ctx, c.userID, frame.SendRequest())
		if err != nil {
			h.enqueue(c, models.LiveFrame{
				Type:     models.FrameError,
				ClientID: frame.ClientID,
				Error:    apperrors.GetUserMessage(err),
			})
			return
		}
		h.enqueue(c, models.LiveFrame{Type: models.FrameAck, ClientID: frame.ClientID, Message: msg})
		h.Deliver(ctx, msg)
	case models.FramePing:
		h.enqueue(c, models.LiveFrame{Type: models.FramePong, ClientID: frame.ClientID})
	default:
		h.enqueue(c, models.LiveFrame{
			Type:     models.FrameError,
			ClientID: frame.ClientID,
			Error:    "unsupported frame type",
		})
	}
}

func (h *Hub) writePump(ctx context.Context, c *liveClient) {
	for frame := range c.send {
		writeCtx, cancel := context.WithTimeout(ctx, constants.WebSocketWriteTimeoutSec*time.Second)
		err := wsjson.Write(writeCtx, c.conn, frame)
		cancel()
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				h.logger.WithError(err).WithField(LogFieldUserID, c.userID).Debug("Live channel write failed")
			}
			_ = c.conn.Close(websocket.StatusInternalError, "write failed")
			for range c.send {
			}
			return
		}
		metrics.IncrementCounter(metrics.LiveFramesDelivered, map[string]string{"type": frame.Type}, "Live channel frames written")
	}
}

// enqueue hands frame to c without blocking; frames for a full buffer are dropped.
func (h *Hub) enqueue(c *liveClient, frame models.LiveFrame) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c.userID][c]; !ok {
		return
	}
	select {
	case c.send <- frame:
	default:
		h.logger.WithField(LogFieldUserID, c.userID).Warn("Live client send buffer full, dropping frame")
	}
}

// sendToUser enqueues frame on every connection of userID and reports how many accepted it.
func (h *Hub) sendToUser(userID string, frame models.LiveFrame) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	accepted := 0
	for c := range h.clients[userID] {
		select {
		case c.send <- frame:
			accepted++
		default:
			h.logger.WithField(LogFieldUserID, userID).Warn("Live client send buffer full, dropping frame")
		}
	}
	return accepted
}

// Deliver pushes a stored message to its recipient's connections. When the
// recipient is online the message is confirmed as delivered and the sender is told.
func (h *Hub) Deliver(ctx context.Context, msg *models.Message) {
	if msg == nil || msg.RecipientID == "" {
		return
	}
	view := ViewFor(*msg, msg.RecipientID)
	if h.sendToUser(msg.RecipientID, models.LiveFrame{Type: models.FrameMessage, Message: view}) == 0 {
		return
	}

	updated, err := h.messages.UpdateStatus(ctx, msg.RecipientID, msg.ID, models.DeliveryStatusDelivered)
	if err != nil {
		h.errLog.LogWarn(err, "Failed to confirm live delivery", LogFields(ctx, logrus.Fields{
			LogFieldMessageID: msg.ID,
		}))
		return
	}
	h.NotifyStatus(updated)
}

// NotifyStatus tells the sender's connections that msg changed status.
func (h *Hub) NotifyStatus(msg *models.Message) {
	if msg == nil {
		return
	}
	h.sendToUser(msg.SenderID, models.LiveFrame{
		Type:   models.FrameStatus,
		ID:     msg.ID,
		Status: msg.Status,
	})
}

// Close ends every open connection.
func (h *Hub) Close() {
	h.mu.RLock()
	var conns []*websocket.Conn
	for _, set := range h.clients {
		for c := range set {
			conns = append(conns, c.conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}
