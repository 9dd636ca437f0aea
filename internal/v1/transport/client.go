package transport

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/logging"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/metrics"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/types"
)

const (
	// writeWait bounds a single frame write before the socket is considered
	// dead.
	writeWait = 10 * time.Second
	// pongWait is how long the peer may stay silent before the read side
	// gives up on it.
	pongWait = 60 * time.Second
	// pingPeriod paces keepalive pings; it must stay under pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize caps one inbound frame. Commands are small JSON
	// objects; anything bigger is not this protocol.
	maxMessageSize = 8192
	// sendBuffer is the per-connection outbound queue depth. A full queue
	// drops frames rather than stalling a broadcast.
	sendBuffer = 256
)

// wsConnection is the slice of *websocket.Conn the pumps use, kept as an
// interface so tests can drive the client without a network.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetWriteDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
}

// Client owns one WebSocket. It starts under a throwaway connection id and
// is rekeyed to the user id once the lobby accepts the user, so the same
// value addresses the socket for its whole life. Client implements
// types.Session for the dispatcher and types.FrameSender for the messenger.
type Client struct {
	conn   wsConnection
	router commandRouter

	mu     sync.RWMutex // guards id and closed
	id     types.ConnectionIdType
	closed bool

	closeOnce sync.Once
	send      chan []byte
}

// commandRouter is what the read pump needs from the dispatch layer.
type commandRouter interface {
	Dispatch(ctx context.Context, sess types.Session, frame []byte)
	HandleDisconnect(ctx context.Context, connID types.ConnectionIdType)
}

func newClient(conn wsConnection, router commandRouter, id types.ConnectionIdType) *Client {
	return &Client{
		conn:   conn,
		router: router,
		id:     id,
		send:   make(chan []byte, sendBuffer),
	}
}

// ID returns the identity the connection currently answers to.
func (c *Client) ID() types.ConnectionIdType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

// Rebind moves the connection to a new identity. The caller must have moved
// the registry entry first so the two never disagree for long.
func (c *Client) Rebind(id types.ConnectionIdType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = id
}

// Disconnect closes the outbound queue, which lets the write pump drain,
// emit a close frame, and shut the socket. Safe to call more than once.
func (c *Client) Disconnect() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.send)
	})
}

// SendRaw enqueues a pre-serialized frame. It never blocks: a closed client
// ignores the frame and a full queue drops it.
func (c *Client) SendRaw(data []byte) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		logging.GetLogger().Debug("skipping send to closed connection", zap.String("connection_id", string(c.id)))
		return
	}
	c.mu.RUnlock()

	defer func() {
		// Disconnect can close the queue between the check and the send.
		if r := recover(); r != nil {
			logging.GetLogger().Debug("send raced connection close", zap.String("connection_id", string(c.id)))
		}
	}()

	select {
	case c.send <- data:
	default:
		metrics.DroppedFrames.Inc()
		logging.Warn(context.Background(), "outbound queue full, dropping frame",
			zap.String("connection_id", string(c.ID())))
	}
}

// readPump feeds inbound text frames to the dispatcher until the socket
// errors, then runs the disconnect teardown exactly once. Pong frames renew
// the read deadline, so a peer that stops answering pings times out here.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.Disconnect()
		c.router.HandleDisconnect(ctx, c.ID())
		c.conn.Close()
		metrics.DecConnection()
		logging.Info(ctx, "client disconnected", zap.String("connection_id", string(c.ID())))
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Warn(ctx, "websocket read failed", zap.Error(err))
			}
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}
		c.router.Dispatch(ctx, c, data)
	}
}

// writePump serializes all writes to the socket and keeps the peer alive
// with periodic pings. It exits when the outbound queue closes, after
// sending a close frame.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logging.Error(context.Background(), "error writing frame",
					zap.String("connection_id", string(c.ID())), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
