package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/logging"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/metrics"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/registry"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/types"
)

// Hub accepts WebSocket upgrades and hands each socket a Client wired into
// the shared registry and the command dispatcher. There is no auth at
// upgrade time; identity arrives inside command frames.
type Hub struct {
	store          *registry.Store
	router         commandRouter
	allowedOrigins []string
}

// NewHub returns a Hub. An empty origin list admits every Origin header,
// which also covers non-browser clients that send none.
func NewHub(store *registry.Store, router commandRouter, allowedOrigins []string) *Hub {
	return &Hub{
		store:          store,
		router:         router,
		allowedOrigins: allowedOrigins,
	}
}

// ServeWs upgrades the HTTP request and starts the connection's pumps.
func (h *Hub) ServeWs(c *gin.Context) {
	logging.Info(c.Request.Context(), "incoming connection",
		zap.String("remote_addr", c.Request.RemoteAddr))

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return validateOrigin(r, h.allowedOrigins) == nil
		},
		WriteBufferPool: &sync.Pool{
			New: func() any {
				return make([]byte, 4096)
			},
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error(c.Request.Context(), "failed to upgrade connection", zap.Error(err))
		return
	}

	h.HandleConnection(conn)
}

// HandleConnection registers an established socket under a fresh connection
// id and starts its pumps. Split from ServeWs so tests can drive it with a
// fake connection.
func (h *Hub) HandleConnection(conn wsConnection) {
	connID := types.ConnectionIdType(uuid.NewString())
	client := newClient(conn, h.router, connID)

	h.store.Connections.Insert(connID, client)
	metrics.IncConnection()

	// The request context dies with the upgrade handler; the pumps carry
	// their own.
	ctx := context.WithValue(context.Background(), logging.ConnectionIDKey, string(connID))
	logging.Info(ctx, "connection established")

	go client.writePump()
	go client.readPump(ctx)
}

// Shutdown closes every live connection. Each write pump drains its queue,
// sends a close frame, and exits; read pumps then run their usual teardown.
func (h *Hub) Shutdown(ctx context.Context) error {
	senders := h.store.Connections.Values()
	for _, s := range senders {
		if client, ok := s.(*Client); ok {
			client.Disconnect()
		}
	}
	logging.Info(ctx, "all connections closed", zap.Int("count", len(senders)))
	return nil
}

// validateOrigin checks the request origin against the allowed list,
// matching on scheme and host. An empty list or a missing header passes.
func validateOrigin(r *http.Request, allowedOrigins []string) error {
	if len(allowedOrigins) == 0 {
		return nil
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.GetLogger().Debug("no origin header, allowing non-browser client")
		return nil
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		logging.Warn(context.Background(), "invalid origin URL", zap.String("origin", origin), zap.Error(err))
		return fmt.Errorf("invalid origin URL: %w", err)
	}

	for _, allowed := range allowedOrigins {
		allowedURL, err := url.Parse(allowed)
		if err != nil {
			continue
		}
		if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
			return nil
		}
	}

	logging.Warn(context.Background(), "origin not in allowed list",
		zap.String("origin", origin), zap.Strings("allowed_origins", allowedOrigins))
	return fmt.Errorf("origin not allowed: %s", origin)
}
