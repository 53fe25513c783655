package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	models "github.com/jam2205/TradingView-Screener/internal/domain/models"
	domrepo "github.com/jam2205/TradingView-Screener/internal/domain/repository"
	"github.com/jam2205/TradingView-Screener/internal/service/ratelimit"
	xlogger "github.com/jam2205/TradingView-Screener/pkg/logger"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPingInterval = 30 * time.Second
)

type wsClient struct {
	conn    *websocket.Conn
	dataset string        // empty subscribes to everything
	done    chan struct{} // closed when the client is dropped
	mu      sync.Mutex
}

func (c *wsClient) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// LiveFeedHub pushes every published snapshot to connected WebSocket
// clients. It implements SnapshotPublisher so it slots into the same
// publish chain as the Kafka producer.
type LiveFeedHub struct {
	logger   *xlogger.Logger
	upgrader websocket.Upgrader
	limiter  *ratelimit.Limiter

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

func NewLiveFeedHub(logger *xlogger.Logger) *LiveFeedHub {
	return &LiveFeedHub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		limiter: ratelimit.New(),
		clients: make(map[*wsClient]struct{}),
	}
}

func (h *LiveFeedHub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/live", h.Serve)
}

// Serve upgrades the connection and keeps it registered until the client
// disconnects. An optional ?dataset= filter narrows the feed.
func (h *LiveFeedHub) Serve(c echo.Context) error {
	if !h.limiter.Allow(c.RealIP(), 5, 1) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many connection attempts")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &wsClient{
		conn:    conn,
		dataset: c.QueryParam("dataset"),
		done:    make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("live feed client connected",
		xlogger.String("remote", c.RealIP()),
		xlogger.String("dataset", client.dataset),
		xlogger.Int("clients", total),
	)

	go h.pingLoop(client)
	h.readLoop(client)
	return nil
}

// Publish broadcasts the snapshot to matching clients. Clients that fail a
// write are dropped; Publish itself never fails the caller.
func (h *LiveFeedHub) Publish(_ context.Context, snap *models.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	h.mu.RLock()
	targets := make([]*wsClient, 0, len(h.clients))
	for client := range h.clients {
		if client.dataset == "" || client.dataset == snap.Dataset {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		if err := client.send(data); err != nil {
			h.drop(client)
		}
	}
	return nil
}

func (h *LiveFeedHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.done)
		_ = client.conn.Close()
		delete(h.clients, client)
	}
	return nil
}

// readLoop drains client frames so close and pong handling work; the feed
// is one-directional otherwise.
func (h *LiveFeedHub) readLoop(client *wsClient) {
	defer h.drop(client)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *LiveFeedHub) pingLoop(client *wsClient) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-client.done:
			return
		case <-ticker.C:
			client.mu.Lock()
			_ = client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			err := client.conn.WriteMessage(websocket.PingMessage, nil)
			client.mu.Unlock()
			if err != nil {
				h.drop(client)
				return
			}
		}
	}
}

func (h *LiveFeedHub) drop(client *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	h.mu.Unlock()
	close(client.done)
	_ = client.conn.Close()
}

var _ domrepo.SnapshotPublisher = (*LiveFeedHub)(nil)
