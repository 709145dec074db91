package feed

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pih12/Pravah/metrics"
	"github.com/pih12/Pravah/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
)

// Hub tracks the WebSocket sessions attached to a feed.
type Hub struct {
	feed   *Feed
	logger *zap.Logger

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mutex            sync.RWMutex
	connectedClients int
}

func NewHub(feed *Feed, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		feed:       feed,
		logger:     logger,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run owns the client set until ctx is done, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.connectedClients = len(h.clients)
			h.mutex.Unlock()
			metrics.FeedClients.Inc()
			h.logger.Info("feed client connected",
				zap.String("client", client.id), zap.String("uid", client.session.UserID), zap.Int("clients", h.Stats()))

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				metrics.FeedClients.Dec()
			}
			h.connectedClients = len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("feed client disconnected", zap.String("client", client.id), zap.Int("clients", h.Stats()))

		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				client.cancel()
				delete(h.clients, client)
				metrics.FeedClients.Dec()
			}
			h.connectedClients = 0
			h.mutex.Unlock()
			return
		}
	}
}

// Stats returns the number of connected clients.
func (h *Hub) Stats() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.connectedClients
}

// Serve attaches conn to the feed on behalf of sc and starts its pumps.
func (h *Hub) Serve(conn *websocket.Conn, sc session.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	snapshots, err := h.feed.Subscribe(ctx)
	if err != nil {
		cancel()
		return err
	}

	client := &Client{
		id:        uuid.NewString(),
		hub:       h,
		conn:      conn,
		session:   sc,
		snapshots: snapshots,
		cancel:    cancel,
	}
	select {
	case h.register <- client:
	case <-h.done:
		cancel()
		return context.Canceled
	}

	go client.writePump()
	go client.readPump()
	return nil
}

// Client is one WebSocket session subscribed to the feed.
type Client struct {
	id        string
	hub       *Hub
	conn      *websocket.Conn
	session   session.Context
	snapshots <-chan Snapshot
	cancel    context.CancelFunc
}

// readPump only handles control frames; the feed is one-way.
func (c *Client) readPump() {
	defer func() {
		c.cancel()
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("feed read error", zap.String("client", c.id), zap.Error(err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case snap, ok := <-c.snapshots:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(Project(snap, c.session.Role)); err != nil {
				c.cancel()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}
		}
	}
}
