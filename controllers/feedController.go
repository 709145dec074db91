package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pih12/Pravah/feed"
)

type FeedController struct {
	hub      *feed.Hub
	feed     *feed.Feed
	upgrader websocket.Upgrader
	started  time.Time
	logger   *zap.Logger
}

// NewFeedController accepts any origin when allowedOrigins is empty or "*".
func NewFeedController(hub *feed.Hub, f *feed.Feed, allowedOrigins []string, logger *zap.Logger) *FeedController {
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &FeedController{
		hub:  hub,
		feed: f,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || allowed["*"] || origin == "" || allowed[origin]
			},
		},
		started: time.Now(),
		logger:  logger,
	}
}

// ServeWS upgrades the request and streams snapshots until the client leaves.
func (fc *FeedController) ServeWS(c *gin.Context) {
	sc, ok := requireSession(c)
	if !ok {
		return
	}
	conn, err := fc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		fc.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	if err := fc.hub.Serve(conn, sc); err != nil {
		fc.logger.Error("feed subscription failed", zap.String("uid", sc.UserID), zap.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "feed unavailable"),
			time.Now().Add(time.Second))
		conn.Close()
	}
}

func (fc *FeedController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "healthy",
		"connected_clients": fc.hub.Stats(),
		"subscribers":       fc.feed.Subscribers(),
		"uptime":            time.Since(fc.started).Round(time.Second).String(),
	})
}
