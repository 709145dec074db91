package routes

import (
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pih12/Pravah/controllers"
	"github.com/pih12/Pravah/middlewares"
)

type Handlers struct {
	Auth  *controllers.AuthController
	User  *controllers.UserController
	Issue *controllers.IssueController
	Map   *controllers.MapController
	Feed  *controllers.FeedController
}

type Options struct {
	// Auth must attach a session; see middlewares.AuthMiddleware.
	Auth        gin.HandlerFunc
	RateLimit   gin.HandlerFunc
	CORSOrigins []string
	Logger      *zap.Logger
}

// NewRouter wires every route. REST responses are gzipped; the WebSocket
// endpoint is not.
func NewRouter(h Handlers, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limiter := opts.RateLimit
	if limiter == nil {
		limiter = func(c *gin.Context) { c.Next() }
	}

	r := gin.New()
	r.Use(middlewares.Recovery(logger), middlewares.RequestLogger(logger), middlewares.CORSMiddleware(opts.CORSOrigins))

	api := r.Group("/api", gzip.Gzip(gzip.DefaultCompression))
	AuthRoutes(api, h.Auth, opts.Auth)
	UserRoutes(api, h.User, opts.Auth)
	IssueRoutes(api, h.Issue, h.Map, opts.Auth, limiter)

	r.GET("/ws/issues", opts.Auth, h.Feed.ServeWS)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/health", h.Feed.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}
