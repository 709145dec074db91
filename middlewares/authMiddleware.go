package middlewares

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pih12/Pravah/models"
	"github.com/pih12/Pravah/session"
	authUtils "github.com/pih12/Pravah/utils"
)

const (
	sessionKey = "session"
	// TokenCookie is the cookie a browser client may carry instead of a header.
	TokenCookie = "auth_token"
)

type TokenParser interface {
	ParseToken(token string) (authUtils.Claims, error)
}

type SessionLookup interface {
	Lookup(ctx context.Context, sid string) (session.Record, error)
}

// ProfileLoader resolves the profile behind a live session.
type ProfileLoader interface {
	Current(ctx context.Context, rec session.Record) (models.Profile, error)
}

// AuthMiddleware accepts a bearer header, the auth cookie or a ?token= query
// (WebSocket clients). The token must name a session that is still live.
func AuthMiddleware(tokens TokenParser, sessions SessionLookup, profiles ProfileLoader, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			unauthorized(c, "No authorization token provided")
			return
		}

		claims, err := tokens.ParseToken(tokenString)
		if err != nil {
			logger.Debug("token validation failed", zap.Error(err))
			unauthorized(c, "Invalid authorization token")
			return
		}

		rec, err := sessions.Lookup(c.Request.Context(), claims.SessionID)
		if err != nil {
			if !errors.Is(err, session.ErrNotFound) {
				logger.Error("session lookup failed", zap.String("sid", claims.SessionID), zap.Error(err))
			}
			unauthorized(c, "Session expired, please sign in again")
			return
		}
		if rec.UserID != claims.UserID {
			unauthorized(c, "Invalid authorization token")
			return
		}

		profile, err := profiles.Current(c.Request.Context(), rec)
		if err != nil {
			logger.Error("profile resolution failed", zap.String("uid", rec.UserID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
			return
		}

		role := profile.Role
		if role == "" {
			role = rec.Role
		}
		c.Set(sessionKey, session.Context{
			SessionID: rec.SessionID,
			UserID:    rec.UserID,
			Email:     rec.Email,
			Role:      role,
			Profile:   profile,
		})
		c.Set("user_id", rec.UserID)
		c.Next()
	}
}

// CurrentSession returns the identity AuthMiddleware attached.
func CurrentSession(c *gin.Context) (session.Context, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return session.Context{}, false
	}
	sc, ok := v.(session.Context)
	return sc, ok
}

// SetSession is used by handlers mounted without AuthMiddleware in tests.
func SetSession(c *gin.Context, sc session.Context) {
	c.Set(sessionKey, sc)
	c.Set("user_id", sc.UserID)
}

func extractToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if cookie, err := c.Cookie(TokenCookie); err == nil && cookie != "" {
		return cookie
	}
	return c.Query("token")
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg, "redirect": "login"})
}
