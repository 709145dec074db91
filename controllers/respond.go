package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pih12/Pravah/apperr"
	"github.com/pih12/Pravah/middlewares"
	"github.com/pih12/Pravah/session"
)

// storeTimeout bounds every handler's store and identity calls.
const storeTimeout = 10 * time.Second

func storeContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), storeTimeout)
}

// respondError writes the {"error", "code"} envelope for err.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	ae, ok := apperr.As(err)
	if !ok {
		ae = apperr.Internal(err)
	}

	fields := []zap.Field{
		zap.String("path", c.FullPath()),
		zap.String("code", string(ae.Kind)),
		zap.Error(err),
	}
	if ae.Status >= http.StatusInternalServerError {
		logger.Error(ae.Message, fields...)
	} else {
		logger.Info(ae.Message, fields...)
	}

	body := gin.H{"error": ae.Message, "code": ae.Kind}
	if ae.Kind == apperr.KindAuth {
		body["redirect"] = "login"
	}
	c.JSON(ae.Status, body)
}

func requireSession(c *gin.Context) (session.Context, bool) {
	sc, ok := middlewares.CurrentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated", "redirect": "login"})
		return session.Context{}, false
	}
	return sc, true
}
