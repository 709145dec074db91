package middlewares

import (
	"github.com/gin-gonic/gin"

	"github.com/pih12/Pravah/apperr"
	"github.com/pih12/Pravah/authz"
)

// RequireOperation rejects callers whose role may not perform op.
func RequireOperation(op authz.Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		sc, ok := CurrentSession(c)
		if !ok {
			unauthorized(c, "No authorization token provided")
			return
		}
		if !authz.Can(sc.Role, op) {
			ae := apperr.Forbidden("You do not have permission to perform this action")
			c.AbortWithStatusJSON(ae.Status, gin.H{"error": ae.Message, "code": ae.Kind})
			return
		}
		c.Next()
	}
}
