package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/pih12/Pravah/authz"
	"github.com/pih12/Pravah/controllers"
	"github.com/pih12/Pravah/middlewares"
)

func UserRoutes(api *gin.RouterGroup, uc *controllers.UserController, auth gin.HandlerFunc) {
	api.PUT("/users/me", auth, middlewares.RequireOperation(authz.OpUpdateProfile), uc.UpdateMe)
	api.PUT("/session/location", auth, uc.SetLocation)
}
