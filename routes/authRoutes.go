package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/pih12/Pravah/controllers"
)

// AuthRoutes sets up the authentication routes
func AuthRoutes(api *gin.RouterGroup, ac *controllers.AuthController, auth gin.HandlerFunc) {
	r := api.Group("/auth")
	{
		r.POST("/register", ac.RegisterUser)
		r.POST("/login", ac.LoginUser)
		r.POST("/logout", auth, ac.LogoutUser)
		r.GET("/me", auth, ac.GetMe)
	}
}
