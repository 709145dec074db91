package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/pih12/Pravah/authz"
	"github.com/pih12/Pravah/controllers"
	"github.com/pih12/Pravah/middlewares"
)

// IssueRoutes sets up the issue and map routes
func IssueRoutes(api *gin.RouterGroup, ic *controllers.IssueController, mc *controllers.MapController,
	auth, limiter gin.HandlerFunc) {
	view := middlewares.RequireOperation(authz.OpViewIssues)

	issue := api.Group("/issues", auth)
	{
		issue.GET("", view, ic.GetAllIssues)
		issue.GET("/stats", view, ic.GetStats)
		issue.GET("/mine", middlewares.RequireOperation(authz.OpCreateIssue), ic.GetMyIssues)
		issue.GET("/:id", view, ic.GetIssue)
		issue.POST("", middlewares.RequireOperation(authz.OpCreateIssue), limiter, ic.CreateIssue)
		issue.PUT("/:id", middlewares.RequireOperation(authz.OpUpdateIssue), ic.UpdateIssue)
		issue.DELETE("/:id", middlewares.RequireOperation(authz.OpDeleteIssue), ic.DeleteIssue)
	}

	api.GET("/map/markers", auth, view, mc.GetMarkers)
}
